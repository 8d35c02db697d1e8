// Package notify delivers complaint notifications out of band. The lifecycle
// engine hands a notification to a Dispatcher and returns immediately; channel
// failures are logged and dropped.
package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"smartnagrik/backend/internal/models"
)

// EventSubmitted is the event name used for new complaints. Status changes
// use the new status name.
const EventSubmitted = "SUBMITTED"

// sendTimeout bounds a single channel delivery.
const sendTimeout = 30 * time.Second

// Recipient is the submitter a notification is addressed to.
type Recipient struct {
	UserID         string
	Email          string
	Name           string
	TelegramChatID int64
	Language       string
	Channels       []string
}

// RecipientFromUser copies the contact details of a user.
func RecipientFromUser(u *models.User) Recipient {
	return Recipient{
		UserID:         u.ID,
		Email:          u.Email,
		Name:           u.FullName,
		TelegramChatID: u.TelegramChatID,
		Language:       u.Language,
		Channels:       u.NotifyChannels,
	}
}

// Wants reports whether the recipient accepts a channel. An empty preference
// list accepts everything.
func (r Recipient) Wants(channel string) bool {
	if len(r.Channels) == 0 {
		return true
	}
	for _, c := range r.Channels {
		if c == channel {
			return true
		}
	}
	return false
}

// Notification is one event for one recipient.
type Notification struct {
	Recipient       Recipient
	ComplaintNumber string
	Title           string
	Event           string
	OccurredAt      time.Time
}

// Dispatcher is what the lifecycle engine calls after a committed change.
// Neither method blocks on delivery or reports delivery errors.
type Dispatcher interface {
	NotifySubmission(recipient Recipient, complaintNumber, title string)
	NotifyStatusChange(recipient Recipient, complaintNumber string, status models.Status, title string)
}

// Channel delivers a notification over one medium.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// preferenceFree channels ignore the recipient's channel list.
type preferenceFree interface {
	AlwaysSend() bool
}

// AsyncDispatcher queues notifications and fans them out to every channel
// from a fixed pool of workers.
type AsyncDispatcher struct {
	channels []Channel
	queue    chan Notification

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncDispatcher starts workers goroutines reading from a queue of queueSize.
func NewAsyncDispatcher(workers, queueSize int, channels ...Channel) *AsyncDispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	d := &AsyncDispatcher{
		channels: channels,
		queue:    make(chan Notification, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	log.Printf("INFO: notification dispatcher started with %d workers and %d channels", workers, len(channels))
	return d
}

func (d *AsyncDispatcher) NotifySubmission(recipient Recipient, complaintNumber, title string) {
	d.enqueue(Notification{
		Recipient:       recipient,
		ComplaintNumber: complaintNumber,
		Title:           title,
		Event:           EventSubmitted,
		OccurredAt:      time.Now(),
	})
}

func (d *AsyncDispatcher) NotifyStatusChange(recipient Recipient, complaintNumber string, status models.Status, title string) {
	d.enqueue(Notification{
		Recipient:       recipient,
		ComplaintNumber: complaintNumber,
		Title:           title,
		Event:           string(status),
		OccurredAt:      time.Now(),
	})
}

func (d *AsyncDispatcher) enqueue(n Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.Printf("WARN: notify: dispatcher closed, dropping %s for %s", n.Event, n.ComplaintNumber)
		return
	}
	select {
	case d.queue <- n:
	default:
		log.Printf("ERROR: notify: queue full, dropping %s for %s", n.Event, n.ComplaintNumber)
	}
}

func (d *AsyncDispatcher) worker() {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *AsyncDispatcher) deliver(n Notification) {
	for _, ch := range d.channels {
		if pf, ok := ch.(preferenceFree); !(ok && pf.AlwaysSend()) && !n.Recipient.Wants(ch.Name()) {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("ERROR: notify: %s channel panicked for %s: %v", ch.Name(), n.ComplaintNumber, r)
				}
			}()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			if err := ch.Send(ctx, n); err != nil {
				log.Printf("ERROR: notify: %s delivery of %s for %s failed: %v", ch.Name(), n.Event, n.ComplaintNumber, err)
			}
		}()
	}
}

// Close stops accepting notifications and waits for queued ones to be delivered.
func (d *AsyncDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

// Recorder is a synchronous Dispatcher that keeps every notification in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) NotifySubmission(recipient Recipient, complaintNumber, title string) {
	r.record(Notification{Recipient: recipient, ComplaintNumber: complaintNumber, Title: title, Event: EventSubmitted, OccurredAt: time.Now()})
}

func (r *Recorder) NotifyStatusChange(recipient Recipient, complaintNumber string, status models.Status, title string) {
	r.record(Notification{Recipient: recipient, ComplaintNumber: complaintNumber, Title: title, Event: string(status), OccurredAt: time.Now()})
}

func (r *Recorder) record(n Notification) {
	r.mu.Lock()
	r.sent = append(r.sent, n)
	r.mu.Unlock()
}

// Sent returns a copy of the recorded notifications in call order.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}
