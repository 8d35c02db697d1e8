// Package feed pushes complaint status events to connected dashboards. Events
// arrive over Redis pub/sub so every API instance sees every change.
package feed

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"smartnagrik/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// EventSubscriber is satisfied by *storage.Service.
type EventSubscriber interface {
	SubscribeEvents(ctx context.Context) *redis.PubSub
}

// Hub tracks connected clients and fans events out to them.
type Hub struct {
	RegisterCh   chan Client
	UnregisterCh chan Client
	EventsCh     chan models.StatusEvent

	mu      sync.RWMutex
	clients map[Client]struct{}
}

// NewHub creates an idle hub; call Run to start it.
func NewHub() *Hub {
	return &Hub{
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		EventsCh:     make(chan models.StatusEvent, 64),
		clients:      make(map[Client]struct{}),
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run processes registrations and events until ctx is done. All clients are
// closed on exit.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				c.Close()
			}
			h.mu.Unlock()
			return

		case c := <-h.RegisterCh:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.UnregisterCh:
			h.remove(c)

		case ev := <-h.EventsCh:
			h.broadcast(ev)
		}
	}
}

func (h *Hub) broadcast(ev models.StatusEvent) {
	h.mu.RLock()
	var slow []Client
	for c := range h.clients {
		if !c.Matches(ev) {
			continue
		}
		select {
		case c.GetSendChannel() <- ev:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Printf("WARN: feed: dropping slow client")
		h.remove(c)
	}
}

func (h *Hub) remove(c Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Unregister removes c without blocking if the hub has stopped.
func (h *Hub) Unregister(ctx context.Context, c Client) {
	select {
	case h.UnregisterCh <- c:
	case <-ctx.Done():
	}
}

// StartPubSubListener subscribes to the status event channel and forwards
// decoded events into the hub until ctx is done.
func (h *Hub) StartPubSubListener(ctx context.Context, sub EventSubscriber) {
	pubsub := sub.SubscribeEvents(ctx)
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				h.handlePayload(ctx, msg.Payload)
			}
		}
	}()
}

func (h *Hub) handlePayload(ctx context.Context, payload string) {
	var ev models.StatusEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		log.Printf("ERROR: feed: bad event payload: %v", err)
		return
	}
	select {
	case h.EventsCh <- ev:
	case <-ctx.Done():
	}
}
