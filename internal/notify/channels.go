package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"strings"

	"smartnagrik/backend/internal/localization"
	"smartnagrik/backend/internal/models"

	mail "github.com/go-mail/mail/v2"
)

// Texts renders localized notification texts.
type Texts struct {
	Localizer *localization.Localizer
}

// Subject and Body return the message in the recipient's language.
func (t Texts) Subject(n Notification) string {
	return t.Localizer.Format(n.Recipient.Language, t.key(n, "subject"), t.vars(n))
}

func (t Texts) Body(n Notification) string {
	return t.Localizer.Format(n.Recipient.Language, t.key(n, "body"), t.vars(n))
}

// StatusLabel returns the localized status name.
func (t Texts) StatusLabel(lang, status string) string {
	return t.Localizer.GetString(lang, "status."+status)
}

func (t Texts) key(n Notification, part string) string {
	if n.Event == EventSubmitted {
		return "notify.submitted." + part
	}
	return "notify.status." + part
}

func (t Texts) vars(n Notification) map[string]string {
	name := n.Recipient.Name
	if name == "" {
		name = n.Recipient.Email
	}
	return map[string]string{
		"name":   name,
		"number": n.ComplaintNumber,
		"title":  n.Title,
		"status": t.StatusLabel(n.Recipient.Language, n.Event),
	}
}

// MailSender is satisfied by *mail.Dialer.
type MailSender interface {
	DialAndSend(m ...*mail.Message) error
}

// NewDialer builds an SMTP dialer that requires STARTTLS.
func NewDialer(host string, port int, user, pass string, skipVerify bool) *mail.Dialer {
	d := mail.NewDialer(host, port, user, pass)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: skipVerify,
	}
	return d
}

// MailChannel sends notifications by e-mail.
type MailChannel struct {
	Sender MailSender
	From   string
	Texts  Texts
}

func (c *MailChannel) Name() string { return models.ChannelEmail }

func (c *MailChannel) Send(ctx context.Context, n Notification) error {
	if n.Recipient.Email == "" {
		return nil
	}
	m := mail.NewMessage()
	m.SetHeader("From", c.From)
	m.SetHeader("To", n.Recipient.Email)
	m.SetHeader("Subject", c.Texts.Subject(n))
	m.SetBody("text/plain", c.Texts.Body(n))
	m.AddAlternative("text/html", "<p>"+strings.ReplaceAll(html.EscapeString(c.Texts.Body(n)), "\n", "<br>")+"</p>")
	return c.Sender.DialAndSend(m)
}

// NotificationSaver is the storage method the inbox channel needs.
type NotificationSaver interface {
	SaveNotification(ctx context.Context, n *models.Notification) error
}

// InboxChannel stores notifications for the portal inbox.
type InboxChannel struct {
	Store NotificationSaver
	Texts Texts
}

func (c *InboxChannel) Name() string { return models.ChannelInbox }

func (c *InboxChannel) Send(ctx context.Context, n Notification) error {
	if n.Recipient.UserID == "" {
		return fmt.Errorf("inbox notification without user id")
	}
	return c.Store.SaveNotification(ctx, &models.Notification{
		UserID:          n.Recipient.UserID,
		ComplaintNumber: n.ComplaintNumber,
		Event:           n.Event,
		Title:           c.Texts.Subject(n),
		Message:         c.Texts.Body(n),
		CreatedAt:       n.OccurredAt,
	})
}

// EventPublisher is satisfied by *storage.Service.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev models.StatusEvent) error
}

// FeedChannel publishes status events for the live websocket feed.
type FeedChannel struct {
	Publisher EventPublisher
}

func (c *FeedChannel) Name() string     { return "feed" }
func (c *FeedChannel) AlwaysSend() bool { return true }

func (c *FeedChannel) Send(ctx context.Context, n Notification) error {
	return c.Publisher.PublishEvent(ctx, models.StatusEvent{
		ComplaintNumber: n.ComplaintNumber,
		Title:           n.Title,
		Event:           n.Event,
		SubmitterID:     n.Recipient.UserID,
		OccurredAt:      n.OccurredAt,
	})
}
