package feed

import "smartnagrik/backend/internal/models"

// Client is one live feed subscriber.
type Client interface {
	// Matches reports whether the client should receive ev.
	Matches(ev models.StatusEvent) bool

	// GetSendChannel returns the channel the hub writes events to.
	GetSendChannel() chan<- models.StatusEvent

	// Run starts the client's pumps.
	Run()
	// Close stops the client. The hub calls it once, after unregistering.
	Close()
}

// Filter selects events for a subscriber. Officials see every complaint;
// citizens only their own. Number narrows the feed to one complaint.
type Filter struct {
	UserID   string
	Official bool
	Number   string
}

// Matches applies the filter to ev.
func (f Filter) Matches(ev models.StatusEvent) bool {
	if f.Number != "" && ev.ComplaintNumber != f.Number {
		return false
	}
	return f.Official || ev.SubmitterID == f.UserID
}
