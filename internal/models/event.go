package models

import "time"

// StatusEvent is published on the live feed after a complaint changes state.
type StatusEvent struct {
	ComplaintNumber string    `json:"complaint_number"`
	Title           string    `json:"title"`
	Event           string    `json:"event"` // "SUBMITTED" or the new status name
	SubmitterID     string    `json:"submitter_id"`
	OccurredAt      time.Time `json:"occurred_at"`
}
