package models

import "time"

// Status is a node of the complaint lifecycle graph.
type Status string

const (
	StatusSubmitted  Status = "SUBMITTED"
	StatusAssigned   Status = "ASSIGNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusClosed     Status = "CLOSED"
	StatusEscalated  Status = "ESCALATED"
	StatusRejected   Status = "REJECTED"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusSubmitted,
	StatusAssigned,
	StatusInProgress,
	StatusResolved,
	StatusClosed,
	StatusEscalated,
	StatusRejected,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Priority is informational and never changed by the lifecycle engine.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Complaint is a citizen grievance tracked through the lifecycle.
// ID is the store key; ComplaintNumber is the public identifier.
type Complaint struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	ComplaintNumber string `gorm:"type:varchar(50);uniqueIndex;not null" json:"complaint_number"`

	Title       string `gorm:"type:varchar(500);not null" json:"title"`
	Description string `gorm:"type:text;not null" json:"description"`
	Address     string `gorm:"type:text" json:"address,omitempty"`
	SubmitterID string `gorm:"type:uuid;not null;index" json:"submitter_id"`
	CategoryID  uint   `gorm:"not null;index" json:"category_id"`

	Latitude  float64 `gorm:"not null" json:"latitude"`
	Longitude float64 `gorm:"not null" json:"longitude"`
	ZoneID    *uint   `gorm:"index" json:"zone_id"`

	Status       Status   `gorm:"type:varchar(20);not null;index" json:"status"`
	Priority     Priority `gorm:"type:varchar(20);not null" json:"priority"`
	AssignedToID *string  `gorm:"type:uuid;index" json:"assigned_to_id,omitempty"`

	SubmittedAt time.Time  `gorm:"not null" json:"submitted_at"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	SLADeadline *time.Time `json:"sla_deadline,omitempty"`

	ResolutionNotes      string  `gorm:"type:text" json:"resolution_notes,omitempty"`
	ResolutionProofImage *string `gorm:"type:text" json:"resolution_proof_image,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers never share timestamp pointers.
func (c *Complaint) Clone() *Complaint {
	if c == nil {
		return nil
	}
	out := *c
	out.ZoneID = cloneUint(c.ZoneID)
	out.AssignedToID = cloneString(c.AssignedToID)
	out.AssignedAt = cloneTime(c.AssignedAt)
	out.ResolvedAt = cloneTime(c.ResolvedAt)
	out.ClosedAt = cloneTime(c.ClosedAt)
	out.SLADeadline = cloneTime(c.SLADeadline)
	out.ResolutionProofImage = cloneString(c.ResolutionProofImage)
	return &out
}

// ComplaintFilter narrows complaint listings.
type ComplaintFilter struct {
	Status      Status
	ZoneID      *uint
	SubmitterID string
	Limit       int
	Offset      int
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneUint(u *uint) *uint {
	if u == nil {
		return nil
	}
	v := *u
	return &v
}
