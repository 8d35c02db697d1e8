package models

import "time"

// StatusHistory is an immutable record of one successful transition.
// Rows are written in the same transaction as the complaint update.
type StatusHistory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ComplaintID uint      `gorm:"not null;index:idx_history_complaint" json:"complaint_id"`
	FromStatus  Status    `gorm:"type:varchar(20)" json:"from_status"`
	ToStatus    Status    `gorm:"type:varchar(20);not null" json:"to_status"`
	ActorID     string    `gorm:"type:text" json:"actor_id,omitempty"`
	Notes       string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt   time.Time `gorm:"not null;index:idx_history_complaint" json:"created_at"`
}

// TableName keeps the table name singular like the other audit tables.
func (StatusHistory) TableName() string {
	return "complaint_status_history"
}

// Notification is an inbox entry shown to the user in the portal.
type Notification struct {
	ID              string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          string    `gorm:"type:uuid;not null;index" json:"user_id"`
	ComplaintNumber string    `gorm:"type:varchar(50);index" json:"complaint_number"`
	Event           string    `gorm:"type:varchar(20);not null" json:"event"`
	Title           string    `json:"title"`
	Message         string    `gorm:"type:text" json:"message"`
	IsRead          bool      `json:"is_read"`
	CreatedAt       time.Time `json:"created_at"`
}
