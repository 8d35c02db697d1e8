package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Role is the closed set of user roles.
type Role string

const (
	RoleCitizen      Role = "CITIZEN"
	RoleFieldOfficer Role = "FIELD_OFFICER"
	RoleAdmin        Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleFieldOfficer, RoleAdmin:
		return true
	}
	return false
}

// IsOfficial reports whether the role handles complaints.
func (r Role) IsOfficial() bool {
	return r == RoleFieldOfficer || r == RoleAdmin
}

// Notification channel names accepted in User.NotifyChannels.
const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
	ChannelInbox    = "inbox"
)

// User is a single account record tagged with a role. Citizen and official
// attributes are optional groups on the same row.
type User struct {
	ID           string `gorm:"type:uuid;primaryKey" json:"id"`
	FullName     string `gorm:"not null" json:"full_name"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Phone        string `json:"phone,omitempty"`
	Role         Role   `gorm:"type:varchar(20);not null;index" json:"role"`
	Language     string `gorm:"type:varchar(8);default:en" json:"language"`

	// TelegramChatID is 0 when the user never linked a chat.
	TelegramChatID int64          `gorm:"index" json:"-"`
	NotifyChannels pq.StringArray `gorm:"type:text[]" json:"notify_channels"`

	// Citizen attributes.
	Address string `json:"address,omitempty"`

	// Official attributes.
	EmployeeID *string `gorm:"uniqueIndex" json:"employee_id,omitempty"`
	Department string  `json:"department,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate is a GORM hook that assigns a UUID when ID is empty.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// WantsChannel reports whether the user opted into a notification channel.
// An empty preference list means every channel.
func (u *User) WantsChannel(channel string) bool {
	if len(u.NotifyChannels) == 0 {
		return true
	}
	for _, c := range u.NotifyChannels {
		if c == channel {
			return true
		}
	}
	return false
}
