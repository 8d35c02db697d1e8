package config

import "time"

const (
	// Complaint numbering: SNS-<year>-<sequence>
	NumberPrefix = "SNS"
	NumberWidth  = 3

	// Submit attempts when a minted number is already stored
	NumberAttempts = 3

	// Coordinate bounds
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0

	// Field limits
	MaxTitleLength = 500

	// Zone catalog
	ZoneCacheTTL = time.Minute

	// Redis
	SequenceKeyPrefix  = "sns:complaint_seq:"
	StatusEventChannel = "sns:complaint_events"
)

// SLAWindows maps a priority name to the informational resolution window.
var SLAWindows = map[string]time.Duration{
	"URGENT": 24 * time.Hour,
	"HIGH":   72 * time.Hour,
	"MEDIUM": 7 * 24 * time.Hour,
	"LOW":    14 * 24 * time.Hour,
}
