// Package analysis derives informational complaint attributes, such as the
// SLA deadline, from the complaint priority.
package analysis

import (
	"smartnagrik/backend/internal/config"
	"smartnagrik/backend/internal/models"
	"time"
)

// SLAWindow returns the resolution window for a priority.
// Unknown priorities get the MEDIUM window.
func SLAWindow(p models.Priority) time.Duration {
	if w, ok := config.SLAWindows[string(p)]; ok {
		return w
	}
	return config.SLAWindows[string(models.PriorityMedium)]
}

// SLADeadline returns the deadline for a complaint submitted at submittedAt.
func SLADeadline(p models.Priority, submittedAt time.Time) time.Time {
	return submittedAt.Add(SLAWindow(p))
}
