package complaint

import "smartnagrik/backend/internal/models"

// transitions is the complete set of legal status edges. Anything not listed,
// including a move to the current status, is rejected.
var transitions = map[models.Status][]models.Status{
	models.StatusSubmitted:  {models.StatusAssigned, models.StatusEscalated, models.StatusRejected},
	models.StatusAssigned:   {models.StatusInProgress, models.StatusEscalated, models.StatusRejected},
	models.StatusInProgress: {models.StatusResolved, models.StatusEscalated, models.StatusRejected},
	models.StatusResolved:   {models.StatusClosed},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to models.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedTargets lists the statuses reachable in one step from s.
func AllowedTargets(s models.Status) []models.Status {
	out := make([]models.Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s models.Status) bool {
	return len(transitions[s]) == 0
}
