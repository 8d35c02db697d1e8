// Package complaint is the complaint lifecycle engine: submission with zone
// routing and numbering, and status transitions along a fixed graph.
package complaint

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"smartnagrik/backend/internal/analysis"
	"smartnagrik/backend/internal/apperr"
	"smartnagrik/backend/internal/config"
	"smartnagrik/backend/internal/models"
	"smartnagrik/backend/internal/notify"
	"smartnagrik/backend/internal/storage"
)

// ZoneResolver maps a coordinate to a zone, or nil when there is none.
type ZoneResolver interface {
	ResolveZone(ctx context.Context, lat, lng float64) (*models.Zone, error)
}

// NumberGenerator mints unique complaint numbers per period.
type NumberGenerator interface {
	NextNumber(ctx context.Context, period int) (string, error)
	Prefix(period int) string
	Reconcile(ctx context.Context, period int, highest string) error
}

// Service handles the business logic for complaints.
type Service struct {
	Storage  storage.Storage
	Zones    ZoneResolver
	Numbers  NumberGenerator
	Notifier notify.Dispatcher

	// Now is the clock used for timestamps and the numbering period.
	Now func() time.Time
}

// NewService creates a new complaint service.
func NewService(s storage.Storage, zones ZoneResolver, numbers NumberGenerator, d notify.Dispatcher) *Service {
	return &Service{
		Storage:  s,
		Zones:    zones,
		Numbers:  numbers,
		Notifier: d,
		Now:      time.Now,
	}
}

// Draft is a complaint as entered by the citizen.
type Draft struct {
	Title       string
	Description string
	Address     string
	Latitude    *float64
	Longitude   *float64
	SubmitterID string
	CategoryID  uint
	Priority    models.Priority
}

// Validate checks required fields and coordinate ranges.
func (d *Draft) Validate() error {
	switch {
	case strings.TrimSpace(d.Title) == "":
		return apperr.Validation("title is required")
	case utf8.RuneCountInString(d.Title) > config.MaxTitleLength:
		return apperr.Validation("title must be at most %d characters", config.MaxTitleLength)
	case strings.TrimSpace(d.Description) == "":
		return apperr.Validation("description is required")
	case d.Latitude == nil || d.Longitude == nil:
		return apperr.Validation("latitude and longitude are required")
	case math.IsNaN(*d.Latitude) || *d.Latitude < config.MinLatitude || *d.Latitude > config.MaxLatitude:
		return apperr.Validation("latitude %v is out of range", *d.Latitude)
	case math.IsNaN(*d.Longitude) || *d.Longitude < config.MinLongitude || *d.Longitude > config.MaxLongitude:
		return apperr.Validation("longitude %v is out of range", *d.Longitude)
	case d.SubmitterID == "":
		return apperr.Validation("submitter is required")
	case d.CategoryID == 0:
		return apperr.Validation("category is required")
	case d.Priority != "" && !d.Priority.Valid():
		return apperr.Validation("unknown priority %q", d.Priority)
	}
	return nil
}

// Submit validates a draft, routes it to a zone, mints its number and stores
// it with status SUBMITTED. The submitter is notified after the record is saved.
//
// Validation happens before a number is reserved. A number reserved for a
// record that then fails to save is never reissued.
func (s *Service) Submit(ctx context.Context, d Draft) (*models.Complaint, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	submitter, err := s.Storage.GetUserByID(ctx, d.SubmitterID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Validation("unknown submitter %s", d.SubmitterID)
		}
		return nil, err
	}
	if _, err := s.Storage.GetCategoryByID(ctx, d.CategoryID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Validation("unknown category %d", d.CategoryID)
		}
		return nil, err
	}

	zone, err := s.Zones.ResolveZone(ctx, *d.Latitude, *d.Longitude)
	if err != nil {
		return nil, apperr.StoreUnavailable(err, "resolve zone")
	}

	now := s.Now()
	period := now.UTC().Year()
	priority := d.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	deadline := analysis.SLADeadline(priority, now)

	c := &models.Complaint{
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		Address:     strings.TrimSpace(d.Address),
		SubmitterID: d.SubmitterID,
		CategoryID:  d.CategoryID,
		Latitude:    *d.Latitude,
		Longitude:   *d.Longitude,
		Status:      models.StatusSubmitted,
		Priority:    priority,
		SubmittedAt: now,
		SLADeadline: &deadline,
	}
	if zone != nil {
		c.ZoneID = &zone.ID
	}

	// A number that is already stored means the counter lost its state.
	// The counter is moved past the stored numbers and a fresh one is minted.
	for attempt := 1; ; attempt++ {
		number, err := s.Numbers.NextNumber(ctx, period)
		if err != nil {
			return nil, err
		}
		c.ID = 0
		c.ComplaintNumber = number

		err = s.Storage.CreateComplaint(ctx, c)
		if err == nil {
			break
		}
		if !errors.Is(err, apperr.ErrConflict) || attempt == config.NumberAttempts {
			log.Printf("ERROR: complaint %s not saved, number is abandoned: %v", number, err)
			return nil, err
		}
		log.Printf("WARN: complaint number %s is already taken, reconciling the counter", number)
		if err := s.ReconcileNumbers(ctx, period); err != nil {
			return nil, err
		}
	}

	log.Printf("INFO: complaint %s submitted by %s", c.ComplaintNumber, c.SubmitterID)
	s.Notifier.NotifySubmission(notify.RecipientFromUser(submitter), c.ComplaintNumber, c.Title)
	return c, nil
}

// ReconcileNumbers moves the number counter of period past the highest
// number already stored for it.
func (s *Service) ReconcileNumbers(ctx context.Context, period int) error {
	highest, err := s.Storage.HighestComplaintNumber(ctx, s.Numbers.Prefix(period))
	if err != nil {
		return err
	}
	if highest == "" {
		return nil
	}
	return s.Numbers.Reconcile(ctx, period, highest)
}

// TransitionRequest asks for one status change.
type TransitionRequest struct {
	Target models.Status
	// Proof is required when Target is RESOLVED and ignored otherwise.
	Proof *string
	Notes string
	// AssigneeID is stored when Target is ASSIGNED.
	AssigneeID string
	ActorID    string
}

// Transition moves complaint id to req.Target if the edge is legal. The check
// and the write run as one unit per record, so of two concurrent requests from
// the same status only one can succeed.
func (s *Service) Transition(ctx context.Context, id uint, req TransitionRequest) (*models.Complaint, error) {
	if !req.Target.Valid() {
		return nil, apperr.Validation("unknown status %q", req.Target)
	}

	var assignee *string
	if req.Target == models.StatusAssigned && req.AssigneeID != "" {
		official, err := s.Storage.GetUserByID(ctx, req.AssigneeID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.Validation("unknown assignee %s", req.AssigneeID)
			}
			return nil, err
		}
		if !official.Role.IsOfficial() {
			return nil, apperr.Validation("assignee %s is not an official", req.AssigneeID)
		}
		assignee = &official.ID
	}

	updated, err := s.Storage.UpdateComplaint(ctx, id, func(c *models.Complaint) (*models.StatusHistory, error) {
		from := c.Status
		if !CanTransition(from, req.Target) {
			return nil, apperr.InvalidTransition(string(from), string(req.Target))
		}
		if req.Target == models.StatusResolved && (req.Proof == nil || strings.TrimSpace(*req.Proof) == "") {
			return nil, apperr.Validation("a proof image is required to resolve a complaint")
		}

		now := s.Now()
		c.Status = req.Target
		switch req.Target {
		case models.StatusAssigned:
			if c.AssignedAt == nil {
				t := latest(now, &c.SubmittedAt)
				c.AssignedAt = &t
			}
			if assignee != nil {
				c.AssignedToID = assignee
			}
		case models.StatusResolved:
			if c.ResolvedAt == nil {
				t := latest(now, &c.SubmittedAt, c.AssignedAt)
				c.ResolvedAt = &t
			}
			proof := strings.TrimSpace(*req.Proof)
			c.ResolutionProofImage = &proof
			if req.Notes != "" {
				c.ResolutionNotes = req.Notes
			}
		case models.StatusClosed:
			if c.ClosedAt == nil {
				t := latest(now, &c.SubmittedAt, c.AssignedAt, c.ResolvedAt)
				c.ClosedAt = &t
			}
		}

		return &models.StatusHistory{
			FromStatus: from,
			ToStatus:   req.Target,
			ActorID:    req.ActorID,
			Notes:      req.Notes,
			CreatedAt:  now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("INFO: complaint %s moved to %s by %s", updated.ComplaintNumber, updated.Status, req.ActorID)
	s.notifyStatusChange(ctx, updated)
	return updated, nil
}

// notifyStatusChange runs after the commit, so it must not depend on the
// caller still waiting for the response.
func (s *Service) notifyStatusChange(ctx context.Context, c *models.Complaint) {
	submitter, err := s.Storage.GetUserByID(context.WithoutCancel(ctx), c.SubmitterID)
	if err != nil {
		log.Printf("ERROR: notify: cannot load submitter of %s: %v", c.ComplaintNumber, err)
		return
	}
	s.Notifier.NotifyStatusChange(notify.RecipientFromUser(submitter), c.ComplaintNumber, c.Status, c.Title)
}

// Get returns a complaint by store id.
func (s *Service) Get(ctx context.Context, id uint) (*models.Complaint, error) {
	return s.Storage.GetComplaintByID(ctx, id)
}

// Track returns a complaint by its public number.
func (s *Service) Track(ctx context.Context, number string) (*models.Complaint, error) {
	return s.Storage.GetComplaintByNumber(ctx, strings.ToUpper(strings.TrimSpace(number)))
}

// List returns complaints matching f.
func (s *Service) List(ctx context.Context, f models.ComplaintFilter) ([]models.Complaint, error) {
	return s.Storage.ListComplaints(ctx, f)
}

// History returns the transition log of complaint id, oldest first.
func (s *Service) History(ctx context.Context, id uint) ([]models.StatusHistory, error) {
	if _, err := s.Storage.GetComplaintByID(ctx, id); err != nil {
		return nil, err
	}
	return s.Storage.GetStatusHistory(ctx, id)
}

// latest returns the latest of now and the set timestamps, so lifecycle
// timestamps never decrease.
func latest(now time.Time, prev ...*time.Time) time.Time {
	out := now
	for _, p := range prev {
		if p != nil && p.After(out) {
			out = *p
		}
	}
	return out
}
