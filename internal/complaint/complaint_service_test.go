package complaint_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sync"
	"testing"
	"time"

	"smartnagrik/backend/internal/apperr"
	"smartnagrik/backend/internal/complaint"
	"smartnagrik/backend/internal/config"
	"smartnagrik/backend/internal/georoute"
	"smartnagrik/backend/internal/models"
	"smartnagrik/backend/internal/notify"
	"smartnagrik/backend/internal/numbering"
	"smartnagrik/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorage is an in-memory store whose CreateComplaint can be made to fail.
type MockStorage struct {
	*storage.MemoryStore
	mock.Mock
}

func (m *MockStorage) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	args := m.Called(ctx, c)
	if err := args.Error(0); err != nil {
		return err
	}
	return m.MemoryStore.CreateComplaint(ctx, c)
}

// cancellingStore cancels the caller's context right after an update commits,
// like a client that hangs up while the response is being written.
type cancellingStore struct {
	*storage.MemoryStore
	cancel context.CancelFunc
}

func (s *cancellingStore) UpdateComplaint(ctx context.Context, id uint, mutate storage.MutateFunc) (*models.Complaint, error) {
	c, err := s.MemoryStore.UpdateComplaint(ctx, id, mutate)
	s.cancel()
	return c, err
}

func (s *cancellingStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.StoreUnavailable(err, "get user")
	}
	return s.MemoryStore.GetUserByID(ctx, id)
}

type fixture struct {
	svc      *complaint.Service
	store    storage.Storage
	recorder *notify.Recorder
	citizen  *models.User
	officer  *models.User
	category *models.Category
	clock    *clock
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFixture(t *testing.T, store storage.Storage, mem *storage.MemoryStore) *fixture {
	t.Helper()
	ctx := context.Background()

	citizen := &models.User{FullName: "Asha Patil", Email: "asha@example.org", Role: models.RoleCitizen, Language: "en"}
	require.NoError(t, mem.SaveUser(ctx, citizen))
	officer := &models.User{FullName: "R. Singh", Email: "singh@city.gov", Role: models.RoleFieldOfficer}
	require.NoError(t, mem.SaveUser(ctx, officer))
	category := &models.Category{Name: "Roads"}
	require.NoError(t, mem.SaveCategory(ctx, category))

	clk := &clock{now: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)}
	rec := &notify.Recorder{}
	svc := complaint.NewService(store, georoute.NewRouter(store), numbering.NewGenerator(numbering.NewMemorySequence()), rec)
	svc.Now = clk.Now

	return &fixture{svc: svc, store: store, recorder: rec, citizen: citizen, officer: officer, category: category, clock: clk}
}

func newMemoryFixture(t *testing.T) *fixture {
	mem := storage.NewMemoryStore()
	return newFixture(t, mem, mem)
}

func coord(v float64) *float64 { return &v }

func (f *fixture) draft() complaint.Draft {
	return complaint.Draft{
		Title:       "Pothole on Janpath",
		Description: "Deep pothole near the bus stop",
		Latitude:    coord(28.61),
		Longitude:   coord(77.20),
		SubmitterID: f.citizen.ID,
		CategoryID:  f.category.ID,
	}
}

func proof(s string) *string { return &s }

var numberPattern = regexp.MustCompile(`^SNS-\d{4}-\d{3,}$`)

func TestSubmit_ValidDraft(t *testing.T) {
	// Arrange
	f := newMemoryFixture(t)
	ctx := context.Background()

	// Act
	c, err := f.svc.Submit(ctx, f.draft())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, c.Status)
	assert.Equal(t, "SNS-2025-001", c.ComplaintNumber)
	assert.Equal(t, f.clock.Now(), c.SubmittedAt)
	assert.Equal(t, models.PriorityMedium, c.Priority)
	require.NotNil(t, c.SLADeadline)
	assert.Equal(t, c.SubmittedAt.Add(7*24*time.Hour), *c.SLADeadline)
	assert.Nil(t, c.ZoneID, "no zones defined")

	sent := f.recorder.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.EventSubmitted, sent[0].Event)
	assert.Equal(t, "asha@example.org", sent[0].Recipient.Email)
}

func TestSubmit_AssignsZone(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	lat, lng := 28.6, 77.2
	zone := &models.Zone{Name: "Central", CentroidLat: &lat, CentroidLng: &lng}
	require.NoError(t, f.store.SaveZone(ctx, zone))

	c, err := f.svc.Submit(ctx, f.draft())

	require.NoError(t, err)
	require.NotNil(t, c.ZoneID)
	assert.Equal(t, zone.ID, *c.ZoneID)
}

func TestSubmit_ValidationErrors(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		modify func(d *complaint.Draft)
	}{
		{"missing title", func(d *complaint.Draft) { d.Title = "  " }},
		{"missing description", func(d *complaint.Draft) { d.Description = "" }},
		{"missing latitude", func(d *complaint.Draft) { d.Latitude = nil }},
		{"latitude out of range", func(d *complaint.Draft) { d.Latitude = coord(200) }},
		{"longitude out of range", func(d *complaint.Draft) { d.Longitude = coord(-180.5) }},
		{"latitude NaN", func(d *complaint.Draft) { d.Latitude = coord(math.NaN()) }},
		{"longitude NaN", func(d *complaint.Draft) { d.Longitude = coord(math.NaN()) }},
		{"missing submitter", func(d *complaint.Draft) { d.SubmitterID = "" }},
		{"missing category", func(d *complaint.Draft) { d.CategoryID = 0 }},
		{"unknown category", func(d *complaint.Draft) { d.CategoryID = 999 }},
		{"unknown submitter", func(d *complaint.Draft) { d.SubmitterID = "5a0e8c4e-0000-0000-0000-000000000000" }},
		{"unknown priority", func(d *complaint.Draft) { d.Priority = "CRITICAL" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := f.draft()
			tt.modify(&d)

			c, err := f.svc.Submit(ctx, d)

			assert.Nil(t, c)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
	assert.Empty(t, f.recorder.Sent())
}

func TestSubmit_InvalidCoordinatesConsumeNoNumber(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	bad := f.draft()
	bad.Latitude = coord(200)

	_, err := f.svc.Submit(ctx, bad)
	require.ErrorIs(t, err, apperr.ErrValidation)
	c, err := f.svc.Submit(ctx, f.draft())

	require.NoError(t, err)
	assert.Equal(t, "SNS-2025-001", c.ComplaintNumber)
}

func TestSubmit_StoreFailureLeavesGapAndNoNotification(t *testing.T) {
	// Arrange
	mem := storage.NewMemoryStore()
	store := &MockStorage{MemoryStore: mem}
	f := newFixture(t, store, mem)
	ctx := context.Background()
	store.On("CreateComplaint", mock.Anything, mock.Anything).
		Return(apperr.StoreUnavailable(errors.New("connection reset"), "create complaint")).Once()
	store.On("CreateComplaint", mock.Anything, mock.Anything).Return(nil)

	// Act
	failed, err := f.svc.Submit(ctx, f.draft())
	retried, retryErr := f.svc.Submit(ctx, f.draft())

	// Assert
	assert.Nil(t, failed)
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	require.NoError(t, retryErr)
	assert.Equal(t, "SNS-2025-002", retried.ComplaintNumber, "the number of the failed attempt is not reused")
	assert.Len(t, f.recorder.Sent(), 1)
}

func TestSubmit_FreshCounterIsReconciledWithStore(t *testing.T) {
	// Arrange
	f := newMemoryFixture(t)
	ctx := context.Background()
	first, err := f.svc.Submit(ctx, f.draft())
	require.NoError(t, err)

	// Act: the counter loses its state while the stored complaints remain.
	f.svc.Numbers = numbering.NewGenerator(numbering.NewMemorySequence())
	second, err := f.svc.Submit(ctx, f.draft())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "SNS-2025-001", first.ComplaintNumber)
	assert.Equal(t, "SNS-2025-002", second.ComplaintNumber)
	assert.Len(t, f.recorder.Sent(), 2)
}

func TestReconcileNumbers_SeedsFromStoredNumbers(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	for _, number := range []string{"SNS-2025-041", "SNS-2025-007", "SNS-2024-900"} {
		require.NoError(t, f.store.CreateComplaint(ctx, &models.Complaint{
			ComplaintNumber: number,
			Title:           "Imported",
			Description:     "Imported complaint",
			SubmitterID:     f.citizen.ID,
			CategoryID:      f.category.ID,
			Status:          models.StatusSubmitted,
			Priority:        models.PriorityMedium,
		}))
	}

	require.NoError(t, f.svc.ReconcileNumbers(ctx, 2025))
	c, err := f.svc.Submit(ctx, f.draft())

	require.NoError(t, err)
	assert.Equal(t, "SNS-2025-042", c.ComplaintNumber)
}

func TestSubmit_PersistentConflictGivesUp(t *testing.T) {
	mem := storage.NewMemoryStore()
	store := &MockStorage{MemoryStore: mem}
	f := newFixture(t, store, mem)
	ctx := context.Background()
	store.On("CreateComplaint", mock.Anything, mock.Anything).Return(apperr.Conflict("complaint already exists"))

	c, err := f.svc.Submit(ctx, f.draft())

	assert.Nil(t, c)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	store.AssertNumberOfCalls(t, "CreateComplaint", config.NumberAttempts)
	assert.Empty(t, f.recorder.Sent())
}

func TestSubmit_ConcurrentNumbersAreUnique(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	const n = 100
	numbers := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := f.svc.Submit(ctx, f.draft())
			if assert.NoError(t, err) {
				numbers[i] = c.ComplaintNumber
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, num := range numbers {
		assert.Regexp(t, numberPattern, num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
	count, _ := f.store.CountComplaints(ctx)
	assert.Equal(t, int64(n), count)
}

func TestSubmit_NumberPeriodFollowsYear(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, f.draft())
	require.NoError(t, err)
	f.clock.Set(time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC))
	second, err := f.svc.Submit(ctx, f.draft())
	require.NoError(t, err)

	assert.Equal(t, "SNS-2025-001", first.ComplaintNumber)
	assert.Equal(t, "SNS-2026-001", second.ComplaintNumber)
}

func TestTransition_AssignSetsTimestampOnce(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	c, _ := f.svc.Submit(ctx, f.draft())
	f.clock.Advance(time.Hour)

	assigned, err := f.svc.Transition(ctx, c.ID, complaint.TransitionRequest{
		Target: models.StatusAssigned, AssigneeID: f.officer.ID, ActorID: "admin",
	})
	require.NoError(t, err)
	require.NotNil(t, assigned.AssignedAt)
	firstAssignedAt := *assigned.AssignedAt
	assert.Equal(t, f.officer.ID, *assigned.AssignedToID)

	f.clock.Advance(time.Hour)
	_, err = f.svc.Transition(ctx, c.ID, complaint.TransitionRequest{Target: models.StatusAssigned})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	current, _ := f.store.GetComplaintByID(ctx, c.ID)
	assert.Equal(t, models.StatusAssigned, current.Status)
	assert.Equal(t, firstAssignedAt, *current.AssignedAt)
}

func TestTransition_NotifiesAfterCallerHangsUp(t *testing.T) {
	// Arrange
	mem := storage.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, &cancellingStore{MemoryStore: mem, cancel: cancel}, mem)
	created, err := f.svc.Submit(context.Background(), f.draft())
	require.NoError(t, err)

	// Act
	updated, err := f.svc.Transition(ctx, created.ID, complaint.TransitionRequest{Target: models.StatusAssigned})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, updated.Status)
	sent := f.recorder.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "ASSIGNED", sent[1].Event)
	assert.Equal(t, f.citizen.ID, sent[1].Recipient.UserID)
}

func TestTransition_IllegalEdges(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	c, _ := f.svc.Submit(ctx, f.draft())

	for _, target := range []models.Status{models.StatusResolved, models.StatusInProgress, models.StatusClosed, models.StatusSubmitted} {
		_, err := f.svc.Transition(ctx, c.ID, complaint.TransitionRequest{Target: target, Proof: proof("img://p")})
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition, string(target))
	}

	current, _ := f.store.GetComplaintByID(ctx, c.ID)
	assert.Equal(t, models.StatusSubmitted, current.Status)
	history, _ := f.store.GetStatusHistory(ctx, c.ID)
	assert.Empty(t, history)
	assert.Len(t, f.recorder.Sent(), 1, "only the submission notification")
}

func TestTransition_ResolveRequiresProof(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	c, _ := f.svc.Submit(ctx, f.draft())
	_, _ = f.svc.Transition(ctx, c.ID, complaint.TransitionRequest{Target: models.StatusAssigned})
	_, _ = f.svc.Transition(ctx, c.ID, complaint.TransitionRequest{Target: models.StatusInProgress})

	_, err := f.svc.Transition(ctx, c.ID, complaint.TransitionRequest{Target: models.StatusResolved})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	current, _ := f.store.GetComplaintByID(ctx, c.ID)
	assert.Equal(t, models.StatusInProgress, current.Status)
	assert.Nil(t, current.ResolutionProofImage)

	resolved, err := f.svc.Transition(ctx, c.ID, complaint.TransitionRequest{
		Target: models.StatusResolved, Proof: proof("img://proof1"), Notes: "Patched with asphalt",
	})
	require.NoError(t, err)
	assert.Equal(t, "img://proof1", *resolved.ResolutionProofImage)
	assert.Equal(t, "Patched with asphalt", resolved.ResolutionNotes)
	assert.NotNil(t, resolved.ResolvedAt)
}

func TestTransition_UnknownIDAndStatus(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	_, err := f.svc.Transition(ctx, 42, complaint.TransitionRequest{Target: models.StatusAssigned})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Transition(ctx, 42, complaint.TransitionRequest{Target: "DONE"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTransition_AssigneeMustBeOfficial(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	c, _ := f.svc.Submit(ctx, f.draft())

	_, err := f.svc.Transition(ctx, c.ID, complaint.TransitionRequest{Target: models.StatusAssigned, AssigneeID: f.citizen.ID})

	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTransition_SideBranchesFromNonTerminalStates(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	for _, branch := range []models.Status{models.StatusEscalated, models.StatusRejected} {
		c, _ := f.svc.Submit(ctx, f.draft())
		_, _ = f.svc.Transition(ctx, c.ID, complaint.TransitionRequest{Target: models.StatusAssigned})

		moved, err := f.svc.Transition(ctx, c.ID, complaint.TransitionRequest{Target: branch})
		require.NoError(t, err)
		assert.Equal(t, branch, moved.Status)

		_, err = f.svc.Transition(ctx, c.ID, complaint.TransitionRequest{Target: models.StatusInProgress})
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition, "%s is terminal", branch)
	}
}

func TestTransition_ConcurrentSameEdgeOnlyOneWins(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	c, _ := f.svc.Submit(ctx, f.draft())

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		invalid   int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := models.StatusAssigned
			if i%2 == 1 {
				target = models.StatusRejected
			}
			_, err := f.svc.Transition(ctx, c.ID, complaint.TransitionRequest{Target: target, ActorID: fmt.Sprint(i)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperr.ErrInvalidTransition):
				invalid++
			}
		}(i)
	}
	wg.Wait()

	// ASSIGNED -> REJECTED is legal, so at most two requests can succeed, and
	// never two from SUBMITTED.
	history, _ := f.store.GetStatusHistory(ctx, c.ID)
	fromSubmitted := 0
	for _, h := range history {
		if h.FromStatus == models.StatusSubmitted {
			fromSubmitted++
		}
	}
	assert.Equal(t, 1, fromSubmitted)
	assert.Equal(t, n, successes+invalid)
	assert.Equal(t, len(history), successes)
}

func TestLifecycle_EndToEnd(t *testing.T) {
	// Arrange
	f := newMemoryFixture(t)
	ctx := context.Background()

	// Act
	c, err := f.svc.Submit(ctx, f.draft())
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, c.Status)
	assert.Nil(t, c.ZoneID)
	assert.Regexp(t, numberPattern, c.ComplaintNumber)
	assert.Equal(t, "SNS-2025-001", c.ComplaintNumber)

	steps := []complaint.TransitionRequest{
		{Target: models.StatusAssigned, AssigneeID: f.officer.ID},
		{Target: models.StatusInProgress},
		{Target: models.StatusResolved, Proof: proof("img://proof1")},
		{Target: models.StatusClosed, ActorID: f.citizen.ID},
	}
	var last *models.Complaint
	for _, step := range steps {
		f.clock.Advance(time.Minute)
		last, err = f.svc.Transition(ctx, c.ID, step)
		require.NoError(t, err, string(step.Target))
	}

	// Assert
	assert.Equal(t, models.StatusClosed, last.Status)
	require.NotNil(t, last.AssignedAt)
	require.NotNil(t, last.ResolvedAt)
	require.NotNil(t, last.ClosedAt)
	assert.False(t, last.AssignedAt.Before(last.SubmittedAt))
	assert.False(t, last.ResolvedAt.Before(*last.AssignedAt))
	assert.False(t, last.ClosedAt.Before(*last.ResolvedAt))
	assert.Equal(t, "img://proof1", *last.ResolutionProofImage)

	sent := f.recorder.Sent()
	require.Len(t, sent, 5)
	events := make([]string, len(sent))
	for i, n := range sent {
		events[i] = n.Event
		assert.Equal(t, c.ComplaintNumber, n.ComplaintNumber)
	}
	assert.Equal(t, []string{"SUBMITTED", "ASSIGNED", "IN_PROGRESS", "RESOLVED", "CLOSED"}, events)

	history, err := f.svc.History(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, models.StatusSubmitted, history[0].FromStatus)
	assert.Equal(t, models.StatusClosed, history[3].ToStatus)
}

func TestTrack_NormalizesNumber(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	c, _ := f.svc.Submit(ctx, f.draft())

	found, err := f.svc.Track(ctx, " sns-2025-001 ")

	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)
	_, err = f.svc.Track(ctx, "SNS-2025-999")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
