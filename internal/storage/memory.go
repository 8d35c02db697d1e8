package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"smartnagrik/backend/internal/apperr"
	"smartnagrik/backend/internal/models"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Storage used by tests. A single mutex
// serializes every operation.
type MemoryStore struct {
	mu sync.Mutex

	nextComplaintID uint
	nextHistoryID   uint
	nextZoneID      uint
	nextCategoryID  uint

	complaints    map[uint]*models.Complaint
	byNumber      map[string]uint
	history       map[uint][]models.StatusHistory
	zones         map[uint]models.Zone
	categories    map[uint]models.Category
	users         map[string]models.User
	notifications []models.Notification
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		complaints: make(map[uint]*models.Complaint),
		byNumber:   make(map[string]uint),
		history:    make(map[uint][]models.StatusHistory),
		zones:      make(map[uint]models.Zone),
		categories: make(map[uint]models.Category),
		users:      make(map[string]models.User),
	}
}

func (m *MemoryStore) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	if err := ctx.Err(); err != nil {
		return apperr.StoreUnavailable(err, "create complaint")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.byNumber[c.ComplaintNumber]; dup {
		return apperr.Conflict("complaint " + c.ComplaintNumber + " already exists")
	}
	m.nextComplaintID++
	c.ID = m.nextComplaintID
	c.UpdatedAt = time.Now()
	m.complaints[c.ID] = c.Clone()
	m.byNumber[c.ComplaintNumber] = c.ID
	return nil
}

func (m *MemoryStore) GetComplaintByID(ctx context.Context, id uint) (*models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.complaints[id]
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("complaint %d", id))
	}
	return c.Clone(), nil
}

func (m *MemoryStore) GetComplaintByNumber(ctx context.Context, number string) (*models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byNumber[number]
	if !ok {
		return nil, apperr.NotFound("complaint " + number)
	}
	return m.complaints[id].Clone(), nil
}

func (m *MemoryStore) ListComplaints(ctx context.Context, f models.ComplaintFilter) ([]models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Complaint
	for _, c := range m.complaints {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.ZoneID != nil && (c.ZoneID == nil || *c.ZoneID != *f.ZoneID) {
			continue
		}
		if f.SubmitterID != "" && c.SubmitterID != f.SubmitterID {
			continue
		}
		out = append(out, *c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) CountComplaints(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.complaints)), nil
}

func (m *MemoryStore) HighestComplaintNumber(ctx context.Context, prefix string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	highest := ""
	for number := range m.byNumber {
		if !strings.HasPrefix(number, prefix) {
			continue
		}
		if len(number) > len(highest) || (len(number) == len(highest) && number > highest) {
			highest = number
		}
	}
	return highest, nil
}

// UpdateComplaint applies mutate to a copy and commits it only on success.
func (m *MemoryStore) UpdateComplaint(ctx context.Context, id uint, mutate MutateFunc) (*models.Complaint, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.StoreUnavailable(err, "update complaint")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.complaints[id]
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("complaint %d", id))
	}

	working := current.Clone()
	h, err := mutate(working)
	if err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now()
	m.complaints[id] = working

	if h != nil {
		m.nextHistoryID++
		h.ID = m.nextHistoryID
		h.ComplaintID = id
		m.history[id] = append(m.history[id], *h)
	}
	return working.Clone(), nil
}

func (m *MemoryStore) GetStatusHistory(ctx context.Context, complaintID uint) ([]models.StatusHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.history[complaintID]
	out := make([]models.StatusHistory, len(rows))
	copy(out, rows)
	return out, nil
}

func (m *MemoryStore) ListZones(ctx context.Context) ([]models.Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Zone, 0, len(m.zones))
	for _, z := range m.zones {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SaveZone(ctx context.Context, z *models.Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if z.ID == 0 {
		m.nextZoneID++
		z.ID = m.nextZoneID
		z.CreatedAt = time.Now()
	}
	m.zones[z.ID] = *z
	return nil
}

func (m *MemoryStore) GetCategoryByID(ctx context.Context, id uint) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.categories[id]
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("category %d", id))
	}
	return &c, nil
}

func (m *MemoryStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) SaveCategory(ctx context.Context, c *models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == 0 {
		m.nextCategoryID++
		c.ID = m.nextCategoryID
		c.CreatedAt = time.Now()
	}
	m.categories[c.ID] = *c
	return nil
}

func (m *MemoryStore) SaveUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperr.Conflict("user already exists")
		}
	}
	if err := u.BeforeCreate(nil); err != nil {
		return err
	}
	u.CreatedAt = time.Now()
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) UpdateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.ID]; !ok {
		return apperr.NotFound("user " + u.ID)
	}
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user " + id)
	}
	return &u, nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (m *MemoryStore) SaveNotification(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	m.notifications = append(m.notifications, *n)
	return nil
}

func (m *MemoryStore) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Notification
	for i := len(m.notifications) - 1; i >= 0; i-- {
		if m.notifications[i].UserID != userID {
			continue
		}
		out = append(out, m.notifications[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
