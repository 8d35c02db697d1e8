package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"smartnagrik/backend/internal/apperr"
	"smartnagrik/backend/internal/config"
	"smartnagrik/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MutateFunc changes a locked complaint in place. A returned history row is
// written in the same transaction; a returned error aborts the update.
type MutateFunc func(c *models.Complaint) (*models.StatusHistory, error)

// Storage is the persistence contract used by the lifecycle engine and the
// API layer. UpdateComplaint runs read, check and write as one unit per record.
type Storage interface {
	CreateComplaint(ctx context.Context, c *models.Complaint) error
	GetComplaintByID(ctx context.Context, id uint) (*models.Complaint, error)
	GetComplaintByNumber(ctx context.Context, number string) (*models.Complaint, error)
	ListComplaints(ctx context.Context, f models.ComplaintFilter) ([]models.Complaint, error)
	CountComplaints(ctx context.Context) (int64, error)
	// HighestComplaintNumber returns the largest stored number starting with
	// prefix, or "" when there is none. Longer numbers are larger.
	HighestComplaintNumber(ctx context.Context, prefix string) (string, error)
	UpdateComplaint(ctx context.Context, id uint, mutate MutateFunc) (*models.Complaint, error)
	GetStatusHistory(ctx context.Context, complaintID uint) ([]models.StatusHistory, error)

	ListZones(ctx context.Context) ([]models.Zone, error)
	SaveZone(ctx context.Context, z *models.Zone) error
	GetCategoryByID(ctx context.Context, id uint) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	SaveCategory(ctx context.Context, c *models.Category) error

	SaveUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	SaveNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error)
}

// Service implements Storage on PostgreSQL (GORM) and carries the Redis
// client used for status-event pub/sub.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// Migrate creates or updates every table the service owns.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.Zone{},
		&models.Category{},
		&models.Complaint{},
		&models.StatusHistory{},
		&models.Notification{},
	)
}

func (s *Service) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	if err := s.DB.WithContext(ctx).Create(c).Error; err != nil {
		log.Printf("ERROR: failed to save complaint %s: %v", c.ComplaintNumber, err)
		return mapErr(err, "complaint", "create complaint")
	}
	return nil
}

func (s *Service) GetComplaintByID(ctx context.Context, id uint) (*models.Complaint, error) {
	var c models.Complaint
	if err := s.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, mapErr(err, fmt.Sprintf("complaint %d", id), "get complaint")
	}
	return &c, nil
}

func (s *Service) GetComplaintByNumber(ctx context.Context, number string) (*models.Complaint, error) {
	var c models.Complaint
	err := s.DB.WithContext(ctx).Where("complaint_number = ?", number).First(&c).Error
	if err != nil {
		return nil, mapErr(err, "complaint "+number, "get complaint by number")
	}
	return &c, nil
}

func (s *Service) ListComplaints(ctx context.Context, f models.ComplaintFilter) ([]models.Complaint, error) {
	q := s.DB.WithContext(ctx).Model(&models.Complaint{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ZoneID != nil {
		q = q.Where("zone_id = ?", *f.ZoneID)
	}
	if f.SubmitterID != "" {
		q = q.Where("submitter_id = ?", f.SubmitterID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var out []models.Complaint
	if err := q.Order("submitted_at desc, id desc").Find(&out).Error; err != nil {
		return nil, mapErr(err, "complaints", "list complaints")
	}
	return out, nil
}

func (s *Service) CountComplaints(ctx context.Context) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.Complaint{}).Count(&n).Error; err != nil {
		return 0, mapErr(err, "complaints", "count complaints")
	}
	return n, nil
}

func (s *Service) HighestComplaintNumber(ctx context.Context, prefix string) (string, error) {
	var numbers []string
	err := s.DB.WithContext(ctx).Model(&models.Complaint{}).
		Where("complaint_number LIKE ?", prefix+"%").
		Order("length(complaint_number) desc, complaint_number desc").
		Limit(1).
		Pluck("complaint_number", &numbers).Error
	if err != nil {
		return "", mapErr(err, "complaints", "highest complaint number")
	}
	if len(numbers) == 0 {
		return "", nil
	}
	return numbers[0], nil
}

// UpdateComplaint locks the row with SELECT ... FOR UPDATE, so concurrent
// transitions on the same complaint are evaluated one after another.
func (s *Service) UpdateComplaint(ctx context.Context, id uint, mutate MutateFunc) (*models.Complaint, error) {
	var updated models.Complaint
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&updated, id).Error; err != nil {
			return err
		}

		history, err := mutate(&updated)
		if err != nil {
			return err
		}

		if err := tx.Save(&updated).Error; err != nil {
			return err
		}
		if history != nil {
			history.ComplaintID = updated.ID
			if err := tx.Create(history).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var appErr *apperr.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, mapErr(err, fmt.Sprintf("complaint %d", id), "update complaint")
	}
	return &updated, nil
}

func (s *Service) GetStatusHistory(ctx context.Context, complaintID uint) ([]models.StatusHistory, error) {
	var rows []models.StatusHistory
	err := s.DB.WithContext(ctx).
		Where("complaint_id = ?", complaintID).
		Order("created_at asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, mapErr(err, "status history", "get status history")
	}
	return rows, nil
}

func (s *Service) ListZones(ctx context.Context) ([]models.Zone, error) {
	var zones []models.Zone
	if err := s.DB.WithContext(ctx).Order("id asc").Find(&zones).Error; err != nil {
		log.Printf("ERROR: failed to load zones: %v", err)
		return nil, mapErr(err, "zones", "list zones")
	}
	return zones, nil
}

func (s *Service) SaveZone(ctx context.Context, z *models.Zone) error {
	return mapErr(s.DB.WithContext(ctx).Save(z).Error, "zone", "save zone")
}

func (s *Service) GetCategoryByID(ctx context.Context, id uint) (*models.Category, error) {
	var c models.Category
	if err := s.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, mapErr(err, fmt.Sprintf("category %d", id), "get category")
	}
	return &c, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	if err := s.DB.WithContext(ctx).Order("name asc").Find(&out).Error; err != nil {
		return nil, mapErr(err, "categories", "list categories")
	}
	return out, nil
}

func (s *Service) SaveCategory(ctx context.Context, c *models.Category) error {
	return mapErr(s.DB.WithContext(ctx).Save(c).Error, "category", "save category")
}

// SaveUser creates a new user. A duplicate e-mail is reported as a conflict.
func (s *Service) SaveUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return mapErr(s.DB.WithContext(ctx).Create(u).Error, "user", "save user")
}

func (s *Service) UpdateUser(ctx context.Context, u *models.User) error {
	return mapErr(s.DB.WithContext(ctx).Save(u).Error, "user", "update user")
}

func (s *Service) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, mapErr(err, "user "+id, "get user")
	}
	return &u, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.DB.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if err != nil {
		return nil, mapErr(err, "user", "get user by email")
	}
	return &u, nil
}

func (s *Service) SaveNotification(ctx context.Context, n *models.Notification) error {
	return mapErr(s.DB.WithContext(ctx).Create(n).Error, "notification", "save notification")
}

func (s *Service) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.Notification
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, mapErr(err, "notifications", "list notifications")
	}
	return out, nil
}

// PublishEvent publishes a status event on the Redis channel the feed hub listens to.
func (s *Service) PublishEvent(ctx context.Context, ev models.StatusEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, config.StatusEventChannel, payload).Err()
}

// SubscribeEvents subscribes to the status event channel.
func (s *Service) SubscribeEvents(ctx context.Context) *redis.PubSub {
	return s.Redis.Subscribe(ctx, config.StatusEventChannel)
}

// mapErr converts GORM and driver errors into the application taxonomy.
func mapErr(err error, resource, op string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(resource)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Wrap(err, apperr.CodeConflict, resource+" already exists")
	default:
		return apperr.StoreUnavailable(err, op)
	}
}
