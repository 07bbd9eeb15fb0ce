package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/event-lifecycle/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a row does not exist or is soft-deleted.
var ErrNotFound = errors.New("not found")

// RepositoryInterface restricts Repo methods so services and workers can be tested with fakes.
// Methods that take tx run inside the caller's transaction.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB

	CreateEvent(ctx context.Context, tx *gorm.DB, e *model.Event) error
	GetEvent(ctx context.Context, tx *gorm.DB, id uint64) (*model.Event, error)
	GetEventForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.Event, error)
	SaveEvent(ctx context.Context, tx *gorm.DB, e *model.Event) error

	GetParticipantForUpdate(ctx context.Context, tx *gorm.DB, eventID, userID uint64) (*model.EventParticipant, error)
	CreateParticipant(ctx context.Context, tx *gorm.DB, p *model.EventParticipant) error
	SaveParticipant(ctx context.Context, tx *gorm.DB, p *model.EventParticipant) error
	ActiveParticipants(ctx context.Context, tx *gorm.DB, eventID uint64) ([]model.EventParticipant, error)

	GetContact(ctx context.Context, tx *gorm.DB, userID uint64) (model.Contact, error)

	ListReminders(ctx context.Context, tx *gorm.DB, eventID uint64) ([]model.EventReminder, error)
	SentReminders(ctx context.Context, tx *gorm.DB, eventID uint64) ([]model.EventReminder, error)
	DeleteUnsentReminders(ctx context.Context, tx *gorm.DB, eventID uint64) (int64, error)
	CreateReminders(ctx context.Context, tx *gorm.DB, rows []model.EventReminder) error
	DueReminders(ctx context.Context, now time.Time, limit int) ([]model.EventReminder, error)
	ClaimReminder(ctx context.Context, id uint64, now time.Time) (bool, error)

	DeviceTokens(ctx context.Context, userID uint64) ([]string, error)
	RegisterDevice(ctx context.Context, userID uint64, token string) error
}

// Repository implements RepositoryInterface.
type Repository struct {
	db  *gorm.DB
	rdb *redis.Client
	log *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// CreateEvent inserts event.
func (r *Repository) CreateEvent(ctx context.Context, tx *gorm.DB, e *model.Event) error {
	return tx.WithContext(ctx).Create(e).Error
}

// GetEvent loads an event whether or not it is deleted.
func (r *Repository) GetEvent(ctx context.Context, tx *gorm.DB, id uint64) (*model.Event, error) {
	var e model.Event
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// GetEventForUpdate locks an active event row.
func (r *Repository) GetEventForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.Event, error) {
	var e model.Event
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND is_deleted = ?", id, false).First(&e).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// SaveEvent writes every column of e.
func (r *Repository) SaveEvent(ctx context.Context, tx *gorm.DB, e *model.Event) error {
	return tx.WithContext(ctx).Save(e).Error
}

// GetParticipantForUpdate locks the active participant row for (eventID, userID).
func (r *Repository) GetParticipantForUpdate(ctx context.Context, tx *gorm.DB, eventID, userID uint64) (*model.EventParticipant, error) {
	var p model.EventParticipant
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("event_id = ? AND user_id = ? AND is_deleted = ?", eventID, userID, false).
		Order("id desc").First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// CreateParticipant inserts participant.
func (r *Repository) CreateParticipant(ctx context.Context, tx *gorm.DB, p *model.EventParticipant) error {
	return tx.WithContext(ctx).Create(p).Error
}

// SaveParticipant writes every column of p.
func (r *Repository) SaveParticipant(ctx context.Context, tx *gorm.DB, p *model.EventParticipant) error {
	return tx.WithContext(ctx).Save(p).Error
}

// ActiveParticipants lists non-deleted participants of an event.
func (r *Repository) ActiveParticipants(ctx context.Context, tx *gorm.DB, eventID uint64) ([]model.EventParticipant, error) {
	var ps []model.EventParticipant
	err := tx.WithContext(ctx).Where("event_id = ? AND is_deleted = ?", eventID, false).Order("id").Find(&ps).Error
	return ps, err
}

// GetContact loads only the contact columns of a user.
func (r *Repository) GetContact(ctx context.Context, tx *gorm.DB, userID uint64) (model.Contact, error) {
	var u model.User
	err := tx.WithContext(ctx).
		Select("id", "first_name", "last_name", "email", "mobile").
		Where("id = ?", userID).First(&u).Error
	if err != nil {
		return model.Contact{}, notFound(err)
	}
	return model.ContactOf(&u), nil
}

// ListReminders returns every reminder row of an event ordered by time.
func (r *Repository) ListReminders(ctx context.Context, tx *gorm.DB, eventID uint64) ([]model.EventReminder, error) {
	var rs []model.EventReminder
	err := tx.WithContext(ctx).Where("event_id = ?", eventID).Order("reminder_time, id").Find(&rs).Error
	return rs, err
}

// SentReminders returns the historical, already-sent rows of an event.
func (r *Repository) SentReminders(ctx context.Context, tx *gorm.DB, eventID uint64) ([]model.EventReminder, error) {
	var rs []model.EventReminder
	err := tx.WithContext(ctx).Where("event_id = ? AND is_sent = ?", eventID, true).Find(&rs).Error
	return rs, err
}

// DeleteUnsentReminders removes pending rows of an event.
func (r *Repository) DeleteUnsentReminders(ctx context.Context, tx *gorm.DB, eventID uint64) (int64, error) {
	res := tx.WithContext(ctx).
		Where("event_id = ? AND is_sent = ?", eventID, false).
		Delete(&model.EventReminder{})
	return res.RowsAffected, res.Error
}

// CreateReminders bulk inserts rows.
func (r *Repository) CreateReminders(ctx context.Context, tx *gorm.DB, rows []model.EventReminder) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&rows).Error
}

// DueReminders pulls unsent rows whose time has come.
func (r *Repository) DueReminders(ctx context.Context, now time.Time, limit int) ([]model.EventReminder, error) {
	var rs []model.EventReminder
	err := r.db.WithContext(ctx).
		Where("is_sent = ? AND reminder_time <= ?", false, model.Instant(now)).
		Order("reminder_time, id").Limit(limit).Find(&rs).Error
	return rs, err
}

// ClaimReminder marks a row sent only if nobody else has. It reports whether this caller won.
func (r *Repository) ClaimReminder(ctx context.Context, id uint64, now time.Time) (bool, error) {
	sentAt := model.Instant(now)
	res := r.db.WithContext(ctx).
		Model(&model.EventReminder{}).
		Where("id = ? AND is_sent = ?", id, false).
		Updates(map[string]interface{}{
			"is_sent": true,
			"sent_at": &sentAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func deviceKey(userID uint64) string { return fmt.Sprintf("devices:%d", userID) }

// DeviceTokens reads the push tokens registered for a user from Redis.
func (r *Repository) DeviceTokens(ctx context.Context, userID uint64) ([]string, error) {
	tokens, err := r.rdb.SMembers(ctx, deviceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return tokens, err
}

// RegisterDevice adds a push token to the user's set.
func (r *Repository) RegisterDevice(ctx context.Context, userID uint64, token string) error {
	return r.rdb.SAdd(ctx, deviceKey(userID), token).Err()
}
