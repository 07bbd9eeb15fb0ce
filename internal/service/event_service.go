package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/richardliu001/event-lifecycle/internal/model"
	"github.com/richardliu001/event-lifecycle/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInvalidEvent means the event payload failed validation.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrInvalidRole means an unknown participant role.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidDevice means a device registration without user or token.
	ErrInvalidDevice = errors.New("user id and token are required")
)

// Hook is run after every event and participant write, inside the write's transaction.
type Hook interface {
	EventWritten(ctx context.Context, tx *gorm.DB, prev, cur *model.Event) error
	ParticipantWritten(ctx context.Context, tx *gorm.DB, prev, cur *model.EventParticipant) error
}

// EventService performs the writes that drive lifecycle side effects.
type EventService struct {
	repo repo.RepositoryInterface
	hook Hook
	log  *zap.SugaredLogger
}

// NewEventService returns EventService.
func NewEventService(r repo.RepositoryInterface, hook Hook, logger *zap.SugaredLogger) *EventService {
	return &EventService{repo: r, hook: hook, log: logger}
}

// EventInput carries the fields of a new event.
type EventInput struct {
	OwnerID     uint64
	Title       string
	Description string
	Address     string
	ImageURL    string
	StartDate   time.Time
	EndDate     time.Time
}

// EventPatch carries the fields of an update; nil means unchanged.
type EventPatch struct {
	Title       *string
	Description *string
	Address     *string
	ImageURL    *string
	StartDate   *time.Time
	EndDate     *time.Time
}

func validate(e *model.Event) error {
	if e.OwnerID == 0 || strings.TrimSpace(e.Title) == "" {
		return ErrInvalidEvent
	}
	if e.StartDate.IsZero() || e.EndDate.Before(e.StartDate) {
		return ErrInvalidEvent
	}
	return nil
}

// CreateEvent inserts an event and schedules its reminders.
func (s *EventService) CreateEvent(ctx context.Context, in EventInput) (*model.Event, error) {
	e := &model.Event{
		OwnerID:     in.OwnerID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Address:     in.Address,
		ImageURL:    in.ImageURL,
		StartDate:   model.Instant(in.StartDate),
		EndDate:     model.Instant(in.EndDate),
	}
	if err := validate(e); err != nil {
		return nil, err
	}
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CreateEvent(ctx, tx, e); err != nil {
			return err
		}
		return s.hook.EventWritten(ctx, tx, nil, e)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateEvent applies patch to an active event.
func (s *EventService) UpdateEvent(ctx context.Context, id uint64, patch EventPatch) (*model.Event, error) {
	var out *model.Event
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := s.repo.GetEventForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		prev := *e
		if patch.Title != nil {
			e.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			e.Description = *patch.Description
		}
		if patch.Address != nil {
			e.Address = *patch.Address
		}
		if patch.ImageURL != nil {
			e.ImageURL = *patch.ImageURL
		}
		if patch.StartDate != nil {
			e.StartDate = model.Instant(*patch.StartDate)
		}
		if patch.EndDate != nil {
			e.EndDate = model.Instant(*patch.EndDate)
		}
		if err := validate(e); err != nil {
			return err
		}
		if err := s.repo.SaveEvent(ctx, tx, e); err != nil {
			return err
		}
		if err := s.hook.EventWritten(ctx, tx, &prev, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// DeleteEvent soft-deletes an event.
func (s *EventService) DeleteEvent(ctx context.Context, id uint64) error {
	return s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := s.repo.GetEventForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		prev := *e
		if e.State, err = e.State.Advance(model.Deleted); err != nil {
			return err
		}
		if err := s.repo.SaveEvent(ctx, tx, e); err != nil {
			return err
		}
		return s.hook.EventWritten(ctx, tx, &prev, e)
	})
}

// AssignRole adds a user to an event or changes the role they already hold.
func (s *EventService) AssignRole(ctx context.Context, eventID, userID uint64, role model.Role) (*model.EventParticipant, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	var out *model.EventParticipant
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.GetEventForUpdate(ctx, tx, eventID); err != nil {
			return err
		}
		p, err := s.repo.GetParticipantForUpdate(ctx, tx, eventID, userID)
		if errors.Is(err, repo.ErrNotFound) {
			p = &model.EventParticipant{EventID: eventID, UserID: userID, Role: role}
			if err := s.repo.CreateParticipant(ctx, tx, p); err != nil {
				return err
			}
			out = p
			return s.hook.ParticipantWritten(ctx, tx, nil, p)
		}
		if err != nil {
			return err
		}
		prev := *p
		p.Role = role
		if err := s.repo.SaveParticipant(ctx, tx, p); err != nil {
			return err
		}
		out = p
		return s.hook.ParticipantWritten(ctx, tx, &prev, p)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveParticipant soft-deletes a user's participation.
func (s *EventService) RemoveParticipant(ctx context.Context, eventID, userID uint64) error {
	return s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.repo.GetParticipantForUpdate(ctx, tx, eventID, userID)
		if err != nil {
			return err
		}
		prev := *p
		if p.State, err = p.State.Advance(model.Deleted); err != nil {
			return err
		}
		if err := s.repo.SaveParticipant(ctx, tx, p); err != nil {
			return err
		}
		return s.hook.ParticipantWritten(ctx, tx, &prev, p)
	})
}

// Reminders lists every reminder row of an event.
func (s *EventService) Reminders(ctx context.Context, eventID uint64) ([]model.EventReminder, error) {
	if _, err := s.repo.GetEvent(ctx, s.repo.DB(ctx), eventID); err != nil {
		return nil, err
	}
	return s.repo.ListReminders(ctx, s.repo.DB(ctx), eventID)
}

// RegisterDevice stores a push token for a user.
func (s *EventService) RegisterDevice(ctx context.Context, userID uint64, token string) error {
	token = strings.TrimSpace(token)
	if userID == 0 || token == "" {
		return ErrInvalidDevice
	}
	return s.repo.RegisterDevice(ctx, userID, token)
}
