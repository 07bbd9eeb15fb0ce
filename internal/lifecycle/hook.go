package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/richardliu001/event-lifecycle/internal/model"
	"github.com/richardliu001/event-lifecycle/internal/notify"
	"github.com/richardliu001/event-lifecycle/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Notifier fans a notice out to the delivery channels. *notify.Dispatcher implements it.
type Notifier interface {
	Dispatch(ctx context.Context, tx *gorm.DB, n notify.Notice) notify.Report
}

// Reminders keeps reminder rows in step with an event. *reminder.Scheduler implements it.
type Reminders interface {
	Reconcile(ctx context.Context, tx *gorm.DB, e *model.Event) error
	Purge(ctx context.Context, tx *gorm.DB, eventID uint64) error
}

// Hook runs after an event or participant write, inside the same transaction.
// Reminder errors are returned so the write rolls back; delivery errors never are.
type Hook struct {
	repo      repo.RepositoryInterface
	reminders Reminders
	notifier  Notifier
	log       *zap.SugaredLogger
}

func NewHook(r repo.RepositoryInterface, reminders Reminders, notifier Notifier, logger *zap.SugaredLogger) *Hook {
	return &Hook{repo: r, reminders: reminders, notifier: notifier, log: logger}
}

// EventWritten handles a write of cur whose previous state was prev (nil on create).
func (h *Hook) EventWritten(ctx context.Context, tx *gorm.DB, prev, cur *model.Event) error {
	t := ClassifyEvent(prev, cur)
	if t.Kind == NoOp {
		return nil
	}
	h.log.Debugw("event transition", "event_id", cur.ID, "transition", t.String())

	var kind notify.Kind
	switch t.Kind {
	case Created:
		if err := h.reminders.Reconcile(ctx, tx, cur); err != nil {
			return err
		}
		kind = notify.KindEventCreated
	case SoftDeleted:
		if err := h.reminders.Purge(ctx, tx, cur.ID); err != nil {
			return err
		}
		kind = notify.KindEventDeleted
	case MeaningfulUpdate:
		if t.Has(FieldStartDate) {
			if err := h.reminders.Reconcile(ctx, tx, cur); err != nil {
				return err
			}
		}
		kind = notify.KindEventUpdated
	default:
		return nil
	}

	owner, ok, err := h.contact(ctx, tx, cur.OwnerID)
	if err != nil || !ok {
		return err
	}
	h.notifier.Dispatch(ctx, tx, notify.Notice{
		Kind:      kind,
		Event:     cur.Summary(),
		Recipient: owner,
		Changed:   t.Changed,
	})
	return nil
}

// ParticipantWritten handles a write of cur whose previous state was prev (nil on create).
func (h *Hook) ParticipantWritten(ctx context.Context, tx *gorm.DB, prev, cur *model.EventParticipant) error {
	t := ClassifyParticipant(prev, cur)
	if t.Kind == NoOp {
		return nil
	}
	h.log.Debugw("participant transition", "event_id", cur.EventID, "user_id", cur.UserID, "transition", t.String())

	n := notify.Notice{}
	switch t.Kind {
	case RoleAssigned:
		n.Kind, n.Role = notify.KindRoleAssigned, t.To
	case RoleChanged:
		n.Kind, n.Role, n.PreviousRole = notify.KindRoleUpdated, t.To, t.From
	case RoleRemoved:
		n.Kind, n.Role = notify.KindRoleRemoved, t.From
	default:
		return nil
	}
	if n.Suppressed() {
		return nil
	}

	ev, err := h.repo.GetEvent(ctx, tx, cur.EventID)
	if errors.Is(err, repo.ErrNotFound) {
		h.log.Warnw("participant event not found, skipping notifications", "event_id", cur.EventID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load event %d: %w", cur.EventID, err)
	}
	user, ok, err := h.contact(ctx, tx, cur.UserID)
	if err != nil || !ok {
		return err
	}
	n.Event = ev.Summary()
	n.Recipient = user
	h.notifier.Dispatch(ctx, tx, n)
	return nil
}

func (h *Hook) contact(ctx context.Context, tx *gorm.DB, userID uint64) (model.Contact, bool, error) {
	c, err := h.repo.GetContact(ctx, tx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		h.log.Warnw("recipient not found, skipping notifications", "user_id", userID)
		return c, false, nil
	}
	if err != nil {
		return c, false, fmt.Errorf("load contact of user %d: %w", userID, err)
	}
	return c, true, nil
}
