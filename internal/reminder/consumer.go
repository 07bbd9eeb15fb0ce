package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/richardliu001/event-lifecycle/internal/model"
	"github.com/richardliu001/event-lifecycle/internal/notify"
	"github.com/richardliu001/event-lifecycle/internal/repo"
	"github.com/richardliu001/event-lifecycle/internal/requestid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Notifier fans a notice out to the delivery channels.
type Notifier interface {
	Dispatch(ctx context.Context, tx *gorm.DB, n notify.Notice) notify.Report
}

// Consumer delivers due reminders. Several consumers may run at once: a row is
// only delivered by the instance whose conditional update claimed it, so each
// reminder goes out at most once.
type Consumer struct {
	repo      repo.RepositoryInterface
	scheduler *Scheduler
	notifier  Notifier
	batch     int
	now       func() time.Time
	log       *zap.SugaredLogger
}

func NewConsumer(r repo.RepositoryInterface, s *Scheduler, n Notifier, batch int, logger *zap.SugaredLogger) *Consumer {
	if batch <= 0 {
		batch = 100
	}
	return &Consumer{repo: r, scheduler: s, notifier: n, batch: batch, now: time.Now, log: logger}
}

// SetClock replaces the wall clock, for tests.
func (c *Consumer) SetClock(now func() time.Time) { c.now = now }

// Run polls every interval until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.log.Info("reminder consumer started")
	for {
		if _, err := c.RunOnce(ctx); err != nil {
			c.log.Errorf("poll reminders: %v", err)
		}
		select {
		case <-ctx.Done():
			c.log.Info("reminder consumer stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce claims and delivers one batch of due reminders and returns how many were delivered.
func (c *Consumer) RunOnce(ctx context.Context) (int, error) {
	now := c.now()
	due, err := c.repo.DueReminders(ctx, now, c.batch)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, rem := range due {
		won, err := c.repo.ClaimReminder(ctx, rem.ID, now)
		if err != nil {
			c.log.Errorf("claim reminder id=%d: %v", rem.ID, err)
			continue
		}
		if !won {
			continue
		}
		if c.deliver(ctx, rem) {
			delivered++
		}
	}
	return delivered, nil
}

// deliver re-checks the claimed row against its event before sending, since the
// event may have moved or been deleted after the row was listed.
func (c *Consumer) deliver(ctx context.Context, rem model.EventReminder) bool {
	ctx, cid := requestid.Ensure(ctx)
	db := c.repo.DB(ctx)

	ev, err := c.repo.GetEvent(ctx, db, rem.EventID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && ev.State.IsDeleted()) {
		c.log.Infow("reminder for missing or deleted event dropped", "reminder_id", rem.ID, "event_id", rem.EventID)
		return false
	}
	if err != nil {
		c.log.Errorw("load reminder event", "reminder_id", rem.ID, "event_id", rem.EventID, "error", err)
		return false
	}
	before, ok := c.scheduler.Offset(rem.ReminderType)
	if !ok || !model.SameInstant(rem.ReminderTime, ev.StartDate.Add(-before)) {
		c.log.Infow("stale reminder dropped", "reminder_id", rem.ID, "event_id", ev.ID, "type", rem.ReminderType)
		return false
	}

	recipients, err := c.recipients(ctx, db, ev)
	if err != nil {
		c.log.Errorw("load reminder recipients", "reminder_id", rem.ID, "event_id", ev.ID, "error", err)
		return false
	}
	for _, userID := range recipients {
		contact, err := c.repo.GetContact(ctx, db, userID)
		if err != nil {
			c.log.Warnw("reminder recipient unavailable", "event_id", ev.ID, "user_id", userID, "error", err)
			continue
		}
		c.notifier.Dispatch(ctx, db, notify.Notice{
			Kind:      notify.KindEventReminder,
			Event:     ev.Summary(),
			Recipient: contact,
			Reminder:  rem.ReminderType,
		})
	}
	c.log.Infow("reminder delivered", "reminder_id", rem.ID, "event_id", ev.ID,
		"type", rem.ReminderType, "recipients", len(recipients), "correlation_id", cid)
	return true
}

// recipients is the owner followed by every active participant, without duplicates.
func (c *Consumer) recipients(ctx context.Context, db *gorm.DB, ev *model.Event) ([]uint64, error) {
	ps, err := c.repo.ActiveParticipants(ctx, db, ev.ID)
	if err != nil {
		return nil, err
	}
	seen := map[uint64]bool{ev.OwnerID: true}
	ids := []uint64{ev.OwnerID}
	for _, p := range ps {
		if !seen[p.UserID] {
			seen[p.UserID] = true
			ids = append(ids, p.UserID)
		}
	}
	return ids, nil
}
