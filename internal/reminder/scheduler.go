// Package reminder keeps the event_reminders table in step with event start
// times and delivers reminders once they fall due.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/richardliu001/event-lifecycle/internal/config"
	"github.com/richardliu001/event-lifecycle/internal/model"
	"github.com/richardliu001/event-lifecycle/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Offset schedules a reminder of Type at start_date - Before.
type Offset struct {
	Type   model.ReminderType
	Before time.Duration
}

// Scheduler derives reminder rows from an event's start_date.
type Scheduler struct {
	repo    repo.RepositoryInterface
	offsets []Offset
	now     func() time.Time
	log     *zap.SugaredLogger
}

// NewScheduler builds a scheduler from the configured offset table.
func NewScheduler(r repo.RepositoryInterface, cfg config.ReminderConfig, logger *zap.SugaredLogger) *Scheduler {
	offsets := make([]Offset, 0, len(cfg.Offsets))
	for _, o := range cfg.Offsets {
		offsets = append(offsets, Offset{Type: model.ReminderType(o.Type), Before: o.Before})
	}
	return &Scheduler{repo: r, offsets: offsets, now: time.Now, log: logger}
}

// SetClock replaces the wall clock, for tests.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Offset returns the configured lead time of a reminder type.
func (s *Scheduler) Offset(t model.ReminderType) (time.Duration, bool) {
	for _, o := range s.offsets {
		if o.Type == t {
			return o.Before, true
		}
	}
	return 0, false
}

// Plan returns the unsent rows that should exist for an event starting at start,
// as seen at now. Reminders that would fire at or before now are dropped.
func (s *Scheduler) Plan(eventID uint64, start, now time.Time) []model.EventReminder {
	var rows []model.EventReminder
	for _, o := range s.offsets {
		at := model.Instant(start.Add(-o.Before))
		if !at.After(now) {
			continue
		}
		rows = append(rows, model.EventReminder{
			EventID:      eventID,
			ReminderType: o.Type,
			ReminderTime: at,
		})
	}
	return rows
}

// Reconcile rewrites the unsent reminders of e to match its current start_date.
// Sent rows are history and are left alone. It runs inside tx and any error
// must abort the caller's write.
func (s *Scheduler) Reconcile(ctx context.Context, tx *gorm.DB, e *model.Event) error {
	if e.State.IsDeleted() {
		return s.Purge(ctx, tx, e.ID)
	}
	removed, err := s.repo.DeleteUnsentReminders(ctx, tx, e.ID)
	if err != nil {
		return fmt.Errorf("clear reminders of event %d: %w", e.ID, err)
	}
	sent, err := s.repo.SentReminders(ctx, tx, e.ID)
	if err != nil {
		return fmt.Errorf("load sent reminders of event %d: %w", e.ID, err)
	}

	var rows []model.EventReminder
	for _, cand := range s.Plan(e.ID, e.StartDate, s.now()) {
		if !alreadySent(sent, cand) {
			rows = append(rows, cand)
		}
	}
	if err := s.repo.CreateReminders(ctx, tx, rows); err != nil {
		return fmt.Errorf("schedule reminders of event %d: %w", e.ID, err)
	}
	s.log.Debugw("reminders reconciled", "event_id", e.ID, "removed", removed, "scheduled", len(rows))
	return nil
}

// Purge deletes the unsent reminders of an event without scheduling new ones.
func (s *Scheduler) Purge(ctx context.Context, tx *gorm.DB, eventID uint64) error {
	removed, err := s.repo.DeleteUnsentReminders(ctx, tx, eventID)
	if err != nil {
		return fmt.Errorf("purge reminders of event %d: %w", eventID, err)
	}
	s.log.Debugw("reminders purged", "event_id", eventID, "removed", removed)
	return nil
}

func alreadySent(sent []model.EventReminder, cand model.EventReminder) bool {
	for _, r := range sent {
		if r.ReminderType == cand.ReminderType && model.SameInstant(r.ReminderTime, cand.ReminderTime) {
			return true
		}
	}
	return false
}
