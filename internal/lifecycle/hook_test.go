package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/richardliu001/event-lifecycle/internal/config"
	"github.com/richardliu001/event-lifecycle/internal/dbtest"
	"github.com/richardliu001/event-lifecycle/internal/model"
	"github.com/richardliu001/event-lifecycle/internal/notify"
	"github.com/richardliu001/event-lifecycle/internal/reminder"
	"github.com/richardliu001/event-lifecycle/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recorder struct {
	notices []notify.Notice
}

func (r *recorder) Dispatch(_ context.Context, _ *gorm.DB, n notify.Notice) notify.Report {
	r.notices = append(r.notices, n)
	return notify.Report{}
}

func (r *recorder) kinds() []notify.Kind {
	var ks []notify.Kind
	for _, n := range r.notices {
		ks = append(ks, n.Kind)
	}
	return ks
}

type countingReminders struct {
	Reminders
	reconciles, purges int
	err                error
}

func (c *countingReminders) Reconcile(ctx context.Context, tx *gorm.DB, e *model.Event) error {
	c.reconciles++
	if c.err != nil {
		return c.err
	}
	return c.Reminders.Reconcile(ctx, tx, e)
}

func (c *countingReminders) Purge(ctx context.Context, tx *gorm.DB, id uint64) error {
	c.purges++
	if c.err != nil {
		return c.err
	}
	return c.Reminders.Purge(ctx, tx, id)
}

type fixture struct {
	db        *gorm.DB
	repo      *repo.Repository
	reminders *countingReminders
	rec       *recorder
	hook      *Hook
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	db := dbtest.Open(t)
	log := zap.NewNop().Sugar()
	r := repo.NewRepository(db, nil, log)
	sched := reminder.NewScheduler(r, config.ReminderConfig{Offsets: config.DefaultOffsets()}, log)
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	sched.SetClock(func() time.Time { return now })

	f := &fixture{db: db, repo: r, reminders: &countingReminders{Reminders: sched}, rec: &recorder{}, now: now}
	f.hook = NewHook(r, f.reminders, f.rec, log)
	dbtest.SeedUser(t, db, 1, "owner@example.com", "+15550001")
	dbtest.SeedUser(t, db, 2, "guest@example.com", "")
	return f
}

func (f *fixture) createEvent(t *testing.T, startIn time.Duration) *model.Event {
	t.Helper()
	start := f.now.Add(startIn)
	e := &model.Event{OwnerID: 1, Title: "Meetup", StartDate: start, EndDate: start.Add(time.Hour)}
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		if err := f.repo.CreateEvent(context.Background(), tx, e); err != nil {
			return err
		}
		return f.hook.EventWritten(context.Background(), tx, nil, e)
	}))
	return e
}

func (f *fixture) updateEvent(t *testing.T, id uint64, mutate func(e *model.Event)) error {
	t.Helper()
	return f.db.Transaction(func(tx *gorm.DB) error {
		ctx := context.Background()
		e, err := f.repo.GetEventForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		prev := *e
		mutate(e)
		if err := f.repo.SaveEvent(ctx, tx, e); err != nil {
			return err
		}
		return f.hook.EventWritten(ctx, tx, &prev, e)
	})
}

func (f *fixture) reminderTimes(t *testing.T, eventID uint64) []time.Time {
	t.Helper()
	rows, err := f.repo.ListReminders(context.Background(), f.db, eventID)
	require.NoError(t, err)
	var out []time.Time
	for _, r := range rows {
		assert.False(t, r.IsSent)
		out = append(out, r.ReminderTime.UTC())
	}
	return out
}

func TestEventWritten_CreateSchedulesBothReminders(t *testing.T) {
	f := newFixture(t)
	e := f.createEvent(t, 48*time.Hour)

	assert.Equal(t, []time.Time{
		e.StartDate.Add(-24 * time.Hour),
		e.StartDate.Add(-time.Hour),
	}, f.reminderTimes(t, e.ID))
	require.Equal(t, []notify.Kind{notify.KindEventCreated}, f.rec.kinds())
	assert.Equal(t, "owner@example.com", f.rec.notices[0].Recipient.Email)
	assert.Equal(t, e.ID, f.rec.notices[0].Event.ID)
}

func TestEventWritten_CreateSkipsPastReminders(t *testing.T) {
	f := newFixture(t)
	e := f.createEvent(t, 12*time.Hour)

	assert.Equal(t, []time.Time{e.StartDate.Add(-time.Hour)}, f.reminderTimes(t, e.ID))
}

func TestEventWritten_ImageOnlyIsNoOp(t *testing.T) {
	f := newFixture(t)
	e := f.createEvent(t, 48*time.Hour)
	f.rec.notices = nil
	f.reminders.reconciles = 0

	require.NoError(t, f.updateEvent(t, e.ID, func(e *model.Event) { e.ImageURL = "cover.png" }))

	assert.Empty(t, f.rec.notices)
	assert.Zero(t, f.reminders.reconciles)
	assert.Zero(t, f.reminders.purges)
}

func TestEventWritten_StartDateMoveReconciles(t *testing.T) {
	f := newFixture(t)
	e := f.createEvent(t, 48*time.Hour)
	f.rec.notices = nil
	newStart := f.now.Add(72 * time.Hour)

	require.NoError(t, f.updateEvent(t, e.ID, func(e *model.Event) { e.StartDate = newStart }))

	want := []time.Time{newStart.Add(-24 * time.Hour), newStart.Add(-time.Hour)}
	assert.Equal(t, want, f.reminderTimes(t, e.ID))
	require.Len(t, f.rec.notices, 1)
	assert.Equal(t, notify.KindEventUpdated, f.rec.notices[0].Kind)
	assert.Equal(t, []string{"start_date"}, f.rec.notices[0].Changed)

	// reconciling again with no change leaves the same rows
	ev, err := f.repo.GetEvent(context.Background(), f.db, e.ID)
	require.NoError(t, err)
	require.NoError(t, f.reminders.Reconcile(context.Background(), f.db, ev))
	assert.Equal(t, want, f.reminderTimes(t, e.ID))
}

func TestEventWritten_TitleChangeKeepsReminders(t *testing.T) {
	f := newFixture(t)
	e := f.createEvent(t, 48*time.Hour)
	before := f.reminders.reconciles

	require.NoError(t, f.updateEvent(t, e.ID, func(e *model.Event) { e.Title = "Meetup #2" }))

	assert.Equal(t, before, f.reminders.reconciles)
	assert.Len(t, f.reminderTimes(t, e.ID), 2)
	assert.Equal(t, []notify.Kind{notify.KindEventCreated, notify.KindEventUpdated}, f.rec.kinds())
}

func TestEventWritten_SoftDeletePurges(t *testing.T) {
	f := newFixture(t)
	e := f.createEvent(t, 48*time.Hour)
	f.rec.notices = nil

	require.NoError(t, f.updateEvent(t, e.ID, func(e *model.Event) { e.State = model.Deleted }))

	assert.Empty(t, f.reminderTimes(t, e.ID))
	assert.Equal(t, []notify.Kind{notify.KindEventDeleted}, f.rec.kinds())
	assert.Equal(t, 1, f.reminders.purges)
}

func TestEventWritten_SchedulingErrorRollsBack(t *testing.T) {
	f := newFixture(t)
	f.reminders.err = errors.New("constraint violated")

	e := &model.Event{OwnerID: 1, Title: "Doomed", StartDate: f.now.Add(48 * time.Hour), EndDate: f.now.Add(49 * time.Hour)}
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := f.repo.CreateEvent(context.Background(), tx, e); err != nil {
			return err
		}
		return f.hook.EventWritten(context.Background(), tx, nil, e)
	})
	assert.EqualError(t, err, "constraint violated")

	var n int64
	require.NoError(t, f.db.Model(&model.Event{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Empty(t, f.rec.notices)
}

func TestEventWritten_MissingOwnerSkipsDispatch(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(48 * time.Hour)
	e := &model.Event{OwnerID: 404, Title: "Orphan", StartDate: start, EndDate: start}
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		if err := f.repo.CreateEvent(context.Background(), tx, e); err != nil {
			return err
		}
		return f.hook.EventWritten(context.Background(), tx, nil, e)
	}))
	assert.Empty(t, f.rec.notices)
	assert.Len(t, f.reminderTimes(t, e.ID), 2)
}

func (f *fixture) writeParticipant(t *testing.T, prev, cur *model.EventParticipant) {
	t.Helper()
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		ctx := context.Background()
		if err := f.repo.SaveParticipant(ctx, tx, cur); err != nil {
			return err
		}
		return f.hook.ParticipantWritten(ctx, tx, prev, cur)
	}))
}

func TestParticipantWritten_RoleTransitions(t *testing.T) {
	f := newFixture(t)
	e := f.createEvent(t, 48*time.Hour)
	f.rec.notices = nil

	p := &model.EventParticipant{EventID: e.ID, UserID: 2, Role: model.RoleCoHost}
	f.writeParticipant(t, nil, p)

	prev := *p
	p.Role = model.RoleSpeaker
	f.writeParticipant(t, &prev, p)

	require.Equal(t, []notify.Kind{notify.KindRoleAssigned, notify.KindRoleUpdated}, f.rec.kinds())
	upd := f.rec.notices[1]
	assert.Equal(t, model.RoleCoHost, upd.PreviousRole)
	assert.Equal(t, model.RoleSpeaker, upd.Role)
	assert.Equal(t, "guest@example.com", upd.Recipient.Email)
	assert.Equal(t, "Meetup", upd.Event.Title)
}

func TestParticipantWritten_RemovalWinsOverRoleChange(t *testing.T) {
	f := newFixture(t)
	e := f.createEvent(t, 48*time.Hour)
	p := &model.EventParticipant{EventID: e.ID, UserID: 2, Role: model.RoleCoHost}
	f.writeParticipant(t, nil, p)
	f.rec.notices = nil

	prev := *p
	p.Role = model.RoleSpeaker
	p.State = model.Deleted
	f.writeParticipant(t, &prev, p)

	require.Equal(t, []notify.Kind{notify.KindRoleRemoved}, f.rec.kinds())
	assert.Equal(t, model.RoleCoHost, f.rec.notices[0].Role)
}

func TestParticipantWritten_HostIsNeverNotified(t *testing.T) {
	f := newFixture(t)
	e := f.createEvent(t, 48*time.Hour)
	f.rec.notices = nil

	p := &model.EventParticipant{EventID: e.ID, UserID: 2, Role: model.RoleHost}
	f.writeParticipant(t, nil, p)
	assert.Empty(t, f.rec.notices)

	prev := *p
	p.Role = model.RoleAttendee
	f.writeParticipant(t, &prev, p)
	assert.Equal(t, []notify.Kind{notify.KindRoleUpdated}, f.rec.kinds())
}
