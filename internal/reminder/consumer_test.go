package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/richardliu001/event-lifecycle/internal/dbtest"
	"github.com/richardliu001/event-lifecycle/internal/model"
	"github.com/richardliu001/event-lifecycle/internal/notify"
	"github.com/richardliu001/event-lifecycle/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recorder struct {
	mu      sync.Mutex
	notices []notify.Notice
}

func (r *recorder) Dispatch(_ context.Context, tx *gorm.DB, n notify.Notice) notify.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return notify.Report{}
}

func (r *recorder) users() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uint64
	for _, n := range r.notices {
		ids = append(ids, n.Recipient.UserID)
	}
	return ids
}

func newConsumer(t *testing.T, s *Scheduler, r *repo.Repository, rec *recorder) *Consumer {
	c := NewConsumer(r, s, rec, 10, zap.NewNop().Sugar())
	c.SetClock(func() time.Time { return clock })
	return c
}

// dueEvent creates an event whose hour_before reminder was due a minute ago.
func dueEvent(t *testing.T, db *gorm.DB) (*model.Event, model.EventReminder) {
	t.Helper()
	e := seedEvent(t, db, clock.Add(59*time.Minute))
	rem := model.EventReminder{EventID: e.ID, ReminderType: "hour_before", ReminderTime: e.StartDate.Add(-time.Hour)}
	require.NoError(t, db.Create(&rem).Error)
	return e, rem
}

func TestRunOnce_DeliversToOwnerAndParticipants(t *testing.T) {
	s, r, db := newScheduler(t)
	rec := &recorder{}
	c := newConsumer(t, s, r, rec)

	e, rem := dueEvent(t, db)
	dbtest.SeedUser(t, db, 1, "owner@example.com", "")
	dbtest.SeedUser(t, db, 2, "speaker@example.com", "")
	dbtest.SeedUser(t, db, 3, "gone@example.com", "")
	require.NoError(t, db.Create(&[]model.EventParticipant{
		{EventID: e.ID, UserID: 1, Role: model.RoleHost},
		{EventID: e.ID, UserID: 2, Role: model.RoleSpeaker},
		{EventID: e.ID, UserID: 3, Role: model.RoleAttendee, State: model.Deleted},
	}).Error)

	n, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uint64{1, 2}, rec.users())
	assert.Equal(t, notify.KindEventReminder, rec.notices[0].Kind)
	assert.Equal(t, model.ReminderType("hour_before"), rec.notices[0].Reminder)

	var stored model.EventReminder
	require.NoError(t, db.First(&stored, rem.ID).Error)
	assert.True(t, stored.IsSent)

	n, err = c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, rec.users(), 2)
}

func TestRunOnce_DropsStaleAndDeleted(t *testing.T) {
	s, r, db := newScheduler(t)
	rec := &recorder{}
	c := newConsumer(t, s, r, rec)
	dbtest.SeedUser(t, db, 1, "owner@example.com", "")

	moved, _ := dueEvent(t, db)
	require.NoError(t, db.Model(moved).Update("start_date", clock.Add(3*time.Hour)).Error)

	deleted, _ := dueEvent(t, db)
	require.NoError(t, db.Model(deleted).Update("is_deleted", model.Deleted).Error)

	n, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, rec.users())

	var unsent int64
	require.NoError(t, db.Model(&model.EventReminder{}).Where("is_sent = ?", false).Count(&unsent).Error)
	assert.Zero(t, unsent, "claimed rows stay claimed even when dropped")
}

func TestRunOnce_ConcurrentConsumersDeliverOnce(t *testing.T) {
	s, r, db := newScheduler(t)
	rec := &recorder{}
	dbtest.SeedUser(t, db, 1, "owner@example.com", "")
	dueEvent(t, db)
	dueEvent(t, db)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := newConsumer(t, s, r, rec).RunOnce(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, total)
	assert.Len(t, rec.users(), 2)
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, r, db := newScheduler(t)
	rec := &recorder{}
	dbtest.SeedUser(t, db, 1, "owner@example.com", "")
	dueEvent(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newConsumer(t, s, r, rec).Run(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool { return len(rec.users()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}
