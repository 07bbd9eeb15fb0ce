package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/richardliu001/event-lifecycle/internal/dbtest"
	"github.com/richardliu001/event-lifecycle/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeChannel struct {
	name   string
	accept func(model.Contact) bool
	send   func(ctx context.Context, led *Ledger, n Notice) error

	mu    sync.Mutex
	calls []Notice
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Accepts(c model.Contact) bool {
	if f.accept == nil {
		return true
	}
	return f.accept(c)
}

func (f *fakeChannel) Send(ctx context.Context, led *Ledger, n Notice) error {
	f.mu.Lock()
	f.calls = append(f.calls, n)
	f.mu.Unlock()
	if f.send == nil {
		return nil
	}
	return f.send(ctx, led, n)
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func fullContact() model.Contact {
	return model.Contact{UserID: 9, Name: "Ada", Email: "ada@example.com", Mobile: "+15550100"}
}

func testNotice(kind Kind) Notice {
	return Notice{
		Kind:      kind,
		Event:     model.EventSummary{ID: 1, OwnerID: 9, Title: "Launch", StartDate: time.Date(2030, 1, 2, 18, 0, 0, 0, time.UTC)},
		Recipient: fullContact(),
	}
}

func TestDispatch_EmailFailureDoesNotBlockOtherChannels(t *testing.T) {
	email := &fakeChannel{name: "email", send: func(context.Context, *Ledger, Notice) error {
		return errors.New("smtp relay down")
	}}
	sms := &fakeChannel{name: "sms"}
	push := &fakeChannel{name: "push"}
	d := NewDispatcher(time.Second, zap.NewNop().Sugar(), email, sms, push)

	rep := d.Dispatch(context.Background(), nil, testNotice(KindEventCreated))

	assert.Equal(t, []string{"email", "sms", "push"}, rep.Attempted)
	assert.Len(t, rep.Failed, 1)
	assert.EqualError(t, rep.Failed["email"], "smtp relay down")
	assert.Equal(t, 1, sms.count())
	assert.Equal(t, 1, push.count())
}

func TestDispatch_PanicIsContained(t *testing.T) {
	email := &fakeChannel{name: "email", send: func(context.Context, *Ledger, Notice) error {
		panic("template exploded")
	}}
	sms := &fakeChannel{name: "sms"}
	d := NewDispatcher(time.Second, zap.NewNop().Sugar(), email, sms)

	rep := d.Dispatch(context.Background(), nil, testNotice(KindEventUpdated))

	require.Contains(t, rep.Failed, "email")
	assert.Contains(t, rep.Failed["email"].Error(), "panicked")
	assert.Equal(t, 1, sms.count())
	assert.False(t, rep.OK())
}

func TestDispatch_TimeoutIsChannelFailure(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	push := &fakeChannel{name: "push", send: func(context.Context, *Ledger, Notice) error {
		<-release
		return nil
	}}
	sms := &fakeChannel{name: "sms"}
	d := NewDispatcher(30*time.Millisecond, zap.NewNop().Sugar(), push, sms)

	start := time.Now()
	rep := d.Dispatch(context.Background(), nil, testNotice(KindEventDeleted))

	assert.Less(t, time.Since(start), time.Second)
	require.Contains(t, rep.Failed, "push")
	assert.ErrorIs(t, rep.Failed["push"], context.DeadlineExceeded)
	assert.NotContains(t, rep.Failed, "sms")
}

func TestDispatch_OnlyEligibleChannels(t *testing.T) {
	email := &fakeChannel{name: "email", accept: func(c model.Contact) bool { return c.Email != "" }}
	sms := &fakeChannel{name: "sms", accept: func(c model.Contact) bool { return c.Mobile != "" }}
	d := NewDispatcher(time.Second, zap.NewNop().Sugar(), email, sms)

	n := testNotice(KindEventCreated)
	n.Recipient.Mobile = ""
	rep := d.Dispatch(context.Background(), nil, n)

	assert.Equal(t, []string{"email"}, rep.Attempted)
	assert.Equal(t, 0, sms.count())
}

func TestDispatch_HostRoleIsSuppressed(t *testing.T) {
	email := &fakeChannel{name: "email"}
	d := NewDispatcher(time.Second, zap.NewNop().Sugar(), email)

	for _, kind := range []Kind{KindRoleAssigned, KindRoleUpdated, KindRoleRemoved} {
		n := testNotice(kind)
		n.Role = model.RoleHost
		rep := d.Dispatch(context.Background(), nil, n)
		assert.Empty(t, rep.Attempted, kind)
	}
	assert.Equal(t, 0, email.count())

	n := testNotice(KindRoleUpdated)
	n.PreviousRole, n.Role = model.RoleHost, model.RoleSpeaker
	d.Dispatch(context.Background(), nil, n)
	assert.Equal(t, 1, email.count())
}

func TestDispatch_FailedAuditWriteKeepsTransaction(t *testing.T) {
	db := dbtest.Open(t)
	existing := model.Email{Recipient: "x@example.com", Kind: "seed", Status: model.DeliverySent}
	require.NoError(t, db.Create(&existing).Error)

	dup := &fakeChannel{name: "email", send: func(_ context.Context, led *Ledger, n Notice) error {
		return led.Record(&model.Email{ID: existing.ID, Recipient: "dup", Kind: "dup", Status: model.DeliveryPending})
	}}
	sms := &fakeChannel{name: "sms", send: func(_ context.Context, led *Ledger, n Notice) error {
		return led.Record(&model.Sms{EventID: 1, Mobile: n.Recipient.Mobile, Kind: string(n.Kind), Status: model.DeliverySent})
	}}
	d := NewDispatcher(time.Second, zap.NewNop().Sugar(), dup, sms)

	var rep Report
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model.Event{OwnerID: 9, Title: "Launch"}).Error; err != nil {
			return err
		}
		rep = d.Dispatch(context.Background(), tx, testNotice(KindEventCreated))
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, rep.Failed, "email")

	var events, sent int64
	require.NoError(t, db.Model(&model.Event{}).Count(&events).Error)
	require.NoError(t, db.Model(&model.Sms{}).Count(&sent).Error)
	assert.EqualValues(t, 1, events)
	assert.EqualValues(t, 1, sent)
}

func TestLedger_ClosedRejectsWrites(t *testing.T) {
	led := NewLedger(context.Background(), nil)
	require.NoError(t, led.Record(&model.Email{}))
	led.Close()
	assert.ErrorIs(t, led.Record(&model.Email{}), errLedgerClosed)
}

// blockingPublisher holds every publish until its context ends or release is closed.
type blockingPublisher struct {
	release chan struct{}
}

func (p blockingPublisher) Publish(ctx context.Context, _ string, _ []byte, _ string) error {
	if p.release == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	<-p.release
	return nil
}

func dispatchInTx(t *testing.T, db *gorm.DB, d *Dispatcher) Report {
	t.Helper()
	var rep Report
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model.Event{OwnerID: 9, Title: "Launch"}).Error; err != nil {
			return err
		}
		rep = d.Dispatch(context.Background(), tx, testNotice(KindEventCreated))
		return nil
	})
	require.NoError(t, err)
	return rep
}

func TestDispatch_TimedOutEmailIsAuditedFailed(t *testing.T) {
	db := dbtest.Open(t)
	d := NewDispatcher(50*time.Millisecond, zap.NewNop().Sugar(), NewEmailChannel(blockingPublisher{}))

	rep := dispatchInTx(t, db, d)
	require.Contains(t, rep.Failed, "email")

	var rows []model.Email
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, model.DeliveryFailed, rows[0].Status)
	assert.NotEmpty(t, rows[0].Error)

	var events int64
	require.NoError(t, db.Model(&model.Event{}).Count(&events).Error)
	assert.EqualValues(t, 1, events, "a channel timeout must not roll back the write")
}

func TestDispatch_HungChannelRowIsFailedOnClose(t *testing.T) {
	db := dbtest.Open(t)
	release := make(chan struct{})
	defer close(release)
	d := NewDispatcher(30*time.Millisecond, zap.NewNop().Sugar(),
		NewEmailChannel(blockingPublisher{release: release}),
		NewSmsChannel(&fakePublisher{}),
	)

	rep := dispatchInTx(t, db, d)
	require.Contains(t, rep.Failed, "email")
	assert.NotContains(t, rep.Failed, "sms")

	var email model.Email
	require.NoError(t, db.First(&email).Error)
	assert.Equal(t, model.DeliveryFailed, email.Status)
	assert.Equal(t, errUnsettled.Error(), email.Error)

	var sms model.Sms
	require.NoError(t, db.First(&sms).Error)
	assert.Equal(t, model.DeliverySent, sms.Status)
}

func TestLedger_UsesItsOwnContext(t *testing.T) {
	db := dbtest.Open(t)

	live := NewLedger(context.Background(), db)
	row := &model.Email{Recipient: "a@example.com", Kind: "event_created", Status: model.DeliveryPending}
	require.NoError(t, live.Begin(row))
	require.NoError(t, live.Settle(row, nil))
	require.NoError(t, live.Close())

	var stored model.Email
	require.NoError(t, db.First(&stored, row.ID).Error)
	assert.Equal(t, model.DeliverySent, stored.Status, "settled rows are left alone on close")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dead := NewLedger(ctx, db)
	assert.ErrorIs(t, dead.Record(&model.Email{Kind: "x", Status: model.DeliverySent}), context.Canceled)
}
