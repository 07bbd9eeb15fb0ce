package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/richardliu001/event-lifecycle/internal/model"
	"github.com/richardliu001/event-lifecycle/internal/requestid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const defaultChannelTimeout = 5 * time.Second

// Channel delivers a notice over one medium.
type Channel interface {
	Name() string
	// Accepts reports whether the recipient can be reached on this channel.
	Accepts(c model.Contact) bool
	Send(ctx context.Context, led *Ledger, n Notice) error
}

// Report describes what one Dispatch call did.
type Report struct {
	Attempted []string
	Failed    map[string]error
}

// OK reports whether every attempted channel succeeded.
func (r Report) OK() bool { return len(r.Failed) == 0 }

// Dispatcher fans notices out to its channels.
type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
	log      *zap.SugaredLogger
}

// NewDispatcher returns a dispatcher bounding every channel call by timeout.
func NewDispatcher(timeout time.Duration, logger *zap.SugaredLogger, channels ...Channel) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultChannelTimeout
	}
	return &Dispatcher{channels: channels, timeout: timeout, log: logger}
}

// Dispatch sends n on every channel that accepts its recipient. tx is used
// only for audit rows and may be nil outside a request. Channel failures are
// logged and reported, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, tx *gorm.DB, n Notice) Report {
	ctx, cid := requestid.Ensure(ctx)
	rep := Report{Failed: make(map[string]error)}
	if n.Suppressed() {
		d.log.Debugw("notice suppressed", "kind", n.Kind, "role", n.Role, "recipient", n.Recipient.UserID)
		return rep
	}

	led := NewLedger(ctx, tx)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, ch := range d.channels {
		ch := ch
		if !ch.Accepts(n.Recipient) {
			continue
		}
		rep.Attempted = append(rep.Attempted, ch.Name())
		g.Go(func() error {
			err := d.deliver(ctx, ch, led, n)
			if err == nil {
				return nil
			}
			mu.Lock()
			rep.Failed[ch.Name()] = err
			mu.Unlock()
			d.log.Warnw("notification delivery failed",
				"channel", ch.Name(),
				"kind", n.Kind,
				"event_id", n.Event.ID,
				"recipient", n.Recipient.UserID,
				"correlation_id", cid,
				"error", err)
			return nil
		})
	}
	_ = g.Wait()
	if err := led.Close(); err != nil {
		d.log.Warnw("audit rows left unsettled",
			"kind", n.Kind,
			"event_id", n.Event.ID,
			"recipient", n.Recipient.UserID,
			"correlation_id", cid,
			"error", err)
	}
	return rep
}

// deliver runs one channel with its own timeout and panic boundary.
func (d *Dispatcher) deliver(ctx context.Context, ch Channel, led *Ledger, n Notice) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%s channel panicked: %v", ch.Name(), r)
			}
		}()
		done <- ch.Send(ctx, led, n)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%s channel: %w", ch.Name(), ctx.Err())
	}
}
