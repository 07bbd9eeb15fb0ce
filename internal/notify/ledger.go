package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/richardliu001/event-lifecycle/internal/model"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

var (
	errLedgerClosed = errors.New("ledger closed")
	errUnsettled    = errors.New("delivery did not finish")
)

// Ledger is the only access channels get to the caller's transaction: it
// writes and settles audit rows. Writes are serialised on the shared
// transaction and each runs in its own savepoint, so a failed insert rolls
// back only itself. A nil db turns the ledger into a no-op.
//
// Statements run on the context the ledger was created with, never on a
// channel's deadline: cancelling a statement mid-flight can take the whole
// transaction down with it.
type Ledger struct {
	mu     sync.Mutex
	ctx    context.Context
	db     *gorm.DB
	open   []interface{}
	closed bool
}

// NewLedger wraps db, usually the in-flight transaction.
func NewLedger(ctx context.Context, db *gorm.DB) *Ledger {
	return &Ledger{ctx: ctx, db: db}
}

// Record inserts a row whose status is already final.
func (l *Ledger) Record(row interface{}) error {
	return l.exec(func(sp *gorm.DB) error {
		return sp.Create(row).Error
	})
}

// Begin inserts a pending row. It must be settled; Close fails it otherwise.
func (l *Ledger) Begin(row interface{}) error {
	return l.exec(func(sp *gorm.DB) error {
		if err := sp.Create(row).Error; err != nil {
			return err
		}
		l.open = append(l.open, row)
		return nil
	})
}

// Mark updates the status of a recorded row.
func (l *Ledger) Mark(row interface{}, status model.DeliveryStatus, reason string) error {
	return l.exec(func(sp *gorm.DB) error {
		if err := mark(sp, row, status, reason); err != nil {
			return err
		}
		l.forget(row)
		return nil
	})
}

// Settle marks row sent, or failed when cause is non-nil, and returns the delivery outcome.
func (l *Ledger) Settle(row interface{}, cause error) error {
	status, reason := model.DeliverySent, ""
	if cause != nil {
		status, reason = model.DeliveryFailed, cause.Error()
	}
	if err := l.Mark(row, status, reason); err != nil && cause == nil {
		return fmt.Errorf("settle audit row: %w", err)
	}
	return cause
}

// Close fails every row that was begun but never settled, then stops further
// writes. Channels that outlive their dispatch (timed out) must not touch a
// transaction the caller has moved on with.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.db == nil {
		return nil
	}
	var errs error
	for _, row := range l.open {
		errs = multierr.Append(errs, l.run(func(sp *gorm.DB) error {
			return mark(sp, row, model.DeliveryFailed, errUnsettled.Error())
		}))
	}
	l.open = nil
	return errs
}

func (l *Ledger) exec(fn func(sp *gorm.DB) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errLedgerClosed
	}
	if l.db == nil {
		return nil
	}
	return l.run(fn)
}

// run executes fn in a savepoint. Callers hold mu.
func (l *Ledger) run(fn func(sp *gorm.DB) error) error {
	return l.db.WithContext(l.ctx).Transaction(fn)
}

// forget drops row from the unsettled set. Callers hold mu.
func (l *Ledger) forget(row interface{}) {
	for i, r := range l.open {
		if r == row {
			l.open = append(l.open[:i], l.open[i+1:]...)
			return
		}
	}
}

func mark(db *gorm.DB, row interface{}, status model.DeliveryStatus, reason string) error {
	return db.Model(row).Updates(map[string]interface{}{"status": status, "error": reason}).Error
}
