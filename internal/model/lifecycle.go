package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
)

// ErrLifecycleReversal is returned when a deleted row is asked to become active again.
var ErrLifecycleReversal = errors.New("lifecycle: deleted rows cannot be restored")

// Lifecycle is the soft-delete state of a row, stored in the boolean is_deleted column.
// It only ever moves Active -> Deleted.
type Lifecycle uint8

const (
	Active Lifecycle = iota
	Deleted
)

func (l Lifecycle) IsDeleted() bool { return l == Deleted }

func (l Lifecycle) String() string {
	if l == Deleted {
		return "deleted"
	}
	return "active"
}

// Advance returns the state after moving to next.
func (l Lifecycle) Advance(next Lifecycle) (Lifecycle, error) {
	if l == Deleted && next != Deleted {
		return l, ErrLifecycleReversal
	}
	return next, nil
}

// Value implements driver.Valuer.
func (l Lifecycle) Value() (driver.Value, error) { return l == Deleted, nil }

// Scan implements sql.Scanner. SQLite hands back integers, postgres booleans.
func (l *Lifecycle) Scan(src interface{}) error {
	var deleted bool
	switch v := src.(type) {
	case nil:
	case bool:
		deleted = v
	case int64:
		deleted = v != 0
	case []byte:
		deleted = string(v) == "t" || string(v) == "true" || string(v) == "1"
	case string:
		deleted = v == "t" || v == "true" || v == "1"
	default:
		return fmt.Errorf("lifecycle: cannot scan %T", src)
	}
	if deleted {
		*l = Deleted
	} else {
		*l = Active
	}
	return nil
}

// Instant normalises t the way the database stores it: UTC, microsecond precision.
func Instant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// SameInstant reports whether a and b are equal once normalised.
func SameInstant(a, b time.Time) bool {
	return Instant(a).Equal(Instant(b))
}
