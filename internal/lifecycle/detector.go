// Package lifecycle classifies writes to events and participants and runs
// their side effects inside the writing transaction.
package lifecycle

import (
	"strings"

	"github.com/richardliu001/event-lifecycle/internal/model"
)

// Kind of a classified write.
type Kind int

const (
	NoOp Kind = iota
	Created
	SoftDeleted
	MeaningfulUpdate
	RoleAssigned
	RoleChanged
	RoleRemoved
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case SoftDeleted:
		return "soft_deleted"
	case MeaningfulUpdate:
		return "meaningful_update"
	case RoleAssigned:
		return "role_assigned"
	case RoleChanged:
		return "role_changed"
	case RoleRemoved:
		return "role_removed"
	}
	return "noop"
}

// Transition is the single domain change a write amounts to.
type Transition struct {
	Kind Kind
	// Changed holds the notification fields that moved, for MeaningfulUpdate.
	Changed []string
	// From and To are the roles involved. RoleAssigned sets To, RoleRemoved sets From.
	From, To model.Role
}

func (t Transition) String() string {
	switch t.Kind {
	case MeaningfulUpdate:
		return t.Kind.String() + "(" + strings.Join(t.Changed, ",") + ")"
	case RoleAssigned:
		return t.Kind.String() + "(" + string(t.To) + ")"
	case RoleChanged:
		return t.Kind.String() + "(" + string(t.From) + "->" + string(t.To) + ")"
	case RoleRemoved:
		return t.Kind.String() + "(" + string(t.From) + ")"
	}
	return t.Kind.String()
}

// Has reports whether field is among the changed fields.
func (t Transition) Has(field string) bool {
	for _, f := range t.Changed {
		if f == field {
			return true
		}
	}
	return false
}

// FieldStartDate is the changed-field name that makes an update reschedule reminders.
const FieldStartDate = "start_date"

// eventFields are the event columns whose change is worth a notification, in report order.
var eventFields = []struct {
	name  string
	equal func(a, b *model.Event) bool
}{
	{"title", func(a, b *model.Event) bool { return a.Title == b.Title }},
	{"description", func(a, b *model.Event) bool { return a.Description == b.Description }},
	{FieldStartDate, func(a, b *model.Event) bool { return model.SameInstant(a.StartDate, b.StartDate) }},
	{"end_date", func(a, b *model.Event) bool { return model.SameInstant(a.EndDate, b.EndDate) }},
	{"address", func(a, b *model.Event) bool { return a.Address == b.Address }},
}

// ClassifyEvent compares two snapshots of an event. prev is nil for the initial write.
// Inputs that cannot happen for well-formed rows classify as NoOp.
func ClassifyEvent(prev, cur *model.Event) Transition {
	if cur == nil {
		return Transition{}
	}
	if prev == nil {
		if cur.State.IsDeleted() {
			return Transition{}
		}
		return Transition{Kind: Created}
	}
	if prev.ID != cur.ID {
		return Transition{}
	}
	if _, err := prev.State.Advance(cur.State); err != nil {
		return Transition{}
	}
	if !prev.State.IsDeleted() && cur.State.IsDeleted() {
		return Transition{Kind: SoftDeleted}
	}
	if cur.State.IsDeleted() {
		return Transition{}
	}

	var changed []string
	for _, f := range eventFields {
		if !f.equal(prev, cur) {
			changed = append(changed, f.name)
		}
	}
	if len(changed) == 0 {
		return Transition{}
	}
	return Transition{Kind: MeaningfulUpdate, Changed: changed}
}

// ClassifyParticipant compares two snapshots of a participant. prev is nil for
// the initial write, which is the participant's role assignment.
func ClassifyParticipant(prev, cur *model.EventParticipant) Transition {
	if cur == nil {
		return Transition{}
	}
	if prev == nil {
		if cur.State.IsDeleted() {
			return Transition{}
		}
		return Transition{Kind: RoleAssigned, To: cur.Role}
	}
	if prev.ID != cur.ID {
		return Transition{}
	}
	if _, err := prev.State.Advance(cur.State); err != nil {
		return Transition{}
	}
	// removal wins over a role edit in the same write
	if !prev.State.IsDeleted() && cur.State.IsDeleted() {
		return Transition{Kind: RoleRemoved, From: prev.Role}
	}
	if cur.State.IsDeleted() {
		return Transition{}
	}
	if prev.Role != cur.Role {
		return Transition{Kind: RoleChanged, From: prev.Role, To: cur.Role}
	}
	return Transition{}
}
