// Package notify fans a lifecycle notice out to the email, sms and push
// channels. Every channel runs in its own failure boundary: a failing channel
// is logged and never affects the other channels or the caller's transaction.
package notify

import "github.com/richardliu001/event-lifecycle/internal/model"

// Kind of notification sent for a transition.
type Kind string

const (
	KindEventCreated  Kind = "event_created"
	KindEventUpdated  Kind = "event_updated"
	KindEventDeleted  Kind = "event_deleted"
	KindRoleAssigned  Kind = "role_assigned"
	KindRoleUpdated   Kind = "role_updated"
	KindRoleRemoved   Kind = "role_removed"
	KindEventReminder Kind = "event_reminder"
)

// Notice is everything a channel needs to render and address one notification.
type Notice struct {
	Kind      Kind
	Event     model.EventSummary
	Recipient model.Contact

	// Changed lists the updated columns for KindEventUpdated.
	Changed []string
	// Role is the assigned, new or removed role for role notices.
	Role model.Role
	// PreviousRole is set for KindRoleUpdated.
	PreviousRole model.Role
	// Reminder is set for KindEventReminder.
	Reminder model.ReminderType
}

// Suppressed reports whether the notice concerns the Host role, which is never announced.
func (n Notice) Suppressed() bool {
	switch n.Kind {
	case KindRoleAssigned, KindRoleUpdated, KindRoleRemoved:
		return n.Role == model.RoleHost
	}
	return false
}
