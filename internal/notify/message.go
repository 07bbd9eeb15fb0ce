package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/richardliu001/event-lifecycle/internal/model"
)

const timeLayout = "Mon, 02 Jan 2006 15:04 MST"

type message struct {
	Subject string
	Body    string
	// Short is the sms / push body.
	Short string
}

var fieldLabels = map[string]string{
	"title":       "title",
	"description": "description",
	"start_date":  "start time",
	"end_date":    "end time",
	"address":     "address",
}

func roleLabel(r model.Role) string {
	return strings.ReplaceAll(strings.ToLower(string(r)), "_", "-")
}

func when(t time.Time) string { return t.UTC().Format(timeLayout) }

func greeting(c model.Contact) string {
	if c.Name == "" {
		return "Hi,"
	}
	return fmt.Sprintf("Hi %s,", c.Name)
}

func changedLabels(fields []string) string {
	labels := make([]string, 0, len(fields))
	for _, f := range fields {
		if l, ok := fieldLabels[f]; ok {
			labels = append(labels, l)
		} else {
			labels = append(labels, f)
		}
	}
	return strings.Join(labels, ", ")
}

func render(n Notice) message {
	ev := n.Event
	var m message
	switch n.Kind {
	case KindEventCreated:
		m.Subject = fmt.Sprintf("Your event %q is live", ev.Title)
		m.Short = fmt.Sprintf("%q is scheduled for %s.", ev.Title, when(ev.StartDate))
	case KindEventUpdated:
		m.Subject = fmt.Sprintf("Your event %q was updated", ev.Title)
		m.Short = fmt.Sprintf("%q changed: %s. It starts %s.", ev.Title, changedLabels(n.Changed), when(ev.StartDate))
	case KindEventDeleted:
		m.Subject = fmt.Sprintf("Your event %q was cancelled", ev.Title)
		m.Short = fmt.Sprintf("%q has been cancelled.", ev.Title)
	case KindRoleAssigned:
		m.Subject = fmt.Sprintf("You are a %s of %q", roleLabel(n.Role), ev.Title)
		m.Short = fmt.Sprintf("You were added to %q as %s.", ev.Title, roleLabel(n.Role))
	case KindRoleUpdated:
		m.Subject = fmt.Sprintf("Your role in %q changed", ev.Title)
		m.Short = fmt.Sprintf("Your role in %q changed from %s to %s.", ev.Title, roleLabel(n.PreviousRole), roleLabel(n.Role))
	case KindRoleRemoved:
		m.Subject = fmt.Sprintf("You were removed from %q", ev.Title)
		m.Short = fmt.Sprintf("You are no longer %s of %q.", roleLabel(n.Role), ev.Title)
	case KindEventReminder:
		m.Subject = fmt.Sprintf("Reminder: %q is coming up", ev.Title)
		m.Short = fmt.Sprintf("%q starts %s.", ev.Title, when(ev.StartDate))
	default:
		m.Subject = ev.Title
		m.Short = ev.Title
	}

	body := []string{greeting(n.Recipient), "", m.Short}
	if ev.Address != "" && n.Kind != KindEventDeleted && n.Kind != KindRoleRemoved {
		body = append(body, "Where: "+ev.Address)
	}
	m.Body = strings.Join(body, "\n")
	return m
}
