package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/richardliu001/event-lifecycle/internal/model"
	"github.com/richardliu001/event-lifecycle/internal/requestid"
)

// Publisher hands a job to the mail/sms workers over the broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte, correlationID string) error
}

type emailJob struct {
	To      string `json:"to"`
	Name    string `json:"name,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Kind    Kind   `json:"kind"`
	EventID uint64 `json:"event_id"`
	AuditID uint64 `json:"audit_id"`
}

// EmailChannel publishes email jobs and records them in the emails table.
type EmailChannel struct {
	pub Publisher
}

func NewEmailChannel(pub Publisher) *EmailChannel { return &EmailChannel{pub: pub} }

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Accepts(ct model.Contact) bool { return ct.Email != "" }

func (c *EmailChannel) Send(ctx context.Context, led *Ledger, n Notice) error {
	msg := render(n)
	row := &model.Email{
		EventID:   n.Event.ID,
		UserID:    n.Recipient.UserID,
		Kind:      string(n.Kind),
		Recipient: n.Recipient.Email,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Status:    model.DeliveryPending,
	}
	if err := led.Begin(row); err != nil {
		return fmt.Errorf("record email: %w", err)
	}
	body, err := json.Marshal(emailJob{
		To:      n.Recipient.Email,
		Name:    n.Recipient.Name,
		Subject: msg.Subject,
		Body:    msg.Body,
		Kind:    n.Kind,
		EventID: n.Event.ID,
		AuditID: row.ID,
	})
	if err != nil {
		return led.Settle(row, err)
	}
	err = c.pub.Publish(ctx, "email."+string(n.Kind), body, requestid.From(ctx))
	return led.Settle(row, err)
}
