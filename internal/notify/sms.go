package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/richardliu001/event-lifecycle/internal/model"
	"github.com/richardliu001/event-lifecycle/internal/requestid"
)

type smsJob struct {
	To      string `json:"to"`
	Body    string `json:"body"`
	Kind    Kind   `json:"kind"`
	EventID uint64 `json:"event_id"`
	AuditID uint64 `json:"audit_id"`
}

// SmsChannel publishes sms jobs and records them in the sms table.
type SmsChannel struct {
	pub Publisher
}

func NewSmsChannel(pub Publisher) *SmsChannel { return &SmsChannel{pub: pub} }

func (c *SmsChannel) Name() string { return "sms" }

func (c *SmsChannel) Accepts(ct model.Contact) bool { return ct.Mobile != "" }

func (c *SmsChannel) Send(ctx context.Context, led *Ledger, n Notice) error {
	msg := render(n)
	row := &model.Sms{
		EventID: n.Event.ID,
		UserID:  n.Recipient.UserID,
		Kind:    string(n.Kind),
		Mobile:  n.Recipient.Mobile,
		Body:    msg.Short,
		Status:  model.DeliveryPending,
	}
	if err := led.Begin(row); err != nil {
		return fmt.Errorf("record sms: %w", err)
	}
	body, err := json.Marshal(smsJob{
		To:      n.Recipient.Mobile,
		Body:    msg.Short,
		Kind:    n.Kind,
		EventID: n.Event.ID,
		AuditID: row.ID,
	})
	if err != nil {
		return led.Settle(row, err)
	}
	err = c.pub.Publish(ctx, "sms."+string(n.Kind), body, requestid.From(ctx))
	return led.Settle(row, err)
}
