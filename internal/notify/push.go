package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/richardliu001/event-lifecycle/internal/model"
	"github.com/richardliu001/event-lifecycle/internal/requestid"
	"github.com/segmentio/kafka-go"
)

// DeviceRegistry resolves a user's push tokens.
type DeviceRegistry interface {
	DeviceTokens(ctx context.Context, userID uint64) ([]string, error)
}

// MessageWriter is the subset of *kafka.Writer the push channel uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type pushPayload struct {
	UserID  uint64   `json:"user_id"`
	Tokens  []string `json:"tokens"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Kind    Kind     `json:"kind"`
	EventID uint64   `json:"event_id"`
}

// PushChannel writes one Kafka message per notice, addressed to all of the user's devices.
type PushChannel struct {
	devices DeviceRegistry
	w       MessageWriter
}

func NewPushChannel(devices DeviceRegistry, w MessageWriter) *PushChannel {
	return &PushChannel{devices: devices, w: w}
}

func (c *PushChannel) Name() string { return "push" }

func (c *PushChannel) Accepts(ct model.Contact) bool { return ct.UserID != 0 }

func (c *PushChannel) Send(ctx context.Context, led *Ledger, n Notice) error {
	tokens, err := c.devices.DeviceTokens(ctx, n.Recipient.UserID)
	if err != nil {
		return fmt.Errorf("resolve devices of user %d: %w", n.Recipient.UserID, err)
	}
	msg := render(n)
	row := &model.PushNotification{
		EventID: n.Event.ID,
		UserID:  n.Recipient.UserID,
		Kind:    string(n.Kind),
		Title:   msg.Subject,
		Body:    msg.Short,
		Devices: len(tokens),
		Status:  model.DeliveryPending,
	}
	if len(tokens) == 0 {
		row.Status = model.DeliverySkipped
		return led.Record(row)
	}
	if err := led.Begin(row); err != nil {
		return fmt.Errorf("record push: %w", err)
	}

	value, err := json.Marshal(pushPayload{
		UserID:  n.Recipient.UserID,
		Tokens:  tokens,
		Title:   msg.Subject,
		Body:    msg.Short,
		Kind:    n.Kind,
		EventID: n.Event.ID,
	})
	if err != nil {
		return led.Settle(row, err)
	}
	err = c.w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(strconv.FormatUint(n.Recipient.UserID, 10)),
		Value:   value,
		Headers: []kafka.Header{{Key: requestid.Header, Value: []byte(requestid.From(ctx))}},
		Time:    time.Now(),
	})
	return led.Settle(row, err)
}
