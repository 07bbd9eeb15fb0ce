package broker

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewPushWriter returns a writer for the push topic. Messages are keyed by
// user id so one user's notifications stay ordered on a partition.
func NewPushWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
}
