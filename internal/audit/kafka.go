// Package audit publishes moderation events to a Kafka topic so external
// consumers (dashboards, retention jobs) can follow what the bot did.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event is the wire format for one moderation event.
type Event struct {
	GroupJID    string    `json:"group_jid"`
	Participant string    `json:"participant"`
	Rule        string    `json:"rule"`
	Verb        string    `json:"verb"`
	Detail      string    `json:"detail,omitempty"`
	SessionRole string    `json:"session_role,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher writes moderation events to Kafka.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a publisher for a comma-separated broker list.
func NewPublisher(brokers, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// Publish sends one event, keyed by group so per-group ordering survives
// partitioning.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.GroupJID),
		Value: value,
		Time:  ev.Timestamp,
	})
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
