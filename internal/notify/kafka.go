package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafkago.Writer the mailer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaMailer hands rendered emails to a mail relay through a Kafka topic.
// A successful write counts as sent; delivery is the relay's job.
type KafkaMailer struct {
	writer messageWriter
	clock  clockwork.Clock
}

// NewKafkaMailer creates a producer for topic. A nil clock means wall-clock time.
func NewKafkaMailer(brokers []string, topic string, clock clockwork.Clock) *KafkaMailer {
	return newKafkaMailer(&kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}, clock)
}

func newKafkaMailer(w messageWriter, clock clockwork.Clock) *KafkaMailer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &KafkaMailer{writer: w, clock: clock}
}

// Send publishes msg keyed by recipient address.
func (m *KafkaMailer) Send(ctx context.Context, msg Message) error {
	km, err := serializeToMessage(msg, m.clock.Now())
	if err != nil {
		return err
	}
	if err := m.writer.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("publishing alert email for %s: %w", msg.To, err)
	}
	return nil
}

// Close flushes and closes the producer.
func (m *KafkaMailer) Close() error {
	return m.writer.Close()
}

func serializeToMessage(msg Message, now time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert email: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(msg.To),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "content_type", Value: []byte("application/json")},
			{Key: "queued_at", Value: []byte(now.Format(time.RFC3339))},
		},
	}, nil
}
