package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"refsync/pkg/requestcontext"
)

// Producer is the part of *kgo.Client the notifier uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Message is the record value published for each run.
type Message struct {
	RunID   string    `json:"run_id,omitempty"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// Kafka publishes the summary to a topic, keyed by run id.
type Kafka struct {
	producer Producer
	topic    string
}

func NewKafka(producer Producer, topic string) (*Kafka, error) {
	if producer == nil {
		return nil, fmt.Errorf("producer is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	return &Kafka{producer: producer, topic: topic}, nil
}

func (k *Kafka) Notify(ctx context.Context, subject, body string) error {
	msg := Message{
		RunID:   requestcontext.RunID(ctx),
		Subject: subject,
		Body:    body,
		SentAt:  requestcontext.Now(ctx),
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	record := &kgo.Record{Topic: k.topic, Key: []byte(msg.RunID), Value: value}
	if err := k.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}
	return nil
}
