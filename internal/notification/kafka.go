package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaNotifier publishes notifications to a Kafka topic for downstream
// consumers such as mailers and analytics.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier wraps an existing Kafka writer.
func NewKafkaNotifier(writer *kafka.Writer) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

type kafkaEnvelope struct {
	Kind        string            `json:"kind"`
	Destination string            `json:"destination"`
	Body        string            `json:"body"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// Send publishes the message keyed by kind so consumers can partition on it.
func (n *KafkaNotifier) Send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(kafkaEnvelope{
		Kind:        message.Kind,
		Destination: message.Destination,
		Body:        message.Body,
		Meta:        message.Meta,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(message.Kind),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
