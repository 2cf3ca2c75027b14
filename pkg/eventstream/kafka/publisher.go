// Package kafka publishes record mutation events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	segmentio "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/recall/pkg/eventstream"
)

// Publisher implements eventstream.Publisher on a Kafka topic. Messages are
// keyed by user id so mutations for one user stay ordered within a partition.
type Publisher struct {
	writer *segmentio.Writer
}

// NewPublisher creates a Kafka-backed publisher for the given brokers and
// topic.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}

	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	return &Publisher{
		writer: &segmentio.Writer{
			Addr:     segmentio.TCP(brokers...),
			Topic:    topic,
			Balancer: &segmentio.LeastBytes{},
		},
	}, nil
}

// PublishMutation emits the event as a JSON message keyed by user id.
func (p *Publisher) PublishMutation(ctx context.Context, event *eventstream.RecordMutatedEvent) error {
	if event == nil {
		return eventstream.ErrNilMutationEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding mutation event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, segmentio.Message{
		Key:   []byte(event.UserID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("publishing mutation event: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
