// Package messaging publishes order events to Kafka.
package messaging

import (
	"context"

	"github.com/wqellis/brickvest/internal/order/domain"
	"github.com/wqellis/brickvest/pkg/mq"
)

// KafkaPublisher fans order events out on a single topic keyed by order ID,
// so events for one order stay in partition order.
type KafkaPublisher struct {
	producer *mq.KafkaProducer
	topic    string
}

// NewKafkaPublisher creates the publisher.
func NewKafkaPublisher(producer *mq.KafkaProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish implements domain.EventPublisher.
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	return p.producer.SendMessage(ctx, p.topic, event.OrderID, event)
}

// NoopPublisher drops events; used when Kafka is disabled in config.
type NoopPublisher struct{}

// Publish implements domain.EventPublisher.
func (NoopPublisher) Publish(context.Context, domain.OrderEvent) error { return nil }
