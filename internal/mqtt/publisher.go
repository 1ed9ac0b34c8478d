package mqtt

import (
	"context"
	"encoding/json"

	"github.com/tphakala/push-dispatcher/internal/errors"
	"github.com/tphakala/push-dispatcher/internal/push"
)

// Publisher forwards invalidations to an MQTT topic. It implements
// push.Invalidator.
type Publisher struct {
	client  Client
	topic   string
	metrics Recorder
}

var _ push.Invalidator = (*Publisher)(nil)

// NewPublisher creates a Publisher writing to topic.
func NewPublisher(client Client, topic string, metrics Recorder) *Publisher {
	if topic == "" {
		topic = DefaultConfig().Topic
	}
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Publisher{client: client, topic: topic, metrics: metrics}
}

// Invalidate publishes inv as an InvalidationEvent.
func (p *Publisher) Invalidate(ctx context.Context, inv push.Invalidation) error {
	payload, err := json.Marshal(NewInvalidationEvent(inv))
	if err != nil {
		p.metrics.RecordError("encode")
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("operation", "encode_event").
			Build()
	}
	return p.client.Publish(ctx, p.topic, payload)
}

// Topic returns the topic events are published to.
func (p *Publisher) Topic() string {
	return p.topic
}
