package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/brewcoin/api/internal/services"
)

// PubSubSettlementPublisher publishes settlement retry jobs to a Pub/Sub topic.
type PubSubSettlementPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubSettlementPublisher constructs a Pub/Sub backed settlement job publisher.
func NewPubSubSettlementPublisher(topic *pubsub.Topic) (*PubSubSettlementPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub settlement publisher: topic is required")
	}
	return &PubSubSettlementPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishSettlementJob enqueues a settlement retry message on the configured topic.
// The order ID rides along as an attribute so subscribers can filter without decoding.
func (p *PubSubSettlementPublisher) PublishSettlementJob(ctx context.Context, message services.SettlementJobMessage) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub settlement publisher: not initialised")
	}
	if strings.TrimSpace(message.OrderID) == "" {
		return errors.New("pubsub settlement publisher: order id is required")
	}

	data, err := p.marshal(message)
	if err != nil {
		return fmt.Errorf("marshal settlement job: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "reason", message.Reason)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish settlement job: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
