package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/basherkella/cardstudio/internal/domain"
)

// EventPublisher publishes domain events to a Pub/Sub topic.
type EventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewEventPublisher wraps topic.
func NewEventPublisher(topic *pubsub.Topic) (*EventPublisher, error) {
	if topic == nil {
		return nil, errors.New("event publisher: topic is required")
	}
	return &EventPublisher{topic: topic, marshal: json.Marshal}, nil
}

// Publish sends event and waits for the server id.
func (p *EventPublisher) Publish(ctx context.Context, event domain.Event) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("event publisher: not initialised")
	}
	if strings.TrimSpace(event.Type) == "" {
		return "", errors.New("event publisher: event type is required")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	attrs := map[string]string{"type": event.Type}
	setAttr(attrs, "subjectId", event.SubjectID)
	setAttr(attrs, "actorId", event.ActorID)

	result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return id, nil
}

// Stop flushes pending messages.
func (p *EventPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
