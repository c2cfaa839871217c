// Package pubsub implements a Google Cloud Pub/Sub publisher for batch notifications.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
)

// Source is attached to every message as the "source" attribute.
const Source = "distcrawl-orchestrator"

type result interface {
	Get(ctx context.Context) (string, error)
}

type topic interface {
	Publish(ctx context.Context, msg *pubsub.Message) result
}

type topicPublisher struct {
	publisher *pubsub.Publisher
}

func (t topicPublisher) Publish(ctx context.Context, msg *pubsub.Message) result {
	return t.publisher.Publish(ctx, msg)
}

// Publisher wraps a Pub/Sub publisher client.
type Publisher struct {
	topic topic
	close func() error
}

// New creates a Publisher for the provided topic publisher.
func New(publisher *pubsub.Publisher) *Publisher {
	if publisher == nil {
		return &Publisher{}
	}
	return &Publisher{topic: topicPublisher{publisher: publisher}}
}

// Dial connects to projectID and returns a Publisher bound to topicID.
func Dial(ctx context.Context, projectID, topicID string) (*Publisher, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project_id and topic_name are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	publisher := client.Publisher(topicID)
	return &Publisher{
		topic: topicPublisher{publisher: publisher},
		close: func() error {
			publisher.Stop()
			if err := client.Close(); err != nil {
				return fmt.Errorf("close pubsub client: %w", err)
			}
			return nil
		},
	}, nil
}

// Publish marshals the payload to JSON and waits for the server to acknowledge it.
// The topic argument is recorded as an attribute; routing is fixed by the bound publisher.
func (p *Publisher) Publish(ctx context.Context, topicName string, payload any) (string, error) {
	if p == nil || p.topic == nil {
		return "", fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"content_type": "application/json",
			"source":       Source,
			"topic":        topicName,
		},
	}
	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Close flushes pending messages and releases the client.
func (p *Publisher) Close() error {
	if p == nil || p.close == nil {
		return nil
	}
	return p.close()
}
