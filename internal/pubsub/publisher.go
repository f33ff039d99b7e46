package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"streampass/internal/config"
	"streampass/internal/model"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// Publisher defines an interface for publishing messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, attrs map[string]string) (string, error)
}

// PubSubPublisher is an implementation of Publisher using Google Pub/Sub.
type PubSubPublisher struct {
	client *pubsub.Client
}

// NewPublisher creates a new PubSubPublisher using the GCP project from config.
func NewPublisher(ctx context.Context, cfg *config.Config) (*PubSubPublisher, error) {
	if cfg.GCPProjectID == "" {
		return nil, errors.New("GCP_PROJECT_ID is not set")
	}
	client, err := pubsub.NewClient(ctx, cfg.GCPProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &PubSubPublisher{client: client}, nil
}

// Publish sends the payload to the given Pub/Sub topic and returns the message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, topic string, payload []byte, attrs map[string]string) (string, error) {
	t := p.client.Topic(topic)
	result := t.Publish(ctx, &pubsub.Message{Data: payload, Attributes: attrs})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}
	return id, nil
}

func (p *PubSubPublisher) Close() error {
	return p.client.Close()
}

// NoopPublisher drops every message. Used when no GCP project is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte, map[string]string) (string, error) {
	return "", nil
}

// SubscriptionNotifier announces billing state changes to other services.
type SubscriptionNotifier interface {
	NotifySubscriptionChange(ctx context.Context, change model.SubscriptionChange) error
}

type subscriptionNotifier struct {
	publisher Publisher
	topic     string
	logger    zerolog.Logger
}

func NewSubscriptionNotifier(publisher Publisher, topic string, logger zerolog.Logger) SubscriptionNotifier {
	return &subscriptionNotifier{
		publisher: publisher,
		topic:     topic,
		logger:    logger.With().Str("component", "SubscriptionNotifier").Logger(),
	}
}

func (n *subscriptionNotifier) NotifySubscriptionChange(ctx context.Context, change model.SubscriptionChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal subscription change: %w", err)
	}
	attrs := map[string]string{
		"eventType": change.EventType,
		"userId":    change.UserID,
	}
	id, err := n.publisher.Publish(ctx, n.topic, payload, attrs)
	if err != nil {
		return err
	}
	n.logger.Debug().
		Str("message_id", id).
		Str("user_id", change.UserID).
		Str("status", change.SubscriptionStatus).
		Msg("Published subscription change")
	return nil
}
