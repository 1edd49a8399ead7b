package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelContentStatus = "content_status"
)

const TypeContentStatus = "content_status"

// StatusMessage announces a content request status change.
type StatusMessage struct {
	Type      string `json:"type"`
	UserID    int64  `json:"user_id"`
	RequestID int64  `json:"request_id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// StatusMessages are the default texts per status.
var StatusMessages = map[string]string{
	"pending":    "Request queued",
	"processing": "Generating content",
	"completed":  "Content ready",
	"failed":     "Generation failed",
}

func fill(msg *StatusMessage) {
	msg.Type = TypeContentStatus
	if msg.Message == "" {
		msg.Message = StatusMessages[msg.Status]
	}
}

// Publisher sends status messages over Redis so every server instance sees
// them.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) PublishStatus(ctx context.Context, msg *StatusMessage) error {
	fill(msg)

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal status message: %w", err)
	}

	return p.client.Publish(ctx, ChannelContentStatus, data).Err()
}

// LocalPublisher delivers status messages in-process when Redis is not
// configured.
type LocalPublisher struct {
	handler func(*StatusMessage)
}

func NewLocalPublisher(handler func(*StatusMessage)) *LocalPublisher {
	return &LocalPublisher{handler: handler}
}

func (p *LocalPublisher) PublishStatus(_ context.Context, msg *StatusMessage) error {
	fill(msg)
	p.handler(msg)
	return nil
}

type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe calls handler for every status message until ctx is done.
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*StatusMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelContentStatus)
	defer pubsub.Close()

	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var statusMsg StatusMessage
			if err := json.Unmarshal([]byte(msg.Payload), &statusMsg); err != nil {
				continue
			}

			handler(&statusMsg)
		}
	}
}
