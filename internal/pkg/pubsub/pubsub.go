package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelHistoryEvents = "history_events"
)

// History event types
const (
	TypeHistoryCreated = "history_created"
	TypeHistoryDeleted = "history_deleted"
)

// HistoryEvent tells a user's open sessions that their history changed
type HistoryEvent struct {
	Type      string `json:"type"`
	UserID    int64  `json:"user_id"`
	HistoryID int64  `json:"history_id"`
	SearchID  int64  `json:"search_id,omitempty"`
	Query     string `json:"query,omitempty"`
}

// Publisher Redis publisher
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishHistory publishes evt on the history channel
func (p *Publisher) PublishHistory(ctx context.Context, evt *HistoryEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal history event: %w", err)
	}

	return p.client.Publish(ctx, ChannelHistoryEvents, data).Err()
}

// Subscriber Redis subscriber
type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe delivers history events to handler until ctx is done
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*HistoryEvent)) error {
	pubsub := s.client.Subscribe(ctx, ChannelHistoryEvents)
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

			var evt HistoryEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				continue // skip malformed payloads
			}

			handler(&evt)
		}
	}
}
