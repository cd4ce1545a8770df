package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisTopic is the pub/sub channel used when none is given.
const DefaultRedisTopic = "examforge:completions"

// Redis is a Channel on top of Redis pub/sub. Messages published while no
// subscriber is listening are lost.
type Redis struct {
	client *redis.Client
	topic  string
}

func NewRedis(client *redis.Client, topic string) *Redis {
	if topic == "" {
		topic = DefaultRedisTopic
	}
	return &Redis{client: client, topic: topic}
}

func (r *Redis) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := r.client.Publish(ctx, r.topic, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.topic, err)
	}
	return nil
}

func (r *Redis) Receive(ctx context.Context) (<-chan Message, error) {
	sub := r.client.Subscribe(ctx, r.topic)
	// Wait for the subscription to be confirmed so early publishes are not missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", r.topic, err)
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		defer sub.Close()
		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					slog.Warn("dropping malformed channel message", "topic", r.topic, "error", err)
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
