package pubsub

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPubSub implements PubSub on top of a shared *redis.Client, the
// broker collaborator named in spec §6.4. The client is cloneable and
// safe for concurrent use across room tasks (spec §5).
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub wraps an existing Redis client.
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

func (r *RedisPubSub) Publish(ctx context.Context, topic Topic, payload []byte) error {
	if err := r.client.Publish(ctx, string(topic), payload).Err(); err != nil {
		return fmt.Errorf("pubsub: publish to %s: %w", topic, err)
	}
	return nil
}

func (r *RedisPubSub) Subscribe(ctx context.Context, topic Topic) (Subscription, error) {
	sub := r.client.Subscribe(ctx, string(topic))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("pubsub: subscribe to %s: %w", topic, err)
	}
	return &redisSubscription{sub: sub, ch: sub.Channel()}, nil
}

type redisSubscription struct {
	sub *redis.PubSub
	ch  <-chan *redis.Message
}

func (s *redisSubscription) Next(ctx context.Context) ([]byte, error) {
	select {
	case msg, ok := <-s.ch:
		if !ok {
			return nil, fmt.Errorf("pubsub: subscription closed")
		}
		return []byte(msg.Payload), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *redisSubscription) Close() error {
	return s.sub.Close()
}
