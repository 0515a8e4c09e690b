package pubsub

import (
	"context"
	"sync"
)

// FakeBroker is an in-process stand-in for a real broker, shared by value
// (via pointer) across multiple Dispatcher instances in tests so that
// "two server processes sharing one broker" can be exercised without a
// real Redis instance (spec §8, scenarios 4 and 5).
type FakeBroker struct {
	mu   sync.Mutex
	subs map[Topic][]chan []byte
}

// NewFakeBroker returns an empty broker.
func NewFakeBroker() *FakeBroker {
	return &FakeBroker{subs: make(map[Topic][]chan []byte)}
}

// Client returns a PubSub handle bound to this broker, analogous to one
// server process's Redis client.
func (b *FakeBroker) Client() PubSub {
	return &fakeClient{broker: b}
}

type fakeClient struct {
	broker *FakeBroker
}

func (c *fakeClient) Publish(_ context.Context, topic Topic, payload []byte) error {
	c.broker.mu.Lock()
	subs := append([]chan []byte(nil), c.broker.subs[topic]...)
	c.broker.mu.Unlock()
	for _, ch := range subs {
		ch <- payload
	}
	return nil
}

func (c *fakeClient) Subscribe(_ context.Context, topic Topic) (Subscription, error) {
	ch := make(chan []byte, 32)
	c.broker.mu.Lock()
	c.broker.subs[topic] = append(c.broker.subs[topic], ch)
	c.broker.mu.Unlock()
	return &fakeSubscription{broker: c.broker, topic: topic, ch: ch}, nil
}

type fakeSubscription struct {
	broker *FakeBroker
	topic  Topic
	ch     chan []byte
}

func (s *fakeSubscription) Next(ctx context.Context) ([]byte, error) {
	select {
	case payload, ok := <-s.ch:
		if !ok {
			return nil, context.Canceled
		}
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSubscription) Close() error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	chans := s.broker.subs[s.topic]
	for i, ch := range chans {
		if ch == s.ch {
			s.broker.subs[s.topic] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	close(s.ch)
	return nil
}
