// Package pubsub defines the publish/subscribe bus contract a room task
// depends on to fan broadcasts out across server instances (spec §4.5,
// §6.4), plus a Redis-backed implementation and an in-process fake for
// tests that stand in for "two server processes sharing one broker".
package pubsub

import "context"

// Topic is the canonical text form of a RoomID.
type Topic string

// PubSub publishes raw framed bytes to a topic and opens subscriptions on
// it. A PubSub handle may be shared across room tasks (spec §5).
type PubSub interface {
	Publish(ctx context.Context, topic Topic, payload []byte) error
	Subscribe(ctx context.Context, topic Topic) (Subscription, error)
}

// Subscription yields successive messages published to the topic it was
// opened on. Subscription errors at subscribe time are fatal to the room
// task that requested them (spec §7); errors from an open subscription's
// Next are logged and treated as the bus going away.
type Subscription interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}
