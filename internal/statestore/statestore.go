// Package statestore defines the contract a room task uses to persist its
// small authoritative shared state (spec §4.5, §6.5), plus a Redis-backed
// implementation and an in-process fake for tests.
package statestore

import "context"

// StateStore gets, sets, and deletes opaque byte blobs namespaced by room
// and key. Get follows "optional bytes" semantics: a missing key is not an
// error, it is reported via ok=false.
type StateStore interface {
	Get(ctx context.Context, roomID, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, roomID, key string, data []byte) error
	Delete(ctx context.Context, roomID, key string) error
}

func namespacedKey(roomID, key string) string {
	return roomID + "/" + key
}
