package statestore

import (
	"context"
	"sync"
)

// FakeStore is an in-process stand-in for Redis, shared by pointer across
// multiple room tasks or dispatcher instances in tests so that state can
// be shown to survive a room's "migration" between server processes
// without a real Redis instance.
type FakeStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewFakeStore returns an empty store.
func NewFakeStore() *FakeStore {
	return &FakeStore{data: make(map[string][]byte)}
}

func (f *FakeStore) Get(_ context.Context, roomID, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.data[namespacedKey(roomID, key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

func (f *FakeStore) Set(_ context.Context, roomID, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.data[namespacedKey(roomID, key)] = cp
	return nil
}

func (f *FakeStore) Delete(_ context.Context, roomID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, namespacedKey(roomID, key))
	return nil
}
