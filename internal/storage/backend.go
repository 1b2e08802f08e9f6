package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrUnavailable is returned by backends that cannot reach their durable store.
var ErrUnavailable = errors.New("storage: unavailable")

// Backend is a durable key-value store holding raw bytes.
type Backend interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// HealthCheck reports whether the store is reachable and writable.
	HealthCheck(ctx context.Context) error
}

// MemoryBackend keeps values in process memory. Contents vanish with the process.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string][]byte
	writes int
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string][]byte)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (b *MemoryBackend) Put(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	b.values[key] = stored
	b.writes++
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
	return nil
}

func (b *MemoryBackend) HealthCheck(context.Context) error { return nil }

// Writes counts successful Put calls.
func (b *MemoryBackend) Writes() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.writes
}
