package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound reports that no blob exists under the requested key.
var ErrNotFound = errors.New("blob not found")

// BlobStore is the durable persistence contract of a room server: whole
// blobs keyed by room name, written and deleted atomically. No partial
// or field-level writes exist.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-process BlobStore used by tests and single-node
// setups that do not need durability across restarts.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	duplicate := make([]byte, len(payload))
	copy(duplicate, payload)
	return duplicate, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, payload []byte) error {
	duplicate := make([]byte, len(payload))
	copy(duplicate, payload)
	s.mu.Lock()
	s.blobs[key] = duplicate
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.blobs, key)
	s.mu.Unlock()
	return nil
}
