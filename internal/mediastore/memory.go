package mediastore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the default single-process backend. Expired blobs are
// dropped lazily on access and swept on every Put.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	blobs map[string]memoryEntry
}

type memoryEntry struct {
	blob      Blob
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:   ttl,
		now:   time.Now,
		blobs: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Put(_ context.Context, contentType string, data []byte) (string, error) {
	id := uuid.NewString()
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.blobs {
		if now.After(entry.expiresAt) {
			delete(s.blobs, key)
		}
	}

	s.blobs[id] = memoryEntry{
		blob: Blob{
			ID:          id,
			ContentType: contentType,
			Data:        data,
		},
		expiresAt: now.Add(s.ttl),
	}
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.blobs[id]
	if !ok {
		return Blob{}, ErrNotFound
	}
	if s.now().After(entry.expiresAt) {
		delete(s.blobs, id)
		return Blob{}, ErrNotFound
	}
	return entry.blob, nil
}
