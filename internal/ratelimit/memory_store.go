package ratelimit

import (
	"context"
	"sync"
	"time"
)

// evictThreshold bounds the in-memory map; expired entries are swept once
// the map grows past it.
const evictThreshold = 1024

// MemoryStore keeps last-seen timestamps in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

type entry struct {
	at      time.Time
	expires time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry), now: time.Now}
}

// LastSeen returns the recorded timestamp for key, dropping it if expired.
func (s *MemoryStore) LastSeen(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return time.Time{}, false, nil
	}
	if s.now().After(e.expires) {
		delete(s.entries, key)
		return time.Time{}, false, nil
	}
	return e.at, true, nil
}

// Touch records a timestamp for key with the given retention window.
func (s *MemoryStore) Touch(_ context.Context, key string, at time.Time, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) >= evictThreshold {
		s.evictExpired()
	}
	s.entries[key] = entry{at: at, expires: at.Add(window)}
	return nil
}

// Reset removes the entry for key.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) evictExpired() {
	now := s.now()
	for key, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, key)
		}
	}
}
