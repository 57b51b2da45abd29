package vault

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when a key is absent or past its expiry
var ErrNotFound = errors.New("vault: not found")

// ErrWriteFailed wraps backend failures on Put; callers use it to tell
// "cannot store mapping" apart from "mapping never existed".
var ErrWriteFailed = errors.New("vault: write failed")

// TTLStore is the narrow contract to a TTL-capable key-value backend.
// Keys and values are plain strings, so any cache implementation with
// expiry semantics can satisfy it.
type TTLStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns ErrNotFound for absent or expired keys.
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	// Keys lists live keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// memoryEntry is a stored value with its absolute expiry
type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-process TTLStore. Reads apply lazy expiry, so
// correctness never depends on the background reaper having run; the
// reaper only reclaims memory eagerly. Both are safe concurrently.
type MemoryStore struct {
	entries map[string]memoryEntry
	mu      sync.RWMutex
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryStore creates an in-memory store and starts its reaper.
// A non-positive reapInterval disables eager eviction.
func NewMemoryStore(reapInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		stop:    make(chan struct{}),
	}
	if reapInterval > 0 {
		go s.reapLoop(reapInterval)
	}
	return s
}

func (s *MemoryStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return "", ErrNotFound
	}
	if time.Now().After(entry.expiresAt) {
		// Lazy expiry: reads past expiresAt behave as not found even
		// before the reaper removes the entry.
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur.expiresAt.Equal(entry.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return "", ErrNotFound
	}
	return entry.value, nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key, entry := range s.entries {
		if strings.HasPrefix(key, prefix) && now.Before(entry.expiresAt) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Close stops the reaper
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

// reapLoop periodically evicts expired entries
func (s *MemoryStore) reapLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.reap()
		}
	}
}

// reap removes all entries past their expiry
func (s *MemoryStore) reap() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Len reports the number of stored entries, expired or not
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
