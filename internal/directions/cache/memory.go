package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetclock/fleetclock/internal/directions"
)

// MemoryStore is an in-process Store with lazy periodic cleanup.
type MemoryStore struct {
	logger          zerolog.Logger
	cleanupInterval time.Duration
	now             func() time.Time

	mu          sync.RWMutex
	entries     map[string]*memoryEntry
	lastCleanup time.Time
}

type memoryEntry struct {
	response  *directions.Response
	expiresAt time.Time
}

// NewMemoryStore creates a memory store. cleanupInterval defaults to 5 minutes.
func NewMemoryStore(logger zerolog.Logger, cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval == 0 {
		cleanupInterval = 5 * time.Minute
	}
	return &MemoryStore{
		logger:          logger,
		cleanupInterval: cleanupInterval,
		now:             time.Now,
		entries:         make(map[string]*memoryEntry),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (*directions.Response, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || !s.now().Before(entry.expiresAt) {
		return nil, false, nil
	}
	return cloneResponse(entry.response), true, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, key string, resp *directions.Response, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &memoryEntry{
		response:  cloneResponse(resp),
		expiresAt: s.now().Add(ttl),
	}
	s.cleanupIfNeeded()
	return nil
}

// cleanupIfNeeded removes expired entries if the cleanup interval has passed.
// The caller must hold the write lock.
func (s *MemoryStore) cleanupIfNeeded() {
	now := s.now()
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}

	s.lastCleanup = now
	expired := 0
	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)
			expired++
		}
	}

	if expired > 0 {
		s.logger.Debug().
			Int("expired_entries", expired).
			Msg("cleaned up expired directions cache entries")
	}
}
