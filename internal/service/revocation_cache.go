package service

import (
	"context"
	"sync"
	"time"
)

// RevocationCacheStore remembers blacklisted access tokens by digest. It only
// ever answers "known revoked"; a miss falls through to the database.
type RevocationCacheStore interface {
	Name() string
	Contains(ctx context.Context, tokenHash string) (bool, error)
	Add(ctx context.Context, tokenHash string, ttl time.Duration) error
}

type NoopRevocationCacheStore struct{}

func NewNoopRevocationCacheStore() *NoopRevocationCacheStore { return &NoopRevocationCacheStore{} }

func (s *NoopRevocationCacheStore) Name() string { return "noop" }

func (s *NoopRevocationCacheStore) Contains(context.Context, string) (bool, error) {
	return false, nil
}

func (s *NoopRevocationCacheStore) Add(context.Context, string, time.Duration) error {
	return nil
}

const inMemoryPurgeThreshold = 4096

type InMemoryRevocationCacheStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewInMemoryRevocationCacheStore() *InMemoryRevocationCacheStore {
	return &InMemoryRevocationCacheStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *InMemoryRevocationCacheStore) Name() string { return "memory" }

func (s *InMemoryRevocationCacheStore) Contains(_ context.Context, tokenHash string) (bool, error) {
	now := s.now().UTC()
	s.mu.RLock()
	expiresAt, ok := s.entries[tokenHash]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !now.Before(expiresAt) {
		s.mu.Lock()
		if current, still := s.entries[tokenHash]; still && !now.Before(current) {
			delete(s.entries, tokenHash)
		}
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (s *InMemoryRevocationCacheStore) Add(_ context.Context, tokenHash string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) >= inMemoryPurgeThreshold {
		for key, expiresAt := range s.entries {
			if !now.Before(expiresAt) {
				delete(s.entries, key)
			}
		}
	}
	s.entries[tokenHash] = now.Add(ttl)
	return nil
}

func (s *InMemoryRevocationCacheStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
