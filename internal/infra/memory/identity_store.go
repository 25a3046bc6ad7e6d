package memory

import (
	"context"
	"sync"
	"time"

	"exam-service/internal/domain"
)

// IdentityStore is an in-memory implementation of app.IdentityStore.
// Entries expire a fixed interval after creation, independent of
// activity; nothing is persisted across restarts.
type IdentityStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu     sync.RWMutex
	tokens map[string]storedIdentity
}

type storedIdentity struct {
	identity  domain.Identity
	expiresAt time.Time
}

func NewIdentityStore(ttl time.Duration) *IdentityStore {
	return &IdentityStore{
		ttl:    ttl,
		clock:  time.Now,
		tokens: make(map[string]storedIdentity),
	}
}

// NewIdentityStoreWithClock allows deterministic expiry in tests.
func NewIdentityStoreWithClock(ttl time.Duration, clock func() time.Time) *IdentityStore {
	store := NewIdentityStore(ttl)
	store.clock = clock
	return store
}

func (s *IdentityStore) Save(_ context.Context, token string, identity domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = storedIdentity{
		identity:  identity,
		expiresAt: s.clock().Add(s.ttl),
	}
	return nil
}

func (s *IdentityStore) Get(_ context.Context, token string) (domain.Identity, bool, error) {
	s.mu.RLock()
	entry, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return domain.Identity{}, false, nil
	}
	if s.clock().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.tokens, token)
		s.mu.Unlock()
		return domain.Identity{}, false, nil
	}
	return entry.identity, true, nil
}
