package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"exam-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// IdentityStore keeps cookie-token bindings in Redis so identities
// survive process restarts. The TTL is absolute from creation: the
// entry is never renewed, matching browser-session semantics.
// Bindings are stored as: SET exam:identity:{token} {json} EX ttl
type IdentityStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdentityStore(client *redis.Client, ttl time.Duration) *IdentityStore {
	return &IdentityStore{client: client, ttl: ttl}
}

func (s *IdentityStore) Save(ctx context.Context, token string, identity domain.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	if err := s.client.Set(ctx, s.key(token), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

func (s *IdentityStore) Get(ctx context.Context, token string) (domain.Identity, bool, error) {
	raw, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err == redis.Nil {
		return domain.Identity{}, false, nil
	}
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("get identity: %w", err)
	}
	var identity domain.Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return domain.Identity{}, false, fmt.Errorf("unmarshal identity: %w", err)
	}
	return identity, true, nil
}

func (s *IdentityStore) key(token string) string {
	return "exam:identity:" + token
}
