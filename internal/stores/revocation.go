package stores

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRevocationUnavailable wraps revocation backend failures.
var ErrRevocationUnavailable = errors.New("revocation store unavailable")

// RevocationStore records logged-out session credential ids until they
// would have expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevocationStore keeps one key per revoked id with a matching TTL.
type RedisRevocationStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisRevocationStore returns a store whose keys start with prefix.
func NewRedisRevocationStore(client redis.UniversalClient, prefix string) *RedisRevocationStore {
	if prefix == "" {
		prefix = "acrv"
	}
	return &RedisRevocationStore{redis: client, prefix: prefix}
}

func (s *RedisRevocationStore) key(tokenID string) string {
	return s.prefix + ":" + tokenID
}

// Revoke marks tokenID revoked until until. Past deadlines are a no-op.
func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, s.key(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether tokenID is on the list.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	return n > 0, nil
}

// MemoryRevocationStore is a process-local RevocationStore.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocationStore returns an empty store reading time from now,
// or time.Now when now is nil.
func NewMemoryRevocationStore(now func() time.Time) *MemoryRevocationStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryRevocationStore{revoked: make(map[string]time.Time), now: now}
}

// Revoke implements RevocationStore and prunes expired entries.
func (s *MemoryRevocationStore) Revoke(_ context.Context, tokenID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if tokenID == "" || !until.After(now) {
		return nil
	}
	for id, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[tokenID] = until
	return nil
}

// IsRevoked implements RevocationStore.
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.revoked[tokenID]
	return ok && exp.After(s.now()), nil
}
