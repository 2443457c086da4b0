package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RevocationStore records logged-out tokens until they would have expired
// anyway. JWTs are otherwise stateless, so logout requires a denylist.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenHash string, until time.Time) error
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
	Close() error
}

// MemoryRevocationStore is the single-process default.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time // token hash -> expiry
}

// NewMemoryRevocationStore constructs an in-memory revocation store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{revoked: make(map[string]time.Time)}
}

// Close is a no-op.
func (s *MemoryRevocationStore) Close() error { return nil }

// Revoke records a token hash until the given time.
func (s *MemoryRevocationStore) Revoke(_ context.Context, tokenHash string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistic sweep keeps the map bounded without a background goroutine.
	now := time.Now()
	for h, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, h)
		}
	}

	s.revoked[tokenHash] = until
	return nil
}

// IsRevoked reports whether a token hash is currently denied.
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.revoked[tokenHash]
	if !ok {
		return false, nil
	}
	if exp.Before(time.Now()) {
		delete(s.revoked, tokenHash)
		return false, nil
	}
	return true, nil
}

// RedisRevocationStore shares the denylist across processes. Keys carry a TTL
// so Redis expires them on its own.
type RedisRevocationStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRevocationStore constructs a Redis-backed revocation store.
// The client is owned by the caller.
func NewRedisRevocationStore(client redis.UniversalClient, keyPrefix string) *RedisRevocationStore {
	keyPrefix = strings.TrimSpace(keyPrefix)
	if keyPrefix == "" {
		keyPrefix = "pigeon:revoked:"
	}
	return &RedisRevocationStore{client: client, prefix: keyPrefix}
}

// Close is a no-op because the client is owned by the caller.
func (s *RedisRevocationStore) Close() error { return nil }

// Revoke stores the token hash with a TTL until the token's natural expiry.
func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenHash string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		// Already expired; nothing to deny.
		return nil
	}
	return s.client.Set(ctx, s.prefix+tokenHash, "1", ttl).Err()
}

// IsRevoked reports whether the token hash is present.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+tokenHash).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
