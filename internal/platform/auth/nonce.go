package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// NonceStore records identifiers that may be used once, such as webhook event ids.
type NonceStore interface {
	// UseNonce stores nonce within scope until expiry. It returns false when the
	// nonce was already recorded.
	UseNonce(ctx context.Context, scope, nonce string, expiry time.Time) (bool, error)
	// ReleaseNonce forgets a nonce so the same identifier is accepted again.
	ReleaseNonce(ctx context.Context, scope, nonce string) error
}

// InMemoryNonceStore keeps nonces in process memory.
type InMemoryNonceStore struct {
	mu     sync.Mutex
	nonces map[string]time.Time
	now    func() time.Time
}

// NewInMemoryNonceStore returns an empty store.
func NewInMemoryNonceStore() *InMemoryNonceStore {
	return &InMemoryNonceStore{nonces: make(map[string]time.Time), now: time.Now}
}

// UseNonce implements NonceStore.
func (s *InMemoryNonceStore) UseNonce(_ context.Context, scope, nonce string, expiry time.Time) (bool, error) {
	if scope == "" || nonce == "" {
		return false, errors.New("auth: scope and nonce are required")
	}
	key := scope + "::" + nonce

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.nonces {
		if !exp.After(now) {
			delete(s.nonces, k)
		}
	}
	if _, seen := s.nonces[key]; seen {
		return false, nil
	}
	s.nonces[key] = expiry
	return true, nil
}

// ReleaseNonce implements NonceStore.
func (s *InMemoryNonceStore) ReleaseNonce(_ context.Context, scope, nonce string) error {
	s.mu.Lock()
	delete(s.nonces, scope+"::"+nonce)
	s.mu.Unlock()
	return nil
}

// RedisNonceStore records nonces with SET NX so every API instance shares them.
type RedisNonceStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisNonceStore returns a store writing keys under prefix.
func NewRedisNonceStore(client redis.UniversalClient, prefix string) *RedisNonceStore {
	if prefix == "" {
		prefix = "nonce"
	}
	return &RedisNonceStore{client: client, prefix: prefix, now: time.Now}
}

// UseNonce implements NonceStore.
func (s *RedisNonceStore) UseNonce(ctx context.Context, scope, nonce string, expiry time.Time) (bool, error) {
	if scope == "" || nonce == "" {
		return false, errors.New("auth: scope and nonce are required")
	}
	ttl := expiry.Sub(s.now())
	if ttl <= 0 {
		return false, errors.New("auth: nonce expiry is in the past")
	}
	return s.client.SetNX(ctx, s.key(scope, nonce), 1, ttl).Result()
}

// ReleaseNonce implements NonceStore.
func (s *RedisNonceStore) ReleaseNonce(ctx context.Context, scope, nonce string) error {
	return s.client.Del(ctx, s.key(scope, nonce)).Err()
}

func (s *RedisNonceStore) key(scope, nonce string) string {
	return s.prefix + ":" + scope + ":" + nonce
}
