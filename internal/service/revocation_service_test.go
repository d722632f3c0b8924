package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/globetrotter/globetrotter-api/internal/security"
)

type failingCache struct{}

func (failingCache) Name() string { return "failing" }

func (failingCache) Contains(context.Context, string) (bool, error) {
	return false, errors.New("cache down")
}

func (failingCache) Add(context.Context, string, time.Duration) error {
	return errors.New("cache down")
}

func TestRevocationBlacklistAndLookup(t *testing.T) {
	cache := NewInMemoryRevocationCacheStore()
	env := newTestEnvWithCache(t, cache)
	ctx := context.Background()
	res := env.signup(t, "revoke@example.com", "secret1")

	revoked, err := env.revocations.IsRevoked(ctx, res.Tokens.AccessToken)
	if err != nil || revoked {
		t.Fatalf("fresh token must not be revoked, got %v (%v)", revoked, err)
	}
	if err := env.revocations.Blacklist(ctx, res.Tokens.AccessToken); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	if err := env.revocations.Blacklist(ctx, res.Tokens.AccessToken); err != nil {
		t.Fatalf("second blacklist must be a no-op: %v", err)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected cache to be filled, got %d entries", cache.Len())
	}
	revoked, err = env.revocations.IsRevoked(ctx, res.Tokens.AccessToken)
	if err != nil || !revoked {
		t.Fatalf("expected token revoked, got %v (%v)", revoked, err)
	}
}

func TestRevocationFallsBackToDatabaseWhenCacheFails(t *testing.T) {
	env := newTestEnvWithCache(t, failingCache{})
	ctx := context.Background()
	res := env.signup(t, "fallback@example.com", "secret1")

	if err := env.revocations.Blacklist(ctx, res.Tokens.AccessToken); err != nil {
		t.Fatalf("blacklist must succeed without cache: %v", err)
	}
	revoked, err := env.revocations.IsRevoked(ctx, res.Tokens.AccessToken)
	if err != nil || !revoked {
		t.Fatalf("expected database to answer, got %v (%v)", revoked, err)
	}
}

func TestRevocationDatabaseHitBackfillsCache(t *testing.T) {
	cache := NewInMemoryRevocationCacheStore()
	env := newTestEnvWithCache(t, NewNoopRevocationCacheStore())
	ctx := context.Background()
	res := env.signup(t, "backfill@example.com", "secret1")

	if err := env.revocations.Blacklist(ctx, res.Tokens.AccessToken); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	env.revocations.cache = cache
	if revoked, err := env.revocations.IsRevoked(ctx, res.Tokens.AccessToken); err != nil || !revoked {
		t.Fatalf("expected revoked, got %v (%v)", revoked, err)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected database hit to backfill cache, got %d", cache.Len())
	}
}

func TestRevocationIgnoresExpiredAndRejectsForeignTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.signup(t, "expired@example.com", "secret1")

	env.clock.Advance(16 * time.Minute)
	if err := env.revocations.Blacklist(ctx, res.Tokens.AccessToken); err != nil {
		t.Fatalf("expired token blacklist should be a silent no-op, got %v", err)
	}
	var count int64
	env.db.Table("revoked_access_tokens").Count(&count)
	if count != 0 {
		t.Fatalf("expected no row for expired token, got %d", count)
	}

	if err := env.revocations.Blacklist(ctx, "garbage"); !errors.Is(err, security.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestInMemoryRevocationCacheStoreExpiry(t *testing.T) {
	store := NewInMemoryRevocationCacheStore()
	now := time.Now().UTC()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Add(ctx, "h", time.Minute); err != nil {
		t.Fatalf("add: %v", err)
	}
	if hit, _ := store.Contains(ctx, "h"); !hit {
		t.Fatal("expected hit before expiry")
	}
	now = now.Add(time.Minute)
	if hit, _ := store.Contains(ctx, "h"); hit {
		t.Fatal("expected miss at expiry")
	}
	if store.Len() != 0 {
		t.Fatalf("expected expired entry removed, got %d", store.Len())
	}
	if err := store.Add(ctx, "zero", 0); err != nil || store.Len() != 0 {
		t.Fatalf("non-positive ttl must not be stored: %v", err)
	}
}

func TestNoopRevocationCacheStoreAlwaysMisses(t *testing.T) {
	store := NewNoopRevocationCacheStore()
	ctx := context.Background()
	if err := store.Add(ctx, "h", time.Minute); err != nil {
		t.Fatalf("add: %v", err)
	}
	if hit, err := store.Contains(ctx, "h"); err != nil || hit {
		t.Fatalf("expected miss, got %v (%v)", hit, err)
	}
}

func TestRedisRevocationCacheStoreSetGetAndExpiry(t *testing.T) {
	ctx := context.Background()
	server, client := newRedisClientForTest(t)
	store := NewRedisRevocationCacheStore(client, "gt_test")

	if hit, err := store.Contains(ctx, "abc"); err != nil || hit {
		t.Fatalf("expected initial miss, got %v (%v)", hit, err)
	}
	if err := store.Add(ctx, "abc", 2*time.Second); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !server.Exists("gt_test:revoked_access:abc") {
		t.Fatal("expected prefixed key in redis")
	}
	if hit, err := store.Contains(ctx, "abc"); err != nil || !hit {
		t.Fatalf("expected hit, got %v (%v)", hit, err)
	}
	server.FastForward(3 * time.Second)
	if hit, err := store.Contains(ctx, "abc"); err != nil || hit {
		t.Fatalf("expected miss after ttl, got %v (%v)", hit, err)
	}
}

func TestRedisRevocationCacheStoreBackendError(t *testing.T) {
	ctx := context.Background()
	server, client := newRedisClientForTest(t)
	store := NewRedisRevocationCacheStore(client, "")
	server.Close()

	if _, err := store.Contains(ctx, "abc"); err == nil {
		t.Fatal("expected error when redis is unavailable")
	}
}
