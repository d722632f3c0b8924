package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisRevocationCacheStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRevocationCacheStore(client redis.UniversalClient, prefix string) *RedisRevocationCacheStore {
	if prefix == "" {
		prefix = "globetrotter"
	}
	return &RedisRevocationCacheStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisRevocationCacheStore) Name() string { return "redis" }

func (s *RedisRevocationCacheStore) Contains(ctx context.Context, tokenHash string) (bool, error) {
	if s.client == nil {
		return false, nil
	}
	n, err := s.client.Exists(ctx, s.key(tokenHash)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisRevocationCacheStore) Add(ctx context.Context, tokenHash string, ttl time.Duration) error {
	if s.client == nil || ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.key(tokenHash), "1", ttl).Err()
}

func (s *RedisRevocationCacheStore) key(tokenHash string) string {
	return fmt.Sprintf("%s:revoked_access:%s", s.prefix, tokenHash)
}
