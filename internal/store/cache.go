package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// UseRedisCache configures optional Redis caching for per-user settings and
// event reads. The hourly scan re-reads both for every user; with a TTL below
// the scan interval the cache trims Firestore reads without serving settings
// staler than one run.
func (s *Store) UseRedisCache(client *redis.Client, ttl time.Duration) {
	s.redis = client
	s.cacheTTL = ttl
}

func (s *Store) readCache(ctx context.Context, key string, out interface{}) bool {
	if s.redis == nil {
		return false
	}
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Debug().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("cache decode failed")
		return false
	}
	return true
}

func (s *Store) writeCache(ctx context.Context, key string, val interface{}) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (s *Store) dropCache(ctx context.Context, key string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("cache drop failed")
	}
}
