package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	errx "github.com/hectic-downloader/server/internal/core/error"
	"github.com/hectic-downloader/server/internal/model"
	logx "github.com/hectic-downloader/server/pkg/logger"
	"github.com/hectic-downloader/server/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// RedisResultCache shares media results between bot replicas. Expiry is
// delegated to Redis key TTLs.
type RedisResultCache struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisResultCache(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisResultCache {
	return &RedisResultCache{rdb: rdb, prefix: prefix, ttl: ttl, now: time.Now}
}

func (r *RedisResultCache) resultKey(key string) string {
	return fmt.Sprintf("%s:media:%s", r.prefix, key)
}

func (r *RedisResultCache) Put(ctx context.Context, chatID int64, entry model.MediaResult) (string, error) {
	b, err := json.Marshal(entry)
	if err != nil {
		logx.Error().Err(err).Int64("chat_id", chatID).Msg("failed to marshal media result")
		return "", fmt.Errorf("marshal media result: %w", err)
	}

	at := r.now()
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key := cacheKey(chatID, at, attempt)
		ok, err := r.rdb.SetNX(ctx, r.resultKey(key), b, r.ttl).Result()
		if err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to store media result in redis")
			return "", errx.WrapRedis(err)
		}
		if ok {
			return key, nil
		}
	}
	return "", errx.New(errx.KindStorage, fmt.Sprintf("no free cache key for chat %d", chatID))
}

func (r *RedisResultCache) Get(ctx context.Context, key string) (model.MediaResult, bool, error) {
	s, err := r.rdb.Get(ctx, r.resultKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheLookup(false)
			return model.MediaResult{}, false, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load media result from redis")
		return model.MediaResult{}, false, errx.WrapRedis(err)
	}

	var entry model.MediaResult
	if err := json.Unmarshal([]byte(s), &entry); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to unmarshal media result")
		return model.MediaResult{}, false, fmt.Errorf("unmarshal media result: %w", err)
	}
	metrics.RecordCacheLookup(true)
	return entry, true, nil
}

func (r *RedisResultCache) Remove(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.resultKey(key)).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete media result from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.ResultCache = (*RedisResultCache)(nil)
