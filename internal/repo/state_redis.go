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
	"github.com/redis/go-redis/v9"
)

type RedisStateRepository struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisStateRepository(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisStateRepository {
	return &RedisStateRepository{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *RedisStateRepository) stateKey(chatID int64) string {
	return fmt.Sprintf("%s:conversation:%d:state", r.prefix, chatID)
}

func (r *RedisStateRepository) Get(ctx context.Context, chatID int64) (model.ConversationState, bool, error) {
	key := r.stateKey(chatID)

	s, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.ConversationState{}, false, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation state from redis")
		return model.ConversationState{}, false, errx.WrapRedis(err)
	}

	var state model.ConversationState
	if err := json.Unmarshal([]byte(s), &state); err != nil {
		logx.Error().Err(err).Int64("chat_id", chatID).Msg("failed to unmarshal conversation state")
		return model.ConversationState{}, false, fmt.Errorf("unmarshal conversation state: %w", err)
	}
	return state, true, nil
}

func (r *RedisStateRepository) Set(ctx context.Context, chatID int64, state model.ConversationState) error {
	b, err := json.Marshal(state)
	if err != nil {
		logx.Error().Err(err).Int64("chat_id", chatID).Msg("failed to marshal conversation state")
		return fmt.Errorf("marshal conversation state: %w", err)
	}
	key := r.stateKey(chatID)

	// replace wholesale; the TTL restarts on every write
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to store conversation state in redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStateRepository) Clear(ctx context.Context, chatID int64) error {
	key := r.stateKey(chatID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete conversation state from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.StateRepository = (*RedisStateRepository)(nil)
