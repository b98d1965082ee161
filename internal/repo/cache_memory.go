package repo

import (
	"context"
	"fmt"
	"time"

	errx "github.com/hectic-downloader/server/internal/core/error"
	"github.com/hectic-downloader/server/internal/model"
	"github.com/hectic-downloader/server/internal/store"
	"github.com/hectic-downloader/server/pkg/metrics"
)

// MemoryResultCache keeps media results in process for a fixed TTL.
type MemoryResultCache struct {
	entries *store.TTL[model.MediaResult]
	ttl     time.Duration
	now     store.Clock
}

func NewMemoryResultCache(ttl time.Duration, clock store.Clock) *MemoryResultCache {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryResultCache{
		entries: store.NewTTL[model.MediaResult](store.WithClock[model.MediaResult](clock)),
		ttl:     ttl,
		now:     clock,
	}
}

// Start runs the expiry janitor until Close.
func (c *MemoryResultCache) Start() { c.entries.Start() }

func (c *MemoryResultCache) Close() { c.entries.Close() }

func (c *MemoryResultCache) Put(_ context.Context, chatID int64, entry model.MediaResult) (string, error) {
	at := c.now()
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key := cacheKey(chatID, at, attempt)
		if c.entries.SetNX(key, entry.Clone(), c.ttl) {
			return key, nil
		}
	}
	return "", errx.New(errx.KindStorage, fmt.Sprintf("no free cache key for chat %d", chatID))
}

func (c *MemoryResultCache) Get(_ context.Context, key string) (model.MediaResult, bool, error) {
	entry, ok := c.entries.Get(key)
	metrics.RecordCacheLookup(ok)
	if !ok {
		return model.MediaResult{}, false, nil
	}
	return entry.Clone(), true, nil
}

func (c *MemoryResultCache) Remove(_ context.Context, key string) error {
	c.entries.Delete(key)
	return nil
}

var _ model.ResultCache = (*MemoryResultCache)(nil)
