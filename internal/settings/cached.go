package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/edashow/mediaflow/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultCacheKey = "mediaflow:settings:image"
	DefaultCacheTTL = 30 * time.Second

	// absentMarker caches "no row saved" so an empty table does not hit the
	// database on every request.
	absentMarker = "absent"
)

// CachedStore is a Redis read-through cache in front of another Store. Redis
// errors are logged and the underlying store is used directly.
type CachedStore struct {
	next   Store
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedStore(next Store, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) (*CachedStore, error) {
	if next == nil {
		return nil, errors.New("underlying settings store is required")
	}
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{
		next:   next,
		client: client,
		key:    DefaultCacheKey,
		ttl:    ttl,
		logger: logger.Named("settings.cache"),
	}, nil
}

func (c *CachedStore) Get(ctx context.Context) (domain.ImageSettings, bool, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	switch {
	case err == nil:
		if string(raw) == absentMarker {
			return domain.ImageSettings{}, false, nil
		}
		var s domain.ImageSettings
		if jerr := json.Unmarshal(raw, &s); jerr == nil {
			return s, true, nil
		}
		c.logger.Warn("discarding corrupt settings cache entry")
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("settings cache read failed", zap.Error(err))
	}

	s, ok, err := c.next.Get(ctx)
	if err != nil {
		return domain.ImageSettings{}, false, err
	}
	c.fill(ctx, s, ok)
	return s, ok, nil
}

func (c *CachedStore) Save(ctx context.Context, s domain.ImageSettings) error {
	if err := c.next.Save(ctx, s); err != nil {
		return err
	}
	c.Invalidate(ctx)
	return nil
}

func (c *CachedStore) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		c.logger.Warn("settings cache invalidate failed", zap.Error(err))
	}
}

func (c *CachedStore) fill(ctx context.Context, s domain.ImageSettings, ok bool) {
	value := []byte(absentMarker)
	if ok {
		data, err := json.Marshal(s)
		if err != nil {
			c.logger.Warn("settings cache encode failed", zap.Error(fmt.Errorf("marshal settings: %w", err)))
			return
		}
		value = data
	}
	if err := c.client.Set(ctx, c.key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("settings cache write failed", zap.Error(err))
	}
}
