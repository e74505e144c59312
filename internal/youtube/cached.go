package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultCacheTTL    = time.Hour
	DefaultCachePrefix = "mediaflow:youtube"
)

// CachedClient keeps API responses in Redis for an hour, matching how often the
// public video page revalidates. Redis failures fall through to the API.
type CachedClient struct {
	next   Service
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

func NewCachedClient(next Service, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) (*CachedClient, error) {
	if next == nil {
		return nil, errors.New("youtube service is required")
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
	return &CachedClient{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: DefaultCachePrefix,
		logger: logger.Named("youtube.cache"),
	}, nil
}

func (c *CachedClient) ResolveChannelID(ctx context.Context, channelURL string) (string, error) {
	return cached(ctx, c, "resolve:"+channelURL, func() (string, error) {
		return c.next.ResolveChannelID(ctx, channelURL)
	})
}

func (c *CachedClient) ChannelInfo(ctx context.Context, channelID string) (Channel, error) {
	return cached(ctx, c, "channel:"+channelID, func() (Channel, error) {
		return c.next.ChannelInfo(ctx, channelID)
	})
}

func (c *CachedClient) LatestVideos(ctx context.Context, channelID string, limit int) ([]Video, error) {
	key := fmt.Sprintf("videos:%s:%d", channelID, limit)
	return cached(ctx, c, key, func() ([]Video, error) {
		return c.next.LatestVideos(ctx, channelID, limit)
	})
}

func (c *CachedClient) VideoDetails(ctx context.Context, videoID string) (Video, error) {
	return cached(ctx, c, "video:"+videoID, func() (Video, error) {
		return c.next.VideoDetails(ctx, videoID)
	})
}

// ChannelOverview composes the cached calls so each piece keeps its own entry.
func (c *CachedClient) ChannelOverview(ctx context.Context, channelURL string, limit int) (Overview, error) {
	return overview(ctx, c, channelURL, limit)
}

// cached returns the decoded value under key, or calls load and stores its
// result. Errors from load are never cached.
func cached[T any](ctx context.Context, c *CachedClient, key string, load func() (T, error)) (T, error) {
	fullKey := c.prefix + ":" + key

	raw, err := c.client.Get(ctx, fullKey).Bytes()
	switch {
	case err == nil:
		var v T
		if jerr := json.Unmarshal(raw, &v); jerr == nil {
			return v, nil
		}
		c.logger.Warn("discarding corrupt youtube cache entry", zap.String("key", fullKey))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("youtube cache read failed", zap.String("key", fullKey), zap.Error(err))
	}

	v, err := load()
	if err != nil {
		return v, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("youtube cache encode failed", zap.String("key", fullKey), zap.Error(err))
		return v, nil
	}
	if err := c.client.Set(ctx, fullKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("youtube cache write failed", zap.String("key", fullKey), zap.Error(err))
	}
	return v, nil
}
