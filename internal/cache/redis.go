package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix           = "suggest:"
	generationKeyPrefix = "suggest:gen:"
)

// Redis shares cached suggestions between replicas. Invalidation bumps a
// per-language generation counter that is part of every entry key, so stale
// entries are never read again and simply expire.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ SuggestionCache = (*Redis)(nil)

// NewRedis creates a Redis-backed suggestion cache.
func NewRedis(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Redis {
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func (c *Redis) generation(ctx context.Context, language string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKeyPrefix+language).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *Redis) entryKey(ctx context.Context, key Key) (string, error) {
	gen, err := c.generation(ctx, key.Language)
	if err != nil {
		return "", err
	}
	return keyPrefix + strconv.FormatInt(gen, 10) + ":" + key.String(), nil
}

func (c *Redis) Get(ctx context.Context, key Key) ([]string, bool) {
	k, err := c.entryKey(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "suggestion cache generation lookup failed", slog.String("error", err.Error()))
		return nil, false
	}

	data, err := c.client.Get(ctx, k).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "suggestion cache get failed", slog.String("error", err.Error()))
		}
		return nil, false
	}

	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		c.logger.WarnContext(ctx, "suggestion cache entry corrupt",
			slog.String("key", k),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return values, true
}

func (c *Redis) Set(ctx context.Context, key Key, values []string) {
	k, err := c.entryKey(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "suggestion cache generation lookup failed", slog.String("error", err.Error()))
		return
	}
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, k, data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "suggestion cache set failed", slog.String("error", err.Error()))
	}
}

func (c *Redis) InvalidateLanguage(ctx context.Context, language string) {
	if err := c.client.Incr(ctx, generationKeyPrefix+language).Err(); err != nil {
		c.logger.WarnContext(ctx, "suggestion cache invalidation failed",
			slog.String("language", language),
			slog.String("error", err.Error()),
		)
	}
}
