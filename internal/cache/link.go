package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ttemp-link/internal/config"
	"ttemp-link/internal/domain"
)

// Cache key prefixes.
const (
	linkKeyPrefix     = "ttemp:link:"
	negCacheKeySuffix = ":neg"
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrNegativeHit means the slug is known not to exist.
	ErrNegativeHit = errors.New("negative cache hit")
)

// CachedLink is the subset of a link the redirect path needs.
type CachedLink struct {
	ID             uuid.UUID `json:"id"`
	Slug           string    `json:"slug"`
	DestinationURL string    `json:"destination_url"`
	IsActive       bool      `json:"is_active"`
}

// ToLink expands the cached entry into a domain link.
func (c *CachedLink) ToLink() *domain.Link {
	return &domain.Link{
		ID:             c.ID,
		Slug:           c.Slug,
		DestinationURL: c.DestinationURL,
		IsActive:       c.IsActive,
	}
}

// LinkCache stores slug lookups in Redis, including negative entries for unknown slugs.
type LinkCache struct {
	client      redis.UniversalClient
	ttl         time.Duration
	negativeTTL time.Duration
	log         *zap.Logger
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func NewLinkCache(client redis.UniversalClient, cfg config.Redis, log *zap.Logger) *LinkCache {
	return &LinkCache{
		client:      client,
		ttl:         cfg.LinkTTL,
		negativeTTL: cfg.NegativeTTL,
		log:         log.With(zap.String("component", "cache.link")),
	}
}

// Get returns the cached link, ErrNegativeHit for a cached miss, or ErrCacheMiss.
func (c *LinkCache) Get(ctx context.Context, slug string) (*CachedLink, error) {
	key := linkKeyPrefix + slug

	values, err := c.client.MGet(ctx, key, key+negCacheKeySuffix).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	if raw, ok := values[0].(string); ok {
		var cached CachedLink
		if err := json.Unmarshal([]byte(raw), &cached); err != nil {
			return nil, fmt.Errorf("failed to decode cached link: %w", err)
		}
		return &cached, nil
	}
	if values[1] != nil {
		return nil, ErrNegativeHit
	}
	return nil, ErrCacheMiss
}

// Set caches a link and clears any negative entry for its slug.
func (c *LinkCache) Set(ctx context.Context, link *domain.Link) error {
	key := linkKeyPrefix + link.Slug
	payload, err := json.Marshal(CachedLink{
		ID:             link.ID,
		Slug:           link.Slug,
		DestinationURL: link.DestinationURL,
		IsActive:       link.IsActive,
	})
	if err != nil {
		return fmt.Errorf("failed to encode link: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, payload, c.ttl)
	pipe.Del(ctx, key+negCacheKeySuffix)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache link: %w", err)
	}
	return nil
}

// SetNegative marks a slug as not found.
func (c *LinkCache) SetNegative(ctx context.Context, slug string) error {
	key := linkKeyPrefix + slug + negCacheKeySuffix
	if err := c.client.Set(ctx, key, "1", c.negativeTTL).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}
	return nil
}

// Invalidate removes both entries of every given slug.
func (c *LinkCache) Invalidate(ctx context.Context, slugs ...string) error {
	if len(slugs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(slugs)*2)
	for _, slug := range slugs {
		if slug == "" {
			continue
		}
		keys = append(keys, linkKeyPrefix+slug, linkKeyPrefix+slug+negCacheKeySuffix)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate links: %w", err)
	}
	return nil
}
