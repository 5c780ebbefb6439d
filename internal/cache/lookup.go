package cache

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"ttemp-link/internal/domain"
	"ttemp-link/internal/metrics"
	"ttemp-link/internal/repository"
)

// SlugStore is the storage lookup behind the cache.
type SlugStore interface {
	GetLinkBySlug(ctx context.Context, slug string) (*domain.Link, error)
}

// LinkLookup resolves slugs through the Redis cache, falling through to storage. A nil
// cache makes it a plain storage lookup. Cache failures never fail the lookup.
type LinkLookup struct {
	cache *LinkCache
	store SlugStore
	log   *zap.Logger
}

func NewLinkLookup(cache *LinkCache, store SlugStore, log *zap.Logger) *LinkLookup {
	return &LinkLookup{
		cache: cache,
		store: store,
		log:   log.With(zap.String("component", "cache.lookup")),
	}
}

// GetLinkBySlug returns the link for slug regardless of its active flag, or
// repository.ErrLinkNotFound.
func (l *LinkLookup) GetLinkBySlug(ctx context.Context, slug string) (*domain.Link, error) {
	if l.cache == nil {
		return l.store.GetLinkBySlug(ctx, slug)
	}

	cached, err := l.cache.Get(ctx, slug)
	switch {
	case err == nil:
		metrics.LinkCacheTotal.WithLabelValues("hit").Inc()
		return cached.ToLink(), nil
	case errors.Is(err, ErrNegativeHit):
		metrics.LinkCacheTotal.WithLabelValues("negative_hit").Inc()
		return nil, repository.ErrLinkNotFound
	case errors.Is(err, ErrCacheMiss):
		metrics.LinkCacheTotal.WithLabelValues("miss").Inc()
	default:
		metrics.LinkCacheTotal.WithLabelValues("error").Inc()
		l.log.Warn("link cache read failed", zap.String("slug", slug), zap.Error(err))
	}

	link, err := l.store.GetLinkBySlug(ctx, slug)
	if errors.Is(err, repository.ErrLinkNotFound) {
		if cacheErr := l.cache.SetNegative(ctx, slug); cacheErr != nil {
			l.log.Warn("failed to cache missing slug", zap.String("slug", slug), zap.Error(cacheErr))
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if cacheErr := l.cache.Set(ctx, link); cacheErr != nil {
		l.log.Warn("failed to cache link", zap.String("slug", slug), zap.Error(cacheErr))
	}
	return link, nil
}

// Invalidate drops cached entries for the given slugs. It is a no-op without a cache.
func (l *LinkLookup) Invalidate(ctx context.Context, slugs ...string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Invalidate(ctx, slugs...); err != nil {
		l.log.Warn("failed to invalidate link cache", zap.Strings("slugs", slugs), zap.Error(err))
	}
}
