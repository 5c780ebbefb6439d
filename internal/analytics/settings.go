package analytics

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ttemp-link/internal/domain"
)

// SettingsSource loads the analytics settings row.
type SettingsSource interface {
	GetAnalyticsSettings(ctx context.Context) (*domain.AnalyticsSettings, error)
}

type cachedSettings struct {
	settings  *domain.AnalyticsSettings
	expiresAt time.Time
}

// SettingsProvider caches AnalyticsSettings for a short TTL so the redirect path does
// not read the settings row on every click. A settings change takes up to one TTL to
// apply.
type SettingsProvider struct {
	source SettingsSource
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger

	cached atomic.Pointer[cachedSettings]
}

// NewSettingsProvider creates a provider. A zero ttl disables caching.
func NewSettingsProvider(source SettingsSource, ttl time.Duration, log *zap.Logger) *SettingsProvider {
	return &SettingsProvider{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		log:    log.With(zap.String("component", "analytics.settings")),
	}
}

// Get returns the current settings. On a load failure it serves the last known value,
// or the defaults (tracking off) when nothing was loaded yet.
func (p *SettingsProvider) Get(ctx context.Context) *domain.AnalyticsSettings {
	now := p.now()
	current := p.cached.Load()
	if current != nil && now.Before(current.expiresAt) {
		return current.settings
	}

	settings, err := p.source.GetAnalyticsSettings(ctx)
	if err != nil {
		p.log.Warn("failed to load analytics settings", zap.Error(err))
		if current != nil {
			return current.settings
		}
		return &domain.AnalyticsSettings{ID: domain.SingletonID}
	}

	p.cached.Store(&cachedSettings{settings: settings, expiresAt: now.Add(p.ttl)})
	return settings
}

// Invalidate drops the cached value.
func (p *SettingsProvider) Invalidate() {
	p.cached.Store(nil)
}
