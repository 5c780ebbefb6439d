package analytics

import (
	"context"
	"net/http"
	"net/netip"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"ttemp-link/internal/domain"
	"ttemp-link/internal/geo"
	"ttemp-link/internal/metrics"
	"ttemp-link/pkg/useragent"
)

// CountryLookup is the offline country fallback.
type CountryLookup interface {
	LookupCountry(ctx context.Context, ip netip.Addr) geo.Location
}

// ClickInfo is everything derived from a redirect request for analytics.
type ClickInfo struct {
	ReferrerDomain *string
	Device         useragent.DeviceInfo
	Geo            geo.Location
}

// Resolver classifies redirect requests. It never fails: every step degrades to nil.
type Resolver struct {
	ua      *useragent.Parser
	country CountryLookup
	log     *zap.Logger
}

// NewResolver creates a resolver. country may be nil, which disables the offline fallback.
func NewResolver(ua *useragent.Parser, country CountryLookup, log *zap.Logger) *Resolver {
	return &Resolver{
		ua:      ua,
		country: country,
		log:     log.With(zap.String("component", "analytics.resolver")),
	}
}

// Resolve extracts referrer, device and, when country tracking is on, geography.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request, settings *domain.AnalyticsSettings) ClickInfo {
	info := ClickInfo{
		ReferrerDomain: NormalizeReferrer(req.Header.Get("Referer")),
		Device:         r.ua.Parse(req.Header.Get("User-Agent")),
	}

	if settings == nil || !settings.TrackCountry {
		return info
	}

	info.Geo = geo.FromHeaders(req.Header)
	if info.Geo.CountryCode != nil {
		metrics.GeoResolutionsTotal.WithLabelValues("header").Inc()
		return info
	}

	if settings.GeoFallbackEnabled() && r.country != nil {
		if ip := geo.ClientIP(req); ip.IsValid() {
			fallback := r.country.LookupCountry(ctx, ip)
			if fallback.CountryCode != nil {
				info.Geo.CountryCode = fallback.CountryCode
				info.Geo.CountryName = fallback.CountryName
				metrics.GeoResolutionsTotal.WithLabelValues("database").Inc()
				return info
			}
		}
	}

	metrics.GeoResolutionsTotal.WithLabelValues("none").Inc()
	return info
}

// NormalizeReferrer returns the host of an absolute referrer URL, or nil.
func NormalizeReferrer(referer string) *string {
	referer = strings.TrimSpace(referer)
	if referer == "" {
		return nil
	}
	u, err := url.Parse(referer)
	if err != nil || !u.IsAbs() {
		return nil
	}
	host := u.Hostname()
	if host == "" {
		return nil
	}
	return &host
}
