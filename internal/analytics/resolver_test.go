package analytics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ttemp-link/internal/domain"
	"ttemp-link/internal/geo"
	"ttemp-link/pkg/useragent"
)

type stubCountry struct {
	calls int
	ip    netip.Addr
	code  string
}

func (s *stubCountry) LookupCountry(_ context.Context, ip netip.Addr) geo.Location {
	s.calls++
	s.ip = ip
	if s.code == "" {
		return geo.Location{}
	}
	code := s.code
	return geo.Location{CountryCode: &code, CountryName: geo.CountryName(code)}
}

func newTestResolver(t *testing.T, country CountryLookup) *Resolver {
	t.Helper()
	parser, err := useragent.NewParser("", zap.NewNop())
	require.NoError(t, err)
	return NewResolver(parser, country, zap.NewNop())
}

func TestNormalizeReferrer(t *testing.T) {
	assert.Equal(t, "news.ycombinator.com", *NormalizeReferrer("https://news.ycombinator.com/item?id=1"))
	assert.Equal(t, "example.com", *NormalizeReferrer("  http://example.com:8080/path "))
	assert.Nil(t, NormalizeReferrer(""))
	assert.Nil(t, NormalizeReferrer("   "))
	assert.Nil(t, NormalizeReferrer("not a url"))
	assert.Nil(t, NormalizeReferrer("/relative/path"))
	assert.Nil(t, NormalizeReferrer("mailto:someone@example.com"))
}

func TestResolver_TrackingOff(t *testing.T) {
	country := &stubCountry{code: "DE"}
	r := newTestResolver(t, country)

	req := httptest.NewRequest(http.MethodGet, "/abc", nil)
	req.Header.Set("cf-ipcountry", "US")
	req.Header.Set("cf-connecting-ip", "198.51.100.4")

	info := r.Resolve(context.Background(), req, &domain.AnalyticsSettings{TrackCountry: false, UseGeoLiteFallback: true})
	assert.Equal(t, geo.Location{}, info.Geo)
	assert.Zero(t, country.calls)
	assert.Equal(t, domain.DeviceUnknown, info.Device.DeviceType)
	assert.Equal(t, domain.UnknownBrowser, info.Device.Browser)
}

func TestResolver_HeaderCountrySkipsFallback(t *testing.T) {
	country := &stubCountry{code: "DE"}
	r := newTestResolver(t, country)

	req := httptest.NewRequest(http.MethodGet, "/abc", nil)
	req.Header.Set("cf-ipcountry", "us")
	req.Header.Set("Referer", "https://t.co/xyz")

	info := r.Resolve(context.Background(), req, &domain.AnalyticsSettings{TrackCountry: true, UseGeoLiteFallback: true})
	require.NotNil(t, info.Geo.CountryCode)
	assert.Equal(t, "US", *info.Geo.CountryCode)
	assert.Equal(t, "t.co", *info.ReferrerDomain)
	assert.Zero(t, country.calls)
}

func TestResolver_Fallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/abc", nil)
	req.Header.Set("x-forwarded-for", "10.0.0.1, 198.51.100.4")
	req.Header.Set("cf-ipcity", "Berlin")

	t.Run("enabled", func(t *testing.T) {
		country := &stubCountry{code: "DE"}
		r := newTestResolver(t, country)

		info := r.Resolve(context.Background(), req, &domain.AnalyticsSettings{TrackCountry: true, UseGeoLiteFallback: true})
		require.NotNil(t, info.Geo.CountryCode)
		assert.Equal(t, "DE", *info.Geo.CountryCode)
		assert.Equal(t, "Germany", *info.Geo.CountryName)
		assert.Equal(t, "Berlin", *info.Geo.City)
		assert.Equal(t, "198.51.100.4", country.ip.String())
	})

	t.Run("disabled", func(t *testing.T) {
		country := &stubCountry{code: "DE"}
		r := newTestResolver(t, country)

		info := r.Resolve(context.Background(), req, &domain.AnalyticsSettings{TrackCountry: true})
		assert.Nil(t, info.Geo.CountryCode)
		assert.Zero(t, country.calls)
	})

	t.Run("no public address", func(t *testing.T) {
		country := &stubCountry{code: "DE"}
		r := newTestResolver(t, country)

		private := httptest.NewRequest(http.MethodGet, "/abc", nil)
		private.RemoteAddr = "127.0.0.1:1234"
		info := r.Resolve(context.Background(), private, &domain.AnalyticsSettings{TrackCountry: true, UseGeoLiteFallback: true})
		assert.Nil(t, info.Geo.CountryCode)
		assert.Zero(t, country.calls)
	})
}

func TestResolver_NilLookup(t *testing.T) {
	r := newTestResolver(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/abc", nil)
	req.Header.Set("true-client-ip", "198.51.100.4")

	info := r.Resolve(context.Background(), req, &domain.AnalyticsSettings{TrackCountry: true, UseGeoLiteFallback: true})
	assert.Nil(t, info.Geo.CountryCode)
}
