package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"ttemp-link/internal/domain"
)

type MockSettingsSource struct {
	mock.Mock
}

func (m *MockSettingsSource) GetAnalyticsSettings(ctx context.Context) (*domain.AnalyticsSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AnalyticsSettings), args.Error(1)
}

func TestSettingsProvider_CachesForTTL(t *testing.T) {
	ctx := context.Background()
	source := new(MockSettingsSource)
	source.On("GetAnalyticsSettings", ctx).Return(&domain.AnalyticsSettings{TrackCountry: true}, nil).Twice()

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewSettingsProvider(source, 30*time.Second, zap.NewNop())
	p.now = func() time.Time { return clock }

	assert.True(t, p.Get(ctx).TrackCountry)
	clock = clock.Add(10 * time.Second)
	assert.True(t, p.Get(ctx).TrackCountry)
	source.AssertNumberOfCalls(t, "GetAnalyticsSettings", 1)

	clock = clock.Add(30 * time.Second)
	p.Get(ctx)
	source.AssertNumberOfCalls(t, "GetAnalyticsSettings", 2)
}

func TestSettingsProvider_ErrorFallsBack(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults when nothing cached", func(t *testing.T) {
		source := new(MockSettingsSource)
		source.On("GetAnalyticsSettings", ctx).Return(nil, errors.New("db down"))

		p := NewSettingsProvider(source, time.Second, zap.NewNop())
		settings := p.Get(ctx)
		assert.False(t, settings.TrackCountry)
		assert.False(t, settings.GeoFallbackEnabled())
	})

	t.Run("last known value", func(t *testing.T) {
		source := new(MockSettingsSource)
		source.On("GetAnalyticsSettings", ctx).Return(&domain.AnalyticsSettings{TrackCountry: true}, nil).Once()
		source.On("GetAnalyticsSettings", ctx).Return(nil, errors.New("db down"))

		clock := time.Now()
		p := NewSettingsProvider(source, time.Second, zap.NewNop())
		p.now = func() time.Time { return clock }

		assert.True(t, p.Get(ctx).TrackCountry)
		clock = clock.Add(time.Minute)
		assert.True(t, p.Get(ctx).TrackCountry)
	})
}
