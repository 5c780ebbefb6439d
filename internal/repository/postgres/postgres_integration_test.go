//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"

	"ttemp-link/internal/config"
	"ttemp-link/internal/database"
	"ttemp-link/internal/domain"
	"ttemp-link/internal/repository"
)

func setupStorage(t *testing.T) *PostgresStorage {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		tcpostgres.WithDatabase("ttemp"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	log := zap.NewNop()
	cfg := &config.Database{MaxIdleConns: 5, MaxOpenConns: 20, ConnMaxLifetime: "1h"}
	db, err := database.Open(gormpostgres.Open(dsn), cfg, log)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, log))
	require.NoError(t, database.SeedData(db, log))

	return New(db, log)
}

func TestPostgresStorage_RecordClick_Concurrent(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()

	link := &domain.Link{Slug: "hot", DestinationURL: "https://example.com", IsActive: true, CreatedBy: uuid.New()}
	require.NoError(t, s.CreateLink(ctx, link))

	day := domain.UTCDay(time.Now())
	const clicks = 50
	var wg sync.WaitGroup
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			event := &domain.ClickEvent{LinkID: link.ID, DeviceType: domain.DeviceDesktop, BrowserName: "Chrome"}
			assert.NoError(t, s.RecordClick(ctx, event, day))
		}()
	}
	wg.Wait()

	got, err := s.GetLinkByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(clicks), got.TotalClicks)

	sum, err := s.SumDailyClicks(ctx, domain.DailyRange{From: day, LinkID: &link.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(clicks), sum)

	devices, err := s.Breakdown(ctx, domain.DimensionDevice, domain.EventRange{Since: day, LinkID: &link.ID})
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, int64(clicks), devices[0].Clicks)
}

func TestPostgresStorage_SlugUniqueAndCascade(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()

	owner := uuid.New()
	link := &domain.Link{Slug: "dup", DestinationURL: "https://a.example", IsActive: true, CreatedBy: owner}
	require.NoError(t, s.CreateLink(ctx, link))

	err := s.CreateLink(ctx, &domain.Link{Slug: "dup", DestinationURL: "https://b.example", CreatedBy: owner})
	assert.ErrorIs(t, err, repository.ErrSlugExists)

	require.NoError(t, s.RecordClick(ctx, &domain.ClickEvent{LinkID: link.ID, DeviceType: "desktop", BrowserName: "Chrome"}, time.Now()))
	require.NoError(t, s.DeleteLink(ctx, link.ID))

	total, err := s.TotalClicks(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
	sum, err := s.SumDailyClicks(ctx, domain.DailyRange{})
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestPostgresStorage_Settings(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()

	settings, err := s.GetAnalyticsSettings(ctx)
	require.NoError(t, err)
	assert.False(t, settings.TrackCountry)

	key := "secret"
	require.NoError(t, s.UpsertAnalyticsSettings(ctx, &domain.AnalyticsSettings{
		TrackCountry: true, UseGeoLiteFallback: true, MaxMindLicenseKey: &key,
	}))

	settings, err = s.GetAnalyticsSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.GeoFallbackEnabled())
	assert.Equal(t, key, *settings.MaxMindLicenseKey)

	_, err = s.GetGeoDatabaseVersion(ctx)
	assert.ErrorIs(t, err, repository.ErrGeoDatabaseNotFound)

	require.NoError(t, s.SaveGeoDatabase(ctx, &domain.GeoCountryDatabase{MMDB: []byte{1, 2, 3}, SourceURL: "https://example.com"}))
	version, err := s.GetGeoDatabaseVersion(ctx)
	require.NoError(t, err)
	assert.False(t, version.IsZero())
}
