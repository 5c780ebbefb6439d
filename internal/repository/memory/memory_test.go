package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ttemp-link/internal/domain"
	"ttemp-link/internal/repository"
)

func strPtr(s string) *string { return &s }

func newLink(t *testing.T, s *MemStorage, slug string) *domain.Link {
	t.Helper()
	link := &domain.Link{
		Slug:           slug,
		DestinationURL: "https://example.com/" + slug,
		IsActive:       true,
		CreatedBy:      uuid.New(),
	}
	require.NoError(t, s.CreateLink(context.Background(), link))
	return link
}

func TestMemStorage_CreateLink_SlugUnique(t *testing.T) {
	s := New()
	newLink(t, s, "abc")

	err := s.CreateLink(context.Background(), &domain.Link{Slug: "abc", DestinationURL: "https://other.example"})
	assert.ErrorIs(t, err, repository.ErrSlugExists)
}

func TestMemStorage_UpdateLink(t *testing.T) {
	ctx := context.Background()
	s := New()
	first := newLink(t, s, "first")
	newLink(t, s, "second")

	first.Slug = "second"
	assert.ErrorIs(t, s.UpdateLink(ctx, first), repository.ErrSlugExists)

	first.Slug = "renamed"
	first.IsActive = false
	require.NoError(t, s.UpdateLink(ctx, first))

	got, err := s.GetLinkBySlug(ctx, "renamed")
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	assert.ErrorIs(t, s.UpdateLink(ctx, &domain.Link{ID: uuid.New()}), repository.ErrLinkNotFound)
}

func TestMemStorage_RecordClick_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	s := New()
	link := newLink(t, s, "hot")
	day := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	const clicks = 200
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

	series, err := s.ClicksByDay(ctx, domain.DailyRange{From: domain.UTCDay(day), LinkID: &link.ID})
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, int64(clicks), series[0].Clicks)
	assert.Equal(t, domain.UTCDay(day), series[0].Day)
}

func TestMemStorage_RecordClick_UnknownLink(t *testing.T) {
	s := New()
	err := s.RecordClick(context.Background(), &domain.ClickEvent{LinkID: uuid.New()}, time.Now())
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}

func TestMemStorage_Breakdown(t *testing.T) {
	ctx := context.Background()
	s := New()
	link := newLink(t, s, "geo")
	now := time.Now().UTC()

	events := []*domain.ClickEvent{
		{LinkID: link.ID, DeviceType: domain.DeviceMobile, BrowserName: "Safari", CountryCode: strPtr("US"), CountryName: strPtr("United States"), City: strPtr("Austin")},
		{LinkID: link.ID, DeviceType: domain.DeviceMobile, BrowserName: "Safari", CountryCode: strPtr("US"), CountryName: strPtr("United States"), ReferrerDomain: strPtr("news.ycombinator.com")},
		{LinkID: link.ID, DeviceType: domain.DeviceDesktop, BrowserName: "Firefox", CountryCode: strPtr("DE"), CountryName: strPtr("Germany")},
	}
	for _, e := range events {
		require.NoError(t, s.RecordClick(ctx, e, now))
	}

	devices, err := s.Breakdown(ctx, domain.DimensionDevice, domain.EventRange{Since: now.Add(-time.Hour)})
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, domain.DeviceMobile, *devices[0].Value)
	assert.Equal(t, int64(2), devices[0].Clicks)
	assert.Nil(t, devices[0].Label)

	referrers, err := s.Breakdown(ctx, domain.DimensionReferrer, domain.EventRange{Since: now.Add(-time.Hour)})
	require.NoError(t, err)
	require.Len(t, referrers, 2)
	assert.Equal(t, domain.DirectReferrer, *referrers[0].Value)
	assert.Equal(t, int64(2), referrers[0].Clicks)

	countries, err := s.Breakdown(ctx, domain.DimensionCountry, domain.EventRange{Since: now.Add(-time.Hour), LinkID: &link.ID})
	require.NoError(t, err)
	require.Len(t, countries, 2)
	assert.Equal(t, "US", *countries[0].Value)
	assert.Equal(t, "United States", *countries[0].Label)

	later, err := s.Breakdown(ctx, domain.DimensionDevice, domain.EventRange{Since: now.Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, later)
}

func TestMemStorage_TopLinksAndTotals(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := newLink(t, s, "a")
	b := newLink(t, s, "b")
	today := domain.UTCDay(time.Now())

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordClick(ctx, &domain.ClickEvent{LinkID: b.ID}, today))
	}
	require.NoError(t, s.RecordClick(ctx, &domain.ClickEvent{LinkID: a.ID}, today))
	require.NoError(t, s.RecordClick(ctx, &domain.ClickEvent{LinkID: a.ID}, today.AddDate(0, 0, -40)))

	top, err := s.TopLinks(ctx, today.AddDate(0, 0, -6), 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].Slug)
	assert.Equal(t, int64(3), top[0].Clicks)
	assert.Equal(t, int64(1), top[1].Clicks)

	total, err := s.TotalClicks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	until := today
	previous, err := s.SumDailyClicks(ctx, domain.DailyRange{From: today.AddDate(0, 0, -60), Until: &until})
	require.NoError(t, err)
	assert.Equal(t, int64(1), previous)
}

func TestMemStorage_DeleteLinkCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	link := newLink(t, s, "gone")
	require.NoError(t, s.RecordClick(ctx, &domain.ClickEvent{LinkID: link.ID}, time.Now()))

	require.NoError(t, s.DeleteLink(ctx, link.ID))

	_, err := s.GetLinkByID(ctx, link.ID)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	sum, err := s.SumDailyClicks(ctx, domain.DailyRange{From: time.Time{}})
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestMemStorage_GeoDatabaseVersion(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetGeoDatabaseVersion(ctx)
	assert.ErrorIs(t, err, repository.ErrGeoDatabaseNotFound)

	require.NoError(t, s.SaveGeoDatabase(ctx, &domain.GeoCountryDatabase{MMDB: []byte("one")}))
	v1, err := s.GetGeoDatabaseVersion(ctx)
	require.NoError(t, err)

	require.NoError(t, s.SaveGeoDatabase(ctx, &domain.GeoCountryDatabase{MMDB: []byte("two")}))
	v2, err := s.GetGeoDatabaseVersion(ctx)
	require.NoError(t, err)
	assert.True(t, v2.After(v1))

	etag := `"abc"`
	require.NoError(t, s.SaveGeoDatabaseCheck(ctx, domain.GeoDatabaseCheck{ETag: &etag, CheckedAt: time.Now().UTC()}))
	db, err := s.GetGeoDatabase(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), db.MMDB)
	assert.Equal(t, etag, *db.ETag)
}
