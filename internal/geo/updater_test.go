package geo

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ttemp-link/internal/config"
	"ttemp-link/internal/domain"
	"ttemp-link/internal/repository/memory"
)

type provider struct {
	archive  []byte
	status   int
	heads    int32
	gets     int32
	lastKey  atomic.Value
	modified string
}

func (p *provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.lastKey.Store(r.URL.Query().Get("license_key"))
	if p.status != 0 {
		w.WriteHeader(p.status)
		return
	}
	w.Header().Set("ETag", `"v2"`)
	w.Header().Set("Last-Modified", p.modified)
	switch r.Method {
	case http.MethodHead:
		atomic.AddInt32(&p.heads, 1)
	case http.MethodGet:
		atomic.AddInt32(&p.gets, 1)
		_, _ = w.Write(p.archive)
	}
}

func newTestUpdater(t *testing.T, p *provider, store *memory.MemStorage, configKey string) *Updater {
	t.Helper()
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)

	cfg := config.GeoIP{
		LicenseKey:     configKey,
		EditionID:      "GeoLite2-Country",
		DownloadURL:    srv.URL + "/app/geoip_download",
		RequestTimeout: 5 * time.Second,
		CheckInterval:  time.Hour,
	}
	return NewUpdater(store, cfg, nil, zap.NewNop())
}

func TestUpdater_DownloadURL(t *testing.T) {
	u := NewUpdater(memory.New(), config.GeoIP{
		EditionID:   "GeoLite2-Country",
		DownloadURL: "https://download.maxmind.com/app/geoip_download",
	}, nil, zap.NewNop())

	assert.Equal(t,
		"https://download.maxmind.com/app/geoip_download?edition_id=GeoLite2-Country&license_key=a%2Bb%26c&suffix=tar.gz",
		u.DownloadURL("a+b&c"))
}

func TestUpdater_LicenseKeyResolution(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	u := newTestUpdater(t, &provider{}, store, "from-config")

	key, err := u.LicenseKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)

	stored := "from-settings"
	require.NoError(t, store.UpsertAnalyticsSettings(ctx, &domain.AnalyticsSettings{MaxMindLicenseKey: &stored}))
	key, err = u.LicenseKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from-settings", key)
}

func TestUpdater_Refresh(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	mmdb := []byte("fake-mmdb-payload")
	p := &provider{
		archive:  buildArchive(t, tarEntry{name: "dir/GeoLite2-Country.mmdb", body: mmdb}),
		modified: "Tue, 10 Mar 2026 08:00:00 GMT",
	}
	var refreshed int32
	u := newTestUpdater(t, p, store, "key-1")
	u.onRefresh = func() { atomic.AddInt32(&refreshed, 1) }

	db, err := u.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, mmdb, db.MMDB)
	assert.Equal(t, "key-1", p.lastKey.Load())
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshed))

	stored, err := store.GetGeoDatabase(ctx)
	require.NoError(t, err)
	assert.Equal(t, mmdb, stored.MMDB)
	assert.Equal(t, SourceURL, stored.SourceURL)
	require.NotNil(t, stored.ETag)
	assert.Equal(t, `"v2"`, *stored.ETag)
	require.NotNil(t, stored.LastModifiedAt)
	assert.Equal(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), *stored.LastModifiedAt)
	assert.Equal(t, stored.LastModifiedAt, stored.LatestLastModifiedAt)
}

func TestUpdater_RefreshErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("no license key", func(t *testing.T) {
		u := newTestUpdater(t, &provider{}, memory.New(), "")
		_, err := u.Refresh(ctx)
		var refreshErr *RefreshError
		require.True(t, errors.As(err, &refreshErr))
		assert.Equal(t, http.StatusBadRequest, refreshErr.Status)
	})

	t.Run("upstream status passes through", func(t *testing.T) {
		u := newTestUpdater(t, &provider{status: http.StatusUnauthorized}, memory.New(), "bad")
		_, err := u.Refresh(ctx)
		var refreshErr *RefreshError
		require.True(t, errors.As(err, &refreshErr))
		assert.Equal(t, http.StatusUnauthorized, refreshErr.Status)
		assert.NotContains(t, err.Error(), "bad")
	})

	t.Run("archive without mmdb", func(t *testing.T) {
		p := &provider{archive: buildArchive(t, tarEntry{name: "README.txt", body: []byte("hi")})}
		u := newTestUpdater(t, p, memory.New(), "key")
		_, err := u.Refresh(ctx)
		var refreshErr *RefreshError
		require.True(t, errors.As(err, &refreshErr))
		assert.Equal(t, http.StatusInternalServerError, refreshErr.Status)
	})
}

func TestUpdater_CheckIfDue(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p := &provider{modified: "Wed, 01 Apr 2026 00:00:00 GMT"}
	u := newTestUpdater(t, p, store, "key")
	clock := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	u.now = func() time.Time { return clock }

	require.NoError(t, store.SaveGeoDatabase(ctx, &domain.GeoCountryDatabase{MMDB: bytes.Repeat([]byte{1}, 4)}))
	// Pretend the last check happened two days ago.
	old := clock.Add(-48 * time.Hour)
	require.NoError(t, store.SaveGeoDatabaseCheck(ctx, domain.GeoDatabaseCheck{CheckedAt: old}))

	checked, err := u.CheckIfDue(ctx)
	require.NoError(t, err)
	assert.True(t, checked)
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.heads))

	db, err := store.GetGeoDatabase(ctx)
	require.NoError(t, err)
	assert.Equal(t, clock, *db.CheckedAt)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), *db.LatestLastModifiedAt)

	// Within 24h of the last check: no request.
	clock = clock.Add(time.Hour)
	checked, err = u.CheckIfDue(ctx)
	require.NoError(t, err)
	assert.False(t, checked)
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.heads))
}

func TestUpdater_CheckIfDue_NoKey(t *testing.T) {
	p := &provider{}
	u := newTestUpdater(t, p, memory.New(), "")

	checked, err := u.CheckIfDue(context.Background())
	require.NoError(t, err)
	assert.False(t, checked)
	assert.Zero(t, atomic.LoadInt32(&p.heads))
}
