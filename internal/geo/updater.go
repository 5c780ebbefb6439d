package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"ttemp-link/internal/config"
	"ttemp-link/internal/domain"
	"ttemp-link/internal/metrics"
	"ttemp-link/internal/repository"
)

const (
	// SourceURL is recorded as the provenance of the stored dataset.
	SourceURL = "https://dev.maxmind.com/geoip/geolite2-free-geolocation-data"

	// CheckMaxAge is how long a freshness probe result stays valid.
	CheckMaxAge = 24 * time.Hour

	maxArchiveBytes = 128 << 20
)

// upstreamStatusError reports a non-2xx response from the provider.
type upstreamStatusError struct {
	status int
}

func (e *upstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.status)
}

// RefreshError carries the HTTP status a failed refresh should be reported with.
type RefreshError struct {
	Status  int
	Message string
	Err     error
}

func (e *RefreshError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *RefreshError) Unwrap() error { return e.Err }

// UpdaterStore is the storage surface the updater needs.
type UpdaterStore interface {
	GetAnalyticsSettings(ctx context.Context) (*domain.AnalyticsSettings, error)
	GetGeoDatabase(ctx context.Context) (*domain.GeoCountryDatabase, error)
	SaveGeoDatabase(ctx context.Context, db *domain.GeoCountryDatabase) error
	SaveGeoDatabaseCheck(ctx context.Context, check domain.GeoDatabaseCheck) error
}

// Updater keeps the stored country dataset current: it probes the provider with HEAD
// at most once a day and downloads a new archive on demand.
type Updater struct {
	store     UpdaterStore
	cfg       config.GeoIP
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	onRefresh func()
	now       func() time.Time
	log       *zap.Logger

	// lastProbe throttles probes while no dataset row exists to hold checked_at.
	mu        sync.Mutex
	lastProbe time.Time
}

// NewUpdater creates an updater. onRefresh, when set, runs after a new dataset is saved.
func NewUpdater(store UpdaterStore, cfg config.GeoIP, onRefresh func(), log *zap.Logger) *Updater {
	log = log.With(zap.String("component", "geo.updater"))

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "geoip-provider",
		MaxRequests: 1,
		Interval:    10 * time.Minute,
		Timeout:     5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// A rejected license key is the caller's problem, not an outage.
		IsSuccessful: func(err error) bool {
			var statusErr *upstreamStatusError
			if errors.As(err, &statusErr) {
				return statusErr.status < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Updater{
		store:     store,
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.RequestTimeout},
		breaker:   breaker,
		onRefresh: onRefresh,
		now:       time.Now,
		log:       log,
	}
}

// LicenseKey returns the stored key, falling back to the configured one.
func (u *Updater) LicenseKey(ctx context.Context) (string, error) {
	settings, err := u.store.GetAnalyticsSettings(ctx)
	if err != nil {
		return "", err
	}
	if settings.MaxMindLicenseKey != nil {
		if key := strings.TrimSpace(*settings.MaxMindLicenseKey); key != "" {
			return key, nil
		}
	}
	return strings.TrimSpace(u.cfg.LicenseKey), nil
}

// DownloadURL builds the archive URL for the configured edition.
func (u *Updater) DownloadURL(licenseKey string) string {
	q := url.Values{}
	q.Set("edition_id", u.cfg.EditionID)
	q.Set("license_key", licenseKey)
	q.Set("suffix", "tar.gz")
	return u.cfg.DownloadURL + "?" + q.Encode()
}

// CheckIfDue probes the provider for the latest dataset version when a license key is
// available and the last probe is missing or older than CheckMaxAge. It reports
// whether a probe result was stored.
func (u *Updater) CheckIfDue(ctx context.Context) (bool, error) {
	key, err := u.LicenseKey(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to resolve license key: %w", err)
	}
	if key == "" {
		return false, nil
	}

	var checkedAt *time.Time
	db, err := u.store.GetGeoDatabase(ctx)
	switch {
	case err == nil:
		checkedAt = db.CheckedAt
	case errors.Is(err, repository.ErrGeoDatabaseNotFound):
	default:
		return false, fmt.Errorf("failed to load geo database: %w", err)
	}

	now := u.now()
	u.mu.Lock()
	if checkedAt == nil && !u.lastProbe.IsZero() {
		checkedAt = &u.lastProbe
	}
	due := checkedAt == nil || now.Sub(*checkedAt) > CheckMaxAge
	if due {
		u.lastProbe = now
	}
	u.mu.Unlock()
	if !due {
		return false, nil
	}

	resp, err := u.do(ctx, http.MethodHead, key)
	if err != nil {
		metrics.GeoUpstreamRequestsTotal.WithLabelValues("check", "error").Inc()
		u.log.Warn("geo database freshness check failed", zap.Error(err))
		return false, nil
	}
	resp.Body.Close()
	metrics.GeoUpstreamRequestsTotal.WithLabelValues("check", "ok").Inc()

	check := domain.GeoDatabaseCheck{
		SourceURL:            SourceURL,
		ETag:                 headerValue(resp.Header, "ETag"),
		LatestLastModifiedAt: parseHTTPDate(resp.Header.Get("Last-Modified")),
		CheckedAt:            now.UTC(),
	}
	if err := u.store.SaveGeoDatabaseCheck(ctx, check); err != nil {
		return false, fmt.Errorf("failed to save geo database check: %w", err)
	}

	u.log.Info("geo database freshness checked",
		zap.Timep("latest_last_modified_at", check.LatestLastModifiedAt),
	)
	return true, nil
}

// Refresh downloads the archive, extracts the mmdb and stores it.
func (u *Updater) Refresh(ctx context.Context) (*domain.GeoCountryDatabase, error) {
	key, err := u.LicenseKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve license key: %w", err)
	}
	if key == "" {
		return nil, &RefreshError{Status: http.StatusBadRequest, Message: "MAXMIND_LICENSE_KEY is not configured."}
	}

	resp, err := u.do(ctx, http.MethodGet, key)
	if err != nil {
		metrics.GeoUpstreamRequestsTotal.WithLabelValues("download", "error").Inc()
		status := http.StatusBadGateway
		var statusErr *upstreamStatusError
		switch {
		case errors.As(err, &statusErr):
			status = statusErr.status
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			status = http.StatusServiceUnavailable
		}
		return nil, &RefreshError{
			Status:  status,
			Message: "Unable to download GeoLite2 Country. Check your license key.",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	archive, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveBytes))
	if err != nil {
		metrics.GeoUpstreamRequestsTotal.WithLabelValues("download", "error").Inc()
		return nil, &RefreshError{Status: http.StatusBadGateway, Message: "Unable to read GeoLite2 archive.", Err: err}
	}
	metrics.GeoUpstreamRequestsTotal.WithLabelValues("download", "ok").Inc()

	mmdb, err := ExtractMMDB(archive)
	if err != nil {
		return nil, &RefreshError{
			Status:  http.StatusInternalServerError,
			Message: "GeoLite2 archive did not contain an MMDB file.",
			Err:     err,
		}
	}

	db := &domain.GeoCountryDatabase{
		MMDB:           mmdb,
		SourceURL:      SourceURL,
		ETag:           headerValue(resp.Header, "ETag"),
		LastModifiedAt: parseHTTPDate(resp.Header.Get("Last-Modified")),
	}
	if err := u.store.SaveGeoDatabase(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to save geo database: %w", err)
	}

	u.log.Info("geo database refreshed", zap.Int("size_bytes", len(mmdb)))
	if u.onRefresh != nil {
		u.onRefresh()
	}
	return db, nil
}

// Run probes the provider every check interval until ctx is cancelled.
func (u *Updater) Run(ctx context.Context) {
	u.log.Info("starting geo database freshness loop", zap.Duration("interval", u.cfg.CheckInterval))

	ticker := time.NewTicker(u.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		if _, err := u.CheckIfDue(ctx); err != nil {
			u.log.Warn("scheduled geo database check failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			u.log.Info("geo database freshness loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// do issues a request through the circuit breaker. Non-2xx responses become an
// *upstreamStatusError and their body is closed.
func (u *Updater) do(ctx context.Context, method, licenseKey string) (*http.Response, error) {
	return u.breaker.Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, u.DownloadURL(licenseKey), nil)
		if err != nil {
			return nil, err
		}
		resp, err := u.client.Do(req)
		if err != nil {
			// url.Error embeds the request URL, which carries the license key.
			var urlErr *url.Error
			if errors.As(err, &urlErr) {
				return nil, urlErr.Err
			}
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return nil, &upstreamStatusError{status: resp.StatusCode}
		}
		return resp, nil
	})
}

func headerValue(h http.Header, name string) *string {
	v := strings.TrimSpace(h.Get(name))
	if v == "" {
		return nil
	}
	return &v
}

func parseHTTPDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, err := http.ParseTime(value)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
