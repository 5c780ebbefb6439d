package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ttemp-link/internal/domain"
	"ttemp-link/internal/geo"
	"ttemp-link/internal/repository"
)

// SettingsStore is the persistence surface of the settings service.
type SettingsStore interface {
	GetAnalyticsSettings(ctx context.Context) (*domain.AnalyticsSettings, error)
	UpsertAnalyticsSettings(ctx context.Context, settings *domain.AnalyticsSettings) error
	GetGeoDatabase(ctx context.Context) (*domain.GeoCountryDatabase, error)
}

// GeoUpdater manages the offline country dataset.
type GeoUpdater interface {
	LicenseKey(ctx context.Context) (string, error)
	CheckIfDue(ctx context.Context) (bool, error)
	Refresh(ctx context.Context) (*domain.GeoCountryDatabase, error)
}

// SaveSettingsInput is the admin form for analytics settings. A blank license key keeps
// the stored one.
type SaveSettingsInput struct {
	TrackCountry       bool
	UseGeoLiteFallback bool
	MaxMindLicenseKey  string
}

// SettingsState is the stored settings without the secret.
type SettingsState struct {
	TrackCountry        bool `json:"track_country"`
	UseGeoLiteFallback  bool `json:"use_geolite_fallback"`
	HasStoredLicenseKey bool `json:"has_stored_license_key"`
}

// GeoStatus describes the stored country dataset and the newest upstream version seen.
type GeoStatus struct {
	SourceURL       string     `json:"source_url"`
	LastModifiedAt  *time.Time `json:"last_modified_at"`
	FetchedAt       *time.Time `json:"fetched_at"`
	CheckedAt       *time.Time `json:"checked_at"`
	LatestVersionAt *time.Time `json:"latest_version_at"`
	HasDatabase     bool       `json:"has_database"`
}

// SettingsView is what the settings page shows.
type SettingsView struct {
	Settings      SettingsState `json:"settings"`
	Geo           GeoStatus     `json:"geo"`
	HasLicenseKey bool          `json:"has_license_key"`
}

// SettingsService reads and writes analytics settings and drives the geo dataset updater.
type SettingsService struct {
	store   SettingsStore
	updater GeoUpdater
	log     *zap.Logger
}

func NewSettingsService(store SettingsStore, updater GeoUpdater, log *zap.Logger) *SettingsService {
	return &SettingsService{
		store:   store,
		updater: updater,
		log:     log.With(zap.String("component", "service.settings")),
	}
}

// View returns the settings page data, running the daily freshness probe first when due.
// A failed probe is logged and the stored data is returned.
func (s *SettingsService) View(ctx context.Context) (*SettingsView, error) {
	if _, err := s.updater.CheckIfDue(ctx); err != nil {
		s.log.Warn("geo database freshness check failed", zap.Error(err))
	}
	return s.view(ctx)
}

// Save stores the settings. The fallback can only be on while country tracking is on.
func (s *SettingsService) Save(ctx context.Context, in SaveSettingsInput) (*SettingsView, error) {
	current, err := s.store.GetAnalyticsSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	next := &domain.AnalyticsSettings{
		ID:                 domain.SingletonID,
		TrackCountry:       in.TrackCountry,
		UseGeoLiteFallback: in.TrackCountry && in.UseGeoLiteFallback,
		MaxMindLicenseKey:  current.MaxMindLicenseKey,
	}
	if key := strings.TrimSpace(in.MaxMindLicenseKey); key != "" {
		next.MaxMindLicenseKey = &key
	}

	if err := s.store.UpsertAnalyticsSettings(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}

	s.log.Info("analytics settings saved",
		zap.Bool("track_country", next.TrackCountry),
		zap.Bool("use_geolite_fallback", next.UseGeoLiteFallback),
	)
	return s.view(ctx)
}

// RefreshGeoDatabase downloads a new dataset. Provider failures come back as
// *geo.RefreshError.
func (s *SettingsService) RefreshGeoDatabase(ctx context.Context) (*SettingsView, error) {
	if _, err := s.updater.Refresh(ctx); err != nil {
		return nil, err
	}
	return s.view(ctx)
}

func (s *SettingsService) view(ctx context.Context) (*SettingsView, error) {
	settings, err := s.store.GetAnalyticsSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	key, err := s.updater.LicenseKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve license key: %w", err)
	}

	view := &SettingsView{
		Settings: SettingsState{
			TrackCountry:        settings.TrackCountry,
			UseGeoLiteFallback:  settings.UseGeoLiteFallback,
			HasStoredLicenseKey: settings.MaxMindLicenseKey != nil && strings.TrimSpace(*settings.MaxMindLicenseKey) != "",
		},
		Geo:           GeoStatus{SourceURL: geo.SourceURL},
		HasLicenseKey: key != "",
	}

	db, err := s.store.GetGeoDatabase(ctx)
	switch {
	case errors.Is(err, repository.ErrGeoDatabaseNotFound):
		return view, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load geo database: %w", err)
	}

	fetchedAt := db.FetchedAt
	view.Geo = GeoStatus{
		SourceURL:       db.SourceURL,
		LastModifiedAt:  db.LastModifiedAt,
		FetchedAt:       &fetchedAt,
		CheckedAt:       db.CheckedAt,
		LatestVersionAt: db.LatestLastModifiedAt,
		HasDatabase:     len(db.MMDB) > 0,
	}
	return view, nil
}
