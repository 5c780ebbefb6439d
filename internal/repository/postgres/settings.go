package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ttemp-link/internal/domain"
	"ttemp-link/internal/repository"
)

// GetAnalyticsSettings returns the singleton settings row, inserting the default one
// the first time it is read.
func (s *PostgresStorage) GetAnalyticsSettings(ctx context.Context) (*domain.AnalyticsSettings, error) {
	var settings domain.AnalyticsSettings
	err := s.db.WithContext(ctx).Where("id = ?", domain.SingletonID).Take(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Error("failed to get analytics settings", zap.Error(err))
		return nil, fmt.Errorf("failed to get analytics settings: %w", err)
	}

	settings = domain.AnalyticsSettings{ID: domain.SingletonID}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&settings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create default analytics settings: %w", err)
	}
	if err := s.db.WithContext(ctx).Where("id = ?", domain.SingletonID).Take(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to reload analytics settings: %w", err)
	}
	return &settings, nil
}

// UpsertAnalyticsSettings writes every settings field as given.
func (s *PostgresStorage) UpsertAnalyticsSettings(ctx context.Context, settings *domain.AnalyticsSettings) error {
	settings.ID = domain.SingletonID
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"track_country", "use_geolite_fallback", "maxmind_license_key", "updated_at",
		}),
	}).Create(settings).Error
	if err != nil {
		s.log.Error("failed to save analytics settings", zap.Error(err))
		return fmt.Errorf("failed to save analytics settings: %w", err)
	}

	s.log.Info("saved analytics settings",
		zap.Bool("track_country", settings.TrackCountry),
		zap.Bool("use_geolite_fallback", settings.UseGeoLiteFallback),
	)
	return nil
}

// GetGeoDatabase loads the stored country dataset.
func (s *PostgresStorage) GetGeoDatabase(ctx context.Context) (*domain.GeoCountryDatabase, error) {
	var db domain.GeoCountryDatabase
	err := s.db.WithContext(ctx).Where("id = ?", domain.SingletonID).Take(&db).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrGeoDatabaseNotFound
	}
	if err != nil {
		s.log.Error("failed to get geo database", zap.Error(err))
		return nil, fmt.Errorf("failed to get geo database: %w", err)
	}
	return &db, nil
}

// GetGeoDatabaseVersion returns fetched_at of the stored dataset.
func (s *PostgresStorage) GetGeoDatabaseVersion(ctx context.Context) (time.Time, error) {
	var db domain.GeoCountryDatabase
	err := s.db.WithContext(ctx).Select("id", "fetched_at").
		Where("id = ?", domain.SingletonID).Take(&db).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, repository.ErrGeoDatabaseNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get geo database version: %w", err)
	}
	return db.FetchedAt, nil
}

// SaveGeoDatabase replaces the stored dataset. FetchedAt and CheckedAt are set to now.
func (s *PostgresStorage) SaveGeoDatabase(ctx context.Context, db *domain.GeoCountryDatabase) error {
	now := time.Now().UTC()
	db.ID = domain.SingletonID
	db.FetchedAt = now
	db.CheckedAt = &now
	if db.LatestLastModifiedAt == nil {
		db.LatestLastModifiedAt = db.LastModifiedAt
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"mmdb", "source_url", "etag", "last_modified_at", "fetched_at",
			"checked_at", "latest_last_modified_at", "updated_at",
		}),
	}).Create(db).Error
	if err != nil {
		s.log.Error("failed to save geo database", zap.Error(err))
		return fmt.Errorf("failed to save geo database: %w", err)
	}

	s.log.Info("saved geo database", zap.Int("size_bytes", len(db.MMDB)), zap.Time("fetched_at", now))
	return nil
}

// SaveGeoDatabaseCheck stores the freshness probe result on the existing dataset row.
func (s *PostgresStorage) SaveGeoDatabaseCheck(ctx context.Context, check domain.GeoDatabaseCheck) error {
	updates := map[string]interface{}{
		"checked_at": check.CheckedAt,
		"updated_at": time.Now().UTC(),
	}
	if check.SourceURL != "" {
		updates["source_url"] = check.SourceURL
	}
	if check.ETag != nil {
		updates["etag"] = *check.ETag
	}
	if check.LatestLastModifiedAt != nil {
		updates["latest_last_modified_at"] = *check.LatestLastModifiedAt
	}

	err := s.db.WithContext(ctx).Model(&domain.GeoCountryDatabase{}).
		Where("id = ?", domain.SingletonID).
		Updates(updates).Error
	if err != nil {
		s.log.Error("failed to save geo database check", zap.Error(err))
		return fmt.Errorf("failed to save geo database check: %w", err)
	}
	return nil
}
