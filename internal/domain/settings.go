package domain

import "time"

// SingletonID is the primary key of the single-row settings tables.
const SingletonID = "default"

// AnalyticsSettings controls country tracking for the whole installation.
type AnalyticsSettings struct {
	ID                 string    `gorm:"primaryKey;column:id;size:32;default:'default'" json:"-"`
	TrackCountry       bool      `gorm:"column:track_country;not null;default:false" json:"track_country"`
	UseGeoLiteFallback bool      `gorm:"column:use_geolite_fallback;not null;default:false" json:"use_geolite_fallback"`
	MaxMindLicenseKey  *string   `gorm:"column:maxmind_license_key;type:text" json:"-"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime;index:analytics_settings_updated_at_idx" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (AnalyticsSettings) TableName() string {
	return "analytics_settings"
}

// GeoFallbackEnabled reports whether the offline country lookup may be used.
func (s *AnalyticsSettings) GeoFallbackEnabled() bool {
	return s != nil && s.TrackCountry && s.UseGeoLiteFallback
}

// GeoCountryDatabase caches the downloaded offline country dataset.
type GeoCountryDatabase struct {
	ID                   string     `gorm:"primaryKey;column:id;size:32;default:'default'" json:"-"`
	MMDB                 []byte     `gorm:"column:mmdb;type:bytea;not null" json:"-"`
	SourceURL            string     `gorm:"column:source_url;type:text;not null" json:"source_url"`
	ETag                 *string    `gorm:"column:etag;type:text" json:"etag,omitempty"`
	LastModifiedAt       *time.Time `gorm:"column:last_modified_at" json:"last_modified_at,omitempty"`
	FetchedAt            time.Time  `gorm:"column:fetched_at;not null;index:geoip_country_db_fetched_at_idx" json:"fetched_at"`
	CheckedAt            *time.Time `gorm:"column:checked_at" json:"checked_at,omitempty"`
	LatestLastModifiedAt *time.Time `gorm:"column:latest_last_modified_at" json:"latest_last_modified_at,omitempty"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime;index:geoip_country_db_updated_at_idx" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (GeoCountryDatabase) TableName() string {
	return "geoip_country_db"
}

// GeoDatabaseCheck records the result of a freshness probe against the upstream dataset.
// Nil fields are left untouched.
type GeoDatabaseCheck struct {
	SourceURL            string
	ETag                 *string
	LatestLastModifiedAt *time.Time
	CheckedAt            time.Time
}
