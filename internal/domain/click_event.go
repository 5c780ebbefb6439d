package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Device types a ClickEvent can be classified as.
const (
	DeviceMobile   = "mobile"
	DeviceTablet   = "tablet"
	DeviceConsole  = "console"
	DeviceSmartTV  = "smarttv"
	DeviceWearable = "wearable"
	DeviceEmbedded = "embedded"
	DeviceDesktop  = "desktop"
	DeviceUnknown  = "unknown"
)

// UnknownBrowser is recorded when the browser family cannot be determined.
const UnknownBrowser = "Unknown"

// ClickEvent is the immutable per-click record used for categorical breakdowns.
type ClickEvent struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	LinkID         uuid.UUID `gorm:"type:uuid;column:link_id;not null;index:link_click_events_link_id_idx" json:"link_id"`
	CreatedAt      time.Time `gorm:"column:created_at;not null;index:link_click_events_created_at_idx" json:"created_at"`
	ReferrerDomain *string   `gorm:"column:referrer_domain;type:text;index:link_click_events_referrer_domain_idx" json:"referrer_domain,omitempty"`
	DeviceType     string    `gorm:"column:device_type;size:32;not null;index:link_click_events_device_type_idx" json:"device_type"`
	BrowserName    string    `gorm:"column:browser_name;size:64;not null;index:link_click_events_browser_name_idx" json:"browser_name"`
	BrowserVersion *string   `gorm:"column:browser_version;size:64" json:"browser_version,omitempty"`
	OSName         *string   `gorm:"column:os_name;size:64" json:"os_name,omitempty"`
	OSVersion      *string   `gorm:"column:os_version;size:64" json:"os_version,omitempty"`
	CountryCode    *string   `gorm:"column:country_code;size:2;index:link_click_events_country_code_idx" json:"country_code,omitempty"`
	CountryName    *string   `gorm:"column:country_name;size:80" json:"country_name,omitempty"`
	Region         *string   `gorm:"column:region;type:text" json:"region,omitempty"`
	City           *string   `gorm:"column:city;type:text;index:link_click_events_city_idx" json:"city,omitempty"`

	Link *Link `gorm:"foreignKey:LinkID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for GORM.
func (ClickEvent) TableName() string {
	return "link_click_events"
}

// BeforeCreate assigns a random id when none was set.
func (e *ClickEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
