package domain

import (
	"time"

	"github.com/google/uuid"
)

// DirectReferrer labels clicks that carried no usable referrer.
const DirectReferrer = "Direct"

// Dimension is a categorical ClickEvent attribute a breakdown groups by.
type Dimension string

const (
	DimensionDevice   Dimension = "device"
	DimensionBrowser  Dimension = "browser"
	DimensionReferrer Dimension = "referrer"
	DimensionCountry  Dimension = "country"
	DimensionCity     Dimension = "city"
)

// Dimensions lists every supported breakdown dimension.
var Dimensions = []Dimension{
	DimensionDevice,
	DimensionBrowser,
	DimensionReferrer,
	DimensionCountry,
	DimensionCity,
}

// Valid reports whether d is a known dimension.
func (d Dimension) Valid() bool {
	for _, known := range Dimensions {
		if d == known {
			return true
		}
	}
	return false
}

// Geographic reports whether the dimension is only meaningful with country tracking on.
func (d Dimension) Geographic() bool {
	return d == DimensionCountry || d == DimensionCity
}

// Project returns the (value, label) grouping key the dimension extracts from an event.
// Country groups by (code, name); city groups by (city, country name); the others carry no label.
func (d Dimension) Project(e *ClickEvent) (value, label *string) {
	switch d {
	case DimensionDevice:
		return &e.DeviceType, nil
	case DimensionBrowser:
		return &e.BrowserName, nil
	case DimensionReferrer:
		if e.ReferrerDomain == nil {
			direct := DirectReferrer
			return &direct, nil
		}
		return e.ReferrerDomain, nil
	case DimensionCountry:
		return e.CountryCode, e.CountryName
	case DimensionCity:
		return e.City, e.CountryName
	}
	return nil, nil
}

// BreakdownRow is one group of a categorical breakdown.
type BreakdownRow struct {
	Value  *string `json:"value"`
	Label  *string `json:"label,omitempty"`
	Clicks int64   `json:"clicks"`
}

// DayClicks is one point of the per-day click series.
type DayClicks struct {
	Day    time.Time `json:"-"`
	Clicks int64     `json:"clicks"`
}

// TopLink is a link ranked by clicks within a range.
type TopLink struct {
	ID             uuid.UUID `json:"id"`
	Slug           string    `json:"slug"`
	DestinationURL string    `json:"destination_url"`
	Title          *string   `json:"title,omitempty"`
	IsActive       bool      `json:"is_active"`
	Clicks         int64     `json:"clicks"`
}

// DailyRange selects DailyStat rows with From <= day and, when Until is set, day < Until.
type DailyRange struct {
	From   time.Time
	Until  *time.Time
	LinkID *uuid.UUID
}

// EventRange selects ClickEvent rows created at or after Since.
type EventRange struct {
	Since  time.Time
	LinkID *uuid.UUID
}
