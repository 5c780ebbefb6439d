package domain

import (
	"time"

	"github.com/google/uuid"
)

// DailyStat is the per-link, per-UTC-day click rollup.
type DailyStat struct {
	LinkID uuid.UUID `gorm:"type:uuid;primaryKey;column:link_id" json:"link_id"`
	Day    time.Time `gorm:"type:date;primaryKey;column:day;index:link_daily_stats_day_idx" json:"day"`
	Clicks int64     `gorm:"column:clicks;not null;default:0" json:"clicks"`

	Link *Link `gorm:"foreignKey:LinkID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for GORM.
func (DailyStat) TableName() string {
	return "link_daily_stats"
}

// UTCDay truncates t to midnight of its UTC calendar day.
func UTCDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayLayout is the wire format of a calendar day.
const DayLayout = "2006-01-02"
