package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Link is a short link owned by an admin user.
type Link struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	Slug           string         `gorm:"column:slug;size:64;not null;uniqueIndex:links_slug_unique" json:"slug"`
	DestinationURL string         `gorm:"column:destination_url;type:text;not null" json:"destination_url"`
	Title          *string        `gorm:"column:title;type:text" json:"title,omitempty"`
	Tags           pq.StringArray `gorm:"column:tags;type:text[];not null;default:'{}'" json:"tags"`
	IsActive       bool           `gorm:"column:is_active;not null;default:true" json:"is_active"`
	TotalClicks    int64          `gorm:"column:total_clicks;not null;default:0" json:"total_clicks"`
	CreatedBy      uuid.UUID      `gorm:"type:uuid;column:created_by;not null;index" json:"created_by"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime;index:links_created_at_idx" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Link) TableName() string {
	return "links"
}

// BeforeCreate assigns a random id when none was set.
func (l *Link) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Tags == nil {
		l.Tags = pq.StringArray{}
	}
	return nil
}
