package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ttemp-link/internal/domain"
)

var (
	ErrLinkNotFound        = errors.New("link not found")
	ErrSlugExists          = errors.New("slug already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
	ErrGeoDatabaseNotFound = errors.New("geo database not found")
)

// LinkStorage persists links.
type LinkStorage interface {
	CreateLink(ctx context.Context, link *domain.Link) error
	// UpdateLink saves slug, destination, title, tags and active flag.
	UpdateLink(ctx context.Context, link *domain.Link) error
	DeleteLink(ctx context.Context, id uuid.UUID) error
	GetLinkByID(ctx context.Context, id uuid.UUID) (*domain.Link, error)
	// GetLinkBySlug returns the link regardless of its active flag.
	GetLinkBySlug(ctx context.Context, slug string) (*domain.Link, error)
	FindLinkByDestination(ctx context.Context, owner uuid.UUID, destinationURL string) (*domain.Link, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	ListLinks(ctx context.Context, owner uuid.UUID) ([]*domain.Link, error)
}

// ClickStorage records clicks.
type ClickStorage interface {
	// RecordClick inserts the event, upserts the (link, day) DailyStat with an atomic
	// increment and bumps the link total, all in one transaction.
	RecordClick(ctx context.Context, event *domain.ClickEvent, day time.Time) error
}

// AnalyticsStorage answers read-only dashboard queries.
type AnalyticsStorage interface {
	ClicksByDay(ctx context.Context, r domain.DailyRange) ([]domain.DayClicks, error)
	SumDailyClicks(ctx context.Context, r domain.DailyRange) (int64, error)
	Breakdown(ctx context.Context, dim domain.Dimension, r domain.EventRange) ([]domain.BreakdownRow, error)
	TopLinks(ctx context.Context, from time.Time, limit int) ([]domain.TopLink, error)
	TotalClicks(ctx context.Context) (int64, error)
}

// SettingsStorage persists the singleton analytics settings and geo database.
type SettingsStorage interface {
	// GetAnalyticsSettings returns the settings row, creating the default one when missing.
	GetAnalyticsSettings(ctx context.Context) (*domain.AnalyticsSettings, error)
	UpsertAnalyticsSettings(ctx context.Context, settings *domain.AnalyticsSettings) error
	GetGeoDatabase(ctx context.Context) (*domain.GeoCountryDatabase, error)
	// GetGeoDatabaseVersion returns only fetched_at, without loading the dataset.
	GetGeoDatabaseVersion(ctx context.Context) (time.Time, error)
	SaveGeoDatabase(ctx context.Context, db *domain.GeoCountryDatabase) error
	SaveGeoDatabaseCheck(ctx context.Context, check domain.GeoDatabaseCheck) error
}

// UserStorage persists admin users.
type UserStorage interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Storage is the full persistence surface used by the services.
type Storage interface {
	LinkStorage
	ClickStorage
	AnalyticsStorage
	SettingsStorage
	UserStorage

	Ping(ctx context.Context) error
}
