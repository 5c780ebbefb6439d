package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ttemp-link/internal/domain"
	"ttemp-link/internal/repository"
)

// PostgresStorage implements repository.Storage on PostgreSQL through GORM.
type PostgresStorage struct {
	db  *gorm.DB
	log *zap.Logger
}

var _ repository.Storage = (*PostgresStorage)(nil)

// New creates a new PostgreSQL storage.
func New(db *gorm.DB, log *zap.Logger) *PostgresStorage {
	return &PostgresStorage{
		db:  db,
		log: log.With(zap.String("component", "storage.postgres")),
	}
}

// Ping checks the database connection.
func (s *PostgresStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// --- Link Methods ---

// CreateLink saves a new link.
func (s *PostgresStorage) CreateLink(ctx context.Context, link *domain.Link) error {
	if err := s.db.WithContext(ctx).Create(link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrSlugExists
		}
		s.log.Error("failed to save link", zap.String("slug", link.Slug), zap.Error(err))
		return fmt.Errorf("failed to save link: %w", err)
	}

	s.log.Info("saved new link", zap.String("slug", link.Slug), zap.Stringer("link_id", link.ID))
	return nil
}

// UpdateLink saves the mutable fields of a link.
func (s *PostgresStorage) UpdateLink(ctx context.Context, link *domain.Link) error {
	result := s.db.WithContext(ctx).Model(link).
		Select("slug", "destination_url", "title", "tags", "is_active", "updated_at").
		Updates(link)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return repository.ErrSlugExists
		}
		s.log.Error("failed to update link", zap.Stringer("link_id", link.ID), zap.Error(result.Error))
		return fmt.Errorf("failed to update link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrLinkNotFound
	}
	return nil
}

// DeleteLink removes a link; daily stats and click events cascade.
func (s *PostgresStorage) DeleteLink(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Link{})
	if result.Error != nil {
		s.log.Error("failed to delete link", zap.Stringer("link_id", id), zap.Error(result.Error))
		return fmt.Errorf("failed to delete link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrLinkNotFound
	}

	s.log.Info("deleted link", zap.Stringer("link_id", id))
	return nil
}

// GetLinkByID fetches a link by id.
func (s *PostgresStorage) GetLinkByID(ctx context.Context, id uuid.UUID) (*domain.Link, error) {
	return s.findLink(ctx, "id = ?", id)
}

// GetLinkBySlug fetches a link by slug.
func (s *PostgresStorage) GetLinkBySlug(ctx context.Context, slug string) (*domain.Link, error) {
	return s.findLink(ctx, "slug = ?", slug)
}

// FindLinkByDestination fetches the owner's link pointing at destinationURL.
func (s *PostgresStorage) FindLinkByDestination(ctx context.Context, owner uuid.UUID, destinationURL string) (*domain.Link, error) {
	return s.findLink(ctx, "created_by = ? AND destination_url = ?", owner, destinationURL)
}

// SlugExists checks whether a slug is taken.
func (s *PostgresStorage) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Link{}).Where("slug = ?", slug).Count(&count).Error
	if err != nil {
		s.log.Error("failed to check slug existence", zap.String("slug", slug), zap.Error(err))
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return count > 0, nil
}

// ListLinks returns the owner's links, newest first.
func (s *PostgresStorage) ListLinks(ctx context.Context, owner uuid.UUID) ([]*domain.Link, error) {
	var links []*domain.Link
	err := s.db.WithContext(ctx).Where("created_by = ?", owner).
		Order("created_at DESC").Find(&links).Error
	if err != nil {
		s.log.Error("failed to list links", zap.Stringer("owner", owner), zap.Error(err))
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return links, nil
}

func (s *PostgresStorage) findLink(ctx context.Context, query string, args ...interface{}) (*domain.Link, error) {
	var link domain.Link
	err := s.db.WithContext(ctx).Where(query, args...).Take(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrLinkNotFound
	}
	if err != nil {
		s.log.Error("failed to get link", zap.String("query", query), zap.Error(err))
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return &link, nil
}
