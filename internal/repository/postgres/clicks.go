package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ttemp-link/internal/domain"
	"ttemp-link/internal/repository"
)

// RecordClick stores the click event and bumps both counters in a single transaction.
// The daily counter uses INSERT ... ON CONFLICT DO UPDATE so concurrent clicks on the
// same (link, day) never lose increments.
func (s *PostgresStorage) RecordClick(ctx context.Context, event *domain.ClickEvent, day time.Time) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("failed to insert click event: %w", err)
		}

		stat := domain.DailyStat{
			LinkID: event.LinkID,
			Day:    domain.UTCDay(day),
			Clicks: 1,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "link_id"}, {Name: "day"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"clicks": gorm.Expr("link_daily_stats.clicks + 1"),
			}),
		}).Create(&stat).Error
		if err != nil {
			return fmt.Errorf("failed to upsert daily stat: %w", err)
		}

		result := tx.Model(&domain.Link{}).
			Where("id = ?", event.LinkID).
			UpdateColumn("total_clicks", gorm.Expr("total_clicks + 1"))
		if result.Error != nil {
			return fmt.Errorf("failed to update total clicks: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return repository.ErrLinkNotFound
		}
		return nil
	})
	if err != nil {
		s.log.Error("failed to record click", zap.Stringer("link_id", event.LinkID), zap.Error(err))
		return err
	}

	s.log.Debug("recorded click",
		zap.Stringer("link_id", event.LinkID),
		zap.String("device_type", event.DeviceType),
	)
	return nil
}
