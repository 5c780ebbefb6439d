package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ttemp-link/internal/domain"
)

// breakdownProjections maps each dimension to its (value, label) select list and grouping.
var breakdownProjections = map[domain.Dimension]struct {
	columns string
	groupBy string
}{
	domain.DimensionDevice:   {"device_type AS value, NULL::text AS label", "device_type"},
	domain.DimensionBrowser:  {"browser_name AS value, NULL::text AS label", "browser_name"},
	domain.DimensionReferrer: {"COALESCE(referrer_domain, 'Direct') AS value, NULL::text AS label", "COALESCE(referrer_domain, 'Direct')"},
	domain.DimensionCountry:  {"country_code AS value, country_name AS label", "country_code, country_name"},
	domain.DimensionCity:     {"city AS value, country_name AS label", "city, country_name"},
}

// ClicksByDay returns the per-day click totals in ascending day order. Days without
// clicks are absent.
func (s *PostgresStorage) ClicksByDay(ctx context.Context, r domain.DailyRange) ([]domain.DayClicks, error) {
	var rows []domain.DayClicks
	err := s.dailyQuery(ctx, r).
		Select("day, SUM(clicks)::bigint AS clicks").
		Group("day").
		Order("day ASC").
		Scan(&rows).Error
	if err != nil {
		s.log.Error("failed to query clicks by day", zap.Error(err))
		return nil, fmt.Errorf("failed to query clicks by day: %w", err)
	}
	for i := range rows {
		rows[i].Day = domain.UTCDay(rows[i].Day)
	}
	return rows, nil
}

// SumDailyClicks returns the total clicks in the range.
func (s *PostgresStorage) SumDailyClicks(ctx context.Context, r domain.DailyRange) (int64, error) {
	var total int64
	err := s.dailyQuery(ctx, r).
		Select("COALESCE(SUM(clicks), 0)::bigint").
		Scan(&total).Error
	if err != nil {
		s.log.Error("failed to sum daily clicks", zap.Error(err))
		return 0, fmt.Errorf("failed to sum daily clicks: %w", err)
	}
	return total, nil
}

// Breakdown groups click events in the range by the given dimension, most clicked first.
func (s *PostgresStorage) Breakdown(ctx context.Context, dim domain.Dimension, r domain.EventRange) ([]domain.BreakdownRow, error) {
	projection, ok := breakdownProjections[dim]
	if !ok {
		return nil, fmt.Errorf("unknown breakdown dimension %q", dim)
	}

	q := s.db.WithContext(ctx).Model(&domain.ClickEvent{}).
		Select(projection.columns+", COUNT(*) AS clicks").
		Where("created_at >= ?", r.Since)
	if r.LinkID != nil {
		q = q.Where("link_id = ?", *r.LinkID)
	}

	var rows []domain.BreakdownRow
	err := q.Group(projection.groupBy).
		Order("clicks DESC, value ASC").
		Scan(&rows).Error
	if err != nil {
		s.log.Error("failed to query breakdown", zap.String("dimension", string(dim)), zap.Error(err))
		return nil, fmt.Errorf("failed to query %s breakdown: %w", dim, err)
	}
	return rows, nil
}

// TopLinks ranks links by their DailyStat clicks on or after from.
func (s *PostgresStorage) TopLinks(ctx context.Context, from time.Time, limit int) ([]domain.TopLink, error) {
	var rows []domain.TopLink
	err := s.db.WithContext(ctx).
		Table("link_daily_stats AS s").
		Select("l.id, l.slug, l.destination_url, l.title, l.is_active, SUM(s.clicks)::bigint AS clicks").
		Joins("JOIN links AS l ON l.id = s.link_id").
		Where("s.day >= ?", from.Format(domain.DayLayout)).
		Group("l.id, l.slug, l.destination_url, l.title, l.is_active").
		Order("clicks DESC, l.slug ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		s.log.Error("failed to query top links", zap.Error(err))
		return nil, fmt.Errorf("failed to query top links: %w", err)
	}
	return rows, nil
}

// TotalClicks sums the lifetime counters of every link.
func (s *PostgresStorage) TotalClicks(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&domain.Link{}).
		Select("COALESCE(SUM(total_clicks), 0)::bigint").
		Scan(&total).Error
	if err != nil {
		s.log.Error("failed to sum total clicks", zap.Error(err))
		return 0, fmt.Errorf("failed to sum total clicks: %w", err)
	}
	return total, nil
}

func (s *PostgresStorage) dailyQuery(ctx context.Context, r domain.DailyRange) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&domain.DailyStat{}).
		Where("day >= ?", r.From.Format(domain.DayLayout))
	if r.Until != nil {
		q = q.Where("day < ?", r.Until.Format(domain.DayLayout))
	}
	if r.LinkID != nil {
		q = q.Where("link_id = ?", *r.LinkID)
	}
	return q
}
