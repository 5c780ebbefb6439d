package analytics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ttemp-link/internal/domain"
	"ttemp-link/internal/repository"
)

// TopLinksLimit bounds the dashboard ranking.
const TopLinksLimit = 10

// Range allow-lists. Anything else falls back to the default of its surface.
var (
	AnalyticsRanges = []int{7, 15, 30, 90}
	DashboardRanges = []int{7, 15, 30}
)

const (
	DefaultAnalyticsRange = 30
	DefaultDashboardRange = 7
)

// ParseRange validates a range query value against an allow-list.
func ParseRange(raw string, allowed []int, fallback int) int {
	days, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	for _, a := range allowed {
		if days == a {
			return days
		}
	}
	return fallback
}

// RangeStart is midnight UTC of the first day of an N-day window ending today.
func RangeStart(now time.Time, days int) time.Time {
	return domain.UTCDay(now).AddDate(0, 0, -(days - 1))
}

// SeriesPoint is one day of the click series.
type SeriesPoint struct {
	Day    string `json:"day"`
	Clicks int64  `json:"clicks"`
}

// Report is the full analytics view for a range and optional link.
type Report struct {
	Range            int                   `json:"range"`
	LinkID           *uuid.UUID            `json:"link_id"`
	RangeStart       time.Time             `json:"range_start"`
	RangeEnd         time.Time             `json:"range_end"`
	TrackCountry     bool                  `json:"track_country"`
	ClicksByDay      []SeriesPoint         `json:"clicks_by_day"`
	RangeTotalClicks int64                 `json:"range_total_clicks"`
	Devices          []domain.BreakdownRow `json:"devices"`
	Browsers         []domain.BreakdownRow `json:"browsers"`
	Referrers        []domain.BreakdownRow `json:"referrers"`
	Countries        []domain.BreakdownRow `json:"countries"`
	Cities           []domain.BreakdownRow `json:"cities"`
	TopDay           *SeriesPoint          `json:"top_day"`
	TopCountries     []domain.BreakdownRow `json:"top_countries"`
}

// Dashboard is the overview of the most clicked links.
type Dashboard struct {
	Range       int              `json:"range"`
	TopLinks    []domain.TopLink `json:"top_links"`
	TotalClicks int64            `json:"total_clicks"`
}

// LinkStats compares a link's clicks over the last range with the range before it.
type LinkStats struct {
	Range               int           `json:"range"`
	LastRangeClicks     int64         `json:"last_range_clicks"`
	PreviousRangeClicks int64         `json:"previous_range_clicks"`
	ClicksByDay         []SeriesPoint `json:"clicks_by_day"`
}

// AggregatorStore is the read surface the aggregator needs.
type AggregatorStore interface {
	repository.AnalyticsStorage
	GetLinkByID(ctx context.Context, id uuid.UUID) (*domain.Link, error)
}

// Aggregator answers the read-only analytics queries.
type Aggregator struct {
	storage  AggregatorStore
	settings SettingsSource
	now      func() time.Time
	log      *zap.Logger
}

func NewAggregator(storage AggregatorStore, settings SettingsSource, log *zap.Logger) *Aggregator {
	return &Aggregator{
		storage:  storage,
		settings: settings,
		now:      time.Now,
		log:      log.With(zap.String("component", "analytics.aggregator")),
	}
}

// Analytics builds the report. An unknown linkID is ignored rather than rejected.
func (a *Aggregator) Analytics(ctx context.Context, rangeDays int, linkID *uuid.UUID) (*Report, error) {
	now := a.now().UTC()
	start := RangeStart(now, rangeDays)

	linkID, err := a.resolveLinkFilter(ctx, linkID)
	if err != nil {
		return nil, err
	}

	settings, err := a.settings.GetAnalyticsSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load analytics settings: %w", err)
	}

	report := &Report{
		Range:        rangeDays,
		LinkID:       linkID,
		RangeStart:   start,
		RangeEnd:     now,
		TrackCountry: settings.TrackCountry,
	}
	daily := domain.DailyRange{From: start, LinkID: linkID}
	events := domain.EventRange{Since: start, LinkID: linkID}

	breakdowns := map[domain.Dimension]*[]domain.BreakdownRow{
		domain.DimensionDevice:   &report.Devices,
		domain.DimensionBrowser:  &report.Browsers,
		domain.DimensionReferrer: &report.Referrers,
		domain.DimensionCountry:  &report.Countries,
		domain.DimensionCity:     &report.Cities,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := a.storage.ClicksByDay(gctx, daily)
		if err != nil {
			return err
		}
		report.ClicksByDay = toSeries(rows)
		return nil
	})
	g.Go(func() error {
		total, err := a.storage.SumDailyClicks(gctx, daily)
		report.RangeTotalClicks = total
		return err
	})
	for _, dim := range domain.Dimensions {
		dim, target := dim, breakdowns[dim]
		if dim.Geographic() && !settings.TrackCountry {
			*target = []domain.BreakdownRow{}
			continue
		}
		g.Go(func() error {
			rows, err := a.storage.Breakdown(gctx, dim, events)
			if err != nil {
				return err
			}
			*target = nonNilRows(rows)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.log.Error("failed to build analytics report", zap.Int("range", rangeDays), zap.Error(err))
		return nil, fmt.Errorf("failed to build analytics report: %w", err)
	}

	report.TopDay = topDay(report.ClicksByDay)
	report.TopCountries = topCountries(report.Countries, 2)
	return report, nil
}

// Dashboard ranks links over the range and sums the lifetime clicks of every link.
func (a *Aggregator) Dashboard(ctx context.Context, rangeDays int) (*Dashboard, error) {
	start := RangeStart(a.now(), rangeDays)

	topLinks, err := a.storage.TopLinks(ctx, start, TopLinksLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load top links: %w", err)
	}
	total, err := a.storage.TotalClicks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load total clicks: %w", err)
	}

	if topLinks == nil {
		topLinks = []domain.TopLink{}
	}
	return &Dashboard{Range: rangeDays, TopLinks: topLinks, TotalClicks: total}, nil
}

// LinkRangeStats returns the link's clicks in the last range and in the range before.
func (a *Aggregator) LinkRangeStats(ctx context.Context, linkID uuid.UUID, rangeDays int) (*LinkStats, error) {
	now := a.now()
	currentStart := RangeStart(now, rangeDays)
	previousStart := RangeStart(now, rangeDays*2)

	current := domain.DailyRange{From: currentStart, LinkID: &linkID}
	last, err := a.storage.SumDailyClicks(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("failed to sum current range: %w", err)
	}
	previous, err := a.storage.SumDailyClicks(ctx, domain.DailyRange{From: previousStart, Until: &currentStart, LinkID: &linkID})
	if err != nil {
		return nil, fmt.Errorf("failed to sum previous range: %w", err)
	}
	rows, err := a.storage.ClicksByDay(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("failed to load link series: %w", err)
	}

	return &LinkStats{
		Range:               rangeDays,
		LastRangeClicks:     last,
		PreviousRangeClicks: previous,
		ClicksByDay:         toSeries(rows),
	}, nil
}

func (a *Aggregator) resolveLinkFilter(ctx context.Context, linkID *uuid.UUID) (*uuid.UUID, error) {
	if linkID == nil {
		return nil, nil
	}
	link, err := a.storage.GetLinkByID(ctx, *linkID)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve link filter: %w", err)
	}
	return &link.ID, nil
}

func toSeries(rows []domain.DayClicks) []SeriesPoint {
	series := make([]SeriesPoint, 0, len(rows))
	for _, row := range rows {
		series = append(series, SeriesPoint{Day: row.Day.Format(domain.DayLayout), Clicks: row.Clicks})
	}
	return series
}

// topDay returns the earliest day with the most clicks.
func topDay(series []SeriesPoint) *SeriesPoint {
	var best *SeriesPoint
	for i := range series {
		if best == nil || series[i].Clicks > best.Clicks {
			best = &series[i]
		}
	}
	if best == nil || best.Clicks == 0 {
		return nil
	}
	top := *best
	return &top
}

func topCountries(countries []domain.BreakdownRow, n int) []domain.BreakdownRow {
	top := make([]domain.BreakdownRow, 0, n)
	for _, row := range countries {
		if row.Label == nil || *row.Label == "" {
			continue
		}
		top = append(top, row)
		if len(top) == n {
			break
		}
	}
	return top
}

func nonNilRows(rows []domain.BreakdownRow) []domain.BreakdownRow {
	if rows == nil {
		return []domain.BreakdownRow{}
	}
	return rows
}
