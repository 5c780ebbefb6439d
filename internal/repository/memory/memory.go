package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ttemp-link/internal/domain"
	"ttemp-link/internal/repository"
)

type dailyKey struct {
	linkID uuid.UUID
	day    string
}

// MemStorage is an in-process repository.Storage used by tests and local runs.
// Every returned entity is a copy.
type MemStorage struct {
	mu       sync.RWMutex
	links    map[uuid.UUID]*domain.Link
	daily    map[dailyKey]int64
	events   []domain.ClickEvent
	users    map[string]*domain.User
	settings *domain.AnalyticsSettings
	geoDB    *domain.GeoCountryDatabase
}

var _ repository.Storage = (*MemStorage)(nil)

func New() *MemStorage {
	return &MemStorage{
		links: make(map[uuid.UUID]*domain.Link),
		daily: make(map[dailyKey]int64),
		users: make(map[string]*domain.User),
	}
}

func (s *MemStorage) Ping(context.Context) error { return nil }

// --- Link Methods ---

func (s *MemStorage) CreateLink(_ context.Context, link *domain.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slugTaken(link.Slug, uuid.Nil) {
		return repository.ErrSlugExists
	}
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.Tags == nil {
		link.Tags = pq.StringArray{}
	}
	now := time.Now().UTC()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now
	s.links[link.ID] = copyLink(link)
	return nil
}

func (s *MemStorage) UpdateLink(_ context.Context, link *domain.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.links[link.ID]
	if !ok {
		return repository.ErrLinkNotFound
	}
	if s.slugTaken(link.Slug, link.ID) {
		return repository.ErrSlugExists
	}
	stored.Slug = link.Slug
	stored.DestinationURL = link.DestinationURL
	stored.Title = link.Title
	stored.Tags = append(pq.StringArray{}, link.Tags...)
	stored.IsActive = link.IsActive
	stored.UpdatedAt = time.Now().UTC()
	link.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *MemStorage) DeleteLink(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[id]; !ok {
		return repository.ErrLinkNotFound
	}
	delete(s.links, id)
	for key := range s.daily {
		if key.linkID == id {
			delete(s.daily, key)
		}
	}
	kept := s.events[:0]
	for _, e := range s.events {
		if e.LinkID != id {
			kept = append(kept, e)
		}
	}
	s.events = kept
	return nil
}

func (s *MemStorage) GetLinkByID(_ context.Context, id uuid.UUID) (*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.links[id]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	return copyLink(link), nil
}

func (s *MemStorage) GetLinkBySlug(_ context.Context, slug string) (*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, link := range s.links {
		if link.Slug == slug {
			return copyLink(link), nil
		}
	}
	return nil, repository.ErrLinkNotFound
}

func (s *MemStorage) FindLinkByDestination(_ context.Context, owner uuid.UUID, destinationURL string) (*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, link := range s.links {
		if link.CreatedBy == owner && link.DestinationURL == destinationURL {
			return copyLink(link), nil
		}
	}
	return nil, repository.ErrLinkNotFound
}

func (s *MemStorage) SlugExists(_ context.Context, slug string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slugTaken(slug, uuid.Nil), nil
}

func (s *MemStorage) ListLinks(_ context.Context, owner uuid.UUID) ([]*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var links []*domain.Link
	for _, link := range s.links {
		if link.CreatedBy == owner {
			links = append(links, copyLink(link))
		}
	}
	sort.Slice(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

// slugTaken must be called with the lock held.
func (s *MemStorage) slugTaken(slug string, except uuid.UUID) bool {
	for id, link := range s.links {
		if id != except && link.Slug == slug {
			return true
		}
	}
	return false
}

// --- Click Methods ---

func (s *MemStorage) RecordClick(_ context.Context, event *domain.ClickEvent, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[event.LinkID]
	if !ok {
		return repository.ErrLinkNotFound
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	s.events = append(s.events, *event)
	s.daily[dailyKey{linkID: event.LinkID, day: domain.UTCDay(day).Format(domain.DayLayout)}]++
	link.TotalClicks++
	return nil
}

// --- Analytics Methods ---

func (s *MemStorage) ClicksByDay(_ context.Context, r domain.DailyRange) ([]domain.DayClicks, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[string]int64)
	for key, clicks := range s.daily {
		if inDailyRange(key, r) {
			byDay[key.day] += clicks
		}
	}

	rows := make([]domain.DayClicks, 0, len(byDay))
	for day, clicks := range byDay {
		t, err := time.Parse(domain.DayLayout, day)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored day %q: %w", day, err)
		}
		rows = append(rows, domain.DayClicks{Day: t, Clicks: clicks})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Day.Before(rows[j].Day) })
	return rows, nil
}

func (s *MemStorage) SumDailyClicks(_ context.Context, r domain.DailyRange) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for key, clicks := range s.daily {
		if inDailyRange(key, r) {
			total += clicks
		}
	}
	return total, nil
}

func (s *MemStorage) Breakdown(_ context.Context, dim domain.Dimension, r domain.EventRange) ([]domain.BreakdownRow, error) {
	if !dim.Valid() {
		return nil, fmt.Errorf("unknown breakdown dimension %q", dim)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type groupKey struct {
		value, label string
		hasValue     bool
		hasLabel     bool
	}
	counts := make(map[groupKey]int64)
	var order []groupKey
	for i := range s.events {
		e := &s.events[i]
		if e.CreatedAt.Before(r.Since) {
			continue
		}
		if r.LinkID != nil && e.LinkID != *r.LinkID {
			continue
		}
		value, label := dim.Project(e)
		key := groupKey{}
		if value != nil {
			key.value, key.hasValue = *value, true
		}
		if label != nil {
			key.label, key.hasLabel = *label, true
		}
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	rows := make([]domain.BreakdownRow, 0, len(order))
	for _, key := range order {
		row := domain.BreakdownRow{Clicks: counts[key]}
		if key.hasValue {
			v := key.value
			row.Value = &v
		}
		if key.hasLabel {
			l := key.label
			row.Label = &l
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Clicks != rows[j].Clicks {
			return rows[i].Clicks > rows[j].Clicks
		}
		return strings.Compare(deref(rows[i].Value), deref(rows[j].Value)) < 0
	})
	return rows, nil
}

func (s *MemStorage) TopLinks(_ context.Context, from time.Time, limit int) ([]domain.TopLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fromDay := domain.UTCDay(from).Format(domain.DayLayout)
	clicks := make(map[uuid.UUID]int64)
	for key, n := range s.daily {
		if key.day >= fromDay {
			clicks[key.linkID] += n
		}
	}

	rows := make([]domain.TopLink, 0, len(clicks))
	for id, n := range clicks {
		link, ok := s.links[id]
		if !ok {
			continue
		}
		rows = append(rows, domain.TopLink{
			ID:             link.ID,
			Slug:           link.Slug,
			DestinationURL: link.DestinationURL,
			Title:          link.Title,
			IsActive:       link.IsActive,
			Clicks:         n,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Clicks != rows[j].Clicks {
			return rows[i].Clicks > rows[j].Clicks
		}
		return rows[i].Slug < rows[j].Slug
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *MemStorage) TotalClicks(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, link := range s.links {
		total += link.TotalClicks
	}
	return total, nil
}

// --- Settings Methods ---

func (s *MemStorage) GetAnalyticsSettings(context.Context) (*domain.AnalyticsSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		s.settings = &domain.AnalyticsSettings{ID: domain.SingletonID, UpdatedAt: time.Now().UTC()}
	}
	settings := *s.settings
	return &settings, nil
}

func (s *MemStorage) UpsertAnalyticsSettings(_ context.Context, settings *domain.AnalyticsSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings.ID = domain.SingletonID
	settings.UpdatedAt = time.Now().UTC()
	stored := *settings
	s.settings = &stored
	return nil
}

func (s *MemStorage) GetGeoDatabase(context.Context) (*domain.GeoCountryDatabase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.geoDB == nil {
		return nil, repository.ErrGeoDatabaseNotFound
	}
	db := *s.geoDB
	return &db, nil
}

func (s *MemStorage) GetGeoDatabaseVersion(context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.geoDB == nil {
		return time.Time{}, repository.ErrGeoDatabaseNotFound
	}
	return s.geoDB.FetchedAt, nil
}

func (s *MemStorage) SaveGeoDatabase(_ context.Context, db *domain.GeoCountryDatabase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	// Successive saves within one clock tick still need distinct versions.
	if s.geoDB != nil && !now.After(s.geoDB.FetchedAt) {
		now = s.geoDB.FetchedAt.Add(time.Microsecond)
	}
	db.ID = domain.SingletonID
	db.FetchedAt = now
	db.CheckedAt = &now
	db.UpdatedAt = now
	if db.LatestLastModifiedAt == nil {
		db.LatestLastModifiedAt = db.LastModifiedAt
	}
	stored := *db
	s.geoDB = &stored
	return nil
}

func (s *MemStorage) SaveGeoDatabaseCheck(_ context.Context, check domain.GeoDatabaseCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.geoDB == nil {
		return nil
	}
	checkedAt := check.CheckedAt
	s.geoDB.CheckedAt = &checkedAt
	if check.SourceURL != "" {
		s.geoDB.SourceURL = check.SourceURL
	}
	if check.ETag != nil {
		etag := *check.ETag
		s.geoDB.ETag = &etag
	}
	if check.LatestLastModifiedAt != nil {
		latest := *check.LatestLastModifiedAt
		s.geoDB.LatestLastModifiedAt = &latest
	}
	s.geoDB.UpdatedAt = time.Now().UTC()
	return nil
}

// --- User Methods ---

func (s *MemStorage) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.Email]; exists {
		return repository.ErrUserExists
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	stored := *user
	s.users[user.Email] = &stored
	return nil
}

func (s *MemStorage) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	stored := *user
	return &stored, nil
}

func inDailyRange(key dailyKey, r domain.DailyRange) bool {
	if key.day < domain.UTCDay(r.From).Format(domain.DayLayout) {
		return false
	}
	if r.Until != nil && key.day >= domain.UTCDay(*r.Until).Format(domain.DayLayout) {
		return false
	}
	return r.LinkID == nil || key.linkID == *r.LinkID
}

func copyLink(link *domain.Link) *domain.Link {
	c := *link
	c.Tags = append(pq.StringArray{}, link.Tags...)
	return &c
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
