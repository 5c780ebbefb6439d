package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ttemp-link/internal/domain"
	"ttemp-link/internal/repository"
	"ttemp-link/internal/repository/memory"
)

type stubTitles struct {
	title *string
	calls int
}

func (s *stubTitles) Fetch(context.Context, string) *string {
	s.calls++
	return s.title
}

type recordingCache struct {
	mu    sync.Mutex
	slugs []string
}

func (c *recordingCache) Invalidate(_ context.Context, slugs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slugs = append(c.slugs, slugs...)
}

func newLinkService(t *testing.T) (*LinkService, *memory.MemStorage, *stubTitles, *recordingCache) {
	t.Helper()
	store := memory.New()
	titles := &stubTitles{title: strPtr("Fetched title")}
	cache := &recordingCache{}
	return NewLinkService(store, titles, cache, zap.NewNop()), store, titles, cache
}

func requireFieldError(t *testing.T, err error, field, message string) {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	assert.Equal(t, message, verr.Fields[field])
}

func TestNormalizeDestinationURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"https://Example.com", "https://example.com/", true},
		{"  http://example.com/path?q=1 ", "http://example.com/path?q=1", true},
		{"HTTPS://example.com/a", "https://example.com/a", true},
		{"ftp://example.com", "", false},
		{"example.com", "", false},
		{"javascript:alert(1)", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizeDestinationURL(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLinkService_Create(t *testing.T) {
	ctx := context.Background()
	svc, store, titles, cache := newLinkService(t)
	owner := uuid.New()

	link, err := svc.Create(ctx, owner, CreateLinkInput{
		Destination: "https://example.com/docs",
		Slug:        "docs",
		Tags:        []string{"Go", "go", " api "},
	})
	require.NoError(t, err)
	assert.Equal(t, "docs", link.Slug)
	assert.True(t, link.IsActive)
	assert.Equal(t, owner, link.CreatedBy)
	require.NotNil(t, link.Title)
	assert.Equal(t, "Fetched title", *link.Title)
	assert.Equal(t, []string{"go", "api"}, []string(link.Tags))
	assert.Equal(t, 1, titles.calls)
	assert.Contains(t, cache.slugs, "docs")

	stored, err := store.GetLinkBySlug(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, link.ID, stored.ID)

	explicit, err := svc.Create(ctx, owner, CreateLinkInput{Destination: "https://example.com/other", Title: "  Mine  "})
	require.NoError(t, err)
	require.NotNil(t, explicit.Title)
	assert.Equal(t, "Mine", *explicit.Title)
	assert.Equal(t, 1, titles.calls)
	assert.Len(t, explicit.Slug, GeneratedSlugLength)
}

func TestLinkService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newLinkService(t)
	owner := uuid.New()

	_, err := svc.Create(ctx, owner, CreateLinkInput{Destination: "not a url"})
	requireFieldError(t, err, "destination", MsgDestinationFormat)

	_, err = svc.Create(ctx, owner, CreateLinkInput{Destination: "https://example.com", Slug: "home"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, owner, CreateLinkInput{Destination: "https://example.com/"})
	requireFieldError(t, err, "destination", MsgDestinationExists)

	// Another owner may shorten the same destination but not reuse the slug.
	_, err = svc.Create(ctx, uuid.New(), CreateLinkInput{Destination: "https://example.com", Slug: "home"})
	requireFieldError(t, err, "slug", MsgSlugTaken)

	_, err = svc.Create(ctx, owner, CreateLinkInput{Destination: "https://example.com/x", Slug: "no spaces"})
	requireFieldError(t, err, "slug", MsgSlugInvalid)

	many := make([]string, MaxTagCount+1)
	for i := range many {
		many[i] = uuid.NewString()[:8]
	}
	_, err = svc.Create(ctx, owner, CreateLinkInput{Destination: "https://example.com/y", Tags: many})
	requireFieldError(t, err, "tags", "You can add up to 20 tags.")
}

func TestLinkService_Update(t *testing.T) {
	ctx := context.Background()
	svc, _, _, cache := newLinkService(t)
	owner := uuid.New()

	first, err := svc.Create(ctx, owner, CreateLinkInput{Destination: "https://a.example", Slug: "first"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, owner, CreateLinkInput{Destination: "https://b.example", Slug: "second"})
	require.NoError(t, err)

	inactive := false
	updated, err := svc.Update(ctx, owner, first.ID, UpdateLinkInput{
		Slug:     strPtr("renamed"),
		Title:    strPtr(""),
		IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Slug)
	assert.Nil(t, updated.Title)
	assert.False(t, updated.IsActive)
	assert.Contains(t, cache.slugs, "first")
	assert.Contains(t, cache.slugs, "renamed")

	_, err = svc.Update(ctx, owner, first.ID, UpdateLinkInput{Slug: strPtr("second")})
	requireFieldError(t, err, "slug", MsgSlugTaken)

	_, err = svc.Update(ctx, owner, first.ID, UpdateLinkInput{Slug: strPtr("  ")})
	requireFieldError(t, err, "slug", MsgSlugInvalid)

	_, err = svc.Update(ctx, owner, first.ID, UpdateLinkInput{Destination: strPtr("https://b.example")})
	requireFieldError(t, err, "destination", MsgDestinationExists)

	// Keeping its own destination is not a duplicate.
	_, err = svc.Update(ctx, owner, second.ID, UpdateLinkInput{Destination: strPtr("https://b.example/")})
	require.NoError(t, err)
}

func TestLinkService_Ownership(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := newLinkService(t)
	owner := uuid.New()
	intruder := uuid.New()

	link, err := svc.Create(ctx, owner, CreateLinkInput{Destination: "https://example.com", Slug: "mine"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, intruder, link.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Update(ctx, intruder, link.ID, UpdateLinkInput{Slug: strPtr("stolen")})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, intruder, link.ID), ErrForbidden)

	_, err = svc.Get(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	require.NoError(t, svc.Delete(ctx, owner, link.ID))
	_, err = store.GetLinkByID(ctx, link.ID)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	links, err := svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestLinkService_Tags(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := newLinkService(t)
	owner := uuid.New()

	link, err := svc.Create(ctx, owner, CreateLinkInput{Destination: "https://example.com", Slug: "tagged"})
	require.NoError(t, err)

	res, err := svc.AddTag(ctx, owner, link.ID, "  News ")
	require.NoError(t, err)
	assert.Equal(t, &TagResult{OK: true, Tags: []string{"news"}}, res)

	res, err = svc.AddTag(ctx, owner, link.ID, "NEWS")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, MsgTagExists, res.Message)

	res, err = svc.AddTag(ctx, owner, link.ID, "   ")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, MsgTagEmpty, res.Message)

	res, err = svc.RemoveTag(ctx, owner, link.ID, "missing")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, MsgTagNotFound, res.Message)

	res, err = svc.RemoveTag(ctx, owner, link.ID, "news")
	require.NoError(t, err)
	assert.Equal(t, &TagResult{OK: true, Tags: []string{}}, res)

	for i := 0; i < MaxTagCount; i++ {
		_, err := svc.AddTag(ctx, owner, link.ID, uuid.NewString()[:6])
		require.NoError(t, err)
	}
	res, err = svc.AddTag(ctx, owner, link.ID, "overflow")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Len(t, res.Tags, MaxTagCount)

	stored, err := store.GetLinkByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Tags, MaxTagCount)

	_, err = svc.AddTag(ctx, uuid.New(), link.ID, "x")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestLinkService_NilDependencies(t *testing.T) {
	svc := NewLinkService(memory.New(), nil, nil, zap.NewNop())
	link, err := svc.Create(context.Background(), uuid.New(), CreateLinkInput{Destination: "https://example.com"})
	require.NoError(t, err)
	assert.Nil(t, link.Title)
	assert.IsType(t, &domain.Link{}, link)
}
