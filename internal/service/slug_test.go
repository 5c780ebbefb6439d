package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ttemp-link/internal/domain"
	"ttemp-link/internal/repository/memory"
)

type failingChecker struct{}

func (failingChecker) SlugExists(context.Context, string) (bool, error) {
	return false, errors.New("db down")
}

func TestValidSlug(t *testing.T) {
	tests := []struct {
		slug string
		want bool
	}{
		{"abc", true},
		{"A-b_9", true},
		{"", false},
		{"has space", false},
		{"slash/slug", false},
		{"ünicode", false},
		{string(make([]byte, 65)), false},
	}
	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidSlug(tt.slug))
		})
	}

	long := ""
	for i := 0; i < MaxSlugLength; i++ {
		long += "a"
	}
	assert.True(t, ValidSlug(long))
	assert.False(t, ValidSlug(long+"a"))
}

func TestResolveCreateSlug_Custom(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateLink(ctx, &domain.Link{Slug: "taken", DestinationURL: "https://a.example", CreatedBy: uuid.New()}))
	allocator := NewSlugAllocator(store)

	res, err := allocator.ResolveCreateSlug(ctx, "  fresh  ")
	require.NoError(t, err)
	assert.Equal(t, SlugResolution{OK: true, Slug: "fresh"}, res)

	res, err = allocator.ResolveCreateSlug(ctx, "taken")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, MsgSlugTaken, res.Message)

	// Uniqueness is case-sensitive.
	res, err = allocator.ResolveCreateSlug(ctx, "Taken")
	require.NoError(t, err)
	assert.True(t, res.OK)

	res, err = allocator.ResolveCreateSlug(ctx, "bad slug!")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, MsgSlugInvalid, res.Message)
}

func TestResolveCreateSlug_Generated(t *testing.T) {
	ctx := context.Background()
	allocator := NewSlugAllocator(memory.New())

	res, err := allocator.ResolveCreateSlug(ctx, "   ")
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Len(t, res.Slug, GeneratedSlugLength)
	assert.True(t, ValidSlug(res.Slug))
}

func TestResolveCreateSlug_ExhaustsAttempts(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateLink(ctx, &domain.Link{Slug: "collide", DestinationURL: "https://a.example", CreatedBy: uuid.New()}))

	allocator := NewSlugAllocator(store)
	calls := 0
	allocator.generate = func() (string, error) {
		calls++
		return "collide", nil
	}

	res, err := allocator.ResolveCreateSlug(ctx, "")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, MsgSlugUnavailable, res.Message)
	assert.Equal(t, maxSlugAttempts, calls)
}

func TestResolveCreateSlug_RetriesUntilFree(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateLink(ctx, &domain.Link{Slug: "first", DestinationURL: "https://a.example", CreatedBy: uuid.New()}))

	allocator := NewSlugAllocator(store)
	candidates := []string{"first", "second"}
	allocator.generate = func() (string, error) {
		next := candidates[0]
		candidates = candidates[1:]
		return next, nil
	}

	res, err := allocator.ResolveCreateSlug(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, SlugResolution{OK: true, Slug: "second"}, res)
}

func TestResolveCreateSlug_StorageError(t *testing.T) {
	_, err := NewSlugAllocator(failingChecker{}).ResolveCreateSlug(context.Background(), "custom")
	assert.Error(t, err)
}
