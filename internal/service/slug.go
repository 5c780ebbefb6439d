package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"ttemp-link/pkg/random"
)

const (
	GeneratedSlugLength = 7
	MaxSlugLength       = 64
	maxSlugAttempts     = 5
)

// Slug messages shown to admins.
const (
	MsgSlugInvalid       = "Slug can only use letters, numbers, underscores, or dashes."
	MsgSlugTaken         = "That slug is already taken."
	MsgSlugUnavailable   = "Unable to generate a unique slug. Try again."
	MsgDestinationFormat = "Destination URL must be a valid http(s) address."
	MsgDestinationExists = "You already have a link for that destination URL."
)

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// SlugChecker reports whether a slug is already in use.
type SlugChecker interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// SlugResolution is the outcome of choosing a slug for a new link. When OK is false,
// Message explains why.
type SlugResolution struct {
	OK      bool
	Slug    string
	Message string
}

// SlugAllocator validates custom slugs and generates random ones.
type SlugAllocator struct {
	store    SlugChecker
	generate func() (string, error)
}

func NewSlugAllocator(store SlugChecker) *SlugAllocator {
	return &SlugAllocator{
		store: store,
		generate: func() (string, error) {
			return random.NewRandomString(GeneratedSlugLength)
		},
	}
}

// NormalizeSlug trims surrounding whitespace.
func NormalizeSlug(raw string) string {
	return strings.TrimSpace(raw)
}

// ValidSlug reports whether slug uses only letters, digits, '_' and '-' and is 1-64 long.
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// ResolveCreateSlug picks the slug for a new link. A non-empty raw slug is validated and
// checked for uniqueness and is never rewritten. An empty one gets a generated slug.
// The error is reserved for storage failures.
func (a *SlugAllocator) ResolveCreateSlug(ctx context.Context, raw string) (SlugResolution, error) {
	slug := NormalizeSlug(raw)

	if slug != "" {
		if !ValidSlug(slug) {
			return SlugResolution{Message: MsgSlugInvalid}, nil
		}
		exists, err := a.store.SlugExists(ctx, slug)
		if err != nil {
			return SlugResolution{}, fmt.Errorf("failed to check custom slug existence: %w", err)
		}
		if exists {
			return SlugResolution{Message: MsgSlugTaken}, nil
		}
		return SlugResolution{OK: true, Slug: slug}, nil
	}

	for i := 0; i < maxSlugAttempts; i++ {
		candidate, err := a.generate()
		if err != nil {
			return SlugResolution{}, fmt.Errorf("failed to generate slug: %w", err)
		}
		exists, err := a.store.SlugExists(ctx, candidate)
		if err != nil {
			return SlugResolution{}, fmt.Errorf("failed to check slug existence: %w", err)
		}
		if !exists {
			return SlugResolution{OK: true, Slug: candidate}, nil
		}
	}

	return SlugResolution{Message: MsgSlugUnavailable}, nil
}
