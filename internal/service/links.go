package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"ttemp-link/internal/domain"
	"ttemp-link/internal/repository"
)

// TitleSource fetches a page title for a destination. Nil means no title.
type TitleSource interface {
	Fetch(ctx context.Context, rawURL string) *string
}

// CacheInvalidator drops cached slug lookups.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, slugs ...string)
}

// CreateLinkInput is an admin request to shorten a URL.
type CreateLinkInput struct {
	Destination string
	Slug        string
	Title       string
	Tags        []string
}

// UpdateLinkInput changes a link. Nil fields keep their stored value; an empty title
// clears it.
type UpdateLinkInput struct {
	Destination *string
	Slug        *string
	Title       *string
	IsActive    *bool
}

// TagResult reports a tag mutation. OK is false when the request was rejected; Message
// explains rejections and no-op changes.
type TagResult struct {
	OK      bool     `json:"ok"`
	Tags    []string `json:"tags"`
	Message string   `json:"message,omitempty"`
}

// LinkService owns link lifecycle rules: destination normalization, slug allocation,
// title lookup, tags and ownership.
type LinkService struct {
	storage repository.LinkStorage
	slugs   *SlugAllocator
	titles  TitleSource
	cache   CacheInvalidator
	log     *zap.Logger
}

// NewLinkService creates the service. titles and cache may be nil.
func NewLinkService(storage repository.LinkStorage, titles TitleSource, cache CacheInvalidator, log *zap.Logger) *LinkService {
	return &LinkService{
		storage: storage,
		slugs:   NewSlugAllocator(storage),
		titles:  titles,
		cache:   cache,
		log:     log.With(zap.String("component", "service.links")),
	}
}

// NormalizeDestinationURL returns the canonical form of an absolute http(s) URL.
func NormalizeDestinationURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" && u.RawQuery == "" && u.Fragment == "" {
		u.Path = "/"
	}
	return u.String(), true
}

// Create shortens a destination for owner. New links always start active.
func (s *LinkService) Create(ctx context.Context, owner uuid.UUID, in CreateLinkInput) (*domain.Link, error) {
	destination, ok := NormalizeDestinationURL(in.Destination)
	if !ok {
		return nil, fieldError("destination", MsgDestinationFormat)
	}

	existing, err := s.storage.FindLinkByDestination(ctx, owner, destination)
	if err != nil && !errors.Is(err, repository.ErrLinkNotFound) {
		return nil, fmt.Errorf("failed to check destination: %w", err)
	}
	if existing != nil {
		return nil, fieldError("destination", MsgDestinationExists)
	}

	tags := NormalizeTags(in.Tags)
	if msg := ValidateTagLimits(tags); msg != "" {
		return nil, fieldError("tags", msg)
	}

	resolution, err := s.slugs.ResolveCreateSlug(ctx, in.Slug)
	if err != nil {
		return nil, err
	}
	if !resolution.OK {
		return nil, fieldError("slug", resolution.Message)
	}

	title := strings.TrimSpace(in.Title)
	var titlePtr *string
	if title != "" {
		titlePtr = &title
	} else if s.titles != nil {
		titlePtr = s.titles.Fetch(ctx, destination)
	}

	link := &domain.Link{
		Slug:           resolution.Slug,
		DestinationURL: destination,
		Title:          titlePtr,
		Tags:           pq.StringArray(tags),
		IsActive:       true,
		CreatedBy:      owner,
	}
	if err := s.storage.CreateLink(ctx, link); err != nil {
		if errors.Is(err, repository.ErrSlugExists) {
			return nil, fieldError("slug", MsgSlugTaken)
		}
		return nil, fmt.Errorf("failed to create link: %w", err)
	}

	s.invalidate(ctx, link.Slug)
	s.log.Info("link created",
		zap.String("slug", link.Slug),
		zap.String("link_id", link.ID.String()),
		zap.String("owner", owner.String()),
	)
	return link, nil
}

// Get returns a link owned by owner.
func (s *LinkService) Get(ctx context.Context, owner, id uuid.UUID) (*domain.Link, error) {
	link, err := s.storage.GetLinkByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if link.CreatedBy != owner {
		return nil, ErrForbidden
	}
	return link, nil
}

// List returns owner's links, newest first.
func (s *LinkService) List(ctx context.Context, owner uuid.UUID) ([]*domain.Link, error) {
	links, err := s.storage.ListLinks(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return links, nil
}

// Update applies the non-nil fields of in with the same rules as Create.
func (s *LinkService) Update(ctx context.Context, owner, id uuid.UUID, in UpdateLinkInput) (*domain.Link, error) {
	link, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	oldSlug := link.Slug

	if in.Destination != nil {
		destination, ok := NormalizeDestinationURL(*in.Destination)
		if !ok {
			return nil, fieldError("destination", MsgDestinationFormat)
		}
		existing, err := s.storage.FindLinkByDestination(ctx, owner, destination)
		if err != nil && !errors.Is(err, repository.ErrLinkNotFound) {
			return nil, fmt.Errorf("failed to check destination: %w", err)
		}
		if existing != nil && existing.ID != link.ID {
			return nil, fieldError("destination", MsgDestinationExists)
		}
		link.DestinationURL = destination
	}

	if in.Slug != nil {
		slug := NormalizeSlug(*in.Slug)
		if !ValidSlug(slug) {
			return nil, fieldError("slug", MsgSlugInvalid)
		}
		if slug != link.Slug {
			exists, err := s.storage.SlugExists(ctx, slug)
			if err != nil {
				return nil, fmt.Errorf("failed to check slug existence: %w", err)
			}
			if exists {
				return nil, fieldError("slug", MsgSlugTaken)
			}
			link.Slug = slug
		}
	}

	if in.Title != nil {
		if title := strings.TrimSpace(*in.Title); title != "" {
			link.Title = &title
		} else {
			link.Title = nil
		}
	}

	if in.IsActive != nil {
		link.IsActive = *in.IsActive
	}

	if err := s.storage.UpdateLink(ctx, link); err != nil {
		if errors.Is(err, repository.ErrSlugExists) {
			return nil, fieldError("slug", MsgSlugTaken)
		}
		return nil, fmt.Errorf("failed to update link: %w", err)
	}

	s.invalidate(ctx, oldSlug, link.Slug)
	s.log.Info("link updated", zap.String("slug", link.Slug), zap.String("link_id", link.ID.String()))
	return link, nil
}

// Delete removes a link with its events and daily counters.
func (s *LinkService) Delete(ctx context.Context, owner, id uuid.UUID) error {
	link, err := s.Get(ctx, owner, id)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteLink(ctx, id); err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	s.invalidate(ctx, link.Slug)
	s.log.Info("link deleted", zap.String("slug", link.Slug), zap.String("link_id", id.String()))
	return nil
}

// AddTag adds one normalized tag.
func (s *LinkService) AddTag(ctx context.Context, owner, id uuid.UUID, rawTag string) (*TagResult, error) {
	return s.mutateTags(ctx, owner, id, rawTag, func(current []string, tag string) ([]string, string) {
		return NormalizeTags(append(append([]string{}, current...), tag)), MsgTagExists
	})
}

// RemoveTag removes one normalized tag.
func (s *LinkService) RemoveTag(ctx context.Context, owner, id uuid.UUID, rawTag string) (*TagResult, error) {
	return s.mutateTags(ctx, owner, id, rawTag, func(current []string, tag string) ([]string, string) {
		next := make([]string, 0, len(current))
		for _, t := range current {
			if t != tag {
				next = append(next, t)
			}
		}
		return next, MsgTagNotFound
	})
}

func (s *LinkService) mutateTags(
	ctx context.Context,
	owner, id uuid.UUID,
	rawTag string,
	apply func(current []string, tag string) (next []string, unchanged string),
) (*TagResult, error) {
	link, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	current := NormalizeTags(link.Tags)
	tag := NormalizeTag(rawTag)
	if tag == "" {
		return &TagResult{Tags: current, Message: MsgTagEmpty}, nil
	}

	next, unchangedMsg := apply(current, tag)
	if msg := ValidateTagLimits(next); msg != "" {
		return &TagResult{Tags: current, Message: msg}, nil
	}
	if equalTags(current, next) {
		return &TagResult{OK: true, Tags: current, Message: unchangedMsg}, nil
	}

	link.Tags = pq.StringArray(next)
	if err := s.storage.UpdateLink(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to update tags: %w", err)
	}
	return &TagResult{OK: true, Tags: next}, nil
}

func (s *LinkService) invalidate(ctx context.Context, slugs ...string) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, slugs...)
}
