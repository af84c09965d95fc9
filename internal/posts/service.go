// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package posts implements the post lifecycle: validated creation with the
// slug policy, partial updates, and the trash/recover/purge state machine.
// Persistence sits behind Repository; the page cache is notified of every
// change through Invalidator.
package posts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"inkpress/internal/apperr"
	"inkpress/internal/models"
	"inkpress/internal/query"
	"inkpress/internal/slug"
	"inkpress/internal/store"
)

const (
	MinTitleLen = 3
	MaxTitleLen = 200

	// MaxSlugLen bounds a client-supplied slug. The stored column holds
	// 300 characters, which leaves room for the timestamp suffix.
	MaxSlugLen = 280
)

// Repository is the persistence the service needs. *store.PostStore
// satisfies it. Lookups return (nil, nil) when nothing matches and writes
// return an error wrapping store.ErrDuplicate on a slug collision.
type Repository interface {
	List(ctx context.Context, f query.PostFilter, page query.Page) ([]models.Post, int, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	FindPublishedBySlug(ctx context.Context, slug string) (*models.Post, error)
	Create(ctx context.Context, p *models.Post) (*models.Post, error)
	Update(ctx context.Context, p *models.Post) (*models.Post, error)
	SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, at *time.Time) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// Invalidator drops cached public pages. *cache.PageCache satisfies it.
type Invalidator interface {
	InvalidatePage(ctx context.Context, slug string)
	InvalidateHomepage(ctx context.Context)
}

// Service coordinates post operations.
type Service struct {
	repo  Repository
	cache Invalidator
	now   func() time.Time
}

// NewService creates a Service. cache may be nil.
func NewService(repo Repository, cache Invalidator) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// Input carries the client-supplied fields of a create request.
type Input struct {
	Title         string
	Content       string
	Slug          string
	Excerpt       string
	FeaturedImage string
	Tags          []string
	CategoryIDs   []uuid.UUID
	Status        models.PostStatus
}

// Patch carries an update. Nil fields are left unchanged.
type Patch struct {
	Title         *string
	Content       *string
	Slug          *string
	Excerpt       *string
	FeaturedImage *string
	Tags          *[]string
	CategoryIDs   *[]uuid.UUID
	Status        *models.PostStatus
}

// ListResult is one page of posts plus pagination metadata.
type ListResult struct {
	Posts      []models.Post `json:"posts"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	Total      int           `json:"total"`
	TotalPages int           `json:"totalPages"`
}

const slugConflictMsg = "A post with this slug already exists. Please use a different slug."

// List returns the page of posts selected by q.
func (s *Service) List(ctx context.Context, q query.PostListQuery) (*ListResult, error) {
	items, total, err := s.repo.List(ctx, q.Filter, q.Page)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch posts", err)
	}
	if items == nil {
		items = []models.Post{}
	}
	return &ListResult{
		Posts:      items,
		Page:       q.Page.Number,
		Limit:      q.Page.Limit,
		Total:      total,
		TotalPages: q.Page.TotalPages(total),
	}, nil
}

// Get returns a post in any state. Malformed ids are reported as not found.
func (s *Service) Get(ctx context.Context, rawID string) (*models.Post, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, apperr.NotFound("Post not found")
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch post", err)
	}
	if p == nil {
		return nil, apperr.NotFound("Post not found")
	}
	return p, nil
}

// GetPublished returns a published post that is not in the trash.
func (s *Service) GetPublished(ctx context.Context, postSlug string) (*models.Post, error) {
	p, err := s.repo.FindPublishedBySlug(ctx, postSlug)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch post", err)
	}
	if p == nil {
		return nil, apperr.NotFound("Post not found")
	}
	return p, nil
}

// Create validates in, applies the slug policy and stores a new post
// authored by authorID.
func (s *Service) Create(ctx context.Context, authorID uuid.UUID, in Input) (*models.Post, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		return nil, apperr.Validation("Missing required fields", "title and content are required")
	}
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = models.PostStatusDraft
	}
	if !status.Valid() {
		return nil, apperr.Validation("Invalid status", "status must be draft or published")
	}

	base := slug.Generate(in.Slug)
	if err := validateSlugLen(base); err != nil {
		return nil, err
	}
	if base == "" {
		base = slug.Generate(in.Title)
	}

	p := &models.Post{
		Title:         strings.TrimSpace(in.Title),
		Content:       in.Content,
		Slug:          slug.WithTimestamp(base, s.now()),
		Excerpt:       in.Excerpt,
		FeaturedImage: in.FeaturedImage,
		Tags:          normalizeTags(in.Tags),
		AuthorID:      authorID,
		CategoryIDs:   in.CategoryIDs,
		Status:        status,
	}
	p.ApplyDefaults()

	created, err := s.repo.Create(ctx, p)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, apperr.Conflict(slugConflictMsg)
	}
	if err != nil {
		return nil, apperr.Internal("Failed to create post", err)
	}

	slog.Info("post created", "id", created.ID, "slug", created.Slug, "author_id", authorID)
	s.invalidate(ctx, created.Slug)
	return created, nil
}

// Update applies patch to the post identified by rawID.
func (s *Service) Update(ctx context.Context, rawID string, patch Patch) (*models.Post, error) {
	existing, err := s.Get(ctx, rawID)
	if err != nil {
		return nil, err
	}
	oldSlug := existing.Slug

	if patch.Title != nil {
		if err := validateTitle(*patch.Title); err != nil {
			return nil, err
		}
		existing.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		if strings.TrimSpace(*patch.Content) == "" {
			return nil, apperr.Validation("Missing required fields", "content must not be empty")
		}
		existing.Content = *patch.Content
	}
	if patch.Slug != nil {
		next := slug.Generate(*patch.Slug)
		if next == "" {
			return nil, apperr.Validation("Invalid slug", "slug must contain letters or digits")
		}
		if err := validateSlugLen(next); err != nil {
			return nil, err
		}
		existing.Slug = next
	}
	if patch.Excerpt != nil {
		existing.Excerpt = *patch.Excerpt
	}
	if patch.FeaturedImage != nil {
		existing.FeaturedImage = *patch.FeaturedImage
	}
	if patch.Tags != nil {
		existing.Tags = normalizeTags(*patch.Tags)
	}
	if patch.CategoryIDs != nil {
		existing.CategoryIDs = *patch.CategoryIDs
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, apperr.Validation("Invalid status", "status must be draft or published")
		}
		existing.Status = *patch.Status
	}

	updated, err := s.repo.Update(ctx, existing)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, apperr.Conflict(slugConflictMsg)
	}
	if err != nil {
		return nil, apperr.Internal("Failed to update post", err)
	}
	if updated == nil {
		return nil, apperr.NotFound("Post not found")
	}

	s.invalidate(ctx, oldSlug)
	if updated.Slug != oldSlug {
		s.invalidate(ctx, updated.Slug)
	}
	return updated, nil
}

// Trash moves a post to the trash and stamps deletedAt.
func (s *Service) Trash(ctx context.Context, rawID string) error {
	now := s.now().UTC()
	return s.setDeleted(ctx, rawID, true, &now)
}

// Recover takes a post out of the trash and clears deletedAt.
func (s *Service) Recover(ctx context.Context, rawID string) error {
	return s.setDeleted(ctx, rawID, false, nil)
}

func (s *Service) setDeleted(ctx context.Context, rawID string, deleted bool, at *time.Time) error {
	p, err := s.Get(ctx, rawID)
	if err != nil {
		return err
	}
	ok, err := s.repo.SetDeleted(ctx, p.ID, deleted, at)
	if err != nil {
		return apperr.Internal("Failed to update post", err)
	}
	if !ok {
		return apperr.NotFound("Post not found")
	}

	slog.Info("post trash state changed", "id", p.ID, "deleted", deleted)
	s.invalidate(ctx, p.Slug)
	return nil
}

// Purge permanently deletes a post whether or not it is in the trash.
func (s *Service) Purge(ctx context.Context, rawID string) error {
	p, err := s.Get(ctx, rawID)
	if err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, p.ID)
	if err != nil {
		return apperr.Internal("Failed to delete post", err)
	}
	if !ok {
		return apperr.NotFound("Post not found")
	}

	slog.Info("post purged", "id", p.ID, "slug", p.Slug)
	s.invalidate(ctx, p.Slug)
	return nil
}

func (s *Service) invalidate(ctx context.Context, postSlug string) {
	if s.cache == nil {
		return
	}
	s.cache.InvalidatePage(ctx, postSlug)
	s.cache.InvalidateHomepage(ctx)
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(title))
	if n < MinTitleLen || n > MaxTitleLen {
		return apperr.Validation("Validation failed", "title must be between 3 and 200 characters")
	}
	return nil
}

func validateSlugLen(s string) error {
	if utf8.RuneCountInString(s) > MaxSlugLen {
		return apperr.Validation("Invalid slug", "slug must be at most 280 characters")
	}
	return nil
}

// normalizeTags trims tags and drops empty and repeated entries, keeping
// first-seen order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
