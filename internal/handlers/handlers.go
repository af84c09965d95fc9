// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the HTTP handlers for Inkpress. Handlers are
// grouped by surface (JSON API, auth, dashboard, public site) and receive
// their dependencies through the handler structs. Stores are consumed
// through the small interfaces below so tests can substitute fakes.
package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"inkpress/internal/apperr"
	"inkpress/internal/models"
)

// UserStore is the user persistence the handlers need.
// *store.UserStore satisfies it.
type UserStore interface {
	Count(ctx context.Context) (int, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, name, email, password string, role models.Role) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, password string) error
	SetTOTPSecret(ctx context.Context, id uuid.UUID, secret string) error
	EnableTOTP(ctx context.Context, id uuid.UUID) error
	ResetTOTP(ctx context.Context, id uuid.UUID) error
}

// CategoryStore is the category persistence the handlers need.
// *store.CategoryStore satisfies it.
type CategoryStore interface {
	List(ctx context.Context) ([]models.Category, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	FindBySlug(ctx context.Context, slug string) (*models.Category, error)
	Create(ctx context.Context, c *models.Category) (*models.Category, error)
	Update(ctx context.Context, c *models.Category) (*models.Category, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// PostInsights provides the aggregate views shown on the dashboard.
// *store.PostStore satisfies it.
type PostInsights interface {
	TagCounts(ctx context.Context) ([]models.TagCount, error)
	Stats(ctx context.Context) (models.PostStats, error)
}

// PageCache stores rendered public pages. *cache.PageCache satisfies it.
type PageCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, html []byte)
	InvalidatePage(ctx context.Context, slug string)
	InvalidateHomepage(ctx context.Context)
	InvalidateAll(ctx context.Context)
}

// Health answers liveness probes.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// APINotFound answers unknown API paths with the JSON error shape.
func APINotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, apperr.NotFound("Not found"))
}
