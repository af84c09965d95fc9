// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"inkpress/internal/apperr"
	"inkpress/internal/models"
	"inkpress/internal/slug"
	"inkpress/internal/store"
)

const categoryConflictMsg = "Category with this slug already exists"

// Categories serves the /api/categories endpoints.
type Categories struct {
	store CategoryStore
	cache PageCache
}

// NewCategories creates the category API handlers. cache may be nil.
func NewCategories(cs CategoryStore, cache PageCache) *Categories {
	return &Categories{store: cs, cache: cache}
}

type categoryRequest struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
}

// List handles GET /api/categories, ordered by name.
func (h *Categories) List(w http.ResponseWriter, r *http.Request) {
	cats, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to fetch categories", err))
		return
	}
	if cats == nil {
		cats = []models.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

// Get handles GET /api/categories/{id}.
func (h *Categories) Get(w http.ResponseWriter, r *http.Request) {
	cat, err := h.find(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// Create handles POST /api/categories. The slug defaults to one derived
// from the name.
func (h *Categories) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	cat := &models.Category{}
	if req.Name != nil {
		cat.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		cat.Description = strings.TrimSpace(*req.Description)
	}
	if req.Slug != nil {
		cat.Slug = slug.Generate(*req.Slug)
	}
	if cat.Slug == "" {
		cat.Slug = slug.Generate(cat.Name)
	}
	if msg := validateCategory(cat.Name, cat.Slug, cat.Description); msg != "" {
		writeError(w, r, apperr.Validation("Validation failed", msg))
		return
	}

	existing, err := h.store.FindBySlug(r.Context(), cat.Slug)
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to create category", err))
		return
	}
	if existing != nil {
		writeError(w, r, apperr.Conflict(categoryConflictMsg))
		return
	}

	created, err := h.store.Create(r.Context(), cat)
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, r, apperr.Conflict(categoryConflictMsg))
		return
	}
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to create category", err))
		return
	}

	slog.Info("category created", "id", created.ID, "slug", created.Slug)
	writeJSON(w, http.StatusCreated, created)
}

// Update handles PUT /api/categories/{id}. A changed slug is checked for
// collisions before the write.
func (h *Categories) Update(w http.ResponseWriter, r *http.Request) {
	cat, err := h.find(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if req.Name != nil {
		cat.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		cat.Description = strings.TrimSpace(*req.Description)
	}
	if req.Slug != nil && *req.Slug != "" {
		next := slug.Generate(*req.Slug)
		if next != cat.Slug {
			existing, err := h.store.FindBySlug(r.Context(), next)
			if err != nil {
				writeError(w, r, apperr.Internal("Failed to update category", err))
				return
			}
			if existing != nil {
				writeError(w, r, apperr.Conflict(categoryConflictMsg))
				return
			}
		}
		cat.Slug = next
	}
	if msg := validateCategory(cat.Name, cat.Slug, cat.Description); msg != "" {
		writeError(w, r, apperr.Validation("Validation failed", msg))
		return
	}

	updated, err := h.store.Update(r.Context(), cat)
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, r, apperr.Conflict(categoryConflictMsg))
		return
	}
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to update category", err))
		return
	}
	if updated == nil {
		writeError(w, r, apperr.NotFound("Category not found"))
		return
	}

	// Post pages show category names.
	h.invalidateAll(r)
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/categories/{id}. Posts lose the link to the
// category but are otherwise untouched.
func (h *Categories) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, apperr.NotFound("Category not found"))
		return
	}

	ok, err := h.store.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to delete category", err))
		return
	}
	if !ok {
		writeError(w, r, apperr.NotFound("Category not found"))
		return
	}

	slog.Info("category deleted", "id", id)
	h.invalidateAll(r)
	writeJSON(w, http.StatusOK, messageBody{Message: "Category deleted successfully"})
}

func (h *Categories) find(r *http.Request) (*models.Category, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return nil, apperr.NotFound("Category not found")
	}
	cat, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch category", err)
	}
	if cat == nil {
		return nil, apperr.NotFound("Category not found")
	}
	return cat, nil
}

func (h *Categories) invalidateAll(r *http.Request) {
	if h.cache != nil {
		h.cache.InvalidateAll(r.Context())
	}
}
