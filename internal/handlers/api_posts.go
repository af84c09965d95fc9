// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"inkpress/internal/apperr"
	"inkpress/internal/middleware"
	"inkpress/internal/models"
	"inkpress/internal/posts"
	"inkpress/internal/query"
)

// Posts serves the /api/posts endpoints.
type Posts struct {
	svc *posts.Service
}

// NewPosts creates the post API handlers.
func NewPosts(svc *posts.Service) *Posts {
	return &Posts{svc: svc}
}

// postRequest is the JSON body of a create request. Categories holds
// category ids.
type postRequest struct {
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Slug          string   `json:"slug"`
	Excerpt       string   `json:"excerpt"`
	FeaturedImage string   `json:"featuredImage"`
	Tags          []string `json:"tags"`
	Categories    []string `json:"categories"`
	Status        string   `json:"status"`
}

// postPatch is the JSON body of an update request. Absent fields are left
// unchanged.
type postPatch struct {
	Title         *string   `json:"title"`
	Content       *string   `json:"content"`
	Slug          *string   `json:"slug"`
	Excerpt       *string   `json:"excerpt"`
	FeaturedImage *string   `json:"featuredImage"`
	Tags          *[]string `json:"tags"`
	Categories    *[]string `json:"categories"`
	Status        *string   `json:"status"`
}

// List handles GET /api/posts.
func (h *Posts) List(w http.ResponseWriter, r *http.Request) {
	q, err := query.ParsePostList(query.FromValues(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.svc.List(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=10")
	writeJSON(w, http.StatusOK, res)
}

// Create handles POST /api/posts. The session user becomes the author.
func (h *Posts) Create(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	var req postRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	categoryIDs, err := parseCategoryIDs(req.Categories)
	if err != nil {
		writeError(w, r, err)
		return
	}

	post, err := h.svc.Create(r.Context(), sess.UserID, posts.Input{
		Title:         req.Title,
		Content:       req.Content,
		Slug:          req.Slug,
		Excerpt:       req.Excerpt,
		FeaturedImage: req.FeaturedImage,
		Tags:          req.Tags,
		CategoryIDs:   categoryIDs,
		Status:        models.PostStatus(req.Status),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

// Get handles GET /api/posts/{id}.
func (h *Posts) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// Update handles PUT /api/posts/{id}.
func (h *Posts) Update(w http.ResponseWriter, r *http.Request) {
	var req postPatch
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	patch := posts.Patch{
		Title:         req.Title,
		Content:       req.Content,
		Slug:          req.Slug,
		Excerpt:       req.Excerpt,
		FeaturedImage: req.FeaturedImage,
		Tags:          req.Tags,
	}
	if req.Categories != nil {
		ids, err := parseCategoryIDs(*req.Categories)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.CategoryIDs = &ids
	}
	if req.Status != nil {
		status := models.PostStatus(*req.Status)
		patch.Status = &status
	}

	post, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /api/posts/{id}: a permanent purge.
func (h *Posts) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Purge(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Post deleted successfully"})
}

// Trash handles PUT /api/posts/{id}/trash.
func (h *Posts) Trash(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Trash(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Post moved to trash successfully"})
}

// Recover handles PUT /api/posts/{id}/recover.
func (h *Posts) Recover(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Recover(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Post recovered successfully"})
}

// Public handles GET /api/posts/public/{slug}. Only published posts
// outside the trash are visible.
func (h *Posts) Public(w http.ResponseWriter, r *http.Request) {
	post, err := h.svc.GetPublished(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func parseCategoryIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, apperr.Validation("Validation failed", "invalid category id "+s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
