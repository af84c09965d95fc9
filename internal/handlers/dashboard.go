// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"inkpress/internal/apperr"
	"inkpress/internal/middleware"
	"inkpress/internal/models"
	"inkpress/internal/posts"
	"inkpress/internal/query"
	"inkpress/internal/render"
)

// recentPostCount is how many posts the overview lists.
const recentPostCount = 5

// SettingRow is one read-only line on the settings page.
type SettingRow struct {
	Name  string
	Value string
}

// Dashboard groups the HTML dashboard pages. Mutations go through the JSON
// API from the dashboard script; these handlers only read.
type Dashboard struct {
	renderer   *render.Renderer
	posts      *posts.Service
	categories CategoryStore
	users      UserStore
	insights   PostInsights
	settings   []SettingRow
}

// NewDashboard creates the dashboard handler group. settings is shown
// verbatim on the settings page.
func NewDashboard(renderer *render.Renderer, svc *posts.Service, categories CategoryStore, users UserStore, insights PostInsights, settings []SettingRow) *Dashboard {
	return &Dashboard{
		renderer:   renderer,
		posts:      svc,
		categories: categories,
		users:      users,
		insights:   insights,
		settings:   settings,
	}
}

// Home renders the overview with post counts and the latest posts.
func (d *Dashboard) Home(w http.ResponseWriter, r *http.Request) {
	var flashes []render.Flash

	stats, err := d.insights.Stats(r.Context())
	if err != nil {
		slog.Error("post stats failed", "error", err)
		flashes = append(flashes, render.Flash{Type: "error", Message: "Could not load post counts."})
	}

	recent := []models.Post{}
	res, err := d.posts.List(r.Context(), query.PostListQuery{
		Page: query.Page{Number: 1, Limit: recentPostCount},
	})
	if err != nil {
		slog.Error("recent posts failed", "error", err)
	} else {
		recent = res.Posts
	}

	d.renderer.Page(w, r, "dashboard", &render.PageData{
		Title:   "Overview",
		Section: "dashboard",
		Flashes: flashes,
		Data: map[string]any{
			"Stats":  stats,
			"Recent": recent,
		},
	})
}

// Posts renders the active post list with status and search filters.
func (d *Dashboard) Posts(w http.ResponseWriter, r *http.Request) {
	raw := query.FromValues(r.URL.Query())
	raw.Deleted = ""
	d.postList(w, r, "posts", "posts", "Posts", raw)
}

// Trash renders the posts in the trash.
func (d *Dashboard) Trash(w http.ResponseWriter, r *http.Request) {
	raw := query.FromValues(r.URL.Query())
	raw.Deleted = "true"
	raw.Status = ""
	d.postList(w, r, "trash", "trash", "Trash", raw)
}

func (d *Dashboard) postList(w http.ResponseWriter, r *http.Request, tmpl, section, title string, raw query.RawParams) {
	var flashes []render.Flash

	q, err := query.ParsePostList(raw)
	if err != nil {
		flashes = append(flashes, render.Flash{Type: "error", Message: flashMessage(err)})
		q, _ = query.ParsePostList(query.RawParams{Deleted: raw.Deleted})
		raw.Status, raw.Search = "", ""
	}

	res, err := d.posts.List(r.Context(), q)
	if err != nil {
		slog.Error("list posts failed", "error", err)
		flashes = append(flashes, render.Flash{Type: "error", Message: "Could not load posts."})
		res = &posts.ListResult{Posts: []models.Post{}, Page: q.Page.Number, Limit: q.Page.Limit}
	}

	prev, next := 0, 0
	if res.Page > 1 {
		prev = res.Page - 1
	}
	if res.Page < res.TotalPages {
		next = res.Page + 1
	}

	d.renderer.Page(w, r, tmpl, &render.PageData{
		Title:   title,
		Section: section,
		Flashes: flashes,
		Data: map[string]any{
			"Result": res,
			"Status": raw.Status,
			"Search": raw.Search,
			"Prev":   prev,
			"Next":   next,
		},
	})
}

// NewPost renders an empty post form.
func (d *Dashboard) NewPost(w http.ResponseWriter, r *http.Request) {
	d.postForm(w, r, "New post", nil)
}

// EditPost renders the post form for an existing post, trashed or not.
func (d *Dashboard) EditPost(w http.ResponseWriter, r *http.Request) {
	post, err := d.posts.Get(r.Context(), chi.URLParam(r, "id"))
	if apperr.Is(err, apperr.KindNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("load post failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	d.postForm(w, r, "Edit post", post)
}

func (d *Dashboard) postForm(w http.ResponseWriter, r *http.Request, title string, post *models.Post) {
	cats, err := d.categories.List(r.Context())
	if err != nil {
		slog.Error("list categories failed", "error", err)
	}
	d.renderer.Page(w, r, "post_form", &render.PageData{
		Title:   title,
		Section: "posts",
		Data: map[string]any{
			"Post":       post,
			"Categories": cats,
		},
	})
}

// Categories renders the category manager.
func (d *Dashboard) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := d.categories.List(r.Context())
	if err != nil {
		slog.Error("list categories failed", "error", err)
	}
	d.renderer.Page(w, r, "categories", &render.PageData{
		Title:   "Categories",
		Section: "categories",
		Data:    map[string]any{"Categories": cats},
	})
}

// Tags renders the tag overview with per-tag post counts.
func (d *Dashboard) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := d.insights.TagCounts(r.Context())
	if err != nil {
		slog.Error("tag counts failed", "error", err)
	}
	d.renderer.Page(w, r, "tags", &render.PageData{
		Title:   "Tags",
		Section: "tags",
		Data:    map[string]any{"Tags": tags},
	})
}

// Profile renders the account form and the 2FA panel.
func (d *Dashboard) Profile(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	user, err := d.users.FindByID(r.Context(), sess.UserID)
	if err != nil || user == nil {
		slog.Error("load profile failed", "error", err, "user_id", sess.UserID)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	d.renderer.Page(w, r, "profile", &render.PageData{
		Title:   "Profile",
		Section: "profile",
		Data:    map[string]any{"User": user},
	})
}

// Users renders the account list, newest first.
func (d *Dashboard) Users(w http.ResponseWriter, r *http.Request) {
	users, err := d.users.List(r.Context())
	if err != nil {
		slog.Error("list users failed", "error", err)
	}
	d.renderer.Page(w, r, "users", &render.PageData{
		Title:   "Users",
		Section: "users",
		Data:    map[string]any{"Users": users},
	})
}

// RegisterUser renders the new-account form.
func (d *Dashboard) RegisterUser(w http.ResponseWriter, r *http.Request) {
	d.renderer.Page(w, r, "users_register", &render.PageData{
		Title:   "Add user",
		Section: "users",
		Data: map[string]any{
			"Roles": []models.Role{models.RoleAuthor, models.RoleEditor, models.RoleAdmin},
		},
	})
}

// Settings renders the read-only runtime configuration.
func (d *Dashboard) Settings(w http.ResponseWriter, r *http.Request) {
	d.renderer.Page(w, r, "settings", &render.PageData{
		Title:   "Settings",
		Section: "settings",
		Data:    map[string]any{"Settings": d.settings},
	})
}

// PurgeCache handles POST /api/cache/purge: drops every cached public page.
func PurgeCache(cache PageCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cache.InvalidateAll(r.Context())
		slog.Info("page cache purged", "by", middleware.SessionFromCtx(r.Context()).UserID)
		writeJSON(w, http.StatusOK, messageBody{Message: "Page cache cleared"})
	}
}

func flashMessage(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Something went wrong."
}
