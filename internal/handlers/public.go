// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"inkpress/internal/apperr"
	"inkpress/internal/cache"
	"inkpress/internal/markdown"
	"inkpress/internal/middleware"
	"inkpress/internal/models"
	"inkpress/internal/posts"
	"inkpress/internal/query"
	"inkpress/internal/render"
)

const (
	// homepagePostCount is how many posts the homepage lists.
	homepagePostCount = 10
	// categoryPostCount is how many posts a category page lists.
	categoryPostCount = query.MaxLimit
)

// Public groups handlers for the public-facing site. The homepage and post
// pages are served from the Valkey page cache when present and stored
// there on a miss; the post lifecycle invalidates them.
type Public struct {
	renderer   *render.Renderer
	posts      *posts.Service
	categories CategoryStore
	cache      PageCache
}

// NewPublic creates a new Public handler group. cache may be nil.
func NewPublic(renderer *render.Renderer, svc *posts.Service, categories CategoryStore, cache PageCache) *Public {
	return &Public{renderer: renderer, posts: svc, categories: categories, cache: cache}
}

// Homepage renders the latest published posts.
func (p *Public) Homepage(w http.ResponseWriter, r *http.Request) {
	if p.serveCached(w, r, cache.HomepageKey()) {
		return
	}

	res, err := p.posts.List(r.Context(), query.PostListQuery{
		Filter: query.PostFilter{Status: models.PostStatusPublished},
		Page:   query.Page{Number: 1, Limit: homepagePostCount},
	})
	if err != nil {
		p.serverError(w, r, err)
		return
	}

	out, err := p.renderer.Public("home", &render.PublicData{
		Data: map[string]any{"Posts": res.Posts},
	})
	if err != nil {
		p.serverError(w, r, err)
		return
	}

	p.store(r, cache.HomepageKey(), out)
	writeHTML(w, http.StatusOK, out, "MISS")
}

// Post renders a published post with its Markdown content.
func (p *Public) Post(w http.ResponseWriter, r *http.Request) {
	postSlug := chi.URLParam(r, "slug")
	key := cache.PostKey(postSlug)
	if p.serveCached(w, r, key) {
		return
	}

	post, err := p.posts.GetPublished(r.Context(), postSlug)
	if apperr.Is(err, apperr.KindNotFound) {
		p.notFound(w, r)
		return
	}
	if err != nil {
		p.serverError(w, r, err)
		return
	}

	body, err := markdown.ToHTML(post.Content)
	if err != nil {
		p.serverError(w, r, err)
		return
	}

	description := post.Excerpt
	if description == "" {
		description = markdown.Summary(post.Content, 160)
	}
	out, err := p.renderer.Public("post", &render.PublicData{
		Title:       post.Title,
		Description: description,
		Data:        map[string]any{"Post": post, "Body": body},
	})
	if err != nil {
		p.serverError(w, r, err)
		return
	}

	p.store(r, key, out)
	writeHTML(w, http.StatusOK, out, "MISS")
}

// Categories renders the category index.
func (p *Public) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := p.categories.List(r.Context())
	if err != nil {
		p.serverError(w, r, err)
		return
	}
	out, err := p.renderer.Public("categories", &render.PublicData{
		Title: "Categories",
		Data:  map[string]any{"Categories": cats},
	})
	if err != nil {
		p.serverError(w, r, err)
		return
	}
	writeHTML(w, http.StatusOK, out, "")
}

// About renders the static about page.
func (p *Public) About(w http.ResponseWriter, r *http.Request) {
	out, err := p.renderer.Public("about", &render.PublicData{
		Title:       "About",
		Description: "What Inkpress is and who writes it",
	})
	if err != nil {
		p.serverError(w, r, err)
		return
	}
	writeHTML(w, http.StatusOK, out, "")
}

// Register explains that accounts are created by administrators. Signed-in
// admins are sent to the dashboard form; other staff to the dashboard.
func (p *Public) Register(w http.ResponseWriter, r *http.Request) {
	if sess := middleware.SessionFromCtx(r.Context()); sess.Authenticated() {
		target := "/dashboard"
		if sess.Role == models.RoleAdmin {
			target = "/dashboard/users/register"
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	out, err := p.renderer.Public("register", &render.PublicData{Title: "Register"})
	if err != nil {
		p.serverError(w, r, err)
		return
	}
	writeHTML(w, http.StatusOK, out, "")
}

// Category renders the published posts in one category.
func (p *Public) Category(w http.ResponseWriter, r *http.Request) {
	cat, err := p.categories.FindBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		p.serverError(w, r, err)
		return
	}
	if cat == nil {
		p.notFound(w, r)
		return
	}

	res, err := p.posts.List(r.Context(), query.PostListQuery{
		Filter: query.PostFilter{Status: models.PostStatusPublished, CategoryID: &cat.ID},
		Page:   query.Page{Number: 1, Limit: categoryPostCount},
	})
	if err != nil {
		p.serverError(w, r, err)
		return
	}

	out, err := p.renderer.Public("category", &render.PublicData{
		Title:       cat.Name,
		Description: cat.Description,
		Data:        map[string]any{"Category": cat, "Posts": res.Posts},
	})
	if err != nil {
		p.serverError(w, r, err)
		return
	}
	writeHTML(w, http.StatusOK, out, "")
}

// NotFound renders the public 404 page.
func (p *Public) NotFound(w http.ResponseWriter, r *http.Request) {
	p.notFound(w, r)
}

func (p *Public) serveCached(w http.ResponseWriter, r *http.Request, key string) bool {
	if p.cache == nil {
		return false
	}
	cached, ok := p.cache.Get(r.Context(), key)
	if !ok {
		return false
	}
	writeHTML(w, http.StatusOK, cached, "HIT")
	return true
}

func (p *Public) store(r *http.Request, key string, html []byte) {
	if p.cache != nil {
		p.cache.Set(r.Context(), key, html)
	}
}

func (p *Public) notFound(w http.ResponseWriter, r *http.Request) {
	out, err := p.renderer.Public("not_found", &render.PublicData{Title: "Not found"})
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeHTML(w, http.StatusNotFound, out, "")
}

func (p *Public) serverError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("public page failed", "path", r.URL.Path, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// writeHTML sends a rendered page. cacheStatus, when set, is reported in
// the X-Cache header.
func writeHTML(w http.ResponseWriter, status int, body []byte, cacheStatus string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if cacheStatus != "" {
		w.Header().Set("X-Cache", cacheStatus)
	}
	w.WriteHeader(status)
	w.Write(body)
}
