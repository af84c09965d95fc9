// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up all HTTP routes and middleware chains for
// Inkpress. Routes are organised into the JSON API, the gated dashboard,
// the login flow and the public site.
package router

import (
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"inkpress/internal/handlers"
	"inkpress/internal/middleware"
	"inkpress/internal/models"
	"inkpress/internal/ratelimit"
	"inkpress/web"
)

// Handlers bundles the handler groups the router mounts.
type Handlers struct {
	Auth       *handlers.Auth
	Users      *handlers.Users
	Posts      *handlers.Posts
	Categories *handlers.Categories
	Upload     *handlers.Upload
	Dashboard  *handlers.Dashboard
	Public     *handlers.Public
}

// Options carries the shared infrastructure the middleware needs.
type Options struct {
	Sessions middleware.SessionLoader
	// Limiter guards GET/POST /api/posts. Nil disables rate limiting.
	Limiter *ratelimit.Limiter
	// PageCache backs the admin cache purge endpoint.
	PageCache handlers.PageCache
	// SecureCookies marks the CSRF cookie Secure.
	SecureCookies bool
	// UploadDir is served under UploadPrefix when set (local storage only).
	UploadDir    string
	UploadPrefix string
}

// New creates and returns the configured Chi router.
func New(h Handlers, opts Options) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecureHeaders)

	// Health check: no session, no CSRF.
	r.Get("/health", handlers.Health)

	staticFS, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		panic("router: static assets missing: " + err.Error())
	}
	r.Handle("/static/*", http.StripPrefix("/static/", noDirListing(http.FileServerFS(staticFS))))
	if opts.UploadDir != "" {
		prefix := strings.TrimRight(opts.UploadPrefix, "/")
		if prefix == "" {
			prefix = "/uploads"
		}
		r.Handle(prefix+"/*", http.StripPrefix(prefix+"/", noDirListing(http.FileServer(http.Dir(opts.UploadDir)))))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.LoadSession(opts.Sessions))
		r.Use(middleware.NewCSRF(opts.SecureCookies))

		r.Route("/api", func(r chi.Router) { apiRoutes(r, h, opts) })

		// Login flow. A session waiting on 2FA may reach the code form.
		r.Get("/login", h.Auth.LoginPage)
		r.Post("/login", h.Auth.LoginSubmit)
		r.Get("/login/2fa", h.Auth.TwoFAPage)
		r.Post("/login/2fa", h.Auth.TwoFASubmit)
		r.Post("/logout", h.Auth.Logout)
		r.Get("/register", h.Public.Register)

		r.Route("/dashboard", func(r chi.Router) {
			r.Use(middleware.DashboardGate)

			r.Get("/", h.Dashboard.Home)
			r.Get("/posts", h.Dashboard.Posts)
			r.Get("/posts/new", h.Dashboard.NewPost)
			r.Get("/posts/edit/{id}", h.Dashboard.EditPost)
			r.Get("/trash", h.Dashboard.Trash)
			r.Get("/categories", h.Dashboard.Categories)
			r.Get("/tags", h.Dashboard.Tags)
			r.Get("/profile", h.Dashboard.Profile)

			// Role restrictions for these are enforced by the gate.
			r.Get("/users", h.Dashboard.Users)
			r.Get("/users/register", h.Dashboard.RegisterUser)
			r.Get("/settings", h.Dashboard.Settings)
		})
	})

	// Public site.
	r.Get("/", h.Public.Homepage)
	r.Get("/posts/{slug}", h.Public.Post)
	r.Get("/categories", h.Public.Categories)
	r.Get("/categories/{slug}", h.Public.Category)
	r.Get("/about", h.Public.About)
	r.NotFound(h.Public.NotFound)

	return r
}

func apiRoutes(r chi.Router, h Handlers, opts Options) {
	// The limiter counts every request to the collection, signed in or not,
	// so it runs ahead of authentication.
	collection := []func(http.Handler) http.Handler{}
	if opts.Limiter != nil {
		collection = append(collection, middleware.RateLimit(opts.Limiter))
	}
	collection = append(collection, middleware.RequireAPIAuth)

	r.NotFound(handlers.APINotFound)

	// Open endpoints.
	r.Post("/register", h.Users.Register)
	r.Post("/login", h.Auth.APILogin)
	r.Post("/login/2fa", h.Auth.APILogin2FA)
	r.Post("/logout", h.Auth.APILogout)
	r.Get("/posts/public/{slug}", h.Posts.Public)
	r.Get("/categories", h.Categories.List)
	r.Get("/categories/{id}", h.Categories.Get)

	r.With(collection...).Get("/posts", h.Posts.List)
	r.With(collection...).Post("/posts", h.Posts.Create)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAPIAuth)

		r.Get("/posts/{id}", h.Posts.Get)
		r.Put("/posts/{id}", h.Posts.Update)
		r.Delete("/posts/{id}", h.Posts.Delete)
		r.Put("/posts/{id}/trash", h.Posts.Trash)
		r.Put("/posts/{id}/recover", h.Posts.Recover)

		r.Post("/categories", h.Categories.Create)
		r.Put("/categories/{id}", h.Categories.Update)
		r.Delete("/categories/{id}", h.Categories.Delete)

		r.Get("/user", h.Users.Current)
		r.Put("/user/profile", h.Users.UpdateProfile)
		r.Post("/user/2fa/setup", h.Auth.TwoFASetup)
		r.Post("/user/2fa/enable", h.Auth.TwoFAEnable)

		r.Post("/upload", h.Upload.Upload)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAPIRole(models.RoleAdmin))
		r.Get("/users", h.Users.List)
		r.Post("/users/{id}/2fa/reset", h.Users.ResetTwoFactor)
		if opts.PageCache != nil {
			r.Post("/cache/purge", handlers.PurgeCache(opts.PageCache))
		}
	})
}

// noDirListing answers 404 for directory paths instead of an index.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
