// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"inkpress/internal/models"
	"inkpress/internal/session"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// SessionKey is the context key for the session data.
	SessionKey contextKey = "session"
)

// SessionLoader resolves the session named by a request's cookie.
// *session.Store satisfies it.
type SessionLoader interface {
	Get(ctx context.Context, r *http.Request) (*session.Data, error)
}

// LoadSession retrieves the session from Valkey and stores it in the
// request context. Downstream handlers can access it via SessionFromCtx().
// It does not enforce authentication.
func LoadSession(store SessionLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := store.Get(r.Context(), r)
			if err != nil {
				slog.Warn("session load failed", "error", err, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			if data != nil {
				r = r.WithContext(WithSession(r.Context(), data))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithSession returns a copy of ctx carrying data.
func WithSession(ctx context.Context, data *session.Data) context.Context {
	return context.WithValue(ctx, SessionKey, data)
}

// SessionFromCtx extracts the session data from the request context.
// Returns nil if no session is loaded.
func SessionFromCtx(ctx context.Context) *session.Data {
	data, _ := ctx.Value(SessionKey).(*session.Data)
	return data
}

// RequireAPIAuth answers 401 JSON unless the request carries a fully
// authenticated session. Sessions still waiting on a 2FA code do not count.
func RequireAPIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !SessionFromCtx(r.Context()).Authenticated() {
			writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAPIRole answers 403 JSON when the session role is not one of
// roles. Must be applied after RequireAPIAuth.
func RequireAPIRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromCtx(r.Context())
			if !sess.Authenticated() {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			for _, role := range roles {
				if sess.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSONError(w, http.StatusForbidden, "Forbidden")
		})
	}
}

// DashboardGate guards the HTML dashboard. Anonymous visitors are sent to
// the login page with a callbackUrl pointing back at the requested page;
// signed-in users reaching a section their role cannot see are redirected
// to a page they can.
func DashboardGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromCtx(r.Context())
		if !sess.Authenticated() {
			target := "/login?callbackUrl=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}

		if ok, redirect := DashboardAccess(sess.Role, r.URL.Path); !ok {
			http.Redirect(w, r, redirect, http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// DashboardAccess reports whether role may view the dashboard page at
// path. When it may not, redirect names the page to send the user to.
// Sections are matched by plain path prefix.
//
//	admin:  everything
//	editor: everything except /dashboard/users and /dashboard/settings
//	author: /dashboard, /dashboard/posts and /dashboard/profile only
func DashboardAccess(role models.Role, path string) (ok bool, redirect string) {
	switch role {
	case models.RoleAdmin:
		return true, ""
	case models.RoleEditor:
		if strings.HasPrefix(path, "/dashboard/users") || strings.HasPrefix(path, "/dashboard/settings") {
			return false, "/dashboard"
		}
		return true, ""
	case models.RoleAuthor:
		if path == "/dashboard" || path == "/dashboard/" ||
			strings.HasPrefix(path, "/dashboard/posts") || strings.HasPrefix(path, "/dashboard/profile") {
			return true, ""
		}
		return false, "/dashboard/posts"
	default:
		return false, "/login"
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
