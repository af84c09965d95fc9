// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"inkpress/internal/apperr"
	"inkpress/internal/middleware"
	"inkpress/internal/models"
	"inkpress/internal/session"
	"inkpress/internal/store"
)

// SessionStore creates and mutates sessions. *session.Store satisfies it.
type SessionStore interface {
	Create(ctx context.Context, w http.ResponseWriter, data *session.Data) (string, error)
	Update(ctx context.Context, r *http.Request, data *session.Data) error
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// Users serves registration and the account endpoints.
type Users struct {
	users    UserStore
	sessions SessionStore
}

// NewUsers creates the user API handlers.
func NewUsers(users UserStore, sessions SessionStore) *Users {
	return &Users{users: users, sessions: sessions}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type profileRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Register handles POST /api/register. While no user exists anyone may
// register and the account becomes an admin; afterwards only admins may
// add users.
func (h *Users) Register(w http.ResponseWriter, r *http.Request) {
	count, err := h.users.Count(r.Context())
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to register user", err))
		return
	}

	if count > 0 {
		sess := middleware.SessionFromCtx(r.Context())
		if !sess.Authenticated() {
			writeError(w, r, apperr.Unauthorized("Unauthorized: Authentication required"))
			return
		}
		if sess.Role != models.RoleAdmin {
			writeError(w, r, apperr.Forbidden("Forbidden: Admin privileges required"))
			return
		}
	}

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	role := models.Role(req.Role)
	if msg := validateRegistration(req.Name, req.Email, req.Password, role); msg != "" {
		writeError(w, r, apperr.Validation(msg, ""))
		return
	}

	existing, err := h.users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to register user", err))
		return
	}
	if existing != nil {
		writeError(w, r, apperr.Conflict("User with this email already exists"))
		return
	}

	switch {
	case count == 0:
		role = models.RoleAdmin
	case role == "":
		role = models.RoleAuthor
	}

	user, err := h.users.Create(r.Context(), strings.TrimSpace(req.Name), req.Email, req.Password, role)
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, r, apperr.Conflict("User with this email already exists"))
		return
	}
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to register user", err))
		return
	}

	slog.Info("user registered", "id", user.ID, "email", user.Email, "role", user.Role, "bootstrap", count == 0)
	writeJSON(w, http.StatusCreated, user)
}

// Current handles GET /api/user.
func (h *Users) Current(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=10")
	writeJSON(w, http.StatusOK, user)
}

// List handles GET /api/users, newest first. Admin only.
func (h *Users) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to fetch users", err))
		return
	}
	if users == nil {
		users = []models.User{}
	}
	w.Header().Set("Cache-Control", "private, max-age=10")
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// UpdateProfile handles PUT /api/user/profile. A password change needs
// the current password.
func (h *Users) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	name := user.Name
	if n := strings.TrimSpace(req.Name); n != "" {
		name = n
	}
	email := user.Email
	if e := store.NormalizeEmail(req.Email); e != "" && e != user.Email {
		taken, err := h.users.FindByEmail(r.Context(), e)
		if err != nil {
			writeError(w, r, apperr.Internal("Failed to update profile", err))
			return
		}
		if taken != nil {
			writeError(w, r, apperr.Conflict("Email is already in use"))
			return
		}
		email = e
	}
	if msg := validateProfile(name, email); msg != "" {
		writeError(w, r, apperr.Validation(msg, ""))
		return
	}

	if req.NewPassword != "" {
		if req.CurrentPassword == "" {
			writeError(w, r, apperr.Validation("Current password is required", ""))
			return
		}
		if !store.CheckPassword(user, req.CurrentPassword) {
			writeError(w, r, apperr.Validation("Current password is incorrect", ""))
			return
		}
		if msg := validatePassword(req.NewPassword); msg != "" {
			writeError(w, r, apperr.Validation(msg, ""))
			return
		}
	}

	updated, err := h.users.UpdateProfile(r.Context(), user.ID, name, email)
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, r, apperr.Conflict("Email is already in use"))
		return
	}
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to update profile", err))
		return
	}
	if updated == nil {
		writeError(w, r, apperr.NotFound("User not found"))
		return
	}

	if req.NewPassword != "" {
		if err := h.users.UpdatePassword(r.Context(), user.ID, req.NewPassword); err != nil {
			writeError(w, r, apperr.Internal("Failed to update profile", err))
			return
		}
		slog.Info("password changed", "user_id", user.ID)
	}

	// Keep the session's display fields in step with the account.
	sess := *middleware.SessionFromCtx(r.Context())
	sess.Name, sess.Email = updated.Name, updated.Email
	if err := h.sessions.Update(r.Context(), r, &sess); err != nil && !errors.Is(err, session.ErrNoSession) {
		slog.Warn("session refresh after profile update failed", "error", err)
	}

	writeJSON(w, http.StatusOK, updated)
}

// currentUser loads the account of the authenticated session.
func (h *Users) currentUser(r *http.Request) (*models.User, error) {
	sess := middleware.SessionFromCtx(r.Context())
	if !sess.Authenticated() {
		return nil, apperr.Unauthorized("Unauthorized")
	}
	user, err := h.users.FindByID(r.Context(), sess.UserID)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch user data", err)
	}
	if user == nil {
		return nil, apperr.NotFound("User not found")
	}
	return user, nil
}

// ResetTwoFactor handles POST /api/users/{id}/2fa/reset. Admin only. It
// clears the user's secret so their next login skips the code step.
func (h *Users) ResetTwoFactor(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, apperr.NotFound("User not found"))
		return
	}

	target, err := h.users.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to reset 2FA", err))
		return
	}
	if target == nil {
		writeError(w, r, apperr.NotFound("User not found"))
		return
	}

	if err := h.users.ResetTOTP(r.Context(), target.ID); err != nil {
		writeError(w, r, apperr.Internal("Failed to reset 2FA", err))
		return
	}

	sess := middleware.SessionFromCtx(r.Context())
	slog.Info("2fa reset", "user_id", target.ID, "by", sess.UserID)
	writeJSON(w, http.StatusOK, messageBody{Message: "Two-factor authentication reset"})
}
