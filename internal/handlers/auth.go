// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"inkpress/internal/apperr"
	"inkpress/internal/middleware"
	"inkpress/internal/models"
	"inkpress/internal/render"
	"inkpress/internal/session"
	"inkpress/internal/store"
)

// totpIssuer names the account in authenticator apps.
const totpIssuer = "Inkpress"

// Auth groups the login, two-factor and logout handlers for both the HTML
// form flow and the JSON API.
type Auth struct {
	renderer *render.Renderer
	sessions SessionStore
	users    UserStore
}

// NewAuth creates a new Auth handler group.
func NewAuth(renderer *render.Renderer, sessions SessionStore, users UserStore) *Auth {
	return &Auth{renderer: renderer, sessions: sessions, users: users}
}

// authenticate checks credentials and starts a session. Users enrolled in
// 2FA get a session that is not yet authenticated until they submit a code.
func (a *Auth) authenticate(ctx context.Context, w http.ResponseWriter, email, password string) (*models.User, error) {
	user, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Internal("Login failed", err)
	}
	if user == nil || !store.CheckPassword(user, password) {
		slog.Info("login rejected", "email", store.NormalizeEmail(email))
		return nil, apperr.Unauthorized("Invalid email or password")
	}

	_, err = a.sessions.Create(ctx, w, &session.Data{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		TwoFADone: !user.Needs2FA(),
	})
	if err != nil {
		return nil, apperr.Internal("Login failed", err)
	}

	slog.Info("login", "user_id", user.ID, "needs_2fa", user.Needs2FA())
	return user, nil
}

// verifyCode completes a pending 2FA login.
func (a *Auth) verifyCode(ctx context.Context, r *http.Request, code string) error {
	sess := middleware.SessionFromCtx(ctx)
	if sess == nil {
		return apperr.Unauthorized("Unauthorized")
	}
	if sess.TwoFADone {
		return nil
	}

	user, err := a.users.FindByID(ctx, sess.UserID)
	if err != nil {
		return apperr.Internal("Verification failed", err)
	}
	if user == nil || !user.Needs2FA() {
		return apperr.Unauthorized("Unauthorized")
	}
	if !totp.Validate(strings.TrimSpace(code), *user.TOTPSecret) {
		return apperr.Validation("Invalid code. Please try again.", "")
	}

	next := *sess
	next.TwoFADone = true
	if err := a.sessions.Update(ctx, r, &next); err != nil {
		return apperr.Internal("Verification failed", err)
	}
	return nil
}

// --- JSON API ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type codeRequest struct {
	Code string `json:"code"`
}

// APILogin handles POST /api/login.
func (a *Auth) APILogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := a.authenticate(r.Context(), w, req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user.Needs2FA() {
		writeJSON(w, http.StatusOK, map[string]any{"twoFactorRequired": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"twoFactorRequired": false, "user": user})
}

// APILogin2FA handles POST /api/login/2fa.
func (a *Auth) APILogin2FA(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.verifyCode(r.Context(), r, req.Code); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Login complete"})
}

// APILogout handles POST /api/logout.
func (a *Auth) APILogout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Warn("session destroy failed", "error", err)
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Logged out"})
}

// TwoFASetup handles POST /api/user/2fa/setup. It stores a fresh secret
// (disabling 2FA until it is confirmed) and returns it with a QR code.
func (a *Auth) TwoFASetup(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: sess.Email,
	})
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to set up 2FA", err))
		return
	}

	if err := a.users.SetTOTPSecret(r.Context(), sess.UserID, key.Secret()); err != nil {
		writeError(w, r, apperr.Internal("Failed to set up 2FA", err))
		return
	}

	qrPNG, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to set up 2FA", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"secret": key.Secret(),
		"url":    key.URL(),
		"qrCode": base64.StdEncoding.EncodeToString(qrPNG),
	})
}

// TwoFAEnable handles POST /api/user/2fa/enable. The code proves the
// authenticator app holds the secret from setup.
func (a *Auth) TwoFAEnable(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	var req codeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := a.users.FindByID(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to enable 2FA", err))
		return
	}
	if user == nil {
		writeError(w, r, apperr.NotFound("User not found"))
		return
	}
	if user.TOTPSecret == nil {
		writeError(w, r, apperr.Validation("Two-factor setup has not been started", ""))
		return
	}
	if !totp.Validate(strings.TrimSpace(req.Code), *user.TOTPSecret) {
		writeError(w, r, apperr.Validation("Invalid code. Please try again.", ""))
		return
	}

	if err := a.users.EnableTOTP(r.Context(), user.ID); err != nil {
		writeError(w, r, apperr.Internal("Failed to enable 2FA", err))
		return
	}

	slog.Info("2fa enabled", "user_id", user.ID)
	writeJSON(w, http.StatusOK, messageBody{Message: "Two-factor authentication enabled"})
}

// --- HTML forms ---

// LoginPage renders the login form, or the code form for a session
// waiting on 2FA.
func (a *Auth) LoginPage(w http.ResponseWriter, r *http.Request) {
	callback := safeCallback(r.URL.Query().Get("callbackUrl"))
	sess := middleware.SessionFromCtx(r.Context())
	if sess.Authenticated() {
		http.Redirect(w, r, callback, http.StatusSeeOther)
		return
	}

	a.renderer.Page(w, r, "login", &render.PageData{
		Title: "Sign in",
		Data:  map[string]any{"CallbackURL": callback, "Email": ""},
	})
}

// LoginSubmit processes the login form.
func (a *Auth) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	callback := safeCallback(r.FormValue("callbackUrl"))

	user, err := a.authenticate(r.Context(), w, email, r.FormValue("password"))
	if err != nil {
		msg := "An unexpected error occurred."
		if apperr.Is(err, apperr.KindUnauthorized) {
			msg = "Invalid email or password."
		} else {
			slog.Error("login failed", "error", err)
		}
		a.renderer.PageStatus(w, r, apperr.KindOf(err).Status(), "login", &render.PageData{
			Title:   "Sign in",
			Data:    map[string]any{"CallbackURL": callback, "Email": email},
			Flashes: []render.Flash{{Type: "error", Message: msg}},
		})
		return
	}

	if user.Needs2FA() {
		http.Redirect(w, r, "/login/2fa?callbackUrl="+url.QueryEscape(callback), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, callback, http.StatusSeeOther)
}

// TwoFAPage renders the code form for a session waiting on 2FA.
func (a *Auth) TwoFAPage(w http.ResponseWriter, r *http.Request) {
	callback := safeCallback(r.URL.Query().Get("callbackUrl"))
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if sess.TwoFADone {
		http.Redirect(w, r, callback, http.StatusSeeOther)
		return
	}

	a.renderer.Page(w, r, "login_2fa", &render.PageData{
		Title: "Two-factor code",
		Data:  map[string]any{"CallbackURL": callback},
	})
}

// TwoFASubmit validates the code form and completes the login.
func (a *Auth) TwoFASubmit(w http.ResponseWriter, r *http.Request) {
	callback := safeCallback(r.FormValue("callbackUrl"))

	if err := a.verifyCode(r.Context(), r, r.FormValue("code")); err != nil {
		if apperr.Is(err, apperr.KindUnauthorized) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		msg := "Invalid code. Please try again."
		if apperr.Is(err, apperr.KindInternal) {
			slog.Error("2fa verification failed", "error", err)
			msg = "An unexpected error occurred."
		}
		a.renderer.PageStatus(w, r, apperr.KindOf(err).Status(), "login_2fa", &render.PageData{
			Title:   "Two-factor code",
			Data:    map[string]any{"CallbackURL": callback},
			Flashes: []render.Flash{{Type: "error", Message: msg}},
		})
		return
	}

	http.Redirect(w, r, callback, http.StatusSeeOther)
}

// Logout destroys the session and redirects to the login page.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Warn("session destroy failed", "error", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// safeCallback keeps post-login redirects on this site. Anything that is
// not a local absolute path falls back to the dashboard.
func safeCallback(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") ||
		strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/dashboard"
	}
	return raw
}
