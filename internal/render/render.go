// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package render provides HTML template rendering for the dashboard and the
// public site. Dashboard pages are written straight to the response;
// public pages render to bytes so they can be stored in the page cache.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"inkpress/internal/markdown"
	"inkpress/internal/middleware"
	"inkpress/internal/models"
	"inkpress/internal/session"
)

//go:embed templates
var templateFS embed.FS

// PageData holds all data passed to dashboard templates.
type PageData struct {
	Title     string         // Page title for <title> tag
	Section   string         // Active sidebar section (e.g., "dashboard", "posts")
	Session   *session.Data  // Current user session (nil if unauthenticated)
	CSRFToken string         // CSRF token for forms and script requests
	Data      map[string]any // Page-specific data
	Flashes   []Flash        // One-time notification messages
}

// Flash represents a one-time notification message displayed to the user.
type Flash struct {
	Type    string // "success", "error", "warning", "info"
	Message string
}

// PublicData holds the data passed to public site templates. It carries no
// session so the rendered bytes are safe to share between visitors.
type PublicData struct {
	Title       string
	Description string
	Data        map[string]any
}

// Renderer handles template parsing and execution.
type Renderer struct {
	dashboard map[string]*template.Template
	public    map[string]*template.Template
}

// standaloneTemplates lists dashboard templates that render as full HTML
// pages without the base layout.
var standaloneTemplates = map[string]bool{
	"login":     true,
	"login_2fa": true,
}

// Funcs is the template function map shared by every template.
var Funcs = template.FuncMap{
	"activeClass": func(current, target string) string {
		if current == target {
			return "active"
		}
		return ""
	},
	"date": func(t time.Time) string {
		return t.Format("Jan 2, 2006")
	},
	"datetime": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	},
	"join": strings.Join,
	"add":  func(a, b int) int { return a + b },
	"sub":  func(a, b int) int { return a - b },
	// summary returns the post excerpt, or the first paragraph of its
	// content when no excerpt was written.
	"summary": func(p models.Post) string {
		if p.Excerpt != "" {
			return p.Excerpt
		}
		return markdown.Summary(p.Content, 200)
	},
	"hasID": func(ids []uuid.UUID, id uuid.UUID) bool {
		for _, v := range ids {
			if v == id {
				return true
			}
		}
		return false
	},
	"isRole": func(sess *session.Data, roles ...string) bool {
		if sess == nil {
			return false
		}
		for _, r := range roles {
			if string(sess.Role) == r {
				return true
			}
		}
		return false
	},
}

// New creates a Renderer by parsing every embedded template. Each dashboard
// page is paired with templates/dashboard/base.html and each public page
// with templates/public/layout.html.
func New() (*Renderer, error) {
	dashboard, err := parseDir("templates/dashboard", "base.html", standaloneTemplates)
	if err != nil {
		return nil, err
	}
	public, err := parseDir("templates/public", "layout.html", nil)
	if err != nil {
		return nil, err
	}
	return &Renderer{dashboard: dashboard, public: public}, nil
}

func parseDir(dir, layout string, standalone map[string]bool) (map[string]*template.Template, error) {
	entries, err := fs.ReadDir(templateFS, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded templates: %w", err)
	}

	out := make(map[string]*template.Template, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == layout || !strings.HasSuffix(name, ".html") {
			continue
		}
		tmplName := strings.TrimSuffix(name, ".html")

		var tmpl *template.Template
		if standalone[tmplName] {
			tmpl, err = template.New(name).Funcs(Funcs).ParseFS(templateFS, dir+"/"+name)
		} else {
			tmpl, err = template.New(layout).Funcs(Funcs).ParseFS(templateFS, dir+"/"+layout, dir+"/"+name)
		}
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		out[tmplName] = tmpl
	}
	return out, nil
}

// Page renders a full dashboard page. The CSRF token and session are
// taken from the request.
func (rn *Renderer) Page(w http.ResponseWriter, r *http.Request, name string, data *PageData) {
	rn.PageStatus(w, r, http.StatusOK, name, data)
}

// PageStatus is Page with an explicit status code.
func (rn *Renderer) PageStatus(w http.ResponseWriter, r *http.Request, status int, name string, data *PageData) {
	tmpl, ok := rn.dashboard[name]
	if !ok {
		http.Error(w, fmt.Sprintf("template %q not found", name), http.StatusInternalServerError)
		return
	}

	data.CSRFToken = middleware.GetCSRFToken(r)
	if data.Session == nil {
		data.Session = middleware.SessionFromCtx(r.Context())
	}

	execName := "base.html"
	if standaloneTemplates[name] {
		execName = name + ".html"
	}

	// Render into a buffer so a template error never leaves a half-written page.
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, execName, data); err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// Public renders a public site page to bytes.
func (rn *Renderer) Public(name string, data *PublicData) ([]byte, error) {
	tmpl, ok := rn.public[name]
	if !ok {
		return nil, fmt.Errorf("template %q not found", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
