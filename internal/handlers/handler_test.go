// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler tests:
// in-memory stores, sessions and the page cache on miniredis, and a chi
// router wired like the production one.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"inkpress/internal/cache"
	"inkpress/internal/middleware"
	"inkpress/internal/models"
	"inkpress/internal/posts"
	"inkpress/internal/query"
	"inkpress/internal/render"
	"inkpress/internal/session"
	"inkpress/internal/storage"
	"inkpress/internal/store"
)

// --- in-memory stores ---

type memUsers struct {
	mu    sync.Mutex
	users []*models.User
}

func (s *memUsers) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

func (s *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = store.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.byID(id); u != nil {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *memUsers) byID(id uuid.UUID) *models.User {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (s *memUsers) List(context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for i := len(s.users) - 1; i >= 0; i-- {
		out = append(out, *s.users[i])
	}
	return out, nil
}

func (s *memUsers) Create(_ context.Context, name, email, password string, role models.Role) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email = store.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return nil, fmt.Errorf("create user: %w", store.ErrDuplicate)
		}
	}
	u := &models.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	s.users = append(s.users, u)
	cp := *u
	return &cp, nil
}

func (s *memUsers) UpdateProfile(_ context.Context, id uuid.UUID, name, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.byID(id)
	if u == nil {
		return nil, nil
	}
	u.Name, u.Email = name, store.NormalizeEmail(email)
	cp := *u
	return &cp, nil
}

func (s *memUsers) UpdatePassword(_ context.Context, id uuid.UUID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.byID(id); u != nil {
		u.PasswordHash = string(hash)
	}
	return nil
}

func (s *memUsers) SetTOTPSecret(_ context.Context, id uuid.UUID, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.byID(id); u != nil {
		u.TOTPSecret = &secret
		u.TOTPEnabled = false
	}
	return nil
}

func (s *memUsers) ResetTOTP(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.byID(id); u != nil {
		u.TOTPSecret = nil
		u.TOTPEnabled = false
	}
	return nil
}

func (s *memUsers) EnableTOTP(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.byID(id); u != nil && u.TOTPSecret != nil {
		u.TOTPEnabled = true
	}
	return nil
}

type memCategories struct {
	mu   sync.Mutex
	cats []*models.Category
}

func (s *memCategories) List(context.Context) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Category, 0, len(s.cats))
	for _, c := range s.cats {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memCategories) find(match func(*models.Category) bool) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cats {
		if match(c) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memCategories) FindByID(_ context.Context, id uuid.UUID) (*models.Category, error) {
	return s.find(func(c *models.Category) bool { return c.ID == id })
}

func (s *memCategories) FindBySlug(_ context.Context, slug string) (*models.Category, error) {
	return s.find(func(c *models.Category) bool { return c.Slug == slug })
}

func (s *memCategories) slugTaken(slug string, except uuid.UUID) bool {
	for _, c := range s.cats {
		if c.Slug == slug && c.ID != except {
			return true
		}
	}
	return false
}

func (s *memCategories) Create(_ context.Context, c *models.Category) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slugTaken(c.Slug, uuid.Nil) {
		return nil, fmt.Errorf("create category: %w", store.ErrDuplicate)
	}
	cp := *c
	cp.ID = uuid.New()
	s.cats = append(s.cats, &cp)
	out := cp
	return &out, nil
}

func (s *memCategories) Update(_ context.Context, c *models.Category) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slugTaken(c.Slug, c.ID) {
		return nil, fmt.Errorf("update category: %w", store.ErrDuplicate)
	}
	for i, existing := range s.cats {
		if existing.ID == c.ID {
			cp := *c
			s.cats[i] = &cp
			out := cp
			return &out, nil
		}
	}
	return nil, nil
}

func (s *memCategories) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.cats {
		if c.ID == id {
			s.cats = append(s.cats[:i], s.cats[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// memPosts is an in-memory posts.Repository that also answers the
// dashboard insight queries.
type memPosts struct {
	mu    sync.Mutex
	posts map[uuid.UUID]*models.Post
	seq   int
}

func newMemPosts() *memPosts {
	return &memPosts{posts: make(map[uuid.UUID]*models.Post)}
}

func (r *memPosts) slugTaken(slug string, except uuid.UUID) bool {
	for id, p := range r.posts {
		if id != except && p.Slug == slug {
			return true
		}
	}
	return false
}

func (r *memPosts) List(_ context.Context, f query.PostFilter, page query.Page) ([]models.Post, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []models.Post
	for _, p := range r.posts {
		if f.Matches(p) {
			matched = append(matched, *p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	start := min(page.Skip(), total)
	end := min(start+page.Limit, total)
	return matched[start:end], total, nil
}

func (r *memPosts) FindByID(_ context.Context, id uuid.UUID) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *memPosts) FindPublishedBySlug(_ context.Context, slug string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.Slug == slug && p.IsVisible() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memPosts) Create(_ context.Context, p *models.Post) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slugTaken(p.Slug, uuid.Nil) {
		return nil, fmt.Errorf("create post: %w", store.ErrDuplicate)
	}
	r.seq++
	cp := *p
	cp.ID = uuid.New()
	cp.Author = models.AuthorRef{ID: p.AuthorID, Name: "Author"}
	cp.CreatedAt = time.Unix(int64(r.seq), 0)
	cp.UpdatedAt = cp.CreatedAt
	r.posts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memPosts) Update(_ context.Context, p *models.Post) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[p.ID]; !ok {
		return nil, nil
	}
	if r.slugTaken(p.Slug, p.ID) {
		return nil, fmt.Errorf("update post: %w", store.ErrDuplicate)
	}
	cp := *p
	r.posts[p.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memPosts) SetDeleted(_ context.Context, id uuid.UUID, deleted bool, at *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return false, nil
	}
	p.Deleted, p.DeletedAt = deleted, at
	return true, nil
}

func (r *memPosts) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return false, nil
	}
	delete(r.posts, id)
	return true, nil
}

func (r *memPosts) TagCounts(context.Context) ([]models.TagCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int{}
	for _, p := range r.posts {
		if p.Deleted {
			continue
		}
		for _, tag := range p.Tags {
			counts[tag]++
		}
	}
	out := make([]models.TagCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, models.TagCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memPosts) Stats(context.Context) (models.PostStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var st models.PostStats
	for _, p := range r.posts {
		switch {
		case p.Deleted:
			st.Trashed++
		case p.Status == models.PostStatusPublished:
			st.Published++
		default:
			st.Drafts++
		}
	}
	return st, nil
}

// --- environment ---

type testEnv struct {
	t          *testing.T
	server     *httptest.Server
	mr         *miniredis.Miniredis
	renderer   *render.Renderer
	users      *memUsers
	categories *memCategories
	posts      *memPosts
	service    *posts.Service
	pages      *cache.PageCache
	sessions   *session.Store
	uploadDir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	renderer, err := render.New()
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}

	uploadDir := t.TempDir()
	backend, err := storage.NewLocal(uploadDir, "/uploads")
	if err != nil {
		t.Fatalf("storage.NewLocal: %v", err)
	}

	env := &testEnv{
		t:          t,
		mr:         mr,
		renderer:   renderer,
		users:      &memUsers{},
		categories: &memCategories{},
		posts:      newMemPosts(),
		pages:      cache.NewPageCache(client, time.Minute),
		sessions:   session.NewStore(client, false, time.Hour),
		uploadDir:  uploadDir,
	}
	env.service = posts.NewService(env.posts, env.pages)

	env.server = httptest.NewServer(env.routes(backend))
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) routes(backend storage.Backend) http.Handler {
	authH := NewAuth(e.renderer, e.sessions, e.users)
	usersH := NewUsers(e.users, e.sessions)
	postsH := NewPosts(e.service)
	catsH := NewCategories(e.categories, e.pages)
	uploadH := NewUpload(backend)
	publicH := NewPublic(e.renderer, e.service, e.categories, e.pages)

	r := chi.NewRouter()
	r.Use(middleware.LoadSession(e.sessions))

	r.Get("/login", authH.LoginPage)
	r.Post("/login", authH.LoginSubmit)
	r.Get("/login/2fa", authH.TwoFAPage)
	r.Post("/login/2fa", authH.TwoFASubmit)
	r.Post("/logout", authH.Logout)
	r.Get("/register", publicH.Register)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", usersH.Register)
		r.Post("/login", authH.APILogin)
		r.Post("/login/2fa", authH.APILogin2FA)
		r.Post("/logout", authH.APILogout)
		r.Get("/posts/public/{slug}", postsH.Public)
		r.Get("/categories", catsH.List)
		r.Get("/categories/{id}", catsH.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAPIAuth)
			r.Get("/posts", postsH.List)
			r.Post("/posts", postsH.Create)
			r.Get("/posts/{id}", postsH.Get)
			r.Put("/posts/{id}", postsH.Update)
			r.Delete("/posts/{id}", postsH.Delete)
			r.Put("/posts/{id}/trash", postsH.Trash)
			r.Put("/posts/{id}/recover", postsH.Recover)

			r.Post("/categories", catsH.Create)
			r.Put("/categories/{id}", catsH.Update)
			r.Delete("/categories/{id}", catsH.Delete)

			r.Get("/user", usersH.Current)
			r.Put("/user/profile", usersH.UpdateProfile)
			r.Post("/user/2fa/setup", authH.TwoFASetup)
			r.Post("/user/2fa/enable", authH.TwoFAEnable)
			r.Post("/upload", uploadH.Upload)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAPIRole(models.RoleAdmin))
			r.Get("/users", usersH.List)
			r.Post("/users/{id}/2fa/reset", usersH.ResetTwoFactor)
		})
	})

	r.Get("/", publicH.Homepage)
	r.Get("/posts/{slug}", publicH.Post)
	r.Get("/categories", publicH.Categories)
	r.Get("/categories/{slug}", publicH.Category)
	r.Get("/about", publicH.About)
	r.NotFound(publicH.NotFound)
	return r
}

// seedUser creates an account directly in the store.
func (e *testEnv) seedUser(name, email, password string, role models.Role) *models.User {
	e.t.Helper()
	u, err := e.users.Create(context.Background(), name, email, password, role)
	if err != nil {
		e.t.Fatalf("seed user: %v", err)
	}
	return u
}

// client returns a cookie-keeping client that does not follow redirects.
func (e *testEnv) client() *apiClient {
	e.t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		e.t.Fatalf("cookiejar: %v", err)
	}
	return &apiClient{
		t:    e.t,
		base: e.server.URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// loginAs returns a client holding a fully authenticated session.
func (e *testEnv) loginAs(email, password string) *apiClient {
	e.t.Helper()
	c := e.client()
	var out map[string]any
	if status := c.doJSON(http.MethodPost, "/api/login", map[string]string{"email": email, "password": password}, &out); status != http.StatusOK {
		e.t.Fatalf("login %s: status %d", email, status)
	}
	return c
}

type apiClient struct {
	t    *testing.T
	base string
	http *http.Client
}

// do sends a request with an optional JSON body and returns the response
// with its body read.
func (c *apiClient) do(method, path string, body any) (*http.Response, []byte) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *apiClient) send(req *http.Request) (*http.Response, []byte) {
	c.t.Helper()
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	return resp, data
}

// doJSON is do plus decoding the response into out when out is non-nil.
func (c *apiClient) doJSON(method, path string, body, out any) int {
	c.t.Helper()
	resp, data := c.do(method, path, body)
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			c.t.Fatalf("%s %s: decode %q: %v", method, path, data, err)
		}
	}
	return resp.StatusCode
}

// postForm submits an urlencoded form.
func (c *apiClient) postForm(path string, form url.Values) (*http.Response, []byte) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(req)
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// createPost creates a post through the API and returns it.
func createPost(t *testing.T, c *apiClient, body map[string]any) models.Post {
	t.Helper()
	var p models.Post
	if status := c.doJSON(http.MethodPost, "/api/posts", body, &p); status != http.StatusCreated {
		t.Fatalf("create post: status %d", status)
	}
	return p
}

// withSession attaches a session to a request for direct handler calls.
func withSession(r *http.Request, data *session.Data) *http.Request {
	return r.WithContext(middleware.WithSession(r.Context(), data))
}

func testSession(role models.Role) *session.Data {
	return &session.Data{
		UserID:    uuid.New(),
		Email:     "staff@example.com",
		Name:      "Staff",
		Role:      role,
		TwoFADone: true,
		CreatedAt: time.Now(),
	}
}
