package posts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"inkpress/internal/apperr"
	"inkpress/internal/models"
	"inkpress/internal/query"
	"inkpress/internal/store"
)

// memRepo is an in-memory Repository with the same unique-slug and
// ordering behavior as the PostgreSQL store.
type memRepo struct {
	mu    sync.Mutex
	posts map[uuid.UUID]*models.Post
	seq   int
	fail  error
}

func newMemRepo() *memRepo {
	return &memRepo{posts: make(map[uuid.UUID]*models.Post)}
}

func (r *memRepo) slugTaken(slug string, except uuid.UUID) bool {
	for id, p := range r.posts {
		if id != except && p.Slug == slug {
			return true
		}
	}
	return false
}

func (r *memRepo) List(_ context.Context, f query.PostFilter, page query.Page) ([]models.Post, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, 0, r.fail
	}

	var matched []models.Post
	for _, p := range r.posts {
		if f.Matches(p) {
			matched = append(matched, *p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})

	total := len(matched)
	start := min(page.Skip(), total)
	end := min(start+page.Limit, total)
	return matched[start:end], total, nil
}

func (r *memRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) FindPublishedBySlug(_ context.Context, slug string) (*models.Post, error) {
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

func (r *memRepo) Create(_ context.Context, p *models.Post) (*models.Post, error) {
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

func (r *memRepo) Update(_ context.Context, p *models.Post) (*models.Post, error) {
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

func (r *memRepo) SetDeleted(_ context.Context, id uuid.UUID, deleted bool, at *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return false, nil
	}
	p.Deleted = deleted
	p.DeletedAt = at
	return true, nil
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return false, nil
	}
	delete(r.posts, id)
	return true, nil
}

// recordingCache records invalidated slugs.
type recordingCache struct {
	pages     []string
	homepages int
}

func (c *recordingCache) InvalidatePage(_ context.Context, slug string) {
	c.pages = append(c.pages, slug)
}

func (c *recordingCache) InvalidateHomepage(context.Context) {
	c.homepages++
}

var fixedNow = time.UnixMilli(1767225600123)

func newTestService() (*Service, *memRepo, *recordingCache) {
	repo := newMemRepo()
	cache := &recordingCache{}
	svc := NewService(repo, cache)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, cache
}

func mustCreate(t *testing.T, svc *Service, in Input) *models.Post {
	t.Helper()
	p, err := svc.Create(context.Background(), uuid.New(), in)
	if err != nil {
		t.Fatalf("Create(%q): %v", in.Title, err)
	}
	return p
}

func defaultList(t *testing.T, svc *Service, raw query.RawParams) *ListResult {
	t.Helper()
	q, err := query.ParsePostList(raw)
	if err != nil {
		t.Fatalf("ParsePostList: %v", err)
	}
	res, err := svc.List(context.Background(), q)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	return res
}

func TestCreate_TitleBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		wantErr   bool
		wantTitle string
	}{
		{name: "two characters", title: "ab", wantErr: true},
		{name: "three characters", title: "abc"},
		{name: "padded two characters", title: "  ab  ", wantErr: true},
		{name: "trailing space two characters", title: "ab ", wantErr: true},
		{name: "padded three characters", title: " abc ", wantTitle: "abc"},
		{name: "three runes multibyte", title: "日本語"},
		{name: "two hundred characters", title: strings.Repeat("a", 200)},
		{name: "two hundred one characters", title: strings.Repeat("a", 201), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService()
			p, err := svc.Create(context.Background(), uuid.New(), Input{Title: tt.title, Content: "body"})
			if tt.wantErr {
				if !apperr.Is(err, apperr.KindValidation) {
					t.Fatalf("err = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantTitle != "" && p.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", p.Title, tt.wantTitle)
			}
		})
	}
}

func TestCreate_MissingFields(t *testing.T) {
	svc, _, _ := newTestService()
	for _, in := range []Input{
		{Content: "body"},
		{Title: "Valid title"},
		{Title: "   ", Content: "body"},
	} {
		_, err := svc.Create(context.Background(), uuid.New(), in)
		var appErr *apperr.Error
		if !errors.As(err, &appErr) || appErr.Message != "Missing required fields" {
			t.Errorf("Create(%+v) err = %v, want Missing required fields", in, err)
		}
	}
}

func TestCreate_Defaults(t *testing.T) {
	svc, _, _ := newTestService()
	p := mustCreate(t, svc, Input{Title: "Hello World", Content: "body", Tags: []string{" go ", "", "go", "web"}})

	if p.Status != models.PostStatusDraft {
		t.Errorf("status = %q, want draft", p.Status)
	}
	if p.Deleted || p.DeletedAt != nil {
		t.Errorf("new post should be active: deleted=%v deletedAt=%v", p.Deleted, p.DeletedAt)
	}
	if len(p.Tags) != 2 || p.Tags[0] != "go" || p.Tags[1] != "web" {
		t.Errorf("tags = %v, want [go web]", p.Tags)
	}
}

func TestCreate_InvalidStatus(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Create(context.Background(), uuid.New(), Input{Title: "Hello", Content: "x", Status: "archived"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestCreate_SlugPolicy(t *testing.T) {
	stamp := fmt.Sprint(fixedNow.UnixMilli())

	tests := []struct {
		name  string
		input Input
		want  string
	}{
		{
			name:  "derived from title",
			input: Input{Title: "Hello, World!", Content: "x"},
			want:  "hello-world-" + stamp,
		},
		{
			name:  "client slug normalised and stamped",
			input: Input{Title: "Anything", Content: "x", Slug: "My Custom Slug"},
			want:  "my-custom-slug-" + stamp,
		},
		{
			name:  "already stamped slug kept",
			input: Input{Title: "Anything", Content: "x", Slug: "kept-" + stamp[:8] + "99999"},
			want:  "kept-" + stamp[:8] + "99999",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService()
			p := mustCreate(t, svc, tt.input)
			if p.Slug != tt.want {
				t.Errorf("slug = %q, want %q", p.Slug, tt.want)
			}
		})
	}
}

func TestSlugLength(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	atLimit := strings.Repeat("a", MaxSlugLen)
	p, err := svc.Create(ctx, uuid.New(), Input{Title: "Hello", Content: "x", Slug: atLimit})
	if err != nil {
		t.Fatalf("slug of %d characters: %v", MaxSlugLen, err)
	}
	if len(p.Slug) > 300 {
		t.Errorf("stamped slug has %d characters, column holds 300", len(p.Slug))
	}

	tooLong := strings.Repeat("a", MaxSlugLen+1)
	_, err = svc.Create(ctx, uuid.New(), Input{Title: "Hello", Content: "x", Slug: tooLong})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("create with %d characters: err = %v, want validation error", MaxSlugLen+1, err)
	}
	if _, err := svc.Update(ctx, p.ID.String(), Patch{Slug: &tooLong}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("update with %d characters: err = %v, want validation error", MaxSlugLen+1, err)
	}

	repo.mu.Lock()
	n := len(repo.posts)
	repo.mu.Unlock()
	if n != 1 {
		t.Errorf("stored posts = %d, want 1", n)
	}
}

func TestCreate_DuplicateSlugConflict(t *testing.T) {
	svc, _, _ := newTestService()
	first := mustCreate(t, svc, Input{Title: "Same title", Content: "x"})

	_, err := svc.Create(context.Background(), uuid.New(), Input{Title: "Same title", Content: "y"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if !strings.Contains(err.Error(), "Please use a different slug") {
		t.Errorf("err = %q", err)
	}

	if _, err := svc.Get(context.Background(), first.ID.String()); err != nil {
		t.Errorf("first post no longer retrievable: %v", err)
	}
}

func TestTrashRecover(t *testing.T) {
	svc, _, cache := newTestService()
	ctx := context.Background()
	p := mustCreate(t, svc, Input{Title: "Trash me", Content: "x"})

	if err := svc.Trash(ctx, p.ID.String()); err != nil {
		t.Fatalf("Trash: %v", err)
	}

	got, err := svc.Get(ctx, p.ID.String())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Deleted || got.DeletedAt == nil {
		t.Fatalf("after trash: deleted=%v deletedAt=%v", got.Deleted, got.DeletedAt)
	}
	if res := defaultList(t, svc, query.RawParams{}); res.Total != 0 {
		t.Errorf("default listing total = %d, want 0 after trash", res.Total)
	}
	if res := defaultList(t, svc, query.RawParams{Deleted: "true"}); res.Total != 1 {
		t.Errorf("trash listing total = %d, want 1", res.Total)
	}

	if err := svc.Recover(ctx, p.ID.String()); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	got, _ = svc.Get(ctx, p.ID.String())
	if got.Deleted || got.DeletedAt != nil {
		t.Errorf("after recover: deleted=%v deletedAt=%v", got.Deleted, got.DeletedAt)
	}
	if res := defaultList(t, svc, query.RawParams{}); res.Total != 1 {
		t.Errorf("default listing total = %d, want 1 after recover", res.Total)
	}

	// create + trash + recover
	if cache.homepages != 3 {
		t.Errorf("homepage invalidations = %d, want 3", cache.homepages)
	}
}

func TestPurge(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	active := mustCreate(t, svc, Input{Title: "Active post", Content: "x"})
	trashed := mustCreate(t, svc, Input{Title: "Trashed post", Content: "x"})
	if err := svc.Trash(ctx, trashed.ID.String()); err != nil {
		t.Fatalf("Trash: %v", err)
	}

	for _, p := range []*models.Post{active, trashed} {
		if err := svc.Purge(ctx, p.ID.String()); err != nil {
			t.Fatalf("Purge(%s): %v", p.Title, err)
		}
		if _, err := svc.Get(ctx, p.ID.String()); !apperr.Is(err, apperr.KindNotFound) {
			t.Errorf("Get after purge: err = %v, want not found", err)
		}
	}
}

func TestNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	for _, id := range []string{"not-a-uuid", uuid.NewString(), ""} {
		if err := svc.Trash(ctx, id); !apperr.Is(err, apperr.KindNotFound) {
			t.Errorf("Trash(%q) err = %v, want not found", id, err)
		}
		if err := svc.Recover(ctx, id); !apperr.Is(err, apperr.KindNotFound) {
			t.Errorf("Recover(%q) err = %v, want not found", id, err)
		}
		if err := svc.Purge(ctx, id); !apperr.Is(err, apperr.KindNotFound) {
			t.Errorf("Purge(%q) err = %v, want not found", id, err)
		}
		if _, err := svc.Update(ctx, id, Patch{}); !apperr.Is(err, apperr.KindNotFound) {
			t.Errorf("Update(%q) err = %v, want not found", id, err)
		}
	}
}

func TestList_PaginationAndSearch(t *testing.T) {
	svc, _, _ := newTestService()
	for i := range 12 {
		mustCreate(t, svc, Input{Title: fmt.Sprintf("Post number %d", i), Content: "x", Slug: fmt.Sprintf("p%d", i)})
	}
	mustCreate(t, svc, Input{Title: "Regex a.b*c tricks", Content: "x"})
	mustCreate(t, svc, Input{Title: "Regex aXbbc tricks", Content: "x"})

	res := defaultList(t, svc, query.RawParams{Page: "2", Limit: "5"})
	if res.Total != 14 || res.TotalPages != 3 || len(res.Posts) != 5 {
		t.Errorf("page 2: total=%d totalPages=%d len=%d", res.Total, res.TotalPages, len(res.Posts))
	}

	res = defaultList(t, svc, query.RawParams{Limit: "1000"})
	if res.Limit != 50 {
		t.Errorf("limit = %d, want 50", res.Limit)
	}

	res = defaultList(t, svc, query.RawParams{Search: "a.b*c"})
	if res.Total != 1 || res.Posts[0].Title != "Regex a.b*c tricks" {
		t.Errorf("search a.b*c: total=%d posts=%v", res.Total, res.Posts)
	}

	// Newest first.
	res = defaultList(t, svc, query.RawParams{Limit: "1"})
	if res.Posts[0].Title != "Regex aXbbc tricks" {
		t.Errorf("first post = %q, want newest", res.Posts[0].Title)
	}
}

func TestList_StoreFailure(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.fail = errors.New("connection reset")

	q, _ := query.ParsePostList(query.RawParams{})
	_, err := svc.List(context.Background(), q)
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("err = %v, want internal", err)
	}
	if !errors.Is(err, repo.fail) {
		t.Errorf("cause not wrapped: %v", err)
	}
}

func TestUpdate(t *testing.T) {
	svc, _, cache := newTestService()
	ctx := context.Background()
	p := mustCreate(t, svc, Input{Title: "Original title", Content: "x"})
	other := mustCreate(t, svc, Input{Title: "Other post", Content: "x"})

	title := "New title"
	status := models.PostStatusPublished
	newSlug := "Fresh Slug"
	updated, err := svc.Update(ctx, p.ID.String(), Patch{Title: &title, Status: &status, Slug: &newSlug})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != title || updated.Status != status || updated.Slug != "fresh-slug" {
		t.Errorf("updated = %+v", updated)
	}
	if updated.Content != "x" {
		t.Errorf("content changed by partial update: %q", updated.Content)
	}
	if !contains(cache.pages, p.Slug) || !contains(cache.pages, "fresh-slug") {
		t.Errorf("invalidated pages = %v", cache.pages)
	}

	short := "ab"
	if _, err := svc.Update(ctx, p.ID.String(), Patch{Title: &short}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("short title err = %v", err)
	}

	bad := models.PostStatus("archived")
	if _, err := svc.Update(ctx, p.ID.String(), Patch{Status: &bad}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("bad status err = %v", err)
	}

	taken := other.Slug
	if _, err := svc.Update(ctx, p.ID.String(), Patch{Slug: &taken}); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("duplicate slug err = %v", err)
	}
}

func TestGetPublished(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	draft := mustCreate(t, svc, Input{Title: "Draft post", Content: "x"})
	pub := mustCreate(t, svc, Input{Title: "Live post", Content: "x", Status: models.PostStatusPublished})

	if _, err := svc.GetPublished(ctx, draft.Slug); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("draft visible publicly: err = %v", err)
	}
	if _, err := svc.GetPublished(ctx, pub.Slug); err != nil {
		t.Errorf("published post not found: %v", err)
	}

	if err := svc.Trash(ctx, pub.ID.String()); err != nil {
		t.Fatalf("Trash: %v", err)
	}
	if _, err := svc.GetPublished(ctx, pub.Slug); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("trashed post visible publicly: err = %v", err)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
