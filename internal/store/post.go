// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"inkpress/internal/models"
	"inkpress/internal/query"
)

// PostStore handles post persistence, including the post_categories links
// and the author/category population used by every read.
type PostStore struct {
	db *sql.DB
}

// NewPostStore creates a new PostStore with the given database connection.
func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db}
}

const postSelect = `
	SELECT p.id, p.title, p.content, p.slug, p.excerpt, p.featured_image, p.tags::text,
	       p.author_id, COALESCE(u.name, ''), p.status, p.deleted, p.deleted_at,
	       p.created_at, p.updated_at
	FROM posts p
	LEFT JOIN users u ON u.id = p.author_id`

func scanPost(row scanner) (*models.Post, error) {
	var (
		p    models.Post
		tags string
	)
	err := row.Scan(
		&p.ID, &p.Title, &p.Content, &p.Slug, &p.Excerpt, &p.FeaturedImage, &tags,
		&p.AuthorID, &p.Author.Name, &p.Status, &p.Deleted, &p.DeletedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	p.Author.ID = p.AuthorID
	p.ApplyDefaults()
	return &p, nil
}

// List returns one page of posts matching f, newest first, together with
// the total number of matches.
func (s *PostStore) List(ctx context.Context, f query.PostFilter, page query.Page) ([]models.Post, int, error) {
	where, args := f.Where(1)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts p WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	n := len(args)
	args = append(args, page.Limit, page.Skip())
	rows, err := s.db.QueryContext(ctx, postSelect+`
		WHERE `+where+`
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $`+fmt.Sprint(n+1)+` OFFSET $`+fmt.Sprint(n+2), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}

	if err := s.populateCategories(ctx, posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// FindByID retrieves a post in any state. Returns nil if not found.
func (s *PostStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.findOne(ctx, "find post by id", `WHERE p.id = $1`, id)
}

// FindPublishedBySlug retrieves a published, non-trashed post for public
// rendering. Returns nil if no such post exists.
func (s *PostStore) FindPublishedBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.findOne(ctx, "find post by slug",
		`WHERE p.slug = $1 AND p.status = 'published' AND p.deleted = FALSE`, slug)
}

func (s *PostStore) findOne(ctx context.Context, op, where string, arg any) (*models.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, postSelect+" "+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	one := []models.Post{*p}
	if err := s.populateCategories(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// populateCategories attaches {id, name, slug} refs to each post with a
// single query over post_categories.
func (s *PostStore) populateCategories(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(posts))
	index := make(map[uuid.UUID]int, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
		index[posts[i].ID] = i
		posts[i].Categories = []models.CategoryRef{}
		posts[i].CategoryIDs = nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT pc.post_id, c.id, c.name, c.slug
		FROM post_categories pc
		JOIN categories c ON c.id = pc.category_id
		WHERE pc.post_id = ANY($1::uuid[])
		ORDER BY c.name ASC
	`, uuidStrings(ids))
	if err != nil {
		return fmt.Errorf("load post categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			postID uuid.UUID
			ref    models.CategoryRef
		)
		if err := rows.Scan(&postID, &ref.ID, &ref.Name, &ref.Slug); err != nil {
			return fmt.Errorf("scan post category: %w", err)
		}
		if i, ok := index[postID]; ok {
			posts[i].Categories = append(posts[i].Categories, ref)
			posts[i].CategoryIDs = append(posts[i].CategoryIDs, ref.ID)
		}
	}
	return rows.Err()
}

// Create inserts p and its category links in one transaction and returns
// the stored, populated post. A taken slug yields ErrDuplicate.
func (s *PostStore) Create(ctx context.Context, p *models.Post) (*models.Post, error) {
	p.ApplyDefaults()

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("post id: %w", err)
	}
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO posts (id, title, content, slug, excerpt, featured_image, tags,
		                   author_id, status, deleted, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::text::jsonb, $8, $9, $10, $11)
	`, id, p.Title, p.Content, p.Slug, p.Excerpt, p.FeaturedImage, string(tags),
		p.AuthorID, p.Status, p.Deleted, p.DeletedAt,
	)
	if err != nil {
		return nil, wrapErr("create post", err)
	}

	if err := linkCategories(ctx, tx, id, p.CategoryIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit post: %w", err)
	}

	return s.FindByID(ctx, id)
}

// Update writes the editable fields of p and replaces its category links.
// Returns nil if the post does not exist and ErrDuplicate if the new slug
// is taken. Trash state is changed only through SetDeleted.
func (s *PostStore) Update(ctx context.Context, p *models.Post) (*models.Post, error) {
	p.ApplyDefaults()

	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE posts SET
			title = $1, content = $2, slug = $3, excerpt = $4, featured_image = $5,
			tags = $6::text::jsonb, status = $7, updated_at = NOW()
		WHERE id = $8
	`, p.Title, p.Content, p.Slug, p.Excerpt, p.FeaturedImage, string(tags), p.Status, p.ID)
	if err != nil {
		return nil, wrapErr("update post", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("update post rows: %w", err)
	} else if n == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM post_categories WHERE post_id = $1`, p.ID); err != nil {
		return nil, fmt.Errorf("clear post categories: %w", err)
	}
	if err := linkCategories(ctx, tx, p.ID, p.CategoryIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit post: %w", err)
	}

	return s.FindByID(ctx, p.ID)
}

// linkCategories inserts post_categories rows, ignoring ids that do not
// name an existing category.
func linkCategories(ctx context.Context, tx *sql.Tx, postID uuid.UUID, categoryIDs []uuid.UUID) error {
	if len(categoryIDs) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO post_categories (post_id, category_id)
		SELECT $1, c.id FROM categories c WHERE c.id = ANY($2::uuid[])
		ON CONFLICT DO NOTHING
	`, postID, uuidStrings(categoryIDs))
	if err != nil {
		return fmt.Errorf("link post categories: %w", err)
	}
	return nil
}

// SetDeleted moves a post into or out of the trash. at is stored as
// deleted_at and must be nil when deleted is false. Reports whether the
// post exists.
func (s *PostStore) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, at *time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE posts SET deleted = $1, deleted_at = $2, updated_at = NOW() WHERE id = $3
	`, deleted, at, id)
	if err != nil {
		return false, fmt.Errorf("set post deleted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set post deleted rows: %w", err)
	}
	return n > 0, nil
}

// Delete permanently removes a post. Reports whether a row was deleted.
func (s *PostStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete post rows: %w", err)
	}
	return n > 0, nil
}

// TagCounts returns every tag used by an active post with its usage count,
// ordered by tag name.
func (s *PostStore) TagCounts(ctx context.Context) ([]models.TagCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag, COUNT(*)
		FROM posts p, jsonb_array_elements_text(p.tags) AS tag
		WHERE p.deleted = FALSE
		GROUP BY tag
		ORDER BY tag ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("tag counts: %w", err)
	}
	defer rows.Close()

	tags := []models.TagCount{}
	for rows.Next() {
		var tc models.TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan tag count: %w", err)
		}
		tags = append(tags, tc)
	}
	return tags, rows.Err()
}

// Stats returns dashboard counters.
func (s *PostStore) Stats(ctx context.Context) (models.PostStats, error) {
	var st models.PostStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE NOT deleted AND status = 'published'),
			COUNT(*) FILTER (WHERE NOT deleted AND status = 'draft'),
			COUNT(*) FILTER (WHERE deleted)
		FROM posts
	`).Scan(&st.Published, &st.Drafts, &st.Trashed)
	if err != nil {
		return st, fmt.Errorf("post stats: %w", err)
	}
	return st, nil
}
