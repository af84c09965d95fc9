// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package query turns raw list parameters into a validated post filter and
// an offset-pagination descriptor. The same filter renders to a SQL
// predicate for the store and evaluates in memory for non-SQL repositories.
package query

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"inkpress/internal/apperr"
	"inkpress/internal/models"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 50
)

var digitsOnly = regexp.MustCompile(`^\d+$`)

// RawParams holds the list parameters exactly as they arrived.
type RawParams struct {
	Page    string
	Limit   string
	Status  string
	Search  string
	Deleted string
}

// FromValues extracts RawParams from a URL query string.
func FromValues(v url.Values) RawParams {
	return RawParams{
		Page:    v.Get("page"),
		Limit:   v.Get("limit"),
		Status:  v.Get("status"),
		Search:  v.Get("search"),
		Deleted: v.Get("deleted"),
	}
}

// Page describes one window of an offset-paginated result.
type Page struct {
	Number int
	Limit  int
}

// Skip returns the number of rows preceding this page.
func (p Page) Skip() int {
	return (p.Number - 1) * p.Limit
}

// TotalPages returns ceil(total/limit).
func (p Page) TotalPages(total int) int {
	if p.Limit <= 0 || total <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

// PostFilter selects posts. A zero Status matches any status and a nil
// CategoryID matches any category. Search is kept literal.
type PostFilter struct {
	Status     models.PostStatus
	Deleted    bool
	Search     string
	CategoryID *uuid.UUID
}

// PostListQuery is the validated result of ParsePostList.
type PostListQuery struct {
	Filter PostFilter
	Page   Page
}

// ParsePostList validates raw list parameters. Pagination parameters must
// be all digits and status must be draft or published; anything else is
// rejected with an InvalidParameter error. The limit is clamped to MaxLimit.
func ParsePostList(raw RawParams) (PostListQuery, error) {
	pageParam := raw.Page
	if pageParam == "" {
		pageParam = strconv.Itoa(DefaultPage)
	}
	limitParam := raw.Limit
	if limitParam == "" {
		limitParam = strconv.Itoa(DefaultLimit)
	}

	if !digitsOnly.MatchString(pageParam) || !digitsOnly.MatchString(limitParam) {
		return PostListQuery{}, apperr.InvalidParameter("Invalid pagination parameters")
	}

	page, err := strconv.Atoi(pageParam)
	if err != nil {
		return PostListQuery{}, apperr.InvalidParameter("Invalid pagination parameters")
	}
	if page < 1 {
		page = DefaultPage
	}

	limit, err := strconv.Atoi(limitParam)
	if err != nil {
		// All digits but out of range: the cap applies regardless.
		var numErr *strconv.NumError
		if !errors.As(err, &numErr) || numErr.Err != strconv.ErrRange {
			return PostListQuery{}, apperr.InvalidParameter("Invalid pagination parameters")
		}
		limit = MaxLimit
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	status := models.PostStatus(raw.Status)
	if status != "" && !status.Valid() {
		return PostListQuery{}, apperr.InvalidParameter("Invalid status parameter")
	}

	return PostListQuery{
		Filter: PostFilter{
			Status:  status,
			Deleted: raw.Deleted == "true",
			Search:  raw.Search,
		},
		Page: Page{Number: page, Limit: limit},
	}, nil
}

// likeEscaper neutralises the LIKE metacharacters. The backslash must be
// escaped first so that escapes added for % and _ survive.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes s for use inside a LIKE pattern with ESCAPE '\'.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Where renders the filter as a SQL predicate over the posts table aliased
// as p. Placeholders are numbered from firstArg; the returned args line up
// with them.
func (f PostFilter) Where(firstArg int) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", firstArg+len(args)-1)
	}

	clauses = append(clauses, "p.deleted = "+next(f.Deleted))

	if f.Status != "" {
		clauses = append(clauses, "p.status = "+next(string(f.Status)))
	}

	if f.Search != "" {
		ph := next("%" + EscapeLike(f.Search) + "%")
		clauses = append(clauses, fmt.Sprintf(`(p.title ILIKE %s ESCAPE '\' OR p.content ILIKE %s ESCAPE '\')`, ph, ph))
	}

	if f.CategoryID != nil {
		clauses = append(clauses,
			"EXISTS (SELECT 1 FROM post_categories pc WHERE pc.post_id = p.id AND pc.category_id = "+next(*f.CategoryID)+")")
	}

	return strings.Join(clauses, " AND "), args
}

// Matches evaluates the filter against a post in memory, with the same
// case-insensitive literal substring semantics as the SQL predicate.
func (f PostFilter) Matches(p *models.Post) bool {
	if p.Deleted != f.Deleted {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Title), needle) &&
			!strings.Contains(strings.ToLower(p.Content), needle) {
			return false
		}
	}
	if f.CategoryID != nil {
		found := false
		for _, id := range p.CategoryIDs {
			if id == *f.CategoryID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
