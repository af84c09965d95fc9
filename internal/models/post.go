// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// PostStatus represents the publishing state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// Valid reports whether s is a known publishing state.
func (s PostStatus) Valid() bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// AuthorRef is the populated form of a post's author.
type AuthorRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Post is a piece of content owned by its author. Deleted posts sit in the
// trash until they are recovered or purged.
type Post struct {
	ID            uuid.UUID     `json:"id"`
	Title         string        `json:"title"`
	Content       string        `json:"content"`
	Slug          string        `json:"slug"`
	Excerpt       string        `json:"excerpt,omitempty"`
	FeaturedImage string        `json:"featuredImage,omitempty"`
	Tags          []string      `json:"tags"`
	AuthorID      uuid.UUID     `json:"-"`
	Author        AuthorRef     `json:"author"`
	CategoryIDs   []uuid.UUID   `json:"-"`
	Categories    []CategoryRef `json:"categories"`
	Status        PostStatus    `json:"status"`
	Deleted       bool          `json:"deleted"`
	DeletedAt     *time.Time    `json:"deletedAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// IsPublished returns true if the post is in published status.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// IsVisible returns true if anonymous visitors may read the post.
func (p *Post) IsVisible() bool {
	return p.IsPublished() && !p.Deleted
}

// ApplyDefaults fills the fields every stored post must carry. Called by
// the store before each insert so rows never lack status or tags.
func (p *Post) ApplyDefaults() {
	if p.Status == "" {
		p.Status = PostStatusDraft
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Categories == nil {
		p.Categories = []CategoryRef{}
	}
	if !p.Deleted {
		p.DeletedAt = nil
	}
}

// TagCount is one entry of the tag overview: a tag and the number of
// active posts carrying it.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PostStats summarises post counts for the dashboard.
type PostStats struct {
	Published int `json:"published"`
	Drafts    int `json:"drafts"`
	Trashed   int `json:"trashed"`
}
