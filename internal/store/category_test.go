// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"inkpress/internal/models"
)

func createCategory(t *testing.T, s *CategoryStore, name string) *models.Category {
	t.Helper()
	slug := unique("cat")
	t.Cleanup(func() { cleanCategories(t, s.db, slug) })

	c, err := s.Create(context.Background(), &models.Category{Name: name, Slug: slug, Description: "about " + name})
	if err != nil {
		t.Fatalf("create category %q: %v", name, err)
	}
	return c
}

func TestCategoryStoreCRUD(t *testing.T) {
	db := testDB(t)
	s := NewCategoryStore(db)
	ctx := context.Background()

	c := createCategory(t, s, "Go")
	if c.ID == uuid.Nil {
		t.Fatal("expected an id")
	}
	if c.Description != "about Go" {
		t.Errorf("description: got %q", c.Description)
	}

	found, err := s.FindBySlug(ctx, c.Slug)
	if err != nil || found == nil || found.ID != c.ID {
		t.Fatalf("FindBySlug: got %+v, %v", found, err)
	}

	c.Name = "Golang"
	updated, err := s.Update(ctx, c)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Golang" {
		t.Errorf("Update name: got %q", updated.Name)
	}

	missing, err := s.Update(ctx, &models.Category{ID: uuid.New(), Name: "x", Slug: unique("missing")})
	if err != nil || missing != nil {
		t.Errorf("Update of missing category: got %+v, %v", missing, err)
	}

	ok, err := s.Delete(ctx, c.ID)
	if err != nil || !ok {
		t.Fatalf("Delete: got %v, %v", ok, err)
	}
	ok, err = s.Delete(ctx, c.ID)
	if err != nil || ok {
		t.Errorf("second Delete: got %v, %v", ok, err)
	}

	found, err = s.FindByID(ctx, c.ID)
	if err != nil || found != nil {
		t.Errorf("FindByID after delete: got %+v, %v", found, err)
	}
}

func TestCategoryStoreDuplicateSlug(t *testing.T) {
	db := testDB(t)
	s := NewCategoryStore(db)
	ctx := context.Background()

	first := createCategory(t, s, "First")

	_, err := s.Create(ctx, &models.Category{Name: "Second", Slug: first.Slug})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("Create with taken slug: got %v, want ErrDuplicate", err)
	}

	second := createCategory(t, s, "Second")
	second.Slug = first.Slug
	_, err = s.Update(ctx, second)
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("Update to taken slug: got %v, want ErrDuplicate", err)
	}
}

func TestCategoryStorePostCountAndCascade(t *testing.T) {
	db := testDB(t)
	categories := NewCategoryStore(db)
	posts := NewPostStore(db)
	ctx := context.Background()

	author := testAuthor(t, db)
	cat := createCategory(t, categories, "Counted")

	live, err := posts.Create(ctx, &models.Post{
		Title: "Live", Content: "body", Slug: unique("live"),
		AuthorID: author.ID, CategoryIDs: []uuid.UUID{cat.ID},
	})
	if err != nil {
		t.Fatalf("create live post: %v", err)
	}
	trashed, err := posts.Create(ctx, &models.Post{
		Title: "Trashed", Content: "body", Slug: unique("trashed"),
		AuthorID: author.ID, CategoryIDs: []uuid.UUID{cat.ID},
	})
	if err != nil {
		t.Fatalf("create trashed post: %v", err)
	}
	if _, err := posts.SetDeleted(ctx, trashed.ID, true, &trashed.UpdatedAt); err != nil {
		t.Fatalf("SetDeleted: %v", err)
	}

	all, err := categories.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var got *models.Category
	for i := range all {
		if all[i].ID == cat.ID {
			got = &all[i]
		}
	}
	if got == nil {
		t.Fatal("category missing from List")
	}
	if got.PostCount != 1 {
		t.Errorf("PostCount: got %d, want 1 (trashed posts excluded)", got.PostCount)
	}

	if _, err := categories.Delete(ctx, cat.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	p, err := posts.FindByID(ctx, live.ID)
	if err != nil || p == nil {
		t.Fatalf("post should survive category delete: %+v, %v", p, err)
	}
	if len(p.Categories) != 0 || len(p.CategoryIDs) != 0 {
		t.Errorf("expected category link removed, got %+v", p.Categories)
	}
}
