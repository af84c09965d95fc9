// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// DefaultCategory is created by Seed when the categories table is empty.
const (
	DefaultCategoryName = "Uncategorized"
	DefaultCategorySlug = "uncategorized"
)

// Seed populates a development database. It only creates the default
// category; no user is seeded because the first registration becomes the
// administrator.
func Seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM categories").Scan(&count); err != nil {
		return fmt.Errorf("seed check categories: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("seed category id: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO categories (id, name, slug, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO NOTHING
	`, id, DefaultCategoryName, DefaultCategorySlug, "Posts without a more specific category")
	if err != nil {
		return fmt.Errorf("seed insert category: %w", err)
	}

	slog.Info("database seeded with default category", "slug", DefaultCategorySlug)
	return nil
}
