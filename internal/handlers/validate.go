// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"inkpress/internal/models"
)

// Validation limits for category and user fields.
const (
	maxCategoryNameLen = 100
	maxCategoryDescLen = 1_000
	maxCategorySlugLen = 120
	maxUserNameLen     = 100
	maxEmailLen        = 254
	minPasswordLen     = 8
	maxPasswordLen     = 72 // bcrypt ignores anything longer
)

// validateCategory checks category fields and returns the first error found.
func validateCategory(name, slug, description string) string {
	if strings.TrimSpace(name) == "" {
		return "Name is required"
	}
	if utf8.RuneCountInString(name) > maxCategoryNameLen {
		return "Name is too long (max 100 characters)"
	}
	if slug == "" {
		return "Slug must contain letters or digits"
	}
	if utf8.RuneCountInString(slug) > maxCategorySlugLen {
		return "Slug is too long (max 120 characters)"
	}
	if utf8.RuneCountInString(description) > maxCategoryDescLen {
		return "Description is too long (max 1,000 characters)"
	}
	return ""
}

// validateRegistration checks a new account and returns the first error
// found.
func validateRegistration(name, email, password string, role models.Role) string {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || password == "" {
		return "All fields are required"
	}
	if msg := validateProfile(name, email); msg != "" {
		return msg
	}
	if msg := validatePassword(password); msg != "" {
		return msg
	}
	if role != "" && !role.Valid() {
		return "Invalid role"
	}
	return ""
}

// validateProfile checks name and email.
func validateProfile(name, email string) string {
	if utf8.RuneCountInString(name) > maxUserNameLen {
		return "Name is too long (max 100 characters)"
	}
	if len(email) > maxEmailLen {
		return "Email is too long"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "Invalid email address"
	}
	return ""
}

func validatePassword(password string) string {
	if len(password) < minPasswordLen {
		return "Password must be at least 8 characters long"
	}
	if len(password) > maxPasswordLen {
		return "Password is too long (max 72 bytes)"
	}
	return ""
}
