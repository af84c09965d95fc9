// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage persists uploaded files. Backends write flat object keys
// such as "<uuid>.jpg" and report the public URL clients should use.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrInvalidKey is returned for keys that are empty or contain path
// separators or parent references.
var ErrInvalidKey = errors.New("storage: invalid key")

// Backend stores uploaded objects.
type Backend interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// ValidKey reports whether key is a single safe path element.
func ValidKey(key string) bool {
	return key != "" && key != "." && key != ".." &&
		!strings.ContainsAny(key, `/\`) && !strings.Contains(key, "..")
}
