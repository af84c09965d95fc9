// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug provides URL-friendly slug generation from arbitrary strings.
package slug

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// nonAlphanumeric matches anything that isn't a letter, digit, space or hyphen.
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9\s-]`)
	// whitespace runs become a single hyphen.
	whitespace = regexp.MustCompile(`\s+`)
	// multipleHyphens collapses consecutive hyphens into one.
	multipleHyphens = regexp.MustCompile(`-{2,}`)
)

// Generate creates a URL-friendly slug from the given string.
// Example: "Hello, World! 2026" → "hello-world-2026"
func Generate(s string) string {
	result := strings.ToLower(strings.TrimSpace(s))
	result = nonAlphanumeric.ReplaceAllString(result, "")
	result = whitespace.ReplaceAllString(result, "-")
	result = multipleHyphens.ReplaceAllString(result, "-")
	return strings.Trim(result, "-")
}

// stampPrefixLen is how many leading digits of the millisecond timestamp
// identify a slug as already stamped. Eight digits change roughly every
// 28 hours.
const stampPrefixLen = 8

// WithTimestamp appends -<unix millis of now> to s unless s already
// carries a hyphen followed by the first eight digits of that timestamp.
// An empty s yields just the timestamp.
func WithTimestamp(s string, now time.Time) string {
	millis := strconv.FormatInt(now.UnixMilli(), 10)
	if strings.Contains(s, "-"+millis[:stampPrefixLen]) {
		return s
	}
	if s == "" {
		return millis
	}
	return s + "-" + millis
}
