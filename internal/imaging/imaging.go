// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imaging validates uploaded images and renders JPEG thumbnails.
// Only JPEG, PNG, GIF and WebP are accepted; the type is decided by the
// file's bytes, never by its name.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	// ThumbMaxWidth is the width thumbnails are scaled down to.
	ThumbMaxWidth = 400

	thumbQuality = 80

	// maxImagePixels caps decoded size: 10000x10000 RGBA is ~400 MB.
	maxImagePixels = 100_000_000
)

var (
	// ErrUnsupportedType is returned for content that is not an accepted image type.
	ErrUnsupportedType = errors.New("unsupported image type")
	// ErrTooManyPixels is returned for images whose dimensions exceed the decode cap.
	ErrTooManyPixels = errors.New("image dimensions too large")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// GIF is left alone to keep animation.
var thumbable = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Info describes a validated image.
type Info struct {
	ContentType string
	Extension   string
	Width       int
	Height      int
}

// DetectType sniffs data and returns its MIME type if it is an accepted
// image type.
func DetectType(data []byte) (string, error) {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	ct := http.DetectContentType(head)
	if _, ok := extensions[ct]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ct)
	}
	return ct, nil
}

// Extension returns the file extension for an accepted content type.
func Extension(contentType string) string {
	return extensions[contentType]
}

// Inspect checks that data is an accepted image type and fully decodes.
func Inspect(data []byte) (*Info, error) {
	ct, err := DetectType(data)
	if err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	return &Info{
		ContentType: ct,
		Extension:   extensions[ct],
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, nil
}

// WantsThumbnail reports whether a thumbnail should be generated for info.
func WantsThumbnail(info *Info, maxWidth int) bool {
	return thumbable[info.ContentType] && info.Width > maxWidth
}

// Thumbnail scales data down to maxWidth, keeping the aspect ratio, and
// encodes the result as JPEG. Returns nil if the image is already narrow
// enough.
func Thumbnail(data []byte, maxWidth int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxWidth {
		return nil, nil
	}

	height := max(1, bounds.Dy()*maxWidth/bounds.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
