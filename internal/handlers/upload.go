// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"inkpress/internal/apperr"
	"inkpress/internal/imaging"
	"inkpress/internal/storage"
)

const (
	// maxUploadSize is the maximum allowed file upload size (10 MB).
	maxUploadSize = 10 << 20

	// multipartOverhead leaves room for boundaries and part headers.
	multipartOverhead = 64 << 10
)

const unsupportedTypeMsg = "File type not supported. Please upload an image file (JPEG, PNG, GIF, WEBP)"

// Upload serves POST /api/upload.
type Upload struct {
	backend storage.Backend
}

// NewUpload creates the upload handler over backend.
func NewUpload(backend storage.Backend) *Upload {
	return &Upload{backend: backend}
}

type uploadResponse struct {
	Success      bool   `json:"success"`
	FileURL      string `json:"fileUrl"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// Upload accepts a multipart "file" field holding a JPEG, PNG, GIF or WebP
// image. The type is sniffed from the content and the image must decode.
// Wide JPEG/PNG/WebP images also get a JPEG thumbnail.
func (u *Upload) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, apperr.Validation("File too large (max 10 MB)", ""))
			return
		}
		writeError(w, r, apperr.Validation("No file uploaded", ""))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apperr.Validation("No file uploaded", ""))
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		writeError(w, r, apperr.Validation("File too large (max 10 MB)", ""))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to upload file", err))
		return
	}
	if len(data) > maxUploadSize {
		writeError(w, r, apperr.Validation("File too large (max 10 MB)", ""))
		return
	}

	info, err := imaging.Inspect(data)
	if errors.Is(err, imaging.ErrUnsupportedType) {
		writeError(w, r, apperr.Validation(unsupportedTypeMsg, ""))
		return
	}
	if errors.Is(err, imaging.ErrTooManyPixels) {
		writeError(w, r, apperr.Validation("Image dimensions are too large", ""))
		return
	}
	if err != nil {
		writeError(w, r, apperr.Validation("File is not a valid image", err.Error()))
		return
	}

	id := uuid.NewString()
	key := id + info.Extension
	if err := u.backend.Put(r.Context(), key, info.ContentType, bytes.NewReader(data), int64(len(data))); err != nil {
		writeError(w, r, apperr.Internal("Failed to upload file", err))
		return
	}

	resp := uploadResponse{Success: true, FileURL: u.backend.URL(key)}

	if imaging.WantsThumbnail(info, imaging.ThumbMaxWidth) {
		if url, err := u.putThumbnail(r, id, data); err != nil {
			// The original is stored; a missing thumbnail is not fatal.
			slog.Warn("thumbnail generation failed", "key", key, "error", err)
		} else {
			resp.ThumbnailURL = url
		}
	}

	slog.Info("file uploaded",
		"key", key,
		"content_type", info.ContentType,
		"size", len(data),
		"width", info.Width,
		"height", info.Height,
	)
	writeJSON(w, http.StatusOK, resp)
}

func (u *Upload) putThumbnail(r *http.Request, id string, data []byte) (string, error) {
	thumb, err := imaging.Thumbnail(data, imaging.ThumbMaxWidth)
	if err != nil || thumb == nil {
		return "", err
	}
	key := id + "_thumb.jpg"
	if err := u.backend.Put(r.Context(), key, "image/jpeg", bytes.NewReader(thumb), int64(len(thumb))); err != nil {
		return "", err
	}
	return u.backend.URL(key), nil
}
