// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"inkpress/internal/apperr"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

// writeError translates err into the JSON error shape. Application errors
// keep their message; anything else is logged and answered as a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal("Internal server error", err)
	}

	body := errorBody{Error: appErr.Message, Details: appErr.Details}
	if appErr.Kind == apperr.KindInternal {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		if appErr.Err != nil && body.Details == "" {
			body.Details = appErr.Err.Error()
		}
	}

	writeJSON(w, appErr.Kind.Status(), body)
}

// decodeJSON reads a JSON body into dst. Malformed bodies are validation
// errors.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("Invalid request body", err.Error())
	}
	return nil
}
