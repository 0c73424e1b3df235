// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ManuGH/playerplatform/internal/log"
	"github.com/ManuGH/playerplatform/internal/player/drm"
	"github.com/ManuGH/playerplatform/internal/player/event"
	"github.com/ManuGH/playerplatform/internal/player/session"
	"github.com/ManuGH/playerplatform/internal/player/xua"
)

const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	resp := errorResponse{Error: code, RequestID: log.RequestIDFromContext(r.Context())}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps package sentinels to HTTP statuses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, event.ErrInvalidPayload):
		writeError(w, r, http.StatusUnprocessableEntity, "invalid_payload", err)
	case errors.Is(err, xua.ErrUnclassifiedSignal):
		writeError(w, r, http.StatusUnprocessableEntity, "unclassified_signal", err)
	case errors.Is(err, drm.ErrInvalidResponse):
		writeError(w, r, http.StatusUnprocessableEntity, "invalid_response", err)
	case errors.Is(err, drm.ErrConcurrentExchange):
		writeError(w, r, http.StatusConflict, "concurrent_exchange", err)
	case errors.Is(err, drm.ErrStaleResponse):
		writeError(w, r, http.StatusConflict, "stale_response", err)
	case errors.Is(err, session.ErrExists):
		writeError(w, r, http.StatusConflict, "session_exists", err)
	case errors.Is(err, session.ErrClosed), errors.Is(err, drm.ErrDelegateClosed):
		writeError(w, r, http.StatusGone, "session_closed", err)
	default:
		l := log.WithComponentFromContext(r.Context(), "api")
		l.Error().Err(err).Msg("request failed")
		writeError(w, r, http.StatusInternalServerError, "internal_error", nil)
	}
}

// decodeBody strictly decodes a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
