// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"

	"github.com/ManuGH/playerplatform/internal/log"
	"github.com/google/uuid"
)

// HeaderRequestID is the canonical header for request correlation.
const HeaderRequestID = "X-Request-ID"

// HeaderCorrelationID carries a caller-chosen id spanning several requests,
// e.g. one playback session across engine and DRM service calls.
const HeaderCorrelationID = "X-Correlation-ID"

// RequestID adds a unique ID to every request. The correlation id defaults
// to the request id when the caller sends none.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		corrID := r.Header.Get(HeaderCorrelationID)
		if corrID == "" {
			corrID = reqID
		}
		w.Header().Set(HeaderRequestID, reqID)
		w.Header().Set(HeaderCorrelationID, corrID)
		ctx := log.ContextWithRequestID(r.Context(), reqID)
		ctx = log.ContextWithCorrelationID(ctx, corrID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
