// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package drm

import (
	"errors"
	"fmt"

	"github.com/ManuGH/playerplatform/internal/player/event"
)

var (
	// ErrConcurrentExchange is returned by Begin while an exchange is pending.
	// Callers may retry once the current exchange resolves.
	ErrConcurrentExchange = errors.New("drm exchange already pending")
	// ErrExchangeTimeout is the outcome error of an exchange that got no response in time.
	ErrExchangeTimeout = errors.New("drm exchange timed out")
	// ErrExchangeFailure classifies server, vendor and transport failures.
	ErrExchangeFailure = errors.New("drm exchange failed")
	// ErrExchangeCancelled is the outcome error of an exchange torn down while pending.
	ErrExchangeCancelled = errors.New("drm exchange cancelled")
	// ErrStaleResponse is returned for responses that do not match the pending exchange.
	ErrStaleResponse = errors.New("stale drm response")
	// ErrInvalidResponse is returned for responses carrying reserved or malformed codes.
	ErrInvalidResponse = errors.New("invalid drm response")
	// ErrDelegateClosed is returned once the owning session has been torn down.
	ErrDelegateClosed = errors.New("drm delegate closed")
)

// ExchangeError carries the codes of a failed exchange.
type ExchangeError struct {
	ExchangeID string
	Major      int
	Minor      int
	Cause      *event.DrmError
}

func (e *ExchangeError) Error() string {
	msg := fmt.Sprintf("drm exchange %s failed: major=%d minor=%d", e.ExchangeID, e.Major, e.Minor)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ExchangeError) Unwrap() error {
	return ErrExchangeFailure
}
