// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package event is the typed, serializable payload model for player events.
//
// Every event is a tagged variant of VideoEventData. The Event interface is
// sealed: the variants in this package are the complete set, and consumers
// switch on the concrete type (or on Kind) exhaustively.
package event

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidPayload is returned when an event cannot be constructed or decoded
// because required fields are missing or malformed.
var ErrInvalidPayload = errors.New("invalid payload")

func invalid(field, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidPayload, field, reason)
}

// Kind discriminates event variants.
type Kind string

const (
	KindVideo           Kind = "video"
	KindAdBreakStart    Kind = "ad_break_start"
	KindAdBreakComplete Kind = "ad_break_complete"
	KindDrmFailure      Kind = "drm_failure"
	KindTelemetry       Kind = "telemetry"

	// KindAll is a subscription wildcard; no event carries it.
	KindAll Kind = "*"
)

// Kinds lists every concrete event kind.
func Kinds() []Kind {
	return []Kind{KindVideo, KindAdBreakStart, KindAdBreakComplete, KindDrmFailure, KindTelemetry}
}

// Valid reports whether k names a concrete event variant.
func (k Kind) Valid() bool {
	switch k {
	case KindVideo, KindAdBreakStart, KindAdBreakComplete, KindDrmFailure, KindTelemetry:
		return true
	}
	return false
}

// Event is the sealed sum type over all player events.
type Event interface {
	Kind() Kind
	Base() VideoEventData
	sealed()
}

// VideoEventData is the data every event shares: the owning playback session
// and the moment the signal was classified.
type VideoEventData struct {
	SessionID string
	Timestamp time.Time
}

// NewVideoEvent builds a bare video event.
func NewVideoEvent(sessionID string, at time.Time) (VideoEventData, error) {
	base := VideoEventData{SessionID: strings.TrimSpace(sessionID), Timestamp: normalizeTime(at)}
	if err := base.validate(); err != nil {
		return VideoEventData{}, err
	}
	return base, nil
}

func (v VideoEventData) Kind() Kind           { return KindVideo }
func (v VideoEventData) Base() VideoEventData { return v }
func (VideoEventData) sealed()                {}

// Equal reports field equality; timestamps compare by instant.
func (v VideoEventData) Equal(o VideoEventData) bool {
	return v.SessionID == o.SessionID && v.Timestamp.Equal(o.Timestamp)
}

func (v VideoEventData) validate() error {
	if v.SessionID == "" {
		return invalid("session_id", "required")
	}
	if v.Timestamp.IsZero() {
		return invalid("timestamp", "required")
	}
	return nil
}

// normalizeTime drops the monotonic reading and zone so the value survives
// serialization unchanged.
func normalizeTime(t time.Time) time.Time {
	return t.Round(0).UTC()
}
