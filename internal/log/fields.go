// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldExchangeID    = "exchange_id"
	FieldBreakID       = "break_id"

	// Pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldKind      = "kind"
	FieldXuaType   = "xua_type"
	FieldSignal    = "signal"
	FieldObserver  = "observer"

	// DRM fields
	FieldMajor       = "major"
	FieldMinor       = "minor"
	FieldErrorDomain = "error_domain"
	FieldDeviceID    = "device_id"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
)
