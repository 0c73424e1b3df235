// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the pipeline.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	SessionIDKey = "player.session_id"

	DRMExchangeIDKey = "drm.exchange_id"
	DRMDeviceIDKey   = "drm.device_id"
	DRMOutcomeKey    = "drm.outcome"
	DRMMajorKey      = "drm.major"
	DRMMinorKey      = "drm.minor"

	EventKindKey = "event.kind"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// DRMExchangeAttributes creates span attributes for an issued exchange.
func DRMExchangeAttributes(sessionID, exchangeID, deviceID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(SessionIDKey, sessionID),
		attribute.String(DRMExchangeIDKey, exchangeID),
	}
	if deviceID != "" {
		attrs = append(attrs, attribute.String(DRMDeviceIDKey, deviceID))
	}
	return attrs
}

// DRMOutcomeAttributes creates span attributes for a resolved exchange.
// Codes are only attached for failures.
func DRMOutcomeAttributes(outcome string, major, minor int, failed bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(DRMOutcomeKey, outcome)}
	if failed {
		attrs = append(attrs,
			attribute.Int(DRMMajorKey, major),
			attribute.Int(DRMMinorKey, minor),
		)
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
