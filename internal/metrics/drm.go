// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	drmOutcomeSucceeded = "succeeded"
	drmOutcomeFailed    = "failed"
	drmOutcomeCancelled = "cancelled"

	drmReasonServer    = "server"
	drmReasonTimeout   = "timeout"
	drmReasonTransport = "transport"
	drmReasonNone      = "none"
)

var (
	drmExchangeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playerplatform_drm_exchange_total",
		Help: "Resolved DRM exchanges by outcome and failure reason",
	}, []string{"outcome", "reason"})

	drmExchangeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "playerplatform_drm_exchange_duration_seconds",
		Help:    "Time from DRM request issue to resolution",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
	}, []string{"outcome"})

	drmRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playerplatform_drm_rejected_total",
		Help: "DRM requests or responses rejected before affecting an exchange",
	}, []string{"reason"})
)

// ObserveDRMExchange records a resolved exchange.
func ObserveDRMExchange(outcome, reason string, seconds float64) {
	o := normalizeDRMOutcome(outcome)
	drmExchangeTotal.WithLabelValues(o, normalizeDRMReason(reason)).Inc()
	drmExchangeDuration.WithLabelValues(o).Observe(seconds)
}

// IncDRMRejected records a concurrent request or a stale response.
func IncDRMRejected(reason string) {
	switch reason {
	case "concurrent", "stale", "closed":
	default:
		reason = "unknown"
	}
	drmRejectedTotal.WithLabelValues(reason).Inc()
}

// DRMExchangeCounter exposes the raw counter for tests.
func DRMExchangeCounter(outcome, reason string) prometheus.Counter {
	return drmExchangeTotal.WithLabelValues(normalizeDRMOutcome(outcome), normalizeDRMReason(reason))
}

// DRMRejectedCounter exposes the raw counter for tests.
func DRMRejectedCounter(reason string) prometheus.Counter {
	return drmRejectedTotal.WithLabelValues(reason)
}

func normalizeDRMOutcome(outcome string) string {
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case drmOutcomeSucceeded, drmOutcomeFailed, drmOutcomeCancelled:
		return strings.ToLower(strings.TrimSpace(outcome))
	default:
		return "unknown"
	}
}

func normalizeDRMReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case drmReasonServer, drmReasonTimeout, drmReasonTransport, drmReasonNone:
		return strings.ToLower(strings.TrimSpace(reason))
	default:
		return "unknown"
	}
}
