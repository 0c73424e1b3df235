// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UnclassifiedSignalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playerplatform_unclassified_signals_total",
		Help: "Engine signals rejected by the telemetry classifier",
	})

	AdBreakRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playerplatform_ad_break_rejected_total",
		Help: "Ad break completions rejected for unknown or already completed breaks",
	})

	SinkWriteErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playerplatform_sink_write_errors_total",
		Help: "Failed writes to analytics sinks",
	}, []string{"sink"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playerplatform_active_sessions",
		Help: "Playback sessions currently registered",
	})
)

// IncUnclassifiedSignal records a classifier rejection.
func IncUnclassifiedSignal() {
	UnclassifiedSignalsTotal.Inc()
}

// IncAdBreakRejected records a rejected ad break completion.
func IncAdBreakRejected() {
	AdBreakRejectedTotal.Inc()
}

// IncSinkWriteError records a sink write failure.
func IncSinkWriteError(sink string) {
	if sink == "" {
		sink = "unknown"
	}
	SinkWriteErrorsTotal.WithLabelValues(sink).Inc()
}
