// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playerplatform_events_published_total",
		Help: "Total number of events published through the dispatcher by kind",
	}, []string{"kind"})

	ObserverPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playerplatform_observer_panics_total",
		Help: "Observer panics recovered during event delivery by kind",
	}, []string{"kind"})

	QueueDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playerplatform_queue_dropped_total",
		Help: "Events dropped by queue observers by queue and reason",
	}, []string{"queue", "reason"})

	ObserversRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playerplatform_observers_registered",
		Help: "Number of observers currently registered with dispatchers",
	})
)

// IncEventPublished records one published event.
func IncEventPublished(kind string) {
	EventsPublishedTotal.WithLabelValues(normalizeKindLabel(kind)).Inc()
}

// IncObserverPanic records a recovered observer panic.
func IncObserverPanic(kind string) {
	ObserverPanicsTotal.WithLabelValues(normalizeKindLabel(kind)).Inc()
}

// IncQueueDrop records a dropped queued event with a concrete reason.
func IncQueueDrop(queue, reason string) {
	if queue == "" {
		queue = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	QueueDroppedTotal.WithLabelValues(queue, reason).Inc()
}

func normalizeKindLabel(kind string) string {
	switch kind {
	case "video", "ad_break_start", "ad_break_complete", "drm_failure", "telemetry":
		return kind
	default:
		return "unknown"
	}
}
