// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "playerplatform_circuit_breaker_state",
		Help: "Circuit breaker state by component (1 for the active state)",
	}, []string{"component", "state"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playerplatform_circuit_breaker_trips_total",
		Help: "Circuit breaker transitions to open by component and reason",
	}, []string{"component", "reason"})

	circuitStates = []string{"closed", "open", "half-open"}
)

// SetCircuitBreakerState records the active circuit breaker state for a component.
func SetCircuitBreakerState(component, state string) {
	for _, s := range circuitStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		circuitBreakerState.WithLabelValues(component, s).Set(value)
	}
}

// RecordCircuitBreakerTrip counts a transition to open.
func RecordCircuitBreakerTrip(component, reason string) {
	circuitBreakerTrips.WithLabelValues(component, reason).Inc()
}

// CircuitBreakerStateGauge exposes the raw gauge for tests.
func CircuitBreakerStateGauge(component, state string) prometheus.Gauge {
	return circuitBreakerState.WithLabelValues(component, state)
}
