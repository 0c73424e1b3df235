// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestUnknownKindLabelIsCollapsed(t *testing.T) {
	before := counterValue(t, EventsPublishedTotal.WithLabelValues("unknown"))
	IncEventPublished("made_up")
	require.Equal(t, before+1, counterValue(t, EventsPublishedTotal.WithLabelValues("unknown")))
}

func TestObserveDRMExchangeNormalizesLabels(t *testing.T) {
	before := counterValue(t, DRMExchangeCounter("failed", "timeout"))
	ObserveDRMExchange(" FAILED ", "Timeout", 0.5)
	require.Equal(t, before+1, counterValue(t, DRMExchangeCounter("failed", "timeout")))

	beforeUnknown := counterValue(t, drmExchangeTotal.WithLabelValues("unknown", "unknown"))
	ObserveDRMExchange("exploded", "gremlins", 1)
	require.Equal(t, beforeUnknown+1, counterValue(t, drmExchangeTotal.WithLabelValues("unknown", "unknown")))
}

func TestIncDRMRejectedAllowlist(t *testing.T) {
	before := counterValue(t, DRMRejectedCounter("unknown"))
	IncDRMRejected("whatever")
	require.Equal(t, before+1, counterValue(t, DRMRejectedCounter("unknown")))

	beforeStale := counterValue(t, DRMRejectedCounter("stale"))
	IncDRMRejected("stale")
	require.Equal(t, beforeStale+1, counterValue(t, DRMRejectedCounter("stale")))
}

func TestIncQueueDropDefaultsLabels(t *testing.T) {
	before := counterValue(t, QueueDroppedTotal.WithLabelValues("unknown", "unknown"))
	IncQueueDrop("", "")
	require.Equal(t, before+1, counterValue(t, QueueDroppedTotal.WithLabelValues("unknown", "unknown")))
}
