// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dispatch

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/playerplatform/internal/metrics"
	"github.com/ManuGH/playerplatform/internal/player/event"
	"github.com/ManuGH/playerplatform/internal/player/xua"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func telemetry(t *testing.T, session string, tag xua.EventType) event.Event {
	t.Helper()
	ev, err := event.NewTelemetry(session, at, tag, 0, "")
	require.NoError(t, err)
	return ev
}

func drmFailure(t *testing.T, session string) event.Event {
	t.Helper()
	ev, err := event.NewDrmFailure(session, at, "ex", &event.DrmCodes{Major: 1, Minor: 2}, nil)
	require.NoError(t, err)
	return ev
}

type recorder struct {
	mu     sync.Mutex
	name   string
	events []event.Event
	order  *[]string
}

func (r *recorder) Observe(_ context.Context, ev event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if r.order != nil {
		*r.order = append(*r.order, r.name)
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func subscribe(t *testing.T, d *Dispatcher, kind event.Kind, obs Observer) *Subscription {
	t.Helper()
	sub, err := d.Subscribe(kind, obs)
	require.NoError(t, err)
	t.Cleanup(sub.Close)
	return sub
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestPublishRoutesByKindAndWildcard(t *testing.T) {
	d := New(WithLogger(zerolog.Nop()))
	var order []string
	tele := &recorder{name: "telemetry", order: &order}
	drm := &recorder{name: "drm", order: &order}
	all := &recorder{name: "all", order: &order}

	subscribe(t, d, event.KindAll, all)
	subscribe(t, d, event.KindTelemetry, tele)
	subscribe(t, d, event.KindDrmFailure, drm)

	require.NoError(t, d.Publish(context.Background(), telemetry(t, "s1", xua.HeartBeat)))
	require.NoError(t, d.Publish(context.Background(), drmFailure(t, "s1")))

	require.Equal(t, 1, tele.count())
	require.Equal(t, 1, drm.count())
	require.Equal(t, 2, all.count())
	require.Equal(t, []string{"telemetry", "all", "drm", "all"}, order)
}

func TestPublishPreservesOrderForSingleSource(t *testing.T) {
	d := New(WithLogger(zerolog.Nop()))
	rec := &recorder{}
	subscribe(t, d, event.KindTelemetry, rec)

	for _, tag := range xua.All() {
		require.NoError(t, d.Publish(context.Background(), telemetry(t, "s1", tag)))
	}
	require.Len(t, rec.events, len(xua.All()))
	for i, ev := range rec.events {
		require.Equal(t, xua.EventType(i), ev.(event.TelemetryEventData).Tag())
	}
}

func TestSubscriptionDuringPublishMissesThatEvent(t *testing.T) {
	d := New(WithLogger(zerolog.Nop()))
	late := &recorder{}
	var lateSub *Subscription

	subscribe(t, d, event.KindTelemetry, ObserverFunc(func(context.Context, event.Event) {
		if lateSub == nil {
			var err error
			lateSub, err = d.Subscribe(event.KindTelemetry, late)
			require.NoError(t, err)
		}
	}))

	require.NoError(t, d.Publish(context.Background(), telemetry(t, "s1", xua.HeartBeat)))
	require.Equal(t, 0, late.count())

	require.NoError(t, d.Publish(context.Background(), telemetry(t, "s1", xua.HeartBeat)))
	require.Equal(t, 1, late.count())
	lateSub.Close()
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	d := New(WithLogger(zerolog.Nop()))
	rec := &recorder{}
	sub, err := d.Subscribe(event.KindTelemetry, rec)
	require.NoError(t, err)
	require.Equal(t, 1, d.Len())

	sub.Close()
	sub.Close()
	require.Equal(t, 0, d.Len())

	require.NoError(t, d.Publish(context.Background(), telemetry(t, "s1", xua.HeartBeat)))
	require.Equal(t, 0, rec.count())

	var nilSub *Subscription
	nilSub.Close()
}

func TestSameObserverTwiceIsDeliveredTwice(t *testing.T) {
	d := New(WithLogger(zerolog.Nop()))
	rec := &recorder{}
	first := subscribe(t, d, event.KindTelemetry, rec)
	subscribe(t, d, event.KindTelemetry, rec)

	require.NoError(t, d.Publish(context.Background(), telemetry(t, "s1", xua.HeartBeat)))
	require.Equal(t, 2, rec.count())

	first.Close()
	require.NoError(t, d.Publish(context.Background(), telemetry(t, "s1", xua.HeartBeat)))
	require.Equal(t, 3, rec.count())
}

func TestObserverPanicIsRecovered(t *testing.T) {
	var buf bytes.Buffer
	d := New(WithLogger(zerolog.New(&buf)))
	after := &recorder{}
	subscribe(t, d, event.KindDrmFailure, ObserverFunc(func(context.Context, event.Event) {
		panic("boom")
	}))
	subscribe(t, d, event.KindDrmFailure, after)

	before := counterValue(t, metrics.ObserverPanicsTotal.WithLabelValues("drm_failure"))
	require.NoError(t, d.Publish(context.Background(), drmFailure(t, "s1")))

	require.Equal(t, 1, after.count())
	require.Equal(t, before+1, counterValue(t, metrics.ObserverPanicsTotal.WithLabelValues("drm_failure")))
	require.Contains(t, buf.String(), "dispatch.observer_panic")
}

func TestPublishRejectsNilInputs(t *testing.T) {
	d := New(WithLogger(zerolog.Nop()))
	require.ErrorIs(t, d.Publish(context.Background(), nil), ErrNilEvent)
	//nolint:staticcheck // nil context is part of the contract
	require.Error(t, d.Publish(nil, telemetry(t, "s1", xua.HeartBeat)))
}

func TestSubscribeValidatesInput(t *testing.T) {
	d := New(WithLogger(zerolog.Nop()))
	_, err := d.Subscribe(event.KindTelemetry, nil)
	require.Error(t, err)
	_, err = d.Subscribe("bogus", &recorder{})
	require.Error(t, err)
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	d := New(WithLogger(zerolog.Nop()))
	stable := &recorder{}
	subscribe(t, d, event.KindAll, stable)

	const publishers = 4
	const perPublisher = 50
	ev := telemetry(t, "s1", xua.HeartBeat)

	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				_ = d.Publish(context.Background(), ev)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			sub, err := d.Subscribe(event.KindTelemetry, &recorder{})
			if err == nil {
				sub.Close()
				sub.Close()
			}
		}
	}()
	wg.Wait()

	require.Equal(t, publishers*perPublisher, stable.count())
	require.Equal(t, 1, d.Len())
}

func TestDeliveryIsSerialized(t *testing.T) {
	d := New(WithLogger(zerolog.Nop()))
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	subscribe(t, d, event.KindAll, ObserverFunc(func(context.Context, event.Event) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
	}))

	ev := drmFailure(t, "s1")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Publish(context.Background(), ev)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, maxInFlight)
}
