// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package drm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/playerplatform/internal/metrics"
	"github.com/ManuGH/playerplatform/internal/player/event"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []event.Event
	ch     chan event.Event
}

func newCapture() *capturePublisher {
	return &capturePublisher{ch: make(chan event.Event, 16)}
}

func (p *capturePublisher) Publish(_ context.Context, ev event.Event) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	p.ch <- ev
	return nil
}

func (p *capturePublisher) failures() []event.DrmFailureEventData {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.DrmFailureEventData, 0, len(p.events))
	for _, ev := range p.events {
		if f, ok := ev.(event.DrmFailureEventData); ok {
			out = append(out, f)
		}
	}
	return out
}

func (p *capturePublisher) waitEvent(t *testing.T) event.Event {
	t.Helper()
	select {
	case ev := <-p.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
		return nil
	}
}

var baseState = ClientState{DeviceID: "dev-1", Entitlement: "ent-gold", SessionToken: "tok-1"}

func newTestDelegate(t *testing.T, timeout time.Duration) (*Delegate, *capturePublisher, *StaticProvider) {
	t.Helper()
	pub := newCapture()
	provider := NewStaticProvider(baseState)
	nop := zerolog.Nop()
	var n atomic.Int64
	d, err := NewDelegate(DelegateConfig{
		SessionID: "sess-1",
		Provider:  provider,
		Publisher: pub,
		Timeout:   timeout,
		Logger:    &nop,
		NewID:     func() string { return fmt.Sprintf("ex-%d", n.Add(1)) },
	})
	require.NoError(t, err)
	t.Cleanup(d.Cancel)
	return d, pub, provider
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func wait(t *testing.T, ex *Exchange) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := ex.Wait(ctx)
	require.NoError(t, err)
	return out
}

func TestNewDelegateValidatesConfig(t *testing.T) {
	_, err := NewDelegate(DelegateConfig{Provider: NewStaticProvider(baseState), Publisher: newCapture()})
	require.Error(t, err)
	_, err = NewDelegate(DelegateConfig{SessionID: "s", Publisher: newCapture()})
	require.Error(t, err)
	_, err = NewDelegate(DelegateConfig{SessionID: "s", Provider: NewStaticProvider(baseState)})
	require.Error(t, err)

	d, err := NewDelegate(DelegateConfig{SessionID: "s", Provider: NewStaticProvider(baseState), Publisher: newCapture()})
	require.NoError(t, err)
	require.Equal(t, DefaultTimeout, d.Timeout())
	require.Equal(t, StateIdle, d.State())
}

func TestSuccessfulExchangePublishesNothing(t *testing.T) {
	d, pub, _ := newTestDelegate(t, time.Second)

	ex, err := d.Begin(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatePending, d.State())

	require.NoError(t, d.HandleResponse(context.Background(), Response{ExchangeID: ex.ID(), OK: true}))
	out := wait(t, ex)
	require.Equal(t, StateSucceeded, out.State)
	require.NoError(t, out.Err)
	require.Nil(t, out.Codes)
	require.Equal(t, StateSucceeded, d.State())
	require.Empty(t, pub.failures())
}

func TestServerFailurePublishesExactlyOneEvent(t *testing.T) {
	d, pub, _ := newTestDelegate(t, time.Second)

	ex, err := d.Begin(context.Background())
	require.NoError(t, err)

	cause := &event.DrmError{Domain: "cima", Code: 401, Message: "unauthorized device"}
	require.NoError(t, d.HandleResponse(context.Background(), Response{ExchangeID: ex.ID(), Major: 3, Minor: 12, Cause: cause}))

	out := wait(t, ex)
	require.Equal(t, StateFailed, out.State)
	require.ErrorIs(t, out.Err, ErrExchangeFailure)
	var xerr *ExchangeError
	require.ErrorAs(t, out.Err, &xerr)
	require.Equal(t, 3, xerr.Major)
	require.Equal(t, 12, xerr.Minor)

	ev := pub.waitEvent(t).(event.DrmFailureEventData)
	require.Equal(t, "sess-1", ev.SessionID)
	require.Equal(t, ex.ID(), ev.ExchangeID())
	require.Equal(t, 3, ev.Major())
	require.Equal(t, 12, ev.Minor())
	require.Equal(t, *cause, *ev.Cause())

	// A duplicate response for the same exchange is stale now.
	err = d.HandleResponse(context.Background(), Response{ExchangeID: ex.ID(), Major: 3, Minor: 12})
	require.ErrorIs(t, err, ErrStaleResponse)
	require.Len(t, pub.failures(), 1)
}

func TestTimeoutPublishesReservedCodes(t *testing.T) {
	d, pub, _ := newTestDelegate(t, 30*time.Millisecond)

	before := counterValue(t, metrics.DRMExchangeCounter("failed", "timeout"))
	start := time.Now()
	ex, err := d.Begin(context.Background())
	require.NoError(t, err)

	out := wait(t, ex)
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	require.Equal(t, StateFailed, out.State)
	require.ErrorIs(t, out.Err, ErrExchangeTimeout)
	require.Equal(t, &event.DrmCodes{Major: TimeoutMajor, Minor: TimeoutMinor}, out.Codes)

	ev := pub.waitEvent(t).(event.DrmFailureEventData)
	require.Equal(t, TimeoutMajor, ev.Major())
	require.Equal(t, TimeoutMinor, ev.Minor())
	require.Nil(t, ev.Cause())
	require.Len(t, pub.failures(), 1)
	require.Equal(t, before+1, counterValue(t, metrics.DRMExchangeCounter("failed", "timeout")))

	// The late server answer is discarded.
	require.ErrorIs(t, d.HandleResponse(context.Background(), Response{ExchangeID: ex.ID(), OK: true}), ErrStaleResponse)
	require.Equal(t, StateFailed, d.State())
}

func TestFailureIsDeliveredBeforeWaitReturns(t *testing.T) {
	t.Run("server", func(t *testing.T) {
		d, pub, _ := newTestDelegate(t, time.Second)
		ex, err := d.Begin(context.Background())
		require.NoError(t, err)
		go func() { _ = d.HandleResponse(context.Background(), Response{ExchangeID: ex.ID(), Major: 4, Minor: 1}) }()

		out := wait(t, ex)
		require.Equal(t, StateFailed, out.State)
		require.Len(t, pub.failures(), 1)
	})
	t.Run("timeout", func(t *testing.T) {
		d, pub, _ := newTestDelegate(t, 10*time.Millisecond)
		ex, err := d.Begin(context.Background())
		require.NoError(t, err)

		out := wait(t, ex)
		require.ErrorIs(t, out.Err, ErrExchangeTimeout)
		require.Len(t, pub.failures(), 1)
	})
	t.Run("transport", func(t *testing.T) {
		d, pub, _ := newTestDelegate(t, time.Second)
		out, err := d.Authorize(context.Background(), TransportFunc(func(context.Context, LicenseRequest) (Response, error) {
			return Response{}, errors.New("connection refused")
		}))
		require.NoError(t, err)
		require.Equal(t, StateFailed, out.State)
		require.Len(t, pub.failures(), 1)
	})
}

func TestSecondBeginWhilePendingFails(t *testing.T) {
	d, pub, _ := newTestDelegate(t, time.Second)

	first, err := d.Begin(context.Background())
	require.NoError(t, err)

	before := counterValue(t, metrics.DRMRejectedCounter("concurrent"))
	second, err := d.Begin(context.Background())
	require.ErrorIs(t, err, ErrConcurrentExchange)
	require.Nil(t, second)
	require.Equal(t, before+1, counterValue(t, metrics.DRMRejectedCounter("concurrent")))

	require.Same(t, first, d.Current())
	require.NoError(t, d.HandleResponse(context.Background(), Response{ExchangeID: first.ID(), OK: true}))
	require.Equal(t, StateSucceeded, wait(t, first).State)
	require.Empty(t, pub.failures())

	// Once resolved, a new exchange may start.
	third, err := d.Begin(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first.ID(), third.ID())
}

func TestAtMostOnePendingUnderContention(t *testing.T) {
	d, _, _ := newTestDelegate(t, time.Second)

	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Begin(context.Background())
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrConcurrentExchange):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())
	require.Equal(t, int32(31), conflicts.Load())
}

func TestStaleResponseDoesNotAffectCurrentExchange(t *testing.T) {
	d, pub, _ := newTestDelegate(t, time.Second)

	old, err := d.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, d.HandleResponse(context.Background(), Response{ExchangeID: old.ID(), Major: 1, Minor: 1}))
	pub.waitEvent(t)

	current, err := d.Begin(context.Background())
	require.NoError(t, err)

	before := counterValue(t, metrics.DRMRejectedCounter("stale"))
	err = d.HandleResponse(context.Background(), Response{ExchangeID: old.ID(), Major: 9, Minor: 9})
	require.ErrorIs(t, err, ErrStaleResponse)
	require.Equal(t, before+1, counterValue(t, metrics.DRMRejectedCounter("stale")))

	require.ErrorIs(t, d.HandleResponse(context.Background(), Response{ExchangeID: "never-issued", OK: true}), ErrStaleResponse)
	require.Equal(t, StatePending, d.State())
	require.Same(t, current, d.Current())
	require.Len(t, pub.failures(), 1)
}

func TestCancelRetiresPendingExchange(t *testing.T) {
	d, pub, _ := newTestDelegate(t, 50*time.Millisecond)

	ex, err := d.Begin(context.Background())
	require.NoError(t, err)

	d.Cancel()
	d.Cancel()

	out := wait(t, ex)
	require.Equal(t, StateCancelled, out.State)
	require.ErrorIs(t, out.Err, ErrExchangeCancelled)
	require.True(t, d.Closed())

	require.ErrorIs(t, d.HandleResponse(context.Background(), Response{ExchangeID: ex.ID(), Major: 2, Minor: 2}), ErrStaleResponse)
	_, err = d.Begin(context.Background())
	require.ErrorIs(t, err, ErrDelegateClosed)

	// Past the timeout bound nothing fires for the cancelled exchange.
	time.Sleep(80 * time.Millisecond)
	require.Empty(t, pub.failures())
	require.Equal(t, StateCancelled, d.State())
}

func TestCancelWhenIdleClosesDelegate(t *testing.T) {
	d, _, _ := newTestDelegate(t, time.Second)
	d.Cancel()
	require.Equal(t, StateIdle, d.State())
	_, err := d.Begin(context.Background())
	require.ErrorIs(t, err, ErrDelegateClosed)
}

func TestClientStateIsSnapshotted(t *testing.T) {
	d, _, provider := newTestDelegate(t, time.Second)

	ex, err := d.Begin(context.Background())
	require.NoError(t, err)
	provider.Update(ClientState{DeviceID: "dev-2", Entitlement: "ent-basic"})

	require.Equal(t, "dev-1", ex.ClientState().DeviceID)
	require.Equal(t, "ent-gold", ex.Request().ClientState.Entitlement)
	require.Equal(t, "sess-1", ex.Request().SessionID)
}

func TestProviderErrorLeavesDelegateIdle(t *testing.T) {
	pub := newCapture()
	nop := zerolog.Nop()
	calls := 0
	d, err := NewDelegate(DelegateConfig{
		SessionID: "sess-1",
		Publisher: pub,
		Logger:    &nop,
		Provider: ProviderFunc(func(context.Context) (ClientState, error) {
			calls++
			if calls == 1 {
				return ClientState{}, errors.New("keychain locked")
			}
			return baseState, nil
		}),
	})
	require.NoError(t, err)
	t.Cleanup(d.Cancel)

	_, err = d.Begin(context.Background())
	require.ErrorContains(t, err, "keychain locked")
	require.Equal(t, StateIdle, d.State())

	_, err = d.Begin(context.Background())
	require.NoError(t, err)
}

func TestNegativeServerCodesAreRejected(t *testing.T) {
	d, pub, _ := newTestDelegate(t, time.Second)
	ex, err := d.Begin(context.Background())
	require.NoError(t, err)

	err = d.HandleResponse(context.Background(), Response{ExchangeID: ex.ID(), Major: TimeoutMajor, Minor: TimeoutMinor})
	require.ErrorIs(t, err, ErrInvalidResponse)
	require.Equal(t, StatePending, d.State())
	require.Empty(t, pub.failures())
}

func TestResolutionRaceYieldsSingleOutcome(t *testing.T) {
	for i := 0; i < 20; i++ {
		d, pub, _ := newTestDelegate(t, 5*time.Millisecond)
		ex, err := d.Begin(context.Background())
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			_ = d.HandleResponse(context.Background(), Response{ExchangeID: ex.ID(), Major: 4, Minor: 4})
		}()
		go func() {
			defer wg.Done()
			_ = d.HandleResponse(context.Background(), Response{ExchangeID: ex.ID(), OK: true})
		}()
		go func() {
			defer wg.Done()
			time.Sleep(5 * time.Millisecond)
			d.Cancel()
		}()
		wg.Wait()

		out := wait(t, ex)
		require.True(t, out.State.IsTerminal())
		time.Sleep(10 * time.Millisecond)
		n := len(pub.failures())
		if out.State == StateFailed {
			require.Equal(t, 1, n)
		} else {
			require.Equal(t, 0, n)
		}
	}
}

func TestAuthorizeOverTransport(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d, pub, _ := newTestDelegate(t, time.Second)
	var seen LicenseRequest
	out, err := d.Authorize(context.Background(), TransportFunc(func(_ context.Context, req LicenseRequest) (Response, error) {
		seen = req
		return Response{OK: true}, nil
	}))
	require.NoError(t, err)
	require.Equal(t, StateSucceeded, out.State)
	require.Equal(t, "dev-1", seen.ClientState.DeviceID)
	require.Equal(t, out.ExchangeID, seen.ExchangeID)
	require.Empty(t, pub.failures())
}

func TestAuthorizeTransportErrorPublishesTransportCodes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d, pub, _ := newTestDelegate(t, time.Second)
	out, err := d.Authorize(context.Background(), TransportFunc(func(context.Context, LicenseRequest) (Response, error) {
		return Response{}, errors.New("connection reset")
	}))
	require.NoError(t, err)
	require.Equal(t, StateFailed, out.State)
	require.ErrorIs(t, out.Err, ErrExchangeFailure)

	ev := pub.waitEvent(t).(event.DrmFailureEventData)
	require.Equal(t, TransportMajor, ev.Major())
	require.Equal(t, TransportMinor, ev.Minor())
	require.Equal(t, TransportDomain, ev.Cause().Domain)
	require.Contains(t, ev.Cause().Message, "connection reset")
}

func TestAuthorizeHungTransportTimesOut(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d, pub, _ := newTestDelegate(t, 30*time.Millisecond)
	out, err := d.Authorize(context.Background(), TransportFunc(func(ctx context.Context, _ LicenseRequest) (Response, error) {
		<-ctx.Done()
		return Response{}, ctx.Err()
	}))
	require.NoError(t, err)
	require.Equal(t, StateFailed, out.State)
	require.ErrorIs(t, out.Err, ErrExchangeTimeout)

	ev := pub.waitEvent(t).(event.DrmFailureEventData)
	require.Equal(t, TimeoutMajor, ev.Major())
	require.Len(t, pub.failures(), 1)
}

func TestAuthorizeCancelledBySessionTeardown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d, pub, _ := newTestDelegate(t, time.Second)
	sent := make(chan struct{})
	go func() {
		<-sent
		d.Cancel()
	}()
	out, err := d.Authorize(context.Background(), TransportFunc(func(ctx context.Context, _ LicenseRequest) (Response, error) {
		close(sent)
		<-ctx.Done()
		return Response{}, ctx.Err()
	}))
	require.NoError(t, err)
	require.Equal(t, StateCancelled, out.State)
	require.Empty(t, pub.failures())
}

func TestExchangeSpanRecordsOutcome(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	nop := zerolog.Nop()
	d, err := NewDelegate(DelegateConfig{
		SessionID: "sess-1",
		Provider:  NewStaticProvider(baseState),
		Publisher: newCapture(),
		Logger:    &nop,
		Tracer:    tp.Tracer("test"),
	})
	require.NoError(t, err)
	t.Cleanup(d.Cancel)

	ex, err := d.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, d.HandleResponse(context.Background(), Response{ExchangeID: ex.ID(), Major: 5, Minor: 6}))
	wait(t, ex)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "drm.exchange", spans[0].Name())
	require.Contains(t, spans[0].Attributes(), attribute.String("drm.outcome", "failed"))
	require.Contains(t, spans[0].Attributes(), attribute.Int("drm.major", 5))
}
