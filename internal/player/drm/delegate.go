// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package drm mediates the DRM authorization exchange of a playback session
// and turns its outcome into a continuation or a DrmFailureEventData.
package drm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/playerplatform/internal/fsm"
	"github.com/ManuGH/playerplatform/internal/log"
	"github.com/ManuGH/playerplatform/internal/metrics"
	"github.com/ManuGH/playerplatform/internal/player/event"
	"github.com/ManuGH/playerplatform/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds an exchange when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Publisher receives failure events. The dispatcher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event) error
}

// DelegateConfig wires a Delegate.
type DelegateConfig struct {
	SessionID string
	Provider  ClientStateProvider
	Publisher Publisher
	Timeout   time.Duration

	Logger *zerolog.Logger
	Tracer trace.Tracer
	Now    func() time.Time
	NewID  func() string
}

// Delegate runs at most one pending exchange for one playback session.
type Delegate struct {
	sessionID string
	provider  ClientStateProvider
	publisher Publisher
	timeout   time.Duration
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string

	mu       sync.Mutex
	machine  *fsm.Machine[State, trigger]
	current  *Exchange
	issuing  bool
	closed   bool
	staleLog rate.Sometimes
}

// NewDelegate validates cfg and returns an idle delegate.
func NewDelegate(cfg DelegateConfig) (*Delegate, error) {
	if strings.TrimSpace(cfg.SessionID) == "" {
		return nil, errors.New("drm delegate: session id is required")
	}
	if cfg.Provider == nil {
		return nil, errors.New("drm delegate: client state provider is required")
	}
	if cfg.Publisher == nil {
		return nil, errors.New("drm delegate: publisher is required")
	}
	d := &Delegate{
		sessionID: cfg.SessionID,
		provider:  cfg.Provider,
		publisher: cfg.Publisher,
		timeout:   cfg.Timeout,
		tracer:    cfg.Tracer,
		now:       cfg.Now,
		newID:     cfg.NewID,
		machine:   newMachine(),
		staleLog:  rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	if cfg.Logger != nil {
		d.logger = *cfg.Logger
	} else {
		d.logger = log.WithComponent("drm")
	}
	d.logger = d.logger.With().Str(log.FieldSessionID, cfg.SessionID).Logger()
	if d.tracer == nil {
		d.tracer = telemetry.Tracer("playerplatform/drm")
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.newID == nil {
		d.newID = uuid.NewString
	}
	d.machine.OnTransition(func(from, to State, tr trigger) {
		d.logger.Debug().
			Str(log.FieldEvent, "drm.transition").
			Str(log.FieldOldState, string(from)).
			Str(log.FieldNewState, string(to)).
			Str("trigger", string(tr)).
			Msg("drm exchange transition")
	})
	return d, nil
}

// State returns the state of the current (or last) exchange.
func (d *Delegate) State() State {
	return d.machine.State()
}

// Timeout returns the configured exchange bound.
func (d *Delegate) Timeout() time.Duration {
	return d.timeout
}

// Current returns the latest exchange, or nil before the first Begin.
func (d *Delegate) Current() *Exchange {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Begin issues a new exchange: it snapshots client state, mints a correlation
// id and arms the timeout. It fails with ErrConcurrentExchange while another
// exchange is pending.
func (d *Delegate) Begin(ctx context.Context) (*Exchange, error) {
	return d.begin(ctx, nil)
}

func (d *Delegate) begin(ctx context.Context, onFinish func()) (*Exchange, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		metrics.IncDRMRejected("closed")
		return nil, ErrDelegateClosed
	}
	if d.issuing || !d.machine.Can(trBegin) {
		d.mu.Unlock()
		metrics.IncDRMRejected("concurrent")
		return nil, ErrConcurrentExchange
	}
	d.issuing = true
	d.mu.Unlock()

	snapshot, err := d.provider.ClientState(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.issuing = false
	if err != nil {
		return nil, fmt.Errorf("read client state: %w", err)
	}
	if d.closed {
		metrics.IncDRMRejected("closed")
		return nil, ErrDelegateClosed
	}
	if snapshot.SessionID == "" {
		snapshot.SessionID = d.sessionID
	}
	if _, err := d.machine.Fire(trBegin); err != nil {
		return nil, fmt.Errorf("begin exchange: %w", err)
	}

	ex := &Exchange{
		id:       d.newID(),
		snapshot: snapshot,
		issuedAt: d.now(),
		onFinish: onFinish,
		done:     make(chan struct{}),
	}
	_, ex.span = d.tracer.Start(ctx, "drm.exchange",
		trace.WithAttributes(telemetry.DRMExchangeAttributes(d.sessionID, ex.id, snapshot.DeviceID)...))
	id := ex.id
	ex.timer = time.AfterFunc(d.timeout, func() { d.expire(id) })
	d.current = ex

	d.logger.Info().
		Str(log.FieldEvent, "drm.exchange_issued").
		Str(log.FieldExchangeID, ex.id).
		Str(log.FieldDeviceID, snapshot.DeviceID).
		Dur("timeout", d.timeout).
		Msg("drm exchange issued")
	return ex, nil
}

// HandleResponse applies a response to the pending exchange. Responses for
// any other correlation id are stale: they are discarded with ErrStaleResponse
// and leave the current exchange untouched. A failed response publishes
// exactly one DrmFailureEventData.
func (d *Delegate) HandleResponse(ctx context.Context, resp Response) error {
	if !resp.OK && (resp.Major < 0 || resp.Minor < 0) {
		return fmt.Errorf("%w: negative codes major=%d minor=%d are reserved", ErrInvalidResponse, resp.Major, resp.Minor)
	}
	tr := trAccept
	var codes *event.DrmCodes
	var cause *event.DrmError
	if !resp.OK {
		tr = trReject
		codes = &event.DrmCodes{Major: resp.Major, Minor: resp.Minor}
		cause = normalizeCause(resp.Cause)
	}
	err := d.resolve(ctx, resp.ExchangeID, tr, codes, cause, "server")
	if errors.Is(err, ErrStaleResponse) {
		metrics.IncDRMRejected("stale")
		d.staleLog.Do(func() {
			d.logger.Warn().
				Str(log.FieldEvent, "drm.stale_response").
				Str(log.FieldExchangeID, resp.ExchangeID).
				Msg("discarded drm response for retired exchange")
		})
	}
	return err
}

// Cancel tears the delegate down with its session: a pending exchange becomes
// cancelled without an event, its correlation id is retired and no further
// exchanges are accepted. Calling Cancel again is a no-op.
func (d *Delegate) Cancel() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	ex := d.current
	if ex == nil || d.machine.State() != StatePending {
		d.mu.Unlock()
		return
	}
	if _, err := d.machine.Fire(trCancel); err != nil {
		d.mu.Unlock()
		d.logger.Error().Err(err).Msg("cancel pending exchange")
		return
	}
	ex.finish(Outcome{ExchangeID: ex.id, State: StateCancelled, Err: ErrExchangeCancelled})
	d.mu.Unlock()

	d.record(ex, StateCancelled, "none", nil)
	d.logger.Info().
		Str(log.FieldEvent, "drm.exchange_cancelled").
		Str(log.FieldExchangeID, ex.id).
		Msg("drm exchange cancelled by session teardown")
}

// Closed reports whether Cancel has been called.
func (d *Delegate) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Delegate) expire(id string) {
	ctx := log.ContextWithSessionID(context.Background(), d.sessionID)
	codes := &event.DrmCodes{Major: TimeoutMajor, Minor: TimeoutMinor}
	// A lost race with a response or a cancel is expected here.
	_ = d.resolve(ctx, id, trTimeout, codes, nil, "timeout")
}

func (d *Delegate) failTransport(ctx context.Context, id string, sendErr error) {
	codes := &event.DrmCodes{Major: TransportMajor, Minor: TransportMinor}
	cause := &event.DrmError{Domain: TransportDomain, Message: sendErr.Error()}
	_ = d.resolve(ctx, id, trReject, codes, cause, "transport")
}

// resolve moves the pending exchange id to its terminal state. Only the caller
// that wins the transition records metrics, publishes and finishes the
// exchange, in that order.
func (d *Delegate) resolve(ctx context.Context, id string, tr trigger, codes *event.DrmCodes, cause *event.DrmError, reason string) error {
	d.mu.Lock()
	ex := d.current
	if ex == nil || id == "" || ex.id != id || d.machine.State() != StatePending {
		d.mu.Unlock()
		return fmt.Errorf("%w: exchange %q", ErrStaleResponse, id)
	}
	to, err := d.machine.Fire(tr)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("resolve exchange %s: %w", id, err)
	}

	outcome := Outcome{ExchangeID: id, State: to, Codes: codes}
	switch tr {
	case trTimeout:
		outcome.Err = fmt.Errorf("%w after %s", ErrExchangeTimeout, d.timeout)
	case trReject:
		outcome.Err = &ExchangeError{ExchangeID: id, Major: codes.Major, Minor: codes.Minor, Cause: cause}
	}
	ex.stopTimer()
	d.mu.Unlock()

	if to == StateFailed {
		d.record(ex, to, reason, codes)
		d.publishFailure(ctx, id, codes, cause)
	} else {
		d.record(ex, to, "none", nil)
		d.logger.Info().
			Str(log.FieldEvent, "drm.exchange_succeeded").
			Str(log.FieldExchangeID, id).
			Msg("drm exchange succeeded")
	}
	ex.finish(outcome)
	return nil
}

func (d *Delegate) publishFailure(ctx context.Context, id string, codes *event.DrmCodes, cause *event.DrmError) {
	ev, err := event.NewDrmFailure(d.sessionID, d.now(), id, codes, cause)
	if err != nil {
		d.logger.Error().Err(err).Str(log.FieldExchangeID, id).Msg("build drm failure event")
		return
	}
	d.logger.Warn().
		Str(log.FieldEvent, "drm.exchange_failed").
		Str(log.FieldExchangeID, id).
		Int(log.FieldMajor, codes.Major).
		Int(log.FieldMinor, codes.Minor).
		Msg("drm exchange failed")
	// The exchange is already resolved; delivery must not inherit its cancellation.
	if err := d.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		d.logger.Error().Err(err).Str(log.FieldExchangeID, id).Msg("publish drm failure event")
	}
}

func (d *Delegate) record(ex *Exchange, to State, reason string, codes *event.DrmCodes) {
	elapsed := d.now().Sub(ex.issuedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	metrics.ObserveDRMExchange(string(to), reason, elapsed)

	if ex.span == nil {
		return
	}
	if codes != nil {
		ex.span.SetAttributes(telemetry.DRMOutcomeAttributes(string(to), codes.Major, codes.Minor, true)...)
		ex.span.SetAttributes(telemetry.ErrorAttributes(reason)...)
		ex.span.SetStatus(otelcodes.Error, "drm exchange failed")
	} else {
		ex.span.SetAttributes(telemetry.DRMOutcomeAttributes(string(to), 0, 0, false)...)
	}
	ex.span.End()
}

func normalizeCause(c *event.DrmError) *event.DrmError {
	if c == nil {
		return nil
	}
	out := *c
	if strings.TrimSpace(out.Domain) == "" {
		out.Domain = "license"
	}
	return &out
}
