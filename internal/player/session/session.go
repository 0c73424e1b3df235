// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session ties one playback session's event sources together: the
// telemetry classifier, ad break tracking, heartbeats and the DRM delegate.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/playerplatform/internal/log"
	"github.com/ManuGH/playerplatform/internal/metrics"
	"github.com/ManuGH/playerplatform/internal/player/dispatch"
	"github.com/ManuGH/playerplatform/internal/player/drm"
	"github.com/ManuGH/playerplatform/internal/player/event"
	"github.com/ManuGH/playerplatform/internal/player/xua"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrClosed is returned by operations on a torn down session.
var ErrClosed = errors.New("session closed")

// Config wires a Session.
type Config struct {
	ID         string
	Dispatcher *dispatch.Dispatcher
	Provider   drm.ClientStateProvider
	DRMTimeout time.Duration

	Logger *zerolog.Logger
	Tracer trace.Tracer
	Now    func() time.Time
}

// Session is one playback session. All of its events are published on the
// shared dispatcher and carry its id.
type Session struct {
	id         string
	dispatcher *dispatch.Dispatcher
	delegate   *drm.Delegate
	logger     zerolog.Logger
	now        func() time.Time
	createdAt  time.Time

	// adMu orders ad-break publishes: it is held from the registry check
	// through Publish, so a completion never overtakes its start.
	adMu sync.Mutex

	mu     sync.Mutex
	breaks map[string]*adBreakState
	subs   []*dispatch.Subscription
	closed bool

	position   atomic.Int64
	heartbeats atomic.Int32 // running RunHeartbeat loops

	done      chan struct{}
	closeOnce sync.Once
}

// New validates cfg and builds a session with its own DRM delegate.
func New(cfg Config) (*Session, error) {
	id := strings.TrimSpace(cfg.ID)
	if id == "" {
		return nil, errors.New("session: id is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("session: dispatcher is required")
	}
	if cfg.Provider == nil {
		return nil, errors.New("session: client state provider is required")
	}

	s := &Session{
		id:         id,
		dispatcher: cfg.Dispatcher,
		now:        cfg.Now,
		breaks:     make(map[string]*adBreakState),
		done:       make(chan struct{}),
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.createdAt = s.now()
	base := log.WithComponent("session")
	if cfg.Logger != nil {
		base = *cfg.Logger
	}
	s.logger = base.With().Str(log.FieldSessionID, id).Logger()

	delegate, err := drm.NewDelegate(drm.DelegateConfig{
		SessionID: id,
		Provider:  cfg.Provider,
		Publisher: cfg.Dispatcher,
		Timeout:   cfg.DRMTimeout,
		Logger:    cfg.Logger,
		Tracer:    cfg.Tracer,
		Now:       cfg.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	s.delegate = delegate
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was built.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// DRM returns the session's DRM delegate.
func (s *Session) DRM() *drm.Delegate { return s.delegate }

// Done is closed by Close.
func (s *Session) Done() <-chan struct{} { return s.done }

// Observe registers obs for events of kind that belong to this session. The
// subscription is owned by the session and released by Close.
func (s *Session) Observe(kind event.Kind, obs dispatch.Observer) (*dispatch.Subscription, error) {
	if obs == nil {
		return nil, errors.New("session observe: nil observer")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	filtered := dispatch.ObserverFunc(func(ctx context.Context, ev event.Event) {
		if ev.Base().SessionID == s.id {
			obs.Observe(ctx, ev)
		}
	})
	sub, err := s.dispatcher.Subscribe(kind, filtered)
	if err != nil {
		return nil, err
	}
	s.subs = append(s.subs, sub)
	return sub, nil
}

// HandleSignal classifies an engine signal and publishes it as telemetry.
// Unknown signals are counted, logged and returned; nothing is published.
func (s *Session) HandleSignal(ctx context.Context, sig xua.Signal, positionMs int64, value string) error {
	if s.isClosed() {
		return ErrClosed
	}
	tag, err := xua.Classify(sig)
	if err != nil {
		metrics.IncUnclassifiedSignal()
		s.logger.Debug().
			Err(err).
			Str(log.FieldSignal, string(sig)).
			Msg("dropping unclassified engine signal")
		return err
	}
	ev, err := event.NewTelemetry(s.id, s.now(), tag, positionMs, value)
	if err != nil {
		return err
	}
	s.position.Store(positionMs)
	return s.dispatcher.Publish(ctx, ev)
}

// Position returns the playhead reported by the latest accepted signal.
func (s *Session) Position() int64 {
	return s.position.Load()
}

// Close tears the session down: a pending DRM exchange is cancelled without
// an event, session observers are deregistered and heartbeats stop. Calling
// Close again is a no-op.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		subs := s.subs
		s.subs = nil
		s.mu.Unlock()

		s.delegate.Cancel()
		for _, sub := range subs {
			sub.Close()
		}
		close(s.done)
		s.logger.Info().
			Str(log.FieldEvent, "session.closed").
			Int("observers", len(subs)).
			Msg("session torn down")
	})
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
