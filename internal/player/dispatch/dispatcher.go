// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package dispatch delivers typed player events to registered observers.
//
// Delivery is synchronous and serialized: one publish at a time, each to the
// snapshot of observers registered when it started. Observers that must run on
// a particular goroutine (UI) marshal internally, for example with a Queue.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ManuGH/playerplatform/internal/log"
	"github.com/ManuGH/playerplatform/internal/metrics"
	"github.com/ManuGH/playerplatform/internal/player/event"
	"github.com/rs/zerolog"
)

// ErrNilEvent is returned by Publish for a nil event.
var ErrNilEvent = errors.New("nil event")

// Observer receives published events.
type Observer interface {
	Observe(ctx context.Context, ev event.Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev event.Event)

func (f ObserverFunc) Observe(ctx context.Context, ev event.Event) { f(ctx, ev) }

// Publisher is the publishing half of the dispatcher, handed to event sources.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event) error
}

type registration struct {
	id  uint64
	obs Observer
}

// Dispatcher maps event kinds (or event.KindAll) to observers.
type Dispatcher struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[event.Kind][]registration

	deliver sync.Mutex
	logger  zerolog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		subs:   make(map[event.Kind][]registration),
		logger: log.WithComponent("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers obs for kind. Use event.KindAll to receive every event.
func (d *Dispatcher) Subscribe(kind event.Kind, obs Observer) (*Subscription, error) {
	if obs == nil {
		return nil, fmt.Errorf("subscribe %q: nil observer", kind)
	}
	if kind != event.KindAll && !kind.Valid() {
		return nil, fmt.Errorf("subscribe: unknown kind %q", kind)
	}

	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subs[kind] = append(d.subs[kind], registration{id: id, obs: obs})
	d.mu.Unlock()
	metrics.ObserversRegistered.Inc()

	return &Subscription{d: d, kind: kind, id: id}, nil
}

// Len returns the number of registered observers across all kinds.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, regs := range d.subs {
		n += len(regs)
	}
	return n
}

func (d *Dispatcher) remove(kind event.Kind, id uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	lst := d.subs[kind]
	out := make([]registration, 0, len(lst))
	found := false
	for _, r := range lst {
		if r.id == id {
			found = true
			continue
		}
		out = append(out, r)
	}
	if !found {
		return false
	}
	if len(out) == 0 {
		delete(d.subs, kind)
	} else {
		d.subs[kind] = out
	}
	return true
}

// snapshot returns kind-specific observers followed by wildcard observers,
// each in registration order.
func (d *Dispatcher) snapshot(kind event.Kind) []registration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	specific := d.subs[kind]
	all := d.subs[event.KindAll]
	out := make([]registration, 0, len(specific)+len(all))
	out = append(out, specific...)
	return append(out, all...)
}

// Publish delivers ev to every observer registered for its kind and to every
// wildcard observer, and returns once all of them have run. Observers must
// not publish to the same dispatcher from inside Observe.
func (d *Dispatcher) Publish(ctx context.Context, ev event.Event) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	if ev == nil {
		return ErrNilEvent
	}
	kind := ev.Kind()
	targets := d.snapshot(kind)

	d.deliver.Lock()
	defer d.deliver.Unlock()

	for _, r := range targets {
		d.invoke(ctx, kind, r, ev)
	}
	metrics.IncEventPublished(string(kind))
	return nil
}

func (d *Dispatcher) invoke(ctx context.Context, kind event.Kind, r registration, ev event.Event) {
	defer func() {
		if p := recover(); p != nil {
			metrics.IncObserverPanic(string(kind))
			d.logger.Error().
				Str(log.FieldEvent, "dispatch.observer_panic").
				Str(log.FieldKind, string(kind)).
				Str(log.FieldSessionID, ev.Base().SessionID).
				Uint64(log.FieldObserver, r.id).
				Interface("panic", p).
				Msg("observer panicked during delivery")
		}
	}()
	r.obs.Observe(ctx, ev)
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	d    *Dispatcher
	kind event.Kind
	id   uint64
	once sync.Once
}

// Kind returns the subscribed kind.
func (s *Subscription) Kind() event.Kind { return s.kind }

// Close deregisters the observer. Calling it again is a no-op.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.d.remove(s.kind, s.id) {
			metrics.ObserversRegistered.Dec()
		}
	})
}

// Ensure compliance
var _ Publisher = (*Dispatcher)(nil)
