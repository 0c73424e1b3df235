// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsm provides a small, strict finite state machine runner.
package fsm

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned when no edge exists for (state, event).
var ErrInvalidTransition = errors.New("invalid transition")

// Transition describes a single edge in the FSM.
type Transition[S ~string, E ~string] struct {
	From  S
	Event E
	To    S
}

// TransitionError reports the rejected (state, event) pair.
type TransitionError[S ~string, E ~string] struct {
	State S
	Event E
}

func (e *TransitionError[S, E]) Error() string {
	return fmt.Sprintf("invalid transition: state=%s event=%s", e.State, e.Event)
}

func (e *TransitionError[S, E]) Unwrap() error {
	return ErrInvalidTransition
}

// Machine is a test-friendly FSM runner. Unknown transitions are errors.
// Fire is atomic; hooks registered with OnTransition run after the state
// change, outside the critical section.
type Machine[S ~string, E ~string] struct {
	mu    sync.Mutex
	state S
	index map[string]Transition[S, E]
	hooks []func(from, to S, event E)
}

// New builds a machine from a transition table. Duplicate (From, Event) pairs
// are rejected.
func New[S ~string, E ~string](initial S, transitions []Transition[S, E]) (*Machine[S, E], error) {
	idx := make(map[string]Transition[S, E], len(transitions))
	for _, t := range transitions {
		k := key(t.From, t.Event)
		if _, exists := idx[k]; exists {
			return nil, fmt.Errorf("duplicate transition: %s -> %s", t.From, t.Event)
		}
		idx[k] = t
	}
	return &Machine[S, E]{state: initial, index: idx}, nil
}

// MustNew is New for static tables; it panics on a malformed table.
func MustNew[S ~string, E ~string](initial S, transitions []Transition[S, E]) *Machine[S, E] {
	m, err := New(initial, transitions)
	if err != nil {
		panic(err)
	}
	return m
}

// OnTransition registers a hook called after every successful Fire.
// Hooks must be registered before the machine is shared.
func (m *Machine[S, E]) OnTransition(fn func(from, to S, event E)) {
	m.hooks = append(m.hooks, fn)
}

func (m *Machine[S, E]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Can reports whether event is accepted in the current state.
func (m *Machine[S, E]) Can(event E) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.index[key(m.state, event)]
	return ok
}

// Fire attempts to apply an event atomically and returns the new state.
func (m *Machine[S, E]) Fire(event E) (S, error) {
	m.mu.Lock()
	from := m.state
	t, ok := m.index[key(from, event)]
	if !ok {
		m.mu.Unlock()
		return from, &TransitionError[S, E]{State: from, Event: event}
	}
	m.state = t.To
	m.mu.Unlock()

	for _, h := range m.hooks {
		h(from, t.To, event)
	}
	return t.To, nil
}

func key[S ~string, E ~string](from S, event E) string {
	return string(from) + "|" + string(event)
}
