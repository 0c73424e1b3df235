// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package drm

import (
	"context"
	"sync"
)

// ClientState is the DRM-relevant view of the client at request time.
type ClientState struct {
	DeviceID     string
	Entitlement  string
	SessionToken string
	SessionID    string
}

// ClientStateProvider supplies client state. The delegate only reads it, once
// per exchange, and works on that snapshot for the exchange's lifetime.
type ClientStateProvider interface {
	ClientState(ctx context.Context) (ClientState, error)
}

// ProviderFunc adapts a function to ClientStateProvider.
type ProviderFunc func(ctx context.Context) (ClientState, error)

func (f ProviderFunc) ClientState(ctx context.Context) (ClientState, error) { return f(ctx) }

// StaticProvider serves a fixed state that its owner may replace at any time.
type StaticProvider struct {
	mu    sync.RWMutex
	state ClientState
}

func NewStaticProvider(state ClientState) *StaticProvider {
	return &StaticProvider{state: state}
}

func (p *StaticProvider) ClientState(_ context.Context) (ClientState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state, nil
}

// Update replaces the served state. Exchanges already issued keep their snapshot.
func (p *StaticProvider) Update(state ClientState) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}
