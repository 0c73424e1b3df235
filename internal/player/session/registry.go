// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ManuGH/playerplatform/internal/log"
	"github.com/ManuGH/playerplatform/internal/metrics"
	"github.com/rs/zerolog"
)

// ErrExists is returned by Create for an id that is already live.
var ErrExists = errors.New("session already exists")

// Registry tracks live sessions by id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		log:      logger,
	}
}

// Create builds a session from cfg and registers it.
func (r *Registry) Create(cfg Config) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[strings.TrimSpace(cfg.ID)]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, cfg.ID)
	}
	s, err := New(cfg)
	if err != nil {
		return nil, err
	}
	r.sessions[s.ID()] = s
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.log.Info().Str(log.FieldSessionID, s.ID()).Msg("session registered")
	return s, nil
}

// Get returns the live session for id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove closes and unregisters the session. It reports whether id was live.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		metrics.ActiveSessions.Set(float64(len(r.sessions)))
	}
	r.mu.Unlock()

	if ok {
		s.Close()
		r.log.Info().Str(log.FieldSessionID, id).Msg("session removed")
	}
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns the live session ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseAll tears down every session, for graceful shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	live := r.sessions
	r.sessions = make(map[string]*Session)
	metrics.ActiveSessions.Set(0)
	r.mu.Unlock()

	for _, s := range live {
		s.Close()
	}
	if len(live) > 0 {
		r.log.Info().Int("sessions", len(live)).Msg("closed all sessions")
	}
}
