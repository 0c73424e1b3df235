// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"fmt"

	"github.com/ManuGH/playerplatform/internal/log"
	"github.com/ManuGH/playerplatform/internal/metrics"
	"github.com/ManuGH/playerplatform/internal/player/event"
)

type adBreakState struct {
	adBreak   event.VideoAdBreak
	completed bool
}

// StartAdBreak records the break and publishes AdBreakStartEventData. A break
// id may be started once per session. Observers must not call back into the
// session's ad-break methods.
func (s *Session) StartAdBreak(ctx context.Context, b event.VideoAdBreak) error {
	ev, err := event.NewAdBreakStart(s.id, s.now(), &b)
	if err != nil {
		return err
	}

	s.adMu.Lock()
	defer s.adMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, seen := s.breaks[b.ID]; seen {
		s.mu.Unlock()
		return fmt.Errorf("%w: ad break %q already started", event.ErrInvalidPayload, b.ID)
	}
	s.breaks[b.ID] = &adBreakState{adBreak: b.Clone()}
	s.mu.Unlock()

	return s.dispatcher.Publish(ctx, ev)
}

// CompleteAdBreak publishes AdBreakCompleteEventData carrying the break that
// was started under id. Unknown and already completed breaks are rejected
// with event.ErrInvalidPayload, so each break completes at most once.
func (s *Session) CompleteAdBreak(ctx context.Context, id string) error {
	s.adMu.Lock()
	defer s.adMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	st, ok := s.breaks[id]
	switch {
	case !ok:
		s.mu.Unlock()
		return s.rejectCompletion(id, "unknown ad break")
	case st.completed:
		s.mu.Unlock()
		return s.rejectCompletion(id, "ad break already completed")
	}
	st.completed = true
	b := st.adBreak.Clone()
	s.mu.Unlock()

	ev, err := event.NewAdBreakComplete(s.id, s.now(), &b)
	if err != nil {
		return err
	}
	return s.dispatcher.Publish(ctx, ev)
}

// OpenAdBreaks returns the ids of started breaks that have not completed.
func (s *Session) OpenAdBreaks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, st := range s.breaks {
		if !st.completed {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Session) rejectCompletion(id, reason string) error {
	metrics.IncAdBreakRejected()
	s.logger.Warn().
		Str(log.FieldEvent, "session.ad_break_rejected").
		Str(log.FieldBreakID, id).
		Msg(reason)
	return fmt.Errorf("%w: %s %q", event.ErrInvalidPayload, reason, id)
}
