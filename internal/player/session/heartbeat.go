// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/playerplatform/internal/log"
	"github.com/ManuGH/playerplatform/internal/player/event"
	"github.com/ManuGH/playerplatform/internal/player/xua"
)

// PositionFunc reports the current playhead in milliseconds.
type PositionFunc func() int64

// RunHeartbeat publishes a heartbeat telemetry event every interval until ctx
// is done or the session is closed. It returns nil on teardown and ctx.Err()
// on cancellation. Starting it on an already closed session returns ErrClosed.
func (s *Session) RunHeartbeat(ctx context.Context, interval time.Duration, position PositionFunc) error {
	if interval <= 0 {
		return errors.New("heartbeat: interval must be positive")
	}
	if s.isClosed() {
		return ErrClosed
	}
	s.heartbeats.Add(1)
	defer s.heartbeats.Add(-1)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-ticker.C:
			var pos int64
			if position != nil {
				pos = position()
			}
			ev, err := event.NewTelemetry(s.id, s.now(), xua.HeartBeat, pos, "")
			if err != nil {
				s.logger.Error().Err(err).Msg("build heartbeat event")
				continue
			}
			if err := s.dispatcher.Publish(ctx, ev); err != nil {
				s.logger.Warn().Err(err).Str(log.FieldEvent, "session.heartbeat_failed").Msg("publish heartbeat")
			}
		}
	}
}
