// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dispatch

import (
	"context"

	"github.com/ManuGH/playerplatform/internal/log"
	"github.com/ManuGH/playerplatform/internal/player/event"
	"github.com/rs/zerolog"
)

// LogObserver writes one structured line per event. DRM failures log at warn.
type LogObserver struct {
	logger zerolog.Logger
}

func NewLogObserver(l zerolog.Logger) *LogObserver {
	return &LogObserver{logger: l}
}

func (o *LogObserver) Observe(ctx context.Context, ev event.Event) {
	l := log.WithContext(ctx, o.logger)

	level := zerolog.DebugLevel
	switch ev.(type) {
	case event.DrmFailureEventData:
		level = zerolog.WarnLevel
	case event.AdBreakStartEventData, event.AdBreakCompleteEventData:
		level = zerolog.InfoLevel
	}

	entry := l.WithLevel(level)
	switch e := ev.(type) {
	case event.DrmFailureEventData:
		entry = entry.
			Int(log.FieldMajor, e.Major()).
			Int(log.FieldMinor, e.Minor()).
			Str(log.FieldExchangeID, e.ExchangeID())
		if c := e.Cause(); c != nil {
			entry = entry.Str(log.FieldErrorDomain, c.Domain)
		}
	case event.TelemetryEventData:
		entry = entry.Str(log.FieldXuaType, e.Tag().String())
	case event.AdBreakStartEventData:
		entry = entry.Str(log.FieldBreakID, e.AdBreak().ID)
	case event.AdBreakCompleteEventData:
		entry = entry.Str(log.FieldBreakID, e.AdBreak().ID)
	}
	entry.
		Str(log.FieldEvent, "player.event").
		Str(log.FieldKind, string(ev.Kind())).
		Str(log.FieldSessionID, ev.Base().SessionID).
		Time("at", ev.Base().Timestamp).
		Msg("event delivered")
}
