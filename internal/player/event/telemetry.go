// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package event

import (
	"time"

	"github.com/ManuGH/playerplatform/internal/player/xua"
)

// TelemetryEventData is an analytics record tagged with an xua.EventType.
type TelemetryEventData struct {
	VideoEventData
	tag        xua.EventType
	positionMs int64
	value      string
}

// NewTelemetry builds a telemetry record. value carries the signal detail
// (bitrate, fps, play state) and may be empty.
func NewTelemetry(sessionID string, at time.Time, tag xua.EventType, positionMs int64, value string) (TelemetryEventData, error) {
	base, err := NewVideoEvent(sessionID, at)
	if err != nil {
		return TelemetryEventData{}, err
	}
	if !tag.Valid() {
		return TelemetryEventData{}, invalid("xua_type", "unknown tag "+tag.String())
	}
	if positionMs < 0 {
		return TelemetryEventData{}, invalid("position", "negative")
	}
	return TelemetryEventData{VideoEventData: base, tag: tag, positionMs: positionMs, value: value}, nil
}

func (TelemetryEventData) Kind() Kind { return KindTelemetry }

func (e TelemetryEventData) Tag() xua.EventType { return e.tag }
func (e TelemetryEventData) PositionMs() int64  { return e.positionMs }
func (e TelemetryEventData) Value() string      { return e.value }

func (e TelemetryEventData) Equal(o TelemetryEventData) bool {
	return e.VideoEventData.Equal(o.VideoEventData) &&
		e.tag == o.tag && e.positionMs == o.positionMs && e.value == o.value
}
