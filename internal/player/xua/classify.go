// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package xua

import (
	"errors"
	"fmt"
)

// ErrUnclassifiedSignal is returned for engine signals with no telemetry tag.
var ErrUnclassifiedSignal = errors.New("unclassified signal")

// Signal is a raw playback-engine notification name.
type Signal string

// Known engine signals.
const (
	SignalHeartbeat        Signal = "heartbeat"
	SignalMediaOpening     Signal = "media_opening"
	SignalMediaOpened      Signal = "media_opened"
	SignalMediaFailed      Signal = "media_failed"
	SignalBitrateChanged   Signal = "bitrate_changed"
	SignalFPSChanged       Signal = "fps_changed"
	SignalPlayStateChanged Signal = "play_state_changed"
	SignalPaused           Signal = "paused"
	SignalPlaying          Signal = "playing"
	SignalBuffering        Signal = "buffering"
	SignalAdProgress       Signal = "ad_progress"
	SignalSeek             Signal = "seek"
	SignalFastForward      Signal = "fast_forward"
	SignalRewind           Signal = "rewind"
	SignalScrubStarted     Signal = "scrub_started"
	SignalScrubEnded       Signal = "scrub_ended"
)

var signalTable = map[Signal]EventType{
	SignalHeartbeat:        HeartBeat,
	SignalMediaOpening:     OpeningMedia,
	SignalMediaOpened:      MediaOpened,
	SignalMediaFailed:      MediaFailed,
	SignalBitrateChanged:   BitrateChanged,
	SignalFPSChanged:       FPSChanged,
	SignalPlayStateChanged: PlayStateChanged,
	SignalPaused:           PlayStateChanged,
	SignalPlaying:          PlayStateChanged,
	SignalBuffering:        PlayStateChanged,
	SignalAdProgress:       AdProgress,
	SignalSeek:             TrickPlay,
	SignalFastForward:      TrickPlay,
	SignalRewind:           TrickPlay,
	SignalScrubStarted:     ScrubStarted,
	SignalScrubEnded:       ScrubEnded,
}

// Classify maps an engine signal onto exactly one telemetry tag.
// It is pure; unknown signals fail instead of defaulting to a variant.
func Classify(sig Signal) (EventType, error) {
	t, ok := signalTable[sig]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnclassifiedSignal, string(sig))
	}
	return t, nil
}

// Signals returns the engine signals the classifier recognises.
func Signals() []Signal {
	out := make([]Signal, 0, len(signalTable))
	for s := range signalTable {
		out = append(out, s)
	}
	return out
}
