// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package xua defines the closed analytics tag vocabulary for playback
// telemetry and the classifier that maps engine signals onto it.
package xua

import "fmt"

// EventType tags an outgoing telemetry record. The set is closed and versioned
// as a whole; new playback signals extend it, they never reuse a variant.
type EventType int

const (
	HeartBeat EventType = iota
	OpeningMedia
	MediaOpened
	MediaFailed
	BitrateChanged
	FPSChanged
	PlayStateChanged
	AdProgress
	TrickPlay
	ScrubStarted
	ScrubEnded

	numEventTypes
)

var eventTypeNames = [numEventTypes]string{
	HeartBeat:        "heartbeat",
	OpeningMedia:     "opening_media",
	MediaOpened:      "media_opened",
	MediaFailed:      "media_failed",
	BitrateChanged:   "bitrate_changed",
	FPSChanged:       "fps_changed",
	PlayStateChanged: "play_state_changed",
	AdProgress:       "ad_progress",
	TrickPlay:        "trick_play",
	ScrubStarted:     "scrub_started",
	ScrubEnded:       "scrub_ended",
}

// All returns every variant in declaration order.
func All() []EventType {
	out := make([]EventType, 0, numEventTypes)
	for t := HeartBeat; t < numEventTypes; t++ {
		out = append(out, t)
	}
	return out
}

// Valid reports whether t is a member of the closed set.
func (t EventType) Valid() bool {
	return t >= HeartBeat && t < numEventTypes
}

func (t EventType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("xua_event_type(%d)", int(t))
	}
	return eventTypeNames[t]
}

// ParseEventType is the inverse of String.
func ParseEventType(s string) (EventType, error) {
	for t := HeartBeat; t < numEventTypes; t++ {
		if eventTypeNames[t] == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown xua event type %q", s)
}
