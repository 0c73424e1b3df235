// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package event

import (
	"slices"
	"strings"
	"time"
)

// AdSlot is one advertisement inside an ad break.
type AdSlot struct {
	ID       string        `json:"id"`
	Duration time.Duration `json:"duration"`
}

// VideoAdBreak describes a scheduled ad break. It is supplied by the ad
// decisioning side and treated as read-only here.
type VideoAdBreak struct {
	ID    string        `json:"id"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Slots []AdSlot      `json:"slots,omitempty"`
}

// Validate checks the descriptor is usable as an event reference.
func (b VideoAdBreak) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return invalid("ad_break.id", "required")
	}
	if b.Start < 0 {
		return invalid("ad_break.start", "negative offset")
	}
	if b.End < b.Start {
		return invalid("ad_break.end", "before start")
	}
	return nil
}

// Clone returns a deep copy. Empty slot lists normalize to nil.
func (b VideoAdBreak) Clone() VideoAdBreak {
	out := b
	if len(b.Slots) == 0 {
		out.Slots = nil
	} else {
		out.Slots = slices.Clone(b.Slots)
	}
	return out
}

// Equal reports deep equality.
func (b VideoAdBreak) Equal(o VideoAdBreak) bool {
	return b.ID == o.ID && b.Start == o.Start && b.End == o.End && slices.Equal(b.Slots, o.Slots)
}

// AdBreakStartEventData reports that an ad break has begun playing.
type AdBreakStartEventData struct {
	VideoEventData
	adBreak VideoAdBreak
}

// NewAdBreakStart builds an ad-break-start event. A nil or invalid descriptor
// is rejected.
func NewAdBreakStart(sessionID string, at time.Time, adBreak *VideoAdBreak) (AdBreakStartEventData, error) {
	base, ab, err := adBreakFields(sessionID, at, adBreak)
	if err != nil {
		return AdBreakStartEventData{}, err
	}
	return AdBreakStartEventData{VideoEventData: base, adBreak: ab}, nil
}

func (AdBreakStartEventData) Kind() Kind { return KindAdBreakStart }

// AdBreak returns a copy of the referenced descriptor.
func (e AdBreakStartEventData) AdBreak() VideoAdBreak { return e.adBreak.Clone() }

func (e AdBreakStartEventData) Equal(o AdBreakStartEventData) bool {
	return e.VideoEventData.Equal(o.VideoEventData) && e.adBreak.Equal(o.adBreak)
}

// AdBreakCompleteEventData reports that a previously started ad break finished.
type AdBreakCompleteEventData struct {
	VideoEventData
	adBreak VideoAdBreak
}

// NewAdBreakComplete builds an ad-break-complete event. Whether the break was
// actually started is enforced by the session, which owns that history.
func NewAdBreakComplete(sessionID string, at time.Time, adBreak *VideoAdBreak) (AdBreakCompleteEventData, error) {
	base, ab, err := adBreakFields(sessionID, at, adBreak)
	if err != nil {
		return AdBreakCompleteEventData{}, err
	}
	return AdBreakCompleteEventData{VideoEventData: base, adBreak: ab}, nil
}

func (AdBreakCompleteEventData) Kind() Kind { return KindAdBreakComplete }

// AdBreak returns a copy of the referenced descriptor.
func (e AdBreakCompleteEventData) AdBreak() VideoAdBreak { return e.adBreak.Clone() }

func (e AdBreakCompleteEventData) Equal(o AdBreakCompleteEventData) bool {
	return e.VideoEventData.Equal(o.VideoEventData) && e.adBreak.Equal(o.adBreak)
}

func adBreakFields(sessionID string, at time.Time, adBreak *VideoAdBreak) (VideoEventData, VideoAdBreak, error) {
	base, err := NewVideoEvent(sessionID, at)
	if err != nil {
		return VideoEventData{}, VideoAdBreak{}, err
	}
	if adBreak == nil {
		return VideoEventData{}, VideoAdBreak{}, invalid("ad_break", "required")
	}
	if err := adBreak.Validate(); err != nil {
		return VideoEventData{}, VideoAdBreak{}, err
	}
	return base, adBreak.Clone(), nil
}
