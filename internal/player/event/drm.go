// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package event

import (
	"fmt"
	"strings"
	"time"
)

// DrmCodes is the major/minor failure pair. The two codes only exist together.
type DrmCodes struct {
	Major int // protocol-level failure category
	Minor int // vendor-specific sub-code
}

// DrmError is the structured error underlying a DRM failure.
type DrmError struct {
	Domain  string `json:"domain"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

func (e *DrmError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s error %d", e.Domain, e.Code)
	}
	return fmt.Sprintf("%s error %d: %s", e.Domain, e.Code, e.Message)
}

// DrmFailureEventData reports the failure of a single DRM exchange attempt.
type DrmFailureEventData struct {
	VideoEventData
	exchangeID string
	codes      DrmCodes
	cause      *DrmError
}

// NewDrmFailure builds a DRM failure event. codes is required; cause is
// optional and must belong to the same exchange attempt.
func NewDrmFailure(sessionID string, at time.Time, exchangeID string, codes *DrmCodes, cause *DrmError) (DrmFailureEventData, error) {
	base, err := NewVideoEvent(sessionID, at)
	if err != nil {
		return DrmFailureEventData{}, err
	}
	if codes == nil {
		return DrmFailureEventData{}, invalid("major/minor", "required")
	}
	ev := DrmFailureEventData{
		VideoEventData: base,
		exchangeID:     strings.TrimSpace(exchangeID),
		codes:          *codes,
	}
	if cause != nil {
		if strings.TrimSpace(cause.Domain) == "" {
			return DrmFailureEventData{}, invalid("error.domain", "required")
		}
		c := *cause
		ev.cause = &c
	}
	return ev, nil
}

func (DrmFailureEventData) Kind() Kind { return KindDrmFailure }

// ExchangeID is the correlation id of the failed exchange, if known.
func (e DrmFailureEventData) ExchangeID() string { return e.exchangeID }

func (e DrmFailureEventData) Major() int      { return e.codes.Major }
func (e DrmFailureEventData) Minor() int      { return e.codes.Minor }
func (e DrmFailureEventData) Codes() DrmCodes { return e.codes }

// Cause returns a copy of the underlying error, or nil.
func (e DrmFailureEventData) Cause() *DrmError {
	if e.cause == nil {
		return nil
	}
	c := *e.cause
	return &c
}

func (e DrmFailureEventData) Equal(o DrmFailureEventData) bool {
	if !e.VideoEventData.Equal(o.VideoEventData) || e.exchangeID != o.exchangeID || e.codes != o.codes {
		return false
	}
	if e.cause == nil || o.cause == nil {
		return e.cause == nil && o.cause == nil
	}
	return *e.cause == *o.cause
}
