// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package drm

import (
	"context"
	"time"

	"github.com/ManuGH/playerplatform/internal/player/event"
	"go.opentelemetry.io/otel/trace"
)

// Outcome is the resolution of an exchange.
type Outcome struct {
	ExchangeID string
	State      State
	// Codes is set for failed exchanges.
	Codes *event.DrmCodes
	// Err is nil on success, ErrExchangeTimeout, ErrExchangeCancelled, or an
	// *ExchangeError.
	Err error
}

// Exchange is one issued DRM request, correlated by its ID.
type Exchange struct {
	id       string
	snapshot ClientState
	issuedAt time.Time

	timer    *time.Timer
	span     trace.Span
	onFinish func()

	done    chan struct{}
	outcome Outcome
}

// ID is the correlation id the response must carry.
func (e *Exchange) ID() string { return e.id }

// ClientState is the snapshot taken when the request was issued.
func (e *Exchange) ClientState() ClientState { return e.snapshot }

// IssuedAt is when the exchange entered pending.
func (e *Exchange) IssuedAt() time.Time { return e.issuedAt }

// Request builds the license request for this exchange.
func (e *Exchange) Request() LicenseRequest {
	return LicenseRequest{ExchangeID: e.id, SessionID: e.snapshot.SessionID, ClientState: e.snapshot}
}

// Done is closed once the exchange resolves.
func (e *Exchange) Done() <-chan struct{} { return e.done }

// Wait blocks the caller until the exchange resolves or ctx ends. For a failed
// exchange the DrmFailureEventData has been delivered before Wait returns.
func (e *Exchange) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-e.done:
		return e.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (e *Exchange) stopTimer() {
	if e.timer != nil {
		e.timer.Stop()
	}
}

// finish records the outcome and releases waiters. The delegate calls it
// exactly once, from whichever path won the terminal transition.
func (e *Exchange) finish(o Outcome) {
	e.stopTimer()
	e.outcome = o
	close(e.done)
	if e.onFinish != nil {
		e.onFinish()
	}
}
