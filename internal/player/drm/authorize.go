// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package drm

import (
	"context"
	"errors"
)

// Authorize runs one complete exchange over transport: Begin, send the request
// on the delegate's own goroutine, apply the result and wait for the outcome.
// Only the caller blocks; the send is abandoned as soon as the exchange
// resolves by other means (timeout or cancel).
func (d *Delegate) Authorize(ctx context.Context, transport LicenseTransport) (Outcome, error) {
	if transport == nil {
		return Outcome{}, errors.New("drm authorize: nil transport")
	}
	sendCtx, cancelSend := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	ex, err := d.begin(ctx, cancelSend)
	if err != nil {
		cancelSend()
		return Outcome{}, err
	}

	go func() {
		defer cancelSend()
		resp, err := transport.Send(sendCtx, ex.Request())
		if err != nil {
			if sendCtx.Err() != nil {
				// Resolved elsewhere or timed out; the timer owns the outcome.
				return
			}
			d.failTransport(sendCtx, ex.ID(), err)
			return
		}
		resp.ExchangeID = ex.ID()
		if err := d.HandleResponse(sendCtx, resp); err != nil && !errors.Is(err, ErrStaleResponse) {
			d.failTransport(sendCtx, ex.ID(), err)
		}
	}()

	return ex.Wait(ctx)
}
