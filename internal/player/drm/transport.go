// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package drm

import (
	"context"

	"github.com/ManuGH/playerplatform/internal/player/event"
)

// Reserved code pairs for failures the license server never reported.
// Server codes are non-negative.
const (
	TimeoutMajor   = -1000
	TimeoutMinor   = -1
	TransportMajor = -2000
	TransportMinor = -1
)

// TransportDomain is the error domain of transport-level failures.
const TransportDomain = "transport"

// LicenseRequest is what goes to the license server for one exchange.
type LicenseRequest struct {
	ExchangeID  string
	SessionID   string
	ClientState ClientState
}

// Response is the classified answer to one exchange.
type Response struct {
	ExchangeID string
	OK         bool
	Major      int
	Minor      int
	Cause      *event.DrmError
}

// LicenseTransport performs the license round trip. The protocol itself
// lives behind this boundary.
type LicenseTransport interface {
	Send(ctx context.Context, req LicenseRequest) (Response, error)
}

// TransportFunc adapts a function to LicenseTransport.
type TransportFunc func(ctx context.Context, req LicenseRequest) (Response, error)

func (f TransportFunc) Send(ctx context.Context, req LicenseRequest) (Response, error) {
	return f(ctx, req)
}
