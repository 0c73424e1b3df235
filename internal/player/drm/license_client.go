// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package drm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/playerplatform/internal/player/event"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxLicenseBody = 1 << 20

// ErrLicenseUnavailable marks license server answers that carry no verdict
// (5xx, unreadable bodies).
var ErrLicenseUnavailable = errors.New("license server unavailable")

// ErrLicenseRequest reports a request that could not be built locally.
// It says nothing about the license server's health.
var ErrLicenseRequest = errors.New("invalid license request")

type licenseRequestBody struct {
	ExchangeID   string `json:"exchangeId"`
	SessionID    string `json:"sessionId"`
	DeviceID     string `json:"deviceId,omitempty"`
	Entitlement  string `json:"entitlement,omitempty"`
	SessionToken string `json:"sessionToken,omitempty"`
}

type licenseResponseBody struct {
	OK    bool            `json:"ok"`
	Major int             `json:"major"`
	Minor int             `json:"minor"`
	Error *event.DrmError `json:"error,omitempty"`
}

// HTTPLicenseClient posts license requests as JSON to a single endpoint.
// 2xx and 4xx bodies are license verdicts; anything else is a transport error.
type HTTPLicenseClient struct {
	endpoint string
	http     *http.Client
}

// NewHTTPLicenseClient returns a client for endpoint. A nil client gets a
// traced default with a 30s timeout; the exchange deadline usually fires first.
func NewHTTPLicenseClient(endpoint string, client *http.Client) *HTTPLicenseClient {
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(string, *http.Request) string { return "drm.license" }),
			),
		}
	}
	return &HTTPLicenseClient{endpoint: strings.TrimRight(endpoint, "/"), http: client}
}

func (c *HTTPLicenseClient) Send(ctx context.Context, req LicenseRequest) (Response, error) {
	body, err := json.Marshal(licenseRequestBody{
		ExchangeID:   req.ExchangeID,
		SessionID:    req.SessionID,
		DeviceID:     req.ClientState.DeviceID,
		Entitlement:  req.ClientState.Entitlement,
		SessionToken: req.ClientState.SessionToken,
	})
	if err != nil {
		return Response{}, fmt.Errorf("%w: encode: %v", ErrLicenseRequest, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("%w: build: %v", ErrLicenseRequest, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	res, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= http.StatusInternalServerError || res.StatusCode < http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxLicenseBody))
		return Response{}, fmt.Errorf("%w: status %d", ErrLicenseUnavailable, res.StatusCode)
	}

	var p licenseResponseBody
	if err := json.NewDecoder(io.LimitReader(res.Body, maxLicenseBody)).Decode(&p); err != nil {
		return Response{}, fmt.Errorf("%w: decode body: %v", ErrLicenseUnavailable, err)
	}
	return Response{
		ExchangeID: req.ExchangeID,
		OK:         p.OK,
		Major:      p.Major,
		Minor:      p.Minor,
		Cause:      p.Error,
	}, nil
}

// Breaker guards a call. resilience.CircuitBreaker satisfies it.
type Breaker interface {
	Execute(ctx context.Context, fn func(context.Context) error) error
}

// Guarded routes every Send through b. License verdicts, including
// rejections, count as successes; only transport errors trip the breaker.
func Guarded(t LicenseTransport, b Breaker) LicenseTransport {
	if b == nil {
		return t
	}
	return TransportFunc(func(ctx context.Context, req LicenseRequest) (Response, error) {
		var resp Response
		err := b.Execute(ctx, func(ctx context.Context) error {
			var err error
			resp, err = t.Send(ctx, req)
			return err
		})
		return resp, err
	})
}
