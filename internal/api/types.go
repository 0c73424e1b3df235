// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"github.com/ManuGH/playerplatform/internal/player/event"
)

type healthResponse struct {
	Status   string            `json:"status"`
	Sessions int               `json:"sessions"`
	Checks   map[string]string `json:"checks,omitempty"`
}

type clientStateBody struct {
	DeviceID     string `json:"deviceId"`
	Entitlement  string `json:"entitlement"`
	SessionToken string `json:"sessionToken"`
}

type createSessionRequest struct {
	ID          string          `json:"id"`
	ClientState clientStateBody `json:"clientState"`
}

type sessionResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
}

type sessionListResponse struct {
	Sessions []string `json:"sessions"`
}

type signalRequest struct {
	Signal     string `json:"signal"`
	PositionMs int64  `json:"positionMs"`
	Value      string `json:"value"`
}

type signalResponse struct {
	XuaType string `json:"xuaType"`
}

type exchangeResponse struct {
	ExchangeID string          `json:"exchangeId"`
	SessionID  string          `json:"sessionId"`
	IssuedAt   string          `json:"issuedAt"`
	Client     clientStateBody `json:"clientState"`
}

type drmResponseRequest struct {
	ExchangeID string          `json:"exchangeId"`
	OK         bool            `json:"ok"`
	Major      int             `json:"major"`
	Minor      int             `json:"minor"`
	Cause      *event.DrmError `json:"cause,omitempty"`
}

type drmStateResponse struct {
	State      string `json:"state"`
	ExchangeID string `json:"exchangeId,omitempty"`
}

type authorizeResponse struct {
	ExchangeID string `json:"exchangeId"`
	State      string `json:"state"`
	Major      *int   `json:"major,omitempty"`
	Minor      *int   `json:"minor,omitempty"`
	Error      string `json:"error,omitempty"`
}

type eventsResponse struct {
	Events []event.Record `json:"events"`
}
