// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/playerplatform/internal/log"
	"github.com/ManuGH/playerplatform/internal/player/drm"
	"github.com/ManuGH/playerplatform/internal/player/event"
	"github.com/ManuGH/playerplatform/internal/player/session"
	"github.com/ManuGH/playerplatform/internal/player/xua"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ctxKey struct{}

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 1000
)

// sessionCtx resolves {id} to a live session or answers 404.
func (s *Server) sessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sess, ok := s.cfg.Registry.Get(id)
		if !ok {
			writeError(w, r, http.StatusNotFound, "session_not_found", fmt.Errorf("session %q", id))
			return
		}
		ctx := log.ContextWithSessionID(r.Context(), id)
		ctx = context.WithValue(ctx, ctxKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	return r.Context().Value(ctxKey{}).(*session.Session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionListResponse{Sessions: s.cfg.Registry.IDs()})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err)
		return
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}

	provider := drm.NewStaticProvider(drm.ClientState{
		DeviceID:     req.ClientState.DeviceID,
		Entitlement:  req.ClientState.Entitlement,
		SessionToken: req.ClientState.SessionToken,
		SessionID:    id,
	})
	sess, err := s.cfg.Registry.Create(session.Config{
		ID:         id,
		Dispatcher: s.cfg.Dispatcher,
		Provider:   provider,
		DRMTimeout: s.cfg.DRMTimeout,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if s.cfg.HeartbeatInterval > 0 {
		go func() {
			// Ends when the session is removed.
			err := sess.RunHeartbeat(context.Background(), s.cfg.HeartbeatInterval, sess.Position)
			if err != nil && !errors.Is(err, session.ErrClosed) {
				s.logger.Warn().Err(err).Str(log.FieldSessionID, sess.ID()).Msg("heartbeat stopped")
			}
		}()
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		ID:        sess.ID(),
		CreatedAt: sess.CreatedAt().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.cfg.Registry.Remove(sessionFrom(r).ID())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var req signalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err)
		return
	}
	sig := xua.Signal(req.Signal)
	if err := sessionFrom(r).HandleSignal(r.Context(), sig, req.PositionMs, req.Value); err != nil {
		writeDomainError(w, r, err)
		return
	}
	tag, _ := xua.Classify(sig)
	writeJSON(w, http.StatusAccepted, signalResponse{XuaType: tag.String()})
}

func (s *Server) handleStartAdBreak(w http.ResponseWriter, r *http.Request) {
	var b event.VideoAdBreak
	if err := decodeBody(r, &b); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := sessionFrom(r).StartAdBreak(r.Context(), b); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleCompleteAdBreak(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r).CompleteAdBreak(r.Context(), chi.URLParam(r, "breakID")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDRMState(w http.ResponseWriter, r *http.Request) {
	d := sessionFrom(r).DRM()
	resp := drmStateResponse{State: string(d.State())}
	if ex := d.Current(); ex != nil {
		resp.ExchangeID = ex.ID()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBeginExchange(w http.ResponseWriter, r *http.Request) {
	ex, err := sessionFrom(r).DRM().Begin(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	req := ex.Request()
	writeJSON(w, http.StatusCreated, exchangeResponse{
		ExchangeID: req.ExchangeID,
		SessionID:  req.SessionID,
		IssuedAt:   ex.IssuedAt().UTC().Format(time.RFC3339Nano),
		Client: clientStateBody{
			DeviceID:     req.ClientState.DeviceID,
			Entitlement:  req.ClientState.Entitlement,
			SessionToken: req.ClientState.SessionToken,
		},
	})
}

func (s *Server) handleExchangeResponse(w http.ResponseWriter, r *http.Request) {
	var req drmResponseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err)
		return
	}
	d := sessionFrom(r).DRM()
	err := d.HandleResponse(r.Context(), drm.Response{
		ExchangeID: req.ExchangeID,
		OK:         req.OK,
		Major:      req.Major,
		Minor:      req.Minor,
		Cause:      req.Cause,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drmStateResponse{State: string(d.State()), ExchangeID: req.ExchangeID})
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if s.cfg.License == nil {
		writeError(w, r, http.StatusNotImplemented, "license_unavailable", errors.New("no license server configured"))
		return
	}
	out, err := sessionFrom(r).DRM().Authorize(r.Context(), s.cfg.License)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	resp := authorizeResponse{ExchangeID: out.ExchangeID, State: string(out.State)}
	if out.Codes != nil {
		resp.Major, resp.Minor = &out.Codes.Major, &out.Codes.Minor
	}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Events == nil {
		writeError(w, r, http.StatusNotImplemented, "events_unavailable", errors.New("no event store configured"))
		return
	}
	limit := defaultEventsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxEventsLimit {
			writeError(w, r, http.StatusBadRequest, "bad_request", fmt.Errorf("limit must be 1..%d", maxEventsLimit))
			return
		}
		limit = n
	}

	// The stream is shared by all sessions; over-read and filter.
	events, err := s.cfg.Events.Recent(r.Context(), int64(limit)*4)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	id := sessionFrom(r).ID()
	out := make([]event.Record, 0, limit)
	for _, ev := range events {
		if ev.Base().SessionID != id {
			continue
		}
		rec, err := event.Encode(ev)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: out})
}
