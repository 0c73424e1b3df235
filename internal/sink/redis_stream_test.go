// SPDX-License-Identifier: MIT

package sink

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/playerplatform/internal/metrics"
	"github.com/ManuGH/playerplatform/internal/player/dispatch"
	"github.com/ManuGH/playerplatform/internal/player/event"
	"github.com/ManuGH/playerplatform/internal/player/xua"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 3, 14, 14, 9, 26, 0, time.UTC)

// setupMiniRedis creates a stream sink backed by miniredis.
func setupMiniRedis(t *testing.T, cfg RedisConfig) (*miniredis.Miniredis, *RedisStream) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if cfg.Stream == "" {
		cfg.Stream = "player:events"
	}
	s := newRedisStream(client, cfg, zerolog.Nop())
	t.Cleanup(func() { _ = s.Close() })
	return mr, s
}

func mustEvent[T event.Event](e T, err error) event.Event {
	if err != nil {
		panic(err)
	}
	return e
}

func TestWriteAppendsEncodedRecord(t *testing.T) {
	mr, s := setupMiniRedis(t, RedisConfig{})
	ctx := context.Background()

	ev := mustEvent(event.NewDrmFailure("sess-1", at, "ex-1",
		&event.DrmCodes{Major: 3, Minor: 7}, &event.DrmError{Domain: "license", Code: 403, Message: "denied"}))
	id, err := s.Write(ctx, ev)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	entries, err := mr.Stream("player:events")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Values, event.KeyKind)

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	if diff := cmp.Diff(ev, got[0]); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	_, s := setupMiniRedis(t, RedisConfig{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ev := mustEvent(event.NewTelemetry("sess-1", at.Add(time.Duration(i)*time.Second), xua.HeartBeat, int64(i*1000), ""))
		_, err := s.Write(ctx, ev)
		require.NoError(t, err)
	}

	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(2000), got[0].(event.TelemetryEventData).PositionMs())
	require.Equal(t, int64(1000), got[1].(event.TelemetryEventData).PositionMs())
}

func TestMaxLenTrimsStream(t *testing.T) {
	mr, s := setupMiniRedis(t, RedisConfig{MaxLen: 2})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := s.Write(ctx, mustEvent(event.NewVideoEvent("sess-1", at)))
		require.NoError(t, err)
	}
	entries, err := mr.Stream("player:events")
	require.NoError(t, err)
	require.LessOrEqual(t, len(entries), 5)
	require.GreaterOrEqual(t, len(entries), 2)
}

func TestRunForwardsDispatchedEvents(t *testing.T) {
	mr, s := setupMiniRedis(t, RedisConfig{QueueSize: 8})
	d := dispatch.New(dispatch.WithLogger(zerolog.Nop()))
	_, err := d.Subscribe(event.KindAll, s.Observer())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	ad := event.VideoAdBreak{ID: "pre-1", End: 30 * time.Second}
	require.NoError(t, d.Publish(ctx, mustEvent(event.NewAdBreakStart("sess-1", at, &ad))))
	require.NoError(t, d.Publish(ctx, mustEvent(event.NewAdBreakComplete("sess-1", at, &ad))))

	require.Eventually(t, func() bool {
		entries, err := mr.Stream("player:events")
		return err == nil && len(entries) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, int64(2), s.Stats().Written)
}

func TestWriteFailureIsCounted(t *testing.T) {
	mr, s := setupMiniRedis(t, RedisConfig{QueueSize: 4})
	mr.Close()

	counter := metrics.SinkWriteErrorsTotal.WithLabelValues(sinkName)
	read := func() float64 {
		m := &dto.Metric{}
		require.NoError(t, counter.Write(m))
		return m.GetCounter().GetValue()
	}
	before := read()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Observer().Observe(ctx, mustEvent(event.NewVideoEvent("sess-1", at)))
	require.Eventually(t, func() bool { return s.Stats().Failed == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, before+1, read())

	cancel()
	require.NoError(t, <-done)
}

func TestNewRedisStreamRequiresStream(t *testing.T) {
	_, err := NewRedisStream(RedisConfig{Addr: "127.0.0.1:1"}, zerolog.Nop())
	require.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	mr, s := setupMiniRedis(t, RedisConfig{})
	require.NoError(t, s.HealthCheck(context.Background()))
	mr.Close()
	require.Error(t, s.HealthCheck(context.Background()))
}
