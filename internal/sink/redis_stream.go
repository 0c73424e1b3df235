// SPDX-License-Identifier: MIT

// Package sink forwards published player events to external analytics
// storage.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ManuGH/playerplatform/internal/log"
	"github.com/ManuGH/playerplatform/internal/metrics"
	"github.com/ManuGH/playerplatform/internal/player/dispatch"
	"github.com/ManuGH/playerplatform/internal/player/event"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const sinkName = "redis_stream"

// RedisConfig holds Redis connection and stream configuration.
type RedisConfig struct {
	Addr      string // Redis server address (host:port)
	Password  string // Redis password (optional)
	DB        int    // Redis database number
	Stream    string // Stream key events are appended to
	MaxLen    int64  // Approximate stream cap; 0 keeps everything
	QueueSize int    // Events buffered between the dispatcher and the writer
}

// RedisStream appends every event it observes to a Redis stream as an
// event.Record. Delivery goes through a dispatch.Queue so a slow Redis never
// blocks the dispatcher; Run drains it.
type RedisStream struct {
	client *redis.Client
	stream string
	maxLen int64
	queue  *dispatch.Queue
	logger zerolog.Logger

	written atomic.Int64
	failed  atomic.Int64
}

// NewRedisStream connects to Redis and returns a stream sink.
func NewRedisStream(cfg RedisConfig, logger zerolog.Logger) (*RedisStream, error) {
	if cfg.Stream == "" {
		return nil, errors.New("redis stream: stream key is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Str("stream", cfg.Stream).
		Msg("connected to Redis event stream")

	return newRedisStream(client, cfg, logger), nil
}

func newRedisStream(client *redis.Client, cfg RedisConfig, logger zerolog.Logger) *RedisStream {
	return &RedisStream{
		client: client,
		stream: cfg.Stream,
		maxLen: cfg.MaxLen,
		queue:  dispatch.NewQueue(sinkName, cfg.QueueSize),
		logger: logger,
	}
}

// Observer returns the dispatcher-facing side of the sink.
func (s *RedisStream) Observer() dispatch.Observer {
	return s.queue
}

// Write appends one event to the stream and returns the entry id.
func (s *RedisStream) Write(ctx context.Context, ev event.Event) (string, error) {
	rec, err := event.Encode(ev)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	values := make(map[string]any, len(rec))
	for k, v := range rec {
		values[k] = v
	}
	args := &redis.XAddArgs{Stream: s.stream, Values: values}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return id, nil
}

// Run writes queued events until ctx is done or Close is called. Events still
// buffered at cancellation get one bounded drain attempt.
func (s *RedisStream) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			s.drain(drainCtx)
			cancel()
			return nil
		case ev, ok := <-s.queue.C():
			if !ok {
				return nil
			}
			s.write(ctx, ev)
		}
	}
}

func (s *RedisStream) drain(ctx context.Context) {
	for {
		select {
		case ev, ok := <-s.queue.C():
			if !ok {
				return
			}
			s.write(ctx, ev)
		default:
			return
		}
	}
}

func (s *RedisStream) write(ctx context.Context, ev event.Event) {
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := s.Write(wctx, ev); err != nil {
		s.failed.Add(1)
		metrics.IncSinkWriteError(sinkName)
		s.logger.Warn().
			Err(err).
			Str(log.FieldKind, string(ev.Kind())).
			Str(log.FieldSessionID, ev.Base().SessionID).
			Msg("redis stream write failed")
		return
	}
	s.written.Add(1)
}

// Recent returns up to n of the newest events, newest first.
func (s *RedisStream) Recent(ctx context.Context, n int64) ([]event.Event, error) {
	msgs, err := s.client.XRevRangeN(ctx, s.stream, "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange %s: %w", s.stream, err)
	}
	out := make([]event.Event, 0, len(msgs))
	for _, msg := range msgs {
		rec := make(event.Record, len(msg.Values))
		for k, v := range msg.Values {
			str, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("stream entry %s: field %s is %T", msg.ID, k, v)
			}
			rec[k] = str
		}
		ev, err := event.Decode(rec)
		if err != nil {
			return nil, fmt.Errorf("stream entry %s: %w", msg.ID, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// Stats reports write counters and the queue drop count.
func (s *RedisStream) Stats() Stats {
	return Stats{
		Written: s.written.Load(),
		Failed:  s.failed.Load(),
		Dropped: s.queue.Dropped(),
	}
}

// Stats are the sink counters.
type Stats struct {
	Written int64
	Failed  int64
	Dropped uint64
}

// HealthCheck checks if Redis is available.
func (s *RedisStream) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close stops accepting events and closes the Redis connection.
func (s *RedisStream) Close() error {
	s.queue.Close()
	return s.client.Close()
}
