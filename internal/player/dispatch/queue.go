// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/playerplatform/internal/log"
	"github.com/ManuGH/playerplatform/internal/metrics"
	"github.com/ManuGH/playerplatform/internal/player/event"
)

const dropLogEvery = 100

// Queue is an Observer that hands events to a consumer goroutine through a
// buffered channel. It never blocks delivery: when the buffer is full the
// event is dropped and counted.
type Queue struct {
	name    string
	ch      chan event.Event
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// NewQueue creates a queue with the given buffer size.
func NewQueue(name string, size int) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{name: name, ch: make(chan event.Event, size)}
}

// C returns the consumer channel. It is closed by Close.
func (q *Queue) C() <-chan event.Event {
	return q.ch
}

// Dropped returns the number of events dropped so far.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

func (q *Queue) Observe(_ context.Context, ev event.Event) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.drop("closed")
		return
	}
	select {
	case q.ch <- ev:
	default:
		q.drop("full")
	}
}

func (q *Queue) drop(reason string) {
	metrics.IncQueueDrop(q.name, reason)
	count := q.dropped.Add(1)
	if count%dropLogEvery == 1 {
		log.L().Warn().
			Str("queue", q.name).
			Str("reason", reason).
			Uint64("dropped", count).
			Msg("queue observer dropped event")
	}
}

// Close closes the consumer channel. Calling it again is a no-op.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
