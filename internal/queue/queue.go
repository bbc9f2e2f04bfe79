// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package queue implements the bounded single-producer/single-consumer
// transport that connects pipeline stages.
//
// Full and Empty are ordinary states reported through return values. No
// operation on the hot path ever blocks for longer than the short critical
// section that guards the ring indices.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Policy selects what Send does when the queue is full.
type Policy int

const (
	// DropNew discards the incoming item when the queue is full.
	DropNew Policy = iota
	// DropOldestKeepNewest overwrites the oldest queued item with the incoming one.
	DropOldestKeepNewest
)

func (p Policy) String() string {
	switch p {
	case DropNew:
		return "drop_new"
	case DropOldestKeepNewest:
		return "drop_oldest"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Result is the outcome of a send operation.
type Result int

const (
	// Sent means the item was enqueued without losing anything.
	Sent Result = iota
	// Full means the item was not enqueued because the queue had no room.
	Full
	// Overwrote means the item was enqueued and the oldest item was discarded.
	Overwrote
	// TimedOut means a blocking send gave up before room became available.
	TimedOut
)

func (r Result) String() string {
	switch r {
	case Sent:
		return "sent"
	case Full:
		return "full"
	case Overwrote:
		return "overwrote"
	case TimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Dropped reports whether an item was lost by the operation, either the new
// one or an evicted old one.
func (r Result) Dropped() bool {
	return r != Sent
}

// ErrCapacity is returned by New for a non-positive capacity.
var ErrCapacity = errors.New("queue: capacity must be > 0")

// Stats is a point-in-time copy of a queue's counters.
type Stats struct {
	Sent        uint64
	Received    uint64
	Rejected    uint64 // new items discarded because the queue was full
	Overwritten uint64 // old items evicted to make room
}

// Dropped is the total number of items lost in this queue.
func (s Stats) Dropped() uint64 {
	return s.Rejected + s.Overwritten
}

// Queue is a fixed-capacity FIFO ring of T values.
//
// Exactly one goroutine is expected to send and one to receive. The mutex
// makes evict-and-insert a single step, so a concurrent receive can never
// observe a half-done overwrite.
type Queue[T any] struct {
	name   string
	policy Policy

	mu    sync.Mutex
	buf   []T
	head  int // index of the oldest item
	count int
	stats Stats

	// space is signalled (non-blocking) after every receive so SendBlocking
	// can wait without polling.
	space chan struct{}
}

// New creates a queue holding at most capacity items.
func New[T any](name string, capacity int, policy Policy) (*Queue[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrCapacity)
	}
	return &Queue[T]{
		name:   name,
		policy: policy,
		buf:    make([]T, capacity),
		space:  make(chan struct{}, 1),
	}, nil
}

// MustNew is like New but panics on an invalid capacity. Intended for
// wiring done once at start-up with constant sizes.
func MustNew[T any](name string, capacity int, policy Policy) *Queue[T] {
	q, err := New[T](name, capacity, policy)
	if err != nil {
		panic(err)
	}
	return q
}

func (q *Queue[T]) Name() string   { return q.name }
func (q *Queue[T]) Policy() Policy { return q.policy }
func (q *Queue[T]) Cap() int       { return len(q.buf) }

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats returns a copy of the queue counters.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// TrySend enqueues item if there is room. It returns Sent or Full and never
// applies the overflow policy.
func (q *Queue[T]) TrySend(item T) Result {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.buf) {
		q.stats.Rejected++
		return Full
	}
	q.pushLocked(item)
	return Sent
}

// Send enqueues item using the queue's overflow policy. It never blocks.
//
// Under DropNew a full queue yields Full. Under DropOldestKeepNewest a full
// queue has its head overwritten in the same critical section and the
// result is Overwrote.
func (q *Queue[T]) Send(item T) Result {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count < len(q.buf) {
		q.pushLocked(item)
		return Sent
	}
	if q.policy == DropNew {
		q.stats.Rejected++
		return Full
	}
	var zero T
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.stats.Overwritten++
	q.pushLocked(item)
	return Overwrote
}

// SendBlocking waits up to timeout for room and enqueues item. It returns
// TimedOut when the timeout elapses or ctx is done first. Only meant for
// low-rate paths without a deadline.
func (q *Queue[T]) SendBlocking(ctx context.Context, item T, timeout time.Duration) Result {
	if r := q.trySendQuiet(item); r == Sent {
		return r
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-q.space:
			if r := q.trySendQuiet(item); r == Sent {
				return r
			}
		case <-timer.C:
			q.mu.Lock()
			q.stats.Rejected++
			q.mu.Unlock()
			return TimedOut
		case <-ctx.Done():
			q.mu.Lock()
			q.stats.Rejected++
			q.mu.Unlock()
			return TimedOut
		}
	}
}

// trySendQuiet is TrySend without counting a rejection; SendBlocking only
// counts one when it finally gives up.
func (q *Queue[T]) trySendQuiet(item T) Result {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.buf) {
		return Full
	}
	q.pushLocked(item)
	return Sent
}

// TryReceive dequeues the oldest item. ok is false when the queue is empty.
func (q *Queue[T]) TryReceive() (item T, ok bool) {
	q.mu.Lock()
	if q.count == 0 {
		q.mu.Unlock()
		return item, false
	}
	item = q.buf[q.head]
	var zero T
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.stats.Received++
	q.mu.Unlock()

	select {
	case q.space <- struct{}{}:
	default:
	}
	return item, true
}

func (q *Queue[T]) pushLocked(item T) {
	tail := (q.head + q.count) % len(q.buf)
	q.buf[tail] = item
	q.count++
	q.stats.Sent++
}

// Receiver is the consumer side of a queue.
type Receiver[T any] interface {
	TryReceive() (T, bool)
}

// DrainToLatest empties r and returns the last item it received along with
// how many items were taken. ok is false if nothing was queued.
func DrainToLatest[T any](r Receiver[T]) (latest T, n int, ok bool) {
	for {
		item, got := r.TryReceive()
		if !got {
			return latest, n, n > 0
		}
		latest = item
		n++
	}
}
