// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package eventloop implements the single-threaded cooperative scheduler
// that drives a server.Server's periodic work (the subscription sampling
// tick and the session/async-operation sweep): callbacks queued on one
// EventLoop run one at a time on the goroutine calling Iterate/Run. The
// loop does not serialize them against other goroutines; server.Server
// takes its own mutex (Server.mu) inside each callback, the same lock its
// per-channel request dispatch holds (spec.md §9's EventLoop design note). Grounded on the
// teacher's use of explicit option structs and atomic state, generalized
// from a one-shot client into a repeating, cancelable timer wheel the way
// a production server needs.
package eventloop

import (
	"container/heap"
	"sync"
	"time"

	"github.com/open62541/open62541-sub001/debug"
)

// Handle identifies a scheduled callback so it can be cancelled or have
// its interval changed later.
type Handle uint64

// Callback is invoked when a timer fires. now is the EventLoop's current
// notion of time (cfg.Now()), not necessarily wall-clock time, so tests
// can drive the loop with a manual clock (spec.md §9).
type Callback func(now time.Time)

type timer struct {
	handle   Handle
	due      time.Time
	interval time.Duration // zero means one-shot
	cb       Callback
	index    int // heap index, maintained by container/heap
	removed  bool
}

// timerHeap is a min-heap on due time implementing container/heap, the
// same approach open62541's own timer list and most production Go
// schedulers use for O(log n) next-deadline lookup.
type timerHeap []*timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].due.Before(h[j].due) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *timerHeap) Push(x interface{}) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// EventLoop is a single-threaded cooperative scheduler: all callbacks run
// synchronously inside Iterate/Run on the calling goroutine, so callbacks
// never overlap one another. State they share with other goroutines needs
// its own locking, as server.Server does with its mutex (spec.md §9).
type EventLoop struct {
	mu      sync.Mutex
	h       timerHeap
	byID    map[Handle]*timer
	nextID  Handle
	now     func() time.Time
	wake    chan struct{}
	stopped bool
	dbg     *debug.Logger
}

// Option configures an EventLoop.
type Option func(*EventLoop)

// WithClock overrides time.Now with a deterministic now() for tests.
func WithClock(now func() time.Time) Option {
	return func(l *EventLoop) { l.now = now }
}

// WithLogger attaches a debug.Logger.
func WithLogger(d *debug.Logger) Option {
	return func(l *EventLoop) { l.dbg = d }
}

// New returns a ready EventLoop with no timers scheduled.
func New(opts ...Option) *EventLoop {
	l := &EventLoop{
		byID: make(map[Handle]*timer),
		now:  time.Now,
		wake: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *EventLoop) notify() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AddTimed schedules cb to run once at "at".
func (l *EventLoop) AddTimed(at time.Time, cb Callback) Handle {
	return l.add(at, 0, cb)
}

// AddRepeated schedules cb to run every interval, starting one interval
// from now.
func (l *EventLoop) AddRepeated(interval time.Duration, cb Callback) Handle {
	return l.add(l.now().Add(interval), interval, cb)
}

func (l *EventLoop) add(due time.Time, interval time.Duration, cb Callback) Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	t := &timer{handle: l.nextID, due: due, interval: interval, cb: cb}
	l.byID[t.handle] = t
	heap.Push(&l.h, t)
	l.notify()
	return t.handle
}

// ChangeInterval updates a repeating timer's period; the next firing is
// rescheduled interval from now rather than from its previous due time, so
// a Subscription's RevisedPublishingInterval takes effect immediately
// (spec.md §4.9).
func (l *EventLoop) ChangeInterval(h Handle, interval time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.byID[h]
	if !ok || t.removed {
		return false
	}
	t.interval = interval
	t.due = l.now().Add(interval)
	heap.Fix(&l.h, t.index)
	l.notify()
	return true
}

// Remove cancels a scheduled timer. Safe to call from inside the timer's
// own callback.
func (l *EventLoop) Remove(h Handle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.byID[h]
	if !ok {
		return false
	}
	t.removed = true
	delete(l.byID, h)
	if t.index >= 0 && t.index < len(l.h) {
		heap.Remove(&l.h, t.index)
	}
	return true
}

// Iterate runs every timer already due, then returns. If waitForIO is true
// and nothing was due, it blocks until either a timer becomes due or
// AddTimed/AddRepeated/ChangeInterval wakes it, matching open62541's
// UA_Server_run_iterate(waitInternal) semantics (spec.md §9).
func (l *EventLoop) Iterate(waitForIO bool) {
	for {
		l.mu.Lock()
		if l.stopped {
			l.mu.Unlock()
			return
		}
		now := l.now()
		var due []*timer
		for len(l.h) > 0 && !l.h[0].due.After(now) {
			t := heap.Pop(&l.h).(*timer)
			if t.removed {
				continue
			}
			due = append(due, t)
		}
		var wait time.Duration
		if len(due) == 0 && len(l.h) > 0 {
			wait = l.h[0].due.Sub(now)
		}
		idle := len(due) == 0 && len(l.h) == 0
		l.mu.Unlock()

		for _, t := range due {
			t.cb(now)
			l.mu.Lock()
			if t.interval > 0 && !t.removed {
				t.due = l.now().Add(t.interval)
				heap.Push(&l.h, t)
			} else {
				delete(l.byID, t.handle)
			}
			l.mu.Unlock()
		}

		if len(due) > 0 {
			continue // more may now be due without waiting
		}
		if !waitForIO {
			return
		}
		if idle {
			<-l.wake
			return
		}
		if wait <= 0 {
			return
		}
		select {
		case <-l.wake:
		case <-time.After(wait):
		}
		return
	}
}

// Run calls Iterate(true) until Stop is called, the shape a server's main
// goroutine drives in production (cmd/uaserver's serve command).
func (l *EventLoop) Run() {
	for {
		l.mu.Lock()
		stopped := l.stopped
		l.mu.Unlock()
		if stopped {
			return
		}
		l.Iterate(true)
	}
}

// Stop halts Run; any blocked Iterate(true) call wakes immediately.
func (l *EventLoop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.notify()
}
