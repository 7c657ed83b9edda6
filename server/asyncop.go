// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"time"

	"github.com/open62541/open62541-sub001/ua"
)

// AsyncResult is the sum type a parked operation resolves to: exactly one
// of Ready(value) or a cancellation/timeout status, reproducing spec.md
// §9's "value-returning task interface" design note as a concrete Go type
// rather than a callback invoked from arbitrary goroutines.
type AsyncResult struct {
	Status StatusOrValue
}

// StatusOrValue carries either a decoded output Variant (Good) or just a
// StatusCode (Bad/cancelled), matching a Call output argument or a Write
// completion, which has no payload beyond its status.
type StatusOrValue struct {
	Value  interface{} // nil for operations with no output (e.g. Write)
	Status ua.StatusCode
}

// ParkedOperation is what the dispatcher allocates when a handler returns
// GoodCompletesAsynchronously (spec.md §4.8): the original request
// correlation, the deadline a timer enforces, and the cancel-callback
// invoked if the deadline, session close, or channel close beats the
// userland result. AsyncOperations stores it in a map keyed by
// (ChannelID, RequestID) rather than in a Slab, since ParkedOperations
// have no internal backlinks to protect.
type ParkedOperation struct {
	ChannelID  uint32
	RequestID  uint32
	SessionHandle Handle
	Deadline   time.Time
	OnResolve  func(AsyncResult)
	OnCancel   func(ua.StatusCode)
	resolved   bool
}

// AsyncOperations tracks every ParkedOperation awaiting completion. It is
// owned by the Server and accessed only under the server mutex / inside
// the EventLoop, matching spec.md §5's "Nodestore is accessed only under
// the server mutex" rule extended to async state.
type AsyncOperations struct {
	byKey map[asyncKey]*ParkedOperation
}

type asyncKey struct {
	channelID uint32
	requestID uint32
}

// NewAsyncOperations returns an empty tracker.
func NewAsyncOperations() *AsyncOperations {
	return &AsyncOperations{byKey: make(map[asyncKey]*ParkedOperation)}
}

// Park registers op, keyed by its (ChannelID, RequestID) pair.
func (a *AsyncOperations) Park(op *ParkedOperation) {
	a.byKey[asyncKey{op.ChannelID, op.RequestID}] = op
}

// Resolve delivers result to the parked operation matching (channelID,
// requestID), if any is still outstanding, and removes it. Returns false
// if no matching operation was found (already resolved or cancelled).
func (a *AsyncOperations) Resolve(channelID, requestID uint32, result AsyncResult) bool {
	k := asyncKey{channelID, requestID}
	op, ok := a.byKey[k]
	if !ok || op.resolved {
		return false
	}
	op.resolved = true
	delete(a.byKey, k)
	if op.OnResolve != nil {
		op.OnResolve(result)
	}
	return true
}

// CancelExpired invokes the cancel-callback for every parked operation
// whose deadline has passed as of now, removing each — the timer-driven
// half of spec.md §4.8's step 4.
func (a *AsyncOperations) CancelExpired(now time.Time) {
	for k, op := range a.byKey {
		if op.resolved || now.Before(op.Deadline) {
			continue
		}
		op.resolved = true
		delete(a.byKey, k)
		if op.OnCancel != nil {
			op.OnCancel(ua.StatusBadTimeout)
		}
	}
}

// CancelChannel cancels every operation parked on channelID, the "channel
// close enumerates parked operations" rule in spec.md §5.
func (a *AsyncOperations) CancelChannel(channelID uint32, status ua.StatusCode) {
	for k, op := range a.byKey {
		if k.channelID != channelID || op.resolved {
			continue
		}
		op.resolved = true
		delete(a.byKey, k)
		if op.OnCancel != nil {
			op.OnCancel(status)
		}
	}
}

// CancelSession cancels every operation parked on behalf of sessionHandle,
// the "session close enumerates parked operations" rule in spec.md §5.
func (a *AsyncOperations) CancelSession(sessionHandle Handle, status ua.StatusCode) {
	for k, op := range a.byKey {
		if op.SessionHandle != sessionHandle || op.resolved {
			continue
		}
		op.resolved = true
		delete(a.byKey, k)
		if op.OnCancel != nil {
			op.OnCancel(status)
		}
	}
}

// Len reports how many operations are currently parked, exposed for
// server/metrics.
func (a *AsyncOperations) Len() int { return len(a.byKey) }
