// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import "github.com/open62541/open62541-sub001/errors"

// Handle is a generational (generation, slot) reference into a Slab,
// replacing the source's raw backlink pointers (Subscription→Session,
// MonitoredItem→Subscription) with something that fails closed on
// use-after-free instead of reading freed/reused memory (spec.md §9's
// "re-architect as arena-indexed handles" design note).
type Handle struct {
	slot uint32
	gen  uint32
}

// IsZero reports the zero Handle, used as "no backlink".
func (h Handle) IsZero() bool { return h.slot == 0 && h.gen == 0 }

type slabEntry[T any] struct {
	val    T
	gen    uint32
	inUse bool
}

// Slab is a generational arena: Alloc returns a Handle that stays valid
// until Free is called on it, after which any further Get returns
// ErrStaleHandle even if the slot is reused by a later Alloc (spec.md §9).
// Not safe for concurrent use without external locking — callers hold it
// under the server mutex the way every other piece of server state is.
type Slab[T any] struct {
	entries []slabEntry[T]
	free    []uint32
}

// ErrStaleHandle is returned by Get/Free for a Handle whose generation no
// longer matches the slot's current occupant.
var ErrStaleHandle = errors.New("server: stale handle")

// NewSlab returns an empty Slab.
func NewSlab[T any]() *Slab[T] {
	return &Slab[T]{entries: []slabEntry[T]{{}}} // slot 0 reserved as "never valid"
}

// Alloc stores val and returns its Handle.
func (s *Slab[T]) Alloc(val T) Handle {
	if n := len(s.free); n > 0 {
		slot := s.free[n-1]
		s.free = s.free[:n-1]
		e := &s.entries[slot]
		e.val = val
		e.inUse = true
		return Handle{slot: slot, gen: e.gen}
	}
	slot := uint32(len(s.entries))
	s.entries = append(s.entries, slabEntry[T]{val: val, gen: 1, inUse: true})
	return Handle{slot: slot, gen: 1}
}

// Get resolves h to its stored value, or ErrStaleHandle if h has been
// freed (or was never valid).
func (s *Slab[T]) Get(h Handle) (T, error) {
	var zero T
	if h.slot == 0 || int(h.slot) >= len(s.entries) {
		return zero, ErrStaleHandle
	}
	e := &s.entries[h.slot]
	if !e.inUse || e.gen != h.gen {
		return zero, ErrStaleHandle
	}
	return e.val, nil
}

// Set overwrites h's stored value in place, failing the same way Get does
// on a stale handle.
func (s *Slab[T]) Set(h Handle, val T) error {
	if h.slot == 0 || int(h.slot) >= len(s.entries) {
		return ErrStaleHandle
	}
	e := &s.entries[h.slot]
	if !e.inUse || e.gen != h.gen {
		return ErrStaleHandle
	}
	e.val = val
	return nil
}

// Free releases h's slot, bumping its generation so any outstanding copy
// of h becomes detectably stale, then returns the slot to the free list
// for reuse by a later Alloc.
func (s *Slab[T]) Free(h Handle) error {
	if h.slot == 0 || int(h.slot) >= len(s.entries) {
		return ErrStaleHandle
	}
	e := &s.entries[h.slot]
	if !e.inUse || e.gen != h.gen {
		return ErrStaleHandle
	}
	var zero T
	e.val = zero
	e.inUse = false
	e.gen++
	s.free = append(s.free, h.slot)
	return nil
}

// Each calls fn for every still-allocated entry, in slot order. fn must
// not Alloc/Free on s.
func (s *Slab[T]) Each(fn func(Handle, T)) {
	for slot := 1; slot < len(s.entries); slot++ {
		e := &s.entries[slot]
		if e.inUse {
			fn(Handle{slot: uint32(slot), gen: e.gen}, e.val)
		}
	}
}
