// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"time"

	"github.com/open62541/open62541-sub001/id"
	"github.com/open62541/open62541-sub001/ua"
)

// maxRetransmissionQueueSize bounds how many of its most recently built
// NotificationMessages a Subscription keeps around for Republish, the
// "bounded" retransmission queue of spec.md §4.9; older messages are
// dropped whether or not they were acknowledged.
const maxRetransmissionQueueSize = 10

// Subscription owns a set of MonitoredItems and a publishing timer; it
// queues NotificationMessages for delivery on the next matching Publish
// request and tracks keep-alive/lifetime counters (spec.md §4.9).
type Subscription struct {
	ID             uint32
	SessionHandle  Handle

	PublishingInterval float64
	LifetimeCount      uint32
	MaxKeepAliveCount  uint32
	MaxNotificationsPerPublish uint32
	Priority           byte
	PublishingEnabled  bool

	items        map[uint32]*MonitoredItem
	nextItemID   uint32

	sequenceNumber   uint32
	keepAliveCounter uint32
	lifetimeCounter  uint32

	retransmit []*ua.NotificationMessage

	timerHandle Handle
	handle      Handle
}

// revisedLifetimeCount enforces the "lifetime must be at least 3x keep-alive"
// rule OPC UA Part 4 §5.13.2.2 requires, a detail original_source/ supplies
// that spec.md's distillation left implicit (SPEC_FULL.md §D.2).
func revisedLifetimeCount(requestedLifetime, requestedKeepAlive uint32) (lifetime, keepAlive uint32) {
	keepAlive = requestedKeepAlive
	if keepAlive == 0 {
		keepAlive = 1
	}
	lifetime = requestedLifetime
	if lifetime < 3*keepAlive {
		lifetime = 3 * keepAlive
	}
	return lifetime, keepAlive
}

// newSubscription builds a Subscription from CreateSubscriptionRequest's
// already-revised parameters.
func newSubscription(id uint32, sessionHandle Handle, interval float64, lifetime, keepAlive, maxNotifications uint32, priority byte, enabled bool) *Subscription {
	return &Subscription{
		ID:                 id,
		SessionHandle:      sessionHandle,
		PublishingInterval: interval,
		LifetimeCount:      lifetime,
		MaxKeepAliveCount:  keepAlive,
		MaxNotificationsPerPublish: maxNotifications,
		Priority:           priority,
		PublishingEnabled:  enabled,
		items:              make(map[uint32]*MonitoredItem),
		lifetimeCounter:    lifetime,
	}
}

// addItem assigns mi the next MonitoredItemID and registers it.
func (sub *Subscription) addItem(mi *MonitoredItem) {
	sub.nextItemID++
	mi.ID = sub.nextItemID
	sub.items[mi.ID] = mi
}

func (sub *Subscription) removeItem(id uint32) bool {
	if _, ok := sub.items[id]; !ok {
		return false
	}
	delete(sub.items, id)
	return true
}

// sampleAll runs every item's sampling tick that is due as of now, reading
// its current value through as (spec.md §4.9). Items each carry their own
// SamplingMS; a Subscription drives one shared timer and checks due items
// every tick, the "per-item or shared" sampling timer design note.
func (sub *Subscription) sampleAll(as AddressSpace, now time.Time) {
	for _, mi := range sub.items {
		if mi.SamplingMS > 0 && now.Sub(mi.lastSampled) < time.Duration(mi.SamplingMS)*time.Millisecond {
			continue
		}
		n, ok := as.Node(mi.NodeID)
		if !ok {
			continue
		}
		if mi.AttributeID != id.AttributeIDValue {
			continue
		}
		dv := n.ReadValue()
		dv.Status = ua.StatusOK
		dv.HasStatus = true
		mi.sample(dv, now)
	}
}

// hasNotifications reports whether any item has queued data, the signal a
// Publish response can be built from right now rather than waiting for the
// next keep-alive (spec.md §4.9).
func (sub *Subscription) hasNotifications() bool {
	for _, mi := range sub.items {
		if mi.hasPending() {
			return true
		}
	}
	return false
}

// buildNotification drains every item's queue into a single
// DataChangeNotification, bumps the sequence number, and stashes a copy on
// the retransmission queue (spec.md §4.9). Returns nil if there is nothing
// to report and the keep-alive counter has not yet expired.
func (sub *Subscription) buildNotification(now time.Time) *ua.NotificationMessage {
	var changed []*ua.MonitoredItemNotification
	for _, mi := range sub.items {
		for _, dv := range mi.drain() {
			changed = append(changed, &ua.MonitoredItemNotification{ClientHandle: mi.ClientHandle, Value: *dv})
			if sub.MaxNotificationsPerPublish > 0 && uint32(len(changed)) >= sub.MaxNotificationsPerPublish {
				break
			}
		}
	}

	if len(changed) == 0 {
		sub.keepAliveCounter++
		if sub.keepAliveCounter < sub.MaxKeepAliveCount {
			return nil
		}
		sub.keepAliveCounter = 0
		return sub.nextMessage(now, nil)
	}

	sub.keepAliveCounter = 0
	sub.lifetimeCounter = sub.LifetimeCount
	dcn := &ua.DataChangeNotification{MonitoredItems: changed}
	return sub.nextMessage(now, ua.NewExtensionObject(dcn))
}

func (sub *Subscription) nextMessage(now time.Time, data *ua.ExtensionObject) *ua.NotificationMessage {
	sub.sequenceNumber++
	msg := &ua.NotificationMessage{
		SequenceNumber: sub.sequenceNumber,
		PublishTime:    ua.DateTimeToTicks(now),
	}
	if data != nil {
		msg.NotificationData = []*ua.ExtensionObject{data}
	}
	sub.retransmit = append(sub.retransmit, msg)
	if len(sub.retransmit) > maxRetransmissionQueueSize {
		sub.retransmit = sub.retransmit[len(sub.retransmit)-maxRetransmissionQueueSize:]
	}
	return msg
}

// republish returns a previously sent NotificationMessage by sequence
// number, or nil if it has aged out of the retransmission queue
// (spec.md §4.9, the Republish service).
func (sub *Subscription) republish(seq uint32) *ua.NotificationMessage {
	for _, m := range sub.retransmit {
		if m.SequenceNumber == seq {
			return m
		}
	}
	return nil
}

// tickLifetime decrements the lifetime counter once per publishing
// interval that passes with no Publish request available to answer it;
// returns true once it reaches zero, meaning the Subscription expires
// (spec.md §4.9's lifetime-counter rule, Part 4 §5.13.1.2).
func (sub *Subscription) tickLifetime() bool {
	if sub.lifetimeCounter == 0 {
		return true
	}
	sub.lifetimeCounter--
	return sub.lifetimeCounter == 0
}

// SubscriptionTable owns every live Subscription, keyed through a Slab so
// MonitoredItem backlinks are generational handles (spec.md §9).
type SubscriptionTable struct {
	slab      *Slab[*Subscription]
	byID      map[uint32]Handle
	nextID    uint32
}

// NewSubscriptionTable returns an empty table.
func NewSubscriptionTable() *SubscriptionTable {
	return &SubscriptionTable{slab: NewSlab[*Subscription](), byID: make(map[uint32]Handle)}
}

func (t *SubscriptionTable) Create(sessionHandle Handle, interval float64, lifetime, keepAlive, maxNotifications uint32, priority byte, enabled bool) (*Subscription, Handle) {
	t.nextID++
	sub := newSubscription(t.nextID, sessionHandle, interval, lifetime, keepAlive, maxNotifications, priority, enabled)
	h := t.slab.Alloc(sub)
	sub.handle = h
	t.byID[sub.ID] = h
	return sub, h
}

func (t *SubscriptionTable) ByID(id uint32) (*Subscription, bool) {
	h, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	sub, err := t.slab.Get(h)
	return sub, err == nil
}

func (t *SubscriptionTable) Get(h Handle) (*Subscription, bool) {
	sub, err := t.slab.Get(h)
	return sub, err == nil
}

func (t *SubscriptionTable) Delete(id uint32) {
	h, ok := t.byID[id]
	if !ok {
		return
	}
	delete(t.byID, id)
	_ = t.slab.Free(h)
}

// Each calls fn for every live Subscription.
func (t *SubscriptionTable) Each(fn func(*Subscription)) {
	t.slab.Each(func(_ Handle, sub *Subscription) { fn(sub) })
}

// notifyDataChange is a fast path for Write-triggered reporting: rather
// than waiting for the next sampling tick, a successful Write immediately
// offers the new value to every MonitoredItem watching that node
// (spec.md §4.9's "Write should trigger DataChange promptly" testable
// property).
func (t *SubscriptionTable) notifyDataChange(nodeID *ua.NodeID, dv ua.DataValue, now time.Time) {
	t.slab.Each(func(_ Handle, sub *Subscription) {
		for _, mi := range sub.items {
			if mi.NodeID.Equal(nodeID) && mi.AttributeID == id.AttributeIDValue {
				mi.sample(dv, now)
			}
		}
	})
}
