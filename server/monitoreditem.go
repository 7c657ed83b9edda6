// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"math"
	"time"

	"github.com/open62541/open62541-sub001/ua"
)

// QueueOverflowPolicy selects what happens when a MonitoredItem's queue is
// full and a new sample arrives (spec.md §4.9).
type QueueOverflowPolicy int

const (
	DiscardOldest QueueOverflowPolicy = iota
	DiscardNewest
)

// MonitoredItem samples one (NodeID, AttributeID) pair on behalf of a
// Subscription, queueing DataChangeNotifications for the next Publish
// (spec.md §4.9).
type MonitoredItem struct {
	ID             uint32
	NodeID         *ua.NodeID
	AttributeID    uint32
	ClientHandle   uint32
	Mode           ua.MonitoringMode
	SamplingMS     float64
	QueueSize      uint32
	Overflow       QueueOverflowPolicy
	TimestampsToReturn ua.TimestampsToReturn

	Trigger       ua.DataChangeTrigger
	DeadbandType  ua.DeadbandType
	DeadbandValue float64

	lastSampled time.Time
	lastValue   *ua.DataValue
	queue       []*ua.DataValue
	queueOverflowed bool
	timerHandle Handle
}

// newMonitoredItem builds a MonitoredItem from a wire create request plus
// the revised sampling interval/queue size the caller already computed.
func newMonitoredItem(id uint32, item *ua.MonitoredItemCreateRequest, revisedInterval float64, revisedQueueSize uint32) *MonitoredItem {
	mi := &MonitoredItem{
		ID:           id,
		NodeID:       item.ItemToMonitor.NodeID,
		AttributeID:  item.ItemToMonitor.AttributeID,
		ClientHandle: item.RequestedParams.ClientHandle,
		Mode:         item.MonitoringMode,
		SamplingMS:   revisedInterval,
		QueueSize:    revisedQueueSize,
		Overflow:     DiscardOldest,
		Trigger:      ua.DataChangeTriggerStatusValue,
	}
	if !item.RequestedParams.DiscardOldest {
		mi.Overflow = DiscardNewest
	}
	if item.RequestedParams.Filter == nil {
		return mi
	}
	if f, ok := item.RequestedParams.Filter.Body.(*ua.DataChangeFilter); ok {
		mi.Trigger = f.Trigger
		mi.DeadbandType = f.DeadbandType
		mi.DeadbandValue = f.DeadbandValue
	}
	return mi
}

// revisedSamplingInterval clamps a requested interval to the MonitoredItem's
// governing node's MinSamplingMS. A negative interval is replaced by the
// Subscription's publishing interval; an interval of 0 is kept, and such an
// item is sampled on every shared sampling tick and on every Write
// (spec.md §4.9).
func revisedSamplingInterval(requested, minAllowed, publishingInterval float64) float64 {
	if requested < 0 {
		return publishingInterval
	}
	if requested == 0 {
		return 0
	}
	if requested < minAllowed {
		return minAllowed
	}
	return requested
}

// shouldReport applies the DataChange trigger and deadband filter to decide
// whether newValue differs enough from the last queued value to be
// reported (spec.md §4.9).
func (mi *MonitoredItem) shouldReport(newValue ua.DataValue) bool {
	if mi.lastValue == nil {
		return true
	}
	old := mi.lastValue
	switch mi.Trigger {
	case ua.DataChangeTriggerStatus:
		return newValue.Status != old.Status
	case ua.DataChangeTriggerStatusValueTimestamp:
		if !newValue.SourceTimestamp.Equal(old.SourceTimestamp) {
			return true
		}
		fallthrough
	default: // DataChangeTriggerStatusValue
		if newValue.Status != old.Status {
			return true
		}
		return mi.valueChanged(old, &newValue)
	}
}

func (mi *MonitoredItem) valueChanged(old, new_ *ua.DataValue) bool {
	if old.Value == nil || new_.Value == nil {
		return old.Value != new_.Value
	}
	ov, nv := old.Value.Scalar(), new_.Value.Scalar()
	if mi.DeadbandType == ua.DeadbandTypeNone {
		return ov != nv
	}
	of, ok1 := asFloat(ov)
	nf, ok2 := asFloat(nv)
	if !ok1 || !ok2 {
		return ov != nv
	}
	diff := math.Abs(nf - of)
	if mi.DeadbandType == ua.DeadbandTypePercent {
		if of == 0 {
			return diff != 0
		}
		return diff/math.Abs(of)*100 > mi.DeadbandValue
	}
	return diff > mi.DeadbandValue
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// sample evaluates the governing node's current value and, if it should be
// reported, queues it, applying the overflow policy if the queue is full
// (spec.md §4.9). Returns true if the sample passed the filter in Reporting
// mode, including a sample the DiscardNewest policy then drops.
func (mi *MonitoredItem) sample(dv ua.DataValue, now time.Time) bool {
	mi.lastSampled = now
	if mi.Mode == ua.MonitoringModeDisabled {
		return false
	}
	if !mi.shouldReport(dv) {
		return false
	}
	mi.lastValue = &dv
	if mi.Mode != ua.MonitoringModeReporting {
		return false // Sampling mode updates lastValue but doesn't queue
	}
	size := int(mi.QueueSize)
	if size < 1 {
		size = 1
	}
	if len(mi.queue) >= size {
		mi.queueOverflowed = true
		switch mi.Overflow {
		case DiscardOldest:
			mi.queue = append(mi.queue[1:], &dv)
		case DiscardNewest:
			// newest sample is dropped; queue unchanged
			return true
		}
		return true
	}
	mi.queue = append(mi.queue, &dv)
	return true
}

// drain returns and clears the queued notifications, setting the Overflow
// info-bit on the last returned value (the current tail) if the queue
// dropped samples since the last drain (spec.md §4.9's "Overflow
// info-bit": DiscardOldest drops the head and flags the new tail;
// DiscardNewest drops the incoming sample and flags the retained tail).
func (mi *MonitoredItem) drain() []*ua.DataValue {
	if len(mi.queue) == 0 {
		return nil
	}
	out := mi.queue
	mi.queue = nil
	if mi.queueOverflowed {
		tail := out[len(out)-1]
		tail.Status = ua.StatusCode(uint32(tail.Status) | statusInfoBitOverflow)
		mi.queueOverflowed = false
	}
	return out
}

// statusInfoBitOverflow is Part 8's "Overflow" info bit (bit 7 of a
// StatusCode's low byte), set by drain on the queue's tail when the queue
// has dropped samples since the previous drain.
const statusInfoBitOverflow = 1 << 7

// hasPending reports whether drain would return anything, used by the
// Subscription to decide whether a publish cycle has data to report.
func (mi *MonitoredItem) hasPending() bool { return len(mi.queue) > 0 }
