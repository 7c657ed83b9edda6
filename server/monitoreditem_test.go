// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"testing"
	"time"

	"github.com/open62541/open62541-sub001/ua"
)

func dataValue(t *testing.T, v int32) ua.DataValue {
	t.Helper()
	variant, err := ua.NewVariant(v)
	if err != nil {
		t.Fatalf("NewVariant(%d): %v", v, err)
	}
	return ua.DataValue{Value: variant}
}

// TestMonitoredItemDrainFlagsTailOnDiscardOldest traces this package's
// queueSize=2 DiscardOldest scenario: writing 1,2,3,4 leaves the queue
// [3,4], and the Overflow info-bit belongs on 4, the retained tail, not 3.
func TestMonitoredItemDrainFlagsTailOnDiscardOldest(t *testing.T) {
	mi := &MonitoredItem{QueueSize: 2, Overflow: DiscardOldest, Mode: ua.MonitoringModeReporting, Trigger: ua.DataChangeTriggerStatusValue}
	now := time.Now()
	for _, v := range []int32{1, 2, 3, 4} {
		mi.sample(dataValue(t, v), now)
	}
	out := mi.drain()
	if len(out) != 2 {
		t.Fatalf("want 2 queued values, got %d", len(out))
	}
	if out[0].Status&statusInfoBitOverflow != 0 {
		t.Errorf("overflow bit set on head %v, want unset", out[0].Value.Scalar())
	}
	if out[1].Status&statusInfoBitOverflow == 0 {
		t.Errorf("overflow bit not set on tail %v, want set", out[1].Value.Scalar())
	}
	if got := out[1].Value.Scalar(); got != int32(4) {
		t.Errorf("tail value = %v, want 4", got)
	}
}

// TestMonitoredItemDrainFlagsTailOnDiscardNewest mirrors the DiscardNewest
// policy: the incoming sample is dropped and the queue's own tail is
// flagged instead.
func TestMonitoredItemDrainFlagsTailOnDiscardNewest(t *testing.T) {
	mi := &MonitoredItem{QueueSize: 2, Overflow: DiscardNewest, Mode: ua.MonitoringModeReporting, Trigger: ua.DataChangeTriggerStatusValue}
	now := time.Now()
	for _, v := range []int32{1, 2, 3} {
		mi.sample(dataValue(t, v), now)
	}
	out := mi.drain()
	if len(out) != 2 {
		t.Fatalf("want 2 queued values, got %d", len(out))
	}
	if out[1].Status&statusInfoBitOverflow == 0 {
		t.Errorf("overflow bit not set on tail %v, want set", out[1].Value.Scalar())
	}
	if got := out[1].Value.Scalar(); got != int32(2) {
		t.Errorf("tail value = %v, want 2 (newest sample dropped)", got)
	}
}
