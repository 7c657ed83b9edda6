// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package pubsubbridge

import (
	"context"
	"testing"
)

func TestPublishWithoutConnectionIsNoOp(t *testing.T) {
	b := New(Config{BrokerURL: "mqtt://127.0.0.1:1883", Topic: "opcua/demo"}, nil)
	// b.cm is nil until Start succeeds; Publish must not panic or block.
	b.Publish(context.Background(), Digest{SubscriptionID: 1, SequenceNumber: 2, KeepAlive: true})
}

func TestNewKeepsBrokerURL(t *testing.T) {
	b := New(Config{BrokerURL: "mqtt://127.0.0.1:1883"}, nil)
	if b.cfg.BrokerURL != "mqtt://127.0.0.1:1883" {
		t.Errorf("BrokerURL = %q, want mqtt://127.0.0.1:1883", b.cfg.BrokerURL)
	}
}
