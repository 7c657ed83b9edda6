// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package pubsubbridge is a thin, one-way bridge that republishes
// Subscription keep-alive and notification digests to an MQTT broker
// (spec.md §6 `pubsub`). The PubSub service itself — reader groups,
// writer groups, DataSetMetaData — is out of this stack's scope
// (SPEC_FULL.md §D); this package only exposes the collaborator
// interface the `pubsub` config key names, grounded on thane-ai-agent's
// autopaho-based MQTT publisher (internal/mqtt/publisher.go).
package pubsubbridge

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/open62541/open62541-sub001/debug"
	"github.com/open62541/open62541-sub001/errors"
)

// Digest is the one-way summary of a Publish cycle the bridge forwards.
// It carries no NotificationData payload on purpose — this is a
// keep-alive/activity feed for external dashboards, not a PubSub
// DataSetMessage.
type Digest struct {
	SubscriptionID   uint32    `json:"subscriptionId"`
	SequenceNumber   uint32    `json:"sequenceNumber"`
	PublishTime      time.Time `json:"publishTime"`
	NotificationCount int      `json:"notificationCount"`
	KeepAlive        bool      `json:"keepAlive"`
}

// Config names the broker and topic prefix the bridge publishes under,
// mirroring spec.md §6's `pubsub` sub-object.
type Config struct {
	BrokerURL string
	Topic     string
	ClientID  string
}

// Bridge owns one MQTT connection and republishes Digests to it. A Bridge
// with a nil connection manager (before Start, or while disconnected)
// drops digests rather than blocking the caller — this is an
// observability side-channel, not a delivery-guaranteed transport.
type Bridge struct {
	cfg    Config
	logger *debug.Logger
	cm     *autopaho.ConnectionManager
}

// New constructs a Bridge. Call Start to connect; Publish is a no-op
// until the connection comes up.
func New(cfg Config, logger *debug.Logger) *Bridge {
	if logger == nil {
		logger = debug.New(nil)
	}
	return &Bridge{cfg: cfg, logger: logger}
}

// Start connects to the configured broker and blocks until ctx is
// cancelled, reconnecting automatically via autopaho. Run it in its own
// goroutine.
func (b *Bridge) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(b.cfg.BrokerURL)
	if err != nil {
		return errors.Wrap(err, "pubsubbridge: parse broker url")
	}

	clientID := b.cfg.ClientID
	if clientID == "" {
		clientID = "opcua-server"
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls: []*url.URL{brokerURL},
		KeepAlive:  30,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			b.logger.Trace("pubsubbridge connected", "broker", b.cfg.BrokerURL)
		},
		OnConnectError: func(err error) {
			b.logger.Trace("pubsubbridge connect error", "error", err)
		},
		ClientConfig: paho.ClientConfig{ClientID: clientID},
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return errors.Wrap(err, "pubsubbridge: connect")
	}
	b.cm = cm

	<-ctx.Done()
	return nil
}

// Publish republishes one Digest. It never blocks the Subscription
// engine it's fed from: publish failures and a not-yet-connected broker
// are logged and dropped, never returned to the EventLoop tick that
// produced d.
func (b *Bridge) Publish(ctx context.Context, d Digest) {
	if b.cm == nil {
		return
	}
	payload, err := json.Marshal(d)
	if err != nil {
		b.logger.Trace("pubsubbridge marshal failed", "error", err)
		return
	}
	topic := b.cfg.Topic
	if d.KeepAlive {
		topic += "/keepalive"
	} else {
		topic += "/notification"
	}
	if _, err := b.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     0,
	}); err != nil {
		b.logger.Trace("pubsubbridge publish failed", "topic", topic, "error", err)
	}
}
