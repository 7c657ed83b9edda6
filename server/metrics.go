// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/open62541/open62541-sub001/ua"
)

// Metrics exposes the server's live counts and publish-latency distribution
// as Prometheus collectors (SPEC_FULL.md §B: "prometheus/client_golang for
// server/metrics"). A nil *Metrics is safe to call methods on; every method
// is a no-op in that case, so wiring Metrics into the hot path never
// requires a server built without a registry to branch on it.
type Metrics struct {
	secureChannels  prometheus.Gauge
	sessions        prometheus.Gauge
	subscriptions   prometheus.Gauge
	monitoredItems  prometheus.Gauge
	parkedAsyncOps  prometheus.Gauge
	publishLatency  prometheus.Histogram
	serviceRequests *prometheus.CounterVec
	serviceErrors   *prometheus.CounterVec
}

// NewMetrics constructs a Metrics and registers its collectors with reg.
// Passing a fresh prometheus.NewRegistry() keeps it isolated from
// prometheus.DefaultRegisterer, useful for tests that construct more than
// one Server in a process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		secureChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "opcua_server", Name: "secure_channels", Help: "Currently open SecureChannels.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "opcua_server", Name: "sessions", Help: "Currently active Sessions.",
		}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "opcua_server", Name: "subscriptions", Help: "Currently active Subscriptions.",
		}),
		monitoredItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "opcua_server", Name: "monitored_items", Help: "Currently active MonitoredItems.",
		}),
		parkedAsyncOps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "opcua_server", Name: "parked_async_operations", Help: "Operations awaiting asynchronous completion.",
		}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "opcua_server", Name: "publish_latency_seconds",
			Help:    "Time between a notification becoming available and its Publish response being sent.",
			Buckets: prometheus.DefBuckets,
		}),
		serviceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opcua_server", Name: "service_requests_total", Help: "Service requests processed, by service name.",
		}, []string{"service"}),
		serviceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opcua_server", Name: "service_errors_total", Help: "Service requests that returned a Bad ServiceResult, by service name.",
		}, []string{"service"}),
	}
	reg.MustRegister(
		m.secureChannels, m.sessions, m.subscriptions, m.monitoredItems,
		m.parkedAsyncOps, m.publishLatency, m.serviceRequests, m.serviceErrors,
	)
	return m
}

func (m *Metrics) observeRequest(service string, result ua.StatusCode) {
	if m == nil {
		return
	}
	m.serviceRequests.WithLabelValues(service).Inc()
	if !result.IsGood() {
		m.serviceErrors.WithLabelValues(service).Inc()
	}
}

func (m *Metrics) setSecureChannels(n int) { if m != nil { m.secureChannels.Set(float64(n)) } }
func (m *Metrics) setSessions(n int)       { if m != nil { m.sessions.Set(float64(n)) } }
func (m *Metrics) setSubscriptions(n int)  { if m != nil { m.subscriptions.Set(float64(n)) } }
func (m *Metrics) setMonitoredItems(n int) { if m != nil { m.monitoredItems.Set(float64(n)) } }
func (m *Metrics) setParkedAsyncOps(n int) { if m != nil { m.parkedAsyncOps.Set(float64(n)) } }

func (m *Metrics) observePublishLatencySeconds(s float64) {
	if m != nil {
		m.publishLatency.Observe(s)
	}
}
