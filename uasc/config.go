// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"crypto/rsa"
	"time"

	"github.com/open62541/open62541-sub001/debug"
	"github.com/open62541/open62541-sub001/uapolicy"
)

// DefaultLifetime is the requested/revised ChannelSecurityToken lifetime
// absent explicit configuration (spec.md §6).
const DefaultLifetime = 60 * time.Minute

// rotationFraction is the point in a token's lifetime at which the channel
// proactively renews it, pinned by spec.md §9's Open Question resolution
// ("renew at 75% of the current token's lifetime, not at expiry").
const rotationFraction = 0.75

// Config carries the local application identity and negotiated security
// parameters a SecureChannel needs on either the client or server side
// (spec.md §4.4, §6). Functional options build it the way every
// constructor in this stack's teacher does (client.go's Option pattern).
type Config struct {
	SecurityPolicyURI  uapolicy.URI
	SecurityMode       SecurityMode
	LocalCertificate   []byte
	LocalPrivateKey    *rsa.PrivateKey
	RemoteCertificate  []byte
	RequestedLifetime  time.Duration
	Logger             *debug.Logger
	Now                func() time.Time // injection point for deterministic tests

	// VerifyCertificate, if set, is called with the peer's DER certificate
	// during OpenSecureChannel (client validating the server's certificate,
	// server validating the client's) before the channel is considered
	// open. A non-nil error aborts the handshake with that error. This is
	// the SecureChannel-side hook a server.CertificateGroup plugs into
	// (spec.md §4.4's certificate_verify(cert, trust_group)).
	VerifyCertificate func(der []byte) error
}

// SecurityMode is uasc's own enum for the channel's message security mode;
// securityModeToUA converts it to ua.MessageSecurityMode for the
// OpenSecureChannelRequest.
type SecurityMode int

const (
	SecurityModeNone SecurityMode = iota
	SecurityModeSign
	SecurityModeSignAndEncrypt
)

// Option configures a Config.
type Option func(*Config)

// WithSecurityPolicy sets the negotiated SecurityPolicy URI.
func WithSecurityPolicy(uri uapolicy.URI) Option {
	return func(c *Config) { c.SecurityPolicyURI = uri }
}

// WithSecurityMode sets the negotiated MessageSecurityMode.
func WithSecurityMode(m SecurityMode) Option {
	return func(c *Config) { c.SecurityMode = m }
}

// WithCertificate sets the local application instance certificate and its
// private key, required whenever SecurityPolicyURI != None.
func WithCertificate(cert []byte, key *rsa.PrivateKey) Option {
	return func(c *Config) {
		c.LocalCertificate = cert
		c.LocalPrivateKey = key
	}
}

// WithRemoteCertificate pins the expected remote certificate, used on the
// client side once an endpoint has been selected via GetEndpoints.
func WithRemoteCertificate(cert []byte) Option {
	return func(c *Config) { c.RemoteCertificate = cert }
}

// WithRequestedLifetime overrides DefaultLifetime.
func WithRequestedLifetime(d time.Duration) Option {
	return func(c *Config) { c.RequestedLifetime = d }
}

// WithLogger attaches a debug.Logger; nil leaves tracing disabled.
func WithLogger(l *debug.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithClock overrides time.Now, the manual-clock pattern this stack's
// timer-driven components use for deterministic tests (spec.md §9).
func WithClock(now func() time.Time) Option {
	return func(c *Config) { c.Now = now }
}

// WithCertificateVerifier attaches a peer-certificate verification hook,
// normally a server.CertificateGroup's Verify method.
func WithCertificateVerifier(verify func(der []byte) error) Option {
	return func(c *Config) { c.VerifyCertificate = verify }
}

// NewConfig applies opts over the defaults.
func NewConfig(opts ...Option) *Config {
	c := &Config{
		SecurityPolicyURI: uapolicy.None,
		SecurityMode:      SecurityModeNone,
		RequestedLifetime: DefaultLifetime,
		Now:               time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = debug.New(nil)
	}
	return c
}

func (c *Config) now() time.Time { return c.Now() }
