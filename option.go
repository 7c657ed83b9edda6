// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"crypto/rsa"
	"time"

	"github.com/open62541/open62541-sub001/debug"
	"github.com/open62541/open62541-sub001/ua"
	"github.com/open62541/open62541-sub001/uacp"
	"github.com/open62541/open62541-sub001/uapolicy"
	"github.com/open62541/open62541-sub001/uasc"
)

// ClientConfig holds the SecureChannel-level parameters a Client dials
// with (spec.md §4.4, §6). It is built from DefaultClientConfig and a set
// of Options the way every functional-options config in this stack is
// (uasc.Config, uacp's dialConfig).
type ClientConfig struct {
	SecurityPolicyURI uapolicy.URI
	SecurityMode      uasc.SecurityMode
	Certificate       []byte
	PrivateKey        *rsa.PrivateKey
	RemoteCertificate []byte
	RequestedLifetime time.Duration
	Logger            *debug.Logger
	DialOptions       []uacp.Option
}

// DefaultClientConfig returns an unsecured (SecurityPolicy#None) client
// configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		SecurityPolicyURI: uapolicy.None,
		SecurityMode:      uasc.SecurityModeNone,
		RequestedLifetime: uasc.DefaultLifetime,
		Logger:            debug.New(nil),
	}
}

// SessionConfig holds the CreateSession/ActivateSession parameters
// (spec.md §4.6).
type SessionConfig struct {
	ClientDescription ua.ApplicationDescription
	LocaleIDs         []string
	SessionTimeout    time.Duration
	UserIdentityToken ua.BinaryCodec
	AuthUsername      string
	AuthPassword      string
}

// DefaultSessionConfig returns a session configuration with no identity
// token set; CreateSession fills in an anonymous one from the server's
// advertised endpoints unless an Option has already set one.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		ClientDescription: ua.ApplicationDescription{
			ApplicationURI:  "urn:open62541-sub001:client",
			ApplicationName: ua.LocalizedText{Text: "open62541-sub001 client"},
			ApplicationType: ua.ApplicationTypeClient,
		},
		SessionTimeout: 10 * time.Minute,
	}
}

// Option configures a Client's ClientConfig and SessionConfig together,
// mirroring the teacher's "both configs, one Option" pattern.
type Option func(*ClientConfig, *SessionConfig)

// WithSecurityPolicy sets the SecureChannel's negotiated SecurityPolicy.
func WithSecurityPolicy(uri uapolicy.URI) Option {
	return func(c *ClientConfig, _ *SessionConfig) { c.SecurityPolicyURI = uri }
}

// WithSecurityMode sets the SecureChannel's negotiated MessageSecurityMode.
func WithSecurityMode(m uasc.SecurityMode) Option {
	return func(c *ClientConfig, _ *SessionConfig) { c.SecurityMode = m }
}

// WithCertificate sets the client's application instance certificate and
// private key, required whenever SecurityPolicyURI != None.
func WithCertificate(cert []byte, key *rsa.PrivateKey) Option {
	return func(c *ClientConfig, _ *SessionConfig) {
		c.Certificate = cert
		c.PrivateKey = key
	}
}

// WithRemoteCertificate pins the server certificate the client expects,
// normally taken from the EndpointDescription GetEndpoints returned.
func WithRemoteCertificate(cert []byte) Option {
	return func(c *ClientConfig, _ *SessionConfig) { c.RemoteCertificate = cert }
}

// WithRequestedLifetime overrides the requested ChannelSecurityToken
// lifetime.
func WithRequestedLifetime(d time.Duration) Option {
	return func(c *ClientConfig, _ *SessionConfig) { c.RequestedLifetime = d }
}

// WithLogger attaches a debug.Logger to both the SecureChannel and the
// uacp connection.
func WithLogger(l *debug.Logger) Option {
	return func(c *ClientConfig, _ *SessionConfig) {
		c.Logger = l
		c.DialOptions = append(c.DialOptions, uacp.WithDebugLogger(l))
	}
}

// WithApplicationName sets the ClientDescription's ApplicationName sent in
// CreateSessionRequest.
func WithApplicationName(name string) Option {
	return func(_ *ClientConfig, s *SessionConfig) {
		s.ClientDescription.ApplicationName = ua.LocalizedText{Text: name}
	}
}

// WithSessionTimeout overrides the RequestedSessionTimeout.
func WithSessionTimeout(d time.Duration) Option {
	return func(_ *ClientConfig, s *SessionConfig) { s.SessionTimeout = d }
}

// AuthAnonymous selects anonymous authentication, the default when no
// AuthXxx Option is given. CreateSession fills in the PolicyID the server
// advertised once the response is known.
func AuthAnonymous() Option {
	return func(_ *ClientConfig, s *SessionConfig) {
		s.UserIdentityToken = &ua.AnonymousIdentityToken{}
	}
}

// AuthUsername selects username/password authentication. The password is
// encrypted with the server's public key during ActivateSession unless the
// SecureChannel's security policy is SecurityPolicy#None.
func AuthUsername(username, password string) Option {
	return func(_ *ClientConfig, s *SessionConfig) {
		s.UserIdentityToken = &ua.UserNameIdentityToken{UserName: username}
		s.AuthUsername = username
		s.AuthPassword = password
	}
}
