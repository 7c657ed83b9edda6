// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"time"

	"github.com/open62541/open62541-sub001/ua"
)

// SessionState tracks a Session through CreateSession/ActivateSession/
// CloseSession (spec.md §4.6).
type SessionState int32

const (
	SessionStateCreated SessionState = iota
	SessionStateActivated
	SessionStateClosed
)

// well-known session attribute keys a client may set via ActivateSession's
// LocaleIDs/ClientDescription and retrieve later (spec.md §4.6).
const (
	SessionAttrLocaleIDs         = "0:localeIds"
	SessionAttrClientDescription = "0:clientDescription"
	SessionAttrSessionName       = "0:sessionName"
	SessionAttrClientUserID      = "0:clientUserId"
)

// Session is one authenticated client session, addressable independently
// of the SecureChannel it currently rides on: ActivateSession may rebind a
// Session to a new channel (spec.md §4.6). Operations already parked on the
// old channel (Publish requests, async Calls) stay bound to the old channel
// and are not moved to the new one.
type Session struct {
	handle Handle

	SessionID           *ua.NodeID
	AuthenticationToken *ua.NodeID
	SessionName         string

	state     SessionState
	channelID uint32

	userRole interface{}
	identity UserIdentity

	createdAt      time.Time
	lastActivity   time.Time
	timeout        time.Duration

	attrs map[string]interface{}

	subscriptions []Handle
}

// revisedSessionTimeout clamps a client-requested timeout to
// [minSessionTimeout, maxSessionTimeout], the "revised" value
// CreateSessionResponse reports (spec.md §4.6, §6's maxSessionTimeout key).
func revisedSessionTimeout(requested float64, maxTimeout time.Duration) time.Duration {
	const minSessionTimeout = 10 * time.Second
	if requested <= 0 {
		return maxTimeout
	}
	t := time.Duration(requested) * time.Millisecond
	if t < minSessionTimeout {
		return minSessionTimeout
	}
	if t > maxTimeout {
		return maxTimeout
	}
	return t
}

// newSession allocates a fresh, not-yet-activated Session bound to
// channelID, with a random SessionID/AuthenticationToken per spec.md §4.6.
func newSession(channelID uint32, timeout time.Duration, now time.Time) *Session {
	return &Session{
		SessionID:           ua.NewRandomGUIDNodeID(1),
		AuthenticationToken: ua.NewRandomGUIDNodeID(1),
		state:               SessionStateCreated,
		channelID:           channelID,
		createdAt:           now,
		lastActivity:        now,
		timeout:             timeout,
		attrs:               make(map[string]interface{}),
	}
}

// touch resets the session timeout countdown, called on every service
// request the session is attached to (spec.md §4.6).
func (s *Session) touch(now time.Time) { s.lastActivity = now }

// expired reports whether the session has gone longer than its timeout
// without activity.
func (s *Session) expired(now time.Time) bool {
	return now.Sub(s.lastActivity) > s.timeout
}

// activate moves a Created session to Activated, binding it to channelID
// (which may differ from the channel CreateSession arrived on, the
// session-transfer case in spec.md §4.6), authenticating identity through
// ac, and recording LocaleIDs for attribute lookups.
func (s *Session) activate(ac AccessControl, identity UserIdentity, channelID uint32, localeIDs []string, now time.Time) ua.StatusCode {
	role, err := ac.Authenticate(identity)
	if err != nil {
		if sc, ok := err.(ua.StatusCode); ok {
			return sc
		}
		return ua.StatusBadUserAccessDenied
	}
	s.userRole = role
	s.identity = identity
	s.channelID = channelID
	s.state = SessionStateActivated
	s.attrs[SessionAttrLocaleIDs] = localeIDs
	s.touch(now)
	return ua.StatusOK
}

// decodeUserIdentity extracts the UserIdentity ActivateSessionRequest
// carries inside its UserIdentityToken ExtensionObject (spec.md §4.6).
func decodeUserIdentity(eo *ua.ExtensionObject) UserIdentity {
	if eo == nil || eo.Body == nil {
		return UserIdentity{Kind: UserIdentityAnonymous}
	}
	switch t := eo.Body.(type) {
	case *ua.AnonymousIdentityToken:
		return UserIdentity{Kind: UserIdentityAnonymous, PolicyID: t.PolicyID}
	case *ua.UserNameIdentityToken:
		return UserIdentity{
			Kind:     UserIdentityUserName,
			UserName: t.UserName,
			Password: string(t.Password),
			PolicyID: t.PolicyID,
		}
	default:
		return UserIdentity{Kind: UserIdentityAnonymous}
	}
}

// SessionTable owns every live Session, keyed through a Slab so
// Subscription/MonitoredItem backlinks to their owning session are
// generational handles rather than raw pointers (spec.md §9).
type SessionTable struct {
	slab *Slab[*Session]
	byAuthToken map[string]Handle
}

// NewSessionTable returns an empty table.
func NewSessionTable() *SessionTable {
	return &SessionTable{
		slab:        NewSlab[*Session](),
		byAuthToken: make(map[string]Handle),
	}
}

// Create allocates and indexes a new Session.
func (t *SessionTable) Create(channelID uint32, timeout time.Duration, now time.Time) (*Session, Handle) {
	sess := newSession(channelID, timeout, now)
	h := t.slab.Alloc(sess)
	sess.handle = h
	t.byAuthToken[sess.AuthenticationToken.String()] = h
	return sess, h
}

// ByAuthToken resolves the Session a RequestHeader.AuthenticationToken
// names, the correlation every service dispatch uses (spec.md §4.7).
func (t *SessionTable) ByAuthToken(token *ua.NodeID) (*Session, bool) {
	if token == nil {
		return nil, false
	}
	h, ok := t.byAuthToken[token.String()]
	if !ok {
		return nil, false
	}
	sess, err := t.slab.Get(h)
	if err != nil {
		return nil, false
	}
	return sess, true
}

// Get resolves a Session by its Slab handle.
func (t *SessionTable) Get(h Handle) (*Session, bool) {
	sess, err := t.slab.Get(h)
	return sess, err == nil
}

// Close removes sess from the table, freeing its Slab slot so any stale
// Handle a Subscription still holds is detectable (spec.md §9).
func (t *SessionTable) Close(h Handle) {
	sess, err := t.slab.Get(h)
	if err == nil && sess.AuthenticationToken != nil {
		delete(t.byAuthToken, sess.AuthenticationToken.String())
	}
	_ = t.slab.Free(h)
}

// ExpireIdle closes every session that has gone silent past its timeout,
// returning their handles so the caller can also tear down owned
// subscriptions (spec.md §4.6, §4.9's orphaned-subscription hold-open
// window is Subscription's own concern, not Session's).
func (t *SessionTable) ExpireIdle(now time.Time) []Handle {
	var expired []Handle
	t.slab.Each(func(h Handle, sess *Session) {
		if sess.expired(now) {
			expired = append(expired, h)
		}
	})
	for _, h := range expired {
		t.Close(h)
	}
	return expired
}
