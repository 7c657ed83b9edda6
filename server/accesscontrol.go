// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"github.com/open62541/open62541-sub001/ua"
)

// UserIdentity is the decoded form of a UserIdentityToken ActivateSession
// carries: anonymous, username/password, X.509 certificate, or an issued
// (e.g. JWT) token (spec.md §4.6).
type UserIdentity struct {
	Kind     UserIdentityKind
	UserName string
	Password string
	Certificate []byte
	IssuedToken []byte
	PolicyID string
}

// UserIdentityKind tags UserIdentity's union.
type UserIdentityKind int

const (
	UserIdentityAnonymous UserIdentityKind = iota
	UserIdentityUserName
	UserIdentityX509
	UserIdentityIssued
)

// AccessControl is the capability interface every operation is routed
// through with the session context, per spec.md §4.7 and §9's "Plugin
// indirection" design note. The admin session (AccessControl implementations
// may designate one by UserIdentity) bypasses all checks; this package's
// DefaultAccessControl never grants that bypass.
type AccessControl interface {
	// Authenticate validates identity during ActivateSession, returning a
	// UserRole opaque to the dispatcher but passed back into every other
	// AccessControl call for this session.
	Authenticate(identity UserIdentity) (userRole interface{}, err error)

	AllowRead(userRole interface{}, nodeID *ua.NodeID, attributeID uint32) bool
	AllowWrite(userRole interface{}, nodeID *ua.NodeID, attributeID uint32) bool
	AllowCall(userRole interface{}, methodID *ua.NodeID) bool
	AllowBrowseNode(userRole interface{}, nodeID *ua.NodeID) bool

	// GetUserAccessLevel narrows a VariableNode's AccessLevel attribute to
	// what userRole is actually permitted, the value Read on AttributeID
	// UserAccessLevel reports.
	GetUserAccessLevel(userRole interface{}, nodeID *ua.NodeID) byte
}

// DefaultAccessControl accepts anonymous and username/password sessions
// (checked against a fixed in-memory table) and otherwise allows
// everything, the permissive default open62541 ships before an operator
// supplies their own plugin.
type DefaultAccessControl struct {
	// Users maps username to password for UserIdentityUserName logins. A
	// nil/empty map still accepts UserIdentityAnonymous.
	Users map[string]string
}

// NewDefaultAccessControl returns a DefaultAccessControl with no
// registered users (anonymous-only).
func NewDefaultAccessControl() *DefaultAccessControl {
	return &DefaultAccessControl{Users: map[string]string{}}
}

type defaultUserRole struct {
	userName string
	anonymous bool
}

func (a *DefaultAccessControl) Authenticate(identity UserIdentity) (interface{}, error) {
	switch identity.Kind {
	case UserIdentityAnonymous:
		return defaultUserRole{anonymous: true}, nil
	case UserIdentityUserName:
		if pw, ok := a.Users[identity.UserName]; ok && pw == identity.Password {
			return defaultUserRole{userName: identity.UserName}, nil
		}
		return nil, ua.StatusBadUserAccessDenied
	default:
		return nil, ua.StatusBadUserAccessDenied
	}
}

func (a *DefaultAccessControl) AllowRead(interface{}, *ua.NodeID, uint32) bool    { return true }
func (a *DefaultAccessControl) AllowWrite(interface{}, *ua.NodeID, uint32) bool   { return true }
func (a *DefaultAccessControl) AllowCall(interface{}, *ua.NodeID) bool            { return true }
func (a *DefaultAccessControl) AllowBrowseNode(interface{}, *ua.NodeID) bool      { return true }
func (a *DefaultAccessControl) GetUserAccessLevel(interface{}, *ua.NodeID) byte   { return 0x03 } // CurrentRead|CurrentWrite
