// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// MessageSecurityMode selects which of signing/encryption a SecureChannel
// applies to symmetric MSG chunks (spec.md §4.4).
type MessageSecurityMode uint32

const (
	MessageSecurityModeInvalid MessageSecurityMode = iota
	MessageSecurityModeNone
	MessageSecurityModeSign
	MessageSecurityModeSignAndEncrypt
)

// SecurityTokenRequestType distinguishes an initial OPN from a renewal.
type SecurityTokenRequestType uint32

const (
	SecurityTokenRequestTypeIssue SecurityTokenRequestType = iota
	SecurityTokenRequestTypeRenew
)

// ApplicationType classifies an ApplicationDescription (spec.md §6).
type ApplicationType uint32

const (
	ApplicationTypeServer ApplicationType = iota
	ApplicationTypeClient
	ApplicationTypeClientAndServer
	ApplicationTypeDiscoveryServer
)

// TimestampsToReturn controls which timestamps Read/MonitoredItem results
// carry.
type TimestampsToReturn uint32

const (
	TimestampsToReturnSource TimestampsToReturn = iota
	TimestampsToReturnServer
	TimestampsToReturnBoth
	TimestampsToReturnNeither
)

// MonitoringMode is a MonitoredItem's sampling/reporting state
// (spec.md §3).
type MonitoringMode uint32

const (
	MonitoringModeDisabled MonitoringMode = iota
	MonitoringModeSampling
	MonitoringModeReporting
)

// DataChangeTrigger selects which DataValue fields must differ for a
// DataChange filter to enqueue a sample (spec.md §4.9).
type DataChangeTrigger uint32

const (
	DataChangeTriggerStatus DataChangeTrigger = iota
	DataChangeTriggerStatusValue
	DataChangeTriggerStatusValueTimestamp
)

// DeadbandType selects the deadband comparison a DataChange filter applies.
type DeadbandType uint32

const (
	DeadbandTypeNone DeadbandType = iota
	DeadbandTypeAbsolute
	DeadbandTypePercent
)

// MonitoredItemDiscardPolicy selects overflow behaviour for a bounded
// notification queue (spec.md §4.9).
type MonitoredItemDiscardPolicy byte

const (
	DiscardOldest MonitoredItemDiscardPolicy = iota
	DiscardNewest
)

// BrowseDirection filters references by direction (spec.md §4.7).
type BrowseDirection uint32

const (
	BrowseDirectionForward BrowseDirection = iota
	BrowseDirectionInverse
	BrowseDirectionBoth
)

// NodeClass classifies an address-space node.
type NodeClass uint32

const (
	NodeClassUnspecified NodeClass = 0
	NodeClassObject      NodeClass = 1 << 0
	NodeClassVariable    NodeClass = 1 << 1
	NodeClassMethod      NodeClass = 1 << 2
	NodeClassObjectType  NodeClass = 1 << 3
	NodeClassVariableType NodeClass = 1 << 4
	NodeClassReferenceType NodeClass = 1 << 5
	NodeClassDataType    NodeClass = 1 << 6
	NodeClassView        NodeClass = 1 << 7
)

// UserTokenType names the identity-token kinds ActivateSession accepts
// (spec.md §4.6).
type UserTokenType uint32

const (
	UserTokenTypeAnonymous UserTokenType = iota
	UserTokenTypeUserName
	UserTokenTypeCertificate
	UserTokenTypeIssuedToken
)

// SecureChannelState is the SecureChannel lifecycle state (spec.md §3, §4.5).
type SecureChannelState int32

const (
	ChannelStateFresh SecureChannelState = iota
	ChannelStateHelloReceived
	ChannelStateOpen
	ChannelStateRenewed
	ChannelStateClosing
	ChannelStateClosed
)

func (s SecureChannelState) String() string {
	switch s {
	case ChannelStateFresh:
		return "Fresh"
	case ChannelStateHelloReceived:
		return "HelloReceived"
	case ChannelStateOpen:
		return "Open"
	case ChannelStateRenewed:
		return "Renewed"
	case ChannelStateClosing:
		return "Closing"
	case ChannelStateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// SubscriptionState is the Subscription lifecycle state (spec.md §3).
type SubscriptionState int32

const (
	SubscriptionStateCreating SubscriptionState = iota
	SubscriptionStateNormal
	SubscriptionStateLate
	SubscriptionStateKeepAlive
	SubscriptionStateClosed
)
