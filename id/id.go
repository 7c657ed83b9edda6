// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package id defines the well-known numeric identifiers (namespace 0) used
// to address standard nodes, attributes and data types without constructing
// a ua.NodeID by hand. It mirrors the generated id package gopcua/opcua
// ships, trimmed to the identifiers this stack's services actually use.
package id

// Attribute identifiers (Part 4, Table 144).
const (
	AttributeIDNodeID = uint32(iota + 1)
	AttributeIDNodeClass
	AttributeIDBrowseName
	AttributeIDDisplayName
	AttributeIDDescription
	AttributeIDWriteMask
	AttributeIDUserWriteMask
	AttributeIDIsAbstract
	AttributeIDSymmetric
	AttributeIDInverseName
	AttributeIDContainsNoLoops
	AttributeIDEventNotifier
	AttributeIDValue
	AttributeIDDataType
	AttributeIDValueRank
	AttributeIDArrayDimensions
	AttributeIDAccessLevel
	AttributeIDUserAccessLevel
	AttributeIDMinimumSamplingInterval
	AttributeIDHistorizing
	AttributeIDExecutable
	AttributeIDUserExecutable
)

// Standard object/type nodes referenced by the Server/ServerStatus subtree
// and the services that read it (spec.md §8 scenario 1).
const (
	ObjectIDServer                    = uint32(2253)
	ObjectIDServer_ServerStatus       = uint32(2256)
	ObjectIDServer_ServerStatus_State = uint32(2259)
	VariableIDServerStatusType_CurrentTime = uint32(863)
	ObjectIDServer_ServerCapabilities = uint32(2268)
	ObjectIDRootFolder                = uint32(84)
	ObjectIDObjectsFolder              = uint32(85)
	ObjectIDTypesFolder                = uint32(86)
)

// Reference types used by Browse direction/type filtering.
const (
	ReferenceTypeIDReferences          = uint32(31)
	ReferenceTypeIDHierarchicalReferences = uint32(33)
	ReferenceTypeIDHasChild            = uint32(34)
	ReferenceTypeIDOrganizes           = uint32(35)
	ReferenceTypeIDHasComponent        = uint32(47)
	ReferenceTypeIDHasProperty         = uint32(46)
	ReferenceTypeIDHasSubtype          = uint32(45)
	ReferenceTypeIDHasNotifier         = uint32(48)
	ReferenceTypeIDHasEventSource      = uint32(36)
	ReferenceTypeIDGeneratesEvent      = uint32(41)
)

// Built-in data type identifiers (Part 6, Table 1), used as DataType.TypeID
// for scalar values.
const (
	DataTypeIDBoolean = uint32(iota + 1)
	DataTypeIDSByte
	DataTypeIDByte
	DataTypeIDInt16
	DataTypeIDUInt16
	DataTypeIDInt32
	DataTypeIDUInt32
	DataTypeIDInt64
	DataTypeIDUInt64
	DataTypeIDFloat
	DataTypeIDDouble
	DataTypeIDString
	DataTypeIDDateTime
	DataTypeIDGUID
	DataTypeIDByteString
	DataTypeIDXMLElement
	DataTypeIDNodeID
	DataTypeIDExpandedNodeID
	DataTypeIDStatusCode
	DataTypeIDQualifiedName
	DataTypeIDLocalizedText
	DataTypeIDExtensionObject
	DataTypeIDDataValue
	DataTypeIDVariant
	DataTypeIDDiagnosticInfo
)
