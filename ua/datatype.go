// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// DataTypeKind classifies a DataType descriptor (spec.md §3).
type DataTypeKind byte

const (
	KindBuiltin DataTypeKind = iota
	KindEnum
	KindStruct
	KindOptStruct
	KindUnion
)

// Member describes one field of a structured DataType, mirroring the
// member table a build-time generator would emit from the standard's type
// dictionary (spec.md §9 "Generated type descriptors"). This stack hand-
// writes the member tables for the request/response types it needs instead
// of running a generator, but keeps the same shape so a future generator
// can replace this file without touching callers.
type Member struct {
	Name       string
	Type       *DataType
	IsArray    bool
	IsOptional bool
}

// DataType is the runtime reflection record that drives the codec: the
// "pointer to a DataType descriptor" a Variant carries (spec.md §3).
type DataType struct {
	TypeID           uint32 // builtin type id, or 0 for structured types identified only by BinaryEncodingID
	BinaryEncodingID *NodeID
	Kind             DataTypeKind
	PointerFree      bool
	Members          []Member

	// New constructs a zero value for this type, used by the codec to
	// allocate a decode target when only the DataType is known (e.g.
	// resolving an ExtensionObject by its encoding id).
	New func() BinaryCodec
}

// BinaryCodec is implemented by every structured type known to the codec:
// every request, response and nested structure. Generated descriptor-driven
// types (see ua/requests_*.go) implement it directly; this is the Go
// equivalent of the member-table-driven encode/decode the C generator emits.
type BinaryCodec interface {
	Encode(e *Encoder) error
	Decode(d *Decoder) error
}

// registry maps a structured type's binary encoding NodeID (numeric,
// namespace 0) to its DataType descriptor, populated by RegisterDataType
// calls in the init() functions of ua/requests_*.go. This is consulted by ExtensionObject
// decode and by the Services dispatch table (spec.md §4.7) to turn a wire
// type id into a Go value.
var registry = map[uint32]*DataType{}

// RegisterDataType adds dt to the registry, keyed by its binary encoding id
// (namespace 0 is assumed, matching every standard service type).
func RegisterDataType(dt *DataType) {
	if dt.BinaryEncodingID == nil || dt.BinaryEncodingID.Namespace() != 0 {
		panic("RegisterDataType: binary encoding id must be a namespace-0 NodeID")
	}
	registry[dt.BinaryEncodingID.IntID()] = dt
}

// LookupDataType finds a previously registered descriptor by its numeric
// binary encoding id.
func LookupDataType(id uint32) (*DataType, bool) {
	dt, ok := registry[id]
	return dt, ok
}
