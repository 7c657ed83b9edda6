// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import (
	"time"

	"github.com/open62541/open62541-sub001/errors"
	"github.com/open62541/open62541-sub001/id"
)

// StorageDiscipline records whether a Variant owns the memory behind its
// value or merely borrows it from the caller (spec.md §3's "owned,
// borrowed-nodelete" bit). Go's GC means this has no bearing on whether it
// is safe to keep a reference. The mark is recorded only: neither the codec
// nor the Subscription engine reads it, and a Borrowed Variant's value is
// aliased exactly like an Owned one's.
type StorageDiscipline byte

const (
	Owned StorageDiscipline = iota
	Borrowed
)

// Variant is a dynamically typed value: a builtin type id plus either a
// scalar or an array, optionally with a multi-dimensional shape
// (spec.md §3).
type Variant struct {
	typeID     byte
	scalar     interface{}
	array      []interface{}
	arrayDims  []uint32
	isArray    bool
	discipline StorageDiscipline
}

const variantEncodingArrayDimensionsFlag = 0x40
const variantEncodingArrayFlag = 0x80
const variantEncodingTypeIDMask = 0x3F

// NewVariant wraps a scalar Go value, inferring its builtin type id. It
// returns an error for values with no builtin mapping (use
// NewExtensionObjectVariant for structured types).
func NewVariant(v interface{}) (*Variant, error) {
	tid, err := builtinTypeIDOf(v)
	if err != nil {
		return nil, err
	}
	return &Variant{typeID: tid, scalar: v}, nil
}

// NewExtensionObjectVariant wraps a BinaryCodec value as an ExtensionObject
// Variant, the path structured (non-builtin) values take through Read/Write
// responses.
func NewExtensionObjectVariant(eo *ExtensionObject) *Variant {
	return &Variant{typeID: byte(id.DataTypeIDExtensionObject), scalar: eo}
}

// NewVariantArray wraps a homogeneous array of builtin-typed values.
func NewVariantArray(typeID byte, values []interface{}) *Variant {
	return &Variant{typeID: typeID, array: values, isArray: true}
}

// WithDimensions attaches a multi-dimensional shape to an array Variant;
// product(dims) must equal len(Array()).
func (v *Variant) WithDimensions(dims []uint32) *Variant {
	v.arrayDims = dims
	return v
}

// WithDiscipline sets the storage discipline bit.
func (v *Variant) WithDiscipline(d StorageDiscipline) *Variant {
	v.discipline = d
	return v
}

func (v *Variant) TypeID() byte                  { return v.typeID }
func (v *Variant) IsArray() bool                 { return v.isArray }
func (v *Variant) ArrayDimensions() []uint32     { return v.arrayDims }
func (v *Variant) Discipline() StorageDiscipline { return v.discipline }
func (v *Variant) Scalar() interface{}           { return v.scalar }
func (v *Variant) Array() []interface{}          { return v.array }

// IsNull reports whether the Variant carries no value at all (an empty,
// non-array scalar Variant), OPC UA's representation of a null value.
func (v *Variant) IsNull() bool { return v == nil || (!v.isArray && v.scalar == nil) }

func builtinTypeIDOf(v interface{}) (byte, error) {
	switch v.(type) {
	case bool:
		return byte(id.DataTypeIDBoolean), nil
	case int8:
		return byte(id.DataTypeIDSByte), nil
	case byte:
		return byte(id.DataTypeIDByte), nil
	case int16:
		return byte(id.DataTypeIDInt16), nil
	case uint16:
		return byte(id.DataTypeIDUInt16), nil
	case int32:
		return byte(id.DataTypeIDInt32), nil
	case uint32:
		return byte(id.DataTypeIDUInt32), nil
	case int64:
		return byte(id.DataTypeIDInt64), nil
	case uint64:
		return byte(id.DataTypeIDUInt64), nil
	case float32:
		return byte(id.DataTypeIDFloat), nil
	case float64:
		return byte(id.DataTypeIDDouble), nil
	case string:
		return byte(id.DataTypeIDString), nil
	case time.Time:
		return byte(id.DataTypeIDDateTime), nil
	case []byte:
		return byte(id.DataTypeIDByteString), nil
	case *NodeID:
		return byte(id.DataTypeIDNodeID), nil
	case QualifiedName:
		return byte(id.DataTypeIDQualifiedName), nil
	case LocalizedText:
		return byte(id.DataTypeIDLocalizedText), nil
	case StatusCode:
		return byte(id.DataTypeIDStatusCode), nil
	case *ExtensionObject:
		return byte(id.DataTypeIDExtensionObject), nil
	default:
		return 0, errors.Errorf("ua: no builtin type id for %T", v)
	}
}

// Encode writes the Variant's encoding mask byte followed by its payload,
// per spec.md §4.1 ("Variant carries a single byte encoding mask with bits
// for: builtin-type-id (6 bits), has-array-dimensions, is-array").
func (v *Variant) Encode(e *Encoder) error {
	if v == nil || v.IsNull() {
		e.WriteByte(0)
		return nil
	}
	mask := v.typeID & variantEncodingTypeIDMask
	if v.isArray {
		mask |= variantEncodingArrayFlag
	}
	hasDims := len(v.arrayDims) > 0
	if hasDims {
		mask |= variantEncodingArrayDimensionsFlag
	}
	e.WriteByte(mask)

	if v.isArray {
		e.WriteInt32(int32(len(v.array)))
		for _, el := range v.array {
			if err := encodeBuiltin(e, v.typeID, el); err != nil {
				return err
			}
		}
		if hasDims {
			e.WriteInt32(int32(len(v.arrayDims)))
			for _, d := range v.arrayDims {
				e.WriteUint32(d)
			}
		}
		return nil
	}
	return encodeBuiltin(e, v.typeID, v.scalar)
}

// Decode reads a Variant back from its wire form.
func (v *Variant) Decode(d *Decoder) error {
	mask, err := d.ReadByte()
	if err != nil {
		return err
	}
	if mask == 0 {
		*v = Variant{}
		return nil
	}
	typeID := mask & variantEncodingTypeIDMask
	isArray := mask&variantEncodingArrayFlag != 0
	hasDims := mask&variantEncodingArrayDimensionsFlag != 0

	if !isArray {
		scalar, err := decodeBuiltin(d, typeID)
		if err != nil {
			return err
		}
		*v = Variant{typeID: typeID, scalar: scalar}
		return nil
	}

	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	var arr []interface{}
	if ok {
		arr = make([]interface{}, n)
		for i := range arr {
			el, err := decodeBuiltin(d, typeID)
			if err != nil {
				return err
			}
			arr[i] = el
		}
	}
	var dims []uint32
	if hasDims {
		nd, ok, err := d.readArrayLen()
		if err != nil {
			return err
		}
		if ok {
			dims = make([]uint32, nd)
			for i := range dims {
				if dims[i], err = d.ReadUint32(); err != nil {
					return err
				}
			}
		}
	}
	*v = Variant{typeID: typeID, array: arr, arrayDims: dims, isArray: true}
	return nil
}

func encodeBuiltin(e *Encoder, typeID byte, v interface{}) error {
	switch uint32(typeID) {
	case id.DataTypeIDBoolean:
		e.WriteBool(v.(bool))
	case id.DataTypeIDSByte:
		e.WriteByte(byte(v.(int8)))
	case id.DataTypeIDByte:
		e.WriteByte(v.(byte))
	case id.DataTypeIDInt16:
		e.WriteInt16(v.(int16))
	case id.DataTypeIDUInt16:
		e.WriteUint16(v.(uint16))
	case id.DataTypeIDInt32:
		e.WriteInt32(v.(int32))
	case id.DataTypeIDUInt32:
		e.WriteUint32(v.(uint32))
	case id.DataTypeIDInt64:
		e.WriteInt64(v.(int64))
	case id.DataTypeIDUInt64:
		e.WriteUint64(v.(uint64))
	case id.DataTypeIDFloat:
		e.WriteFloat32(v.(float32))
	case id.DataTypeIDDouble:
		e.WriteFloat64(v.(float64))
	case id.DataTypeIDString:
		e.WriteString(v.(string))
	case id.DataTypeIDDateTime:
		e.WriteDateTime(v.(time.Time))
	case id.DataTypeIDByteString:
		e.WriteByteString(v.([]byte))
	case id.DataTypeIDNodeID:
		return v.(*NodeID).Encode(e)
	case id.DataTypeIDQualifiedName:
		qn := v.(QualifiedName)
		return qn.Encode(e)
	case id.DataTypeIDLocalizedText:
		lt := v.(LocalizedText)
		return lt.Encode(e)
	case id.DataTypeIDStatusCode:
		e.WriteUint32(uint32(v.(StatusCode)))
	case id.DataTypeIDExtensionObject:
		return v.(*ExtensionObject).Encode(e)
	default:
		return errors.Errorf("ua: encode: unsupported builtin type id %d", typeID)
	}
	return nil
}

func decodeBuiltin(d *Decoder, typeID byte) (interface{}, error) {
	switch uint32(typeID) {
	case id.DataTypeIDBoolean:
		return d.ReadBool()
	case id.DataTypeIDSByte:
		b, err := d.ReadByte()
		return int8(b), err
	case id.DataTypeIDByte:
		return d.ReadByte()
	case id.DataTypeIDInt16:
		return d.ReadInt16()
	case id.DataTypeIDUInt16:
		return d.ReadUint16()
	case id.DataTypeIDInt32:
		return d.ReadInt32()
	case id.DataTypeIDUInt32:
		return d.ReadUint32()
	case id.DataTypeIDInt64:
		return d.ReadInt64()
	case id.DataTypeIDUInt64:
		return d.ReadUint64()
	case id.DataTypeIDFloat:
		return d.ReadFloat32()
	case id.DataTypeIDDouble:
		return d.ReadFloat64()
	case id.DataTypeIDString:
		return d.ReadString()
	case id.DataTypeIDDateTime:
		return d.ReadDateTime()
	case id.DataTypeIDByteString:
		return d.ReadByteString()
	case id.DataTypeIDNodeID:
		n := &NodeID{}
		err := n.Decode(d)
		return n, err
	case id.DataTypeIDQualifiedName:
		var qn QualifiedName
		err := qn.Decode(d)
		return qn, err
	case id.DataTypeIDLocalizedText:
		var lt LocalizedText
		err := lt.Decode(d)
		return lt, err
	case id.DataTypeIDStatusCode:
		v, err := d.ReadUint32()
		return StatusCode(v), err
	case id.DataTypeIDExtensionObject:
		eo := &ExtensionObject{}
		err := eo.Decode(d)
		return eo, err
	default:
		return nil, errors.Errorf("ua: decode: unsupported builtin type id %d", typeID)
	}
}
