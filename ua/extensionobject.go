// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "github.com/open62541/open62541-sub001/errors"

// ExtensionObject wraps a structure with its encoding NodeID and a
// byte-length prefix (spec.md §4.1). Body is the decoded value when the
// encoding id is registered (see RegisterDataType); if the type is unknown
// the raw bytes are kept in Raw so the message can still be forwarded
// (e.g. by a gateway) without a decode failure.
type ExtensionObject struct {
	TypeID *NodeID
	Body   BinaryCodec
	Raw    []byte
}

// NewExtensionObject wraps v, looking up its binary encoding id from the
// registry entry whose New() produces the same dynamic type. Callers that
// already know the encoding id should set TypeID/Body directly.
func NewExtensionObject(v BinaryCodec) *ExtensionObject {
	if v == nil {
		return &ExtensionObject{TypeID: NewTwoByteNodeID(0)}
	}
	if enc, ok := v.(interface{ BinaryEncodingID() *NodeID }); ok {
		return &ExtensionObject{TypeID: enc.BinaryEncodingID(), Body: v}
	}
	return &ExtensionObject{Body: v}
}

const (
	extensionObjectBodyNone   = 0x00
	extensionObjectBodyBinary = 0x01
	extensionObjectBodyXML    = 0x02
)

// Encode writes the ExtensionObject's NodeID, a one-byte body-encoding
// indicator, and (when present) an Int32-length-prefixed binary body.
func (o *ExtensionObject) Encode(e *Encoder) error {
	typeID := o.TypeID
	if typeID == nil {
		typeID = NewTwoByteNodeID(0)
	}
	if err := typeID.Encode(e); err != nil {
		return err
	}
	if o.Body == nil && o.Raw == nil {
		e.WriteByte(extensionObjectBodyNone)
		return nil
	}
	e.WriteByte(extensionObjectBodyBinary)
	body := o.Raw
	if o.Body != nil {
		inner := NewEncoder()
		if err := o.Body.Encode(inner); err != nil {
			return err
		}
		body = inner.Bytes()
	}
	e.WriteByteString(body)
	return nil
}

// Decode reads an ExtensionObject, resolving Body from the registry when
// the encoding id is known, matching spec.md §4.1's ExtensionObject
// contract.
func (o *ExtensionObject) Decode(d *Decoder) error {
	if err := d.enterRecursion(); err != nil {
		return err
	}
	defer d.exitRecursion()

	typeID := &NodeID{}
	if err := typeID.Decode(d); err != nil {
		return err
	}
	o.TypeID = typeID

	encKind, err := d.ReadByte()
	if err != nil {
		return err
	}
	switch encKind {
	case extensionObjectBodyNone:
		return nil
	case extensionObjectBodyXML:
		return errors.Wrap(StatusBadDecodingError, "xml-encoded extension object body unsupported")
	case extensionObjectBodyBinary:
		raw, err := d.ReadByteString()
		if err != nil {
			return err
		}
		o.Raw = raw
		if typeID.IsZero() {
			return nil
		}
		dt, ok := LookupDataType(typeID.IntID())
		if !ok {
			return nil // unknown mandatory type: keep Raw, let the caller decide
		}
		body := dt.New()
		if err := body.Decode(NewDecoder(raw)); err != nil {
			return errors.Wrap(err, "decode extension object body")
		}
		o.Body = body
		return nil
	default:
		return errors.Wrap(StatusBadDecodingError, "unknown extension object body encoding")
	}
}
