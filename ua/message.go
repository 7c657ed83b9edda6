// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "github.com/open62541/open62541-sub001/errors"

// Request is implemented by every service request; SetHeader lets the
// SecureChannel stamp the shared RequestHeader fields (AuthenticationToken,
// Timestamp, RequestHandle) without a type switch per service.
type Request interface {
	BinaryCodec
	BinaryEncodingID() *NodeID
	Header() *RequestHeader
	SetHeader(*RequestHeader)
}

// Response is implemented by every service response, letting the
// SecureChannel read ServiceResult off any response without a type switch.
type Response interface {
	BinaryCodec
	BinaryEncodingID() *NodeID
	Header() *ResponseHeader
}

// EncodeMessage writes v's binary encoding NodeID followed by its body,
// the wire form a uasc MSG chunk's payload takes (spec.md §4.1): unlike an
// ExtensionObject there is no body-encoding byte or length prefix, since
// the chunk framing already carries the total length.
func EncodeMessage(v BinaryCodec) ([]byte, error) {
	enc, ok := v.(interface{ BinaryEncodingID() *NodeID })
	if !ok {
		return nil, errors.Errorf("ua: %T has no binary encoding id", v)
	}
	e := NewEncoder()
	if err := enc.BinaryEncodingID().Encode(e); err != nil {
		return nil, err
	}
	if err := v.Encode(e); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// DecodeMessage reads a binary encoding NodeID off the front of b and
// resolves the registered DataType to decode the remaining bytes into a
// concrete BinaryCodec (spec.md §4.7's service dispatch).
func DecodeMessage(b []byte) (*NodeID, BinaryCodec, error) {
	d := NewDecoder(b)
	typeID := &NodeID{}
	if err := typeID.Decode(d); err != nil {
		return nil, nil, err
	}
	dt, ok := LookupDataType(typeID.IntID())
	if !ok {
		return typeID, nil, errors.Errorf("ua: unregistered service type id %d", typeID.IntID())
	}
	v := dt.New()
	if err := v.Decode(d); err != nil {
		return typeID, nil, errors.Wrap(err, "decode service message")
	}
	return typeID, v, nil
}
