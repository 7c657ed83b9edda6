// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/open62541/open62541-sub001/errors"
)

// IdentifierKind is the tag of a NodeID's identifier union, per spec.md §3
// ("NodeId. Tagged variant {namespaceIndex:u16, identifier:(numeric u32 |
// string | guid | bytes)}").
type IdentifierKind byte

const (
	IdentifierNumeric IdentifierKind = iota
	IdentifierString
	IdentifierGUID
	IdentifierOpaque // ByteString
)

// the wire encoding-byte values (Part 6, 5.2.2.9), independent of IdentifierKind
// because two-byte/four-byte numeric encodings collapse onto IdentifierNumeric.
const (
	nodeIDEncodingTwoByte  = 0x00
	nodeIDEncodingFourByte = 0x01
	nodeIDEncodingNumeric  = 0x02
	nodeIDEncodingString   = 0x03
	nodeIDEncodingGUID     = 0x04
	nodeIDEncodingOpaque   = 0x05
)

// NodeID is the universal addressing primitive (spec.md §3). Equality is
// structural; Compare defines the total order (namespace, kind, identifier).
type NodeID struct {
	ns   uint16
	kind IdentifierKind

	numeric uint32
	str     string
	guid    uuid.UUID
	opaque  []byte
}

// NewTwoByteNodeID builds the common "ns=0;i=<0..255>" shorthand.
func NewTwoByteNodeID(id byte) *NodeID {
	return &NodeID{kind: IdentifierNumeric, numeric: uint32(id)}
}

// NewNumericNodeID builds a numeric NodeID in the given namespace.
func NewNumericNodeID(ns uint16, id uint32) *NodeID {
	return &NodeID{ns: ns, kind: IdentifierNumeric, numeric: id}
}

// NewStringNodeID builds a string-identified NodeID.
func NewStringNodeID(ns uint16, id string) *NodeID {
	return &NodeID{ns: ns, kind: IdentifierString, str: id}
}

// NewGUIDNodeID builds a GUID-identified NodeID, e.g. for Session.SessionID.
func NewGUIDNodeID(ns uint16, id uuid.UUID) *NodeID {
	return &NodeID{ns: ns, kind: IdentifierGUID, guid: id}
}

// NewRandomGUIDNodeID mints a fresh random GUID NodeID, used for
// Session.SessionID / AuthenticationToken (spec.md §4.6).
func NewRandomGUIDNodeID(ns uint16) *NodeID {
	return &NodeID{ns: ns, kind: IdentifierGUID, guid: uuid.New()}
}

// NewOpaqueNodeID builds a ByteString-identified NodeID.
func NewOpaqueNodeID(ns uint16, id []byte) *NodeID {
	return &NodeID{ns: ns, kind: IdentifierOpaque, opaque: append([]byte(nil), id...)}
}

func (n *NodeID) Namespace() uint16      { return n.ns }
func (n *NodeID) Kind() IdentifierKind   { return n.kind }
func (n *NodeID) IntID() uint32          { return n.numeric }
func (n *NodeID) StringID() string       { return n.str }
func (n *NodeID) GUIDID() uuid.UUID      { return n.guid }
func (n *NodeID) OpaqueID() []byte       { return n.opaque }

// IsZero reports whether n is the nil/uninitialized NodeID (ns=0;i=0),
// OPC UA's encoding for "no value"/"null NodeId".
func (n *NodeID) IsZero() bool {
	return n == nil || (n.ns == 0 && n.kind == IdentifierNumeric && n.numeric == 0)
}

// Equal reports structural equality.
func (n *NodeID) Equal(o *NodeID) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.ns != o.ns || n.kind != o.kind {
		return false
	}
	switch n.kind {
	case IdentifierNumeric:
		return n.numeric == o.numeric
	case IdentifierString:
		return n.str == o.str
	case IdentifierGUID:
		return n.guid == o.guid
	case IdentifierOpaque:
		return string(n.opaque) == string(o.opaque)
	}
	return false
}

// Compare defines the total order (namespace, kind, identifier) named in
// spec.md §3. It returns -1, 0 or 1.
func (n *NodeID) Compare(o *NodeID) int {
	if n.ns != o.ns {
		return cmpUint16(n.ns, o.ns)
	}
	if n.kind != o.kind {
		return cmpByte(byte(n.kind), byte(o.kind))
	}
	switch n.kind {
	case IdentifierNumeric:
		return cmpUint32(n.numeric, o.numeric)
	case IdentifierString:
		return strings.Compare(n.str, o.str)
	case IdentifierGUID:
		return strings.Compare(n.guid.String(), o.guid.String())
	case IdentifierOpaque:
		return strings.Compare(string(n.opaque), string(o.opaque))
	}
	return 0
}

func cmpUint16(a, b uint16) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpByte(a, b byte) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// String renders the canonical text form, e.g. "ns=2;s=MyVariable" or
// "i=84" for namespace zero numeric ids, matching the JSON NodeId string
// form in spec.md §4.1.
func (n *NodeID) String() string {
	if n == nil {
		return "ns=0;i=0"
	}
	var id string
	switch n.kind {
	case IdentifierNumeric:
		id = fmt.Sprintf("i=%d", n.numeric)
	case IdentifierString:
		id = fmt.Sprintf("s=%s", n.str)
	case IdentifierGUID:
		id = fmt.Sprintf("g=%s", n.guid.String())
	case IdentifierOpaque:
		id = fmt.Sprintf("b=%s", encodeBase64(n.opaque))
	}
	if n.ns == 0 {
		return id
	}
	return fmt.Sprintf("ns=%d;%s", n.ns, id)
}

// ParseNodeID parses the "ns=1;s=foo" text form used in configuration and
// logging back into a NodeID.
func ParseNodeID(s string) (*NodeID, error) {
	var ns uint16
	rest := s
	if i := strings.Index(s, ";"); strings.HasPrefix(s, "ns=") && i >= 0 {
		n, err := strconv.Atoi(s[3:i])
		if err != nil {
			return nil, errors.Wrap(err, "invalid namespace in node id")
		}
		ns = uint16(n)
		rest = s[i+1:]
	}
	switch {
	case strings.HasPrefix(rest, "i="):
		v, err := strconv.ParseUint(rest[2:], 10, 32)
		if err != nil {
			return nil, errors.Wrap(err, "invalid numeric identifier")
		}
		return NewNumericNodeID(ns, uint32(v)), nil
	case strings.HasPrefix(rest, "s="):
		return NewStringNodeID(ns, rest[2:]), nil
	case strings.HasPrefix(rest, "g="):
		u, err := uuid.Parse(rest[2:])
		if err != nil {
			return nil, errors.Wrap(err, "invalid guid identifier")
		}
		return NewGUIDNodeID(ns, u), nil
	case strings.HasPrefix(rest, "b="):
		b, err := decodeBase64(rest[2:])
		if err != nil {
			return nil, errors.Wrap(err, "invalid opaque identifier")
		}
		return NewOpaqueNodeID(ns, b), nil
	default:
		return nil, errors.Errorf("unrecognized node id %q", s)
	}
}

// Decode reads a NodeID in its compact wire encoding (Part 6, 5.2.2.9),
// choosing the two-byte/four-byte/numeric/string/guid/opaque form by the
// leading encoding byte.
func (n *NodeID) Decode(d *Decoder) error {
	enc, err := d.ReadByte()
	if err != nil {
		return err
	}
	switch enc {
	case nodeIDEncodingTwoByte:
		v, err := d.ReadByte()
		if err != nil {
			return err
		}
		*n = NodeID{kind: IdentifierNumeric, numeric: uint32(v)}
	case nodeIDEncodingFourByte:
		nsb, err := d.ReadByte()
		if err != nil {
			return err
		}
		v, err := d.ReadUint16()
		if err != nil {
			return err
		}
		*n = NodeID{ns: uint16(nsb), kind: IdentifierNumeric, numeric: uint32(v)}
	case nodeIDEncodingNumeric:
		ns, err := d.ReadUint16()
		if err != nil {
			return err
		}
		v, err := d.ReadUint32()
		if err != nil {
			return err
		}
		*n = NodeID{ns: ns, kind: IdentifierNumeric, numeric: v}
	case nodeIDEncodingString:
		ns, err := d.ReadUint16()
		if err != nil {
			return err
		}
		s, err := d.ReadString()
		if err != nil {
			return err
		}
		*n = NodeID{ns: ns, kind: IdentifierString, str: s}
	case nodeIDEncodingGUID:
		ns, err := d.ReadUint16()
		if err != nil {
			return err
		}
		b, err := d.take(16)
		if err != nil {
			return err
		}
		g, err := decodeGUIDBytes(b)
		if err != nil {
			return err
		}
		*n = NodeID{ns: ns, kind: IdentifierGUID, guid: g}
	case nodeIDEncodingOpaque:
		ns, err := d.ReadUint16()
		if err != nil {
			return err
		}
		b, err := d.ReadByteString()
		if err != nil {
			return err
		}
		*n = NodeID{ns: ns, kind: IdentifierOpaque, opaque: b}
	default:
		return errors.Wrap(StatusBadDecodingError, "unknown node id encoding byte")
	}
	return nil
}

// Encode writes n using the most compact applicable form: two-byte when
// ns==0 and the numeric id fits a byte, four-byte when ns fits a byte and
// the numeric id fits a uint16, numeric/string/guid/opaque otherwise.
func (n *NodeID) Encode(e *Encoder) error {
	if n == nil {
		n = &NodeID{}
	}
	switch n.kind {
	case IdentifierNumeric:
		switch {
		case n.ns == 0 && n.numeric <= 0xFF:
			e.WriteByte(nodeIDEncodingTwoByte)
			e.WriteByte(byte(n.numeric))
		case n.ns <= 0xFF && n.numeric <= 0xFFFF:
			e.WriteByte(nodeIDEncodingFourByte)
			e.WriteByte(byte(n.ns))
			e.WriteUint16(uint16(n.numeric))
		default:
			e.WriteByte(nodeIDEncodingNumeric)
			e.WriteUint16(n.ns)
			e.WriteUint32(n.numeric)
		}
	case IdentifierString:
		e.WriteByte(nodeIDEncodingString)
		e.WriteUint16(n.ns)
		e.WriteString(n.str)
	case IdentifierGUID:
		e.WriteByte(nodeIDEncodingGUID)
		e.WriteUint16(n.ns)
		e.b = append(e.b, encodeGUIDBytes(n.guid)...)
	case IdentifierOpaque:
		e.WriteByte(nodeIDEncodingOpaque)
		e.WriteUint16(n.ns)
		e.WriteByteString(n.opaque)
	default:
		return errors.Errorf("unknown node id kind %d", n.kind)
	}
	return nil
}

// decodeGUIDBytes/encodeGUIDBytes convert between OPC UA's mixed-endian
// GUID wire form (Part 6, 5.1.3) and google/uuid's big-endian UUID.
func decodeGUIDBytes(b []byte) (uuid.UUID, error) {
	if len(b) != 16 {
		return uuid.UUID{}, errors.New("guid must be 16 bytes")
	}
	var g uuid.UUID
	g[0], g[1], g[2], g[3] = b[3], b[2], b[1], b[0]
	g[4], g[5] = b[5], b[4]
	g[6], g[7] = b[7], b[6]
	copy(g[8:], b[8:16])
	return g, nil
}

func encodeGUIDBytes(g uuid.UUID) []byte {
	b := make([]byte, 16)
	b[0], b[1], b[2], b[3] = g[3], g[2], g[1], g[0]
	b[4], b[5] = g[5], g[4]
	b[6], b[7] = g[7], g[6]
	copy(b[8:16], g[8:])
	return b
}
