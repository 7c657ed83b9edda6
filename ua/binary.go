// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/open62541/open62541-sub001/errors"
)

// epochOffset is the number of 100ns intervals between the OPC UA epoch
// (1601-01-01) and the Unix epoch (1970-01-01).
const epochOffset = 116444736000000000

// DefaultMaxArrayLength bounds every array/string/bytestring length accepted
// during decode, in addition to the remaining-buffer check, per spec.md §4.1
// ("array length > configured max" is a BadDecoding cause). Callers that
// need a larger bound can decode through a Decoder configured with a
// different MaxArrayLength.
const DefaultMaxArrayLength = 1 << 20

// DefaultMaxRecursionDepth bounds nested ExtensionObject/struct decoding.
const DefaultMaxRecursionDepth = 64

// Decoder reads the OPC UA binary encoding from an in-memory buffer. It
// never allocates before validating a length prefix against the number of
// bytes remaining, satisfying the decode contract in spec.md §4.1.
type Decoder struct {
	b   []byte
	pos int

	MaxArrayLength   int
	MaxRecursionDepth int
	depth            int
}

// NewDecoder wraps b for decoding. b is not copied; callers that retain the
// Decoder past the lifetime of b must copy first (see spec.md §4.3 on
// borrowed receive slices).
func NewDecoder(b []byte) *Decoder {
	return &Decoder{b: b, MaxArrayLength: DefaultMaxArrayLength, MaxRecursionDepth: DefaultMaxRecursionDepth}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.b) - d.pos }

// Pos returns the current read offset.
func (d *Decoder) Pos() int { return d.pos }

func (d *Decoder) need(n int) error {
	if n < 0 {
		return StatusBadDecodingError
	}
	if d.Remaining() < n {
		return errors.Wrap(StatusBadDecodingError, "truncated buffer")
	}
	return nil
}

func (d *Decoder) take(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	b := d.b[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// ReadByte reads a single byte.
func (d *Decoder) ReadByte() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBool reads a one-byte boolean; any nonzero byte is true.
func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadByte()
	return b != 0, err
}

// ReadUint16 reads a little-endian uint16.
func (d *Decoder) ReadUint16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadInt16 reads a little-endian int16.
func (d *Decoder) ReadInt16() (int16, error) {
	v, err := d.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads a little-endian uint32.
func (d *Decoder) ReadUint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadInt32 reads a little-endian int32.
func (d *Decoder) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads a little-endian uint64.
func (d *Decoder) ReadUint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadInt64 reads a little-endian int64.
func (d *Decoder) ReadInt64() (int64, error) {
	v, err := d.ReadUint64()
	return int64(v), err
}

// ReadFloat32 reads an IEEE-754 single precision float.
func (d *Decoder) ReadFloat32() (float32, error) {
	v, err := d.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadFloat64 reads an IEEE-754 double precision float.
func (d *Decoder) ReadFloat64() (float64, error) {
	v, err := d.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadDateTime reads a 100ns-tick OPC UA DateTime and converts to time.Time (UTC).
func (d *Decoder) ReadDateTime() (time.Time, error) {
	ticks, err := d.ReadInt64()
	if err != nil {
		return time.Time{}, err
	}
	if ticks <= 0 {
		return time.Time{}, nil
	}
	unixTicks := ticks - epochOffset
	return time.Unix(0, unixTicks*100).UTC(), nil
}

// readArrayLen reads an Int32 array-length prefix. -1 means "absent" and is
// returned as ok=false with n=0.
func (d *Decoder) readArrayLen() (n int, ok bool, err error) {
	raw, err := d.ReadInt32()
	if err != nil {
		return 0, false, err
	}
	if raw < 0 {
		return 0, false, nil
	}
	if int(raw) > d.MaxArrayLength {
		return 0, false, errors.Wrap(StatusBadDecodingError, "array length exceeds configured maximum")
	}
	if int(raw) > d.Remaining() {
		return 0, false, errors.Wrap(StatusBadDecodingError, "array length exceeds remaining buffer")
	}
	return int(raw), true, nil
}

// ReadString reads an Int32-length-prefixed UTF-8 string. A -1 length
// prefix decodes to "".
func (d *Decoder) ReadString() (string, error) {
	n, ok, err := d.readArrayLen()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	b, err := d.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadByteString reads an Int32-length-prefixed byte slice. A -1 length
// prefix decodes to nil, distinct from a present-but-empty slice.
func (d *Decoder) ReadByteString() ([]byte, error) {
	n, ok, err := d.readArrayLen()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// enterRecursion bumps the recursion depth and fails closed past the limit.
func (d *Decoder) enterRecursion() error {
	d.depth++
	if d.depth > d.MaxRecursionDepth {
		return errors.Wrap(StatusBadDecodingError, "recursion depth exceeds configured maximum")
	}
	return nil
}

func (d *Decoder) exitRecursion() { d.depth-- }

// Encoder writes the OPC UA binary encoding to a growable buffer.
type Encoder struct {
	b []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the accumulated buffer.
func (e *Encoder) Bytes() []byte { return e.b }

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int { return len(e.b) }

// WriteByte appends a single byte.
func (e *Encoder) WriteByte(v byte) { e.b = append(e.b, v) }

// WriteBool appends a one-byte boolean (0x01 or 0x00).
func (e *Encoder) WriteBool(v bool) {
	if v {
		e.WriteByte(1)
	} else {
		e.WriteByte(0)
	}
}

// WriteUint16 appends a little-endian uint16.
func (e *Encoder) WriteUint16(v uint16) {
	e.b = binary.LittleEndian.AppendUint16(e.b, v)
}

// WriteInt16 appends a little-endian int16.
func (e *Encoder) WriteInt16(v int16) { e.WriteUint16(uint16(v)) }

// WriteUint32 appends a little-endian uint32.
func (e *Encoder) WriteUint32(v uint32) {
	e.b = binary.LittleEndian.AppendUint32(e.b, v)
}

// WriteInt32 appends a little-endian int32.
func (e *Encoder) WriteInt32(v int32) { e.WriteUint32(uint32(v)) }

// WriteUint64 appends a little-endian uint64.
func (e *Encoder) WriteUint64(v uint64) {
	e.b = binary.LittleEndian.AppendUint64(e.b, v)
}

// WriteInt64 appends a little-endian int64.
func (e *Encoder) WriteInt64(v int64) { e.WriteUint64(uint64(v)) }

// WriteFloat32 appends an IEEE-754 single precision float.
func (e *Encoder) WriteFloat32(v float32) { e.WriteUint32(math.Float32bits(v)) }

// WriteFloat64 appends an IEEE-754 double precision float.
func (e *Encoder) WriteFloat64(v float64) { e.WriteUint64(math.Float64bits(v)) }

// WriteDateTime appends t as a 100ns-tick OPC UA DateTime.
func (e *Encoder) WriteDateTime(t time.Time) {
	if t.IsZero() {
		e.WriteInt64(0)
		return
	}
	ticks := t.UnixNano()/100 + epochOffset
	e.WriteInt64(ticks)
}

// DateTimeToTicks converts t to the 100ns-tick OPC UA DateTime representation,
// the form ChannelSecurityToken.CreatedAt and similar raw-tick fields carry.
func DateTimeToTicks(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()/100 + epochOffset
}

// TicksToDateTime converts a 100ns-tick OPC UA DateTime back to time.Time (UTC).
func TicksToDateTime(ticks int64) time.Time {
	if ticks <= 0 {
		return time.Time{}
	}
	return time.Unix(0, (ticks-epochOffset)*100).UTC()
}

// WriteString appends an Int32-length-prefixed UTF-8 string. An empty
// string is encoded as length 0 (not -1); callers that need to round-trip
// "absent" must track that separately, as the wire form cannot distinguish
// them once decoded back with ReadString.
func (e *Encoder) WriteString(s string) {
	e.WriteInt32(int32(len(s)))
	e.b = append(e.b, s...)
}

// WriteByteString appends an Int32-length-prefixed byte slice. nil encodes
// as length -1; a non-nil empty slice encodes as length 0.
func (e *Encoder) WriteByteString(b []byte) {
	if b == nil {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(b)))
	e.b = append(e.b, b...)
}
