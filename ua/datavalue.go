// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "time"

// DataValue is a value plus status plus timestamps (spec.md §3). The
// has-flags encoding byte records which optional fields are present, so a
// DataValue with only a Value set round-trips without padding the wire form
// with zero timestamps.
type DataValue struct {
	Value            *Variant
	Status           StatusCode
	SourceTimestamp  time.Time
	ServerTimestamp  time.Time
	SourcePicoseconds uint16
	ServerPicoseconds uint16

	HasValue            bool
	HasStatus           bool
	HasSourceTimestamp  bool
	HasServerTimestamp  bool
	HasSourcePicoseconds bool
	HasServerPicoseconds bool
}

const (
	dataValueHasValue             = 0x01
	dataValueHasStatus            = 0x02
	dataValueHasSourceTimestamp   = 0x04
	dataValueHasServerTimestamp   = 0x08
	dataValueHasSourcePicoseconds = 0x10
	dataValueHasServerPicoseconds = 0x20
)

// NewDataValue builds a DataValue carrying only a good value and source
// timestamp, the common case for a synchronous Read.
func NewDataValue(v *Variant, ts time.Time) *DataValue {
	return &DataValue{
		Value:              v,
		SourceTimestamp:    ts,
		HasValue:           true,
		HasSourceTimestamp: true,
	}
}

// NewErrorDataValue builds a DataValue carrying only a bad status, used for
// per-operation Read failures (spec.md §7 "per-operation errors populate
// the corresponding operation-result slot").
func NewErrorDataValue(status StatusCode) *DataValue {
	return &DataValue{Status: status, HasStatus: true}
}

// Encode writes the has-flags mask followed by the present fields.
func (v *DataValue) Encode(e *Encoder) error {
	var mask byte
	if v.HasValue && v.Value != nil && !v.Value.IsNull() {
		mask |= dataValueHasValue
	}
	if v.HasStatus {
		mask |= dataValueHasStatus
	}
	if v.HasSourceTimestamp {
		mask |= dataValueHasSourceTimestamp
	}
	if v.HasServerTimestamp {
		mask |= dataValueHasServerTimestamp
	}
	if v.HasSourcePicoseconds {
		mask |= dataValueHasSourcePicoseconds
	}
	if v.HasServerPicoseconds {
		mask |= dataValueHasServerPicoseconds
	}
	e.WriteByte(mask)
	if mask&dataValueHasValue != 0 {
		if err := v.Value.Encode(e); err != nil {
			return err
		}
	}
	if mask&dataValueHasStatus != 0 {
		e.WriteUint32(uint32(v.Status))
	}
	if mask&dataValueHasSourceTimestamp != 0 {
		e.WriteDateTime(v.SourceTimestamp)
	}
	if mask&dataValueHasSourcePicoseconds != 0 {
		e.WriteUint16(v.SourcePicoseconds)
	}
	if mask&dataValueHasServerTimestamp != 0 {
		e.WriteDateTime(v.ServerTimestamp)
	}
	if mask&dataValueHasServerPicoseconds != 0 {
		e.WriteUint16(v.ServerPicoseconds)
	}
	return nil
}

// Decode reads a DataValue back from its wire form.
func (v *DataValue) Decode(d *Decoder) error {
	mask, err := d.ReadByte()
	if err != nil {
		return err
	}
	*v = DataValue{}
	if mask&dataValueHasValue != 0 {
		v.Value = &Variant{}
		if err := v.Value.Decode(d); err != nil {
			return err
		}
		v.HasValue = true
	}
	if mask&dataValueHasStatus != 0 {
		sc, err := d.ReadUint32()
		if err != nil {
			return err
		}
		v.Status, v.HasStatus = StatusCode(sc), true
	}
	if mask&dataValueHasSourceTimestamp != 0 {
		if v.SourceTimestamp, err = d.ReadDateTime(); err != nil {
			return err
		}
		v.HasSourceTimestamp = true
	}
	if mask&dataValueHasSourcePicoseconds != 0 {
		if v.SourcePicoseconds, err = d.ReadUint16(); err != nil {
			return err
		}
		v.HasSourcePicoseconds = true
	}
	if mask&dataValueHasServerTimestamp != 0 {
		if v.ServerTimestamp, err = d.ReadDateTime(); err != nil {
			return err
		}
		v.HasServerTimestamp = true
	}
	if mask&dataValueHasServerPicoseconds != 0 {
		if v.ServerPicoseconds, err = d.ReadUint16(); err != nil {
			return err
		}
		v.HasServerPicoseconds = true
	}
	return nil
}
