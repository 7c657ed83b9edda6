// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// ReadRequest reads one or more attributes from one or more nodes in a
// single round trip (spec.md §4.7).
type ReadRequest struct {
	RequestHeader     RequestHeader
	MaxAge            float64
	TimestampsToReturn TimestampsToReturn
	NodesToRead       []*ReadValueID
}

func (r *ReadRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	e.WriteFloat64(r.MaxAge)
	e.WriteUint32(uint32(r.TimestampsToReturn))
	e.WriteInt32(int32(len(r.NodesToRead)))
	for _, n := range r.NodesToRead {
		if err := n.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *ReadRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	var err error
	if r.MaxAge, err = d.ReadFloat64(); err != nil {
		return err
	}
	ts, err := d.ReadUint32()
	if err != nil {
		return err
	}
	r.TimestampsToReturn = TimestampsToReturn(ts)
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.NodesToRead = make([]*ReadValueID, n)
		for i := range r.NodesToRead {
			rv := &ReadValueID{}
			if err := rv.Decode(d); err != nil {
				return err
			}
			r.NodesToRead[i] = rv
		}
	}
	return nil
}

func (r *ReadRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 631) }

// ReadResponse carries one DataValue per NodesToRead entry, in order
// (spec.md §4.7 "per-operation errors populate the corresponding
// operation-result slot").
type ReadResponse struct {
	ResponseHeader ResponseHeader
	Results        []*DataValue
}

func (r *ReadResponse) Encode(e *Encoder) error {
	if err := r.ResponseHeader.Encode(e); err != nil {
		return err
	}
	e.WriteInt32(int32(len(r.Results)))
	for _, v := range r.Results {
		if err := v.Encode(e); err != nil {
			return err
		}
	}
	e.WriteInt32(0) // diagnostic infos, unused
	return nil
}

func (r *ReadResponse) Decode(d *Decoder) error {
	if err := r.ResponseHeader.Decode(d); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.Results = make([]*DataValue, n)
		for i := range r.Results {
			v := &DataValue{}
			if err := v.Decode(d); err != nil {
				return err
			}
			r.Results[i] = v
		}
	}
	_, _, err = d.readArrayLen()
	return err
}

func (r *ReadResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 634) }

// WriteRequest writes one or more attribute values (spec.md §4.7).
type WriteRequest struct {
	RequestHeader RequestHeader
	NodesToWrite  []*WriteValue
}

func (r *WriteRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	e.WriteInt32(int32(len(r.NodesToWrite)))
	for _, w := range r.NodesToWrite {
		if err := w.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *WriteRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.NodesToWrite = make([]*WriteValue, n)
		for i := range r.NodesToWrite {
			w := &WriteValue{}
			if err := w.Decode(d); err != nil {
				return err
			}
			r.NodesToWrite[i] = w
		}
	}
	return nil
}

func (r *WriteRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 673) }

// WriteResponse carries one StatusCode per NodesToWrite entry, in order.
type WriteResponse struct {
	ResponseHeader ResponseHeader
	Results        []StatusCode
}

func (r *WriteResponse) Encode(e *Encoder) error {
	if err := r.ResponseHeader.Encode(e); err != nil {
		return err
	}
	e.WriteInt32(int32(len(r.Results)))
	for _, s := range r.Results {
		e.WriteUint32(uint32(s))
	}
	e.WriteInt32(0)
	return nil
}

func (r *WriteResponse) Decode(d *Decoder) error {
	if err := r.ResponseHeader.Decode(d); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.Results = make([]StatusCode, n)
		for i := range r.Results {
			v, err := d.ReadUint32()
			if err != nil {
				return err
			}
			r.Results[i] = StatusCode(v)
		}
	}
	_, _, err = d.readArrayLen()
	return err
}

func (r *WriteResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 676) }

func init() {
	for _, dt := range []*DataType{
		{BinaryEncodingID: NewNumericNodeID(0, 631), Kind: KindStruct, New: func() BinaryCodec { return &ReadRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 634), Kind: KindStruct, New: func() BinaryCodec { return &ReadResponse{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 673), Kind: KindStruct, New: func() BinaryCodec { return &WriteRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 676), Kind: KindStruct, New: func() BinaryCodec { return &WriteResponse{} }},
	} {
		RegisterDataType(dt)
	}
}
