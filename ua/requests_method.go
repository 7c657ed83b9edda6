// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// CallRequest invokes one or more methods in a single round trip
// (spec.md §4.7).
type CallRequest struct {
	RequestHeader   RequestHeader
	MethodsToCall   []*CallMethodRequest
}

func (r *CallRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	e.WriteInt32(int32(len(r.MethodsToCall)))
	for _, m := range r.MethodsToCall {
		if err := m.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *CallRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.MethodsToCall = make([]*CallMethodRequest, n)
		for i := range r.MethodsToCall {
			m := &CallMethodRequest{}
			if err := m.Decode(d); err != nil {
				return err
			}
			r.MethodsToCall[i] = m
		}
	}
	return nil
}

func (r *CallRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 712) }

// CallResponse carries one CallMethodResult per MethodsToCall entry.
type CallResponse struct {
	ResponseHeader ResponseHeader
	Results        []*CallMethodResult
}

func (r *CallResponse) Encode(e *Encoder) error {
	if err := r.ResponseHeader.Encode(e); err != nil {
		return err
	}
	e.WriteInt32(int32(len(r.Results)))
	for _, res := range r.Results {
		if err := res.Encode(e); err != nil {
			return err
		}
	}
	e.WriteInt32(0)
	return nil
}

func (r *CallResponse) Decode(d *Decoder) error {
	if err := r.ResponseHeader.Decode(d); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.Results = make([]*CallMethodResult, n)
		for i := range r.Results {
			res := &CallMethodResult{}
			if err := res.Decode(d); err != nil {
				return err
			}
			r.Results[i] = res
		}
	}
	_, _, err = d.readArrayLen()
	return err
}

func (r *CallResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 715) }

func init() {
	for _, dt := range []*DataType{
		{BinaryEncodingID: NewNumericNodeID(0, 712), Kind: KindStruct, New: func() BinaryCodec { return &CallRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 715), Kind: KindStruct, New: func() BinaryCodec { return &CallResponse{} }},
	} {
		RegisterDataType(dt)
	}
}
