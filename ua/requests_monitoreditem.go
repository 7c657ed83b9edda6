// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// CreateMonitoredItemsRequest adds MonitoredItems to an existing
// Subscription (spec.md §3, §4.9).
type CreateMonitoredItemsRequest struct {
	RequestHeader     RequestHeader
	SubscriptionID    uint32
	TimestampsToReturn TimestampsToReturn
	ItemsToCreate     []*MonitoredItemCreateRequest
}

func (r *CreateMonitoredItemsRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(r.SubscriptionID)
	e.WriteUint32(uint32(r.TimestampsToReturn))
	e.WriteInt32(int32(len(r.ItemsToCreate)))
	for _, it := range r.ItemsToCreate {
		if err := it.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *CreateMonitoredItemsRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	var err error
	if r.SubscriptionID, err = d.ReadUint32(); err != nil {
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
		r.ItemsToCreate = make([]*MonitoredItemCreateRequest, n)
		for i := range r.ItemsToCreate {
			it := &MonitoredItemCreateRequest{}
			if err := it.Decode(d); err != nil {
				return err
			}
			r.ItemsToCreate[i] = it
		}
	}
	return nil
}

func (r *CreateMonitoredItemsRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 751) }

// CreateMonitoredItemsResponse carries one MonitoredItemCreateResult per
// ItemsToCreate entry.
type CreateMonitoredItemsResponse struct {
	ResponseHeader ResponseHeader
	Results        []*MonitoredItemCreateResult
}

func (r *CreateMonitoredItemsResponse) Encode(e *Encoder) error {
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

func (r *CreateMonitoredItemsResponse) Decode(d *Decoder) error {
	if err := r.ResponseHeader.Decode(d); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.Results = make([]*MonitoredItemCreateResult, n)
		for i := range r.Results {
			res := &MonitoredItemCreateResult{}
			if err := res.Decode(d); err != nil {
				return err
			}
			r.Results[i] = res
		}
	}
	_, _, err = d.readArrayLen()
	return err
}

func (r *CreateMonitoredItemsResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 754) }

// MonitoredItemModifyRequest re-tunes one existing MonitoredItem's
// parameters (spec.md §4.9).
type MonitoredItemModifyRequest struct {
	MonitoredItemID uint32
	RequestedParams MonitoringParameters
}

func (m *MonitoredItemModifyRequest) Encode(e *Encoder) error {
	e.WriteUint32(m.MonitoredItemID)
	return m.RequestedParams.Encode(e)
}

func (m *MonitoredItemModifyRequest) Decode(d *Decoder) error {
	var err error
	if m.MonitoredItemID, err = d.ReadUint32(); err != nil {
		return err
	}
	return m.RequestedParams.Decode(d)
}

// ModifyMonitoredItemsRequest re-tunes one or more MonitoredItems.
type ModifyMonitoredItemsRequest struct {
	RequestHeader      RequestHeader
	SubscriptionID     uint32
	TimestampsToReturn TimestampsToReturn
	ItemsToModify      []*MonitoredItemModifyRequest
}

func (r *ModifyMonitoredItemsRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(r.SubscriptionID)
	e.WriteUint32(uint32(r.TimestampsToReturn))
	e.WriteInt32(int32(len(r.ItemsToModify)))
	for _, it := range r.ItemsToModify {
		if err := it.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *ModifyMonitoredItemsRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	var err error
	if r.SubscriptionID, err = d.ReadUint32(); err != nil {
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
		r.ItemsToModify = make([]*MonitoredItemModifyRequest, n)
		for i := range r.ItemsToModify {
			it := &MonitoredItemModifyRequest{}
			if err := it.Decode(d); err != nil {
				return err
			}
			r.ItemsToModify[i] = it
		}
	}
	return nil
}

func (r *ModifyMonitoredItemsRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 763) }

// MonitoredItemModifyResult reports one item's revised parameters.
type MonitoredItemModifyResult struct {
	StatusCode              StatusCode
	RevisedSamplingInterval float64
	RevisedQueueSize        uint32
	Filter                  *ExtensionObject
}

func (m *MonitoredItemModifyResult) Encode(e *Encoder) error {
	e.WriteUint32(uint32(m.StatusCode))
	e.WriteFloat64(m.RevisedSamplingInterval)
	e.WriteUint32(m.RevisedQueueSize)
	f := m.Filter
	if f == nil {
		f = NewExtensionObject(nil)
	}
	return f.Encode(e)
}

func (m *MonitoredItemModifyResult) Decode(d *Decoder) error {
	sc, err := d.ReadUint32()
	if err != nil {
		return err
	}
	m.StatusCode = StatusCode(sc)
	if m.RevisedSamplingInterval, err = d.ReadFloat64(); err != nil {
		return err
	}
	if m.RevisedQueueSize, err = d.ReadUint32(); err != nil {
		return err
	}
	m.Filter = &ExtensionObject{}
	return m.Filter.Decode(d)
}

// ModifyMonitoredItemsResponse carries one MonitoredItemModifyResult per
// ItemsToModify entry.
type ModifyMonitoredItemsResponse struct {
	ResponseHeader ResponseHeader
	Results        []*MonitoredItemModifyResult
}

func (r *ModifyMonitoredItemsResponse) Encode(e *Encoder) error {
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

func (r *ModifyMonitoredItemsResponse) Decode(d *Decoder) error {
	if err := r.ResponseHeader.Decode(d); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.Results = make([]*MonitoredItemModifyResult, n)
		for i := range r.Results {
			res := &MonitoredItemModifyResult{}
			if err := res.Decode(d); err != nil {
				return err
			}
			r.Results[i] = res
		}
	}
	_, _, err = d.readArrayLen()
	return err
}

func (r *ModifyMonitoredItemsResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 766) }

// SetMonitoringModeRequest transitions one or more MonitoredItems between
// Disabled/Sampling/Reporting (spec.md §3).
type SetMonitoringModeRequest struct {
	RequestHeader    RequestHeader
	SubscriptionID   uint32
	MonitoringMode   MonitoringMode
	MonitoredItemIDs []uint32
}

func (r *SetMonitoringModeRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(r.SubscriptionID)
	e.WriteUint32(uint32(r.MonitoringMode))
	e.WriteInt32(int32(len(r.MonitoredItemIDs)))
	for _, id := range r.MonitoredItemIDs {
		e.WriteUint32(id)
	}
	return nil
}

func (r *SetMonitoringModeRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	var err error
	if r.SubscriptionID, err = d.ReadUint32(); err != nil {
		return err
	}
	mm, err := d.ReadUint32()
	if err != nil {
		return err
	}
	r.MonitoringMode = MonitoringMode(mm)
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.MonitoredItemIDs = make([]uint32, n)
		for i := range r.MonitoredItemIDs {
			if r.MonitoredItemIDs[i], err = d.ReadUint32(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *SetMonitoringModeRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 767) }

// SetMonitoringModeResponse carries one StatusCode per MonitoredItemIDs
// entry.
type SetMonitoringModeResponse struct {
	ResponseHeader ResponseHeader
	Results        []StatusCode
}

func (r *SetMonitoringModeResponse) Encode(e *Encoder) error {
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

func (r *SetMonitoringModeResponse) Decode(d *Decoder) error {
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

func (r *SetMonitoringModeResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 770) }

// DeleteMonitoredItemsRequest removes one or more MonitoredItems from a
// Subscription.
type DeleteMonitoredItemsRequest struct {
	RequestHeader    RequestHeader
	SubscriptionID   uint32
	MonitoredItemIDs []uint32
}

func (r *DeleteMonitoredItemsRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(r.SubscriptionID)
	e.WriteInt32(int32(len(r.MonitoredItemIDs)))
	for _, id := range r.MonitoredItemIDs {
		e.WriteUint32(id)
	}
	return nil
}

func (r *DeleteMonitoredItemsRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	var err error
	if r.SubscriptionID, err = d.ReadUint32(); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.MonitoredItemIDs = make([]uint32, n)
		for i := range r.MonitoredItemIDs {
			if r.MonitoredItemIDs[i], err = d.ReadUint32(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *DeleteMonitoredItemsRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 781) }

// DeleteMonitoredItemsResponse carries one StatusCode per MonitoredItemIDs
// entry.
type DeleteMonitoredItemsResponse struct {
	ResponseHeader ResponseHeader
	Results        []StatusCode
}

func (r *DeleteMonitoredItemsResponse) Encode(e *Encoder) error {
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

func (r *DeleteMonitoredItemsResponse) Decode(d *Decoder) error {
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

func (r *DeleteMonitoredItemsResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 784) }

func init() {
	for _, dt := range []*DataType{
		{BinaryEncodingID: NewNumericNodeID(0, 751), Kind: KindStruct, New: func() BinaryCodec { return &CreateMonitoredItemsRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 754), Kind: KindStruct, New: func() BinaryCodec { return &CreateMonitoredItemsResponse{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 763), Kind: KindStruct, New: func() BinaryCodec { return &ModifyMonitoredItemsRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 766), Kind: KindStruct, New: func() BinaryCodec { return &ModifyMonitoredItemsResponse{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 767), Kind: KindStruct, New: func() BinaryCodec { return &SetMonitoringModeRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 770), Kind: KindStruct, New: func() BinaryCodec { return &SetMonitoringModeResponse{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 781), Kind: KindStruct, New: func() BinaryCodec { return &DeleteMonitoredItemsRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 784), Kind: KindStruct, New: func() BinaryCodec { return &DeleteMonitoredItemsResponse{} }},
	} {
		RegisterDataType(dt)
	}
}
