// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// CreateSubscriptionRequest creates a Subscription: a publishing timer plus
// a set of MonitoredItems added afterward via CreateMonitoredItems
// (spec.md §3, §4.9).
type CreateSubscriptionRequest struct {
	RequestHeader            RequestHeader
	RequestedPublishingInterval float64
	RequestedLifetimeCount   uint32
	RequestedMaxKeepAliveCount uint32
	MaxNotificationsPerPublish uint32
	PublishingEnabled        bool
	Priority                 byte
}

func (r *CreateSubscriptionRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	e.WriteFloat64(r.RequestedPublishingInterval)
	e.WriteUint32(r.RequestedLifetimeCount)
	e.WriteUint32(r.RequestedMaxKeepAliveCount)
	e.WriteUint32(r.MaxNotificationsPerPublish)
	e.WriteBool(r.PublishingEnabled)
	e.WriteByte(r.Priority)
	return nil
}

func (r *CreateSubscriptionRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	var err error
	if r.RequestedPublishingInterval, err = d.ReadFloat64(); err != nil {
		return err
	}
	if r.RequestedLifetimeCount, err = d.ReadUint32(); err != nil {
		return err
	}
	if r.RequestedMaxKeepAliveCount, err = d.ReadUint32(); err != nil {
		return err
	}
	if r.MaxNotificationsPerPublish, err = d.ReadUint32(); err != nil {
		return err
	}
	if r.PublishingEnabled, err = d.ReadBool(); err != nil {
		return err
	}
	if r.Priority, err = d.ReadByte(); err != nil {
		return err
	}
	return nil
}

func (r *CreateSubscriptionRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 787) }

// CreateSubscriptionResponse returns the new Subscription's id and the
// server-revised timer parameters (spec.md §4.9's "server MAY revise the
// requested interval/counts").
type CreateSubscriptionResponse struct {
	ResponseHeader          ResponseHeader
	SubscriptionID          uint32
	RevisedPublishingInterval float64
	RevisedLifetimeCount    uint32
	RevisedMaxKeepAliveCount uint32
}

func (r *CreateSubscriptionResponse) Encode(e *Encoder) error {
	if err := r.ResponseHeader.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(r.SubscriptionID)
	e.WriteFloat64(r.RevisedPublishingInterval)
	e.WriteUint32(r.RevisedLifetimeCount)
	e.WriteUint32(r.RevisedMaxKeepAliveCount)
	return nil
}

func (r *CreateSubscriptionResponse) Decode(d *Decoder) error {
	if err := r.ResponseHeader.Decode(d); err != nil {
		return err
	}
	var err error
	if r.SubscriptionID, err = d.ReadUint32(); err != nil {
		return err
	}
	if r.RevisedPublishingInterval, err = d.ReadFloat64(); err != nil {
		return err
	}
	if r.RevisedLifetimeCount, err = d.ReadUint32(); err != nil {
		return err
	}
	if r.RevisedMaxKeepAliveCount, err = d.ReadUint32(); err != nil {
		return err
	}
	return nil
}

func (r *CreateSubscriptionResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 790) }

// ModifySubscriptionRequest re-tunes an existing Subscription's timer
// parameters without recreating its MonitoredItems.
type ModifySubscriptionRequest struct {
	RequestHeader              RequestHeader
	SubscriptionID             uint32
	RequestedPublishingInterval float64
	RequestedLifetimeCount     uint32
	RequestedMaxKeepAliveCount uint32
	MaxNotificationsPerPublish uint32
	Priority                   byte
}

func (r *ModifySubscriptionRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(r.SubscriptionID)
	e.WriteFloat64(r.RequestedPublishingInterval)
	e.WriteUint32(r.RequestedLifetimeCount)
	e.WriteUint32(r.RequestedMaxKeepAliveCount)
	e.WriteUint32(r.MaxNotificationsPerPublish)
	e.WriteByte(r.Priority)
	return nil
}

func (r *ModifySubscriptionRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	var err error
	if r.SubscriptionID, err = d.ReadUint32(); err != nil {
		return err
	}
	if r.RequestedPublishingInterval, err = d.ReadFloat64(); err != nil {
		return err
	}
	if r.RequestedLifetimeCount, err = d.ReadUint32(); err != nil {
		return err
	}
	if r.RequestedMaxKeepAliveCount, err = d.ReadUint32(); err != nil {
		return err
	}
	if r.MaxNotificationsPerPublish, err = d.ReadUint32(); err != nil {
		return err
	}
	if r.Priority, err = d.ReadByte(); err != nil {
		return err
	}
	return nil
}

func (r *ModifySubscriptionRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 793) }

// ModifySubscriptionResponse returns the revised timer parameters.
type ModifySubscriptionResponse struct {
	ResponseHeader            ResponseHeader
	RevisedPublishingInterval float64
	RevisedLifetimeCount      uint32
	RevisedMaxKeepAliveCount  uint32
}

func (r *ModifySubscriptionResponse) Encode(e *Encoder) error {
	if err := r.ResponseHeader.Encode(e); err != nil {
		return err
	}
	e.WriteFloat64(r.RevisedPublishingInterval)
	e.WriteUint32(r.RevisedLifetimeCount)
	e.WriteUint32(r.RevisedMaxKeepAliveCount)
	return nil
}

func (r *ModifySubscriptionResponse) Decode(d *Decoder) error {
	if err := r.ResponseHeader.Decode(d); err != nil {
		return err
	}
	var err error
	if r.RevisedPublishingInterval, err = d.ReadFloat64(); err != nil {
		return err
	}
	if r.RevisedLifetimeCount, err = d.ReadUint32(); err != nil {
		return err
	}
	if r.RevisedMaxKeepAliveCount, err = d.ReadUint32(); err != nil {
		return err
	}
	return nil
}

func (r *ModifySubscriptionResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 796) }

// SetPublishingModeRequest pauses or resumes notification delivery for one
// or more Subscriptions without deleting them.
type SetPublishingModeRequest struct {
	RequestHeader   RequestHeader
	PublishingEnabled bool
	SubscriptionIDs []uint32
}

func (r *SetPublishingModeRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	e.WriteBool(r.PublishingEnabled)
	e.WriteInt32(int32(len(r.SubscriptionIDs)))
	for _, id := range r.SubscriptionIDs {
		e.WriteUint32(id)
	}
	return nil
}

func (r *SetPublishingModeRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	var err error
	if r.PublishingEnabled, err = d.ReadBool(); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.SubscriptionIDs = make([]uint32, n)
		for i := range r.SubscriptionIDs {
			if r.SubscriptionIDs[i], err = d.ReadUint32(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *SetPublishingModeRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 799) }

// SetPublishingModeResponse carries one StatusCode per SubscriptionIDs entry.
type SetPublishingModeResponse struct {
	ResponseHeader ResponseHeader
	Results        []StatusCode
}

func (r *SetPublishingModeResponse) Encode(e *Encoder) error {
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

func (r *SetPublishingModeResponse) Decode(d *Decoder) error {
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

func (r *SetPublishingModeResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 802) }

// DeleteSubscriptionsRequest deletes one or more Subscriptions and all of
// their MonitoredItems.
type DeleteSubscriptionsRequest struct {
	RequestHeader   RequestHeader
	SubscriptionIDs []uint32
}

func (r *DeleteSubscriptionsRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	e.WriteInt32(int32(len(r.SubscriptionIDs)))
	for _, id := range r.SubscriptionIDs {
		e.WriteUint32(id)
	}
	return nil
}

func (r *DeleteSubscriptionsRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.SubscriptionIDs = make([]uint32, n)
		for i := range r.SubscriptionIDs {
			if r.SubscriptionIDs[i], err = d.ReadUint32(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *DeleteSubscriptionsRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 847) }

// DeleteSubscriptionsResponse carries one StatusCode per SubscriptionIDs
// entry.
type DeleteSubscriptionsResponse struct {
	ResponseHeader ResponseHeader
	Results        []StatusCode
}

func (r *DeleteSubscriptionsResponse) Encode(e *Encoder) error {
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

func (r *DeleteSubscriptionsResponse) Decode(d *Decoder) error {
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

func (r *DeleteSubscriptionsResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 850) }

func init() {
	for _, dt := range []*DataType{
		{BinaryEncodingID: NewNumericNodeID(0, 787), Kind: KindStruct, New: func() BinaryCodec { return &CreateSubscriptionRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 790), Kind: KindStruct, New: func() BinaryCodec { return &CreateSubscriptionResponse{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 793), Kind: KindStruct, New: func() BinaryCodec { return &ModifySubscriptionRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 796), Kind: KindStruct, New: func() BinaryCodec { return &ModifySubscriptionResponse{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 799), Kind: KindStruct, New: func() BinaryCodec { return &SetPublishingModeRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 802), Kind: KindStruct, New: func() BinaryCodec { return &SetPublishingModeResponse{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 847), Kind: KindStruct, New: func() BinaryCodec { return &DeleteSubscriptionsRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 850), Kind: KindStruct, New: func() BinaryCodec { return &DeleteSubscriptionsResponse{} }},
	} {
		RegisterDataType(dt)
	}
}
