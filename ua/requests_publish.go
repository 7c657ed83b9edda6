// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// PublishRequest supplies a slot the server fills with a
// NotificationMessage once one is due (spec.md §4.9's "Publish requests
// queue on the server until a notification or keep-alive is due"). Clients
// keep several outstanding at once so the server always has one to answer
// into.
type PublishRequest struct {
	RequestHeader              RequestHeader
	SubscriptionAcknowledgements []*SubscriptionAcknowledgement
}

func (r *PublishRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	e.WriteInt32(int32(len(r.SubscriptionAcknowledgements)))
	for _, a := range r.SubscriptionAcknowledgements {
		if err := a.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *PublishRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.SubscriptionAcknowledgements = make([]*SubscriptionAcknowledgement, n)
		for i := range r.SubscriptionAcknowledgements {
			a := &SubscriptionAcknowledgement{}
			if err := a.Decode(d); err != nil {
				return err
			}
			r.SubscriptionAcknowledgements[i] = a
		}
	}
	return nil
}

func (r *PublishRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 826) }

// PublishResponse delivers one Subscription's due NotificationMessage (or,
// for a keep-alive, an empty one) plus the status of any piggy-backed
// acknowledgements (spec.md §4.9).
type PublishResponse struct {
	ResponseHeader           ResponseHeader
	SubscriptionID           uint32
	AvailableSequenceNumbers []uint32
	MoreNotifications        bool
	NotificationMessage      NotificationMessage
	Results                  []StatusCode
}

func (r *PublishResponse) Encode(e *Encoder) error {
	if err := r.ResponseHeader.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(r.SubscriptionID)
	e.WriteInt32(int32(len(r.AvailableSequenceNumbers)))
	for _, n := range r.AvailableSequenceNumbers {
		e.WriteUint32(n)
	}
	e.WriteBool(r.MoreNotifications)
	if err := r.NotificationMessage.Encode(e); err != nil {
		return err
	}
	e.WriteInt32(int32(len(r.Results)))
	for _, s := range r.Results {
		e.WriteUint32(uint32(s))
	}
	e.WriteInt32(0) // diagnostic infos, unused
	return nil
}

func (r *PublishResponse) Decode(d *Decoder) error {
	if err := r.ResponseHeader.Decode(d); err != nil {
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
		r.AvailableSequenceNumbers = make([]uint32, n)
		for i := range r.AvailableSequenceNumbers {
			if r.AvailableSequenceNumbers[i], err = d.ReadUint32(); err != nil {
				return err
			}
		}
	}
	if r.MoreNotifications, err = d.ReadBool(); err != nil {
		return err
	}
	if err = r.NotificationMessage.Decode(d); err != nil {
		return err
	}
	n, ok, err = d.readArrayLen()
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

func (r *PublishResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 829) }

// RepublishRequest re-requests a NotificationMessage the client failed to
// receive, served from the Subscription's retransmission queue
// (spec.md §4.9).
type RepublishRequest struct {
	RequestHeader  RequestHeader
	SubscriptionID uint32
	RetransmitSequenceNumber uint32
}

func (r *RepublishRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(r.SubscriptionID)
	e.WriteUint32(r.RetransmitSequenceNumber)
	return nil
}

func (r *RepublishRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	var err error
	if r.SubscriptionID, err = d.ReadUint32(); err != nil {
		return err
	}
	if r.RetransmitSequenceNumber, err = d.ReadUint32(); err != nil {
		return err
	}
	return nil
}

func (r *RepublishRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 832) }

// RepublishResponse replays the requested NotificationMessage verbatim, or
// BadMessageNotAvailable in the ResponseHeader if it already fell out of
// the retransmission queue.
type RepublishResponse struct {
	ResponseHeader      ResponseHeader
	NotificationMessage NotificationMessage
}

func (r *RepublishResponse) Encode(e *Encoder) error {
	if err := r.ResponseHeader.Encode(e); err != nil {
		return err
	}
	return r.NotificationMessage.Encode(e)
}

func (r *RepublishResponse) Decode(d *Decoder) error {
	if err := r.ResponseHeader.Decode(d); err != nil {
		return err
	}
	return r.NotificationMessage.Decode(d)
}

func (r *RepublishResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 835) }

func init() {
	for _, dt := range []*DataType{
		{BinaryEncodingID: NewNumericNodeID(0, 826), Kind: KindStruct, New: func() BinaryCodec { return &PublishRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 829), Kind: KindStruct, New: func() BinaryCodec { return &PublishResponse{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 832), Kind: KindStruct, New: func() BinaryCodec { return &RepublishRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 835), Kind: KindStruct, New: func() BinaryCodec { return &RepublishResponse{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 811), Kind: KindStruct, New: func() BinaryCodec { return &DataChangeNotification{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 916), Kind: KindStruct, New: func() BinaryCodec { return &EventNotificationList{} }},
	} {
		RegisterDataType(dt)
	}
}
