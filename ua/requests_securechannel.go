// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// OpenSecureChannelRequest asks a server to issue (or renew) a symmetric
// security token for a channel (spec.md §4.4, §4.5). It is always sent
// asymmetrically signed/encrypted (or unprotected under SecurityPolicy
// None), never under the channel's own symmetric keys.
type OpenSecureChannelRequest struct {
	RequestHeader   RequestHeader
	ClientProtocolVersion uint32
	RequestType     SecurityTokenRequestType
	SecurityMode    MessageSecurityMode
	ClientNonce     []byte
	RequestedLifetime uint32
}

func (r *OpenSecureChannelRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(r.ClientProtocolVersion)
	e.WriteUint32(uint32(r.RequestType))
	e.WriteUint32(uint32(r.SecurityMode))
	e.WriteByteString(r.ClientNonce)
	e.WriteUint32(r.RequestedLifetime)
	return nil
}

func (r *OpenSecureChannelRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	var err error
	if r.ClientProtocolVersion, err = d.ReadUint32(); err != nil {
		return err
	}
	rt, err := d.ReadUint32()
	if err != nil {
		return err
	}
	r.RequestType = SecurityTokenRequestType(rt)
	sm, err := d.ReadUint32()
	if err != nil {
		return err
	}
	r.SecurityMode = MessageSecurityMode(sm)
	if r.ClientNonce, err = d.ReadByteString(); err != nil {
		return err
	}
	if r.RequestedLifetime, err = d.ReadUint32(); err != nil {
		return err
	}
	return nil
}

func (r *OpenSecureChannelRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 446) }

// OpenSecureChannelResponse carries the issued ChannelSecurityToken and the
// server's nonce, from which both sides derive the symmetric key material
// (spec.md §4.4's P_SHA256 key derivation).
type OpenSecureChannelResponse struct {
	ResponseHeader       ResponseHeader
	ServerProtocolVersion uint32
	SecurityToken        ChannelSecurityToken
	ServerNonce          []byte
}

func (r *OpenSecureChannelResponse) Encode(e *Encoder) error {
	if err := r.ResponseHeader.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(r.ServerProtocolVersion)
	if err := r.SecurityToken.Encode(e); err != nil {
		return err
	}
	e.WriteByteString(r.ServerNonce)
	return nil
}

func (r *OpenSecureChannelResponse) Decode(d *Decoder) error {
	if err := r.ResponseHeader.Decode(d); err != nil {
		return err
	}
	var err error
	if r.ServerProtocolVersion, err = d.ReadUint32(); err != nil {
		return err
	}
	if err = r.SecurityToken.Decode(d); err != nil {
		return err
	}
	if r.ServerNonce, err = d.ReadByteString(); err != nil {
		return err
	}
	return nil
}

func (r *OpenSecureChannelResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 449) }

// CloseSecureChannelRequest tears down a channel; the server closes the
// underlying uacp connection without sending a response (spec.md §4.5).
type CloseSecureChannelRequest struct {
	RequestHeader RequestHeader
}

func (r *CloseSecureChannelRequest) Encode(e *Encoder) error { return r.RequestHeader.Encode(e) }
func (r *CloseSecureChannelRequest) Decode(d *Decoder) error { return r.RequestHeader.Decode(d) }
func (r *CloseSecureChannelRequest) BinaryEncodingID() *NodeID {
	return NewNumericNodeID(0, 452)
}

// CloseSecureChannelResponse exists for symmetry with other services; per
// spec.md §4.5 a real server never writes one to the wire.
type CloseSecureChannelResponse struct {
	ResponseHeader ResponseHeader
}

func (r *CloseSecureChannelResponse) Encode(e *Encoder) error { return r.ResponseHeader.Encode(e) }
func (r *CloseSecureChannelResponse) Decode(d *Decoder) error { return r.ResponseHeader.Decode(d) }
func (r *CloseSecureChannelResponse) BinaryEncodingID() *NodeID {
	return NewNumericNodeID(0, 455)
}

// GetEndpointsRequest discovers the endpoints a server exposes, usually
// sent over an unprotected channel before Open/CreateSession (spec.md §6).
type GetEndpointsRequest struct {
	RequestHeader RequestHeader
	EndpointURL   string
	LocaleIDs     []string
	ProfileURIs   []string
}

func (r *GetEndpointsRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	e.WriteString(r.EndpointURL)
	e.WriteInt32(int32(len(r.LocaleIDs)))
	for _, l := range r.LocaleIDs {
		e.WriteString(l)
	}
	e.WriteInt32(int32(len(r.ProfileURIs)))
	for _, p := range r.ProfileURIs {
		e.WriteString(p)
	}
	return nil
}

func (r *GetEndpointsRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	var err error
	if r.EndpointURL, err = d.ReadString(); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.LocaleIDs = make([]string, n)
		for i := range r.LocaleIDs {
			if r.LocaleIDs[i], err = d.ReadString(); err != nil {
				return err
			}
		}
	}
	n, ok, err = d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.ProfileURIs = make([]string, n)
		for i := range r.ProfileURIs {
			if r.ProfileURIs[i], err = d.ReadString(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *GetEndpointsRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 428) }

// GetEndpointsResponse lists the matching endpoints.
type GetEndpointsResponse struct {
	ResponseHeader ResponseHeader
	Endpoints      []*EndpointDescription
}

func (r *GetEndpointsResponse) Encode(e *Encoder) error {
	if err := r.ResponseHeader.Encode(e); err != nil {
		return err
	}
	e.WriteInt32(int32(len(r.Endpoints)))
	for _, ep := range r.Endpoints {
		if err := ep.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *GetEndpointsResponse) Decode(d *Decoder) error {
	if err := r.ResponseHeader.Decode(d); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.Endpoints = make([]*EndpointDescription, n)
		for i := range r.Endpoints {
			ep := &EndpointDescription{}
			if err := ep.Decode(d); err != nil {
				return err
			}
			r.Endpoints[i] = ep
		}
	}
	return nil
}

func (r *GetEndpointsResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 431) }

// ServiceFault is returned in place of a normal response when a request
// fails before its service-specific handler runs (spec.md §4.7): bad
// secure channel id, expired session, malformed request header, etc.
type ServiceFault struct {
	ResponseHeader ResponseHeader
}

func (r *ServiceFault) Encode(e *Encoder) error { return r.ResponseHeader.Encode(e) }
func (r *ServiceFault) Decode(d *Decoder) error { return r.ResponseHeader.Decode(d) }
func (r *ServiceFault) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 397) }

func init() {
	for _, dt := range []*DataType{
		{BinaryEncodingID: NewNumericNodeID(0, 446), Kind: KindStruct, New: func() BinaryCodec { return &OpenSecureChannelRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 449), Kind: KindStruct, New: func() BinaryCodec { return &OpenSecureChannelResponse{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 452), Kind: KindStruct, New: func() BinaryCodec { return &CloseSecureChannelRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 455), Kind: KindStruct, New: func() BinaryCodec { return &CloseSecureChannelResponse{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 428), Kind: KindStruct, New: func() BinaryCodec { return &GetEndpointsRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 431), Kind: KindStruct, New: func() BinaryCodec { return &GetEndpointsResponse{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 397), Kind: KindStruct, New: func() BinaryCodec { return &ServiceFault{} }},
	} {
		RegisterDataType(dt)
	}
}
