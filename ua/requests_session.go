// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// CreateSessionRequest opens a Session on top of an already-open
// SecureChannel (spec.md §4.6). The session is not usable until
// ActivateSession succeeds.
type CreateSessionRequest struct {
	RequestHeader           RequestHeader
	ClientDescription       ApplicationDescription
	ServerURI               string
	EndpointURL             string
	SessionName             string
	ClientNonce             []byte
	ClientCertificate       []byte
	RequestedSessionTimeout float64
	MaxResponseMessageSize  uint32
}

func (r *CreateSessionRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	if err := r.ClientDescription.Encode(e); err != nil {
		return err
	}
	e.WriteString(r.ServerURI)
	e.WriteString(r.EndpointURL)
	e.WriteString(r.SessionName)
	e.WriteByteString(r.ClientNonce)
	e.WriteByteString(r.ClientCertificate)
	e.WriteFloat64(r.RequestedSessionTimeout)
	e.WriteUint32(r.MaxResponseMessageSize)
	return nil
}

func (r *CreateSessionRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	if err := r.ClientDescription.Decode(d); err != nil {
		return err
	}
	var err error
	if r.ServerURI, err = d.ReadString(); err != nil {
		return err
	}
	if r.EndpointURL, err = d.ReadString(); err != nil {
		return err
	}
	if r.SessionName, err = d.ReadString(); err != nil {
		return err
	}
	if r.ClientNonce, err = d.ReadByteString(); err != nil {
		return err
	}
	if r.ClientCertificate, err = d.ReadByteString(); err != nil {
		return err
	}
	if r.RequestedSessionTimeout, err = d.ReadFloat64(); err != nil {
		return err
	}
	if r.MaxResponseMessageSize, err = d.ReadUint32(); err != nil {
		return err
	}
	return nil
}

func (r *CreateSessionRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 461) }

// CreateSessionResponse returns the session's identity, its revised
// timeout, and the server's certificate/nonce/signature for the client to
// verify before calling ActivateSession.
type CreateSessionResponse struct {
	ResponseHeader          ResponseHeader
	SessionID               *NodeID
	AuthenticationToken     *NodeID
	RevisedSessionTimeout   float64
	ServerNonce             []byte
	ServerCertificate       []byte
	ServerEndpoints         []*EndpointDescription
	ServerSignature         SignatureData
	MaxRequestMessageSize   uint32
}

func (r *CreateSessionResponse) Encode(e *Encoder) error {
	if err := r.ResponseHeader.Encode(e); err != nil {
		return err
	}
	if err := r.SessionID.Encode(e); err != nil {
		return err
	}
	if err := r.AuthenticationToken.Encode(e); err != nil {
		return err
	}
	e.WriteFloat64(r.RevisedSessionTimeout)
	e.WriteByteString(r.ServerNonce)
	e.WriteByteString(r.ServerCertificate)
	e.WriteInt32(int32(len(r.ServerEndpoints)))
	for _, ep := range r.ServerEndpoints {
		if err := ep.Encode(e); err != nil {
			return err
		}
	}
	e.WriteInt32(0) // server software certificates, unused
	if err := r.ServerSignature.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(r.MaxRequestMessageSize)
	return nil
}

func (r *CreateSessionResponse) Decode(d *Decoder) error {
	if err := r.ResponseHeader.Decode(d); err != nil {
		return err
	}
	r.SessionID = &NodeID{}
	if err := r.SessionID.Decode(d); err != nil {
		return err
	}
	r.AuthenticationToken = &NodeID{}
	if err := r.AuthenticationToken.Decode(d); err != nil {
		return err
	}
	var err error
	if r.RevisedSessionTimeout, err = d.ReadFloat64(); err != nil {
		return err
	}
	if r.ServerNonce, err = d.ReadByteString(); err != nil {
		return err
	}
	if r.ServerCertificate, err = d.ReadByteString(); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.ServerEndpoints = make([]*EndpointDescription, n)
		for i := range r.ServerEndpoints {
			ep := &EndpointDescription{}
			if err := ep.Decode(d); err != nil {
				return err
			}
			r.ServerEndpoints[i] = ep
		}
	}
	if _, _, err = d.readArrayLen(); err != nil {
		return err
	}
	if err = r.ServerSignature.Decode(d); err != nil {
		return err
	}
	if r.MaxRequestMessageSize, err = d.ReadUint32(); err != nil {
		return err
	}
	return nil
}

func (r *CreateSessionResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 464) }

// ActivateSessionRequest binds a client identity (and, on first call, a
// signature proving possession of the channel's client certificate) to an
// already-created Session (spec.md §4.6).
type ActivateSessionRequest struct {
	RequestHeader      RequestHeader
	ClientSignature    SignatureData
	LocaleIDs          []string
	UserIdentityToken  *ExtensionObject
	UserTokenSignature SignatureData
}

func (r *ActivateSessionRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	if err := r.ClientSignature.Encode(e); err != nil {
		return err
	}
	e.WriteInt32(0) // client software certificates, unused
	e.WriteInt32(int32(len(r.LocaleIDs)))
	for _, l := range r.LocaleIDs {
		e.WriteString(l)
	}
	tok := r.UserIdentityToken
	if tok == nil {
		tok = NewExtensionObject(&AnonymousIdentityToken{})
	}
	if err := tok.Encode(e); err != nil {
		return err
	}
	return r.UserTokenSignature.Encode(e)
}

func (r *ActivateSessionRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	if err := r.ClientSignature.Decode(d); err != nil {
		return err
	}
	if _, _, err := d.readArrayLen(); err != nil {
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
	r.UserIdentityToken = &ExtensionObject{}
	if err := r.UserIdentityToken.Decode(d); err != nil {
		return err
	}
	return r.UserTokenSignature.Decode(d)
}

func (r *ActivateSessionRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 467) }

// ActivateSessionResponse confirms activation and returns a fresh server
// nonce for the next ActivateSession/renewal.
type ActivateSessionResponse struct {
	ResponseHeader ResponseHeader
	ServerNonce    []byte
}

func (r *ActivateSessionResponse) Encode(e *Encoder) error {
	if err := r.ResponseHeader.Encode(e); err != nil {
		return err
	}
	e.WriteByteString(r.ServerNonce)
	e.WriteInt32(0) // result diagnostic infos for token validation, unused
	return nil
}

func (r *ActivateSessionResponse) Decode(d *Decoder) error {
	if err := r.ResponseHeader.Decode(d); err != nil {
		return err
	}
	var err error
	if r.ServerNonce, err = d.ReadByteString(); err != nil {
		return err
	}
	_, _, err = d.readArrayLen()
	return err
}

func (r *ActivateSessionResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 470) }

// CloseSessionRequest ends a Session, optionally deleting its
// subscriptions (spec.md §4.6).
type CloseSessionRequest struct {
	RequestHeader       RequestHeader
	DeleteSubscriptions bool
}

func (r *CloseSessionRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	e.WriteBool(r.DeleteSubscriptions)
	return nil
}

func (r *CloseSessionRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	var err error
	r.DeleteSubscriptions, err = d.ReadBool()
	return err
}

func (r *CloseSessionRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 473) }

// CloseSessionResponse acknowledges CloseSession.
type CloseSessionResponse struct {
	ResponseHeader ResponseHeader
}

func (r *CloseSessionResponse) Encode(e *Encoder) error { return r.ResponseHeader.Encode(e) }
func (r *CloseSessionResponse) Decode(d *Decoder) error { return r.ResponseHeader.Decode(d) }
func (r *CloseSessionResponse) BinaryEncodingID() *NodeID {
	return NewNumericNodeID(0, 476)
}

func init() {
	for _, dt := range []*DataType{
		{BinaryEncodingID: NewNumericNodeID(0, 461), Kind: KindStruct, New: func() BinaryCodec { return &CreateSessionRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 464), Kind: KindStruct, New: func() BinaryCodec { return &CreateSessionResponse{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 467), Kind: KindStruct, New: func() BinaryCodec { return &ActivateSessionRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 470), Kind: KindStruct, New: func() BinaryCodec { return &ActivateSessionResponse{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 473), Kind: KindStruct, New: func() BinaryCodec { return &CloseSessionRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 476), Kind: KindStruct, New: func() BinaryCodec { return &CloseSessionResponse{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 319), Kind: KindStruct, New: func() BinaryCodec { return &AnonymousIdentityToken{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 325), Kind: KindStruct, New: func() BinaryCodec { return &UserNameIdentityToken{} }},
	} {
		RegisterDataType(dt)
	}
}
