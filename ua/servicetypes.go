// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// ApplicationDescription identifies a client or server application
// (spec.md §6), exchanged during GetEndpoints and CreateSession.
type ApplicationDescription struct {
	ApplicationURI      string
	ProductURI          string
	ApplicationName     LocalizedText
	ApplicationType     ApplicationType
	GatewayServerURI    string
	DiscoveryProfileURI string
	DiscoveryURLs       []string
}

func (a *ApplicationDescription) Encode(e *Encoder) error {
	e.WriteString(a.ApplicationURI)
	e.WriteString(a.ProductURI)
	if err := a.ApplicationName.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(uint32(a.ApplicationType))
	e.WriteString(a.GatewayServerURI)
	e.WriteString(a.DiscoveryProfileURI)
	e.WriteInt32(int32(len(a.DiscoveryURLs)))
	for _, u := range a.DiscoveryURLs {
		e.WriteString(u)
	}
	return nil
}

func (a *ApplicationDescription) Decode(d *Decoder) error {
	var err error
	if a.ApplicationURI, err = d.ReadString(); err != nil {
		return err
	}
	if a.ProductURI, err = d.ReadString(); err != nil {
		return err
	}
	if err = a.ApplicationName.Decode(d); err != nil {
		return err
	}
	at, err := d.ReadUint32()
	if err != nil {
		return err
	}
	a.ApplicationType = ApplicationType(at)
	if a.GatewayServerURI, err = d.ReadString(); err != nil {
		return err
	}
	if a.DiscoveryProfileURI, err = d.ReadString(); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		a.DiscoveryURLs = make([]string, n)
		for i := range a.DiscoveryURLs {
			if a.DiscoveryURLs[i], err = d.ReadString(); err != nil {
				return err
			}
		}
	}
	return nil
}

// UserTokenPolicy describes one identity-token option an endpoint accepts.
type UserTokenPolicy struct {
	PolicyID          string
	TokenType         UserTokenType
	IssuedTokenType   string
	IssuerEndpointURL string
	SecurityPolicyURI string
}

func (p *UserTokenPolicy) Encode(e *Encoder) error {
	e.WriteString(p.PolicyID)
	e.WriteUint32(uint32(p.TokenType))
	e.WriteString(p.IssuedTokenType)
	e.WriteString(p.IssuerEndpointURL)
	e.WriteString(p.SecurityPolicyURI)
	return nil
}

func (p *UserTokenPolicy) Decode(d *Decoder) error {
	var err error
	if p.PolicyID, err = d.ReadString(); err != nil {
		return err
	}
	tt, err := d.ReadUint32()
	if err != nil {
		return err
	}
	p.TokenType = UserTokenType(tt)
	if p.IssuedTokenType, err = d.ReadString(); err != nil {
		return err
	}
	if p.IssuerEndpointURL, err = d.ReadString(); err != nil {
		return err
	}
	if p.SecurityPolicyURI, err = d.ReadString(); err != nil {
		return err
	}
	return nil
}

// EndpointDescription is one row of GetEndpoints' result (spec.md §6).
type EndpointDescription struct {
	EndpointURL         string
	Server              ApplicationDescription
	ServerCertificate   []byte
	SecurityMode        MessageSecurityMode
	SecurityPolicyURI   string
	UserIdentityTokens  []*UserTokenPolicy
	TransportProfileURI string
	SecurityLevel       byte
}

func (ep *EndpointDescription) Encode(e *Encoder) error {
	e.WriteString(ep.EndpointURL)
	if err := ep.Server.Encode(e); err != nil {
		return err
	}
	e.WriteByteString(ep.ServerCertificate)
	e.WriteUint32(uint32(ep.SecurityMode))
	e.WriteString(ep.SecurityPolicyURI)
	e.WriteInt32(int32(len(ep.UserIdentityTokens)))
	for _, t := range ep.UserIdentityTokens {
		if err := t.Encode(e); err != nil {
			return err
		}
	}
	e.WriteString(ep.TransportProfileURI)
	e.WriteByte(ep.SecurityLevel)
	return nil
}

func (ep *EndpointDescription) Decode(d *Decoder) error {
	var err error
	if ep.EndpointURL, err = d.ReadString(); err != nil {
		return err
	}
	if err = ep.Server.Decode(d); err != nil {
		return err
	}
	if ep.ServerCertificate, err = d.ReadByteString(); err != nil {
		return err
	}
	sm, err := d.ReadUint32()
	if err != nil {
		return err
	}
	ep.SecurityMode = MessageSecurityMode(sm)
	if ep.SecurityPolicyURI, err = d.ReadString(); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		ep.UserIdentityTokens = make([]*UserTokenPolicy, n)
		for i := range ep.UserIdentityTokens {
			p := &UserTokenPolicy{}
			if err := p.Decode(d); err != nil {
				return err
			}
			ep.UserIdentityTokens[i] = p
		}
	}
	if ep.TransportProfileURI, err = d.ReadString(); err != nil {
		return err
	}
	if ep.SecurityLevel, err = d.ReadByte(); err != nil {
		return err
	}
	return nil
}

// SignatureData carries an algorithm URI and a signature over a
// concatenation of certificate bytes, used by CreateSession/
// ActivateSession to prove possession of a private key (spec.md §4.6).
type SignatureData struct {
	Algorithm string
	Signature []byte
}

func (s *SignatureData) Encode(e *Encoder) error {
	e.WriteString(s.Algorithm)
	e.WriteByteString(s.Signature)
	return nil
}

func (s *SignatureData) Decode(d *Decoder) error {
	var err error
	if s.Algorithm, err = d.ReadString(); err != nil {
		return err
	}
	if s.Signature, err = d.ReadByteString(); err != nil {
		return err
	}
	return nil
}

// ChannelSecurityToken identifies one symmetric key epoch of a
// SecureChannel (spec.md §4.4).
type ChannelSecurityToken struct {
	ChannelID       uint32
	TokenID         uint32
	CreatedAt       int64 // OPC UA DateTime, 100ns ticks since 1601-01-01
	RevisedLifetime uint32
}

func (t *ChannelSecurityToken) Encode(e *Encoder) error {
	e.WriteUint32(t.ChannelID)
	e.WriteUint32(t.TokenID)
	e.WriteInt64(t.CreatedAt)
	e.WriteUint32(t.RevisedLifetime)
	return nil
}

func (t *ChannelSecurityToken) Decode(d *Decoder) error {
	var err error
	if t.ChannelID, err = d.ReadUint32(); err != nil {
		return err
	}
	if t.TokenID, err = d.ReadUint32(); err != nil {
		return err
	}
	if t.CreatedAt, err = d.ReadInt64(); err != nil {
		return err
	}
	if t.RevisedLifetime, err = d.ReadUint32(); err != nil {
		return err
	}
	return nil
}

// AnonymousIdentityToken is the trivial UserIdentityToken body for
// anonymous ActivateSession.
type AnonymousIdentityToken struct {
	PolicyID string
}

func (t *AnonymousIdentityToken) Encode(e *Encoder) error { e.WriteString(t.PolicyID); return nil }
func (t *AnonymousIdentityToken) Decode(d *Decoder) error {
	var err error
	t.PolicyID, err = d.ReadString()
	return err
}
func (t *AnonymousIdentityToken) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 319) }

// UserNameIdentityToken carries a username/password (or pre-encrypted
// password blob) ActivateSession identity (spec.md §4.6).
type UserNameIdentityToken struct {
	PolicyID            string
	UserName            string
	Password            []byte
	EncryptionAlgorithm string
}

func (t *UserNameIdentityToken) Encode(e *Encoder) error {
	e.WriteString(t.PolicyID)
	e.WriteString(t.UserName)
	e.WriteByteString(t.Password)
	e.WriteString(t.EncryptionAlgorithm)
	return nil
}

func (t *UserNameIdentityToken) Decode(d *Decoder) error {
	var err error
	if t.PolicyID, err = d.ReadString(); err != nil {
		return err
	}
	if t.UserName, err = d.ReadString(); err != nil {
		return err
	}
	if t.Password, err = d.ReadByteString(); err != nil {
		return err
	}
	if t.EncryptionAlgorithm, err = d.ReadString(); err != nil {
		return err
	}
	return nil
}

func (t *UserNameIdentityToken) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 325) }

// ReadValueID names one attribute of one node to read or monitor
// (spec.md §4.7, §4.9).
type ReadValueID struct {
	NodeID       *NodeID
	AttributeID  uint32
	IndexRange   string
	DataEncoding QualifiedName
}

func (r *ReadValueID) Encode(e *Encoder) error {
	if err := r.NodeID.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(r.AttributeID)
	e.WriteString(r.IndexRange)
	return r.DataEncoding.Encode(e)
}

func (r *ReadValueID) Decode(d *Decoder) error {
	r.NodeID = &NodeID{}
	if err := r.NodeID.Decode(d); err != nil {
		return err
	}
	var err error
	if r.AttributeID, err = d.ReadUint32(); err != nil {
		return err
	}
	if r.IndexRange, err = d.ReadString(); err != nil {
		return err
	}
	return r.DataEncoding.Decode(d)
}

// WriteValue pairs a ReadValueID with the DataValue to write.
type WriteValue struct {
	NodeID      *NodeID
	AttributeID uint32
	IndexRange  string
	Value       DataValue
}

func (w *WriteValue) Encode(e *Encoder) error {
	if err := w.NodeID.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(w.AttributeID)
	e.WriteString(w.IndexRange)
	return w.Value.Encode(e)
}

func (w *WriteValue) Decode(d *Decoder) error {
	w.NodeID = &NodeID{}
	if err := w.NodeID.Decode(d); err != nil {
		return err
	}
	var err error
	if w.AttributeID, err = d.ReadUint32(); err != nil {
		return err
	}
	if w.IndexRange, err = d.ReadString(); err != nil {
		return err
	}
	return w.Value.Decode(d)
}

// BrowseDescription parameterizes one node's worth of Browse (spec.md §4.7).
type BrowseDescription struct {
	NodeID          *NodeID
	Direction       BrowseDirection
	ReferenceTypeID *NodeID
	IncludeSubtypes bool
	NodeClassMask   uint32
	ResultMask      uint32
}

func (b *BrowseDescription) Encode(e *Encoder) error {
	if err := b.NodeID.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(uint32(b.Direction))
	rt := b.ReferenceTypeID
	if rt == nil {
		rt = NewTwoByteNodeID(0)
	}
	if err := rt.Encode(e); err != nil {
		return err
	}
	e.WriteBool(b.IncludeSubtypes)
	e.WriteUint32(b.NodeClassMask)
	e.WriteUint32(b.ResultMask)
	return nil
}

func (b *BrowseDescription) Decode(d *Decoder) error {
	b.NodeID = &NodeID{}
	if err := b.NodeID.Decode(d); err != nil {
		return err
	}
	dir, err := d.ReadUint32()
	if err != nil {
		return err
	}
	b.Direction = BrowseDirection(dir)
	b.ReferenceTypeID = &NodeID{}
	if err := b.ReferenceTypeID.Decode(d); err != nil {
		return err
	}
	if b.IncludeSubtypes, err = d.ReadBool(); err != nil {
		return err
	}
	if b.NodeClassMask, err = d.ReadUint32(); err != nil {
		return err
	}
	if b.ResultMask, err = d.ReadUint32(); err != nil {
		return err
	}
	return nil
}

// ReferenceDescription is one Browse result row.
type ReferenceDescription struct {
	ReferenceTypeID *NodeID
	IsForward       bool
	NodeID          *NodeID // ExpandedNodeId, server-uri index always 0 in this stack
	BrowseName      QualifiedName
	DisplayName     LocalizedText
	NodeClass       NodeClass
	TypeDefinition  *NodeID
}

func (r *ReferenceDescription) Encode(e *Encoder) error {
	if err := r.ReferenceTypeID.Encode(e); err != nil {
		return err
	}
	e.WriteBool(r.IsForward)
	if err := r.NodeID.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(0) // expanded nodeid server index, unused
	if err := r.BrowseName.Encode(e); err != nil {
		return err
	}
	if err := r.DisplayName.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(uint32(r.NodeClass))
	td := r.TypeDefinition
	if td == nil {
		td = NewTwoByteNodeID(0)
	}
	if err := td.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(0)
	return nil
}

func (r *ReferenceDescription) Decode(d *Decoder) error {
	r.ReferenceTypeID = &NodeID{}
	if err := r.ReferenceTypeID.Decode(d); err != nil {
		return err
	}
	var err error
	if r.IsForward, err = d.ReadBool(); err != nil {
		return err
	}
	r.NodeID = &NodeID{}
	if err := r.NodeID.Decode(d); err != nil {
		return err
	}
	if _, err = d.ReadUint32(); err != nil {
		return err
	}
	if err = r.BrowseName.Decode(d); err != nil {
		return err
	}
	if err = r.DisplayName.Decode(d); err != nil {
		return err
	}
	nc, err := d.ReadUint32()
	if err != nil {
		return err
	}
	r.NodeClass = NodeClass(nc)
	r.TypeDefinition = &NodeID{}
	if err := r.TypeDefinition.Decode(d); err != nil {
		return err
	}
	_, err = d.ReadUint32()
	return err
}

// BrowseResult is one BrowseDescription's outcome: a status, a
// continuation point for BrowseNext, and the references found so far.
type BrowseResult struct {
	StatusCode        StatusCode
	ContinuationPoint []byte
	References        []*ReferenceDescription
}

func (r *BrowseResult) Encode(e *Encoder) error {
	e.WriteUint32(uint32(r.StatusCode))
	e.WriteByteString(r.ContinuationPoint)
	e.WriteInt32(int32(len(r.References)))
	for _, ref := range r.References {
		if err := ref.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *BrowseResult) Decode(d *Decoder) error {
	sc, err := d.ReadUint32()
	if err != nil {
		return err
	}
	r.StatusCode = StatusCode(sc)
	if r.ContinuationPoint, err = d.ReadByteString(); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.References = make([]*ReferenceDescription, n)
		for i := range r.References {
			ref := &ReferenceDescription{}
			if err := ref.Decode(d); err != nil {
				return err
			}
			r.References[i] = ref
		}
	}
	return nil
}

// CallMethodRequest invokes one method node with positional input
// arguments (spec.md §4.7).
type CallMethodRequest struct {
	ObjectID       *NodeID
	MethodID       *NodeID
	InputArguments []*Variant
}

func (c *CallMethodRequest) Encode(e *Encoder) error {
	if err := c.ObjectID.Encode(e); err != nil {
		return err
	}
	if err := c.MethodID.Encode(e); err != nil {
		return err
	}
	e.WriteInt32(int32(len(c.InputArguments)))
	for _, a := range c.InputArguments {
		if err := a.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (c *CallMethodRequest) Decode(d *Decoder) error {
	c.ObjectID = &NodeID{}
	if err := c.ObjectID.Decode(d); err != nil {
		return err
	}
	c.MethodID = &NodeID{}
	if err := c.MethodID.Decode(d); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		c.InputArguments = make([]*Variant, n)
		for i := range c.InputArguments {
			v := &Variant{}
			if err := v.Decode(d); err != nil {
				return err
			}
			c.InputArguments[i] = v
		}
	}
	return nil
}

// CallMethodResult carries a method's outcome, per-argument status codes
// and output arguments.
type CallMethodResult struct {
	StatusCode          StatusCode
	InputArgumentResults []StatusCode
	OutputArguments     []*Variant
}

func (c *CallMethodResult) Encode(e *Encoder) error {
	e.WriteUint32(uint32(c.StatusCode))
	e.WriteInt32(int32(len(c.InputArgumentResults)))
	for _, s := range c.InputArgumentResults {
		e.WriteUint32(uint32(s))
	}
	e.WriteInt32(0) // input argument diagnostic infos, unused
	e.WriteInt32(int32(len(c.OutputArguments)))
	for _, a := range c.OutputArguments {
		if err := a.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (c *CallMethodResult) Decode(d *Decoder) error {
	sc, err := d.ReadUint32()
	if err != nil {
		return err
	}
	c.StatusCode = StatusCode(sc)
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		c.InputArgumentResults = make([]StatusCode, n)
		for i := range c.InputArgumentResults {
			v, err := d.ReadUint32()
			if err != nil {
				return err
			}
			c.InputArgumentResults[i] = StatusCode(v)
		}
	}
	if _, ok, err = d.readArrayLen(); err != nil {
		return err
	} else if ok {
		// diagnostic infos array present but unused; nothing to skip since
		// length-prefixed sub-elements aren't read here by design.
	}
	n, ok, err = d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		c.OutputArguments = make([]*Variant, n)
		for i := range c.OutputArguments {
			v := &Variant{}
			if err := v.Decode(d); err != nil {
				return err
			}
			c.OutputArguments[i] = v
		}
	}
	return nil
}

// MonitoringParameters tunes sampling, queueing and filtering for one
// MonitoredItem (spec.md §3, §4.9).
type MonitoringParameters struct {
	ClientHandle     uint32
	SamplingInterval float64
	Filter           *ExtensionObject
	QueueSize        uint32
	DiscardOldest    bool
}

func (m *MonitoringParameters) Encode(e *Encoder) error {
	e.WriteUint32(m.ClientHandle)
	e.WriteFloat64(m.SamplingInterval)
	f := m.Filter
	if f == nil {
		f = NewExtensionObject(nil)
	}
	if err := f.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(m.QueueSize)
	e.WriteBool(m.DiscardOldest)
	return nil
}

func (m *MonitoringParameters) Decode(d *Decoder) error {
	var err error
	if m.ClientHandle, err = d.ReadUint32(); err != nil {
		return err
	}
	if m.SamplingInterval, err = d.ReadFloat64(); err != nil {
		return err
	}
	m.Filter = &ExtensionObject{}
	if err := m.Filter.Decode(d); err != nil {
		return err
	}
	if m.QueueSize, err = d.ReadUint32(); err != nil {
		return err
	}
	if m.DiscardOldest, err = d.ReadBool(); err != nil {
		return err
	}
	return nil
}

// MonitoredItemCreateRequest pairs a ReadValueID with its monitoring mode
// and parameters, one element of CreateMonitoredItemsRequest.
type MonitoredItemCreateRequest struct {
	ItemToMonitor   ReadValueID
	MonitoringMode  MonitoringMode
	RequestedParams MonitoringParameters
}

func (m *MonitoredItemCreateRequest) Encode(e *Encoder) error {
	if err := m.ItemToMonitor.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(uint32(m.MonitoringMode))
	return m.RequestedParams.Encode(e)
}

func (m *MonitoredItemCreateRequest) Decode(d *Decoder) error {
	if err := m.ItemToMonitor.Decode(d); err != nil {
		return err
	}
	mm, err := d.ReadUint32()
	if err != nil {
		return err
	}
	m.MonitoringMode = MonitoringMode(mm)
	return m.RequestedParams.Decode(d)
}

// MonitoredItemCreateResult reports the server-revised parameters and the
// new monitored item's id (spec.md §4.9).
type MonitoredItemCreateResult struct {
	StatusCode                StatusCode
	MonitoredItemID           uint32
	RevisedSamplingInterval   float64
	RevisedQueueSize          uint32
	Filter                    *ExtensionObject
}

func (m *MonitoredItemCreateResult) Encode(e *Encoder) error {
	e.WriteUint32(uint32(m.StatusCode))
	e.WriteUint32(m.MonitoredItemID)
	e.WriteFloat64(m.RevisedSamplingInterval)
	e.WriteUint32(m.RevisedQueueSize)
	f := m.Filter
	if f == nil {
		f = NewExtensionObject(nil)
	}
	return f.Encode(e)
}

func (m *MonitoredItemCreateResult) Decode(d *Decoder) error {
	sc, err := d.ReadUint32()
	if err != nil {
		return err
	}
	m.StatusCode = StatusCode(sc)
	if m.MonitoredItemID, err = d.ReadUint32(); err != nil {
		return err
	}
	if m.RevisedSamplingInterval, err = d.ReadFloat64(); err != nil {
		return err
	}
	if m.RevisedQueueSize, err = d.ReadUint32(); err != nil {
		return err
	}
	m.Filter = &ExtensionObject{}
	return m.Filter.Decode(d)
}

// SubscriptionAcknowledgement lets a Publish request acknowledge receipt
// of prior NotificationMessages so the server can free its retransmission
// queue (spec.md §4.9).
type SubscriptionAcknowledgement struct {
	SubscriptionID uint32
	SequenceNumber uint32
}

func (a *SubscriptionAcknowledgement) Encode(e *Encoder) error {
	e.WriteUint32(a.SubscriptionID)
	e.WriteUint32(a.SequenceNumber)
	return nil
}

func (a *SubscriptionAcknowledgement) Decode(d *Decoder) error {
	var err error
	if a.SubscriptionID, err = d.ReadUint32(); err != nil {
		return err
	}
	if a.SequenceNumber, err = d.ReadUint32(); err != nil {
		return err
	}
	return nil
}

// MonitoredItemNotification is one DataChange sample queued for delivery.
type MonitoredItemNotification struct {
	ClientHandle uint32
	Value        DataValue
}

func (n *MonitoredItemNotification) Encode(e *Encoder) error {
	e.WriteUint32(n.ClientHandle)
	return n.Value.Encode(e)
}

func (n *MonitoredItemNotification) Decode(d *Decoder) error {
	var err error
	if n.ClientHandle, err = d.ReadUint32(); err != nil {
		return err
	}
	return n.Value.Decode(d)
}

// DataChangeNotification bundles DataChange samples for one
// NotificationMessage (spec.md §4.9).
type DataChangeNotification struct {
	MonitoredItems []*MonitoredItemNotification
}

func (n *DataChangeNotification) Encode(e *Encoder) error {
	e.WriteInt32(int32(len(n.MonitoredItems)))
	for _, m := range n.MonitoredItems {
		if err := m.Encode(e); err != nil {
			return err
		}
	}
	e.WriteInt32(0) // diagnostic infos, unused
	return nil
}

func (n *DataChangeNotification) Decode(d *Decoder) error {
	num, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		n.MonitoredItems = make([]*MonitoredItemNotification, num)
		for i := range n.MonitoredItems {
			m := &MonitoredItemNotification{}
			if err := m.Decode(d); err != nil {
				return err
			}
			n.MonitoredItems[i] = m
		}
	}
	_, _, err = d.readArrayLen()
	return err
}

func (n *DataChangeNotification) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 811) }

// EventFieldList carries one event occurrence's projected select-clause
// values (spec.md §4.10).
type EventFieldList struct {
	ClientHandle  uint32
	EventFields   []*Variant
}

func (l *EventFieldList) Encode(e *Encoder) error {
	e.WriteUint32(l.ClientHandle)
	e.WriteInt32(int32(len(l.EventFields)))
	for _, v := range l.EventFields {
		if err := v.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (l *EventFieldList) Decode(d *Decoder) error {
	var err error
	if l.ClientHandle, err = d.ReadUint32(); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		l.EventFields = make([]*Variant, n)
		for i := range l.EventFields {
			v := &Variant{}
			if err := v.Decode(d); err != nil {
				return err
			}
			l.EventFields[i] = v
		}
	}
	return nil
}

// EventNotificationList bundles Event samples for one NotificationMessage.
type EventNotificationList struct {
	Events []*EventFieldList
}

func (l *EventNotificationList) Encode(e *Encoder) error {
	e.WriteInt32(int32(len(l.Events)))
	for _, ev := range l.Events {
		if err := ev.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (l *EventNotificationList) Decode(d *Decoder) error {
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		l.Events = make([]*EventFieldList, n)
		for i := range l.Events {
			ev := &EventFieldList{}
			if err := ev.Decode(d); err != nil {
				return err
			}
			l.Events[i] = ev
		}
	}
	return nil
}

func (l *EventNotificationList) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 916) }

// NotificationMessage is one Publish response payload: a sequence number
// plus a set of NotificationData ExtensionObjects (DataChange and/or Event
// notifications), per spec.md §4.9.
type NotificationMessage struct {
	SequenceNumber uint32
	PublishTime    int64 // OPC UA DateTime ticks
	NotificationData []*ExtensionObject
}

func (m *NotificationMessage) Encode(e *Encoder) error {
	e.WriteUint32(m.SequenceNumber)
	e.WriteInt64(m.PublishTime)
	e.WriteInt32(int32(len(m.NotificationData)))
	for _, n := range m.NotificationData {
		if err := n.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *NotificationMessage) Decode(d *Decoder) error {
	var err error
	if m.SequenceNumber, err = d.ReadUint32(); err != nil {
		return err
	}
	if m.PublishTime, err = d.ReadInt64(); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		m.NotificationData = make([]*ExtensionObject, n)
		for i := range m.NotificationData {
			eo := &ExtensionObject{}
			if err := eo.Decode(d); err != nil {
				return err
			}
			m.NotificationData[i] = eo
		}
	}
	return nil
}

// DataChangeFilter is MonitoringParameters.Filter's body for a data-change
// MonitoredItem: which DataValue fields must differ (Trigger) and, for
// numeric types, the deadband a new sample must clear before it is queued
// (spec.md §4.9).
type DataChangeFilter struct {
	Trigger       DataChangeTrigger
	DeadbandType  DeadbandType
	DeadbandValue float64
}

func (f *DataChangeFilter) Encode(e *Encoder) error {
	e.WriteUint32(uint32(f.Trigger))
	e.WriteUint32(uint32(f.DeadbandType))
	e.WriteFloat64(f.DeadbandValue)
	return nil
}

func (f *DataChangeFilter) Decode(d *Decoder) error {
	t, err := d.ReadUint32()
	if err != nil {
		return err
	}
	f.Trigger = DataChangeTrigger(t)
	db, err := d.ReadUint32()
	if err != nil {
		return err
	}
	f.DeadbandType = DeadbandType(db)
	f.DeadbandValue, err = d.ReadFloat64()
	return err
}

func (f *DataChangeFilter) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 722) }

func init() {
	for _, dt := range []*DataType{
		{BinaryEncodingID: NewNumericNodeID(0, 319), Kind: KindStruct, New: func() BinaryCodec { return &AnonymousIdentityToken{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 325), Kind: KindStruct, New: func() BinaryCodec { return &UserNameIdentityToken{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 722), Kind: KindStruct, New: func() BinaryCodec { return &DataChangeFilter{} }},
	} {
		RegisterDataType(dt)
	}
}
