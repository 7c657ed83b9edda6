// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "time"

// DiagnosticInfo carries optional extended failure detail for a single
// operation result (spec.md §4.7). Fields are nil/zero unless the
// corresponding has-flag bit is set; this stack returns DiagnosticInfo only
// when a caller's RequestHeader.ReturnDiagnostics asked for it.
type DiagnosticInfo struct {
	SymbolicID          int32
	NamespaceURI        int32
	LocalizedText       int32
	Locale              int32
	AdditionalInfo      string
	InnerStatusCode     StatusCode
	InnerDiagnosticInfo *DiagnosticInfo

	HasSymbolicID      bool
	HasNamespaceURI    bool
	HasLocalizedText   bool
	HasLocale          bool
	HasAdditionalInfo  bool
	HasInnerStatusCode bool
	HasInnerDiagnostic bool
}

const (
	diagSymbolicID      = 0x01
	diagNamespaceURI    = 0x02
	diagLocalizedText   = 0x04
	diagLocale          = 0x08
	diagAdditionalInfo  = 0x10
	diagInnerStatusCode = 0x20
	diagInnerDiagnostic = 0x40
)

// Encode writes the DiagnosticInfo's has-flags mask and present fields.
func (info *DiagnosticInfo) Encode(e *Encoder) error {
	if info == nil {
		e.WriteByte(0)
		return nil
	}
	var mask byte
	if info.HasSymbolicID {
		mask |= diagSymbolicID
	}
	if info.HasNamespaceURI {
		mask |= diagNamespaceURI
	}
	if info.HasLocalizedText {
		mask |= diagLocalizedText
	}
	if info.HasLocale {
		mask |= diagLocale
	}
	if info.HasAdditionalInfo {
		mask |= diagAdditionalInfo
	}
	if info.HasInnerStatusCode {
		mask |= diagInnerStatusCode
	}
	if info.HasInnerDiagnostic && info.InnerDiagnosticInfo != nil {
		mask |= diagInnerDiagnostic
	}
	e.WriteByte(mask)
	if mask&diagSymbolicID != 0 {
		e.WriteInt32(info.SymbolicID)
	}
	if mask&diagNamespaceURI != 0 {
		e.WriteInt32(info.NamespaceURI)
	}
	if mask&diagLocalizedText != 0 {
		e.WriteInt32(info.LocalizedText)
	}
	if mask&diagLocale != 0 {
		e.WriteInt32(info.Locale)
	}
	if mask&diagAdditionalInfo != 0 {
		e.WriteString(info.AdditionalInfo)
	}
	if mask&diagInnerStatusCode != 0 {
		e.WriteUint32(uint32(info.InnerStatusCode))
	}
	if mask&diagInnerDiagnostic != 0 {
		return info.InnerDiagnosticInfo.Encode(e)
	}
	return nil
}

// Decode reads a DiagnosticInfo back from its wire form.
func (info *DiagnosticInfo) Decode(d *Decoder) error {
	mask, err := d.ReadByte()
	if err != nil {
		return err
	}
	*info = DiagnosticInfo{}
	if mask == 0 {
		return nil
	}
	if mask&diagSymbolicID != 0 {
		if info.SymbolicID, err = d.ReadInt32(); err != nil {
			return err
		}
		info.HasSymbolicID = true
	}
	if mask&diagNamespaceURI != 0 {
		if info.NamespaceURI, err = d.ReadInt32(); err != nil {
			return err
		}
		info.HasNamespaceURI = true
	}
	if mask&diagLocalizedText != 0 {
		if info.LocalizedText, err = d.ReadInt32(); err != nil {
			return err
		}
		info.HasLocalizedText = true
	}
	if mask&diagLocale != 0 {
		if info.Locale, err = d.ReadInt32(); err != nil {
			return err
		}
		info.HasLocale = true
	}
	if mask&diagAdditionalInfo != 0 {
		if info.AdditionalInfo, err = d.ReadString(); err != nil {
			return err
		}
		info.HasAdditionalInfo = true
	}
	if mask&diagInnerStatusCode != 0 {
		sc, err := d.ReadUint32()
		if err != nil {
			return err
		}
		info.InnerStatusCode, info.HasInnerStatusCode = StatusCode(sc), true
	}
	if mask&diagInnerDiagnostic != 0 {
		info.InnerDiagnosticInfo = &DiagnosticInfo{}
		if err := info.InnerDiagnosticInfo.Decode(d); err != nil {
			return err
		}
		info.HasInnerDiagnostic = true
	}
	return nil
}

// ExtensionObjectArray is a null-or-present array of ExtensionObjects, the
// shape AdditionalHeader and auditEntryId-adjacent fields use.
type ExtensionObjectArray []*ExtensionObject

// RequestHeader precedes every service request on a SecureChannel
// (spec.md §4.7): it is what Services dispatch keys session/auth checks on
// before it even looks at the rest of the message.
type RequestHeader struct {
	AuthenticationToken *NodeID
	Timestamp           time.Time
	RequestHandle       uint32
	ReturnDiagnostics   uint32
	AuditEntryID        string
	TimeoutHint         uint32
	AdditionalHeader    *ExtensionObject
}

// Encode writes the RequestHeader.
func (h *RequestHeader) Encode(e *Encoder) error {
	tok := h.AuthenticationToken
	if tok == nil {
		tok = NewTwoByteNodeID(0)
	}
	if err := tok.Encode(e); err != nil {
		return err
	}
	e.WriteDateTime(h.Timestamp)
	e.WriteUint32(h.RequestHandle)
	e.WriteUint32(h.ReturnDiagnostics)
	e.WriteString(h.AuditEntryID)
	e.WriteUint32(h.TimeoutHint)
	add := h.AdditionalHeader
	if add == nil {
		add = NewExtensionObject(nil)
	}
	return add.Encode(e)
}

// Decode reads a RequestHeader back from its wire form.
func (h *RequestHeader) Decode(d *Decoder) error {
	h.AuthenticationToken = &NodeID{}
	if err := h.AuthenticationToken.Decode(d); err != nil {
		return err
	}
	var err error
	if h.Timestamp, err = d.ReadDateTime(); err != nil {
		return err
	}
	if h.RequestHandle, err = d.ReadUint32(); err != nil {
		return err
	}
	if h.ReturnDiagnostics, err = d.ReadUint32(); err != nil {
		return err
	}
	if h.AuditEntryID, err = d.ReadString(); err != nil {
		return err
	}
	if h.TimeoutHint, err = d.ReadUint32(); err != nil {
		return err
	}
	h.AdditionalHeader = &ExtensionObject{}
	return h.AdditionalHeader.Decode(d)
}

// ResponseHeader precedes every service response; Services dispatch fills
// it in from the matching RequestHeader so a ServiceFault and a normal
// response are indistinguishable until the caller inspects ServiceResult
// (spec.md §4.7).
type ResponseHeader struct {
	Timestamp          time.Time
	RequestHandle      uint32
	ServiceResult      StatusCode
	ServiceDiagnostics DiagnosticInfo
	StringTable        []string
	AdditionalHeader   *ExtensionObject
}

// Encode writes the ResponseHeader.
func (h *ResponseHeader) Encode(e *Encoder) error {
	e.WriteDateTime(h.Timestamp)
	e.WriteUint32(h.RequestHandle)
	e.WriteUint32(uint32(h.ServiceResult))
	if err := h.ServiceDiagnostics.Encode(e); err != nil {
		return err
	}
	e.WriteInt32(int32(len(h.StringTable)))
	for _, s := range h.StringTable {
		e.WriteString(s)
	}
	add := h.AdditionalHeader
	if add == nil {
		add = NewExtensionObject(nil)
	}
	return add.Encode(e)
}

// Decode reads a ResponseHeader back from its wire form.
func (h *ResponseHeader) Decode(d *Decoder) error {
	var err error
	if h.Timestamp, err = d.ReadDateTime(); err != nil {
		return err
	}
	if h.RequestHandle, err = d.ReadUint32(); err != nil {
		return err
	}
	sc, err := d.ReadUint32()
	if err != nil {
		return err
	}
	h.ServiceResult = StatusCode(sc)
	if err := h.ServiceDiagnostics.Decode(d); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		h.StringTable = make([]string, n)
		for i := range h.StringTable {
			if h.StringTable[i], err = d.ReadString(); err != nil {
				return err
			}
		}
	}
	h.AdditionalHeader = &ExtensionObject{}
	return h.AdditionalHeader.Decode(d)
}

// NewResponseHeader builds a ResponseHeader echoing req's handle with the
// given service result, the common case for every service handler in
// server/services.go.
func NewResponseHeader(now time.Time, req *RequestHeader, result StatusCode) *ResponseHeader {
	h := &ResponseHeader{Timestamp: now, ServiceResult: result}
	if req != nil {
		h.RequestHandle = req.RequestHandle
	}
	return h
}
