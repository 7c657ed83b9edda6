// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"github.com/open62541/open62541-sub001/errors"
	"github.com/open62541/open62541-sub001/ua"
)

// uacp message type codes this package owns (HEL/ACK/ERR belong to uacp).
const (
	MessageTypeOpen    = "OPN"
	MessageTypeMessage = "MSG"
	MessageTypeClose   = "CLO"
)

// uacp chunk type codes (Part 6 §7.1 Table 8): 'F' terminates a message,
// 'C' continues it, 'A' aborts a partially-sent one.
const (
	ChunkTypeFinal      byte = 'F'
	ChunkTypeIntermediate byte = 'C'
	ChunkTypeAbort      byte = 'A'
)

// SequenceHeader precedes the body of every OPN/MSG/CLO chunk, after the
// security header (Part 6 §6.7.2). SequenceNumber lets the receiver detect
// drops/reordering and drives the wraparound rule in spec.md §4.4; RequestID
// correlates chunks belonging to the same chunked message and matches a
// response to its request.
type SequenceHeader struct {
	SequenceNumber uint32
	RequestID      uint32
}

func (h *SequenceHeader) Encode(e *ua.Encoder) error {
	e.WriteUint32(h.SequenceNumber)
	e.WriteUint32(h.RequestID)
	return nil
}

func (h *SequenceHeader) Decode(d *ua.Decoder) error {
	var err error
	if h.SequenceNumber, err = d.ReadUint32(); err != nil {
		return err
	}
	if h.RequestID, err = d.ReadUint32(); err != nil {
		return err
	}
	return nil
}

// maxSequenceNumber is the threshold at which the next sequence number
// wraps back to 1 rather than overflowing uint32 (spec.md §4.4's exact
// wraparound rule, pinned ahead of the generic "near uint32 max" language
// the base standard uses).
const maxSequenceNumber = 4294966271

// nextSequenceNumber advances cur by one chunk, wrapping per spec.md §4.4.
func nextSequenceNumber(cur uint32) uint32 {
	if cur >= maxSequenceNumber {
		return 1
	}
	return cur + 1
}

// AsymmetricSecurityHeader carries the policy URI and certificate material
// needed to verify/decrypt an OPN chunk before any symmetric token exists
// (Part 6 §6.7.2).
type AsymmetricSecurityHeader struct {
	SecurityPolicyURI              string
	SenderCertificate              []byte
	ReceiverCertificateThumbprint  []byte
}

func (h *AsymmetricSecurityHeader) Encode(e *ua.Encoder) error {
	e.WriteString(h.SecurityPolicyURI)
	e.WriteByteString(h.SenderCertificate)
	e.WriteByteString(h.ReceiverCertificateThumbprint)
	return nil
}

func (h *AsymmetricSecurityHeader) Decode(d *ua.Decoder) error {
	var err error
	if h.SecurityPolicyURI, err = d.ReadString(); err != nil {
		return err
	}
	if h.SenderCertificate, err = d.ReadByteString(); err != nil {
		return err
	}
	if h.ReceiverCertificateThumbprint, err = d.ReadByteString(); err != nil {
		return err
	}
	return nil
}

// SymmetricSecurityHeader names which ChannelSecurityToken secured an
// MSG/CLO chunk. ReceiveLoop does not check it against the channel's
// current or previous token.
type SymmetricSecurityHeader struct {
	TokenID uint32
}

func (h *SymmetricSecurityHeader) Encode(e *ua.Encoder) error {
	e.WriteUint32(h.TokenID)
	return nil
}

func (h *SymmetricSecurityHeader) Decode(d *ua.Decoder) error {
	var err error
	h.TokenID, err = d.ReadUint32()
	return err
}

// rawChunk is one chunk's payload after uacp framing: the fixed
// SecureChannelId plus whichever security header and sequence header
// apply, followed by the (still possibly encrypted) message body.
type rawChunk struct {
	secureChannelID uint32
	asym            *AsymmetricSecurityHeader
	sym             *SymmetricSecurityHeader
	seq             SequenceHeader
	body            []byte
}

func decodeRawChunk(msgType string, body []byte) (*rawChunk, error) {
	d := ua.NewDecoder(body)
	chID, err := d.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "uasc: decode secure channel id")
	}
	rc := &rawChunk{secureChannelID: chID}
	switch msgType {
	case MessageTypeOpen:
		rc.asym = &AsymmetricSecurityHeader{}
		if err := rc.asym.Decode(d); err != nil {
			return nil, errors.Wrap(err, "uasc: decode asymmetric security header")
		}
	case MessageTypeMessage, MessageTypeClose:
		rc.sym = &SymmetricSecurityHeader{}
		if err := rc.sym.Decode(d); err != nil {
			return nil, errors.Wrap(err, "uasc: decode symmetric security header")
		}
	default:
		return nil, errors.Errorf("uasc: unexpected message type %q", msgType)
	}
	if err := rc.seq.Decode(d); err != nil {
		return nil, errors.Wrap(err, "uasc: decode sequence header")
	}
	rc.body = body[d.Pos():]
	return rc, nil
}

// mergeChunks concatenates the bodies of a complete chunk sequence
// (everything after each chunk's sequence header) into the full message
// payload, grounded on the vendored uasc.mergeChunks: OPC UA splits a
// logical message into chunks purely by byte count, with no inner framing
// to strip, so reassembly is a straight concatenation once headers are
// peeled off.
func mergeChunks(bodies [][]byte) []byte {
	n := 0
	for _, b := range bodies {
		n += len(b)
	}
	out := make([]byte, 0, n)
	for _, b := range bodies {
		out = append(out, b...)
	}
	return out
}
