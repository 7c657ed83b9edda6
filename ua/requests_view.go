// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "time"

// BrowseRequest walks references from one or more starting nodes
// (spec.md §4.7). A BrowseResult with a non-empty ContinuationPoint means
// the server truncated the reference list at its configured max and the
// client must call BrowseNext to continue.
type BrowseRequest struct {
	RequestHeader         RequestHeader
	View                  *NodeID
	RequestedMaxReferencesPerNode uint32
	NodesToBrowse         []*BrowseDescription
}

func (r *BrowseRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	v := r.View
	if v == nil {
		v = NewTwoByteNodeID(0)
	}
	if err := v.Encode(e); err != nil {
		return err
	}
	e.WriteDateTime(time.Time{}) // ViewDescription.Timestamp, unused
	e.WriteUint32(0)           // ViewDescription.ViewVersion, unused
	e.WriteUint32(r.RequestedMaxReferencesPerNode)
	e.WriteInt32(int32(len(r.NodesToBrowse)))
	for _, n := range r.NodesToBrowse {
		if err := n.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *BrowseRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	r.View = &NodeID{}
	if err := r.View.Decode(d); err != nil {
		return err
	}
	if _, err := d.ReadDateTime(); err != nil {
		return err
	}
	if _, err := d.ReadUint32(); err != nil {
		return err
	}
	var err error
	if r.RequestedMaxReferencesPerNode, err = d.ReadUint32(); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.NodesToBrowse = make([]*BrowseDescription, n)
		for i := range r.NodesToBrowse {
			b := &BrowseDescription{}
			if err := b.Decode(d); err != nil {
				return err
			}
			r.NodesToBrowse[i] = b
		}
	}
	return nil
}

func (r *BrowseRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 527) }

// BrowseResponse carries one BrowseResult per NodesToBrowse entry.
type BrowseResponse struct {
	ResponseHeader ResponseHeader
	Results        []*BrowseResult
}

func (r *BrowseResponse) Encode(e *Encoder) error {
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

func (r *BrowseResponse) Decode(d *Decoder) error {
	if err := r.ResponseHeader.Decode(d); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.Results = make([]*BrowseResult, n)
		for i := range r.Results {
			res := &BrowseResult{}
			if err := res.Decode(d); err != nil {
				return err
			}
			r.Results[i] = res
		}
	}
	_, _, err = d.readArrayLen()
	return err
}

func (r *BrowseResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 530) }

// BrowseNextRequest retrieves further references (or releases the
// continuation points without reading more) for a prior Browse call.
type BrowseNextRequest struct {
	RequestHeader       RequestHeader
	ReleaseContinuationPoints bool
	ContinuationPoints  [][]byte
}

func (r *BrowseNextRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	e.WriteBool(r.ReleaseContinuationPoints)
	e.WriteInt32(int32(len(r.ContinuationPoints)))
	for _, cp := range r.ContinuationPoints {
		e.WriteByteString(cp)
	}
	return nil
}

func (r *BrowseNextRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	var err error
	if r.ReleaseContinuationPoints, err = d.ReadBool(); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.ContinuationPoints = make([][]byte, n)
		for i := range r.ContinuationPoints {
			if r.ContinuationPoints[i], err = d.ReadByteString(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *BrowseNextRequest) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 533) }

// BrowseNextResponse mirrors BrowseResponse's shape.
type BrowseNextResponse struct {
	ResponseHeader ResponseHeader
	Results        []*BrowseResult
}

func (r *BrowseNextResponse) Encode(e *Encoder) error {
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

func (r *BrowseNextResponse) Decode(d *Decoder) error {
	if err := r.ResponseHeader.Decode(d); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.Results = make([]*BrowseResult, n)
		for i := range r.Results {
			res := &BrowseResult{}
			if err := res.Decode(d); err != nil {
				return err
			}
			r.Results[i] = res
		}
	}
	_, _, err = d.readArrayLen()
	return err
}

func (r *BrowseNextResponse) BinaryEncodingID() *NodeID { return NewNumericNodeID(0, 536) }

// RelativePathElement names one hop of a BrowsePath (spec.md §4.7).
type RelativePathElement struct {
	ReferenceTypeID *NodeID
	IsInverse       bool
	IncludeSubtypes bool
	TargetName      QualifiedName
}

func (e2 *RelativePathElement) Encode(e *Encoder) error {
	if err := e2.ReferenceTypeID.Encode(e); err != nil {
		return err
	}
	e.WriteBool(e2.IsInverse)
	e.WriteBool(e2.IncludeSubtypes)
	return e2.TargetName.Encode(e)
}

func (e2 *RelativePathElement) Decode(d *Decoder) error {
	e2.ReferenceTypeID = &NodeID{}
	if err := e2.ReferenceTypeID.Decode(d); err != nil {
		return err
	}
	var err error
	if e2.IsInverse, err = d.ReadBool(); err != nil {
		return err
	}
	if e2.IncludeSubtypes, err = d.ReadBool(); err != nil {
		return err
	}
	return e2.TargetName.Decode(d)
}

// BrowsePath starts at StartingNode and follows RelativePath's hops.
type BrowsePath struct {
	StartingNode *NodeID
	RelativePath []*RelativePathElement
}

func (p *BrowsePath) Encode(e *Encoder) error {
	if err := p.StartingNode.Encode(e); err != nil {
		return err
	}
	e.WriteInt32(int32(len(p.RelativePath)))
	for _, el := range p.RelativePath {
		if err := el.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (p *BrowsePath) Decode(d *Decoder) error {
	p.StartingNode = &NodeID{}
	if err := p.StartingNode.Decode(d); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		p.RelativePath = make([]*RelativePathElement, n)
		for i := range p.RelativePath {
			el := &RelativePathElement{}
			if err := el.Decode(d); err != nil {
				return err
			}
			p.RelativePath[i] = el
		}
	}
	return nil
}

// BrowsePathTarget is one resolved endpoint of a BrowsePath.
type BrowsePathTarget struct {
	TargetID         *NodeID
	RemainingPathIndex uint32
}

func (t *BrowsePathTarget) Encode(e *Encoder) error {
	if err := t.TargetID.Encode(e); err != nil {
		return err
	}
	e.WriteUint32(0) // expanded nodeid server index, unused
	e.WriteUint32(t.RemainingPathIndex)
	return nil
}

func (t *BrowsePathTarget) Decode(d *Decoder) error {
	t.TargetID = &NodeID{}
	if err := t.TargetID.Decode(d); err != nil {
		return err
	}
	if _, err := d.ReadUint32(); err != nil {
		return err
	}
	var err error
	t.RemainingPathIndex, err = d.ReadUint32()
	return err
}

// BrowsePathResult is one BrowsePath's resolved targets.
type BrowsePathResult struct {
	StatusCode StatusCode
	Targets    []*BrowsePathTarget
}

func (r *BrowsePathResult) Encode(e *Encoder) error {
	e.WriteUint32(uint32(r.StatusCode))
	e.WriteInt32(int32(len(r.Targets)))
	for _, t := range r.Targets {
		if err := t.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *BrowsePathResult) Decode(d *Decoder) error {
	sc, err := d.ReadUint32()
	if err != nil {
		return err
	}
	r.StatusCode = StatusCode(sc)
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.Targets = make([]*BrowsePathTarget, n)
		for i := range r.Targets {
			t := &BrowsePathTarget{}
			if err := t.Decode(d); err != nil {
				return err
			}
			r.Targets[i] = t
		}
	}
	return nil
}

// TranslateBrowsePathsToNodeIdsRequest resolves symbolic browse paths
// (e.g. a well-known "Objects/MyDevice/Temperature" path) to NodeIds.
type TranslateBrowsePathsToNodeIdsRequest struct {
	RequestHeader RequestHeader
	BrowsePaths   []*BrowsePath
}

func (r *TranslateBrowsePathsToNodeIdsRequest) Encode(e *Encoder) error {
	if err := r.RequestHeader.Encode(e); err != nil {
		return err
	}
	e.WriteInt32(int32(len(r.BrowsePaths)))
	for _, p := range r.BrowsePaths {
		if err := p.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *TranslateBrowsePathsToNodeIdsRequest) Decode(d *Decoder) error {
	if err := r.RequestHeader.Decode(d); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.BrowsePaths = make([]*BrowsePath, n)
		for i := range r.BrowsePaths {
			p := &BrowsePath{}
			if err := p.Decode(d); err != nil {
				return err
			}
			r.BrowsePaths[i] = p
		}
	}
	return nil
}

func (r *TranslateBrowsePathsToNodeIdsRequest) BinaryEncodingID() *NodeID {
	return NewNumericNodeID(0, 554)
}

// TranslateBrowsePathsToNodeIdsResponse carries one BrowsePathResult per
// requested path.
type TranslateBrowsePathsToNodeIdsResponse struct {
	ResponseHeader ResponseHeader
	Results        []*BrowsePathResult
}

func (r *TranslateBrowsePathsToNodeIdsResponse) Encode(e *Encoder) error {
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

func (r *TranslateBrowsePathsToNodeIdsResponse) Decode(d *Decoder) error {
	if err := r.ResponseHeader.Decode(d); err != nil {
		return err
	}
	n, ok, err := d.readArrayLen()
	if err != nil {
		return err
	}
	if ok {
		r.Results = make([]*BrowsePathResult, n)
		for i := range r.Results {
			res := &BrowsePathResult{}
			if err := res.Decode(d); err != nil {
				return err
			}
			r.Results[i] = res
		}
	}
	_, _, err = d.readArrayLen()
	return err
}

func (r *TranslateBrowsePathsToNodeIdsResponse) BinaryEncodingID() *NodeID {
	return NewNumericNodeID(0, 557)
}

func init() {
	for _, dt := range []*DataType{
		{BinaryEncodingID: NewNumericNodeID(0, 527), Kind: KindStruct, New: func() BinaryCodec { return &BrowseRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 530), Kind: KindStruct, New: func() BinaryCodec { return &BrowseResponse{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 533), Kind: KindStruct, New: func() BinaryCodec { return &BrowseNextRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 536), Kind: KindStruct, New: func() BinaryCodec { return &BrowseNextResponse{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 554), Kind: KindStruct, New: func() BinaryCodec { return &TranslateBrowsePathsToNodeIdsRequest{} }},
		{BinaryEncodingID: NewNumericNodeID(0, 557), Kind: KindStruct, New: func() BinaryCodec { return &TranslateBrowsePathsToNodeIdsResponse{} }},
	} {
		RegisterDataType(dt)
	}
}
