// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"fmt"
	"time"

	"github.com/open62541/open62541-sub001/id"
	"github.com/open62541/open62541-sub001/ua"
)

// OperationLimits bounds how many array elements an array-shaped service
// (Read/Write/Browse/Call/...) will process before short-circuiting with
// BadTooManyOperations (spec.md §4.7, the `maxNodesPer*` config keys of
// spec.md §6).
type OperationLimits struct {
	MaxNodesPerRead                      int
	MaxNodesPerWrite                     int
	MaxNodesPerBrowse                    int
	MaxNodesPerMethodCall                int
	MaxNodesPerTranslateBrowsePathsToNodeIds int
	MaxMonitoredItemsPerCall             int
	MaxReferencesPerNode                 int
}

// DefaultOperationLimits mirrors open62541's own shipped defaults closely
// enough for a reference implementation; operators override via
// config.ServerConfig (spec.md §6).
func DefaultOperationLimits() OperationLimits {
	return OperationLimits{
		MaxNodesPerRead:                      1000,
		MaxNodesPerWrite:                      1000,
		MaxNodesPerBrowse:                     1000,
		MaxNodesPerMethodCall:                 1000,
		MaxNodesPerTranslateBrowsePathsToNodeIds: 1000,
		MaxMonitoredItemsPerCall:              1000,
		MaxReferencesPerNode:                  0, // 0 = unlimited
	}
}

// dispatchRead handles the Read service (spec.md §4.7). Operation-level
// failures populate the corresponding Results slot; the overall
// ServiceResult stays Good unless the request itself is malformed.
func (s *Server) dispatchRead(sess *Session, req *ua.ReadRequest) *ua.ReadResponse {
	resp := &ua.ReadResponse{ResponseHeader: *ua.NewResponseHeader(s.now(), &req.RequestHeader, ua.StatusOK)}
	if len(req.NodesToRead) > s.limits.MaxNodesPerRead {
		resp.ResponseHeader.ServiceResult = ua.StatusBadTooManyOperations
		return resp
	}
	resp.Results = make([]*ua.DataValue, len(req.NodesToRead))
	for i, rv := range req.NodesToRead {
		resp.Results[i] = s.readOne(sess, rv, req.TimestampsToReturn)
	}
	return resp
}

func (s *Server) readOne(sess *Session, rv *ua.ReadValueID, ts ua.TimestampsToReturn) *ua.DataValue {
	if !s.accessControl.AllowRead(sess.userRole, rv.NodeID, rv.AttributeID) {
		return ua.NewErrorDataValue(ua.StatusBadUserAccessDenied)
	}
	n, ok := s.addressSpace.Node(rv.NodeID)
	if !ok {
		return ua.NewErrorDataValue(ua.StatusBadNodeIDUnknown)
	}
	if rv.AttributeID != id.AttributeIDValue {
		return s.readNonValueAttribute(sess, n, rv.AttributeID)
	}
	dv := n.ReadValue()
	dv.Status = ua.StatusOK
	dv.HasStatus = true
	applyTimestampPolicy(&dv, ts, s.now())
	return &dv
}

func (s *Server) readNonValueAttribute(sess *Session, n *Node, attr uint32) *ua.DataValue {
	switch attr {
	case id.AttributeIDNodeID:
		v, _ := ua.NewVariant(n.NodeID)
		return ua.NewDataValue(v, s.now())
	case id.AttributeIDNodeClass:
		v, _ := ua.NewVariant(int32(n.NodeClass))
		return ua.NewDataValue(v, s.now())
	case id.AttributeIDBrowseName:
		v, _ := ua.NewVariant(n.BrowseName)
		return ua.NewDataValue(v, s.now())
	case id.AttributeIDDisplayName:
		v, _ := ua.NewVariant(n.DisplayName)
		return ua.NewDataValue(v, s.now())
	case id.AttributeIDAccessLevel:
		v, _ := ua.NewVariant(n.AccessLevel)
		return ua.NewDataValue(v, s.now())
	case id.AttributeIDUserAccessLevel:
		v, _ := ua.NewVariant(s.accessControl.GetUserAccessLevel(sess.userRole, n.NodeID))
		return ua.NewDataValue(v, s.now())
	case id.AttributeIDDataType:
		if n.DataType == nil {
			return ua.NewErrorDataValue(ua.StatusBadAttributeIDInvalid)
		}
		v, _ := ua.NewVariant(n.DataType)
		return ua.NewDataValue(v, s.now())
	default:
		return ua.NewErrorDataValue(ua.StatusBadAttributeIDInvalid)
	}
}

// applyTimestampPolicy clears the timestamp(s) ReadRequest didn't ask for,
// per TimestampsToReturn's Source/Server/Both/Neither options.
func applyTimestampPolicy(dv *ua.DataValue, ts ua.TimestampsToReturn, now time.Time) {
	switch ts {
	case ua.TimestampsToReturnSource:
		dv.HasServerTimestamp = false
	case ua.TimestampsToReturnServer:
		dv.HasSourceTimestamp = false
		dv.ServerTimestamp = now
		dv.HasServerTimestamp = true
	case ua.TimestampsToReturnBoth:
		dv.ServerTimestamp = now
		dv.HasServerTimestamp = true
	case ua.TimestampsToReturnNeither:
		dv.HasSourceTimestamp = false
		dv.HasServerTimestamp = false
	}
}

// dispatchWrite handles the Write service. Each WriteValue is applied
// synchronously through the node's value source; a writeCallback status of
// GoodCompletesAsynchronously is returned as that operation's result, and
// no Write operation is parked in AsyncOperations.
func (s *Server) dispatchWrite(sess *Session, channelID, requestID uint32, req *ua.WriteRequest) *ua.WriteResponse {
	resp := &ua.WriteResponse{ResponseHeader: *ua.NewResponseHeader(s.now(), &req.RequestHeader, ua.StatusOK)}
	if len(req.NodesToWrite) > s.limits.MaxNodesPerWrite {
		resp.ResponseHeader.ServiceResult = ua.StatusBadTooManyOperations
		return resp
	}
	resp.Results = make([]ua.StatusCode, len(req.NodesToWrite))
	for i, wv := range req.NodesToWrite {
		resp.Results[i] = s.writeOne(sess, wv)
	}
	return resp
}

func (s *Server) writeOne(sess *Session, wv *ua.WriteValue) ua.StatusCode {
	if !s.accessControl.AllowWrite(sess.userRole, wv.NodeID, wv.AttributeID) {
		return ua.StatusBadUserAccessDenied
	}
	n, ok := s.addressSpace.Node(wv.NodeID)
	if !ok {
		return ua.StatusBadNodeIDUnknown
	}
	if wv.AttributeID != id.AttributeIDValue {
		return ua.StatusBadNotWritable
	}
	if n.AccessLevel&0x02 == 0 && n.ValueSource == ValueSourceInternal {
		return ua.StatusBadNotWritable
	}
	status := n.WriteValue(wv.Value)
	if status.IsGood() {
		s.subscriptions.notifyDataChange(n.NodeID, n.ReadValue(), s.now())
	}
	return status
}

// dispatchBrowse handles the Browse service, applying the reference-type,
// direction, and node-class filters and stashing a ContinuationPoint when
// MaxReferencesPerNode truncates the result (spec.md §4.7).
func (s *Server) dispatchBrowse(sess *Session, req *ua.BrowseRequest) *ua.BrowseResponse {
	resp := &ua.BrowseResponse{ResponseHeader: *ua.NewResponseHeader(s.now(), &req.RequestHeader, ua.StatusOK)}
	if len(req.NodesToBrowse) > s.limits.MaxNodesPerBrowse {
		resp.ResponseHeader.ServiceResult = ua.StatusBadTooManyOperations
		return resp
	}
	resp.Results = make([]*ua.BrowseResult, len(req.NodesToBrowse))
	for i, bd := range req.NodesToBrowse {
		resp.Results[i] = s.browseOne(sess, bd, req.RequestedMaxReferencesPerNode)
	}
	return resp
}

func (s *Server) browseOne(sess *Session, bd *ua.BrowseDescription, maxRefs uint32) *ua.BrowseResult {
	if !s.accessControl.AllowBrowseNode(sess.userRole, bd.NodeID) {
		return &ua.BrowseResult{StatusCode: ua.StatusBadUserAccessDenied}
	}
	n, ok := s.addressSpace.Node(bd.NodeID)
	if !ok {
		return &ua.BrowseResult{StatusCode: ua.StatusBadNodeIDUnknown}
	}
	matches := filterReferences(n.References, bd)
	if bd.NodeClassMask != 0 {
		kept := matches[:0]
		for _, r := range matches {
			if tgt, ok := s.addressSpace.Node(r.Target); ok && uint32(tgt.NodeClass)&bd.NodeClassMask == 0 {
				continue
			}
			kept = append(kept, r)
		}
		matches = kept
	}
	limit := len(matches)
	if maxRefs > 0 && int(maxRefs) < limit {
		limit = int(maxRefs)
	}
	if s.limits.MaxReferencesPerNode > 0 && s.limits.MaxReferencesPerNode < limit {
		limit = s.limits.MaxReferencesPerNode
	}

	result := &ua.BrowseResult{StatusCode: ua.StatusOK}
	result.References = referencesToDescriptions(s.addressSpace, matches[:limit])
	if limit < len(matches) {
		token := newContinuationToken()
		s.addressSpace.StoreContinuation(token, &ContinuationPoint{NodeID: bd.NodeID, Remaining: matches[limit:]})
		result.ContinuationPoint = []byte(token)
	}
	return result
}

func filterReferences(refs []Reference, bd *ua.BrowseDescription) []Reference {
	var out []Reference
	for _, r := range refs {
		if bd.Direction != ua.BrowseDirectionBoth {
			wantForward := bd.Direction == ua.BrowseDirectionForward
			if r.IsForward != wantForward {
				continue
			}
		}
		if bd.ReferenceTypeID != nil && !bd.ReferenceTypeID.IsZero() && !bd.IncludeSubtypes {
			if !r.TypeID.Equal(bd.ReferenceTypeID) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

func referencesToDescriptions(as AddressSpace, refs []Reference) []*ua.ReferenceDescription {
	out := make([]*ua.ReferenceDescription, 0, len(refs))
	for _, r := range refs {
		rd := &ua.ReferenceDescription{
			ReferenceTypeID: r.TypeID,
			IsForward:       r.IsForward,
			NodeID:          r.Target,
		}
		if tgt, ok := as.Node(r.Target); ok {
			rd.BrowseName = tgt.BrowseName
			rd.DisplayName = tgt.DisplayName
			rd.NodeClass = tgt.NodeClass
		}
		out = append(out, rd)
	}
	return out
}

var continuationCounter uint64

// newContinuationToken mints a fresh Browse continuation token. Dispatch
// runs single-threaded under the server mutex (spec.md §5), so a plain
// counter needs no atomic.
func newContinuationToken() string {
	continuationCounter++
	return fmt.Sprintf("cp-%d", continuationCounter)
}

// dispatchBrowseNext resumes a Browse result set from a previously stored
// ContinuationPoint (spec.md §4.7).
func (s *Server) dispatchBrowseNext(sess *Session, req *ua.BrowseNextRequest) *ua.BrowseNextResponse {
	resp := &ua.BrowseNextResponse{ResponseHeader: *ua.NewResponseHeader(s.now(), &req.RequestHeader, ua.StatusOK)}
	resp.Results = make([]*ua.BrowseResult, len(req.ContinuationPoints))
	for i, cpBytes := range req.ContinuationPoints {
		if req.ReleaseContinuationPoints {
			s.addressSpace.TakeContinuation(string(cpBytes))
			resp.Results[i] = &ua.BrowseResult{StatusCode: ua.StatusOK}
			continue
		}
		cp, ok := s.addressSpace.TakeContinuation(string(cpBytes))
		if !ok {
			resp.Results[i] = &ua.BrowseResult{StatusCode: ua.StatusBadNodeIDUnknown}
			continue
		}
		limit := len(cp.Remaining)
		if s.limits.MaxReferencesPerNode > 0 && s.limits.MaxReferencesPerNode < limit {
			limit = s.limits.MaxReferencesPerNode
		}
		result := &ua.BrowseResult{StatusCode: ua.StatusOK}
		result.References = referencesToDescriptions(s.addressSpace, cp.Remaining[:limit])
		if limit < len(cp.Remaining) {
			token := newContinuationToken()
			s.addressSpace.StoreContinuation(token, &ContinuationPoint{NodeID: cp.NodeID, Remaining: cp.Remaining[limit:]})
			result.ContinuationPoint = []byte(token)
		}
		resp.Results[i] = result
	}
	return resp
}

// dispatchCall handles the Call service, including the
// GoodCompletesAsynchronously handoff to AsyncOperations (spec.md §4.7,
// §4.8).
func (s *Server) dispatchCall(sess *Session, channelID, requestID uint32, req *ua.CallRequest) (*ua.CallResponse, bool) {
	resp := &ua.CallResponse{ResponseHeader: *ua.NewResponseHeader(s.now(), &req.RequestHeader, ua.StatusOK)}
	if len(req.MethodsToCall) > s.limits.MaxNodesPerMethodCall {
		resp.ResponseHeader.ServiceResult = ua.StatusBadTooManyOperations
		return resp, true
	}
	resp.Results = make([]*ua.CallMethodResult, len(req.MethodsToCall))
	anyAsync := false
	for i, mr := range req.MethodsToCall {
		result, async := s.callOne(sess, channelID, requestID, resp, i, mr)
		resp.Results[i] = result
		if async {
			anyAsync = true
		}
	}
	return resp, !anyAsync
}

// callOne invokes a single CallMethodRequest. When the handler hands off
// asynchronously, it parks an operation that, once resolved, overwrites
// resp.Results[idx] in place and sends the now-complete resp over
// channelID's SecureChannel (spec.md §4.8 steps 2-3) — a fresh response
// outside the synchronous request/response cycle, correlated by the
// original RequestID.
func (s *Server) callOne(sess *Session, channelID, requestID uint32, resp *ua.CallResponse, idx int, mr *ua.CallMethodRequest) (*ua.CallMethodResult, bool) {
	if !s.accessControl.AllowCall(sess.userRole, mr.MethodID) {
		return &ua.CallMethodResult{StatusCode: ua.StatusBadUserAccessDenied}, false
	}
	n, ok := s.addressSpace.Node(mr.MethodID)
	if !ok || n.MethodHandler == nil {
		return &ua.CallMethodResult{StatusCode: ua.StatusBadNodeIDUnknown}, false
	}
	if !n.Executable {
		return &ua.CallMethodResult{StatusCode: ua.StatusBadUserAccessDenied}, false
	}
	outputs, status, async := n.MethodHandler(mr.InputArguments)
	if status == ua.StatusGoodCompletesAsynchronously && async != nil {
		op := &ParkedOperation{
			ChannelID:     channelID,
			RequestID:     requestID,
			SessionHandle: sess.handle,
			Deadline:      s.now().Add(s.asyncOperationTimeout),
			OnCancel: func(cancelStatus ua.StatusCode) {
				if async.Cancel != nil {
					async.Cancel()
				}
				resp.Results[idx] = &ua.CallMethodResult{StatusCode: cancelStatus}
				s.sendDelayedResponse(channelID, resp)
			},
			OnResolve: func(result AsyncResult) {
				outs, _ := result.Status.Value.([]*ua.Variant)
				resp.Results[idx] = &ua.CallMethodResult{StatusCode: result.Status.Status, OutputArguments: outs}
				s.sendDelayedResponse(channelID, resp)
			},
		}
		s.asyncOps.Park(op)
		return &ua.CallMethodResult{StatusCode: status}, true
	}
	return &ua.CallMethodResult{StatusCode: status, OutputArguments: outputs}, false
}

// sendDelayedResponse transmits resp over channelID's SecureChannel, used
// once a parked operation resolves outside its original request/response
// cycle. A missing channel (closed meanwhile) is a silent no-op, matching
// the other "channel already gone" cases in this file.
func (s *Server) sendDelayedResponse(channelID uint32, resp ua.Response) {
	sc, ok := s.channels[channelID]
	if !ok {
		return
	}
	if err := sc.SendResponse(resp); err != nil {
		s.cfg.Logger.Printf("server: send delayed response: %v", err)
	}
}

// dispatchTranslateBrowsePaths resolves a RelativePath starting at
// StartingNode to the NodeIds it names (spec.md §4.7).
func (s *Server) dispatchTranslateBrowsePaths(sess *Session, req *ua.TranslateBrowsePathsToNodeIdsRequest) *ua.TranslateBrowsePathsToNodeIdsResponse {
	resp := &ua.TranslateBrowsePathsToNodeIdsResponse{ResponseHeader: *ua.NewResponseHeader(s.now(), &req.RequestHeader, ua.StatusOK)}
	if len(req.BrowsePaths) > s.limits.MaxNodesPerTranslateBrowsePathsToNodeIds {
		resp.ResponseHeader.ServiceResult = ua.StatusBadTooManyOperations
		return resp
	}
	resp.Results = make([]*ua.BrowsePathResult, len(req.BrowsePaths))
	for i, bp := range req.BrowsePaths {
		resp.Results[i] = s.translateOne(bp)
	}
	return resp
}

func (s *Server) translateOne(bp *ua.BrowsePath) *ua.BrowsePathResult {
	cur := bp.StartingNode
	for _, el := range bp.RelativePath {
		n, ok := s.addressSpace.Node(cur)
		if !ok {
			return &ua.BrowsePathResult{StatusCode: ua.StatusBadNodeIDUnknown}
		}
		var next *ua.NodeID
		for _, r := range n.References {
			if !r.IsForward {
				continue
			}
			if el.ReferenceTypeID != nil && !el.ReferenceTypeID.IsZero() && !r.TypeID.Equal(el.ReferenceTypeID) {
				continue
			}
			tgt, ok := s.addressSpace.Node(r.Target)
			if !ok || tgt.BrowseName.Name != el.TargetName.Name {
				continue
			}
			next = r.Target
			break
		}
		if next == nil {
			return &ua.BrowsePathResult{StatusCode: ua.StatusBadNodeIDUnknown}
		}
		cur = next
	}
	return &ua.BrowsePathResult{
		StatusCode: ua.StatusOK,
		Targets:    []*ua.BrowsePathTarget{{TargetID: cur, RemainingPathIndex: 0xFFFFFFFF}},
	}
}
