// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"sync"
	"time"

	"github.com/open62541/open62541-sub001/id"
	"github.com/open62541/open62541-sub001/ua"
)

// Reference is one edge in the address space graph: typeID names the
// ReferenceType, target the node on the other end, isForward whether this
// edge is stored as an outgoing (true) or incoming (false) reference from
// the owning node's point of view.
type Reference struct {
	TypeID    *ua.NodeID
	Target    *ua.NodeID
	IsForward bool
}

// ValueSourceKind selects how a VariableNode's Value attribute is produced,
// reproducing open62541's three write paths named in spec.md §4.7:
// an internal copy (ValueSourceInternal, the default — Read/Write touch
// Value directly), an external double-pointer (ValueSourceExternal, a
// pointer the nodestore dereferences fresh on every access, e.g. a
// memory-mapped sensor register), and a callback pair
// (ValueSourceCallback, for values computed or forwarded on demand).
type ValueSourceKind int

const (
	ValueSourceInternal ValueSourceKind = iota
	ValueSourceExternal
	ValueSourceCallback
)

// Node is one address-space entry. The fields relevant to a given
// NodeClass are populated; others are zero. This is a single concrete
// representation rather than a NodeClass-specific type hierarchy, matching
// the spec's framing of the address space as "a supporting collaborator"
// whose internal data structure is explicitly out of this spec's scope —
// this stack's in-memory Nodestore is a minimal reference implementation
// of the AddressSpace interface below, not a prescription for a
// full-featured one.
type Node struct {
	NodeID       *ua.NodeID
	NodeClass    ua.NodeClass
	BrowseName   ua.QualifiedName
	DisplayName  ua.LocalizedText
	Description  ua.LocalizedText
	References   []Reference

	// VariableNode fields.
	DataType        *ua.NodeID
	ValueRank       int32
	ArrayDimensions []uint32
	AccessLevel     byte
	MinSamplingMS   float64

	ValueSource  ValueSourceKind
	value        ua.DataValue
	externalPtr  *ua.DataValue // ValueSourceExternal: dereferenced fresh on every access
	readCallback func() ua.DataValue
	writeCallback func(ua.DataValue) ua.StatusCode

	// MethodNode fields.
	Executable bool
	MethodHandler MethodHandler

	mu sync.Mutex
}

// MethodHandler implements a MethodNode's Call behavior (spec.md §4.7). It
// may return ua.StatusGoodCompletesAsynchronously along with a non-nil
// *AsyncCallHandoff, and the Call service handler then parks the operation
// (spec.md §4.8); handlers that complete synchronously return their
// outputs directly and a nil handoff.
type MethodHandler func(inputs []*ua.Variant) (outputs []*ua.Variant, status ua.StatusCode, async *AsyncCallHandoff)

// AsyncCallHandoff is what a MethodHandler returns alongside
// StatusGoodCompletesAsynchronously. Its Cancel func, if set, is invoked
// when the parked operation is cancelled (deadline, session close or
// channel close) before it resolves (spec.md §4.8).
type AsyncCallHandoff struct {
	Cancel func()
}

// ReadValue returns the node's current Value, dereferencing an external
// pointer or invoking a read callback as configured (spec.md §4.7).
func (n *Node) ReadValue() ua.DataValue {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch n.ValueSource {
	case ValueSourceExternal:
		if n.externalPtr != nil {
			return *n.externalPtr
		}
		return ua.DataValue{}
	case ValueSourceCallback:
		if n.readCallback != nil {
			return n.readCallback()
		}
		return ua.DataValue{}
	default:
		return n.value
	}
}

// WriteValue sets the node's current Value through whichever source path
// is configured, returning the resulting status (spec.md §4.7's three
// value-source paths).
func (n *Node) WriteValue(dv ua.DataValue) ua.StatusCode {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch n.ValueSource {
	case ValueSourceExternal:
		if n.externalPtr == nil {
			return ua.StatusBadNotWritable
		}
		*n.externalPtr = dv
		return ua.StatusOK
	case ValueSourceCallback:
		if n.writeCallback == nil {
			return ua.StatusBadNotWritable
		}
		return n.writeCallback(dv)
	default:
		n.value = dv
		return ua.StatusOK
	}
}

// SetExternalSource switches the node to ValueSourceExternal, pointing at
// ptr; the nodestore dereferences ptr fresh on every Read/Write rather
// than copying, the "external double-pointer" path of spec.md §4.7.
func (n *Node) SetExternalSource(ptr *ua.DataValue) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ValueSource = ValueSourceExternal
	n.externalPtr = ptr
}

// SetCallbackSource switches the node to ValueSourceCallback.
func (n *Node) SetCallbackSource(read func() ua.DataValue, write func(ua.DataValue) ua.StatusCode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ValueSource = ValueSourceCallback
	n.readCallback = read
	n.writeCallback = write
}

// ContinuationPoint is server-stored Browse continuation state, consumed
// by BrowseNext once a result set was truncated by maxReferences
// (spec.md §4.7).
type ContinuationPoint struct {
	NodeID    *ua.NodeID
	Remaining []Reference
	Mask      browseResultMask
}

type browseResultMask struct {
	referenceTypeID *ua.NodeID
	direction       ua.BrowseDirection
	nodeClassMask   uint32
	resultMask      uint32
}

// Nodestore is the minimal in-memory AddressSpace reference implementation
// named in spec.md §1/§9: a map keyed by NodeID's text form plus a
// continuation-point table for Browse/BrowseNext. It satisfies the
// AddressSpace interface below; a production deployment can substitute any
// other implementation (e.g. backed by a real information-model compiler)
// without server/services.go changing.
type Nodestore struct {
	mu            sync.Mutex
	nodes         map[string]*Node
	continuations map[string]*ContinuationPoint
}

// AddressSpace is the interface Services dispatch (server/services.go)
// depends on, letting the Nodestore's internal data structure remain an
// implementation detail per spec.md §1's "supporting collaborator" framing.
type AddressSpace interface {
	Node(id *ua.NodeID) (*Node, bool)
	AddNode(n *Node)
	DeleteNode(id *ua.NodeID)
	StoreContinuation(token string, cp *ContinuationPoint)
	TakeContinuation(token string) (*ContinuationPoint, bool)
}

// NewNodestore returns an empty Nodestore seeded with the well-known
// Server/ServerStatus subtree addresses the "Basic round-trip" end-to-end
// scenario (spec.md §8 scenario 1) reads from.
func NewNodestore(now func() time.Time) *Nodestore {
	ns := &Nodestore{
		nodes:         make(map[string]*Node),
		continuations: make(map[string]*ContinuationPoint),
	}
	ns.seedServerObject(now)
	return ns
}

func (ns *Nodestore) seedServerObject(now func() time.Time) {
	serverStatus := ua.NewNumericNodeID(0, id.ObjectIDServer_ServerStatus)
	currentTime := ua.NewNumericNodeID(0, id.VariableIDServerStatusType_CurrentTime)

	ns.AddNode(&Node{
		NodeID:      ua.NewNumericNodeID(0, id.ObjectIDServer),
		NodeClass:   ua.NodeClassObject,
		BrowseName:  ua.QualifiedName{Name: "Server"},
		DisplayName: ua.LocalizedText{Text: "Server"},
		References: []Reference{
			{TypeID: ua.NewNumericNodeID(0, id.ReferenceTypeIDHasComponent), Target: serverStatus, IsForward: true},
		},
	})
	ns.AddNode(&Node{
		NodeID:      serverStatus,
		NodeClass:   ua.NodeClassVariable,
		BrowseName:  ua.QualifiedName{Name: "ServerStatus"},
		DisplayName: ua.LocalizedText{Text: "ServerStatus"},
		AccessLevel: 0x01,
		References: []Reference{
			{TypeID: ua.NewNumericNodeID(0, id.ReferenceTypeIDHasComponent), Target: currentTime, IsForward: true},
		},
	})
	n := &Node{
		NodeID:      currentTime,
		NodeClass:   ua.NodeClassVariable,
		BrowseName:  ua.QualifiedName{Name: "CurrentTime"},
		DisplayName: ua.LocalizedText{Text: "CurrentTime"},
		AccessLevel: 0x01,
	}
	n.SetCallbackSource(func() ua.DataValue {
		v, _ := ua.NewVariant(now())
		return ua.DataValue{Value: v, HasValue: true, HasSourceTimestamp: true, SourceTimestamp: now()}
	}, nil)
	ns.AddNode(n)
}

func (ns *Nodestore) Node(id *ua.NodeID) (*Node, bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	n, ok := ns.nodes[id.String()]
	return n, ok
}

func (ns *Nodestore) AddNode(n *Node) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.nodes[n.NodeID.String()] = n
}

func (ns *Nodestore) DeleteNode(id *ua.NodeID) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	delete(ns.nodes, id.String())
}

func (ns *Nodestore) StoreContinuation(token string, cp *ContinuationPoint) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.continuations[token] = cp
}

func (ns *Nodestore) TakeContinuation(token string) (*ContinuationPoint, bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	cp, ok := ns.continuations[token]
	delete(ns.continuations, token)
	return cp, ok
}
