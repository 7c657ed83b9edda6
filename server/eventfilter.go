// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"github.com/open62541/open62541-sub001/ua"
)

// FilterOperator names a ContentFilterElement's operation (spec.md §4.10).
// Parsing ContentFilter's wire/textual grammar into a FilterTree is out of
// this package's scope (SPEC_FULL.md §D.3); callers build trees
// programmatically or via whatever higher-level query frontend they
// choose.
type FilterOperator int

const (
	FilterOpAnd FilterOperator = iota
	FilterOpOr
	FilterOpNot
	FilterOpEquals
	FilterOpLessThan
	FilterOpLessOrEqual
	FilterOpGreaterThan
	FilterOpGreaterOrEqual
	FilterOpIsNull
	FilterOpBetween
	FilterOpInList
	FilterOpOfType
	FilterOpRelatedTo
	FilterOpBitwiseAnd
	FilterOpBitwiseOr
)

// FilterOperand is one operand of a FilterElement: either a nested
// sub-element (for And/Or/Not), a literal value, or an attribute reference
// into the Event being evaluated.
type FilterOperand struct {
	Element  *FilterElement // nested boolean sub-expression
	Literal  interface{}    // a scalar Go value comparable via ==, <, >
	AttributeName string    // looks up Event.Fields[AttributeName]
}

// FilterElement is one node of a FilterTree, evaluated bottom-up: operands
// are resolved first (recursively evaluating nested Elements), then Op is
// applied to their resolved values (spec.md §4.10).
type FilterElement struct {
	Op       FilterOperator
	Operands []FilterOperand
}

// FilterTree is the root of an EventFilter's WhereClause, plus the Select
// clause projecting which fields a matching Event reports.
type FilterTree struct {
	Where  *FilterElement
	Select []string
}

// Event is the minimal evaluation context a FilterTree runs against: a
// flat attribute-name-to-value map, populated by whatever raises the
// event (spec.md §4.10 treats Event's own structure as out of scope).
type Event struct {
	Fields map[string]interface{}
}

// Evaluate walks t.Where bottom-up and reports whether ev matches; a nil
// Where clause matches everything.
func (t *FilterTree) Evaluate(ev *Event) bool {
	if t == nil || t.Where == nil {
		return true
	}
	v := evalElement(t.Where, ev)
	b, _ := v.(bool)
	return b
}

// Project extracts t.Select's named fields from ev, in order, nil for any
// field ev does not carry (spec.md §4.10's select-clause projection).
func (t *FilterTree) Project(ev *Event) []*ua.Variant {
	out := make([]*ua.Variant, len(t.Select))
	for i, name := range t.Select {
		val, ok := ev.Fields[name]
		if !ok || val == nil {
			out[i] = nil
			continue
		}
		v, err := ua.NewVariant(val)
		if err != nil {
			out[i] = nil
			continue
		}
		out[i] = v
	}
	return out
}

func evalElement(el *FilterElement, ev *Event) interface{} {
	switch el.Op {
	case FilterOpAnd:
		for _, op := range el.Operands {
			if !truthy(evalOperand(op, ev)) {
				return false
			}
		}
		return true
	case FilterOpOr:
		for _, op := range el.Operands {
			if truthy(evalOperand(op, ev)) {
				return true
			}
		}
		return false
	case FilterOpNot:
		if len(el.Operands) != 1 {
			return false
		}
		return !truthy(evalOperand(el.Operands[0], ev))
	case FilterOpIsNull:
		if len(el.Operands) != 1 {
			return false
		}
		return evalOperand(el.Operands[0], ev) == nil
	case FilterOpEquals:
		return compare(el, ev) == 0
	case FilterOpLessThan:
		return compare(el, ev) < 0
	case FilterOpLessOrEqual:
		return compare(el, ev) <= 0
	case FilterOpGreaterThan:
		return compare(el, ev) > 0
	case FilterOpGreaterOrEqual:
		return compare(el, ev) >= 0
	case FilterOpBetween:
		if len(el.Operands) != 3 {
			return false
		}
		v := asOrderable(evalOperand(el.Operands[0], ev))
		lo := asOrderable(evalOperand(el.Operands[1], ev))
		hi := asOrderable(evalOperand(el.Operands[2], ev))
		return v >= lo && v <= hi
	case FilterOpInList:
		if len(el.Operands) < 2 {
			return false
		}
		v := evalOperand(el.Operands[0], ev)
		for _, op := range el.Operands[1:] {
			if v == evalOperand(op, ev) {
				return true
			}
		}
		return false
	case FilterOpBitwiseAnd:
		return int64(asOrderable(opA(el, ev))) & int64(asOrderable(opB(el, ev)))
	case FilterOpBitwiseOr:
		return int64(asOrderable(opA(el, ev))) | int64(asOrderable(opB(el, ev)))
	case FilterOpOfType, FilterOpRelatedTo:
		// Address-space type-hierarchy traversal belongs to the
		// AddressSpace collaborator, not this evaluator; a caller wiring
		// these operators supplies its own FilterOperand.Literal resolver
		// upstream of Evaluate.
		return false
	default:
		return false
	}
}

func opA(el *FilterElement, ev *Event) interface{} {
	if len(el.Operands) < 1 {
		return nil
	}
	return evalOperand(el.Operands[0], ev)
}

func opB(el *FilterElement, ev *Event) interface{} {
	if len(el.Operands) < 2 {
		return nil
	}
	return evalOperand(el.Operands[1], ev)
}

func evalOperand(op FilterOperand, ev *Event) interface{} {
	switch {
	case op.Element != nil:
		return evalElement(op.Element, ev)
	case op.AttributeName != "":
		return ev.Fields[op.AttributeName]
	default:
		return op.Literal
	}
}

func truthy(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

func compare(el *FilterElement, ev *Event) int {
	if len(el.Operands) != 2 {
		return -2
	}
	a := asOrderable(evalOperand(el.Operands[0], ev))
	b := asOrderable(evalOperand(el.Operands[1], ev))
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// asOrderable coerces common numeric scalar kinds to float64 for
// <,<=,>,>=,Between comparisons (spec.md §4.10). String-typed fields
// should use Equals/InList rather than an ordering operator.
func asOrderable(v interface{}) float64 {
	f, _ := asFloat(v)
	return f
}
