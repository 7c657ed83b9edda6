// Package uajson implements the OPC UA JSON encoding of Part 6 §5.4 for
// the handful of builtin types the stack's HTTP/debug surfaces need:
// NodeId, StatusCode, Variant and DataValue (spec.md §4.1). It supports
// both the reversible encoding (used between OPC UA applications, fully
// round-trippable) and the non-reversible encoding (human-friendly,
// used for REST/browser consumption, lossy on NodeId namespace index and
// on StatusCode detail).
package uajson

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strconv"

	"github.com/open62541/open62541-sub001/errors"
	"github.com/open62541/open62541-sub001/id"
	"github.com/open62541/open62541-sub001/ua"
)

// Encoding selects reversible vs non-reversible JSON output.
type Encoding int

const (
	Reversible Encoding = iota
	NonReversible
)

// EncodeNodeID writes n per Part 6 §5.4.2.10: {"Id":..,"Namespace":..,
// "IdType":..}, omitting Namespace for ns=0 and IdType for the numeric
// form (both are the wire-format defaults).
func EncodeNodeID(n *ua.NodeID, enc Encoding) ([]byte, error) {
	if n == nil || n.IsZero() {
		return []byte("null"), nil
	}
	m := map[string]interface{}{}
	switch n.Kind() {
	case ua.IdentifierNumeric:
		m["Id"] = n.IntID()
	case ua.IdentifierString:
		m["IdType"] = 1
		m["Id"] = n.StringID()
	case ua.IdentifierGUID:
		m["IdType"] = 2
		m["Id"] = n.GUIDID().String()
	case ua.IdentifierOpaque:
		m["IdType"] = 3
		m["Id"] = base64.StdEncoding.EncodeToString(n.OpaqueID())
	}
	if n.Namespace() != 0 {
		m["Namespace"] = n.Namespace()
	}
	if enc == NonReversible {
		return json.Marshal(n.String())
	}
	return json.Marshal(m)
}

// EncodeStatusCode writes sc per Part 6 §5.4.2.3: the raw code for
// reversible encoding, or an object with the code and its human-readable
// symbol for non-reversible encoding. Good is written as 0 in both.
func EncodeStatusCode(sc ua.StatusCode, enc Encoding) ([]byte, error) {
	if enc == Reversible || sc == ua.StatusOK {
		if sc == ua.StatusOK {
			return []byte("0"), nil
		}
		return json.Marshal(uint32(sc))
	}
	return json.Marshal(map[string]interface{}{
		"Code":   uint32(sc),
		"Symbol": sc.String(),
	})
}

// EncodeVariant writes v per Part 6 §5.4.2.11: reversible encoding is
// {"Type":<builtin type id>,"Body":...,"Dimensions":[...]}; non-reversible
// drops straight to the bare value (or array of values), since a browser
// client has no use for the type id.
func EncodeVariant(v *ua.Variant, enc Encoding) ([]byte, error) {
	if v == nil || v.IsNull() {
		return []byte("null"), nil
	}
	if v.IsArray() {
		items := make([]json.RawMessage, len(v.Array()))
		for i, el := range v.Array() {
			b, err := encodeBuiltin(v.TypeID(), el, enc)
			if err != nil {
				return nil, err
			}
			items[i] = b
		}
		body, err := json.Marshal(items)
		if err != nil {
			return nil, err
		}
		if enc == NonReversible {
			return body, nil
		}
		m := map[string]interface{}{
			"Type": int(v.TypeID()),
			"Body": json.RawMessage(body),
		}
		if dims := v.ArrayDimensions(); len(dims) > 0 {
			m["Dimensions"] = dims
		}
		return json.Marshal(m)
	}
	body, err := encodeBuiltin(v.TypeID(), v.Scalar(), enc)
	if err != nil {
		return nil, err
	}
	if enc == NonReversible {
		return body, nil
	}
	return json.Marshal(map[string]interface{}{
		"Type": int(v.TypeID()),
		"Body": json.RawMessage(body),
	})
}

func encodeBuiltin(typeID byte, v interface{}, enc Encoding) ([]byte, error) {
	switch uint32(typeID) {
	case id.DataTypeIDNodeID:
		return EncodeNodeID(v.(*ua.NodeID), enc)
	case id.DataTypeIDStatusCode:
		return EncodeStatusCode(v.(ua.StatusCode), enc)
	case id.DataTypeIDByteString:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.([]byte)))
	case id.DataTypeIDQualifiedName:
		qn := v.(ua.QualifiedName)
		return json.Marshal(map[string]interface{}{"Name": qn.Name, "Uri": qn.NamespaceIndex})
	case id.DataTypeIDLocalizedText:
		lt := v.(ua.LocalizedText)
		if enc == NonReversible {
			return json.Marshal(lt.Text)
		}
		return json.Marshal(map[string]interface{}{"Locale": lt.Locale, "Text": lt.Text})
	default:
		return json.Marshal(v)
	}
}

// EncodeDataValue writes dv per Part 6 §5.4.2.12: a field per present
// has-flag, field names matching the binary DataValue's bit names.
func EncodeDataValue(dv *ua.DataValue, enc Encoding) ([]byte, error) {
	if dv == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(name string, raw []byte) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.WriteByte('"')
		buf.WriteString(name)
		buf.WriteString(`":`)
		buf.Write(raw)
	}
	if dv.HasValue {
		b, err := EncodeVariant(dv.Value, enc)
		if err != nil {
			return nil, err
		}
		write("Value", b)
	}
	if dv.HasStatus {
		b, err := EncodeStatusCode(dv.Status, enc)
		if err != nil {
			return nil, err
		}
		write("Status", b)
	}
	if dv.HasSourceTimestamp {
		write("SourceTimestamp", []byte(strconv.Quote(dv.SourceTimestamp.UTC().Format("2006-01-02T15:04:05.999999999Z"))))
	}
	if dv.HasServerTimestamp {
		write("ServerTimestamp", []byte(strconv.Quote(dv.ServerTimestamp.UTC().Format("2006-01-02T15:04:05.999999999Z"))))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ErrUnsupportedType names an unsupported builtin type. The encoders in
// this package do not return it: a builtin type without a case of its own
// is written with encoding/json's default marshalling.
var ErrUnsupportedType = errors.New("uajson: unsupported builtin type")
