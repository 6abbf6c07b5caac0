package model

// This file contains Metadata, the closed set of values an attachment's user
// info may carry once normalized.

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/xctools/xctools/xcresult"
)

// Metadata is a string-keyed dictionary of metadata values.
type Metadata map[string]MetadataValue

// MetadataKind identifies the variant held by a MetadataValue.
type MetadataKind uint8

const (
	MetadataString MetadataKind = iota + 1
	MetadataNumber
	MetadataBool
	MetadataBytes
	MetadataNested
)

// MetadataValue holds exactly one of a string, number, bool, byte string or
// nested Metadata. The zero value is invalid.
type MetadataValue struct {
	kind   MetadataKind
	str    string
	num    float64
	boolv  bool
	bytes  []byte
	nested Metadata
}

func StringValue(s string) MetadataValue   { return MetadataValue{kind: MetadataString, str: s} }
func NumberValue(n float64) MetadataValue  { return MetadataValue{kind: MetadataNumber, num: n} }
func BoolValue(b bool) MetadataValue       { return MetadataValue{kind: MetadataBool, boolv: b} }
func BytesValue(b []byte) MetadataValue    { return MetadataValue{kind: MetadataBytes, bytes: b} }
func NestedValue(m Metadata) MetadataValue { return MetadataValue{kind: MetadataNested, nested: m} }

// Kind returns the variant held by v.
func (v MetadataValue) Kind() MetadataKind { return v.kind }

func (v MetadataValue) Str() (string, bool)      { return v.str, v.kind == MetadataString }
func (v MetadataValue) Number() (float64, bool)  { return v.num, v.kind == MetadataNumber }
func (v MetadataValue) Bool() (bool, bool)       { return v.boolv, v.kind == MetadataBool }
func (v MetadataValue) Bytes() ([]byte, bool)    { return v.bytes, v.kind == MetadataBytes }
func (v MetadataValue) Nested() (Metadata, bool) { return v.nested, v.kind == MetadataNested }

// MarshalJSON encodes the held value as its natural JSON form. Bytes are
// encoded as a base64 string.
func (v MetadataValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case MetadataString:
		return json.Marshal(v.str)
	case MetadataNumber:
		return json.Marshal(v.num)
	case MetadataBool:
		return json.Marshal(v.boolv)
	case MetadataBytes:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.bytes))
	case MetadataNested:
		if v.nested == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.nested)
	default:
		return nil, fmt.Errorf("invalid metadata value")
	}
}

// UnmarshalJSON decodes strings, numbers, booleans and objects. Bytes cannot
// be told apart from strings once encoded and decode as strings.
func (v *MetadataValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty metadata value")
	}
	switch data[0] {
	case 'n':
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case '{':
		var m Metadata
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*v = NestedValue(m)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported metadata value %s", data)
		}
		*v = NumberValue(n)
	}
	return nil
}

// UnmarshalJSON decodes a metadata object. Null entries are skipped.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}
	out := make(Metadata, len(raw))
	for k, item := range raw {
		var v MetadataValue
		if err := json.Unmarshal(item, &v); err != nil {
			return fmt.Errorf("failed to decode metadata %q: %w", k, err)
		}
		if v.kind == 0 {
			continue
		}
		out[k] = v
	}
	*m = out
	return nil
}

// CoerceMetadata converts type-erased user info into Metadata. Entries that
// cannot be represented are skipped. It returns nil for empty input.
func CoerceMetadata(entries []xcresult.KeyValue) Metadata {
	if len(entries) == 0 {
		return nil
	}
	out := make(Metadata, len(entries))
	for _, e := range entries {
		if v, ok := coerceValue(e.Value); ok {
			out[e.Key] = v
		}
	}
	return out
}

func coerceValue(raw any) (MetadataValue, bool) {
	switch x := raw.(type) {
	case string:
		return StringValue(x), true
	case bool:
		return BoolValue(x), true
	case []byte:
		return BytesValue(x), true
	case int:
		return NumberValue(float64(x)), true
	case int32:
		return NumberValue(float64(x)), true
	case int64:
		return NumberValue(float64(x)), true
	case uint64:
		return NumberValue(float64(x)), true
	case float32:
		return NumberValue(float64(x)), true
	case float64:
		return NumberValue(x), true
	case map[string]any:
		nested := make(Metadata, len(x))
		for k, item := range x {
			if v, ok := coerceValue(item); ok {
				nested[k] = v
			}
		}
		return NestedValue(nested), true
	case Metadata:
		return NestedValue(x), true
	default:
		return MetadataValue{}, false
	}
}
