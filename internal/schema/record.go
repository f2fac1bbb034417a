package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Record represents a single record in a table.
// Stored as map[string]any since schema is dynamic.
//
// Values are kept normalized to the JSON value set: nil, bool, int64,
// float64, string, []any and map[string]any. Integral JSON numbers decode
// to int64 and numbers written with a fraction or exponent decode to
// float64, so 30 and 30.0 stay distinguishable.
type Record map[string]any

// ID returns the record's id when it is an integer.
func (r Record) ID() (int64, bool) {
	id, ok := r[IDField].(int64)
	return id, ok
}

// MarshalJSON encodes the record, writing floats that hold whole numbers
// with a trailing ".0" so they decode back as floats.
func (r Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return json.Marshal(encodeValue(map[string]any(r)))
}

func encodeValue(v any) any {
	switch t := v.(type) {
	case float64:
		if math.IsInf(t, 0) || math.IsNaN(t) {
			return t // let encoding/json report the error
		}
		return json.Number(formatFloat(t))
	case Record:
		return encodeValue(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = encodeValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = encodeValue(e)
		}
		return out
	}
	return v
}

// formatFloat formats like encoding/json, then forces a fraction or exponent.
func formatFloat(f float64) string {
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	s := strconv.FormatFloat(f, format, -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// NormalizeRecord returns a copy of data with every value normalized.
func NormalizeRecord(data map[string]any) (Record, error) {
	out := make(Record, len(data))
	for k, v := range data {
		nv, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// Normalize converts a Go value to the normalized JSON value set.
// Values of other types are round-tripped through encoding/json.
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, string, int64:
		return v, nil
	case float64:
		return normalizeFloat(t)
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint:
		return normalizeUint(uint64(t)), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		return normalizeUint(t), nil
	case float32:
		return normalizeFloat(float64(t))
	case json.Number:
		return normalizeNumber(t)
	case Record:
		m, err := NormalizeRecord(t)
		if err != nil {
			return nil, err
		}
		return map[string]any(m), nil
	case map[string]any:
		m, err := NormalizeRecord(t)
		if err != nil {
			return nil, err
		}
		return map[string]any(m), nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			ne, err := Normalize(e)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = ne
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Float32 || rv.Kind() == reflect.Float64 {
		return normalizeFloat(rv.Float())
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("unsupported value of type %T: %w", v, err)
	}
	return DecodeValue(data)
}

func normalizeFloat(f float64) (any, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("%v cannot be represented in JSON", f)
	}
	return f, nil
}

func normalizeUint(u uint64) any {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}

func normalizeNumber(n json.Number) (any, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return f, nil
}

// DecodeValue parses a JSON document into a normalized value.
func DecodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return Normalize(v)
}

// DecodeRecord parses a JSON object into a normalized record.
func DecodeRecord(data []byte) (Record, error) {
	v, err := DecodeValue(data)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %s", KindOf(v))
	}
	return Record(m), nil
}

// KindOf names the JSON kind of a normalized value, for error messages.
func KindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case int64:
		return "integer"
	case float64:
		return "float"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
