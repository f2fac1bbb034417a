// Package query evaluates filter predicates against records in memory.
//
// A predicate maps field names to conditions. A condition is either a
// literal, which must equal the field's value exactly (type and value, no
// coercion), or an operator object with a single key:
//
//	{"age": {"gt": 25}, "name": "John"}
//
// Supported operators are eq, gt and lt. Evaluation is a linear scan.
package query

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/matsen/plaindb/internal/errlog"
	"github.com/matsen/plaindb/internal/schema"
)

// Operator is a comparison operator in a predicate.
type Operator string

const (
	OpEq Operator = "eq"
	OpGt Operator = "gt"
	OpLt Operator = "lt"
)

// Predicate maps field names to conditions. A nil or empty predicate matches
// every record.
type Predicate map[string]any

// Condition is one compiled field test.
type Condition struct {
	Field   string
	Op      Operator
	Value   any
	invalid string // offending operator when the condition can never match
}

// ParsePredicate parses a JSON object into a predicate with normalized values.
func ParsePredicate(data []byte) (Predicate, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	rec, err := schema.DecodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("parsing filter: %w", err)
	}
	return Predicate(rec), nil
}

// Compile turns a predicate into conditions, in field name order. Operator
// objects that are not exactly one supported operator compile to a
// condition that matches nothing, and are reported to lg.
func Compile(pred Predicate, lg *errlog.Log) []Condition {
	fields := make([]string, 0, len(pred))
	for f := range pred {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	conds := make([]Condition, 0, len(fields))
	for _, field := range fields {
		c := compileCondition(field, pred[field])
		if c.invalid != "" {
			lg.Printf("Unsupported operator '%s' in filter for field '%s'.", c.invalid, field)
		}
		conds = append(conds, c)
	}
	return conds
}

func compileCondition(field string, cond any) Condition {
	obj, ok := asObject(cond)
	if !ok {
		v, err := schema.Normalize(cond)
		if err != nil {
			return Condition{Field: field, invalid: fmt.Sprintf("%T", cond)}
		}
		return Condition{Field: field, Op: OpEq, Value: v}
	}
	if len(obj) == 0 {
		return Condition{Field: field, invalid: "{}"}
	}
	if len(obj) > 1 {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return Condition{Field: field, invalid: strings.Join(keys, ",")}
	}
	var key string
	for k := range obj {
		key = k
	}
	switch op := Operator(key); op {
	case OpEq, OpGt, OpLt:
		nv, err := schema.Normalize(obj[key])
		if err != nil {
			return Condition{Field: field, invalid: key}
		}
		return Condition{Field: field, Op: op, Value: nv}
	}
	return Condition{Field: field, invalid: key}
}

func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case schema.Record:
		return t, true
	}
	return nil, false
}

// Match reports whether record satisfies c. A record without the field never
// matches.
func (c Condition) Match(record schema.Record) bool {
	if c.invalid != "" {
		return false
	}
	v, ok := record[c.Field]
	if !ok || v == nil {
		return false
	}
	switch c.Op {
	case OpEq:
		return Equal(v, c.Value)
	case OpGt:
		cmp, ok := Compare(v, c.Value)
		return ok && cmp > 0
	case OpLt:
		cmp, ok := Compare(v, c.Value)
		return ok && cmp < 0
	}
	return false
}

// Filter returns the records matching every condition of pred, in their
// original order. An empty predicate returns records unchanged.
func Filter(records []schema.Record, pred Predicate, lg *errlog.Log) []schema.Record {
	if len(pred) == 0 {
		return records
	}
	conds := Compile(pred, lg)

	out := make([]schema.Record, 0, len(records))
	for _, r := range records {
		if matchAll(conds, r) {
			out = append(out, r)
		}
	}
	return out
}

func matchAll(conds []Condition, r schema.Record) bool {
	for _, c := range conds {
		if !c.Match(r) {
			return false
		}
	}
	return true
}

// Equal reports whether two normalized values are identical in type and
// value. int64(30) and float64(30) are not equal.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// Compare orders two normalized values. Numbers compare numerically (an
// integer may be compared with a float), strings lexicographically by byte,
// and booleans with false before true. Any other pairing is unordered and ok
// is false.
func Compare(a, b any) (cmp int, ok bool) {
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return compareOrdered(x, y), true
		case float64:
			return compareOrdered(float64(x), y), true
		}
	case float64:
		switch y := b.(type) {
		case int64:
			return compareOrdered(x, float64(y)), true
		case float64:
			return compareOrdered(x, y), true
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func compareOrdered[T int64 | float64](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}
