package query

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/plaindb/internal/errlog"
	"github.com/matsen/plaindb/internal/schema"
)

func users() []schema.Record {
	return []schema.Record{
		{"id": int64(1), "name": "John", "email": "john@x.com", "age": int64(30)},
		{"id": int64(2), "name": "Jane", "email": "jane@x.com", "age": int64(25)},
		{"id": int64(3), "name": "Anon"},
		{"id": int64(4), "name": "Float", "age": float64(30)},
	}
}

func ids(records []schema.Record) []int64 {
	var out []int64
	for _, r := range records {
		id, _ := r.ID()
		out = append(out, id)
	}
	return out
}

func testLog(t *testing.T) (*errlog.Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "error.log")
	return errlog.New(path), path
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		pred Predicate
		want []int64
	}{
		{"nil predicate", nil, []int64{1, 2, 3, 4}},
		{"empty predicate", Predicate{}, []int64{1, 2, 3, 4}},
		{"literal string", Predicate{"name": "Jane"}, []int64{2}},
		{"literal is type sensitive", Predicate{"age": int64(30)}, []int64{1}},
		{"literal float", Predicate{"age": float64(30)}, []int64{4}},
		{"literal go int normalized", Predicate{"age": 30}, []int64{1}},
		{"eq operator", Predicate{"age": map[string]any{"eq": int64(25)}}, []int64{2}},
		{"eq no coercion", Predicate{"age": map[string]any{"eq": "25"}}, nil},
		{"gt excludes missing and smaller", Predicate{"age": map[string]any{"gt": int64(25)}}, []int64{1, 4}},
		{"lt", Predicate{"age": map[string]any{"lt": int64(30)}}, []int64{2}},
		{"gt mixed numeric", Predicate{"age": map[string]any{"gt": 29.5}}, []int64{1, 4}},
		{"gt string", Predicate{"name": map[string]any{"gt": "Jane"}}, []int64{1}},
		{"gt across kinds excluded", Predicate{"name": map[string]any{"gt": int64(1)}}, nil},
		{"multiple fields", Predicate{"age": map[string]any{"gt": int64(20)}, "name": "Jane"}, []int64{2}},
		{"missing field", Predicate{"nickname": "x"}, nil},
		{"unknown operator", Predicate{"age": map[string]any{"gte": int64(25)}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lg, _ := testLog(t)
			got := Filter(users(), tt.pred, lg)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	records := []schema.Record{
		{"id": int64(5), "n": int64(1)},
		{"id": int64(2), "n": int64(1)},
		{"id": int64(9), "n": int64(1)},
	}
	got := Filter(records, Predicate{"n": int64(1)}, nil)
	assert.Equal(t, []int64{5, 2, 9}, ids(got))
}

func TestFilterUnknownOperatorLogged(t *testing.T) {
	lg, path := testLog(t)

	got := Filter(users(), Predicate{
		"age":  map[string]any{"between": []any{int64(1), int64(2)}},
		"name": map[string]any{"gt": "A", "lt": "Z"},
	}, lg)
	assert.Empty(t, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2, "logged once per condition, not per record")
	assert.Contains(t, lines[0], "Unsupported operator 'between' in filter for field 'age'.")
	assert.Contains(t, lines[1], "Unsupported operator 'gt,lt' in filter for field 'name'.")
}

func TestFilterEmptyOperatorObject(t *testing.T) {
	lg, _ := testLog(t)
	got := Filter(users(), Predicate{"age": map[string]any{}}, lg)
	assert.Empty(t, got)
}

func TestEqualNested(t *testing.T) {
	a := []any{int64(1), map[string]any{"k": "v"}}
	b := []any{int64(1), map[string]any{"k": "v"}}
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, []any{float64(1), map[string]any{"k": "v"}}))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b   any
		want   int
		wantOK bool
	}{
		{int64(1), int64(2), -1, true},
		{int64(2), float64(1.5), 1, true},
		{float64(2), int64(2), 0, true},
		{"b", "a", 1, true},
		{false, true, -1, true},
		{true, true, 0, true},
		{"1", int64(1), 0, false},
		{[]any{}, []any{}, 0, false},
	}
	for _, tt := range tests {
		got, ok := Compare(tt.a, tt.b)
		assert.Equal(t, tt.wantOK, ok, "Compare(%v, %v)", tt.a, tt.b)
		if ok {
			assert.Equal(t, tt.want, got, "Compare(%v, %v)", tt.a, tt.b)
		}
	}
}

func TestParsePredicate(t *testing.T) {
	pred, err := ParsePredicate([]byte(`{"age": {"gt": 25}, "score": 1.0}`))
	require.NoError(t, err)
	assert.Equal(t, Predicate{
		"age":   map[string]any{"gt": int64(25)},
		"score": float64(1),
	}, pred)

	pred, err = ParsePredicate([]byte("  "))
	require.NoError(t, err)
	assert.Nil(t, pred)

	_, err = ParsePredicate([]byte(`[1]`))
	assert.Error(t, err)
}
