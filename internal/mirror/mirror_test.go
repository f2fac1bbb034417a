package mirror

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matsen/plaindb/internal/schema"
	"github.com/matsen/plaindb/internal/store"
)

func setupTestMirror(t *testing.T) (*store.Store, *Mirror) {
	t.Helper()
	def := &schema.Definition{Tables: map[string]schema.Table{
		"users": {Fields: map[string]string{"name": "string", "age": "integer", "admin": "boolean", "tags": "array"}},
		"posts": {Fields: map[string]string{"title": "string"}},
	}}
	st, err := store.Open(store.Options{Dir: t.TempDir(), Schema: schema.New(def, nil)})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	return st, New(st, "")
}

func insert(t *testing.T, st *store.Store, table string, data map[string]any) {
	t.Helper()
	if _, err := st.Insert(table, data); err != nil {
		t.Fatalf("Insert: %v", err)
	}
}

func TestSyncAndQuery(t *testing.T) {
	st, m := setupTestMirror(t)
	insert(t, st, "users", map[string]any{"name": "John", "age": 30, "admin": true, "tags": []any{"a"}})
	insert(t, st, "users", map[string]any{"name": "Jane", "age": 25})
	insert(t, st, "posts", map[string]any{"title": "Hello"})

	results, err := m.Sync(false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Table] = r.Records
	}
	if counts["users"] != 2 || counts["posts"] != 1 {
		t.Errorf("Sync counts = %v", counts)
	}
	if m.Path() != filepath.Join(st.Dir(), FileName) {
		t.Errorf("Path = %s", m.Path())
	}

	rows, err := m.Query(`SELECT id, name, admin, tags FROM users WHERE age > 26`)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row["id"] != int64(1) || row["name"] != "John" || row["admin"] != int64(1) || row["tags"] != `["a"]` {
		t.Errorf("row = %#v", row)
	}

	last, err := m.LastSync()
	if err != nil {
		t.Fatalf("LastSync: %v", err)
	}
	if last.IsZero() {
		t.Error("LastSync is zero after Sync")
	}
}

func TestNeedsSync(t *testing.T) {
	st, m := setupTestMirror(t)
	insert(t, st, "users", map[string]any{"name": "a"})

	needs, err := m.NeedsSync("users")
	if err != nil {
		t.Fatalf("NeedsSync: %v", err)
	}
	if !needs {
		t.Error("NeedsSync = false before first sync")
	}

	if _, err := m.Sync(false, "users"); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if needs, _ := m.NeedsSync("users"); needs {
		t.Error("NeedsSync = true right after sync")
	}

	insert(t, st, "users", map[string]any{"name": "b"})
	if needs, _ := m.NeedsSync("users"); !needs {
		t.Error("NeedsSync = false after insert")
	}
}

func TestSyncSkipsUnchanged(t *testing.T) {
	st, m := setupTestMirror(t)
	insert(t, st, "users", map[string]any{"name": "a"})

	if _, err := m.Sync(false, "users"); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	results, err := m.Sync(false, "users")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(results) != 1 || !results[0].Skipped || results[0].Records != 1 {
		t.Errorf("second Sync = %+v, want skipped with 1 record", results)
	}

	results, err = m.Sync(true, "users")
	if err != nil {
		t.Fatalf("forced Sync: %v", err)
	}
	if results[0].Skipped {
		t.Error("forced Sync was skipped")
	}
}

func TestSyncReflectsDeletes(t *testing.T) {
	st, m := setupTestMirror(t)
	for _, n := range []string{"a", "b", "c"} {
		insert(t, st, "users", map[string]any{"name": n})
	}
	if _, err := m.Sync(false); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if _, err := st.Delete("users", 2); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Sync(false); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	rows, err := m.Query(`SELECT id FROM users ORDER BY id`)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 2 || rows[0]["id"] != int64(1) || rows[1]["id"] != int64(3) {
		t.Errorf("rows = %v, want ids 1 and 3", rows)
	}
}

func TestSyncUndeclaredTable(t *testing.T) {
	st, m := setupTestMirror(t)
	data := `[{"id": 1, "note": "x", "meta": {"k": 1}}, {"id": "bad"}]`
	if err := os.WriteFile(st.TablePath("legacy"), []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	results, err := m.Sync(false, "legacy")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if results[0].Records != 2 {
		t.Errorf("Records = %d, want 2", results[0].Records)
	}

	rows, err := m.Query(`SELECT note, meta FROM legacy WHERE id = 1`)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 || rows[0]["note"] != "x" || rows[0]["meta"] != `{"k":1}` {
		t.Errorf("rows = %v", rows)
	}
}

func TestQueryError(t *testing.T) {
	_, m := setupTestMirror(t)
	if _, err := m.Query("SELECT * FROM nope"); err == nil {
		t.Error("expected error for unknown table")
	}
}

func TestSyncRejectsReservedNames(t *testing.T) {
	st, m := setupTestMirror(t)
	insert(t, st, "users", map[string]any{"name": "a"})
	if _, err := m.Sync(false); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	for _, name := range []string{"_meta", "ids", "../users"} {
		if _, err := m.Sync(true, name); err == nil {
			t.Errorf("Sync(%q) expected error", name)
		}
	}

	if last, err := m.LastSync(); err != nil || last.IsZero() {
		t.Errorf("LastSync after rejected sync = %v, %v", last, err)
	}
	if stale, err := m.NeedsSync("users"); err != nil || stale {
		t.Errorf("NeedsSync(users) = %v, %v; want false", stale, err)
	}
}
