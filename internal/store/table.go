package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/matsen/plaindb/internal/schema"
)

// load reads the records of table. A missing file is an empty table. A file
// that is not a JSON array is logged and read as empty; array elements that
// are not objects are logged and skipped.
func (s *Store) load(table string) ([]Record, error) {
	path := s.TablePath(table)
	name := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, s.log.Error(&StorageError{Op: "read", Path: path, Err: err})
	}
	if len(bytes.TrimSpace(data)) == 0 {
		s.log.Printf("Failed to parse %s: file is empty", name)
		return []Record{}, nil
	}

	v, err := schema.DecodeValue(data)
	if err != nil {
		s.log.Printf("Failed to parse %s: %v", name, err)
		return []Record{}, nil
	}
	items, ok := v.([]any)
	if !ok {
		s.log.Printf("Failed to parse %s: expected a JSON array, got %s", name, schema.KindOf(v))
		return []Record{}, nil
	}

	records := make([]Record, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			s.log.Printf("Skipping element %d of %s: expected a JSON object, got %s", i, name, schema.KindOf(item))
			continue
		}
		records = append(records, Record(m))
	}
	return records, nil
}

// TableInfo describes one table.
type TableInfo struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Records int    `json:"records"`
	Size    int64  `json:"size"`
	LastID  int64  `json:"last_id"`
	Defined bool   `json:"defined"` // declared in the schema
}

// Tables describes every table that is declared in the schema or has a file
// or id counter in the data directory, sorted by name.
func (s *Store) Tables() ([]TableInfo, error) {
	names := make(map[string]bool)
	for _, name := range s.schema.Tables() {
		names[name] = true
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, s.log.Error(&StorageError{Op: "read", Path: s.dir, Err: err})
	}
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasSuffix(n, TableExt) {
			continue
		}
		table := strings.TrimSuffix(n, TableExt)
		if n == SchemaFile || n == filepath.Base(s.ids.Path()) || !schema.ValidTableName(table) {
			continue
		}
		names[table] = true
	}

	counters, err := s.ids.State()
	if err != nil {
		return nil, err
	}
	for table := range counters {
		if schema.ValidTableName(table) {
			names[table] = true
		}
	}

	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	infos := make([]TableInfo, 0, len(sorted))
	for _, name := range sorted {
		info := TableInfo{
			Name:    name,
			Path:    s.TablePath(name),
			LastID:  counters[name],
			Defined: s.schema.HasTable(name),
		}
		if stat, err := os.Stat(info.Path); err == nil {
			info.Size = stat.Size()
		}
		records, err := s.load(name)
		if err != nil {
			return nil, fmt.Errorf("reading table %s: %w", name, err)
		}
		info.Records = len(records)
		infos = append(infos, info)
	}
	return infos, nil
}
