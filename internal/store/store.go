// Package store persists records as a JSON array in one file per table.
//
// Writes (insert, patch, delete) hold an exclusive lock on the table for the
// whole read-modify-write and replace the file atomically, so concurrent
// writers in other processes never lose each other's updates and readers
// never see a partially written file. Reads take no lock.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/matsen/plaindb/internal/errlog"
	"github.com/matsen/plaindb/internal/filelock"
	"github.com/matsen/plaindb/internal/ids"
	"github.com/matsen/plaindb/internal/query"
	"github.com/matsen/plaindb/internal/schema"
)

// File names within a data directory.
const (
	SchemaFile   = "schema.json"
	ErrorLogFile = "error.log"
	TableExt     = ".json"
)

// Record is a single document. See schema.Record for the value types.
type Record = schema.Record

// Options configures Open.
type Options struct {
	// Dir is the data directory holding table files, the id counter file and
	// the error log. It is created if missing.
	Dir string

	// SchemaPath is read when Schema is nil. Defaults to Dir/schema.json.
	SchemaPath string

	// Schema overrides SchemaPath with an already built registry.
	Schema *schema.Registry

	// Log overrides the default Dir/error.log.
	Log *errlog.Log
}

// Store is the document store over one data directory.
type Store struct {
	dir    string
	log    *errlog.Log
	schema *schema.Registry
	ids    *ids.Allocator
}

// Open prepares a store over opts.Dir. A missing or malformed schema does
// not fail Open; it is logged and every validated write fails instead.
func Open(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, &StorageError{Op: "create", Path: opts.Dir, Err: err}
	}

	lg := opts.Log
	if lg == nil {
		lg = errlog.New(filepath.Join(opts.Dir, ErrorLogFile))
	}

	reg := opts.Schema
	if reg == nil {
		path := opts.SchemaPath
		if path == "" {
			path = filepath.Join(opts.Dir, SchemaFile)
		}
		reg = schema.Load(path, lg)
	}

	return &Store{
		dir:    opts.Dir,
		log:    lg,
		schema: reg,
		ids:    ids.New(filepath.Join(opts.Dir, ids.FileName), lg),
	}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Schema returns the registry writes are validated against.
func (s *Store) Schema() *schema.Registry {
	return s.schema
}

// Log returns the error log.
func (s *Store) Log() *errlog.Log {
	return s.log
}

// IDs returns the id allocator.
func (s *Store) IDs() *ids.Allocator {
	return s.ids
}

// TablePath returns the path of the file backing table.
func (s *Store) TablePath(table string) string {
	return filepath.Join(s.dir, table+TableExt)
}

// checkTable rejects names that cannot be used as file names.
func (s *Store) checkTable(table string) error {
	if !schema.ValidTableName(table) {
		return s.log.Error(&ValidationError{Table: table, Reason: "is not a valid table name"})
	}
	return nil
}

// validate checks data against the schema of table, logging failures.
func (s *Store) validate(table string, data Record) error {
	if err := s.schema.Validate(table, data); err != nil {
		s.log.Printf("Validation failed for table '%s': %v", table, err)
		return err
	}
	return nil
}

// normalize copies caller data into a Record with normalized values.
func (s *Store) normalize(table string, data map[string]any) (Record, error) {
	rec, err := schema.NormalizeRecord(data)
	if err != nil {
		return nil, s.log.Error(&ValidationError{Table: table, Reason: fmt.Sprintf("has an unsupported value: %v", err)})
	}
	return rec, nil
}

// Insert assigns the next id of table to data, validates it and appends it
// to the table. It returns the new id.
//
// The id is allocated before validation and is not given back when
// validation fails, so a rejected insert leaves a gap in the sequence.
// data is not modified; any "id" it carries is replaced.
func (s *Store) Insert(table string, data map[string]any) (int64, error) {
	if err := s.checkTable(table); err != nil {
		return 0, err
	}
	rec, err := s.normalize(table, data)
	if err != nil {
		return 0, err
	}

	id, err := s.ids.Next(table)
	if err != nil {
		return 0, err
	}
	rec[schema.IDField] = id

	if err := s.validate(table, rec); err != nil {
		return 0, err
	}

	err = s.modify(table, true, func(records []Record) []Record {
		return append(records, rec)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ReadAll returns every record of table in insertion order. A missing table
// file yields no records; an unparsable one is logged and yields no records.
func (s *Store) ReadAll(table string) ([]Record, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	return s.load(table)
}

// ReadOne returns the first record of table whose id equals id.
func (s *Store) ReadOne(table string, id int64) (Record, bool, error) {
	records, err := s.ReadAll(table)
	if err != nil {
		return nil, false, err
	}
	for _, r := range records {
		if rid, ok := r.ID(); ok && rid == id {
			return r, true, nil
		}
	}
	return nil, false, nil
}

// Get is ReadOne.
func (s *Store) Get(table string, id int64) (Record, bool, error) {
	return s.ReadOne(table, id)
}

// Query returns the records of table matching pred, in insertion order.
func (s *Store) Query(table string, pred query.Predicate) ([]Record, error) {
	records, err := s.ReadAll(table)
	if err != nil {
		return nil, err
	}
	return query.Filter(records, pred, s.log), nil
}

// Patch merges data into the record of table with the given id: fields in
// data overwrite fields of the same name, other fields are kept. data is
// validated against the schema even though id selects the record. An "id"
// in data is ignored. It reports whether a record matched; patching an id
// that does not exist is not an error.
func (s *Store) Patch(table string, id int64, data map[string]any) (bool, error) {
	if err := s.checkTable(table); err != nil {
		return false, err
	}
	patch, err := s.normalize(table, data)
	if err != nil {
		return false, err
	}
	delete(patch, schema.IDField)
	if err := s.validate(table, patch); err != nil {
		return false, err
	}

	matched := false
	err = s.modify(table, false, func(records []Record) []Record {
		for _, r := range records {
			if rid, ok := r.ID(); ok && rid == id {
				for k, v := range patch {
					r[k] = v
				}
				matched = true
				break
			}
		}
		return records
	})
	return matched, err
}

// Delete removes every record of table with the given id, keeping the order
// of the others, and reports whether any record was removed. Deleting an id
// that does not exist is not an error.
func (s *Store) Delete(table string, id int64) (bool, error) {
	if err := s.checkTable(table); err != nil {
		return false, err
	}
	matched := false
	err := s.modify(table, false, func(records []Record) []Record {
		kept := records[:0]
		for _, r := range records {
			if rid, ok := r.ID(); ok && rid == id {
				matched = true
				continue
			}
			kept = append(kept, r)
		}
		return kept
	})
	return matched, err
}

// modify runs fn over the records of table and writes the result back, all
// under the table's exclusive lock. When create is false and the table file
// does not exist, nothing is written.
func (s *Store) modify(table string, create bool, fn func([]Record) []Record) error {
	path := s.TablePath(table)

	lock, err := filelock.Acquire(path)
	if err != nil {
		return s.log.Error(fmt.Errorf("could not lock file '%s': %w", filepath.Base(path), err))
	}
	defer lock.Release()

	if !create {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil
		}
	}

	records, err := s.load(table)
	if err != nil {
		return err
	}
	records = fn(records)
	if records == nil {
		records = []Record{}
	}

	if err := filelock.WriteJSON(path, records); err != nil {
		return s.log.Error(fmt.Errorf("failed to write %s: %w", filepath.Base(path), err))
	}
	return nil
}
