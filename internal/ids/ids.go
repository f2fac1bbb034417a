// Package ids issues per-table auto-increment identifiers.
//
// The last id issued for each table is persisted as a JSON object
// ({"users": 3, "posts": 1}) in a single counter file. Counters only go up:
// ids are never reused, even after the record that held them is deleted.
package ids

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/matsen/plaindb/internal/errlog"
	"github.com/matsen/plaindb/internal/filelock"
)

// FileName is the default name of the counter file within a data directory.
const FileName = "ids.json"

// Allocator hands out ids from a counter file.
type Allocator struct {
	path string
	log  *errlog.Log
}

// New returns an Allocator backed by the counter file at path.
func New(path string, lg *errlog.Log) *Allocator {
	return &Allocator{path: path, log: lg}
}

// Path returns the counter file path.
func (a *Allocator) Path() string {
	return a.path
}

// Next returns current+1 for table and persists it. The read, increment and
// write happen under an exclusive lock, so concurrent callers in any process
// never receive the same id.
func (a *Allocator) Next(table string) (int64, error) {
	lock, err := filelock.Acquire(a.path)
	if err != nil {
		return 0, a.log.Error(fmt.Errorf("could not lock file '%s': %w", filepath.Base(a.path), err))
	}
	defer lock.Release()

	state, err := a.read()
	if err != nil {
		return 0, a.log.Error(err)
	}

	next := state[table] + 1
	state[table] = next

	if err := filelock.WriteJSON(a.path, state); err != nil {
		return 0, a.log.Error(fmt.Errorf("failed to write %s: %w", filepath.Base(a.path), err))
	}
	return next, nil
}

// State returns a snapshot of all counters. It does not lock.
func (a *Allocator) State() (map[string]int64, error) {
	state, err := a.read()
	if err != nil {
		return nil, a.log.Error(err)
	}
	return state, nil
}

// read loads the counter state. A missing file is an empty state; a file
// that is not a JSON object of integers is logged and treated as empty.
func (a *Allocator) read() (map[string]int64, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]int64), nil
		}
		return nil, &filelock.StorageError{Op: "read", Path: a.path, Err: err}
	}

	state := make(map[string]int64)
	if len(bytes.TrimSpace(data)) == 0 {
		return state, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		a.log.Printf("Failed to parse %s: %v", filepath.Base(a.path), err)
		return state, nil
	}
	for table, v := range raw {
		id, ok := counterValue(v)
		if !ok {
			a.log.Printf("Failed to parse %s: invalid counter %v for table '%s'", filepath.Base(a.path), v, table)
			continue
		}
		state[table] = id
	}
	return state, nil
}

// counterValue accepts non-negative integers, including integral floats
// written by other tools.
func counterValue(v any) (int64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return i, i >= 0
	}
	f, err := n.Float64()
	if err != nil || f < 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
