package mirror

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/matsen/plaindb/internal/schema"
	"github.com/matsen/plaindb/internal/store"
)

// Mirror rebuilds and queries the SQLite snapshot of a store.
type Mirror struct {
	store *store.Store
	path  string
}

// New returns a mirror of st kept at path. An empty path means
// <data dir>/mirror.db.
func New(st *store.Store, path string) *Mirror {
	if path == "" {
		path = filepath.Join(st.Dir(), FileName)
	}
	return &Mirror{store: st, path: path}
}

// Path returns the snapshot file path.
func (m *Mirror) Path() string {
	return m.path
}

// SyncResult reports one rebuilt table.
type SyncResult struct {
	Table   string `json:"table"`
	Records int    `json:"records"`
	Skipped bool   `json:"skipped,omitempty"` // unchanged since the last sync
}

// Sync rebuilds the snapshot of the named tables, or of every table of the
// store when none are named. Tables whose file is unchanged since the last
// sync are skipped unless force is set.
func (m *Mirror) Sync(force bool, tables ...string) ([]SyncResult, error) {
	if len(tables) == 0 {
		infos, err := m.store.Tables()
		if err != nil {
			return nil, fmt.Errorf("listing tables: %w", err)
		}
		for _, info := range infos {
			tables = append(tables, info.Name)
		}
	}

	db, err := openDB(m.path)
	if err != nil {
		return nil, m.store.Log().Error(err)
	}
	defer db.Close()

	if _, err := db.Exec(GenerateMetaTableDDL()); err != nil {
		return nil, m.store.Log().Error(fmt.Errorf("creating meta table: %w", err))
	}

	results := make([]SyncResult, 0, len(tables))
	for _, table := range tables {
		res, err := m.syncTable(db, table, force)
		if err != nil {
			return results, m.store.Log().Error(fmt.Errorf("syncing table %s: %w", table, err))
		}
		results = append(results, res)
	}

	if err := setMeta(db, "last_sync", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return results, m.store.Log().Error(fmt.Errorf("updating sync time: %w", err))
	}
	return results, nil
}

func (m *Mirror) syncTable(db *sql.DB, table string, force bool) (SyncResult, error) {
	res := SyncResult{Table: table}
	if !schema.ValidTableName(table) {
		return res, fmt.Errorf("invalid table name %q", table)
	}

	hash, err := hashFile(m.store.TablePath(table))
	if err != nil {
		return res, fmt.Errorf("computing hash: %w", err)
	}
	if !force {
		stored, err := getMeta(db, hashKey(table))
		if err != nil {
			return res, err
		}
		if stored == hash {
			var n int
			if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(table))).Scan(&n); err == nil {
				res.Records = n
				res.Skipped = true
				return res, nil
			}
		}
	}

	records, err := m.store.ReadAll(table)
	if err != nil {
		return res, fmt.Errorf("reading records: %w", err)
	}
	cols := Columns(m.store.Schema().Fields(table), records)

	tx, err := db.Begin()
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(table))); err != nil {
		return res, fmt.Errorf("dropping table: %w", err)
	}
	if _, err := tx.Exec(GenerateDDL(table, cols)); err != nil {
		return res, fmt.Errorf("creating table: %w", err)
	}

	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c.Name)
		marks[i] = "?"
	}
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(names, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return res, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		values := make([]any, len(cols))
		for j, c := range cols {
			values[j] = convertValue(r[c.Name])
		}
		// Hand-edited files may carry a non-integer id; let SQLite assign one.
		if _, ok := r.ID(); !ok {
			values[0] = nil
		}
		if _, err := stmt.Exec(values...); err != nil {
			return res, fmt.Errorf("inserting record %d: %w", i+1, err)
		}
	}

	if err := setMeta(tx, hashKey(table), hash); err != nil {
		return res, fmt.Errorf("updating hash: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}

	res.Records = len(records)
	return res, nil
}

// NeedsSync reports whether the table file changed since it was last synced.
func (m *Mirror) NeedsSync(table string) (bool, error) {
	current, err := hashFile(m.store.TablePath(table))
	if err != nil {
		return true, err
	}

	db, err := openDB(m.path)
	if err != nil {
		return true, err
	}
	defer db.Close()

	stored, err := getMeta(db, hashKey(table))
	if err != nil {
		return true, err
	}
	return stored == "" || current != stored, nil
}

// LastSync returns when Sync last completed, or the zero time.
func (m *Mirror) LastSync() (time.Time, error) {
	db, err := openDB(m.path)
	if err != nil {
		return time.Time{}, err
	}
	defer db.Close()

	s, err := getMeta(db, "last_sync")
	if err != nil {
		return time.Time{}, err
	}
	return parseTime(s)
}

// Query runs a SQL query against the snapshot.
func (m *Mirror) Query(query string) ([]store.Record, error) {
	db, err := openDB(m.path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(query)
	if err != nil {
		return nil, m.store.Log().Error(fmt.Errorf("executing query: %w", err))
	}
	defer rows.Close()

	return scanRecords(rows)
}
