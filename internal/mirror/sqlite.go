// Package mirror keeps a SQLite snapshot of the JSON tables of a store so
// they can be queried with ad-hoc SQL. The JSON files stay the source of
// truth; the snapshot is rebuilt from them by Sync.
package mirror

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/matsen/plaindb/internal/schema"
)

// FileName is the default snapshot file name inside a data directory.
const FileName = "mirror.db"

// openDB opens the SQLite snapshot.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	return db, nil
}

// Column is one column of a mirrored table.
type Column struct {
	Name string
	Type schema.FieldType
}

// quoteIdent quotes a SQLite identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Columns returns the columns of a mirrored table: id first, then the
// declared fields, then any other field seen in records, each group sorted.
// Undeclared fields are stored as JSON text.
func Columns(fields map[string]schema.FieldType, records []schema.Record) []Column {
	seen := map[string]bool{schema.IDField: true}
	cols := []Column{{Name: schema.IDField, Type: schema.FieldTypeInteger}}

	declared := make([]string, 0, len(fields))
	for name := range fields {
		if !seen[name] {
			declared = append(declared, name)
			seen[name] = true
		}
	}
	sort.Strings(declared)
	for _, name := range declared {
		cols = append(cols, Column{Name: name, Type: fields[name]})
	}

	var extra []string
	for _, r := range records {
		for name := range r {
			if !seen[name] {
				extra = append(extra, name)
				seen[name] = true
			}
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		cols = append(cols, Column{Name: name, Type: schema.FieldTypeJSON})
	}
	return cols
}

// GenerateDDL generates a CREATE TABLE statement for a mirrored table.
func GenerateDDL(table string, cols []Column) string {
	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		def := fmt.Sprintf("%s %s", quoteIdent(c.Name), sqliteType(c.Type))
		if c.Name == schema.IDField {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)",
		quoteIdent(table),
		strings.Join(defs, ",\n  "))
}

// GenerateMetaTableDDL generates the _meta table DDL.
func GenerateMetaTableDDL() string {
	return `CREATE TABLE IF NOT EXISTS _meta (
  key TEXT PRIMARY KEY,
  value TEXT
)`
}

// sqliteType maps FieldType to SQLite type.
func sqliteType(ft schema.FieldType) string {
	switch ft {
	case schema.FieldTypeInteger, schema.FieldTypeBoolean:
		return "INTEGER"
	case schema.FieldTypeFloat:
		return "REAL"
	case schema.FieldTypeNumber:
		return "NUMERIC"
	default:
		return "TEXT"
	}
}

// convertValue maps a record value to what is stored in SQLite.
func convertValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case bool:
		if v {
			return 1
		}
		return 0
	case int64, float64, string:
		return v
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return string(data)
}

// hashFile returns the SHA-256 of the file at path; a missing file hashes
// as empty.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			h := sha256.Sum256([]byte{})
			return hex.EncodeToString(h[:]), nil
		}
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashKey(table string) string {
	return "hash:" + table
}

// getMeta reads a _meta value; a missing key or table yields "".
func getMeta(db *sql.DB, key string) (string, error) {
	var value sql.NullString
	err := db.QueryRow("SELECT value FROM _meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return "", nil
		}
		return "", err
	}
	return value.String, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func setMeta(db execer, key, value string) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO _meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

// scanRecords reads all rows into records keyed by column name.
func scanRecords(rows *sql.Rows) ([]schema.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	records := []schema.Record{}
	for rows.Next() {
		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(schema.Record, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
				continue
			}
			record[col] = values[i]
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// parseTime reads a timestamp written by setMeta.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
