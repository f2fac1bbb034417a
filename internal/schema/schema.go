// Package schema holds the per-table field type definitions that writes are
// validated against.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matsen/plaindb/internal/errlog"
)

// FieldType represents the expected type of a field.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeInteger FieldType = "integer"
	FieldTypeFloat   FieldType = "float"
	FieldTypeNumber  FieldType = "number" // integer or float
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeArray   FieldType = "array"  // list or object
	FieldTypeObject  FieldType = "object" // JSON object only
	FieldTypeJSON    FieldType = "json"   // any value
)

// validFieldTypes is the set of recognized field types.
var validFieldTypes = map[FieldType]bool{
	FieldTypeString:  true,
	FieldTypeInteger: true,
	FieldTypeFloat:   true,
	FieldTypeNumber:  true,
	FieldTypeBoolean: true,
	FieldTypeArray:   true,
	FieldTypeObject:  true,
	FieldTypeJSON:    true,
}

// typeAliases maps alternative spellings to canonical field types.
var typeAliases = map[string]FieldType{
	"int":    FieldTypeInteger,
	"double": FieldTypeFloat,
	"bool":   FieldTypeBoolean,
	"list":   FieldTypeArray,
	"map":    FieldTypeObject,
	"any":    FieldTypeJSON,
}

// ParseFieldType returns the canonical FieldType for a type tag.
func ParseFieldType(tag string) (FieldType, error) {
	t := strings.ToLower(strings.TrimSpace(tag))
	if ft, ok := typeAliases[t]; ok {
		return ft, nil
	}
	if validFieldTypes[FieldType(t)] {
		return FieldType(t), nil
	}
	return "", fmt.Errorf("unknown field type %q", tag)
}

// IDField is the name of the identifier field. It is exempt from type checks.
const IDField = "id"

// validIdentifier matches valid table names (alphanumeric + underscore, must start with letter or underscore).
var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// reservedTableNames share a stem with files in the data directory
// (ids.json, schema.json, error.log, mirror.db) or name the mirror's
// metadata table.
var reservedTableNames = map[string]bool{
	"ids":    true,
	"schema": true,
	"error":  true,
	"mirror": true,
	"_meta":  true,
}

// ValidTableName reports whether name can be used as a table name. Table
// names become file names, so anything else is rejected, as are names that
// would collide with the store's own files.
func ValidTableName(name string) bool {
	return validIdentifier.MatchString(name) && !reservedTableNames[name]
}

// Table defines the fields of one table.
type Table struct {
	Fields map[string]string `json:"fields" yaml:"fields"`
}

// Definition is the on-disk schema format:
//
//	{"tables": {"users": {"fields": {"name": "string", "age": "integer"}}}}
type Definition struct {
	Tables map[string]Table `json:"tables" yaml:"tables"`
}

// ReadDefinition loads and parses a schema file. Files ending in .yml or
// .yaml are parsed as YAML, everything else as JSON.
func ReadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var def Definition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, &def)
	default:
		err = json.Unmarshal(data, &def)
	}
	if err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("parsing schema: %w", err)}
	}
	return &def, nil
}

// Registry exposes the field types of every table. It is read-only once built.
type Registry struct {
	tables map[string]map[string]FieldType
	err    error
}

// Load reads the schema at path. A missing or malformed schema is logged and
// yields an empty registry, so every validated write fails until it is fixed.
func Load(path string, lg *errlog.Log) *Registry {
	def, err := ReadDefinition(path)
	if err != nil {
		lg.Error(err)
		return &Registry{tables: map[string]map[string]FieldType{}, err: err}
	}
	return New(def, lg)
}

// New builds a registry from an in-memory definition. Unknown type tags are
// logged and the field accepts any value.
func New(def *Definition, lg *errlog.Log) *Registry {
	r := &Registry{tables: make(map[string]map[string]FieldType)}
	if def == nil {
		return r
	}
	for name, table := range def.Tables {
		fields := make(map[string]FieldType, len(table.Fields))
		for field, tag := range table.Fields {
			ft, err := ParseFieldType(tag)
			if err != nil {
				cerr := &ConfigError{Err: fmt.Errorf("table %q field %q: %w", name, field, err)}
				lg.Error(cerr)
				if r.err == nil {
					r.err = cerr
				}
				ft = FieldTypeJSON
			}
			fields[field] = ft
		}
		r.tables[name] = fields
	}
	return r
}

// Err returns the configuration error encountered while loading, if any.
func (r *Registry) Err() error {
	return r.err
}

// HasTable reports whether table is defined.
func (r *Registry) HasTable(table string) bool {
	_, ok := r.tables[table]
	return ok
}

// FieldType returns the declared type of a field.
func (r *Registry) FieldType(table, field string) (FieldType, bool) {
	fields, ok := r.tables[table]
	if !ok {
		return "", false
	}
	ft, ok := fields[field]
	return ft, ok
}

// Tables returns the defined table names in sorted order.
func (r *Registry) Tables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fields returns a copy of the field definitions of table.
func (r *Registry) Fields(table string) map[string]FieldType {
	fields := r.tables[table]
	out := make(map[string]FieldType, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// Validate checks record against the schema of table.
//
// Only fields declared in the schema and present with a non-null value are
// checked; extra fields are allowed. The id field is never checked.
func (r *Registry) Validate(table string, record Record) error {
	fields, ok := r.tables[table]
	if !ok {
		return &ValidationError{Table: table, Reason: "not defined in schema"}
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name == IDField {
			continue
		}
		value, ok := record[name]
		if !ok || value == nil {
			continue
		}
		if want := fields[name]; !want.Matches(value) {
			return &ValidationError{Table: table, Field: name, Want: want, Got: KindOf(value)}
		}
	}
	return nil
}

// Matches reports whether a normalized value is of type ft.
func (ft FieldType) Matches(value any) bool {
	switch ft {
	case FieldTypeString:
		_, ok := value.(string)
		return ok
	case FieldTypeInteger:
		_, ok := value.(int64)
		return ok
	case FieldTypeFloat:
		_, ok := value.(float64)
		return ok
	case FieldTypeNumber:
		switch value.(type) {
		case int64, float64:
			return true
		}
		return false
	case FieldTypeBoolean:
		_, ok := value.(bool)
		return ok
	case FieldTypeArray:
		switch value.(type) {
		case []any, map[string]any:
			return true
		}
		return false
	case FieldTypeObject:
		_, ok := value.(map[string]any)
		return ok
	case FieldTypeJSON:
		return true
	}
	return false
}
