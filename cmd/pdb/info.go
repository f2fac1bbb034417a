package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/plaindb/internal/mirror"
	"github.com/matsen/plaindb/internal/schema"
)

// InfoResult is the response for the info command.
type InfoResult struct {
	DataDir      string                                 `json:"data_dir"`
	SchemaPath   string                                 `json:"schema_path"`
	SchemaError  string                                 `json:"schema_error,omitempty"`
	ErrorLog     string                                 `json:"error_log"`
	ErrorLogSize int64                                  `json:"error_log_size"`
	Counters     map[string]int64                       `json:"counters"`
	Schema       map[string]map[string]schema.FieldType `json:"schema"`
	MirrorPath   string                                 `json:"mirror_path"`
	LastSync     *time.Time                             `json:"last_sync,omitempty"`
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show data directory, schema and id counters",
	Long: `Display the resolved data directory, the schema in effect, the id
counters of every table and the state of the SQLite mirror.

Example:
  pdb info --human`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	s := mustOpenStore()

	counters, err := s.IDs().State()
	exitOnStoreError(err)

	result := InfoResult{
		DataDir:    s.Dir(),
		SchemaPath: cfg.SchemaPath,
		ErrorLog:   s.Log().Path(),
		Counters:   counters,
		Schema:     make(map[string]map[string]schema.FieldType),
	}
	if err := s.Schema().Err(); err != nil {
		result.SchemaError = err.Error()
	}
	for _, table := range s.Schema().Tables() {
		result.Schema[table] = s.Schema().Fields(table)
	}
	if stat, err := os.Stat(result.ErrorLog); err == nil {
		result.ErrorLogSize = stat.Size()
	}

	m := mirror.New(s, "")
	result.MirrorPath = m.Path()
	if _, err := os.Stat(m.Path()); err == nil {
		if last, err := m.LastSync(); err == nil && !last.IsZero() {
			result.LastSync = &last
		}
	}

	if humanOutput {
		fmt.Printf("Data dir:  %s\n", result.DataDir)
		fmt.Printf("Schema:    %s\n", result.SchemaPath)
		if result.SchemaError != "" {
			fmt.Printf("           (%s)\n", result.SchemaError)
		}
		fmt.Printf("Error log: %s (%s)\n", result.ErrorLog, formatBytes(result.ErrorLogSize))
		if result.LastSync != nil {
			fmt.Printf("Mirror:    %s (last sync %s)\n", result.MirrorPath, result.LastSync.Format(time.RFC3339))
		} else {
			fmt.Printf("Mirror:    not built (run 'pdb sync')\n")
		}

		for _, table := range s.Schema().Tables() {
			fmt.Printf("\n%s (last id %d):\n", table, counters[table])
			fields := result.Schema[table]
			for _, name := range sortedKeys(fields) {
				fmt.Printf("  %-12s %s\n", name, fields[name])
			}
		}
	} else {
		outputJSON(result)
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
