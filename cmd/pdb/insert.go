package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/plaindb/internal/schema"
	"github.com/matsen/plaindb/internal/store"
)

// MaxJSONLLineCapacity bounds a single line read from --stdin.
const MaxJSONLLineCapacity = 10 * 1024 * 1024

var insertFile string
var insertStdin bool

// InsertResult is the response for the insert command.
type InsertResult struct {
	Table string  `json:"table"`
	ID    int64   `json:"id,omitempty"`
	IDs   []int64 `json:"ids,omitempty"`
}

func init() {
	rootCmd.AddCommand(insertCmd)
	insertCmd.Flags().StringVarP(&insertFile, "file", "f", "", "Path to JSON/JSONL file")
	insertCmd.Flags().BoolVar(&insertStdin, "stdin", false, "Read JSONL from stdin")
}

var insertCmd = &cobra.Command{
	Use:   "insert <table> [json]",
	Short: "Insert records into a table",
	Long: `Insert one or more records into a table.

Each record is validated against the table's schema and gets the next id
of the table. Any "id" in the input is replaced.

Examples:
  # Single record from argument
  pdb insert users '{"name":"John Doe","email":"john@example.com"}'

  # From a file (JSON object, JSON array or JSONL)
  pdb insert users --file users.json

  # From stdin (JSONL)
  cat users.jsonl | pdb insert users --stdin`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runInsert,
}

func runInsert(cmd *cobra.Command, args []string) error {
	table := args[0]

	var records []store.Record
	var err error
	switch {
	case insertStdin:
		records, err = readJSONL(os.Stdin)
		if err != nil {
			exitWithError(ExitDataError, "reading from stdin: %v", err)
		}
	case insertFile != "":
		records, err = readRecordsFromFile(insertFile)
		if err != nil {
			exitWithError(ExitDataError, "reading file: %v", err)
		}
	case len(args) == 2:
		record, err := schema.DecodeRecord([]byte(args[1]))
		if err != nil {
			exitWithError(ExitDataError, "invalid JSON: %v", err)
		}
		records = []store.Record{record}
	default:
		exitWithError(ExitError, "no input provided: use inline JSON, --file, or --stdin")
	}

	s := mustOpenStore()

	var ids []int64
	for _, record := range records {
		id, err := s.Insert(table, record)
		exitOnStoreError(err)
		ids = append(ids, id)
	}

	result := InsertResult{Table: table}
	if len(ids) == 1 {
		result.ID = ids[0]
	} else {
		result.IDs = ids
		if result.IDs == nil {
			result.IDs = []int64{}
		}
	}

	if humanOutput {
		if len(ids) == 1 {
			outputHuman("Inserted record %d into '%s'\n", ids[0], table)
		} else {
			outputHuman("Inserted %d records into '%s'\n", len(ids), table)
		}
	} else {
		outputJSON(result)
	}

	return nil
}

// readJSONL reads one JSON object per non-empty line.
func readJSONL(r io.Reader) ([]store.Record, error) {
	var records []store.Record
	scanner := bufio.NewScanner(r)

	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		record, err := schema.DecodeRecord(line)
		if err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		records = append(records, record)
	}

	return records, scanner.Err()
}

// readRecordsFromFile reads records from a JSON array, a single JSON object
// or a JSONL file.
func readRecordsFromFile(path string) ([]store.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if v, err := schema.DecodeValue(data); err == nil {
		switch t := v.(type) {
		case map[string]any:
			return []store.Record{t}, nil
		case []any:
			records := make([]store.Record, 0, len(t))
			for i, item := range t {
				m, ok := item.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("element %d: expected a JSON object, got %s", i, schema.KindOf(item))
				}
				records = append(records, m)
			}
			return records, nil
		}
	}

	// Fall back to JSONL
	return readJSONL(bytes.NewReader(data))
}
