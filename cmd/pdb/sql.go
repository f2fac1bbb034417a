package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/plaindb/internal/mirror"
)

var sqlCSV bool
var sqlJSONL bool

func init() {
	rootCmd.AddCommand(sqlCmd)
	sqlCmd.Flags().BoolVar(&sqlCSV, "csv", false, "Output CSV")
	sqlCmd.Flags().BoolVar(&sqlJSONL, "jsonl", false, "Output JSONL")
}

var sqlCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Query the SQLite mirror with SQL",
	Long: `Execute a SQL query against the SQLite mirror built by 'pdb sync'.

Each table is a SQL table with an integer "id" primary key and one column
per field. Booleans are stored as 0/1, arrays and objects as JSON text.
Fails when a table file changed since the last sync.

Examples:
  pdb sql "SELECT name, age FROM users WHERE age > 25"
  pdb sql "SELECT u.name, p.title FROM posts p JOIN users u ON u.id = p.author" --csv`,
	Args: cobra.ExactArgs(1),
	RunE: runSQL,
}

func runSQL(cmd *cobra.Command, args []string) error {
	s := mustOpenStore()
	m := mirror.New(s, "")

	if _, err := os.Stat(m.Path()); os.IsNotExist(err) {
		exitWithError(ExitConfigError, "mirror not built, run 'pdb sync' first")
	}

	infos, err := s.Tables()
	exitOnStoreError(err)
	for _, info := range infos {
		stale, err := m.NeedsSync(info.Name)
		if err != nil {
			exitWithError(ExitError, "checking sync status: %v", err)
		}
		if stale && info.Size > 0 {
			exitWithError(ExitError, "table '%s' not synced, run 'pdb sync %s' first", info.Name, info.Name)
		}
	}

	records, err := m.Query(args[0])
	if err != nil {
		exitWithError(ExitError, "SQL error: %v", err)
	}

	switch {
	case sqlCSV:
		err = writeCSV(os.Stdout, records)
	case sqlJSONL:
		err = writeJSONL(os.Stdout, records)
	case humanOutput:
		writeTable(os.Stdout, records)
	default:
		err = outputJSON(records)
	}
	if err != nil {
		exitWithError(ExitError, "writing output: %v", err)
	}

	return nil
}
