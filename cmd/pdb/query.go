package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/plaindb/internal/query"
)

var queryCSV bool
var queryJSONL bool

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().BoolVar(&queryCSV, "csv", false, "Output CSV")
	queryCmd.Flags().BoolVar(&queryJSONL, "jsonl", false, "Output JSONL")
}

var queryCmd = &cobra.Command{
	Use:   "query <table> [filter]",
	Short: "Query a table with a filter",
	Long: `Return the records of a table that match a filter, in insertion order.

The filter is a JSON object mapping field names to conditions. A literal
value matches by equality (type sensitive: 30 and 30.0 differ). An object
with a single operator compares instead:

  {"eq": v}   equal to v
  {"gt": v}   greater than v
  {"lt": v}   less than v

Numbers compare numerically, strings lexicographically. Records missing a
filtered field never match. With no filter every record is returned.

Examples:
  pdb query users
  pdb query users '{"name":"John"}'
  pdb query users '{"age":{"gt":25}}' --csv`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	table := args[0]

	var pred query.Predicate
	if len(args) == 2 {
		var err error
		pred, err = query.ParsePredicate([]byte(args[1]))
		if err != nil {
			exitWithError(ExitDataError, "invalid filter: %v", err)
		}
	}

	s := mustOpenStore()
	records, err := s.Query(table, pred)
	exitOnStoreError(err)

	switch {
	case queryCSV:
		err = writeCSV(os.Stdout, records)
	case queryJSONL:
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
