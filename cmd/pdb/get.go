package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/matsen/plaindb/internal/schema"
)

func init() {
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <table> <id>",
	Short: "Get a record by id",
	Long: `Print the record of a table with the given id.

Exits with code 2 when no such record exists.

Example:
  pdb get users 1`,
	Args: cobra.ExactArgs(2),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	table := args[0]
	id, err := parseID(args[1])
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	s := mustOpenStore()
	record, found, err := s.Get(table, id)
	exitOnStoreError(err)
	if !found {
		exitWithError(ExitNotFound, "record %d not found in table '%s'", id, table)
	}

	if humanOutput {
		keys := make([]string, 0, len(record))
		for k := range record {
			if k != schema.IDField {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)

		fmt.Fprintf(os.Stdout, "%s #%d\n", table, id)
		for _, k := range keys {
			fmt.Fprintf(os.Stdout, "  %-12s %s\n", k, formatValue(record[k]))
		}
	} else {
		outputJSON(record)
	}

	return nil
}
