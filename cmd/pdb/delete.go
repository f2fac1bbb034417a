package main

import (
	"github.com/spf13/cobra"
)

// DeleteResult is the response for the delete command.
type DeleteResult struct {
	Table   string `json:"table"`
	ID      int64  `json:"id"`
	Deleted bool   `json:"deleted"`
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

var deleteCmd = &cobra.Command{
	Use:   "delete <table> <id>",
	Short: "Delete a record by id",
	Long: `Remove the record with the given id from a table.

Deleted ids are never reused. Deleting an id that does not exist is not an
error and reports "deleted": false.

Example:
  pdb delete users 1`,
	Args: cobra.ExactArgs(2),
	RunE: runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	table := args[0]
	id, err := parseID(args[1])
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	s := mustOpenStore()
	deleted, err := s.Delete(table, id)
	exitOnStoreError(err)

	result := DeleteResult{Table: table, ID: id, Deleted: deleted}
	if humanOutput {
		if deleted {
			outputHuman("Deleted record %d from '%s'\n", id, table)
		} else {
			outputHuman("No record %d in '%s' (nothing deleted)\n", id, table)
		}
	} else {
		outputJSON(result)
	}

	return nil
}
