package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/plaindb/internal/schema"
)

// PatchResult is the response for the patch command.
type PatchResult struct {
	Table   string `json:"table"`
	ID      int64  `json:"id"`
	Updated bool   `json:"updated"`
}

func init() {
	rootCmd.AddCommand(patchCmd)
}

var patchCmd = &cobra.Command{
	Use:   "patch <table> <id> <json>",
	Short: "Merge fields into a record",
	Long: `Overwrite the given fields of a record, keeping the others.

The fields are validated against the table's schema. An "id" field in the
patch is ignored. Patching an id that does not exist changes nothing and
reports "updated": false.

Example:
  pdb patch posts 1 '{"body":"Updated post content."}'`,
	Args: cobra.ExactArgs(3),
	RunE: runPatch,
}

func runPatch(cmd *cobra.Command, args []string) error {
	table := args[0]
	id, err := parseID(args[1])
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	data, err := schema.DecodeRecord([]byte(args[2]))
	if err != nil {
		exitWithError(ExitDataError, "invalid JSON: %v", err)
	}

	s := mustOpenStore()
	updated, err := s.Patch(table, id, data)
	exitOnStoreError(err)

	result := PatchResult{Table: table, ID: id, Updated: updated}
	if humanOutput {
		if updated {
			outputHuman("Patched record %d in '%s'\n", id, table)
		} else {
			outputHuman("No record %d in '%s' (nothing patched)\n", id, table)
		}
	} else {
		outputJSON(result)
	}

	return nil
}
