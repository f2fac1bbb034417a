package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/plaindb/internal/mirror"
)

var syncForce bool

// SyncResult is the response for the sync command.
type SyncResult struct {
	Mirror  string              `json:"mirror"`
	Results []mirror.SyncResult `json:"results"`
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVarP(&syncForce, "force", "f", false, "Rebuild tables even when unchanged")
}

var syncCmd = &cobra.Command{
	Use:   "sync [table...]",
	Short: "Rebuild the SQLite mirror",
	Long: `Copy tables into the SQLite mirror (mirror.db in the data directory) so
they can be queried with 'pdb sql'. The JSON files stay the source of truth.

Tables whose file is unchanged since the last sync are skipped unless
--force is given. With no table names every table is synced.

Examples:
  pdb sync
  pdb sync users posts --force`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	s := mustOpenStore()
	m := mirror.New(s, "")

	results, err := m.Sync(syncForce, args...)
	if err != nil {
		exitWithError(ExitError, "syncing mirror: %v", err)
	}

	if humanOutput {
		for _, r := range results {
			if r.Skipped {
				fmt.Printf("'%s' already in sync (skipped)\n", r.Table)
			} else {
				fmt.Printf("Synced '%s': %d records (rebuilt)\n", r.Table, r.Records)
			}
		}
		if len(results) == 0 {
			fmt.Println("No tables")
		}
	} else {
		outputJSON(SyncResult{Mirror: m.Path(), Results: results})
	}

	return nil
}
