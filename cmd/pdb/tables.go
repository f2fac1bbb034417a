package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/plaindb/internal/store"
)

// TablesResult is the response for the tables command.
type TablesResult struct {
	Tables []store.TableInfo `json:"tables"`
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables with record counts",
	Long: `List every table declared in the schema or present in the data
directory, with its record count, file size and last allocated id.

Example:
  pdb tables --human`,
	Args: cobra.NoArgs,
	RunE: runTables,
}

func runTables(cmd *cobra.Command, args []string) error {
	s := mustOpenStore()
	infos, err := s.Tables()
	exitOnStoreError(err)

	if humanOutput {
		if len(infos) == 0 {
			fmt.Println("No tables")
			return nil
		}
		fmt.Printf("%s  %s  %s  %s\n",
			padRight("TABLE", 20), padLeft("RECORDS", 8), padLeft("LAST ID", 8), padLeft("SIZE", 10))
		for _, info := range infos {
			name := info.Name
			if !info.Defined {
				name += " *"
			}
			fmt.Printf("%s  %s  %s  %s\n",
				padRight(name, 20),
				padLeft(fmt.Sprint(info.Records), 8),
				padLeft(fmt.Sprint(info.LastID), 8),
				padLeft(formatBytes(info.Size), 10))
		}
		for _, info := range infos {
			if !info.Defined {
				fmt.Println("\n* not declared in the schema")
				break
			}
		}
	} else {
		outputJSON(TablesResult{Tables: infos})
	}

	return nil
}

// padLeft pads a string with spaces on the left.
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return fmt.Sprintf("%*s", width, s)
}
