// Package main provides the pdb CLI entry point.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matsen/plaindb/internal/config"
	"github.com/matsen/plaindb/internal/store"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool

	flagDataDir  string
	flagSchema   string
	flagLogLevel string

	// cfg is resolved once in PersistentPreRunE.
	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pdb",
	Short: "Plain JSON file document store",
	Long: `pdb stores records as JSON arrays, one file per table, in a data directory.

Inserts are checked against a schema and get an auto-incrementing id.
Records can be queried with simple filters, patched and deleted. Every
failure is also appended to error.log in the data directory.

A SQLite mirror of the tables can be built with 'pdb sync' for ad-hoc SQL.
All commands output JSON by default.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory (default $"+config.EnvDataDir+" or ./data)")
	rootCmd.PersistentFlags().StringVar(&flagSchema, "schema", "", "Schema file (default <data-dir>/schema.json)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.Version = Version
}

// setup loads .env, resolves configuration and installs the logger.
func setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	var err error
	cfg, err = config.Resolve(config.Overrides{
		DataDir:    flagDataDir,
		SchemaPath: flagSchema,
		LogLevel:   flagLogLevel,
	})
	if err != nil {
		if errors.Is(err, config.ErrInvalidDataDir) {
			fmt.Fprintln(os.Stderr, config.HelpfulConfigMessage())
		}
		exitWithError(ExitConfigError, "%v", err)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	slog.SetDefault(initLogger(level))
	slog.Debug("configuration resolved", "data_dir", cfg.DataDir, "schema", cfg.SchemaPath)
	return nil
}

// initLogger writes to stderr, colored only when stderr is a terminal.
func initLogger(level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
}

// mustOpenStore opens the store in the configured data directory, exits on error.
func mustOpenStore() *store.Store {
	s, err := store.Open(store.Options{Dir: cfg.DataDir, SchemaPath: cfg.SchemaPath})
	if err != nil {
		exitWithError(exitCodeFor(err), "opening store: %v", err)
	}
	if err := s.Schema().Err(); err != nil {
		slog.Warn("schema not usable, writes will be rejected", "err", err)
	}
	return s
}
