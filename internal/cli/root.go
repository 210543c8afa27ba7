// Package cli provides the command-line interface for wpmigrate.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cinedata/wpmigrate/internal/cli/commands"
	"github.com/cinedata/wpmigrate/internal/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Exit codes. Success includes success-with-anomalies: anomalies are
// report content, not failures.
const (
	ExitOK            = 0
	ExitFatal         = 1
	ExitInvalidConfig = 2
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wpmigrate",
		Short: "wpmigrate - legacy CMS to relational schema migration",
		Long: `wpmigrate moves reference data out of a legacy WordPress-style store
(posts, keyed metadata, parent-linked taxonomy) into a normalized
relational schema, preserving referential integrity while every
identifier changes.

Runs are chunked, resumable, and idempotent: re-running after an
interruption skips everything a previous run already migrated.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			if cfg.Verbose && config.FileUsed() != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", config.FileUsed())
			}

			cmd.SetContext(commands.WithRuntime(cmd.Context(), &commands.Runtime{
				Cfg:    cfg,
				Logger: logger,
			}))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./wpmigrate.yaml)")
	rootCmd.PersistentFlags().Int("chunk-size", config.DefaultChunkSize, "records per committed chunk")
	rootCmd.PersistentFlags().String("state", "", "path to the local run-history database")
	rootCmd.PersistentFlags().String("report-dir", "", "directory for run reports")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewPlanCommand())
	rootCmd.AddCommand(commands.NewDoctorCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit, BuildDate))

	return rootCmd
}

// Execute runs the root command and maps its error to an exit code.
func Execute() int {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, config.ErrInvalidConfig) {
			return ExitInvalidConfig
		}
		return ExitFatal
	}
	return ExitOK
}
