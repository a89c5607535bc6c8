// Package cmd provides the CLI commands for srag.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/srag-go/srag/internal/logging"
	"github.com/srag-go/srag/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the srag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "srag",
		Short: "Local-first code search and retrieval engine",
		Long: `srag indexes a codebase locally (hybrid BM25 + vector search plus a
call graph) and answers questions about it, grounded entirely in your own
machine: no code or query ever leaves it unless you've configured a remote
generation provider.`,
		Version: version.Version,
	}
	cmd.SetVersionTemplate("srag version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to the data directory's logs/")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
