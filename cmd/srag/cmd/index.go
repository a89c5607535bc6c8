package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srag-go/srag/internal/indexer"
	"github.com/srag-go/srag/internal/output"
)

func newIndexCmd() *cobra.Command {
	var (
		name  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a directory for searching",
		Long: `Index a directory so it can be searched and used as context for queries.

This walks the directory (skipping the configured ignore_patterns; .gitignore
files are not read), chunks source files,
generates embeddings, and records a call graph, all under one project
name (the directory's base name unless --name overrides it).

Use --force to clear the project's existing index data and rebuild from
scratch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runIndex(cmd.Context(), cmd, path, name, force)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name (defaults to the directory's base name)")
	cmd.Flags().BoolVar(&force, "force", false, "Clear existing index data and rebuild from scratch")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path, name string, force bool) error {
	a, err := newApp(ctx, projectRoot())
	if err != nil {
		return err
	}
	defer a.Close()

	out := output.New(cmd.OutOrStdout())

	opts := indexer.Options{
		Name:             name,
		Force:            force,
		MaxFileSizeBytes: a.cfg.Indexing.MaxFileSizeBytes,
		BatchSize:        a.cfg.Indexing.BatchSize,
		ThrottleMs:       a.cfg.Indexing.ThrottleMs,
		IgnorePatterns:   a.cfg.IgnorePatterns,
		Progress: func(project string, current, total int, relPath string) {
			out.Progress(current, total, relPath)
		},
	}

	stats, err := a.indexer.Index(ctx, path, opts)
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}

	out.Newline()
	out.Successf("indexed %d files (%d skipped, %d errored)", stats.Indexed, stats.Skipped, stats.Errored)
	return nil
}
