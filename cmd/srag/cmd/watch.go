package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/srag-go/srag/internal/output"
	"github.com/srag-go/srag/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a directory and keep its index up to date",
		Long: `Watch an indexed directory for filesystem changes and reindex modified or
deleted files as they happen, until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runWatch(cmd, path, name)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name (defaults to the directory's base name)")
	return cmd
}

func runWatch(cmd *cobra.Command, path, name string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, projectRoot())
	if err != nil {
		return err
	}
	defer a.Close()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if name == "" {
		name = filepath.Base(absPath)
	}

	pidFile := watcher.NewPIDFile(a.cfg.DataDir)
	if err := pidFile.Write(); err != nil {
		return fmt.Errorf("another watcher is already running: %w", err)
	}
	defer pidFile.Remove()

	out := output.New(cmd.OutOrStdout())
	out.Statusf("", "watching %s as project %q (ctrl-c to stop)", absPath, name)

	svc := watcher.NewService(a.catalog, a.indexer, []watcher.ProjectRoot{{Name: name, Path: absPath}}, watcher.ServiceOptions{
		DebounceMs:       a.cfg.Watcher.DebounceMs,
		IgnorePatterns:   a.cfg.IgnorePatterns,
		MaxFileSizeBytes: a.cfg.Indexing.MaxFileSizeBytes,
		BatchSize:        a.cfg.Indexing.BatchSize,
		ThrottleMs:       a.cfg.Indexing.ThrottleMs,
	})

	return svc.Run(ctx)
}
