package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/srag-go/srag/internal/output"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
	}
	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsPruneCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List chat sessions, most recently used first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, projectRoot())
			if err != nil {
				return err
			}
			defer a.Close()

			infos, err := a.engine.Sessions.List(ctx)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if len(infos) == 0 {
				out.Status("", "no sessions")
				return nil
			}
			for _, info := range infos {
				validity := ""
				if !info.Valid {
					validity = " (project no longer exists)"
				}
				out.Status("", fmt.Sprintf("%-20s project=%-12s last used %s%s",
					info.ID, info.Project, info.LastUsed.Format(time.RFC3339), validity))
			}
			return nil
		},
	}
}

func newSessionsPruneCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete sessions whose last turn is older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, projectRoot())
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.engine.Sessions.Prune(ctx, olderThan)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("pruned %d session(s)", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Prune sessions not used within this duration")
	return cmd
}
