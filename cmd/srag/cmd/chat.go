package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srag-go/srag/pkg/repl"
)

func newChatCmd() *cobra.Command {
	var (
		project   string
		languages []string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session grounded in the indexed codebase",
		Long: `Start a read-generate-respond loop: each line you type is answered with
context retrieved from the indexed codebase, and the conversation is kept
as a named session you can resume later with --session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, project, languages, sessionID)
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Restrict search to one indexed project")
	cmd.Flags().StringSliceVarP(&languages, "language", "l", nil, "Restrict search to these languages (repeatable)")
	cmd.Flags().StringVar(&sessionID, "session", "default", "Session id to resume or create")

	return cmd
}

func runChat(cmd *cobra.Command, project string, languages []string, sessionID string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, projectRoot())
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "session %q — type 'exit' or 'quit' to end\n\n", sessionID)

	err = a.engine.Chat(ctx, repl.ChatOptions{
		SessionID: sessionID,
		Project:   project,
		Languages: languages,
	}, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	return nil
}
