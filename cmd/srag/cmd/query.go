package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/srag-go/srag/internal/output"
)

func newQueryCmd() *cobra.Command {
	var (
		project   string
		languages []string
	)

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a one-shot question against the indexed codebase",
		Long: `Run a single retrieval-augmented query: embed the question, search the
indexed codebase, assemble grounding context, and generate an answer.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return runQuery(cmd, question, project, languages)
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Restrict search to one indexed project")
	cmd.Flags().StringSliceVarP(&languages, "language", "l", nil, "Restrict search to these languages (repeatable)")

	return cmd
}

func runQuery(cmd *cobra.Command, question, project string, languages []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, projectRoot())
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.engine.Once(ctx, project, question, languages)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	out := output.New(cmd.OutOrStdout())
	out.Newline()
	out.Status("", result.Answer)

	if len(result.Sources) > 0 {
		out.Newline()
		out.Status("", "sources:")
		seen := make(map[string]bool)
		for _, s := range result.Sources {
			line := fmt.Sprintf("%s:%d-%d", s.FilePath, s.StartLine, s.EndLine)
			if seen[line] {
				continue
			}
			seen[line] = true
			out.Dim("  " + line)
		}
	}
	return nil
}
