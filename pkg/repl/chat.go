package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/srag-go/srag/internal/contextbuilder"
	"github.com/srag-go/srag/internal/model"
	"github.com/srag-go/srag/internal/promptbuilder"
)

// ChatOptions configures one Chat invocation.
type ChatOptions struct {
	SessionID string // empty: caller must supply one (no UUID generation here)
	Project   string // empty: search across every indexed project
	Languages []string
}

// Chat runs an interactive read-generate-respond loop over in/out until in
// is exhausted (EOF) or ctx is cancelled, appending each user/assistant
// pair to the session's turn history. Line reading, the "you> " prompt and
// loading recent turns as history are handled here; terminal handling
// (readline, ctrl-C) is left to the caller — this loop only needs an
// io.Reader/io.Writer pair.
//
// Grounded on original_source/crates/srag-core/src/query/mod.rs's
// run_chat_repl: per turn, embed, dense+sparse search, project/language
// filter, optional rerank, assemble context, fetch recent turns as
// history, build prompt, generate, canary-check, print answer and sources,
// then persist both turns.
func (e *Engine) Chat(ctx context.Context, opts ChatOptions, in io.Reader, out io.Writer) error {
	if _, err := e.Sessions.Open(ctx, opts.SessionID, opts.Project); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "quit" || query == "exit" {
			break
		}

		resolved, err := e.retrieve(ctx, query, opts.Project, opts.Languages)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n\n", err)
			continue
		}

		contextText := contextbuilder.Assemble(toContextEntries(resolved), e.Query.ContextTokens)

		history, err := e.Sessions.RecentTurns(ctx, opts.SessionID, e.Query.HistoryTurns)
		if err != nil {
			history = nil
		}

		built := promptbuilder.Build(query, contextText, history)

		answer, err := e.Client.Generate(built.Text, e.Query.MaxTokens, e.Query.Temperature)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n\n", err)
			continue
		}

		if promptbuilder.CheckCanary(answer, built.Canary) {
			slog.Warn("canary_detected", slog.String("component", "repl.chat"))
			fmt.Fprintln(out, "[warning: response may be influenced by injected content in source files]")
		}

		fmt.Fprintf(out, "\nsrag> %s\n", answer)

		if sourceLines := dedupSourceLines(resolved); len(sourceLines) > 0 {
			fmt.Fprintln(out, "\nsources:")
			for _, line := range sourceLines {
				fmt.Fprintf(out, "  %s\n", line)
			}
		}
		fmt.Fprintln(out)

		if _, err := e.Sessions.AppendTurn(ctx, opts.SessionID, model.RoleUser, query, ""); err != nil {
			slog.Warn("append_turn_failed", slog.String("role", "user"), slog.String("error", err.Error()))
		}
		if _, err := e.Sessions.AppendTurn(ctx, opts.SessionID, model.RoleAssistant, answer, strings.Join(dedupSourceLines(resolved), ",")); err != nil {
			slog.Warn("append_turn_failed", slog.String("role", "assistant"), slog.String("error", err.Error()))
		}
	}

	return scanner.Err()
}
