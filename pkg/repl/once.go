package repl

import (
	"context"
	"log/slog"

	"github.com/srag-go/srag/internal/contextbuilder"
	"github.com/srag-go/srag/internal/promptbuilder"
)

// Once runs a single query against project (empty means every indexed
// project) and returns the generated answer with its grounding sources.
// Grounded on original_source/crates/srag-core/src/query/mod.rs's
// query_once: embed, dense+sparse search, optional rerank, assemble
// context, build prompt with no history, generate, canary-check.
func (e *Engine) Once(ctx context.Context, project, query string, languages []string) (Result, error) {
	resolved, err := e.retrieve(ctx, query, project, languages)
	if err != nil {
		return Result{}, err
	}

	contextText := contextbuilder.Assemble(toContextEntries(resolved), e.Query.ContextTokens)
	built := promptbuilder.Build(query, contextText, nil)

	answer, err := e.Client.Generate(built.Text, e.Query.MaxTokens, e.Query.Temperature)
	if err != nil {
		return Result{}, err
	}

	if promptbuilder.CheckCanary(answer, built.Canary) {
		slog.Warn("canary_detected", slog.String("component", "repl.once"))
	}

	return Result{Answer: answer, Sources: toSources(resolved)}, nil
}
