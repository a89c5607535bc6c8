// Package repl provides the two public entry points downstream callers
// (the cmd/srag CLI, or any other embedder) drive the retrieval-and-
// generate pipeline through: a one-shot query and an interactive chat
// REPL. Both are thin orchestration over internal/retriever,
// internal/contextbuilder, internal/promptbuilder, internal/mlclient, and
// internal/session — the CLI surface itself (flag parsing, interactive
// readline wiring) stays a collaborator's concern per spec.md §1.
package repl

import (
	"context"
	"fmt"

	"github.com/srag-go/srag/internal/catalog"
	"github.com/srag-go/srag/internal/config"
	"github.com/srag-go/srag/internal/contextbuilder"
	"github.com/srag-go/srag/internal/mlclient"
	"github.com/srag-go/srag/internal/retriever"
	"github.com/srag-go/srag/internal/session"
	"github.com/srag-go/srag/internal/srerrors"
	"github.com/srag-go/srag/internal/vectorindex"
)

// EmbeddingDimension is the fixed vector width C6/C7 agree on.
const EmbeddingDimension = 384

// Result is a single query's answer plus the sources that grounded it.
type Result struct {
	Answer  string
	Sources []SourceReference
}

// SourceReference names one chunk of context the answer drew on.
type SourceReference struct {
	FilePath  string
	StartLine int
	EndLine   int
	Symbol    string
}

// Engine bundles the components one query or chat turn needs. It holds no
// per-session state itself — Chat threads a session id through every turn.
type Engine struct {
	Catalog   *catalog.Catalog
	Client    *mlclient.Client
	VectorDir string
	Sessions  *session.Manager
	Query     config.QueryConfig
}

// resolveProjectFilter returns the set of file paths to restrict results
// to, or nil for no restriction, mirroring the reference REPL's
// allowed_files construction from list_project_files.
func (e *Engine) resolveProjectFilter(ctx context.Context, project string) (map[string]bool, error) {
	if project == "" {
		return nil, nil
	}
	p, err := e.Catalog.GetProjectByName(ctx, project)
	if err != nil {
		return nil, srerrors.New(srerrors.Query, "project_not_found", "project '"+project+"' not found")
	}
	paths, err := e.Catalog.ListProjectFilePaths(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set, nil
}

// retrieve runs the shared dense+sparse search, fusion, optional rerank,
// and project/language filter steps that both Once and Chat need.
func (e *Engine) retrieve(ctx context.Context, query, project string, languages []string) ([]retriever.ResolvedResult, error) {
	queryVecs, err := e.Client.Embed([]string{query})
	if err != nil {
		return nil, err
	}
	if len(queryVecs) == 0 {
		return nil, srerrors.New(srerrors.IPC, "no_embedding", "no embedding returned for query")
	}

	searchK := e.Query.TopK
	if e.Query.Rerank {
		searchK = e.Query.BroadK
	}

	denseResults, err := vectorindex.SearchCached(e.VectorDir, EmbeddingDimension, e.Catalog, queryVecs[0], searchK, e.Query.EfSearch)
	if err != nil {
		return nil, err
	}
	dense := make([]retriever.DenseHit, len(denseResults))
	for i, r := range denseResults {
		dense[i] = retriever.DenseHit{EmbeddingID: r.ID, Distance: r.Distance}
	}

	var chunkIDs []int64
	if e.Query.HybridSearch {
		ftsHits, err := e.Catalog.SearchFTSProject(ctx, query, project, searchK, 0)
		if err != nil {
			return nil, err
		}
		sparse := make([]retriever.SparseHit, len(ftsHits))
		for i, h := range ftsHits {
			sparse[i] = retriever.SparseHit{ChunkID: h.ChunkID, Rank: h.Rank}
		}
		chunkIDs, err = retriever.Fuse(ctx, e.Catalog, dense, sparse, searchK)
		if err != nil {
			return nil, err
		}
	} else {
		chunkIDs = make([]int64, 0, len(dense))
		for _, hit := range dense {
			id, ok, err := e.Catalog.ChunkIDForEmbedding(ctx, hit.EmbeddingID)
			if err != nil {
				return nil, err
			}
			if ok {
				chunkIDs = append(chunkIDs, id)
			}
		}
	}

	resolved, err := retriever.ResolveResults(ctx, e.Catalog, chunkIDs)
	if err != nil {
		return nil, err
	}

	if project != "" {
		projectFiles, err := e.resolveProjectFilter(ctx, project)
		if err != nil {
			return nil, err
		}
		resolved = retriever.FilterByProject(resolved, projectFiles)
	}
	resolved = retriever.FilterByLanguage(resolved, languages)

	resolved = retriever.Rerank(mlclientReranker{e.Client}, e.Query.Rerank, query, resolved, e.Query.TopK)
	return resolved, nil
}

// mlclientReranker adapts *mlclient.Client's Rerank signature to
// retriever.Reranker without retriever importing mlclient directly.
type mlclientReranker struct{ client *mlclient.Client }

func (r mlclientReranker) Rerank(query string, documents []string, topK int) ([]retriever.RerankedPair, error) {
	ranked, err := r.client.Rerank(query, documents, topK)
	if err != nil {
		return nil, err
	}
	pairs := make([]retriever.RerankedPair, len(ranked))
	for i, rr := range ranked {
		pairs[i] = retriever.RerankedPair{Index: rr.Index, Score: rr.Score}
	}
	return pairs, nil
}

func toSources(results []retriever.ResolvedResult) []SourceReference {
	sources := make([]SourceReference, len(results))
	for i, r := range results {
		sources[i] = SourceReference{
			FilePath:  r.FilePath,
			StartLine: r.Chunk.StartLine,
			EndLine:   r.Chunk.EndLine,
			Symbol:    r.Chunk.Symbol,
		}
	}
	return sources
}

func toContextEntries(results []retriever.ResolvedResult) []contextbuilder.Entry {
	entries := make([]contextbuilder.Entry, len(results))
	for i, r := range results {
		entries[i] = contextbuilder.Entry{Chunk: r.Chunk, FilePath: r.FilePath}
	}
	return entries
}

// formatSourceLine renders one dedup key for a chat turn's source listing.
func formatSourceLine(s SourceReference) string {
	return fmt.Sprintf("%s:%d-%d", s.FilePath, s.StartLine, s.EndLine)
}

func dedupSourceLines(results []retriever.ResolvedResult) []string {
	seen := make(map[string]bool)
	var lines []string
	for _, r := range results {
		line := formatSourceLine(SourceReference{FilePath: r.FilePath, StartLine: r.Chunk.StartLine, EndLine: r.Chunk.EndLine})
		if !seen[line] {
			seen[line] = true
			lines = append(lines, line)
		}
	}
	return lines
}
