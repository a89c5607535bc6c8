// Package retriever implements hybrid retrieval (C9): reciprocal rank
// fusion of dense (vector) and sparse (FTS) hits, resolution through the
// catalog, optional ML reranking, and project/language filtering.
//
// Fuse's overall shape — score accumulation followed by a deterministic
// sort — follows the teacher's internal/search/fusion.go, which builds a
// map of scores and then calls sort.Slice with an explicit tie-break
// chain rather than relying on map range order. The tie-break rule itself
// differs: ties here are broken by insertion (first-seen) order across
// the dense list then the sparse list, matching the documented RRF
// example (equal-scoring dense and sparse-only hits keep the order they
// were first produced in, rather than an arbitrary secondary key).
package retriever

import (
	"context"
	"sort"
	"strings"

	"github.com/srag-go/srag/internal/model"
)

// RRFConstant is the standard RRF smoothing parameter (K=60).
const RRFConstant = 60

// DenseHit is one approximate-nearest-neighbour result, keyed by embedding
// id (the vector index's native key).
type DenseHit struct {
	EmbeddingID int64
	Distance    float32
}

// SparseHit is one full-text result, keyed directly by chunk id.
type SparseHit struct {
	ChunkID int64
	Rank    float64
}

// ResolvedResult pairs a resolved chunk with its owning file's path.
type ResolvedResult struct {
	Chunk    model.Chunk
	FilePath string
}

// Catalog is the subset of *catalog.Catalog the retriever depends on.
type Catalog interface {
	ChunkIDForEmbedding(ctx context.Context, embeddingID int64) (int64, bool, error)
	GetChunk(ctx context.Context, chunkID int64) (model.Chunk, string, bool, error)
}

// Reranker is the subset of *mlclient.Client the retriever depends on.
type Reranker interface {
	Rerank(query string, documents []string, topK int) ([]RerankedPair, error)
}

// RerankedPair mirrors mlclient.RerankedResult without importing mlclient,
// keeping retriever decoupled from the wire-protocol package.
type RerankedPair struct {
	Index int
	Score float32
}

// ResolveResults dereferences each chunk id through the catalog, skipping
// ids whose chunk no longer exists (deleted since the hit was produced).
func ResolveResults(ctx context.Context, catalog Catalog, chunkIDs []int64) ([]ResolvedResult, error) {
	results := make([]ResolvedResult, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		chunk, path, ok, err := catalog.GetChunk(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		results = append(results, ResolvedResult{Chunk: chunk, FilePath: path})
	}
	return results, nil
}

// Fuse combines dense and sparse hits via reciprocal rank fusion, mapping
// dense embedding ids to chunk ids via the catalog first, then returns
// chunk ids sorted by aggregated score descending. Ties are broken by
// insertion order: a chunk id is "seen" the first time it appears, walking
// the dense list before the sparse list and each list in rank order, and a
// stable sort preserves that relative order among equal scores.
func Fuse(ctx context.Context, catalog Catalog, dense []DenseHit, sparse []SparseHit, topK int) ([]int64, error) {
	scores := make(map[int64]float64)
	order := make([]int64, 0)
	seen := make(map[int64]bool)

	note := func(chunkID int64, rank int) {
		scores[chunkID] += 1.0 / float64(RRFConstant+rank+1)
		if !seen[chunkID] {
			seen[chunkID] = true
			order = append(order, chunkID)
		}
	}

	for rank, hit := range dense {
		chunkID, ok, err := catalog.ChunkIDForEmbedding(ctx, hit.EmbeddingID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		note(chunkID, rank)
	}

	for rank, hit := range sparse {
		note(hit.ChunkID, rank)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	if topK > 0 && len(order) > topK {
		order = order[:topK]
	}
	return order, nil
}

// Rerank reorders results by the ML worker's rerank endpoint when enabled
// and there is more than one candidate. A rerank failure is tolerated: the
// original fused order is kept and truncated to topK.
func Rerank(reranker Reranker, enabled bool, query string, results []ResolvedResult, topK int) []ResolvedResult {
	if !enabled || len(results) <= 1 {
		return truncate(results, topK)
	}

	documents := make([]string, len(results))
	for i, r := range results {
		documents[i] = r.Chunk.Content
	}

	ranked, err := reranker.Rerank(query, documents, topK)
	if err != nil {
		return truncate(results, topK)
	}

	reordered := make([]ResolvedResult, 0, len(ranked))
	for _, pair := range ranked {
		if pair.Index < 0 || pair.Index >= len(results) {
			continue
		}
		reordered = append(reordered, results[pair.Index])
	}
	return truncate(reordered, topK)
}

func truncate(results []ResolvedResult, topK int) []ResolvedResult {
	if topK > 0 && len(results) > topK {
		return results[:topK]
	}
	return results
}

// FilterByProject intersects results with the given project's set of file
// paths (already resolved by the caller from the catalog).
func FilterByProject(results []ResolvedResult, projectPaths map[string]bool) []ResolvedResult {
	if projectPaths == nil {
		return results
	}
	filtered := make([]ResolvedResult, 0, len(results))
	for _, r := range results {
		if projectPaths[r.FilePath] {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// FilterByLanguage keeps only results whose chunk language case-
// insensitively matches one of allowed. An empty allowlist means no
// filtering.
func FilterByLanguage(results []ResolvedResult, allowed []string) []ResolvedResult {
	if len(allowed) == 0 {
		return results
	}
	allowSet := make(map[string]bool, len(allowed))
	for _, lang := range allowed {
		allowSet[strings.ToLower(lang)] = true
	}
	filtered := make([]ResolvedResult, 0, len(results))
	for _, r := range results {
		if allowSet[strings.ToLower(r.Chunk.Language)] {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
