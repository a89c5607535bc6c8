package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/srag-go/srag/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	chunks           map[int64]model.Chunk
	paths            map[int64]string
	embeddingToChunk map[int64]int64
}

func (f *fakeCatalog) ChunkIDForEmbedding(ctx context.Context, embeddingID int64) (int64, bool, error) {
	id, ok := f.embeddingToChunk[embeddingID]
	return id, ok, nil
}

func (f *fakeCatalog) GetChunk(ctx context.Context, chunkID int64) (model.Chunk, string, bool, error) {
	chunk, ok := f.chunks[chunkID]
	if !ok {
		return model.Chunk{}, "", false, nil
	}
	return chunk, f.paths[chunkID], true, nil
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		chunks:           map[int64]model.Chunk{},
		paths:            map[int64]string{},
		embeddingToChunk: map[int64]int64{},
	}
}

func TestResolveResults_SkipsMissing(t *testing.T) {
	cat := newFakeCatalog()
	cat.chunks[1] = model.Chunk{ID: 1, Content: "a"}
	cat.paths[1] = "a.go"

	results, err := ResolveResults(context.Background(), cat, []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].Chunk.ID)
	assert.Equal(t, "a.go", results[0].FilePath)
}

func TestFuse_CombinesDenseAndSparse(t *testing.T) {
	cat := newFakeCatalog()
	cat.embeddingToChunk[100] = 1
	cat.embeddingToChunk[101] = 2

	dense := []DenseHit{{EmbeddingID: 100}, {EmbeddingID: 101}}
	sparse := []SparseHit{{ChunkID: 1}, {ChunkID: 3}}

	ids, err := Fuse(context.Background(), cat, dense, sparse, 10)
	require.NoError(t, err)

	// chunk 1 appears in both lists at rank 0 in each, so it should score
	// highest and come first.
	require.NotEmpty(t, ids)
	assert.Equal(t, int64(1), ids[0])
}

func TestFuse_SkipsUnresolvedEmbeddings(t *testing.T) {
	cat := newFakeCatalog()
	dense := []DenseHit{{EmbeddingID: 999}}
	ids, err := Fuse(context.Background(), cat, dense, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFuse_DeterministicTieBreakByRank(t *testing.T) {
	cat := newFakeCatalog()
	// two chunks at ranks 0 and 1 of a single sparse list
	sparse := []SparseHit{{ChunkID: 5}, {ChunkID: 2}}
	ids, err := Fuse(context.Background(), cat, nil, sparse, 10)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	// rank 0 scores higher than rank 1, so 5 (first list position) should
	// precede 2 regardless of map iteration order.
	assert.Equal(t, int64(5), ids[0])
	assert.Equal(t, int64(2), ids[1])
}

func TestFuse_TieBrokenByInsertionOrder(t *testing.T) {
	// Mirrors the documented hybrid-retrieval scenario: chunk A is
	// dense-only at rank 0, chunk B is sparse-only at rank 0, chunk C is
	// in both lists at rank 1. Fused order must be C, A, B: C scores
	// 2/62, A and B tie at 1/61 each but A was seen first (dense list
	// precedes sparse list).
	const (
		chunkA int64 = 1
		chunkB int64 = 2
		chunkC int64 = 3
	)
	cat := newFakeCatalog()
	cat.embeddingToChunk[10] = chunkA
	cat.embeddingToChunk[11] = chunkC

	dense := []DenseHit{{EmbeddingID: 10}, {EmbeddingID: 11}}
	sparse := []SparseHit{{ChunkID: chunkB}, {ChunkID: chunkC}}

	ids, err := Fuse(context.Background(), cat, dense, sparse, 10)
	require.NoError(t, err)
	require.Equal(t, []int64{chunkC, chunkA, chunkB}, ids)
}

func TestFuse_TruncatesToTopK(t *testing.T) {
	cat := newFakeCatalog()
	sparse := []SparseHit{{ChunkID: 1}, {ChunkID: 2}, {ChunkID: 3}}
	ids, err := Fuse(context.Background(), cat, nil, sparse, 2)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

type fakeReranker struct {
	pairs []RerankedPair
	err   error
}

func (f *fakeReranker) Rerank(query string, documents []string, topK int) ([]RerankedPair, error) {
	return f.pairs, f.err
}

func TestRerank_ReordersByReturnedIndices(t *testing.T) {
	results := []ResolvedResult{
		{Chunk: model.Chunk{ID: 1, Content: "a"}},
		{Chunk: model.Chunk{ID: 2, Content: "b"}},
	}
	reranker := &fakeReranker{pairs: []RerankedPair{{Index: 1, Score: 0.9}, {Index: 0, Score: 0.1}}}

	out := Rerank(reranker, true, "query", results, 10)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0].Chunk.ID)
	assert.Equal(t, int64(1), out[1].Chunk.ID)
}

func TestRerank_FallsBackOnFailure(t *testing.T) {
	results := []ResolvedResult{
		{Chunk: model.Chunk{ID: 1}},
		{Chunk: model.Chunk{ID: 2}},
	}
	reranker := &fakeReranker{err: errors.New("worker unavailable")}

	out := Rerank(reranker, true, "query", results, 10)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].Chunk.ID)
	assert.Equal(t, int64(2), out[1].Chunk.ID)
}

func TestRerank_SkippedWhenDisabledOrSingleCandidate(t *testing.T) {
	results := []ResolvedResult{{Chunk: model.Chunk{ID: 1}}}
	reranker := &fakeReranker{pairs: []RerankedPair{{Index: 0}}}

	out := Rerank(reranker, false, "query", []ResolvedResult{{Chunk: model.Chunk{ID: 1}}, {Chunk: model.Chunk{ID: 2}}}, 10)
	require.Len(t, out, 2)

	out = Rerank(reranker, true, "query", results, 10)
	require.Len(t, out, 1)
}

func TestFilterByProject(t *testing.T) {
	results := []ResolvedResult{
		{FilePath: "a.go"},
		{FilePath: "b.go"},
	}
	filtered := FilterByProject(results, map[string]bool{"a.go": true})
	require.Len(t, filtered, 1)
	assert.Equal(t, "a.go", filtered[0].FilePath)
}

func TestFilterByProject_NilMeansNoFilter(t *testing.T) {
	results := []ResolvedResult{{FilePath: "a.go"}}
	filtered := FilterByProject(results, nil)
	assert.Len(t, filtered, 1)
}

func TestFilterByLanguage_CaseInsensitive(t *testing.T) {
	results := []ResolvedResult{
		{Chunk: model.Chunk{Language: "Go"}},
		{Chunk: model.Chunk{Language: "python"}},
	}
	filtered := FilterByLanguage(results, []string{"go"})
	require.Len(t, filtered, 1)
	assert.Equal(t, "Go", filtered[0].Chunk.Language)
}

func TestFilterByLanguage_EmptyAllowlistNoFilter(t *testing.T) {
	results := []ResolvedResult{{Chunk: model.Chunk{Language: "go"}}}
	filtered := FilterByLanguage(results, nil)
	assert.Len(t, filtered, 1)
}
