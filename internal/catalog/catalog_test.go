package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srag-go/srag/internal/model"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestOpen_InMemorySchema(t *testing.T) {
	c := openTestCatalog(t)
	var count int
	row := c.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'chunks_fts'`)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)
}

func TestCreateProjectAndReindexFile(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	projectID, err := c.CreateProject(ctx, "demo", "/tmp/demo")
	require.NoError(t, err)

	file := model.File{Path: "main.go", Hash: "abc123", Language: "go", SizeBytes: 42}
	chunks := []model.Chunk{
		{Content: "func main() {}", Symbol: "main", Kind: "function", StartLine: 1, EndLine: 1, Language: "go"},
		{Content: "func helper() {}", Symbol: "helper", Kind: "function", StartLine: 3, EndLine: 3, Language: "go", Suspicious: true},
	}

	_, chunkIDs, err := c.ReindexFile(ctx, projectID, file, chunks)
	require.NoError(t, err)
	require.Len(t, chunkIDs, 2)

	stats, err := c.Stats(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FileCount)
	assert.Equal(t, 2, stats.ChunkCount)
	assert.Equal(t, 0, stats.EmbeddedChunkCount)
}

func TestReindexFile_ReplacesOldChunks(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	projectID, err := c.CreateProject(ctx, "demo", "/tmp/demo")
	require.NoError(t, err)

	file := model.File{Path: "a.go", Hash: "v1", Language: "go"}
	_, _, err = c.ReindexFile(ctx, projectID, file, []model.Chunk{
		{Content: "v1", Symbol: "a", StartLine: 1, EndLine: 1},
		{Content: "v1b", Symbol: "b", StartLine: 2, EndLine: 2},
	})
	require.NoError(t, err)

	file.Hash = "v2"
	_, chunkIDs, err := c.ReindexFile(ctx, projectID, file, []model.Chunk{
		{Content: "v2", Symbol: "c", StartLine: 1, EndLine: 1},
	})
	require.NoError(t, err)
	require.Len(t, chunkIDs, 1)

	stats, err := c.Stats(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ChunkCount)
}

func TestInsertEmbeddingAndForEach(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	projectID, err := c.CreateProject(ctx, "demo", "/tmp/demo")
	require.NoError(t, err)
	_, chunkIDs, err := c.ReindexFile(ctx, projectID, model.File{Path: "a.go", Hash: "h"}, []model.Chunk{
		{Content: "x", Symbol: "a", StartLine: 1, EndLine: 1},
	})
	require.NoError(t, err)

	_, err = c.InsertEmbedding(ctx, chunkIDs[0], []float32{0.1, 0.2, 0.3})
	require.NoError(t, err)

	var seen int
	err = c.ForEachEmbedding(3, func(id int64, vector []float32) error {
		seen++
		assert.Len(t, vector, 3)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, seen)

	stats, err := c.Stats(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EmbeddedChunkCount)
}

func TestSearchFTSProject_EmptyQuery(t *testing.T) {
	c := openTestCatalog(t)
	hits, err := c.SearchFTSProject(context.Background(), "   ", "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchFTSProject_FindsMatch(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	projectID, err := c.CreateProject(ctx, "demo", "/tmp/demo")
	require.NoError(t, err)
	_, _, err = c.ReindexFile(ctx, projectID, model.File{Path: "a.go", Hash: "h"}, []model.Chunk{
		{Content: "func computeChecksum() int { return 1 }", Symbol: "computeChecksum", StartLine: 1, EndLine: 1},
	})
	require.NoError(t, err)

	hits, err := c.SearchFTSProject(ctx, "checksum", "demo", 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestSearchSymbolsPaginated(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	projectID, err := c.CreateProject(ctx, "demo", "/tmp/demo")
	require.NoError(t, err)
	_, _, err = c.ReindexFile(ctx, projectID, model.File{Path: "a.go", Hash: "h"}, []model.Chunk{
		{Content: "x", Symbol: "parseConfig", StartLine: 1, EndLine: 1},
		{Content: "y", Symbol: "parseArgs", StartLine: 2, EndLine: 2},
		{Content: "z", Symbol: "other", StartLine: 3, EndLine: 3},
	})
	require.NoError(t, err)

	hits, err := c.SearchSymbolsPaginated(ctx, "parse", "demo", 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "parseArgs", hits[0].Symbol)
}

func TestEnqueueDequeueReindex(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.EnqueueReindex(ctx, "demo", "a.go", model.EventModify))
	require.NoError(t, c.EnqueueReindex(ctx, "demo", "b.go", model.EventDelete))

	n, err := c.QueueLength(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	item, ok, err := c.DequeueReindex(ctx, "demo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.go", item.Path)

	n, err = c.QueueLength(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDequeueReindex_EmptyQueue(t *testing.T) {
	c := openTestCatalog(t)
	_, ok, err := c.DequeueReindex(context.Background(), "demo")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnqueueReindex_OverwritesEvent(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.EnqueueReindex(ctx, "demo", "a.go", model.EventModify))
	require.NoError(t, c.EnqueueReindex(ctx, "demo", "a.go", model.EventDelete))

	n, err := c.QueueLength(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	item, ok, err := c.DequeueReindex(ctx, "demo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.EventDelete, item.Event)
}

func TestSessionsAndTurns(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.CreateSession(ctx, "sess-1", "demo"))
	_, err := c.AppendTurn(ctx, "sess-1", model.RoleUser, "hello", "")
	require.NoError(t, err)
	_, err = c.AppendTurn(ctx, "sess-1", model.RoleAssistant, "hi there", `["a.go"]`)
	require.NoError(t, err)

	turns, err := c.Turns(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, model.RoleUser, turns[0].Role)
	assert.Equal(t, model.RoleAssistant, turns[1].Role)
}

func TestDeleteProject_CascadesAndClearsFTS(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	projectID, err := c.CreateProject(ctx, "demo", "/tmp/demo")
	require.NoError(t, err)
	_, _, err = c.ReindexFile(ctx, projectID, model.File{Path: "a.go", Hash: "h"}, []model.Chunk{
		{Content: "func computeChecksum() int { return 1 }", Symbol: "computeChecksum", StartLine: 1, EndLine: 1},
	})
	require.NoError(t, err)

	require.NoError(t, c.DeleteProject(ctx, projectID))

	stats, err := c.Stats(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FileCount)

	hits, err := c.SearchFTSProject(ctx, "computeChecksum", "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDefinitionsAndCallResolution(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	projectID, err := c.CreateProject(ctx, "demo", "/tmp/demo")
	require.NoError(t, err)
	fileID, chunkIDs, err := c.ReindexFile(ctx, projectID, model.File{Path: "a.go", Hash: "h"}, []model.Chunk{
		{Content: "func main() { helper() }", Symbol: "main", StartLine: 1, EndLine: 1},
		{Content: "func helper() {}", Symbol: "helper", StartLine: 3, EndLine: 3},
	})
	require.NoError(t, err)

	require.NoError(t, c.InsertDefinitions(ctx, []model.Definition{
		{FileID: fileID, ChunkID: chunkIDs[1], Name: "helper", Kind: model.KindFunction, StartLine: 3, EndLine: 3},
	}))
	require.NoError(t, c.InsertCalls(ctx, []model.FunctionCall{
		{FileID: fileID, ChunkID: chunkIDs[0], CallerName: "main", CalleeName: "helper", Line: 1},
	}))

	resolved, err := c.ResolveCallsForProject(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
}

func TestGetProjectPatterns(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	projectID, err := c.CreateProject(ctx, "demo", "/tmp/demo")
	require.NoError(t, err)
	_, _, err = c.ReindexFile(ctx, projectID, model.File{Path: "src/a.go", Hash: "h", Language: "go"}, []model.Chunk{
		{Content: "x", Symbol: "db_connect", Kind: "function", StartLine: 1, EndLine: 1},
		{Content: "y", Symbol: "db_close", Kind: "function", StartLine: 2, EndLine: 2},
		{Content: "z", Symbol: "db_query", Kind: "function", StartLine: 3, EndLine: 3},
	})
	require.NoError(t, err)

	patterns, err := c.GetProjectPatterns(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, patterns.TopLanguages, 1)
	assert.Equal(t, "go", patterns.TopLanguages[0].Language)
	require.Len(t, patterns.NamingPrefixes, 1)
	assert.Equal(t, "db", patterns.NamingPrefixes[0].Prefix)
	assert.Equal(t, 3, patterns.NamingPrefixes[0].Count)
	require.Len(t, patterns.TopDirectories, 1)
	assert.Equal(t, "src", patterns.TopDirectories[0].Directory)
}
