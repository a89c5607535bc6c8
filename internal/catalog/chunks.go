package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/srag-go/srag/internal/model"
	"github.com/srag-go/srag/internal/srerrors"
)

// GetChunk resolves a chunk id to its full record plus the owning file's
// path, for the retriever's resolve_results step. Returns (zero, false,
// nil) if the chunk no longer exists (deleted since the hit was produced).
func (c *Catalog) GetChunk(ctx context.Context, chunkID int64) (model.Chunk, string, bool, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT c.id, c.file_id, c.content, COALESCE(c.symbol, ''), COALESCE(c.kind, ''),
		       c.start_line, c.end_line, COALESCE(c.language, ''), c.suspicious,
		       COALESCE(c.embedding_id, 0), fi.path
		FROM chunks c
		JOIN files fi ON fi.id = c.file_id
		WHERE c.id = ?
	`, chunkID)

	var chunk model.Chunk
	var suspicious int
	var path string
	err := row.Scan(&chunk.ID, &chunk.FileID, &chunk.Content, &chunk.Symbol, &chunk.Kind,
		&chunk.StartLine, &chunk.EndLine, &chunk.Language, &suspicious, &chunk.EmbeddingID, &path)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Chunk{}, "", false, nil
	}
	if err != nil {
		return model.Chunk{}, "", false, srerrors.CatalogError("get chunk", err)
	}
	chunk.Suspicious = suspicious != 0
	return chunk, path, true, nil
}

// ChunkIDForEmbedding maps an embedding id back to its owning chunk id, for
// fusing dense (embedding-id-keyed) hits with sparse (chunk-id-keyed) hits.
// Returns (0, false, nil) if the embedding no longer exists.
func (c *Catalog) ChunkIDForEmbedding(ctx context.Context, embeddingID int64) (int64, bool, error) {
	row := c.db.QueryRowContext(ctx, `SELECT chunk_id FROM embeddings WHERE id = ?`, embeddingID)
	var chunkID int64
	err := row.Scan(&chunkID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, srerrors.CatalogError("resolve embedding to chunk", err)
	}
	return chunkID, true, nil
}
