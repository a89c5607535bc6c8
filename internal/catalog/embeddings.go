package catalog

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/srag-go/srag/internal/srerrors"
)

// InsertEmbedding stores a chunk's embedding vector and points the chunk at
// it. Called after ReindexFile's transaction has committed (spec.md §4.4:
// embedding insert happens after commit so a transient ML failure leaves a
// consistent catalog with no embeddings rather than orphaned chunks).
func (c *Catalog) InsertEmbedding(ctx context.Context, chunkID int64, vector []float32) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO embeddings (chunk_id, vector) VALUES (?, ?)`, chunkID, encodeVector(vector))
	if err != nil {
		return 0, srerrors.CatalogError("insert embedding", err)
	}
	embeddingID, err := res.LastInsertId()
	if err != nil {
		return 0, srerrors.CatalogError("read embedding id", err)
	}
	if _, err := c.db.ExecContext(ctx,
		`UPDATE chunks SET embedding_id = ? WHERE id = ?`, embeddingID, chunkID); err != nil {
		return 0, srerrors.CatalogError("link chunk to embedding", err)
	}
	return embeddingID, nil
}

// ForEachEmbedding streams every stored embedding one row at a time,
// satisfying vectorindex.EmbeddingSource for index rebuild without ever
// materializing the whole table.
func (c *Catalog) ForEachEmbedding(dim int, fn func(id int64, vector []float32) error) error {
	ctx := context.Background()
	rows, err := c.db.QueryContext(ctx, `SELECT id, vector FROM embeddings ORDER BY id`)
	if err != nil {
		return srerrors.CatalogError("stream embeddings", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return srerrors.CatalogError("scan embedding row", err)
		}
		vector := decodeVector(blob)
		if len(vector) != dim {
			continue
		}
		if err := fn(id, vector); err != nil {
			return err
		}
	}
	return rows.Err()
}

// encodeVector / decodeVector pack float32 vectors as little-endian bytes
// for BLOB storage; this avoids importing an extra serialization
// dependency for what is, per chunk, a fixed-size flat array.
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	n := len(buf) / 4
	vector := make([]float32, n)
	for i := 0; i < n; i++ {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vector
}
