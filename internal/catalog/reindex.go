package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/srag-go/srag/internal/model"
	"github.com/srag-go/srag/internal/srerrors"
)

// FileHash returns the stored content hash for (projectID, path), used by
// the indexer's skip-if-unchanged check. Returns ("", false, nil) when the
// file has never been indexed.
func (c *Catalog) FileHash(ctx context.Context, projectID int64, path string) (string, bool, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT hash FROM files WHERE project_id = ? AND path = ?`, projectID, path)
	var hash string
	err := row.Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, srerrors.CatalogError("read file hash", err)
	}
	return hash, true, nil
}

// ReindexFile replaces a file's chunks inside a single BEGIN IMMEDIATE
// transaction: upsert the file row, delete its old FTS rows, embeddings,
// and chunks, insert the new chunks and FTS rows, and return the file id
// and new chunk ids in order. Embedding inserts happen separately, after
// this commits, so a transient ML failure leaves a consistent catalog with
// no embeddings rather than orphaned chunks referencing dead embedding
// rows.
func (c *Catalog) ReindexFile(ctx context.Context, projectID int64, file model.File, chunks []model.Chunk) (int64, []int64, error) {
	var fileID int64
	var chunkIDs []int64

	err := c.withImmediateTx(ctx, func(tx execer) error {
		var err error
		fileID, err = upsertFile(ctx, tx, projectID, file)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM chunks_fts WHERE chunk_id IN (
				SELECT id FROM chunks WHERE file_id = ?
			)`, fileID); err != nil {
			return srerrors.CatalogError("delete fts rows for file", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM embeddings WHERE chunk_id IN (SELECT id FROM chunks WHERE file_id = ?)`, fileID); err != nil {
			return srerrors.CatalogError("delete embeddings for file", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file_id = ?`, fileID); err != nil {
			return srerrors.CatalogError("delete chunks for file", err)
		}

		for _, chunk := range chunks {
			chunkID, err := insertChunk(ctx, tx, fileID, chunk)
			if err != nil {
				return err
			}
			chunkIDs = append(chunkIDs, chunkID)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE files SET chunk_count = ? WHERE id = ?`, len(chunks), fileID); err != nil {
			return srerrors.CatalogError("update file chunk count", err)
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return fileID, chunkIDs, nil
}

// DeleteFile removes a single file and everything derived from it (FTS
// rows, embeddings, chunks, the file row itself), used by the watcher when
// a watched path no longer exists. A no-op, not an error, if the file was
// never indexed.
func (c *Catalog) DeleteFile(ctx context.Context, projectID int64, path string) error {
	return c.withImmediateTx(ctx, func(tx execer) error {
		row := tx.QueryRowContext(ctx,
			`SELECT id FROM files WHERE project_id = ? AND path = ?`, projectID, path)
		var fileID int64
		if err := row.Scan(&fileID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return srerrors.CatalogError("read file id for delete", err)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM chunks_fts WHERE chunk_id IN (
				SELECT id FROM chunks WHERE file_id = ?
			)`, fileID); err != nil {
			return srerrors.CatalogError("delete fts rows for file", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM embeddings WHERE chunk_id IN (SELECT id FROM chunks WHERE file_id = ?)`, fileID); err != nil {
			return srerrors.CatalogError("delete embeddings for file", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file_id = ?`, fileID); err != nil {
			return srerrors.CatalogError("delete chunks for file", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, fileID); err != nil {
			return srerrors.CatalogError("delete file", err)
		}
		return nil
	})
}

func upsertFile(ctx context.Context, tx execer, projectID int64, file model.File) (int64, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO files (project_id, path, hash, language, size_bytes, indexed_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(project_id, path) DO UPDATE SET
			hash = excluded.hash,
			language = excluded.language,
			size_bytes = excluded.size_bytes,
			indexed_at = CURRENT_TIMESTAMP
	`, projectID, file.Path, file.Hash, file.Language, file.SizeBytes)
	if err != nil {
		return 0, srerrors.CatalogError("upsert file", err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT id FROM files WHERE project_id = ? AND path = ?`, projectID, file.Path)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, srerrors.CatalogError("read upserted file id", err)
	}
	return id, nil
}

func insertChunk(ctx context.Context, tx execer, fileID int64, chunk model.Chunk) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO chunks (file_id, content, symbol, kind, start_line, end_line, language)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, fileID, chunk.Content, nullable(chunk.Symbol), nullable(chunk.Kind), chunk.StartLine, chunk.EndLine, nullable(chunk.Language))
	if err != nil {
		return 0, srerrors.CatalogError("insert chunk", err)
	}
	chunkID, err := res.LastInsertId()
	if err != nil {
		return 0, srerrors.CatalogError("read chunk id", err)
	}

	if chunk.Suspicious {
		if _, err := tx.ExecContext(ctx,
			`UPDATE chunks SET suspicious = 1 WHERE id = ?`, chunkID); err != nil {
			return 0, srerrors.CatalogError("set suspicious flag", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chunks_fts (chunk_id, content, symbol) VALUES (?, ?, ?)`,
		chunkID, chunk.Content, chunk.Symbol); err != nil {
		return 0, srerrors.CatalogError("insert fts row", err)
	}
	return chunkID, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
