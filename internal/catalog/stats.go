package catalog

import (
	"context"

	"github.com/srag-go/srag/internal/srerrors"
)

// Stats holds the aggregate counts reported by spec.md §4.4 "Statistics".
type Stats struct {
	FileCount          int
	ChunkCount         int
	EmbeddedChunkCount int
	TotalSizeBytes     int64
}

// Stats computes file/chunk/embedding counts and total size, optionally
// scoped to a single project (empty string means all projects).
func (c *Catalog) Stats(ctx context.Context, project string) (Stats, error) {
	var s Stats

	row := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM files fi
		JOIN projects p ON p.id = fi.project_id
		WHERE ? = '' OR p.name = ?
	`, project, project)
	if err := row.Scan(&s.FileCount, &s.TotalSizeBytes); err != nil {
		return Stats{}, srerrors.QueryError("file stats", err)
	}

	row = c.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM chunks c
		JOIN files fi ON fi.id = c.file_id
		JOIN projects p ON p.id = fi.project_id
		WHERE ? = '' OR p.name = ?
	`, project, project)
	if err := row.Scan(&s.ChunkCount); err != nil {
		return Stats{}, srerrors.QueryError("chunk stats", err)
	}

	row = c.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM chunks c
		JOIN files fi ON fi.id = c.file_id
		JOIN projects p ON p.id = fi.project_id
		WHERE c.embedding_id IS NOT NULL AND (? = '' OR p.name = ?)
	`, project, project)
	if err := row.Scan(&s.EmbeddedChunkCount); err != nil {
		return Stats{}, srerrors.QueryError("embedded chunk stats", err)
	}

	return s, nil
}
