package catalog

import (
	"context"
	"strings"

	"github.com/srag-go/srag/internal/srerrors"
)

// FTSHit is one ranked full-text match.
type FTSHit struct {
	ChunkID int64
	Rank    float64
}

// SearchFTSProject runs a full-text query against chunks_fts, scoped to a
// project when project is non-empty, sorted ascending by BM25 rank (lower
// is better, matching FTS5's own convention). Empty/whitespace queries
// return no rows rather than erroring.
func (c *Catalog) SearchFTSProject(ctx context.Context, query string, project string, limit, offset int) ([]FTSHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	escaped := escapeFTSTerm(query)
	if escaped == "" {
		return nil, nil
	}

	sqlQuery := `
		SELECT f.chunk_id, bm25(chunks_fts) AS rank
		FROM chunks_fts f
		JOIN chunks c ON c.id = f.chunk_id
		JOIN files fi ON fi.id = c.file_id
		JOIN projects p ON p.id = fi.project_id
		WHERE chunks_fts MATCH ? AND (? = '' OR p.name = ?)
		ORDER BY rank ASC
		LIMIT ? OFFSET ?
	`
	rows, err := c.db.QueryContext(ctx, sqlQuery, escaped, project, project, limit, offset)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, srerrors.QueryError("fts search", err)
	}
	defer rows.Close()

	var hits []FTSHit
	for rows.Next() {
		var hit FTSHit
		if err := rows.Scan(&hit.ChunkID, &hit.Rank); err != nil {
			return nil, srerrors.QueryError("scan fts hit", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// SymbolHit is one chunk matched by a symbol-name pattern.
type SymbolHit struct {
	ChunkID int64
	Symbol  string
}

// SearchSymbolsPaginated returns chunks whose symbol matches
// '%pattern%' (pattern-escaped), ordered by symbol for stable pagination.
func (c *Catalog) SearchSymbolsPaginated(ctx context.Context, pattern string, project string, limit, offset int) ([]SymbolHit, error) {
	escaped := escapeLike(pattern)
	sqlQuery := `
		SELECT c.id, c.symbol
		FROM chunks c
		JOIN files fi ON fi.id = c.file_id
		JOIN projects p ON p.id = fi.project_id
		WHERE c.symbol LIKE '%' || ? || '%' ESCAPE '\'
		  AND (? = '' OR p.name = ?)
		ORDER BY c.symbol
		LIMIT ? OFFSET ?
	`
	rows, err := c.db.QueryContext(ctx, sqlQuery, escaped, project, project, limit, offset)
	if err != nil {
		return nil, srerrors.QueryError("symbol search", err)
	}
	defer rows.Close()

	var hits []SymbolHit
	for rows.Next() {
		var hit SymbolHit
		if err := rows.Scan(&hit.ChunkID, &hit.Symbol); err != nil {
			return nil, srerrors.QueryError("scan symbol hit", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}
