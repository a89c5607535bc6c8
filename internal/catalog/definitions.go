package catalog

import (
	"context"

	"github.com/srag-go/srag/internal/model"
	"github.com/srag-go/srag/internal/srerrors"
)

// InsertDefinitions stores the definitions mined from one chunk, called by
// the indexer right after a successful ReindexFile for that chunk.
func (c *Catalog) InsertDefinitions(ctx context.Context, defs []model.Definition) error {
	for _, d := range defs {
		_, err := c.db.ExecContext(ctx, `
			INSERT INTO definitions (file_id, chunk_id, name, kind, scope, language, start_line, end_line, signature)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, d.FileID, d.ChunkID, d.Name, string(d.Kind), nullable(d.Scope), nullable(d.Language), d.StartLine, d.EndLine, nullable(d.Signature))
		if err != nil {
			return srerrors.CatalogError("insert definition", err)
		}
	}
	return nil
}

// InsertCalls stores the call-site edges mined from one chunk, unresolved
// (CalleeDefinitionID left null) until ResolveCallsForProject runs.
func (c *Catalog) InsertCalls(ctx context.Context, calls []model.FunctionCall) error {
	for _, call := range calls {
		_, err := c.db.ExecContext(ctx, `
			INSERT INTO function_calls (file_id, chunk_id, caller_name, caller_scope, callee_name, line, language)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, call.FileID, call.ChunkID, nullable(call.CallerName), nullable(call.CallerScope), call.CalleeName, call.Line, nullable(call.Language))
		if err != nil {
			return srerrors.CatalogError("insert call", err)
		}
	}
	return nil
}

// ResolveCallsForProject resolves each unresolved call whose callee name
// matches exactly one definition name within the project, by plain name
// match (no type or overload resolution — see design notes on name-based
// call resolution). Ambiguous names (more than one matching definition)
// are left unresolved rather than guessed. Returns the number resolved.
func (c *Catalog) ResolveCallsForProject(ctx context.Context, projectID int64) (int, error) {
	res, err := c.db.ExecContext(ctx, `
		UPDATE function_calls
		SET callee_definition_id = (
			SELECT d.id FROM definitions d
			JOIN files df ON df.id = d.file_id
			WHERE df.project_id = ? AND d.name = function_calls.callee_name
			LIMIT 1
		), resolved_at = CURRENT_TIMESTAMP
		WHERE id IN (
			SELECT fc.id
			FROM function_calls fc
			JOIN files f ON f.id = fc.file_id
			WHERE f.project_id = ?
			  AND fc.callee_definition_id IS NULL
			  AND (
				SELECT COUNT(*) FROM definitions d
				JOIN files df ON df.id = d.file_id
				WHERE df.project_id = ? AND d.name = fc.callee_name
			  ) = 1
		)
	`, projectID, projectID, projectID)
	if err != nil {
		return 0, srerrors.CatalogError("resolve calls for project", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, srerrors.CatalogError("read resolved call count", err)
	}
	return int(n), nil
}
