package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/srag-go/srag/internal/model"
	"github.com/srag-go/srag/internal/srerrors"
)

// CreateProject inserts a new project, returning its assigned id.
func (c *Catalog) CreateProject(ctx context.Context, name, path string) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO projects (name, path) VALUES (?, ?)`, name, path)
	if err != nil {
		return 0, srerrors.CatalogError("create project", err)
	}
	return res.LastInsertId()
}

// GetProjectByName looks up a project by its unique name.
func (c *Catalog) GetProjectByName(ctx context.Context, name string) (model.Project, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, name, path, created_at, COALESCE(last_indexed_at, created_at)
		 FROM projects WHERE name = ?`, name)

	var p model.Project
	err := row.Scan(&p.ID, &p.Name, &p.Path, &p.CreatedAt, &p.LastIndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Project{}, srerrors.New(srerrors.Catalog, "project_not_found", "no project named "+name)
	}
	if err != nil {
		return model.Project{}, srerrors.CatalogError("get project", err)
	}
	return p, nil
}

// UpdateLastIndexedAt stamps a project's last_indexed_at, called by the
// indexer after a finalization pass completes.
func (c *Catalog) UpdateLastIndexedAt(ctx context.Context, projectID int64, at time.Time) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE projects SET last_indexed_at = ? WHERE id = ?`, at, projectID)
	if err != nil {
		return srerrors.CatalogError("update last_indexed_at", err)
	}
	return nil
}

// ListProjectFilePaths returns every indexed file path under projectID,
// used to scope hybrid-search results to one project's files.
func (c *Catalog) ListProjectFilePaths(ctx context.Context, projectID int64) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT path FROM files WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, srerrors.CatalogError("list project file paths", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, srerrors.CatalogError("scan file path", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// ListProjects returns every indexed project, ordered by name.
func (c *Catalog) ListProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, name, path, created_at, COALESCE(last_indexed_at, created_at)
		 FROM projects ORDER BY name`)
	if err != nil {
		return nil, srerrors.CatalogError("list projects", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Path, &p.CreatedAt, &p.LastIndexedAt); err != nil {
			return nil, srerrors.CatalogError("scan project", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project and everything under it. FTS rows are
// deleted explicitly first since the fts5 virtual table isn't covered by
// foreign-key cascade; the database then cascades files -> chunks ->
// embeddings -> definitions -> calls.
func (c *Catalog) DeleteProject(ctx context.Context, projectID int64) error {
	return c.withImmediateTx(ctx, func(tx execer) error {
		if err := deleteProjectFTS(ctx, tx, projectID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, projectID); err != nil {
			return srerrors.CatalogError("delete project", err)
		}
		return nil
	})
}

// ClearProjectFiles deletes a project's FTS rows then its files, cascading
// to chunks, embeddings, definitions, and calls — but leaves the project
// row itself intact. Used by the indexer's force-reindex mode (spec.md
// §4.12: "before the per-file loop, delete the project's FTS rows, then
// its files") so stale chunks from a prior run cannot survive alongside
// freshly re-chunked ones.
func (c *Catalog) ClearProjectFiles(ctx context.Context, projectID int64) error {
	return c.withImmediateTx(ctx, func(tx execer) error {
		if err := deleteProjectFTS(ctx, tx, projectID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE project_id = ?`, projectID); err != nil {
			return srerrors.CatalogError("delete files for project", err)
		}
		return nil
	})
}

func deleteProjectFTS(ctx context.Context, tx execer, projectID int64) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM chunks_fts WHERE chunk_id IN (
			SELECT c.id FROM chunks c
			JOIN files f ON f.id = c.file_id
			WHERE f.project_id = ?
		)`, projectID)
	if err != nil {
		return srerrors.CatalogError("delete fts rows for project", err)
	}
	return nil
}
