package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/srag-go/srag/internal/model"
	"github.com/srag-go/srag/internal/srerrors"
)

// CreateSession records a new chat session under id, optionally labeled
// with a project name.
func (c *Catalog) CreateSession(ctx context.Context, id, project string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO sessions (id, project) VALUES (?, ?)`, id, nullable(project))
	if err != nil {
		return srerrors.CatalogError("create session", err)
	}
	return nil
}

// AppendTurn records one turn within an existing session.
func (c *Catalog) AppendTurn(ctx context.Context, sessionID string, role model.SessionRole, content, sources string) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO turns (session_id, role, content, sources)
		VALUES (?, ?, ?, ?)
	`, sessionID, string(role), content, nullable(sources))
	if err != nil {
		return 0, srerrors.CatalogError("append turn", err)
	}
	return res.LastInsertId()
}

// GetSession looks up a session by id.
func (c *Catalog) GetSession(ctx context.Context, id string) (model.Session, error) {
	var s model.Session
	var project sql.NullString
	err := c.db.QueryRowContext(ctx,
		`SELECT id, project, created_at FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &project, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, srerrors.New(srerrors.Catalog, "session_not_found", "no session "+id)
	}
	if err != nil {
		return model.Session{}, srerrors.CatalogError("get session", err)
	}
	s.Project = project.String
	return s, nil
}

// ListSessions returns every session, most recently created first.
func (c *Catalog) ListSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, project, created_at FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, srerrors.CatalogError("list sessions", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var s model.Session
		var project sql.NullString
		if err := rows.Scan(&s.ID, &project, &s.CreatedAt); err != nil {
			return nil, srerrors.CatalogError("scan session", err)
		}
		s.Project = project.String
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and its turns (cascade).
func (c *Catalog) DeleteSession(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return srerrors.CatalogError("delete session", err)
	}
	return nil
}

// LastTurnAt returns the timestamp of the most recent turn in sessionID,
// falling back to the session's own created_at if it has no turns yet.
func (c *Catalog) LastTurnAt(ctx context.Context, sessionID string) (time.Time, error) {
	var t time.Time
	err := c.db.QueryRowContext(ctx,
		`SELECT created_at FROM turns WHERE session_id = ? ORDER BY id DESC LIMIT 1`, sessionID,
	).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		s, err := c.GetSession(ctx, sessionID)
		if err != nil {
			return time.Time{}, err
		}
		return s.CreatedAt, nil
	}
	if err != nil {
		return time.Time{}, srerrors.CatalogError("last turn timestamp", err)
	}
	return t, nil
}

// Turns returns every turn for sessionID in chronological order.
func (c *Catalog) Turns(ctx context.Context, sessionID string) ([]model.Turn, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, COALESCE(sources, ''), created_at
		FROM turns
		WHERE session_id = ?
		ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, srerrors.CatalogError("list turns", err)
	}
	defer rows.Close()

	var turns []model.Turn
	for rows.Next() {
		var t model.Turn
		var role string
		if err := rows.Scan(&t.ID, &t.SessionID, &role, &t.Content, &t.Sources, &t.CreatedAt); err != nil {
			return nil, srerrors.CatalogError("scan turn", err)
		}
		t.Role = model.SessionRole(role)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
