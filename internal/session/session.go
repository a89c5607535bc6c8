// Package session manages chat sessions (spec.md §3's Session & Turn
// model): a named conversation, optionally scoped to a project, holding
// turns in time order. Unlike the teacher's session package — which
// persists one directory per session holding a whole switchable project
// index — sessions here are rows in the shared catalog database; there is
// one index per project, not one per session.
package session

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/srag-go/srag/internal/model"
	"github.com/srag-go/srag/internal/srerrors"
)

const maxSessionIDLength = 64

var validSessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateID validates a session id: non-empty, at most 64 chars, and
// restricted to letters, digits, hyphens, and underscores.
func ValidateID(id string) error {
	if id == "" {
		return srerrors.New(srerrors.Catalog, "invalid_session_id", "session id cannot be empty")
	}
	if len(id) > maxSessionIDLength {
		return srerrors.New(srerrors.Catalog, "invalid_session_id", fmt.Sprintf("session id too long (max %d chars)", maxSessionIDLength))
	}
	if !validSessionIDPattern.MatchString(id) {
		return srerrors.New(srerrors.Catalog, "invalid_session_id", "session id can only contain letters, numbers, hyphens, and underscores")
	}
	return nil
}

// Info summarizes a session for listing, mirroring the teacher's
// SessionInfo shape (Name/ProjectPath/LastUsed/Valid) but with LastUsed
// derived from the most recent turn rather than a file-system mtime, and
// Valid describing whether the session's project label still names an
// indexed project rather than whether a directory exists on disk.
type Info struct {
	ID       string
	Project  string
	LastUsed time.Time
	Valid    bool
}

// IsStale reports whether a session hasn't been used within maxAge.
func (i Info) IsStale(maxAge time.Duration) bool {
	return time.Since(i.LastUsed) > maxAge
}

// Catalog is the subset of *catalog.Catalog the manager depends on.
type Catalog interface {
	CreateSession(ctx context.Context, id, project string) error
	GetSession(ctx context.Context, id string) (model.Session, error)
	ListSessions(ctx context.Context) ([]model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	LastTurnAt(ctx context.Context, sessionID string) (time.Time, error)
	AppendTurn(ctx context.Context, sessionID string, role model.SessionRole, content, sources string) (int64, error)
	Turns(ctx context.Context, sessionID string) ([]model.Turn, error)
	GetProjectByName(ctx context.Context, name string) (model.Project, error)
}

// Manager handles session lifecycle operations against the catalog.
type Manager struct {
	catalog Catalog
}

// NewManager builds a Manager over catalog.
func NewManager(catalog Catalog) *Manager {
	return &Manager{catalog: catalog}
}

// Open creates a new session or returns the existing one with the given
// id. If the session already exists under a different project label, Open
// fails rather than silently re-labeling it — mirroring the teacher's
// Manager.Open, which refuses to reuse a session name across projects.
func (m *Manager) Open(ctx context.Context, id, project string) (model.Session, error) {
	if err := ValidateID(id); err != nil {
		return model.Session{}, err
	}

	existing, err := m.catalog.GetSession(ctx, id)
	if err == nil {
		if project != "" && existing.Project != "" && existing.Project != project {
			return model.Session{}, srerrors.New(srerrors.Catalog, "session_project_mismatch",
				fmt.Sprintf("session %q already exists for project %q (requested %q)", id, existing.Project, project))
		}
		return existing, nil
	}

	if err := m.catalog.CreateSession(ctx, id, project); err != nil {
		return model.Session{}, err
	}
	return m.catalog.GetSession(ctx, id)
}

// AppendTurn records one turn within sess.
func (m *Manager) AppendTurn(ctx context.Context, sessionID string, role model.SessionRole, content, sources string) (int64, error) {
	return m.catalog.AppendTurn(ctx, sessionID, role, content, sources)
}

// Turns returns every turn for sessionID in chronological order.
func (m *Manager) Turns(ctx context.Context, sessionID string) ([]model.Turn, error) {
	return m.catalog.Turns(ctx, sessionID)
}

// RecentTurns returns at most n of the most recent turns, in chronological
// order — the window the prompt builder folds into history (spec.md §6's
// query.history_turns setting).
func (m *Manager) RecentTurns(ctx context.Context, sessionID string, n int) ([]model.Turn, error) {
	turns, err := m.catalog.Turns(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if n <= 0 || len(turns) <= n {
		return turns, nil
	}
	return turns[len(turns)-n:], nil
}

// List returns every session with its last-used time and project
// validity, most recently used first.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	sessions, err := m.catalog.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		lastUsed, err := m.catalog.LastTurnAt(ctx, s.ID)
		if err != nil {
			lastUsed = s.CreatedAt
		}

		valid := true
		if s.Project != "" {
			if _, err := m.catalog.GetProjectByName(ctx, s.Project); err != nil {
				valid = false
			}
		}

		infos = append(infos, Info{ID: s.ID, Project: s.Project, LastUsed: lastUsed, Valid: valid})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].LastUsed.After(infos[j].LastUsed) })
	return infos, nil
}

// Delete removes a session and all its turns.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.catalog.DeleteSession(ctx, id)
}

// Prune deletes every session unused for longer than olderThan, returning
// the count removed.
func (m *Manager) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	infos, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, info := range infos {
		if info.IsStale(olderThan) {
			if err := m.Delete(ctx, info.ID); err != nil {
				continue
			}
			deleted++
		}
	}
	return deleted, nil
}
