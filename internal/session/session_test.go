package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srag-go/srag/internal/model"
)

type fakeCatalog struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	turns    map[string][]model.Turn
	projects map[string]model.Project
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		sessions: make(map[string]model.Session),
		turns:    make(map[string][]model.Turn),
		projects: make(map[string]model.Project),
	}
}

func (f *fakeCatalog) CreateSession(ctx context.Context, id, project string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id] = model.Session{ID: id, Project: project, CreatedAt: time.Now()}
	return nil
}

func (f *fakeCatalog) GetSession(ctx context.Context, id string) (model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return model.Session{}, assertNotFound(id)
	}
	return s, nil
}

func (f *fakeCatalog) ListSessions(ctx context.Context) ([]model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Session
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeCatalog) DeleteSession(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	delete(f.turns, id)
	return nil
}

func (f *fakeCatalog) LastTurnAt(ctx context.Context, sessionID string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	turns := f.turns[sessionID]
	if len(turns) == 0 {
		return f.sessions[sessionID].CreatedAt, nil
	}
	return turns[len(turns)-1].CreatedAt, nil
}

func (f *fakeCatalog) AppendTurn(ctx context.Context, sessionID string, role model.SessionRole, content, sources string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := model.Turn{ID: int64(len(f.turns[sessionID]) + 1), SessionID: sessionID, Role: role, Content: content, Sources: sources, CreatedAt: time.Now()}
	f.turns[sessionID] = append(f.turns[sessionID], t)
	return t.ID, nil
}

func (f *fakeCatalog) Turns(ctx context.Context, sessionID string) ([]model.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Turn(nil), f.turns[sessionID]...), nil
}

func (f *fakeCatalog) GetProjectByName(ctx context.Context, name string) (model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[name]
	if !ok {
		return model.Project{}, assertNotFound(name)
	}
	return p, nil
}

type notFoundErr struct{ what string }

func (e *notFoundErr) Error() string { return e.what + " not found" }
func assertNotFound(what string) error { return &notFoundErr{what} }

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("my-session_1"))
	assert.Error(t, ValidateID(""))
	assert.Error(t, ValidateID("has a space"))
	assert.Error(t, ValidateID(string(make([]byte, 65))))
}

func TestManager_Open_CreatesThenReturnsSameSession(t *testing.T) {
	cat := newFakeCatalog()
	m := NewManager(cat)
	ctx := context.Background()

	s1, err := m.Open(ctx, "sess1", "myproject")
	require.NoError(t, err)
	assert.Equal(t, "sess1", s1.ID)
	assert.Equal(t, "myproject", s1.Project)

	s2, err := m.Open(ctx, "sess1", "myproject")
	require.NoError(t, err)
	assert.Equal(t, s1.ID, s2.ID)
}

func TestManager_Open_RejectsProjectMismatch(t *testing.T) {
	cat := newFakeCatalog()
	m := NewManager(cat)
	ctx := context.Background()

	_, err := m.Open(ctx, "sess1", "projectA")
	require.NoError(t, err)

	_, err = m.Open(ctx, "sess1", "projectB")
	assert.Error(t, err)
}

func TestManager_Open_RejectsInvalidID(t *testing.T) {
	cat := newFakeCatalog()
	m := NewManager(cat)
	_, err := m.Open(context.Background(), "bad id!", "")
	assert.Error(t, err)
}

func TestManager_AppendAndRecentTurns(t *testing.T) {
	cat := newFakeCatalog()
	m := NewManager(cat)
	ctx := context.Background()

	_, err := m.Open(ctx, "sess1", "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := m.AppendTurn(ctx, "sess1", model.RoleUser, "turn", "")
		require.NoError(t, err)
	}

	all, err := m.Turns(ctx, "sess1")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	recent, err := m.RecentTurns(ctx, "sess1", 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
	assert.Equal(t, all[3].ID, recent[0].ID)
	assert.Equal(t, all[4].ID, recent[1].ID)
}

func TestManager_List_FlagsInvalidProject(t *testing.T) {
	cat := newFakeCatalog()
	cat.projects["realproject"] = model.Project{ID: 1, Name: "realproject"}
	m := NewManager(cat)
	ctx := context.Background()

	_, err := m.Open(ctx, "sess1", "realproject")
	require.NoError(t, err)
	_, err = m.Open(ctx, "sess2", "missingproject")
	require.NoError(t, err)

	infos, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	byID := map[string]Info{}
	for _, i := range infos {
		byID[i.ID] = i
	}
	assert.True(t, byID["sess1"].Valid)
	assert.False(t, byID["sess2"].Valid)
}

func TestManager_Prune_DeletesStaleSessions(t *testing.T) {
	cat := newFakeCatalog()
	m := NewManager(cat)
	ctx := context.Background()

	_, err := m.Open(ctx, "old", "")
	require.NoError(t, err)
	cat.sessions["old"] = model.Session{ID: "old", CreatedAt: time.Now().Add(-48 * time.Hour)}

	_, err = m.Open(ctx, "fresh", "")
	require.NoError(t, err)

	deleted, err := m.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = cat.GetSession(ctx, "old")
	assert.Error(t, err)
	_, err = cat.GetSession(ctx, "fresh")
	assert.NoError(t, err)
}
