package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openqed/openqed/internal/adapters"
	"github.com/openqed/openqed/internal/workspace"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedWorkspace(t *testing.T, s *Store) *workspace.Workspace {
	t.Helper()
	ws := &workspace.Workspace{
		ID:   "ws_test00000001",
		Type: workspace.TypeGitRepo,
		Path: "/home/dev/myapp",
		Name: "myapp",
	}
	require.NoError(t, s.UpsertWorkspace(ws))
	return ws
}

func seedSession(t *testing.T, s *Store, ws *workspace.Workspace, id string, started time.Time) *adapters.AgentSession {
	t.Helper()
	session := &adapters.AgentSession{
		ID:        id,
		Workspace: ws,
		Agent:     adapters.AgentClaudeCode,
		StartedAt: started,
	}
	require.NoError(t, s.UpsertSession(session))
	return session
}

func TestMigrationsIdempotent(t *testing.T) {
	s := newTestStore(t)
	// Re-running against an up-to-date schema is a no-op.
	require.NoError(t, s.migrate())
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ws := seedWorkspace(t, s)

	started := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	session := &adapters.AgentSession{
		ID:          "sess-1",
		Workspace:   ws,
		Agent:       adapters.AgentClaudeCode,
		StartedAt:   started,
		EndedAt:     started.Add(time.Hour),
		TotalTokens: 1234,
		RawPath:     "/tmp/sess-1.jsonl",
		Metadata:    map[string]any{"gitBranch": "main"},
	}
	require.NoError(t, s.UpsertSession(session))

	got, err := s.GetSession("sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sess-1", got.ID)
	assert.Equal(t, ws.ID, got.Workspace.ID)
	assert.Equal(t, 1234, got.TotalTokens)
	assert.True(t, got.StartedAt.Equal(started))
	assert.Equal(t, "main", got.Metadata["gitBranch"])

	missing, err := s.GetSession("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSessionsByWorkspaceFilters(t *testing.T) {
	s := newTestStore(t)
	ws := seedWorkspace(t, s)
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	seedSession(t, s, ws, "a", base)
	seedSession(t, s, ws, "b", base.AddDate(0, 0, 5))
	seedSession(t, s, ws, "c", base.AddDate(0, 0, 10))

	all, err := s.SessionsByWorkspace(ws.ID, SessionQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID) // newest first

	recent, err := s.SessionsByWorkspace(ws.ID, SessionQuery{Since: base.AddDate(0, 0, 3)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	limited, err := s.SessionsByWorkspace(ws.ID, SessionQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestArtifactsAndContentHash(t *testing.T) {
	s := newTestStore(t)
	ws := seedWorkspace(t, s)
	seedSession(t, s, ws, "sess-1", time.Now().UTC())

	require.NoError(t, s.InsertArtifacts("sess-1", []adapters.Artifact{
		{Type: "file", Path: "src/auth.go", ChangeType: adapters.ChangeModify, Author: adapters.AuthorAgent, ContentHash: "abc123"},
		{Type: "file", Path: "src/util.go", ChangeType: adapters.ChangeRead, Author: adapters.AuthorAgent},
	}))

	hash, err := s.ArtifactContentHash("sess-1", "src/auth.go")
	require.NoError(t, err)
	assert.Equal(t, "abc123", hash)

	none, err := s.ArtifactContentHash("sess-1", "src/util.go")
	require.NoError(t, err)
	assert.Empty(t, none)

	sessions, err := s.SessionsByArtifactPath(ws.ID, "src/auth.go")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess-1", sessions[0].ID)
}

func makeNugget(sessionID string, typ NuggetType, scopePath, summary string, confidence float64) *Nugget {
	return &Nugget{
		SessionID:   sessionID,
		Type:        typ,
		Summary:     summary,
		ScopePath:   scopePath,
		Confidence:  confidence,
		ExtractedAt: time.Now().UTC(),
	}
}

func TestNuggetLifecycle(t *testing.T) {
	s := newTestStore(t)
	ws := seedWorkspace(t, s)
	seedSession(t, s, ws, "sess-1", time.Now().UTC())

	has, err := s.HasNuggetsForSession("sess-1")
	require.NoError(t, err)
	assert.False(t, has)

	ids, err := s.InsertNuggets([]*Nugget{
		makeNugget("sess-1", NuggetConstraint, "src/auth.go", "tokens must be refreshed before expiry", 0.9),
		makeNugget("sess-1", NuggetIntent, "", "add refresh token support", 0.6),
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	has, err = s.HasNuggetsForSession("sess-1")
	require.NoError(t, err)
	assert.True(t, has)

	nuggets, err := s.NuggetsForSession("sess-1")
	require.NoError(t, err)
	require.Len(t, nuggets, 2)
	assert.Equal(t, NuggetConstraint, nuggets[0].Type)
	assert.Equal(t, "src/auth.go", nuggets[0].ScopePath)

	// FTS mirror was written in the same transaction.
	hits, err := s.SearchNuggets("refresh", ws.ID, 20)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	require.NoError(t, s.DeleteNuggetsForSession("sess-1"))
	hits, err = s.SearchNuggets("refresh", ws.ID, 20)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFindNuggetsByScope(t *testing.T) {
	s := newTestStore(t)
	ws := seedWorkspace(t, s)
	seedSession(t, s, ws, "sess-1", time.Now().UTC())

	_, err := s.InsertNuggets([]*Nugget{
		makeNugget("sess-1", NuggetConstraint, "src/auth.go", "exact match", 0.9),
		makeNugget("sess-1", NuggetDecision, "src/auth.go/helpers.go", "odd but prefix-matched", 0.5),
		makeNugget("sess-1", NuggetCaveat, "src/other.go", "unrelated", 0.8),
		makeNugget("sess-1", NuggetIntent, "", "workspace wide", 0.6),
	})
	require.NoError(t, err)

	scoped, err := s.FindNuggetsByScope(ws.ID, NuggetFilter{ScopePath: "src/auth.go"})
	require.NoError(t, err)
	require.Len(t, scoped, 2)
	assert.Equal(t, "exact match", scoped[0].Summary) // higher confidence first

	typed, err := s.FindNuggetsByScope(ws.ID, NuggetFilter{Types: []NuggetType{NuggetCaveat, NuggetIntent}})
	require.NoError(t, err)
	assert.Len(t, typed, 2)
}

func TestSupersedingNugget(t *testing.T) {
	s := newTestStore(t)
	ws := seedWorkspace(t, s)
	seedSession(t, s, ws, "sess-1", time.Now().UTC())
	seedSession(t, s, ws, "sess-2", time.Now().UTC())

	oldID, err := s.InsertNugget(makeNugget("sess-1", NuggetConstraint, "src/auth.go", "old rule", 0.8))
	require.NoError(t, err)
	newID, err := s.InsertNugget(makeNugget("sess-2", NuggetConstraint, "src/auth.go", "new rule", 0.8))
	require.NoError(t, err)

	old, err := s.NuggetsByIDs([]int64{oldID})
	require.NoError(t, err)
	require.Len(t, old, 1)

	super, err := s.SupersedingNugget(old[0])
	require.NoError(t, err)
	assert.Equal(t, newID, super)

	// The newer nugget itself is not superseded.
	newer, err := s.NuggetsByIDs([]int64{newID})
	require.NoError(t, err)
	super, err = s.SupersedingNugget(newer[0])
	require.NoError(t, err)
	assert.Zero(t, super)

	// Same session never supersedes itself.
	sameID, err := s.InsertNugget(makeNugget("sess-2", NuggetConstraint, "src/auth.go", "same session again", 0.8))
	require.NoError(t, err)
	_ = sameID
	super, err = s.SupersedingNugget(newer[0])
	require.NoError(t, err)
	assert.Zero(t, super)
}

func TestCoverageGaps(t *testing.T) {
	s := newTestStore(t)
	ws := seedWorkspace(t, s)
	seedSession(t, s, ws, "sess-1", time.Now().UTC())

	for i := 0; i < 3; i++ {
		require.NoError(t, s.LogQuery(&QueryLog{
			QueriedAt:   time.Now().UTC(),
			QueryType:   "path",
			QueryValue:  "src/uncovered.go",
			WorkspaceID: ws.ID,
		}))
	}
	require.NoError(t, s.LogQuery(&QueryLog{
		QueriedAt:   time.Now().UTC(),
		QueryType:   "path",
		QueryValue:  "src/covered.go",
		WorkspaceID: ws.ID,
	}))
	_, err := s.InsertNugget(makeNugget("sess-1", NuggetConstraint, "src/covered.go", "covered", 0.9))
	require.NoError(t, err)

	gaps, err := s.CoverageGaps(ws.ID)
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, "src/uncovered.go", gaps[0].Path)
	assert.Equal(t, 3, gaps[0].QueryCount)
	assert.Equal(t, 0, gaps[0].NuggetCount)
}

func TestSessionFTS(t *testing.T) {
	s := newTestStore(t)
	ws := seedWorkspace(t, s)
	seedSession(t, s, ws, "sess-1", time.Now().UTC())

	require.NoError(t, s.IndexSessionContent("sess-1", ws.ID, "we debugged the websocket reconnect loop"))

	hits, err := s.SearchSessions("websocket", ws.ID, 20)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "sess-1", hits[0].SessionID)

	// Other workspaces never see the content.
	hits, err = s.SearchSessions("websocket", "ws_other", 20)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, s.RemoveSessionIndex("sess-1"))
	hits, err = s.SearchSessions("websocket", ws.ID, 20)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBuildFTSQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"single word", "websocket", "websocket"},
		{"multiple words", "auth token refresh", "auth OR token OR refresh"},
		{"quoted phrase passthrough", `"exact phrase here"`, `"exact phrase here"`},
		{"hyphens split", "claude-code", "claude OR code"},
		{"path split", "src/auth/token.go", "src OR auth OR tokengo"},
		{"operators stripped", "a+b c*", "ab OR c"},
		{"only specials", "+++ ---", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildFTSQuery(tt.input))
		})
	}
}

func TestImportDedup(t *testing.T) {
	s := newTestStore(t)
	ws := seedWorkspace(t, s)

	sessions := []SessionRow{
		{Version: 1, ID: "sess-1", WorkspaceID: ws.ID, Agent: "claude-code", StartedAt: "2026-02-01T09:00:00Z"},
		{Version: 2, ID: "sess-bad", WorkspaceID: ws.ID, Agent: "claude-code", StartedAt: "2026-02-01T09:00:00Z"},
	}
	counts, err := s.ImportSessions(sessions)
	require.NoError(t, err)
	assert.Equal(t, ImportCounts{Inserted: 1, Errored: 1}, counts)

	// Second run skips the existing session.
	counts, err = s.ImportSessions(sessions[:1])
	require.NoError(t, err)
	assert.Equal(t, ImportCounts{Skipped: 1}, counts)

	detail := "because the upstream API throttles at 10 rps"
	nuggets := []NuggetRow{
		{Version: 1, SessionID: "sess-1", Type: "constraint", Summary: "rate limit is 10 rps", Detail: &detail, Confidence: 0.9, ExtractedAt: "2026-02-01T10:00:00Z"},
	}
	counts, err = s.ImportNuggets(nuggets)
	require.NoError(t, err)
	assert.Equal(t, ImportCounts{Inserted: 1}, counts)

	counts, err = s.ImportNuggets(nuggets)
	require.NoError(t, err)
	assert.Equal(t, ImportCounts{Skipped: 1}, counts)

	// Imported nuggets are searchable.
	hits, err := s.SearchNuggets("throttles", ws.ID, 20)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestExportRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ws := seedWorkspace(t, s)
	seedSession(t, s, ws, "sess-1", time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	_, err := s.InsertNugget(makeNugget("sess-1", NuggetDecision, "src/db.go", "chose sqlite over postgres", 0.8))
	require.NoError(t, err)
	require.NoError(t, s.InsertArtifacts("sess-1", []adapters.Artifact{
		{Type: "file", Path: "src/db.go", ChangeType: adapters.ChangeCreate, Author: adapters.AuthorAgent},
	}))

	sessRows, err := s.SessionsForExport(ws.ID)
	require.NoError(t, err)
	require.Len(t, sessRows, 1)
	assert.Equal(t, 1, sessRows[0].Version)

	nugRows, err := s.NuggetsForExport(ws.ID)
	require.NoError(t, err)
	require.Len(t, nugRows, 1)

	artRows, err := s.ArtifactsForExport(ws.ID)
	require.NoError(t, err)
	require.Len(t, artRows, 1)

	// Import into a fresh store reproduces the data.
	s2 := newTestStore(t)
	require.NoError(t, s2.UpsertWorkspace(ws))
	_, err = s2.ImportSessions(sessRows)
	require.NoError(t, err)
	_, err = s2.ImportNuggets(nugRows)
	require.NoError(t, err)
	_, err = s2.ImportArtifacts(artRows)
	require.NoError(t, err)

	nuggets, err := s2.NuggetsForSession("sess-1")
	require.NoError(t, err)
	require.Len(t, nuggets, 1)
	assert.Equal(t, "chose sqlite over postgres", nuggets[0].Summary)
}
