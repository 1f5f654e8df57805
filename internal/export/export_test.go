package export

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openqed/openqed/internal/adapters"
	"github.com/openqed/openqed/internal/store"
	"github.com/openqed/openqed/internal/utils"
	"github.com/openqed/openqed/internal/workspace"
)

const wsPath = "/ws/myapp"

func exportFixture(t *testing.T) (*store.Store, *workspace.Workspace) {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ws := &workspace.Workspace{
		ID: "ws_export00001", Type: workspace.TypeFolder, Path: wsPath, Name: "myapp",
	}
	require.NoError(t, s.UpsertWorkspace(ws))
	require.NoError(t, s.UpsertSession(&adapters.AgentSession{
		ID: "sess-1", Workspace: ws, Agent: adapters.AgentClaudeCode,
		StartedAt: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}))
	_, err = s.InsertNugget(&store.Nugget{
		SessionID: "sess-1", Type: store.NuggetConstraint,
		Summary: "api key sk-abc123def456ghi789jkl012mno345pqr must rotate",
		Confidence: 0.9, ExtractedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, s.InsertArtifacts("sess-1", []adapters.Artifact{
		{Type: "file", Path: "src/db.go", ChangeType: adapters.ChangeCreate, Author: adapters.AuthorAgent},
	}))
	return s, ws
}

func TestLoadConfigDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg, err := LoadConfig(fs, wsPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.True(t, cfg.Export.Nuggets)
	assert.False(t, cfg.Export.Events)
}

func TestConfigRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteDefaultConfig(fs, wsPath))

	cfg, err := LoadConfig(fs, wsPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigBadVersion(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join(wsPath, utils.ConfigFile)
	require.NoError(t, afero.WriteFile(fs, path, []byte("version: 9\n"), 0o644))

	_, err := LoadConfig(fs, wsPath)
	assert.Error(t, err)
}

func TestExportWritesRedactedJSONL(t *testing.T) {
	s, ws := exportFixture(t)
	fs := afero.NewMemMapFs()

	summary, err := Export(fs, s, ws.ID, wsPath, DefaultConfig().Export)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sessions)
	assert.Equal(t, 1, summary.Nuggets)
	assert.Equal(t, 1, summary.Artifacts)
	assert.Zero(t, summary.Events)

	raw, err := afero.ReadFile(fs, filepath.Join(wsPath, utils.DataSubdir, "nuggets.jsonl"))
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, utils.RedactionMarker)
	assert.NotContains(t, content, "sk-abc123")
	assert.Contains(t, content, `"_v":1`)

	// No temp files left behind.
	exists, err := afero.Exists(fs, filepath.Join(wsPath, utils.DataSubdir, "nuggets.jsonl.tmp"))
	require.NoError(t, err)
	assert.False(t, exists)

	// Decisions were enabled but empty: file exists, zero bytes.
	raw, err = afero.ReadFile(fs, filepath.Join(wsPath, utils.DataSubdir, "decisions.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, raw)

	// Events disabled by default: no file.
	exists, err = afero.Exists(fs, filepath.Join(wsPath, utils.DataSubdir, "events.jsonl"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestImportMissingFilesIsZero(t *testing.T) {
	s, _ := exportFixture(t)
	fs := afero.NewMemMapFs()

	summary, err := Import(fs, s, wsPath, DefaultConfig().Export)
	require.NoError(t, err)
	assert.Zero(t, summary.Sessions.Inserted)
	assert.Zero(t, summary.Nuggets.Inserted)
}

func TestExportImportRoundTrip(t *testing.T) {
	s, ws := exportFixture(t)
	fs := afero.NewMemMapFs()

	_, err := Export(fs, s, ws.ID, wsPath, DefaultConfig().Export)
	require.NoError(t, err)

	// Fresh store on "another machine".
	s2, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Close() })
	require.NoError(t, s2.UpsertWorkspace(ws))

	summary, err := Import(fs, s2, wsPath, DefaultConfig().Export)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sessions.Inserted)
	assert.Equal(t, 1, summary.Nuggets.Inserted)
	assert.Equal(t, 1, summary.Artifacts.Inserted)

	// Importing again is a no-op.
	summary, err = Import(fs, s2, wsPath, DefaultConfig().Export)
	require.NoError(t, err)
	assert.Zero(t, summary.Sessions.Inserted)
	assert.Equal(t, 1, summary.Sessions.Skipped)
	assert.Equal(t, 1, summary.Nuggets.Skipped)
	assert.Equal(t, 1, summary.Artifacts.Skipped)

	nuggets, err := s2.NuggetsForSession("sess-1")
	require.NoError(t, err)
	require.Len(t, nuggets, 1)
	assert.True(t, strings.Contains(nuggets[0].Summary, utils.RedactionMarker))
}
