package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openqed/openqed/internal/workspace"
)

func testWorkspace(path string) *workspace.Workspace {
	return &workspace.Workspace{
		ID:   workspace.HashID(workspace.TypeFolder, path),
		Type: workspace.TypeFolder,
		Path: path,
		Name: filepath.Base(path),
	}
}

func writeTranscript(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseSession(t *testing.T) {
	dir := t.TempDir()
	wsDir := filepath.Join(dir, "myapp")
	require.NoError(t, os.MkdirAll(wsDir, 0o755))

	transcript := writeTranscript(t, dir, "abc.jsonl", []string{
		`{"type":"file-history-snapshot","snapshot":{}}`,
		`{"sessionId":"abc","timestamp":"2026-01-02T10:00:00Z","message":{"role":"user","content":"please fix the login bug"}}`,
		`{"sessionId":"abc","timestamp":"2026-01-02T10:00:05Z","message":{"role":"assistant","usage":{"input_tokens":100,"output_tokens":40},"content":[{"type":"thinking","thinking":"hmm"},{"type":"text","text":"Looking at the auth flow now."},{"type":"tool_use","name":"Read","input":{"file_path":"` + wsDir + `/src/auth.ts"}}]}}`,
		`{"sessionId":"abc","timestamp":"2026-01-02T10:00:08Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"file contents here"}]}}`,
		`{"sessionId":"abc","timestamp":"2026-01-02T10:00:12Z","message":{"role":"assistant","usage":{"input_tokens":200,"output_tokens":80},"content":[{"type":"tool_use","name":"Edit","input":{"file_path":"` + wsDir + `/src/auth.ts"}},{"type":"tool_use","name":"Write","input":{"file_path":"` + wsDir + `/src/auth_test.ts"}}]}}`,
		`{"sessionId":"abc","timestamp":"2026-01-02T10:00:20Z","isSidechain":true,"message":{"role":"user","content":"sidechain prompt"}}`,
		`not valid json at all`,
		`{"sessionId":"abc","timestamp":"2026-01-02T10:00:30Z","message":{"role":"user","content":"<command-name>/compact</command-name>"}}`,
	})

	adapter := NewClaudeCodeAdapter()
	parsed, err := adapter.ParseSession(&AgentSession{
		ID:        "abc",
		Workspace: testWorkspace(wsDir),
		Agent:     AgentClaudeCode,
		RawPath:   transcript,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"please fix the login bug"}, parsed.UserPrompts)
	assert.Equal(t, 420, parsed.Session.TotalTokens)
	assert.Equal(t, "2026-01-02T10:00:00Z", parsed.Session.StartedAt.Format("2006-01-02T15:04:05Z"))

	// Read was upgraded to Edit (last change wins), plus the new test file.
	require.Len(t, parsed.Artifacts, 2)
	assert.Equal(t, "src/auth.ts", parsed.Artifacts[0].Path)
	assert.Equal(t, ChangeModify, parsed.Artifacts[0].ChangeType)
	assert.Equal(t, "src/auth_test.ts", parsed.Artifacts[1].Path)
	assert.Equal(t, ChangeCreate, parsed.Artifacts[1].ChangeType)
	assert.ElementsMatch(t, []string{"src/auth.ts", "src/auth_test.ts"}, parsed.AgentArtifactPaths)

	// Events: prompt, assistant text, Read tool call, tool result, two tool calls.
	var promptCount, textCount, toolCount, resultCount int
	for _, ev := range parsed.Events {
		switch ev.Type {
		case EventUserPrompt:
			promptCount++
		case EventAssistantText:
			textCount++
		case EventToolCall:
			toolCount++
		case EventToolResult:
			resultCount++
		}
	}
	assert.Equal(t, 1, promptCount)
	assert.Equal(t, 1, textCount)
	assert.Equal(t, 3, toolCount)
	assert.Equal(t, 1, resultCount)
}

func TestFindSessionsFromIndex(t *testing.T) {
	dir := t.TempDir()
	indexJSON := `{"sessions":[
		{"sessionId":"old","fullPath":"` + dir + `/old.jsonl","created":"2026-01-01T08:00:00Z","modified":"2026-01-01T09:00:00Z"},
		{"sessionId":"side","fullPath":"` + dir + `/side.jsonl","created":"2026-01-03T08:00:00Z","modified":"2026-01-03T09:00:00Z","isSidechain":true},
		{"sessionId":"new","fullPath":"` + dir + `/new.jsonl","created":"2026-01-02T08:00:00Z","modified":"2026-01-02T09:00:00Z","gitBranch":"main"}
	]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sessions-index.json"), []byte(indexJSON), 0o644))

	adapter := NewClaudeCodeAdapter()
	adapter.projectDir = func(string) string { return dir }

	sessions, err := adapter.FindSessions(testWorkspace("/tmp/ws"))
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "new", sessions[0].ID)
	assert.Equal(t, "old", sessions[1].ID)
	assert.Equal(t, "main", sessions[0].Metadata["gitBranch"])
}

func TestFindSessionsFallbackScan(t *testing.T) {
	dir := t.TempDir()
	writeTranscript(t, dir, "s1.jsonl", []string{
		`{"type":"file-history-snapshot"}`,
		`{"sessionId":"s1","timestamp":"2026-01-05T12:00:00Z","message":{"role":"user","content":"hello"}}`,
	})
	writeTranscript(t, dir, "s2.jsonl", []string{
		`{"sessionId":"s2","timestamp":"2026-01-06T12:00:00Z","message":{"role":"user","content":"hi"}}`,
	})

	adapter := NewClaudeCodeAdapter()
	adapter.projectDir = func(string) string { return dir }

	sessions, err := adapter.FindSessions(testWorkspace("/tmp/ws"))
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s2", sessions[0].ID)
	assert.Equal(t, "s1", sessions[1].ID)
}

func TestFindLatestSessionEmpty(t *testing.T) {
	adapter := NewClaudeCodeAdapter()
	adapter.projectDir = func(string) string { return "/nonexistent" }

	latest, err := adapter.FindLatestSession(testWorkspace("/tmp/ws"))
	require.NoError(t, err)
	assert.Nil(t, latest)
}
