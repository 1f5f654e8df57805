package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openqed/openqed/internal/store"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"24h", 24 * time.Hour},
		{"3d", 3 * 24 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"2m", 60 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDuration(tt.input)
			require.NoError(t, err)
			assert.WithinDuration(t, time.Now().Add(-tt.want), got, 2*time.Second)
		})
	}
}

func TestParseDurationRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "3", "d3", "3y", "three days"} {
		_, err := parseDuration(input)
		assert.Error(t, err, input)
	}
}

func TestParseNuggetTypes(t *testing.T) {
	types, err := parseNuggetTypes("decision, constraint")
	require.NoError(t, err)
	assert.Equal(t, []store.NuggetType{store.NuggetDecision, store.NuggetConstraint}, types)

	types, err = parseNuggetTypes("")
	require.NoError(t, err)
	assert.Nil(t, types)

	_, err = parseNuggetTypes("decision,bogus")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "0123456...", truncate("0123456789extra", 10))
}

func TestKindConfigFromList(t *testing.T) {
	cfg := kindConfigFromList("nuggets, sessions")
	assert.True(t, cfg.Nuggets)
	assert.True(t, cfg.Sessions)
	assert.False(t, cfg.Decisions)
	assert.False(t, cfg.Events)
	assert.Equal(t, []string{"sessions", "nuggets"}, enabledKinds(cfg))
}

func TestEnsureGitignore(t *testing.T) {
	dir := t.TempDir()
	gitignore := filepath.Join(dir, ".gitignore")

	// No .gitignore yet: entry is created.
	require.NoError(t, ensureGitignore(dir, ".openqed/local/"))
	raw, err := os.ReadFile(gitignore)
	require.NoError(t, err)
	assert.Equal(t, ".openqed/local/\n", string(raw))

	// Idempotent.
	require.NoError(t, ensureGitignore(dir, ".openqed/local/"))
	raw, err = os.ReadFile(gitignore)
	require.NoError(t, err)
	assert.Equal(t, ".openqed/local/\n", string(raw))
}

func TestEnsureGitignoreMigratesWholeDirEntry(t *testing.T) {
	dir := t.TempDir()
	gitignore := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(gitignore, []byte("node_modules/\n.openqed/\n"), 0o644))

	require.NoError(t, ensureGitignore(dir, ".openqed/local/"))
	raw, err := os.ReadFile(gitignore)
	require.NoError(t, err)
	assert.Equal(t, "node_modules/\n.openqed/local/\n", string(raw))
}
