package extraction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openqed/openqed/internal/adapters"
	"github.com/openqed/openqed/internal/store"
)

func TestCleanPromptToIntent(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{"prefix stripped", "Please add retry logic.", "add retry logic"},
		{"can you", "Can you fix the flaky test?", "fix the flaky test"},
		{"lets", "Let's refactor the parser!", "refactor the parser"},
		{"first line only", "Fix the bug\nhere is the stack trace", "fix the bug"},
		{"lowercased", "Add logging", "add logging"},
		{"long prompt capped", strings.Repeat("x", 150), strings.Repeat("x", 117) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanPromptToIntent(tt.prompt))
		})
	}
}

func TestExtractFileMentions(t *testing.T) {
	mentions := extractFileMentions("update src/auth.go and ./config.yaml but not v1.2 or foo.exe")
	assert.Equal(t, []string{"src/auth.go", "config.yaml"}, mentions)

	// Duplicates collapse.
	mentions = extractFileMentions("src/a.ts then src/a.ts again")
	assert.Equal(t, []string{"src/a.ts"}, mentions)

	assert.Empty(t, extractFileMentions("no files here"))
}

func TestHeuristicNuggets(t *testing.T) {
	parsed := sampleParsed()
	nuggets := HeuristicNuggets(parsed)
	require.NotEmpty(t, nuggets)

	// First-prompt intent at 0.6.
	first := nuggets[0]
	assert.Equal(t, store.NuggetIntent, first.Type)
	assert.Equal(t, "add retry logic to src/client.go", first.Summary)
	assert.InDelta(t, 0.6, first.Confidence, 0.001)
	assert.Empty(t, first.ScopePath)

	// The prompt names src/client.go, which the agent touched: scoped intent
	// at 0.5.
	var scoped *store.Nugget
	for _, n := range nuggets {
		if n.ScopePath == "src/client.go" && n.Confidence == 0.5 {
			scoped = n
		}
	}
	require.NotNil(t, scoped)
	assert.Equal(t, store.NuggetIntent, scoped.Type)

	// Non-read artifact produces a change record at 0.7.
	var change *store.Nugget
	for _, n := range nuggets {
		if n.Summary == "modified src/client.go" {
			change = n
		}
	}
	require.NotNil(t, change)
	assert.InDelta(t, 0.7, change.Confidence, 0.001)
}

func TestHeuristicTuningNugget(t *testing.T) {
	parsed := sampleParsed()
	parsed.Artifacts = append(parsed.Artifacts, adapters.Artifact{
		Type: "file", Path: "src/tweaked.go",
		ChangeType: adapters.ChangeModify, Author: adapters.AuthorMixed,
	})

	nuggets := HeuristicNuggets(parsed)
	var tuning *store.Nugget
	for _, n := range nuggets {
		if n.Type == store.NuggetTuning {
			tuning = n
		}
	}
	require.NotNil(t, tuning)
	assert.Equal(t, "human-edited AI output in src/tweaked.go", tuning.Summary)
	assert.InDelta(t, 0.65, tuning.Confidence, 0.001)
	assert.Equal(t, "src/tweaked.go", tuning.ScopePath)
}

func TestHeuristicEmptySession(t *testing.T) {
	parsed := sampleParsed()
	parsed.UserPrompts = nil
	parsed.Artifacts = nil
	parsed.AgentArtifactPaths = nil
	assert.Empty(t, HeuristicNuggets(parsed))
}
