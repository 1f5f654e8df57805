package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openqed/openqed/internal/store"
)

type stubGenerator struct {
	response string
	err      error
	prompts  []string
}

func (g *stubGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.response, g.err
}

func TestParseNuggetsJSON(t *testing.T) {
	raw, err := parseNuggetsJSON(`[{"type":"decision","summary":"chose sqlite"}]`)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, "decision", raw[0].Type)

	// Fenced output is accepted even though the prompt forbids it.
	raw, err = parseNuggetsJSON("```json\n[{\"type\":\"caveat\",\"summary\":\"slow on cold start\"}]\n```")
	require.NoError(t, err)
	require.Len(t, raw, 1)

	// Almost-JSON is repaired before giving up.
	raw, err = parseNuggetsJSON(`[{"type":"decision","summary":"trailing comma",},]`)
	require.NoError(t, err)
	require.Len(t, raw, 1)

	_, err = parseNuggetsJSON(`{"not":"an array"}`)
	assert.Error(t, err)

	_, err = parseNuggetsJSON("total garbage")
	assert.Error(t, err)
}

func TestValidateNugget(t *testing.T) {
	conf := 1.7
	tests := []struct {
		name string
		raw  rawNugget
		want *store.Nugget
	}{
		{"unknown type dropped", rawNugget{Type: "opinion", Summary: "whatever"}, nil},
		{"short summary dropped", rawNugget{Type: "decision", Summary: "ab"}, nil},
		{"missing summary dropped", rawNugget{Type: "decision"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, validateNugget(tt.raw, "sess-1"))
		})
	}

	n := validateNugget(rawNugget{
		Type:         "decision",
		Summary:      "chose sqlite over postgres",
		Detail:       "embedded, zero-ops",
		ScopePath:    "src/db.go",
		Confidence:   &conf,
		Alternatives: []string{"postgres", "mysql"},
	}, "sess-1")
	require.NotNil(t, n)
	assert.Equal(t, store.NuggetDecision, n.Type)
	assert.Equal(t, 1.0, n.Confidence) // clamped
	assert.Equal(t, "src/db.go", n.ScopePath)
	assert.Equal(t, []string{"postgres", "mysql"}, n.Alternatives())

	// Confidence defaults to 0.7 when absent.
	n = validateNugget(rawNugget{Type: "caveat", Summary: "not thread safe"}, "sess-1")
	require.NotNil(t, n)
	assert.InDelta(t, 0.7, n.Confidence, 0.001)
}

func TestLLMNuggets(t *testing.T) {
	parsed := sampleParsed()

	gen := &stubGenerator{response: `[
		{"type":"constraint","summary":"retries capped at 3 to avoid thundering herd","scope_path":"src/client.go","confidence":0.9},
		{"type":"bogus","summary":"dropped"}
	]`}
	nuggets := LLMNuggets(context.Background(), gen, parsed)
	require.Len(t, nuggets, 1)
	assert.Equal(t, store.NuggetConstraint, nuggets[0].Type)

	// The prompt carries the rules, metadata and transcript.
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "## Nugget Types")
	assert.Contains(t, gen.prompts[0], "Session ID: sess-1")
	assert.Contains(t, gen.prompts[0], "## Files Modified")
	assert.Contains(t, gen.prompts[0], "[User] please add retry logic")
}

func TestLLMNuggetsDegradesToEmpty(t *testing.T) {
	parsed := sampleParsed()

	assert.Empty(t, LLMNuggets(context.Background(), nil, parsed))

	failing := &stubGenerator{err: errors.New("connection refused")}
	assert.Empty(t, LLMNuggets(context.Background(), failing, parsed))

	garbage := &stubGenerator{response: "I could not find any nuggets, sorry!"}
	assert.Empty(t, LLMNuggets(context.Background(), garbage, parsed))
}
