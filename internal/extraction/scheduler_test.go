package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openqed/openqed/internal/adapters"
	"github.com/openqed/openqed/internal/store"
)

func newExtractionStore(t *testing.T, parsed *adapters.ParsedSession) *store.Store {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.UpsertWorkspace(parsed.Session.Workspace))
	require.NoError(t, s.UpsertSession(parsed.Session))
	return s
}

func TestEnsureExtractedIdempotent(t *testing.T) {
	parsed := sampleParsed()
	s := newExtractionStore(t, parsed)
	ctx := context.Background()

	first, err := EnsureExtracted(ctx, s, parsed, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, first)

	// Second run returns the stored nuggets without re-extracting.
	second, err := EnsureExtracted(ctx, s, parsed, Options{})
	require.NoError(t, err)
	require.Len(t, second, len(first))
	assert.Equal(t, first[0].ID, second[0].ID)

	// The condensed digest was indexed exactly once.
	hits, err := s.SearchSessions("retry", parsed.Session.Workspace.ID, 20)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestEnsureExtractedForce(t *testing.T) {
	parsed := sampleParsed()
	s := newExtractionStore(t, parsed)
	ctx := context.Background()

	first, err := EnsureExtracted(ctx, s, parsed, Options{})
	require.NoError(t, err)

	again, err := EnsureExtracted(ctx, s, parsed, Options{Force: true})
	require.NoError(t, err)
	require.Len(t, again, len(first))
	// Fresh rows, old ones gone.
	assert.Greater(t, again[0].ID, first[len(first)-1].ID)

	hits, err := s.SearchSessions("retry", parsed.Session.Workspace.ID, 20)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestEnsureExtractedLLMReplacesHeuristic(t *testing.T) {
	parsed := sampleParsed()
	s := newExtractionStore(t, parsed)

	gen := &stubGenerator{response: `[{"type":"decision","summary":"retry with exponential backoff","scope_path":"src/client.go"}]`}
	nuggets, err := EnsureExtracted(context.Background(), s, parsed, Options{Generator: gen})
	require.NoError(t, err)
	require.Len(t, nuggets, 1)
	assert.Equal(t, store.NuggetDecision, nuggets[0].Type)
}

func TestEnsureExtractedLLMFailureFallsBack(t *testing.T) {
	parsed := sampleParsed()
	s := newExtractionStore(t, parsed)

	garbage := &stubGenerator{response: "no json here"}
	nuggets, err := EnsureExtracted(context.Background(), s, parsed, Options{Generator: garbage})
	require.NoError(t, err)
	// Heuristic drafts survive an unusable LLM response.
	require.NotEmpty(t, nuggets)
	assert.Equal(t, store.NuggetIntent, nuggets[0].Type)
}

func TestExtractBatch(t *testing.T) {
	parsed := sampleParsed()
	s := newExtractionStore(t, parsed)
	ctx := context.Background()

	// Pre-extract so the batch skips it.
	_, err := EnsureExtracted(ctx, s, parsed, Options{})
	require.NoError(t, err)

	other := sampleParsed()
	other.Session.ID = "sess-2"
	require.NoError(t, s.UpsertSession(other.Session))

	result, err := ExtractBatch(ctx, s, []*adapters.ParsedSession{parsed, other}, Options{})
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Extracted: 1, Skipped: 1}, result)
}

func TestExtractBatchDryRun(t *testing.T) {
	parsed := sampleParsed()
	s := newExtractionStore(t, parsed)

	result, err := ExtractBatch(context.Background(), s, []*adapters.ParsedSession{parsed}, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Extracted: 1}, result)

	has, err := s.HasNuggetsForSession(parsed.Session.ID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestExtractBatchCancellation(t *testing.T) {
	parsed := sampleParsed()
	s := newExtractionStore(t, parsed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExtractBatch(ctx, s, []*adapters.ParsedSession{parsed}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
