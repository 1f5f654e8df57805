package extraction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openqed/openqed/internal/adapters"
	"github.com/openqed/openqed/internal/llm"
	"github.com/openqed/openqed/internal/store"
)

// Options controls one extraction run.
type Options struct {
	// Force re-extracts even when nuggets already exist, replacing them.
	Force bool
	// Generator enables LLM extraction; nil means heuristics only.
	Generator llm.TextGenerator
	// DryRun counts work in batch mode without touching the store.
	DryRun bool
}

// EnsureExtracted makes sure a session has nuggets, extracting on first
// sight. Idempotent: repeat calls return the stored nuggets untouched unless
// Force is set. LLM output, when non-empty, replaces the heuristic drafts
// rather than merging with them.
func EnsureExtracted(ctx context.Context, st *store.Store, parsed *adapters.ParsedSession, opts Options) ([]*store.Nugget, error) {
	sessionID := parsed.Session.ID
	workspaceID := parsed.Session.Workspace.ID

	if !opts.Force {
		has, err := st.HasNuggetsForSession(sessionID)
		if err != nil {
			return nil, err
		}
		if has {
			return st.NuggetsForSession(sessionID)
		}
	} else {
		if err := st.DeleteNuggetsForSession(sessionID); err != nil {
			return nil, err
		}
		if err := st.RemoveSessionIndex(sessionID); err != nil {
			return nil, err
		}
	}

	drafts := HeuristicNuggets(parsed)
	if opts.Generator != nil {
		if llmDrafts := LLMNuggets(ctx, opts.Generator, parsed); len(llmDrafts) > 0 {
			drafts = llmDrafts
		}
	}

	if len(drafts) > 0 {
		if _, err := st.InsertNuggets(drafts); err != nil {
			return nil, fmt.Errorf("store nuggets: %w", err)
		}
	}

	condensed := Condense(parsed, DefaultCondenseTokens)
	if err := st.IndexSessionContent(sessionID, workspaceID, condensed); err != nil {
		return nil, err
	}

	return st.NuggetsForSession(sessionID)
}

// BatchResult tallies an ExtractBatch run.
type BatchResult struct {
	Extracted int
	Skipped   int
	Failed    int
}

// ExtractBatch runs EnsureExtracted over many sessions sequentially. One
// session's failure never aborts the rest; cancellation is honored between
// sessions.
func ExtractBatch(ctx context.Context, st *store.Store, sessions []*adapters.ParsedSession, opts Options) (BatchResult, error) {
	var result BatchResult
	for _, parsed := range sessions {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		sessionID := parsed.Session.ID

		if !opts.Force {
			has, err := st.HasNuggetsForSession(sessionID)
			if err != nil {
				result.Failed++
				continue
			}
			if has {
				result.Skipped++
				continue
			}
		}

		if opts.DryRun {
			result.Extracted++
			continue
		}

		if _, err := EnsureExtracted(ctx, st, parsed, opts); err != nil {
			slog.Debug("extraction failed", "session", sessionID, "error", err)
			result.Failed++
			continue
		}
		result.Extracted++
	}
	return result, nil
}
