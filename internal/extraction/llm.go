package extraction

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/openqed/openqed/internal/adapters"
	"github.com/openqed/openqed/internal/llm"
	"github.com/openqed/openqed/internal/store"
	"github.com/openqed/openqed/internal/utils"
)

var (
	fenceOpenRe  = regexp.MustCompile("^```(?:json)?\\s*\n?")
	fenceCloseRe = regexp.MustCompile("\n?```\\s*$")
)

type rawNugget struct {
	Type         string   `json:"type"`
	Summary      string   `json:"summary"`
	Detail       string   `json:"detail"`
	ScopePath    string   `json:"scope_path"`
	ScopeSymbol  string   `json:"scope_symbol"`
	Confidence   *float64 `json:"confidence"`
	Alternatives []string `json:"alternatives"`
}

func parseNuggetsJSON(text string) ([]rawNugget, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = fenceOpenRe.ReplaceAllString(cleaned, "")
		cleaned = fenceCloseRe.ReplaceAllString(cleaned, "")
	}

	var parsed []rawNugget
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		// One repair attempt for the almost-JSON LLMs like to emit.
		if repairErr := json.Unmarshal([]byte(utils.RepairJSON(cleaned)), &parsed); repairErr != nil {
			return nil, err
		}
	}
	return parsed, nil
}

func validateNugget(raw rawNugget, sessionID string) *store.Nugget {
	if !store.ValidNuggetType(store.NuggetType(raw.Type)) {
		return nil
	}
	if len(raw.Summary) < 3 {
		return nil
	}

	summary := raw.Summary
	if len(summary) > 200 {
		summary = summary[:200]
	}
	detail := raw.Detail
	if len(detail) > 500 {
		detail = detail[:500]
	}

	confidence := 0.7
	if raw.Confidence != nil {
		confidence = max(0, min(1, *raw.Confidence))
	}

	var metadata map[string]any
	if len(raw.Alternatives) > 0 {
		alts := make([]any, len(raw.Alternatives))
		for i, a := range raw.Alternatives {
			alts[i] = a
		}
		metadata = map[string]any{"alternatives": alts}
	}

	return &store.Nugget{
		SessionID:   sessionID,
		Type:        store.NuggetType(raw.Type),
		Summary:     summary,
		Detail:      detail,
		ScopePath:   raw.ScopePath,
		ScopeSymbol: raw.ScopeSymbol,
		Confidence:  confidence,
		TokenCost:   tokenCost(summary + detail),
		ExtractedAt: time.Now().UTC(),
		Metadata:    metadata,
	}
}

// LLMNuggets asks the generation collaborator to mine nuggets from a
// condensed session. Any failure — no provider, timeout, unparseable
// response — yields an empty slice so callers fall back to heuristics.
func LLMNuggets(ctx context.Context, gen llm.TextGenerator, parsed *adapters.ParsedSession) []*store.Nugget {
	if gen == nil {
		return nil
	}

	condensed := Condense(parsed, DefaultCondenseTokens)
	prompt := buildExtractionPrompt(parsed, condensed)

	result, err := gen.GenerateText(ctx, prompt)
	if err != nil {
		slog.Debug("llm extraction unavailable", "session", parsed.Session.ID, "error", err)
		return nil
	}

	rawNuggets, err := parseNuggetsJSON(result)
	if err != nil {
		slog.Debug("llm returned unparseable nuggets", "session", parsed.Session.ID, "error", err)
		return nil
	}

	var validated []*store.Nugget
	for _, raw := range rawNuggets {
		if n := validateNugget(raw, parsed.Session.ID); n != nil {
			validated = append(validated, n)
		}
	}
	slog.Debug("llm extraction complete",
		"session", parsed.Session.ID, "raw", len(rawNuggets), "valid", len(validated))
	return validated
}
