package extraction

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/openqed/openqed/internal/adapters"
	"github.com/openqed/openqed/internal/store"
	"github.com/openqed/openqed/internal/utils"
)

var (
	promptPrefixRe = regexp.MustCompile(`(?i)^(please\s+|can\s+you\s+|could\s+you\s+|i\s+want\s+to\s+|i\s+need\s+to\s+|let'?s\s+)`)
	trailingPunctRe = regexp.MustCompile(`[.!?]+$`)

	// File-like paths with a known source extension. The allowlist keeps
	// prose like "v1.2" or "etc." from becoming scope paths.
	fileMentionRe = regexp.MustCompile(`(?:^|\s)((?:\./|\.\./|src/|test/|lib/)?[\w./-]+\.(?:ts|js|tsx|jsx|json|md|css|html|py|rs|go|yaml|yml|toml|sql))`)
)

func cleanPromptToIntent(prompt string) string {
	subject := strings.SplitN(strings.TrimSpace(prompt), "\n", 2)[0]
	subject = promptPrefixRe.ReplaceAllString(subject, "")

	runes := []rune(subject)
	if len(runes) > 0 {
		runes[0] = unicode.ToLower(runes[0])
		subject = string(runes)
	}

	subject = trailingPunctRe.ReplaceAllString(subject, "")
	if len(subject) > 120 {
		subject = subject[:117] + "..."
	}
	return subject
}

func extractFileMentions(text string) []string {
	var mentions []string
	seen := make(map[string]bool)
	for _, match := range fileMentionRe.FindAllStringSubmatch(text, -1) {
		path := strings.TrimPrefix(match[1], "./")
		if !seen[path] {
			seen[path] = true
			mentions = append(mentions, path)
		}
	}
	return mentions
}

func tokenCost(text string) *int {
	cost := utils.EstimateTokens(text)
	return &cost
}

// HeuristicNuggets derives nuggets from a parsed session without any LLM.
// Always available; confidences reflect how speculative each rule is.
func HeuristicNuggets(parsed *adapters.ParsedSession) []*store.Nugget {
	var nuggets []*store.Nugget
	now := time.Now().UTC()
	sessionID := parsed.Session.ID

	// 1. Workspace-level intent from the first prompt.
	if len(parsed.UserPrompts) > 0 {
		firstPrompt := parsed.UserPrompts[0]
		intent := cleanPromptToIntent(firstPrompt)
		if len(intent) > 3 {
			detail := firstPrompt
			if len(detail) > 200 {
				detail = detail[:200]
			}
			nuggets = append(nuggets, &store.Nugget{
				SessionID:   sessionID,
				Type:        store.NuggetIntent,
				Summary:     intent,
				Detail:      detail,
				Confidence:  0.6,
				TokenCost:   tokenCost(intent),
				ExtractedAt: now,
			})
		}
	}

	// 2. Per-file intents where a prompt names a file the agent touched.
	artifactPaths := make(map[string]bool, len(parsed.AgentArtifactPaths))
	for _, path := range parsed.AgentArtifactPaths {
		artifactPaths[path] = true
	}
	for _, prompt := range parsed.UserPrompts {
		for _, path := range extractFileMentions(prompt) {
			if !artifactPaths[path] {
				continue
			}
			intent := cleanPromptToIntent(prompt)
			nuggets = append(nuggets, &store.Nugget{
				SessionID:   sessionID,
				Type:        store.NuggetIntent,
				Summary:     intent,
				ScopePath:   path,
				Confidence:  0.5,
				TokenCost:   tokenCost(intent),
				ExtractedAt: now,
			})
		}
	}

	// 3. Tuning markers where a human edited agent output.
	for _, artifact := range parsed.Artifacts {
		if artifact.Author == adapters.AuthorMixed && artifact.Path != "" {
			summary := "human-edited AI output in " + artifact.Path
			nuggets = append(nuggets, &store.Nugget{
				SessionID:   sessionID,
				Type:        store.NuggetTuning,
				Summary:     summary,
				ScopePath:   artifact.Path,
				Confidence:  0.65,
				TokenCost:   tokenCost(summary),
				ExtractedAt: now,
			})
		}
	}

	// 4. Change records for every non-read artifact.
	for _, artifact := range parsed.Artifacts {
		if artifact.ChangeType == adapters.ChangeRead || artifact.Path == "" {
			continue
		}
		var verb string
		switch artifact.ChangeType {
		case adapters.ChangeCreate:
			verb = "created"
		case adapters.ChangeModify:
			verb = "modified"
		case adapters.ChangeDelete:
			verb = "deleted"
		default:
			verb = "touched"
		}
		summary := verb + " " + artifact.Path
		nuggets = append(nuggets, &store.Nugget{
			SessionID:   sessionID,
			Type:        store.NuggetIntent,
			Summary:     summary,
			ScopePath:   artifact.Path,
			Confidence:  0.7,
			TokenCost:   tokenCost(summary),
			ExtractedAt: now,
		})
	}

	return nuggets
}
