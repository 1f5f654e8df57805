package extraction

import (
	"fmt"
	"strings"
	"time"

	"github.com/openqed/openqed/internal/adapters"
)

const extractionSystem = `You are a context extraction engine for a code provenance system. Your job is to extract structured "context nuggets" from AI coding session transcripts.

Each nugget captures a single piece of provenance — WHY code is the way it is.

## Nugget Types

- **intent**: What the user or agent was trying to accomplish
- **decision**: A deliberate choice between alternatives (e.g., "chose Redis over Memcached")
- **constraint**: A requirement or limitation that shaped the code (e.g., "must support Node 18+")
- **rejection**: Something that was explicitly considered and rejected
- **tuning**: A case where the human edited AI-generated output
- **dependency**: A dependency added or removed and why
- **workaround**: A hack or temporary fix for an underlying issue
- **caveat**: An important warning about the code's behavior or limitations

## Output Format

Return a JSON array of nugget objects. Each object has:
- type: one of the types above
- summary: a concise 1-sentence summary (max 120 chars)
- detail: optional longer explanation (1-3 sentences)
- scope_path: optional file path this nugget applies to
- scope_symbol: optional function/class/variable name
- confidence: 0.0-1.0 how confident you are this is accurate
- alternatives: optional array of alternatives that were considered (for decisions/rejections)

Output ONLY the JSON array. No explanation, no markdown fences.`

// buildExtractionPrompt assembles the full prompt: rules, session metadata,
// touched files (capped at 30) and the condensed transcript.
func buildExtractionPrompt(parsed *adapters.ParsedSession, condensed string) string {
	sections := []string{extractionSystem}

	sections = append(sections, fmt.Sprintf(`## Session Metadata
- Session ID: %s
- Agent: %s
- Started: %s`,
		parsed.Session.ID, parsed.Session.Agent,
		parsed.Session.StartedAt.UTC().Format(time.RFC3339)))

	if len(parsed.AgentArtifactPaths) > 0 {
		paths := parsed.AgentArtifactPaths
		suffix := ""
		if len(paths) > 30 {
			suffix = fmt.Sprintf("\n...and %d more files", len(paths)-30)
			paths = paths[:30]
		}
		sections = append(sections, "## Files Modified\n"+strings.Join(paths, "\n")+suffix)
	}

	sections = append(sections, "## Session Transcript\n"+condensed)
	return strings.Join(sections, "\n\n")
}
