// Package extraction mines parsed sessions into provenance nuggets, either
// with cheap heuristics or with an LLM collaborator.
package extraction

import (
	"fmt"
	"strings"
	"time"

	"github.com/openqed/openqed/internal/adapters"
	"github.com/openqed/openqed/internal/utils"
)

// DefaultCondenseTokens is the digest budget handed to extraction prompts.
const DefaultCondenseTokens = 8000

func condenseTool(event adapters.SessionEvent) string {
	name := event.ToolName

	// Reads carry no intent.
	if name == "Read" || name == "View" {
		return ""
	}

	if name == "Write" || name == "Edit" {
		filePath := inputString(event.ToolInput, "file_path", "path")
		content := inputString(event.ToolInput, "content", "new_string")
		if filePath == "" {
			return ""
		}

		lines := strings.Split(content, "\n")
		snippet := content
		if len(lines) > 10 {
			first5 := strings.Join(lines[:5], "\n")
			last5 := strings.Join(lines[len(lines)-5:], "\n")
			snippet = fmt.Sprintf("%s\n...(%d lines omitted)...\n%s", first5, len(lines)-10, last5)
		}
		return fmt.Sprintf("[%s] %s\n%s", name, filePath, snippet)
	}

	if name == "Bash" || name == "bash" {
		command := inputString(event.ToolInput, "command")
		output := event.ToolOut
		outputLines := strings.Split(output, "\n")
		truncated := output
		if len(outputLines) > 10 {
			truncated = strings.Join(outputLines[:10], "\n") + "\n...(truncated)"
		}
		return fmt.Sprintf("[Bash] $ %s\n%s", command, truncated)
	}

	if filePath := inputString(event.ToolInput, "file_path", "path"); filePath != "" {
		return fmt.Sprintf("[%s] %s", name, filePath)
	}
	return fmt.Sprintf("[%s]", name)
}

func inputString(input map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := input[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Condense renders a parsed session as a compact plain-text digest: all user
// prompts verbatim, tool calls summarized, long assistant text truncated.
// Deterministic and order-preserving; hard-capped at targetTokens.
func Condense(parsed *adapters.ParsedSession, targetTokens int) string {
	if targetTokens <= 0 {
		targetTokens = DefaultCondenseTokens
	}

	var parts []string
	parts = append(parts, "Session: "+parsed.Session.ID)
	parts = append(parts, "Agent: "+string(parsed.Session.Agent))
	parts = append(parts, "Started: "+parsed.Session.StartedAt.UTC().Format(time.RFC3339))
	if !parsed.Session.EndedAt.IsZero() {
		parts = append(parts, "Ended: "+parsed.Session.EndedAt.UTC().Format(time.RFC3339))
	}
	parts = append(parts, "")

	for _, event := range parsed.Events {
		switch event.Type {
		case adapters.EventUserPrompt:
			if event.Content != "" {
				parts = append(parts, "[User] "+event.Content, "")
			}
		case adapters.EventToolCall:
			if condensed := condenseTool(event); condensed != "" {
				parts = append(parts, condensed, "")
			}
		case adapters.EventAssistantText:
			// Short acknowledgements are noise.
			if len(event.Content) > 50 {
				text := event.Content
				if len(text) > 200 {
					text = text[:200] + "..."
				}
				parts = append(parts, "[Assistant] "+text, "")
			}
		}
		// tool_result boilerplate is skipped entirely
	}

	result := strings.Join(parts, "\n")
	if utils.EstimateTokens(result) > targetTokens {
		result = utils.TruncateToTokenBudget(result, targetTokens) + "\n...(truncated)"
	}
	return result
}
