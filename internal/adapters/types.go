// Package adapters parses agent-specific transcript formats into a canonical
// session/event/artifact model. One adapter exists per agent type; the
// registry picks the right one from the agent tag.
package adapters

import (
	"time"

	"github.com/openqed/openqed/internal/workspace"
)

// AgentType tags which coding agent produced a session.
type AgentType string

const (
	AgentClaudeCode AgentType = "claude-code"
	AgentKiroCLI    AgentType = "kiro-cli"
	AgentCowork     AgentType = "cowork"
	AgentClaudeWeb  AgentType = "claude-web"
	AgentChatGPT    AgentType = "chatgpt"
	AgentGemini     AgentType = "gemini"
)

// AgentSession is one agent-assisted working session. Immutable after
// ingestion.
type AgentSession struct {
	ID          string
	Workspace   *workspace.Workspace
	Agent       AgentType
	StartedAt   time.Time
	EndedAt     time.Time
	TotalTokens int
	RawPath     string
	Metadata    map[string]any
}

// EventType discriminates session events.
type EventType string

const (
	EventUserPrompt    EventType = "user_prompt"
	EventAssistantText EventType = "assistant_text"
	EventToolCall      EventType = "tool_call"
	EventToolResult    EventType = "tool_result"
)

// SessionEvent is one observed occurrence within a session, ordered by
// occurrence and never mutated.
type SessionEvent struct {
	Type      EventType
	Timestamp time.Time
	Content   string
	ToolName  string
	ToolInput map[string]any
	ToolOut   string
}

// ChangeType classifies how an artifact was touched.
type ChangeType string

const (
	ChangeCreate   ChangeType = "create"
	ChangeModify   ChangeType = "modify"
	ChangeDelete   ChangeType = "delete"
	ChangeRead     ChangeType = "read"
	ChangeDownload ChangeType = "download"
)

// Author tags who wrote an artifact's content.
type Author string

const (
	AuthorAgent Author = "agent"
	AuthorHuman Author = "human"
	AuthorMixed Author = "mixed"
)

// Artifact is a file (or URI) touched during a session, keyed by path.
type Artifact struct {
	Type        string // file, document, image, url, data
	Path        string
	URI         string
	ChangeType  ChangeType
	Author      Author
	SizeBytes   int64
	ContentHash string
}

// ParsedSession is the canonical output of an adapter's ParseSession.
type ParsedSession struct {
	Session     *AgentSession
	Events      []SessionEvent
	Artifacts   []Artifact
	UserPrompts []string
	// AgentArtifactPaths is the set of paths with non-read changes; the
	// integration point for attribution logic outside this engine.
	AgentArtifactPaths []string
}

// Adapter is the per-agent transcript capability.
type Adapter interface {
	AgentType() AgentType
	// FindSessions discovers sessions for a workspace, newest first.
	FindSessions(ws *workspace.Workspace) ([]*AgentSession, error)
	// ParseSession parses a discovered session's raw transcript.
	ParseSession(session *AgentSession) (*ParsedSession, error)
	// FindLatestSession returns the most recent session, or nil.
	FindLatestSession(ws *workspace.Workspace) (*AgentSession, error)
	// FindSessionsInRange returns sessions overlapping [since, until].
	FindSessionsInRange(ws *workspace.Workspace, since, until time.Time) ([]*AgentSession, error)
}
