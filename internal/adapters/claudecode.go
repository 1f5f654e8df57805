package adapters

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openqed/openqed/internal/utils"
	"github.com/openqed/openqed/internal/workspace"
)

// scanBufferSize bounds a single transcript line. Tool results can embed whole
// files, so this is generous.
const scanBufferSize = 10 * 1024 * 1024

// skipMarkers fast-reject transcript lines before JSON decoding. Progress
// events, history snapshots and queue operations carry nothing we mine.
var skipMarkers = []string{
	`"type":"progress"`,
	`"type":"file-history-snapshot"`,
	`"type":"queue-operation"`,
}

// toolChangeTypes maps write-like tool names to artifact change kinds. Only
// these tools synthesize artifacts.
var toolChangeTypes = map[string]ChangeType{
	"Write": ChangeCreate,
	"Edit":  ChangeModify,
	"Read":  ChangeRead,
}

// ClaudeCodeAdapter reads Claude Code JSONL transcripts from
// ~/.claude/projects/<hashed-workspace-path>/.
type ClaudeCodeAdapter struct {
	// projectDir resolves the transcript directory for a workspace path;
	// overridable in tests.
	projectDir func(workspacePath string) string
}

// NewClaudeCodeAdapter returns the adapter for Claude Code transcripts.
func NewClaudeCodeAdapter() *ClaudeCodeAdapter {
	return &ClaudeCodeAdapter{projectDir: utils.ProjectDir}
}

func (a *ClaudeCodeAdapter) AgentType() AgentType { return AgentClaudeCode }

// --- JSONL line shapes ---

type jsonlUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type jsonlContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     map[string]any  `json:"input,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
}

type jsonlMessage struct {
	Role    string          `json:"role,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
	Usage   *jsonlUsage     `json:"usage,omitempty"`
}

type jsonlLine struct {
	Type        string        `json:"type,omitempty"`
	SessionID   string        `json:"sessionId,omitempty"`
	Timestamp   string        `json:"timestamp,omitempty"`
	Message     *jsonlMessage `json:"message,omitempty"`
	IsSidechain bool          `json:"isSidechain,omitempty"`
}

type sessionIndexEntry struct {
	SessionID    string `json:"sessionId"`
	FullPath     string `json:"fullPath"`
	Created      string `json:"created"`
	Modified     string `json:"modified"`
	Summary      string `json:"summary,omitempty"`
	GitBranch    string `json:"gitBranch,omitempty"`
	FirstPrompt  string `json:"firstPrompt,omitempty"`
	MessageCount int    `json:"messageCount,omitempty"`
	IsSidechain  bool   `json:"isSidechain,omitempty"`
}

type sessionIndexFile struct {
	Sessions []sessionIndexEntry `json:"sessions"`
}

// --- Discovery ---

// FindSessions prefers the pre-built sessions-index.json; on absence or parse
// failure it falls back to scanning the raw transcript files.
func (a *ClaudeCodeAdapter) FindSessions(ws *workspace.Workspace) ([]*AgentSession, error) {
	projectDir := a.projectDir(ws.Path)

	if sessions, ok := a.discoverFromIndex(projectDir, ws); ok {
		slog.Debug("discovered sessions from index", "dir", projectDir, "count", len(sessions))
		return sessions, nil
	}

	sessions := a.discoverFromFiles(projectDir, ws)
	slog.Debug("discovered sessions from file scan", "dir", projectDir, "count", len(sessions))
	return sessions, nil
}

func (a *ClaudeCodeAdapter) discoverFromIndex(projectDir string, ws *workspace.Workspace) ([]*AgentSession, bool) {
	raw, err := os.ReadFile(filepath.Join(projectDir, "sessions-index.json"))
	if err != nil {
		return nil, false
	}

	var index sessionIndexFile
	if err := json.Unmarshal(raw, &index); err != nil {
		slog.Warn("failed to parse sessions-index.json", "dir", projectDir, "error", err)
		return nil, false
	}
	if index.Sessions == nil {
		return nil, false
	}

	sessions := make([]*AgentSession, 0, len(index.Sessions))
	for _, entry := range index.Sessions {
		if entry.IsSidechain {
			continue
		}
		started, _ := time.Parse(time.RFC3339, entry.Created)
		ended, _ := time.Parse(time.RFC3339, entry.Modified)
		sessions = append(sessions, &AgentSession{
			ID:        entry.SessionID,
			Workspace: ws,
			Agent:     AgentClaudeCode,
			StartedAt: started,
			EndedAt:   ended,
			RawPath:   entry.FullPath,
			Metadata: map[string]any{
				"gitBranch":    entry.GitBranch,
				"firstPrompt":  entry.FirstPrompt,
				"summary":      entry.Summary,
				"messageCount": entry.MessageCount,
			},
		})
	}

	sortSessionsNewestFirst(sessions)
	return sessions, true
}

func (a *ClaudeCodeAdapter) discoverFromFiles(projectDir string, ws *workspace.Workspace) []*AgentSession {
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		return nil
	}

	var sessions []*AgentSession
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		filePath := filepath.Join(projectDir, entry.Name())
		session, err := a.sessionFromFile(filePath, ws)
		if err != nil {
			slog.Debug("failed to process session file", "file", entry.Name(), "error", err)
			continue
		}
		sessions = append(sessions, session)
	}

	sortSessionsNewestFirst(sessions)
	return sessions
}

// sessionFromFile derives session id and start time from the first user-role
// line of a raw transcript.
func (a *ClaudeCodeAdapter) sessionFromFile(filePath string, ws *workspace.Workspace) (*AgentSession, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}

	sessionID := strings.TrimSuffix(filepath.Base(filePath), ".jsonl")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	var firstTimestamp time.Time

	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), scanBufferSize)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, `"file-history-snapshot"`) {
			continue
		}
		var parsed jsonlLine
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			continue
		}
		if parsed.Message != nil && parsed.Message.Role == "user" {
			if parsed.SessionID != "" {
				sessionID = parsed.SessionID
			}
			if ts, err := time.Parse(time.RFC3339, parsed.Timestamp); err == nil {
				firstTimestamp = ts
			}
			break
		}
	}

	started := firstTimestamp
	if started.IsZero() {
		started = info.ModTime()
	}

	return &AgentSession{
		ID:        sessionID,
		Workspace: ws,
		Agent:     AgentClaudeCode,
		StartedAt: started,
		EndedAt:   info.ModTime(),
		RawPath:   filePath,
	}, nil
}

func sortSessionsNewestFirst(sessions []*AgentSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
}

// FindLatestSession returns the newest session, or nil when none exist.
func (a *ClaudeCodeAdapter) FindLatestSession(ws *workspace.Workspace) (*AgentSession, error) {
	sessions, err := a.FindSessions(ws)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return sessions[0], nil
}

// FindSessionsInRange returns sessions whose span overlaps [since, until].
func (a *ClaudeCodeAdapter) FindSessionsInRange(ws *workspace.Workspace, since, until time.Time) ([]*AgentSession, error) {
	sessions, err := a.FindSessions(ws)
	if err != nil {
		return nil, err
	}
	var out []*AgentSession
	for _, s := range sessions {
		end := s.EndedAt
		if end.IsZero() {
			end = s.StartedAt
		}
		if !end.Before(since) && !s.StartedAt.After(until) {
			out = append(out, s)
		}
	}
	return out, nil
}

// --- Parsing ---

// ParseSession streams the session's JSONL transcript into the canonical
// model. Malformed lines are skipped, never fatal.
func (a *ClaudeCodeAdapter) ParseSession(session *AgentSession) (*ParsedSession, error) {
	if session.RawPath == "" {
		return nil, fmt.Errorf("session %s has no raw transcript path", session.ID)
	}

	f, err := os.Open(session.RawPath)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer func() { _ = f.Close() }()

	p := &transcriptParser{
		workspacePath: session.Workspace.Path,
		artifacts:     make(map[string]Artifact),
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), scanBufferSize)
	for scanner.Scan() {
		p.handleLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	return p.finish(session), nil
}

type transcriptParser struct {
	workspacePath  string
	events         []SessionEvent
	userPrompts    []string
	artifacts      map[string]Artifact
	artifactOrder  []string
	inputTokens    int
	outputTokens   int
	firstTimestamp time.Time
	lastTimestamp  time.Time
}

func (p *transcriptParser) handleLine(line string) {
	for _, marker := range skipMarkers {
		if strings.Contains(line, marker) {
			return
		}
	}

	var parsed jsonlLine
	if err := json.Unmarshal([]byte(line), &parsed); err != nil {
		return
	}
	if parsed.IsSidechain {
		return
	}

	timestamp, err := time.Parse(time.RFC3339, parsed.Timestamp)
	if err != nil {
		timestamp = time.Now().UTC()
	}
	if p.firstTimestamp.IsZero() {
		p.firstTimestamp = timestamp
	}
	p.lastTimestamp = timestamp

	msg := parsed.Message
	if msg == nil {
		return
	}

	if msg.Usage != nil {
		p.inputTokens += msg.Usage.InputTokens
		p.outputTokens += msg.Usage.OutputTokens
	}

	switch msg.Role {
	case "user":
		p.handleUserMessage(msg, timestamp)
	case "assistant":
		p.handleAssistantMessage(msg, timestamp)
	}
}

func (p *transcriptParser) handleUserMessage(msg *jsonlMessage, timestamp time.Time) {
	// Plain string content is a prompt; array content carries tool results.
	var text string
	if err := json.Unmarshal(msg.Content, &text); err == nil {
		if strings.HasPrefix(text, "<local-command-") || strings.HasPrefix(text, "<command-name>") {
			return // slash-command echo, not a real prompt
		}
		p.userPrompts = append(p.userPrompts, text)
		p.events = append(p.events, SessionEvent{Type: EventUserPrompt, Timestamp: timestamp, Content: text})
		return
	}

	var blocks []jsonlContentBlock
	if err := json.Unmarshal(msg.Content, &blocks); err != nil {
		return
	}
	for _, block := range blocks {
		if block.Type != "tool_result" {
			continue
		}
		var content string
		_ = json.Unmarshal(block.Content, &content)
		p.events = append(p.events, SessionEvent{
			Type:      EventToolResult,
			Timestamp: timestamp,
			Content:   content,
			ToolName:  block.ToolUseID,
		})
	}
}

func (p *transcriptParser) handleAssistantMessage(msg *jsonlMessage, timestamp time.Time) {
	var blocks []jsonlContentBlock
	if err := json.Unmarshal(msg.Content, &blocks); err != nil {
		return
	}

	for _, block := range blocks {
		switch block.Type {
		case "thinking":
			// Never mined.
		case "text":
			if block.Text != "" {
				p.events = append(p.events, SessionEvent{Type: EventAssistantText, Timestamp: timestamp, Content: block.Text})
			}
		case "tool_use":
			if block.Name == "" {
				continue
			}
			p.events = append(p.events, SessionEvent{
				Type:      EventToolCall,
				Timestamp: timestamp,
				ToolName:  block.Name,
				ToolInput: block.Input,
			})
			p.recordArtifact(block.Name, block.Input)
		}
	}
}

func (p *transcriptParser) recordArtifact(toolName string, input map[string]any) {
	changeType, ok := toolChangeTypes[toolName]
	if !ok || input == nil {
		return
	}
	filePath, _ := input["file_path"].(string)
	if filePath == "" {
		return
	}
	relPath := relativize(filePath, p.workspacePath)
	if _, seen := p.artifacts[relPath]; !seen {
		p.artifactOrder = append(p.artifactOrder, relPath)
	}
	p.artifacts[relPath] = Artifact{
		Type:       "file",
		Path:       relPath,
		ChangeType: changeType,
		Author:     AuthorAgent,
	}
}

func (p *transcriptParser) finish(session *AgentSession) *ParsedSession {
	artifacts := make([]Artifact, 0, len(p.artifacts))
	var agentPaths []string
	for _, path := range p.artifactOrder {
		artifact := p.artifacts[path]
		artifacts = append(artifacts, artifact)
		if artifact.ChangeType != ChangeRead {
			agentPaths = append(agentPaths, artifact.Path)
		}
	}

	started := p.firstTimestamp
	if started.IsZero() {
		started = time.Now().UTC()
	}

	return &ParsedSession{
		Session: &AgentSession{
			ID:          session.ID,
			Workspace:   session.Workspace,
			Agent:       AgentClaudeCode,
			StartedAt:   started,
			EndedAt:     p.lastTimestamp,
			TotalTokens: p.inputTokens + p.outputTokens,
			RawPath:     session.RawPath,
			Metadata:    session.Metadata,
		},
		Events:             p.events,
		Artifacts:          artifacts,
		UserPrompts:        p.userPrompts,
		AgentArtifactPaths: agentPaths,
	}
}

func relativize(absPath, workspacePath string) string {
	if strings.HasPrefix(absPath, workspacePath) {
		if rel, err := filepath.Rel(workspacePath, absPath); err == nil {
			return rel
		}
	}
	return absPath
}
