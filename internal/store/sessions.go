package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openqed/openqed/internal/adapters"
	"github.com/openqed/openqed/internal/workspace"
)

func marshalMeta(m map[string]any) any {
	if len(m) == 0 {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return string(raw)
}

func unmarshalMeta(raw sql.NullString) map[string]any {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return nil
	}
	return m
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// UpsertWorkspace records a workspace, replacing any prior row.
func (s *Store) UpsertWorkspace(ws *workspace.Workspace) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO workspaces (id, type, path, name, updated_at)
		 VALUES (?, ?, ?, ?, datetime('now'))`,
		ws.ID, string(ws.Type), ws.Path, ws.Name,
	)
	if err != nil {
		return fmt.Errorf("upsert workspace: %w", err)
	}
	return nil
}

// UpsertSession records a session, replacing any prior row with the same id.
func (s *Store) UpsertSession(session *adapters.AgentSession) error {
	var ended any
	if !session.EndedAt.IsZero() {
		ended = formatTime(session.EndedAt)
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO sessions (id, workspace_id, agent, started_at, ended_at, total_tokens, raw_path, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Workspace.ID, string(session.Agent),
		formatTime(session.StartedAt), ended, session.TotalTokens,
		session.RawPath, marshalMeta(session.Metadata),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// InsertEvents stores a session's events in one transaction.
func (s *Store) InsertEvents(sessionID string, events []adapters.SessionEvent) error {
	return s.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(
			`INSERT INTO events (session_id, type, timestamp, content, tool_name, tool_input, tool_output)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare event insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, ev := range events {
			if _, err := stmt.Exec(
				sessionID, string(ev.Type), formatTime(ev.Timestamp),
				ev.Content, ev.ToolName, marshalMeta(ev.ToolInput), ev.ToolOut,
			); err != nil {
				return fmt.Errorf("insert event: %w", err)
			}
		}
		return nil
	})
}

// InsertArtifacts stores a session's artifacts in one transaction.
func (s *Store) InsertArtifacts(sessionID string, artifacts []adapters.Artifact) error {
	return s.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(
			`INSERT INTO artifacts (session_id, type, path, uri, change_type, author, size_bytes, content_hash)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare artifact insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, a := range artifacts {
			if _, err := stmt.Exec(
				sessionID, a.Type, a.Path, a.URI, string(a.ChangeType),
				string(a.Author), a.SizeBytes, a.ContentHash,
			); err != nil {
				return fmt.Errorf("insert artifact: %w", err)
			}
		}
		return nil
	})
}

// InsertDecision records an explicit decision for a session.
func (s *Store) InsertDecision(d *Decision) (int64, error) {
	var alts any
	if len(d.Alternatives) > 0 {
		raw, err := json.Marshal(d.Alternatives)
		if err == nil {
			alts = string(raw)
		}
	}
	res, err := s.db.Exec(
		`INSERT INTO decisions (session_id, description, reasoning, alternatives)
		 VALUES (?, ?, ?, ?)`,
		d.SessionID, d.Description, d.Reasoning, alts,
	)
	if err != nil {
		return 0, fmt.Errorf("insert decision: %w", err)
	}
	return res.LastInsertId()
}

const sessionColumns = `
	s.id, s.agent, s.started_at, s.ended_at, s.total_tokens, s.raw_path, s.metadata,
	w.id, w.type, w.path, w.name`

func scanSession(scan func(dest ...any) error) (*adapters.AgentSession, error) {
	var (
		id, agent, startedAt string
		endedAt, rawPath     sql.NullString
		totalTokens          sql.NullInt64
		meta                 sql.NullString
		wsID, wsType, wsPath string
		wsName               sql.NullString
	)
	if err := scan(&id, &agent, &startedAt, &endedAt, &totalTokens, &rawPath, &meta,
		&wsID, &wsType, &wsPath, &wsName); err != nil {
		return nil, err
	}

	session := &adapters.AgentSession{
		ID:    id,
		Agent: adapters.AgentType(agent),
		Workspace: &workspace.Workspace{
			ID:   wsID,
			Type: workspace.Type(wsType),
			Path: wsPath,
			Name: wsName.String,
		},
		StartedAt:   parseTime(startedAt),
		TotalTokens: int(totalTokens.Int64),
		RawPath:     rawPath.String,
		Metadata:    unmarshalMeta(meta),
	}
	if endedAt.Valid {
		session.EndedAt = parseTime(endedAt.String)
	}
	return session, nil
}

// GetSession fetches one session with its workspace, or nil when absent.
func (s *Store) GetSession(sessionID string) (*adapters.AgentSession, error) {
	row := s.db.QueryRow(
		`SELECT `+sessionColumns+`
		 FROM sessions s JOIN workspaces w ON s.workspace_id = w.id
		 WHERE s.id = ?`, sessionID)
	session, err := scanSession(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// SessionQuery filters SessionsByWorkspace.
type SessionQuery struct {
	Since time.Time
	Until time.Time
	Agent string
	Limit int
}

// SessionsByWorkspace lists sessions for a workspace, newest first.
func (s *Store) SessionsByWorkspace(workspaceID string, q SessionQuery) ([]*adapters.AgentSession, error) {
	conditions := "s.workspace_id = ?"
	params := []any{workspaceID}
	if !q.Since.IsZero() {
		conditions += " AND s.started_at >= ?"
		params = append(params, formatTime(q.Since))
	}
	if !q.Until.IsZero() {
		conditions += " AND s.started_at <= ?"
		params = append(params, formatTime(q.Until))
	}
	if q.Agent != "" {
		conditions += " AND s.agent = ?"
		params = append(params, q.Agent)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	params = append(params, limit)

	rows, err := s.db.Query(
		`SELECT `+sessionColumns+`
		 FROM sessions s JOIN workspaces w ON s.workspace_id = w.id
		 WHERE `+conditions+`
		 ORDER BY s.started_at DESC
		 LIMIT ?`, params...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*adapters.AgentSession
	for rows.Next() {
		session, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// SessionsByArtifactPath lists sessions that touched a workspace-relative
// path, newest first.
func (s *Store) SessionsByArtifactPath(workspaceID, relPath string) ([]*adapters.AgentSession, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT `+sessionColumns+`
		 FROM sessions s
		 JOIN workspaces w ON s.workspace_id = w.id
		 JOIN artifacts a ON a.session_id = s.id
		 WHERE s.workspace_id = ? AND a.path = ?
		 ORDER BY s.started_at DESC`, workspaceID, relPath)
	if err != nil {
		return nil, fmt.Errorf("list sessions by artifact: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*adapters.AgentSession
	for rows.Next() {
		session, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// ArtifactContentHash returns the content hash recorded for a path within a
// session, or "" when none was recorded.
func (s *Store) ArtifactContentHash(sessionID, relPath string) (string, error) {
	var hash sql.NullString
	err := s.db.QueryRow(
		`SELECT content_hash FROM artifacts
		 WHERE session_id = ? AND path = ? AND content_hash IS NOT NULL AND content_hash != ''
		 LIMIT 1`, sessionID, relPath).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("artifact hash: %w", err)
	}
	return hash.String, nil
}

// SessionArtifacts returns the artifacts recorded for a session.
func (s *Store) SessionArtifacts(sessionID string) ([]adapters.Artifact, error) {
	rows, err := s.db.Query(
		`SELECT type, path, uri, change_type, author, size_bytes, content_hash
		 FROM artifacts WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var artifacts []adapters.Artifact
	for rows.Next() {
		var (
			a                     adapters.Artifact
			typ, changeType, auth string
			path, uri, hash       sql.NullString
			size                  sql.NullInt64
		)
		if err := rows.Scan(&typ, &path, &uri, &changeType, &auth, &size, &hash); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.Type = typ
		a.Path = path.String
		a.URI = uri.String
		a.ChangeType = adapters.ChangeType(changeType)
		a.Author = adapters.Author(auth)
		a.SizeBytes = size.Int64
		a.ContentHash = hash.String
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}
