package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Row types mirror SQLite columns for sync. Autoincrement ids stay local to
// each machine and are never included.

// SessionRow is a sessions row in export form.
type SessionRow struct {
	Version     int     `json:"_v"`
	ID          string  `json:"id"`
	WorkspaceID string  `json:"workspace_id"`
	Agent       string  `json:"agent"`
	StartedAt   string  `json:"started_at"`
	EndedAt     *string `json:"ended_at"`
	TotalTokens *int64  `json:"total_tokens"`
	Summary     *string `json:"summary"`
	RawPath     *string `json:"raw_path"`
	Metadata    *string `json:"metadata"`
}

// NuggetRow is a context_nuggets row in export form.
type NuggetRow struct {
	Version     int     `json:"_v"`
	SessionID   string  `json:"session_id"`
	Type        string  `json:"type"`
	Summary     string  `json:"summary"`
	Detail      *string `json:"detail"`
	ScopePath   *string `json:"scope_path"`
	ScopeSymbol *string `json:"scope_symbol"`
	Confidence  float64 `json:"confidence"`
	TokenCost   *int64  `json:"token_cost"`
	ExtractedAt string  `json:"extracted_at"`
	StaleAfter  *string `json:"stale_after"`
	Metadata    *string `json:"metadata"`
}

// DecisionRow is a decisions row in export form.
type DecisionRow struct {
	Version      int     `json:"_v"`
	SessionID    string  `json:"session_id"`
	Description  string  `json:"description"`
	Reasoning    *string `json:"reasoning"`
	Alternatives *string `json:"alternatives"`
}

// ArtifactRow is an artifacts row in export form.
type ArtifactRow struct {
	Version     int     `json:"_v"`
	SessionID   string  `json:"session_id"`
	Type        string  `json:"type"`
	Path        *string `json:"path"`
	URI         *string `json:"uri"`
	ChangeType  string  `json:"change_type"`
	Author      string  `json:"author"`
	SizeBytes   *int64  `json:"size_bytes"`
	ContentHash *string `json:"content_hash"`
	Metadata    *string `json:"metadata"`
}

// EventRow is an events row in export form.
type EventRow struct {
	Version    int     `json:"_v"`
	SessionID  string  `json:"session_id"`
	Type       string  `json:"type"`
	Timestamp  string  `json:"timestamp"`
	Content    *string `json:"content"`
	ToolName   *string `json:"tool_name"`
	ToolInput  *string `json:"tool_input"`
	ToolOutput *string `json:"tool_output"`
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullableInt(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

// SessionsForExport returns all workspace sessions, oldest first, keyed for
// deterministic output across machines.
func (s *Store) SessionsForExport(workspaceID string) ([]SessionRow, error) {
	rows, err := s.db.Query(
		`SELECT id, workspace_id, agent, started_at, ended_at, total_tokens, summary, raw_path, metadata
		 FROM sessions WHERE workspace_id = ?
		 ORDER BY started_at ASC, id ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("sessions for export: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SessionRow
	for rows.Next() {
		var (
			r                        SessionRow
			ended, summ, rawP, meta  sql.NullString
			tokens                   sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.WorkspaceID, &r.Agent, &r.StartedAt,
			&ended, &tokens, &summ, &rawP, &meta); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		r.Version = 1
		r.EndedAt = nullable(ended)
		r.TotalTokens = nullableInt(tokens)
		r.Summary = nullable(summ)
		r.RawPath = nullable(rawP)
		r.Metadata = nullable(meta)
		out = append(out, r)
	}
	return out, rows.Err()
}

// NuggetsForExport returns all workspace nuggets, oldest extraction first.
func (s *Store) NuggetsForExport(workspaceID string) ([]NuggetRow, error) {
	rows, err := s.db.Query(
		`SELECT cn.session_id, cn.type, cn.summary, cn.detail, cn.scope_path,
			cn.scope_symbol, cn.confidence, cn.token_cost, cn.extracted_at,
			cn.stale_after, cn.metadata
		 FROM context_nuggets cn
		 JOIN sessions s ON cn.session_id = s.id
		 WHERE s.workspace_id = ?
		 ORDER BY cn.extracted_at ASC, cn.id ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("nuggets for export: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []NuggetRow
	for rows.Next() {
		var (
			r                                NuggetRow
			detail, scopeP, scopeS, stale, meta sql.NullString
			tokenCost                        sql.NullInt64
		)
		if err := rows.Scan(&r.SessionID, &r.Type, &r.Summary, &detail, &scopeP,
			&scopeS, &r.Confidence, &tokenCost, &r.ExtractedAt, &stale, &meta); err != nil {
			return nil, fmt.Errorf("scan nugget row: %w", err)
		}
		r.Version = 1
		r.Detail = nullable(detail)
		r.ScopePath = nullable(scopeP)
		r.ScopeSymbol = nullable(scopeS)
		r.TokenCost = nullableInt(tokenCost)
		r.StaleAfter = nullable(stale)
		r.Metadata = nullable(meta)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DecisionsForExport returns all workspace decisions in insertion order.
func (s *Store) DecisionsForExport(workspaceID string) ([]DecisionRow, error) {
	rows, err := s.db.Query(
		`SELECT d.session_id, d.description, d.reasoning, d.alternatives
		 FROM decisions d
		 JOIN sessions s ON d.session_id = s.id
		 WHERE s.workspace_id = ?
		 ORDER BY d.id ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("decisions for export: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []DecisionRow
	for rows.Next() {
		var (
			r                DecisionRow
			reasoning, alts  sql.NullString
		)
		if err := rows.Scan(&r.SessionID, &r.Description, &reasoning, &alts); err != nil {
			return nil, fmt.Errorf("scan decision row: %w", err)
		}
		r.Version = 1
		r.Reasoning = nullable(reasoning)
		r.Alternatives = nullable(alts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ArtifactsForExport returns all workspace artifacts in insertion order.
func (s *Store) ArtifactsForExport(workspaceID string) ([]ArtifactRow, error) {
	rows, err := s.db.Query(
		`SELECT a.session_id, a.type, a.path, a.uri, a.change_type, a.author,
			a.size_bytes, a.content_hash, a.metadata
		 FROM artifacts a
		 JOIN sessions s ON a.session_id = s.id
		 WHERE s.workspace_id = ?
		 ORDER BY a.id ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("artifacts for export: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ArtifactRow
	for rows.Next() {
		var (
			r                     ArtifactRow
			path, uri, hash, meta sql.NullString
			size                  sql.NullInt64
		)
		if err := rows.Scan(&r.SessionID, &r.Type, &path, &uri, &r.ChangeType,
			&r.Author, &size, &hash, &meta); err != nil {
			return nil, fmt.Errorf("scan artifact row: %w", err)
		}
		r.Version = 1
		r.Path = nullable(path)
		r.URI = nullable(uri)
		r.SizeBytes = nullableInt(size)
		r.ContentHash = nullable(hash)
		r.Metadata = nullable(meta)
		out = append(out, r)
	}
	return out, rows.Err()
}

// EventsForExport returns all workspace events in insertion order.
func (s *Store) EventsForExport(workspaceID string) ([]EventRow, error) {
	rows, err := s.db.Query(
		`SELECT e.session_id, e.type, e.timestamp, e.content, e.tool_name,
			e.tool_input, e.tool_output
		 FROM events e
		 JOIN sessions s ON e.session_id = s.id
		 WHERE s.workspace_id = ?
		 ORDER BY e.id ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("events for export: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []EventRow
	for rows.Next() {
		var (
			r                        EventRow
			content, name, in, outp  sql.NullString
		)
		if err := rows.Scan(&r.SessionID, &r.Type, &r.Timestamp, &content,
			&name, &in, &outp); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		r.Version = 1
		r.Content = nullable(content)
		r.ToolName = nullable(name)
		r.ToolInput = nullable(in)
		r.ToolOutput = nullable(outp)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ImportCounts tallies one kind's import outcome.
type ImportCounts struct {
	Inserted int
	Skipped  int
	Errored  int
}

func derefStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func derefInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// ImportSessions inserts session rows, skipping ids already present. Runs as
// one transaction; per-record failures count as errored without aborting.
func (s *Store) ImportSessions(records []SessionRow) (ImportCounts, error) {
	var counts ImportCounts
	err := s.withTx(func(tx *sql.Tx) error {
		for _, rec := range records {
			if rec.Version != 1 {
				counts.Errored++
				continue
			}
			res, err := tx.Exec(
				`INSERT OR IGNORE INTO sessions (id, workspace_id, agent, started_at, ended_at, total_tokens, summary, raw_path, metadata)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.ID, rec.WorkspaceID, rec.Agent, rec.StartedAt,
				derefStr(rec.EndedAt), derefInt(rec.TotalTokens),
				derefStr(rec.Summary), derefStr(rec.RawPath), derefStr(rec.Metadata))
			if err != nil {
				counts.Errored++
				continue
			}
			if n, _ := res.RowsAffected(); n > 0 {
				counts.Inserted++
			} else {
				counts.Skipped++
			}
		}
		return nil
	})
	return counts, err
}

// ImportNuggets inserts nugget rows, deduplicating on
// (session_id, type, scope_path, summary); inserted rows are FTS-indexed.
func (s *Store) ImportNuggets(records []NuggetRow) (ImportCounts, error) {
	var counts ImportCounts
	err := s.withTx(func(tx *sql.Tx) error {
		for _, rec := range records {
			if rec.Version != 1 {
				counts.Errored++
				continue
			}
			scopePath := ""
			if rec.ScopePath != nil {
				scopePath = *rec.ScopePath
			}
			var existing int64
			err := tx.QueryRow(
				`SELECT id FROM context_nuggets
				 WHERE session_id = ? AND type = ? AND COALESCE(scope_path, '') = ? AND summary = ?`,
				rec.SessionID, rec.Type, scopePath, rec.Summary).Scan(&existing)
			if err == nil {
				counts.Skipped++
				continue
			}
			if !errors.Is(err, sql.ErrNoRows) {
				counts.Errored++
				continue
			}

			res, err := tx.Exec(
				`INSERT INTO context_nuggets (session_id, type, summary, detail, scope_path,
				 scope_symbol, confidence, token_cost, extracted_at, stale_after, metadata)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.SessionID, rec.Type, rec.Summary, derefStr(rec.Detail),
				derefStr(rec.ScopePath), derefStr(rec.ScopeSymbol), rec.Confidence,
				derefInt(rec.TokenCost), rec.ExtractedAt, derefStr(rec.StaleAfter),
				derefStr(rec.Metadata))
			if err != nil {
				counts.Errored++
				continue
			}
			id, err := res.LastInsertId()
			if err != nil {
				counts.Errored++
				continue
			}
			detail := ""
			if rec.Detail != nil {
				detail = *rec.Detail
			}
			if _, err := tx.Exec(
				`INSERT INTO nuggets_fts (nugget_id, session_id, summary, detail)
				 VALUES (?, ?, ?, ?)`,
				id, rec.SessionID, rec.Summary, detail); err != nil {
				counts.Errored++
				continue
			}
			counts.Inserted++
		}
		return nil
	})
	return counts, err
}

// ImportDecisions inserts decision rows, deduplicating on
// (session_id, description).
func (s *Store) ImportDecisions(records []DecisionRow) (ImportCounts, error) {
	var counts ImportCounts
	err := s.withTx(func(tx *sql.Tx) error {
		for _, rec := range records {
			if rec.Version != 1 {
				counts.Errored++
				continue
			}
			var existing int64
			err := tx.QueryRow(
				`SELECT id FROM decisions WHERE session_id = ? AND description = ?`,
				rec.SessionID, rec.Description).Scan(&existing)
			if err == nil {
				counts.Skipped++
				continue
			}
			if !errors.Is(err, sql.ErrNoRows) {
				counts.Errored++
				continue
			}
			if _, err := tx.Exec(
				`INSERT INTO decisions (session_id, description, reasoning, alternatives)
				 VALUES (?, ?, ?, ?)`,
				rec.SessionID, rec.Description, derefStr(rec.Reasoning),
				derefStr(rec.Alternatives)); err != nil {
				counts.Errored++
				continue
			}
			counts.Inserted++
		}
		return nil
	})
	return counts, err
}

// ImportArtifacts inserts artifact rows, deduplicating on
// (session_id, path, change_type).
func (s *Store) ImportArtifacts(records []ArtifactRow) (ImportCounts, error) {
	var counts ImportCounts
	err := s.withTx(func(tx *sql.Tx) error {
		for _, rec := range records {
			if rec.Version != 1 {
				counts.Errored++
				continue
			}
			path := ""
			if rec.Path != nil {
				path = *rec.Path
			}
			var existing int64
			err := tx.QueryRow(
				`SELECT id FROM artifacts WHERE session_id = ? AND COALESCE(path, '') = ? AND change_type = ?`,
				rec.SessionID, path, rec.ChangeType).Scan(&existing)
			if err == nil {
				counts.Skipped++
				continue
			}
			if !errors.Is(err, sql.ErrNoRows) {
				counts.Errored++
				continue
			}
			if _, err := tx.Exec(
				`INSERT INTO artifacts (session_id, type, path, uri, change_type, author, size_bytes, content_hash, metadata)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.SessionID, rec.Type, derefStr(rec.Path), derefStr(rec.URI),
				rec.ChangeType, rec.Author, derefInt(rec.SizeBytes),
				derefStr(rec.ContentHash), derefStr(rec.Metadata)); err != nil {
				counts.Errored++
				continue
			}
			counts.Inserted++
		}
		return nil
	})
	return counts, err
}
