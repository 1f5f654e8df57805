package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const nuggetColumns = `id, session_id, event_id, type, summary, detail, scope_path,
	scope_symbol, confidence, token_cost, extracted_at, stale_after, metadata`

const nuggetColumnsQualified = `cn.id, cn.session_id, cn.event_id, cn.type, cn.summary,
	cn.detail, cn.scope_path, cn.scope_symbol, cn.confidence, cn.token_cost,
	cn.extracted_at, cn.stale_after, cn.metadata`

func scanNugget(scan func(dest ...any) error) (*Nugget, error) {
	var (
		n                                         Nugget
		eventID, tokenCost                        sql.NullInt64
		detail, scopePath, scopeSymbol, staleRaw  sql.NullString
		confidence                                sql.NullFloat64
		extractedAt                               string
		meta                                      sql.NullString
		typ                                       string
	)
	if err := scan(&n.ID, &n.SessionID, &eventID, &typ, &n.Summary, &detail,
		&scopePath, &scopeSymbol, &confidence, &tokenCost, &extractedAt,
		&staleRaw, &meta); err != nil {
		return nil, err
	}

	n.Type = NuggetType(typ)
	n.Detail = detail.String
	n.ScopePath = scopePath.String
	n.ScopeSymbol = scopeSymbol.String
	n.Confidence = 1.0
	if confidence.Valid {
		n.Confidence = confidence.Float64
	}
	if eventID.Valid {
		v := eventID.Int64
		n.EventID = &v
	}
	if tokenCost.Valid {
		v := int(tokenCost.Int64)
		n.TokenCost = &v
	}
	n.ExtractedAt = parseTime(extractedAt)
	if staleRaw.Valid && staleRaw.String != "" {
		t := parseTime(staleRaw.String)
		n.StaleAfter = &t
	}
	n.Metadata = unmarshalMeta(meta)
	return &n, nil
}

func nuggetInsertArgs(n *Nugget) []any {
	var eventID, tokenCost, staleAfter, detail, scopePath, scopeSymbol any
	if n.EventID != nil {
		eventID = *n.EventID
	}
	if n.TokenCost != nil {
		tokenCost = *n.TokenCost
	}
	if n.StaleAfter != nil {
		staleAfter = formatTime(*n.StaleAfter)
	}
	if n.Detail != "" {
		detail = n.Detail
	}
	if n.ScopePath != "" {
		scopePath = n.ScopePath
	}
	if n.ScopeSymbol != "" {
		scopeSymbol = n.ScopeSymbol
	}
	return []any{
		n.SessionID, eventID, string(n.Type), n.Summary, detail, scopePath,
		scopeSymbol, n.Confidence, tokenCost, formatTime(n.ExtractedAt),
		staleAfter, marshalMeta(n.Metadata),
	}
}

func insertNuggetTx(tx *sql.Tx, n *Nugget) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO context_nuggets (session_id, event_id, type, summary, detail,
		 scope_path, scope_symbol, confidence, token_cost, extracted_at, stale_after, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nuggetInsertArgs(n)...)
	if err != nil {
		return 0, fmt.Errorf("insert nugget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("nugget id: %w", err)
	}
	// Mirror into FTS in the same transaction so search never sees a
	// half-indexed nugget.
	if _, err := tx.Exec(
		`INSERT INTO nuggets_fts (nugget_id, session_id, summary, detail)
		 VALUES (?, ?, ?, ?)`,
		id, n.SessionID, n.Summary, n.Detail,
	); err != nil {
		return 0, fmt.Errorf("index nugget: %w", err)
	}
	return id, nil
}

// InsertNugget stores a nugget and its FTS mirror atomically.
func (s *Store) InsertNugget(n *Nugget) (int64, error) {
	var id int64
	err := s.withTx(func(tx *sql.Tx) error {
		var err error
		id, err = insertNuggetTx(tx, n)
		return err
	})
	return id, err
}

// InsertNuggets stores a batch of nuggets in one transaction, returning ids
// in input order.
func (s *Store) InsertNuggets(nuggets []*Nugget) ([]int64, error) {
	ids := make([]int64, 0, len(nuggets))
	err := s.withTx(func(tx *sql.Tx) error {
		for _, n := range nuggets {
			id, err := insertNuggetTx(tx, n)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// NuggetsForSession returns a session's nuggets in insertion order.
func (s *Store) NuggetsForSession(sessionID string) ([]*Nugget, error) {
	rows, err := s.db.Query(
		`SELECT `+nuggetColumns+` FROM context_nuggets WHERE session_id = ? ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("nuggets for session: %w", err)
	}
	return collectNuggets(rows)
}

func collectNuggets(rows *sql.Rows) ([]*Nugget, error) {
	defer func() { _ = rows.Close() }()
	var nuggets []*Nugget
	for rows.Next() {
		n, err := scanNugget(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan nugget: %w", err)
		}
		nuggets = append(nuggets, n)
	}
	return nuggets, rows.Err()
}

// NuggetFilter narrows FindNuggetsByScope.
type NuggetFilter struct {
	ScopePath   string
	ScopeSymbol string
	Types       []NuggetType
	Since       time.Time
	Limit       int
}

// FindNuggetsByScope returns workspace nuggets matching the filter, ordered
// by confidence then recency of insertion. A scope path matches exactly or as
// a directory prefix.
func (s *Store) FindNuggetsByScope(workspaceID string, f NuggetFilter) ([]*Nugget, error) {
	conditions := []string{"s.workspace_id = ?"}
	params := []any{workspaceID}

	if f.ScopePath != "" {
		conditions = append(conditions, "(cn.scope_path = ? OR cn.scope_path LIKE ? || '/%')")
		params = append(params, f.ScopePath, f.ScopePath)
	}
	if f.ScopeSymbol != "" {
		conditions = append(conditions, "cn.scope_symbol = ?")
		params = append(params, f.ScopeSymbol)
	}
	if len(f.Types) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.Types)), ", ")
		conditions = append(conditions, "cn.type IN ("+placeholders+")")
		for _, t := range f.Types {
			params = append(params, string(t))
		}
	}
	if !f.Since.IsZero() {
		conditions = append(conditions, "cn.extracted_at >= ?")
		params = append(params, formatTime(f.Since))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	params = append(params, limit)

	rows, err := s.db.Query(
		`SELECT `+nuggetColumnsQualified+`
		 FROM context_nuggets cn
		 JOIN sessions s ON cn.session_id = s.id
		 WHERE `+strings.Join(conditions, " AND ")+`
		 ORDER BY cn.confidence DESC, cn.id DESC
		 LIMIT ?`, params...)
	if err != nil {
		return nil, fmt.Errorf("find nuggets by scope: %w", err)
	}
	return collectNuggets(rows)
}

// FindNuggetsByWorkspace returns workspace nuggets without scope filtering.
func (s *Store) FindNuggetsByWorkspace(workspaceID string, types []NuggetType, limit int) ([]*Nugget, error) {
	return s.FindNuggetsByScope(workspaceID, NuggetFilter{Types: types, Limit: limit})
}

// NuggetsByIDs fetches specific nuggets; missing ids are skipped.
func (s *Store) NuggetsByIDs(ids []int64) ([]*Nugget, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	params := make([]any, len(ids))
	for i, id := range ids {
		params[i] = id
	}
	rows, err := s.db.Query(
		`SELECT `+nuggetColumns+` FROM context_nuggets WHERE id IN (`+placeholders+`) ORDER BY id`,
		params...)
	if err != nil {
		return nil, fmt.Errorf("nuggets by ids: %w", err)
	}
	return collectNuggets(rows)
}

// NuggetByID loads one nugget, nil when absent.
func (s *Store) NuggetByID(id int64) (*Nugget, error) {
	row := s.db.QueryRow(`SELECT `+nuggetColumns+` FROM context_nuggets WHERE id = ?`, id)
	n, err := scanNugget(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("nugget by id: %w", err)
	}
	return n, nil
}

// HasNuggetsForSession reports whether extraction already ran for a session.
func (s *Store) HasNuggetsForSession(sessionID string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM context_nuggets WHERE session_id = ?", sessionID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count nuggets: %w", err)
	}
	return count > 0, nil
}

// DeleteNuggetsForSession removes a session's nuggets and their FTS rows in
// one transaction.
func (s *Store) DeleteNuggetsForSession(sessionID string) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"DELETE FROM nuggets_fts WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("delete nugget index: %w", err)
		}
		if _, err := tx.Exec(
			"DELETE FROM context_nuggets WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("delete nuggets: %w", err)
		}
		return nil
	})
}

// SupersedingNugget returns the id of the newest nugget that supersedes n
// (same scope path and type, inserted later, from a different session), or 0.
func (s *Store) SupersedingNugget(n *Nugget) (int64, error) {
	if n.ScopePath == "" {
		return 0, nil
	}
	var id sql.NullInt64
	err := s.db.QueryRow(
		`SELECT id FROM context_nuggets
		 WHERE scope_path = ? AND type = ? AND id > ? AND session_id != ?
		 ORDER BY id DESC LIMIT 1`,
		n.ScopePath, string(n.Type), n.ID, n.SessionID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("superseding nugget: %w", err)
	}
	return id.Int64, nil
}

// LogQuery appends a context query to the coverage log.
func (s *Store) LogQuery(q *QueryLog) error {
	_, err := s.db.Exec(
		`INSERT INTO context_queries (queried_at, query_type, query_value, workspace_id, nuggets_returned, token_budget, agent)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		formatTime(q.QueriedAt), q.QueryType, q.QueryValue, q.WorkspaceID,
		q.NuggetsReturned, q.TokenBudget, q.Agent)
	if err != nil {
		return fmt.Errorf("log query: %w", err)
	}
	return nil
}

// CoverageGaps reports the top paths queried more often than they have
// nuggets, worst first.
func (s *Store) CoverageGaps(workspaceID string) ([]CoverageGap, error) {
	rows, err := s.db.Query(
		`SELECT
			cq.query_value AS path,
			COUNT(DISTINCT cq.id) AS query_count,
			COALESCE((SELECT COUNT(*) FROM context_nuggets cn WHERE cn.scope_path = cq.query_value), 0) AS nugget_count
		 FROM context_queries cq
		 WHERE cq.workspace_id = ? AND cq.query_type = 'path'
		 GROUP BY cq.query_value
		 HAVING query_count > nugget_count
		 ORDER BY query_count DESC
		 LIMIT 20`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("coverage gaps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var gaps []CoverageGap
	for rows.Next() {
		var g CoverageGap
		if err := rows.Scan(&g.Path, &g.QueryCount, &g.NuggetCount); err != nil {
			return nil, fmt.Errorf("scan gap: %w", err)
		}
		gaps = append(gaps, g)
	}
	return gaps, rows.Err()
}

// PathCoverage counts nuggets attached to one file path.
type PathCoverage struct {
	Path  string
	Count int
}

// NuggetCoverage returns the best-covered file paths, most nuggets first.
func (s *Store) NuggetCoverage(workspaceID string) ([]PathCoverage, error) {
	rows, err := s.db.Query(
		`SELECT cn.scope_path AS path, COUNT(*) AS count
		 FROM context_nuggets cn
		 JOIN sessions s ON cn.session_id = s.id
		 WHERE s.workspace_id = ? AND cn.scope_path IS NOT NULL
		 GROUP BY cn.scope_path
		 ORDER BY count DESC
		 LIMIT 30`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("nugget coverage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var coverage []PathCoverage
	for rows.Next() {
		var pc PathCoverage
		if err := rows.Scan(&pc.Path, &pc.Count); err != nil {
			return nil, fmt.Errorf("scan coverage: %w", err)
		}
		coverage = append(coverage, pc)
	}
	return coverage, rows.Err()
}

// MetadataJSON renders a nugget's metadata for display, "" when empty.
func (n *Nugget) MetadataJSON() string {
	if len(n.Metadata) == 0 {
		return ""
	}
	raw, err := json.Marshal(n.Metadata)
	if err != nil {
		return ""
	}
	return string(raw)
}

// Alternatives returns the rejected-alternatives list carried in metadata.
func (n *Nugget) Alternatives() []string {
	raw, ok := n.Metadata["alternatives"]
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
