package store

import (
	"database/sql"
	"fmt"
	"strings"
	"unicode"
)

// IndexSessionContent adds a session's condensed digest to the full-text
// index. Callers re-indexing should RemoveSessionIndex first.
func (s *Store) IndexSessionContent(sessionID, workspaceID, content string) error {
	_, err := s.db.Exec(
		`INSERT INTO session_fts (session_id, workspace_id, content) VALUES (?, ?, ?)`,
		sessionID, workspaceID, content)
	if err != nil {
		return fmt.Errorf("index session content: %w", err)
	}
	return nil
}

// RemoveSessionIndex drops a session from both FTS tables atomically.
func (s *Store) RemoveSessionIndex(sessionID string) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM session_fts WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("remove session index: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM nuggets_fts WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("remove nugget index: %w", err)
		}
		return nil
	})
}

// SearchSessions matches the session index, most relevant first.
func (s *Store) SearchSessions(query, workspaceID string, limit int) ([]SessionHit, error) {
	ftsQuery := BuildFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT session_id, rank FROM session_fts
		 WHERE session_fts MATCH ? AND workspace_id = ?
		 ORDER BY rank LIMIT ?`, ftsQuery, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("search sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []SessionHit
	for rows.Next() {
		var h SessionHit
		if err := rows.Scan(&h.SessionID, &h.Rank); err != nil {
			return nil, fmt.Errorf("scan session hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// SearchNuggets matches the nugget index, scoped to a workspace via the
// owning session, most relevant first.
func (s *Store) SearchNuggets(query, workspaceID string, limit int) ([]NuggetHit, error) {
	ftsQuery := BuildFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT nf.nugget_id, nf.session_id, nf.rank
		 FROM nuggets_fts nf
		 JOIN sessions s ON nf.session_id = s.id
		 WHERE nuggets_fts MATCH ? AND s.workspace_id = ?
		 ORDER BY nf.rank LIMIT ?`, ftsQuery, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("search nuggets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []NuggetHit
	for rows.Next() {
		var h NuggetHit
		if err := rows.Scan(&h.NuggetID, &h.SessionID, &h.Rank); err != nil {
			return nil, fmt.Errorf("scan nugget hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// BuildFTSQuery converts free text to an FTS5 match expression. Quoted
// phrases pass through; otherwise tokens are OR-joined with FTS5 operator
// characters (-, +, *) stripped so user input cannot change query semantics.
func BuildFTSQuery(userQuery string) string {
	trimmed := strings.TrimSpace(userQuery)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) && len(trimmed) > 1 {
		return trimmed
	}

	fields := strings.FieldsFunc(trimmed, func(r rune) bool {
		switch r {
		case '-', '_', '/', '\\':
			return true
		}
		return unicode.IsSpace(r)
	})

	words := make([]string, 0, len(fields))
	for _, f := range fields {
		var b strings.Builder
		for _, r := range f {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			words = append(words, b.String())
		}
	}
	if len(words) == 0 {
		return ""
	}
	return strings.Join(words, " OR ")
}
