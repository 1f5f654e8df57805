package store

import "time"

// NuggetType classifies what a provenance nugget captures.
type NuggetType string

const (
	NuggetIntent     NuggetType = "intent"
	NuggetDecision   NuggetType = "decision"
	NuggetConstraint NuggetType = "constraint"
	NuggetRejection  NuggetType = "rejection"
	NuggetTuning     NuggetType = "tuning"
	NuggetDependency NuggetType = "dependency"
	NuggetWorkaround NuggetType = "workaround"
	NuggetCaveat     NuggetType = "caveat"
)

// ValidNuggetType reports whether t is one of the known nugget kinds.
func ValidNuggetType(t NuggetType) bool {
	switch t {
	case NuggetIntent, NuggetDecision, NuggetConstraint, NuggetRejection,
		NuggetTuning, NuggetDependency, NuggetWorkaround, NuggetCaveat:
		return true
	}
	return false
}

// Nugget is one stored unit of provenance, bound to the session it was mined
// from. Scope is a workspace-relative path and/or a symbol; both empty means
// workspace-wide.
type Nugget struct {
	ID          int64
	SessionID   string
	EventID     *int64
	Type        NuggetType
	Summary     string
	Detail      string
	ScopePath   string
	ScopeSymbol string
	Confidence  float64
	TokenCost   *int
	ExtractedAt time.Time
	StaleAfter  *time.Time
	Metadata    map[string]any
}

// Decision is an explicitly recorded choice within a session.
type Decision struct {
	ID           int64
	SessionID    string
	Description  string
	Reasoning    string
	Alternatives []string
}

// QueryLog records one context query for coverage analysis.
type QueryLog struct {
	QueriedAt       time.Time
	QueryType       string // path, text, combined
	QueryValue      string
	WorkspaceID     string
	NuggetsReturned int
	TokenBudget     int
	Agent           string
}

// CoverageGap is a path that has been asked about more often than it has
// nuggets covering it.
type CoverageGap struct {
	Path        string
	QueryCount  int
	NuggetCount int
}

// SessionHit is one session-level FTS match.
type SessionHit struct {
	SessionID string
	Rank      float64
}

// NuggetHit is one nugget-level FTS match. Rank is bm25; more negative means
// more relevant.
type NuggetHit struct {
	NuggetID  int64
	SessionID string
	Rank      float64
}
