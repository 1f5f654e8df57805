// Package query answers "why is this code the way it is": it gathers stored
// nuggets for a path or free-text question, checks their staleness, ranks
// them, and fits them into a token budget.
package query

import (
	"time"

	"github.com/openqed/openqed/internal/store"
)

// Depth controls how much of each nugget the response carries.
type Depth string

const (
	DepthSummary  Depth = "summary"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

// DefaultTokenBudget bounds a response when the caller does not say.
const DefaultTokenBudget = 2000

// ContextQuery is one request for provenance context.
type ContextQuery struct {
	WorkspaceID string
	Path        string // workspace-relative path filter
	Symbol      string
	Text        string // free-text question
	Types       []store.NuggetType
	Since       time.Time
	TokenBudget int
	Depth       Depth
	Agent       string // who is asking, for the query log
}

// StalenessCheck is the verdict for one nugget.
type StalenessCheck struct {
	NuggetID     int64
	IsStale      bool
	StaleReason  string // file_changed, superseded, expired
	SupersededBy int64
}

// ScoredNugget is a nugget with its relevance score and staleness verdict.
type ScoredNugget struct {
	*store.Nugget
	Score        float64
	IsStale      bool
	StaleReason  string
	SupersededBy int64
}

// ResponseNugget is one nugget as delivered to the caller.
type ResponseNugget struct {
	Type         store.NuggetType `json:"type"`
	Summary      string           `json:"summary"`
	Detail       string           `json:"detail,omitempty"`
	Scope        string           `json:"scope"`
	Confidence   float64          `json:"confidence"`
	SessionDate  string           `json:"sessionDate"`
	SessionAgent string           `json:"sessionAgent"`
	Alternatives []string         `json:"alternatives,omitempty"`
	Stale        bool             `json:"stale,omitempty"`
	StaleReason  string           `json:"staleReason,omitempty"`
}

// Budget reports token accounting for a response.
type Budget struct {
	Requested int  `json:"requested"`
	Used      int  `json:"used"`
	Available int  `json:"available"`
	Truncated bool `json:"truncated"`
}

// ResponseQuery echoes what was asked.
type ResponseQuery struct {
	Path   string `json:"path,omitempty"`
	Symbol string `json:"symbol,omitempty"`
	Text   string `json:"text,omitempty"`
	Depth  string `json:"depth"`
}

// ContextResponse is the assembled answer.
type ContextResponse struct {
	Query           ResponseQuery    `json:"query"`
	Budget          Budget           `json:"budget"`
	Nuggets         []ResponseNugget `json:"nuggets"`
	MoreContextHint string           `json:"moreContextHint,omitempty"`
}

// SessionInfo is the lookup payload used when formatting responses.
type SessionInfo struct {
	Agent string
	Date  string
}
