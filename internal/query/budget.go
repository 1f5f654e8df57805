package query

import (
	"fmt"
	"strings"

	"github.com/openqed/openqed/internal/store"
	"github.com/openqed/openqed/internal/utils"
)

func toResponseNugget(n ScoredNugget, info SessionInfo) ResponseNugget {
	scope := n.ScopePath
	if scope == "" {
		scope = n.ScopeSymbol
	}
	if scope == "" {
		scope = "workspace"
	}
	return ResponseNugget{
		Type:         n.Type,
		Summary:      n.Summary,
		Scope:        scope,
		Confidence:   n.Confidence,
		SessionDate:  info.Date,
		SessionAgent: info.Agent,
		Stale:        n.IsStale,
		StaleReason:  n.StaleReason,
	}
}

// AssembleResponse fits ranked nuggets into the query's token budget. Pass 1
// packs one-line summaries greedily in score order; pass 2 spends leftover
// budget attaching detail and alternatives (skipped at depth=summary).
// Nuggets that do not fit feed the more-context hint.
func AssembleResponse(ranked []ScoredNugget, q *ContextQuery, sessions map[string]SessionInfo) ContextResponse {
	budget := q.TokenBudget
	if budget <= 0 {
		budget = DefaultTokenBudget
	}

	used := 0
	var included []ResponseNugget
	var includedSrc []ScoredNugget
	var overflow []ScoredNugget

	sessionInfo := func(id string) SessionInfo {
		if info, ok := sessions[id]; ok {
			return info
		}
		return SessionInfo{Agent: "unknown", Date: "unknown"}
	}

	for _, n := range ranked {
		scope := n.ScopePath
		if scope == "" {
			scope = "workspace"
		}
		cost := utils.EstimateTokens(fmt.Sprintf("%s: %s [%s]", n.Type, n.Summary, scope))
		if used+cost <= budget {
			included = append(included, toResponseNugget(n, sessionInfo(n.SessionID)))
			includedSrc = append(includedSrc, n)
			used += cost
		} else {
			overflow = append(overflow, n)
		}
	}

	if q.Depth != DepthSummary {
		for i, n := range includedSrc {
			if n.Detail == "" {
				continue
			}
			detailCost := utils.EstimateTokens(n.Detail)
			if used+detailCost <= budget {
				included[i].Detail = n.Detail
				included[i].Alternatives = n.Alternatives()
				used += detailCost
			}
		}
	}

	var hint string
	if len(overflow) > 0 {
		seen := make(map[store.NuggetType]bool)
		var types []string
		for _, n := range overflow {
			if !seen[n.Type] {
				seen[n.Type] = true
				types = append(types, string(n.Type))
			}
		}
		hint = fmt.Sprintf("%d more nuggets available (types: %s). Increase token budget to see more.",
			len(overflow), strings.Join(types, ", "))
	}

	return ContextResponse{
		Query: ResponseQuery{
			Path:   q.Path,
			Symbol: q.Symbol,
			Text:   q.Text,
			Depth:  string(q.Depth),
		},
		Budget: Budget{
			Requested: budget,
			Used:      used,
			Available: budget - used,
			Truncated: len(overflow) > 0,
		},
		Nuggets:         included,
		MoreContextHint: hint,
	}
}
