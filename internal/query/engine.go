package query

import (
	"context"
	"time"

	"github.com/openqed/openqed/internal/store"
)

// QueryContext answers one context query against the store. Path queries hit
// the scope index; text queries fan out over the nugget and session FTS
// indexes. Results are deduplicated, staleness-checked, ranked and packed
// into the token budget. Every query is logged for coverage reporting.
func QueryContext(ctx context.Context, st *store.Store, q *ContextQuery, workspacePath string) (ContextResponse, error) {
	if err := ctx.Err(); err != nil {
		return ContextResponse{}, err
	}
	if q.Depth == "" {
		q.Depth = DepthStandard
	}

	var all []*store.Nugget
	seen := make(map[int64]bool)
	ftsRanks := make(map[int64]float64)

	add := func(nuggets []*store.Nugget) {
		for _, n := range nuggets {
			if !seen[n.ID] {
				seen[n.ID] = true
				all = append(all, n)
			}
		}
	}

	if q.Path != "" {
		scoped, err := st.FindNuggetsByScope(q.WorkspaceID, store.NuggetFilter{
			ScopePath:   q.Path,
			ScopeSymbol: q.Symbol,
			Types:       q.Types,
			Since:       q.Since,
		})
		if err != nil {
			return ContextResponse{}, err
		}
		add(scoped)
	}

	if q.Text != "" {
		nuggetHits, err := st.SearchNuggets(q.Text, q.WorkspaceID, 20)
		if err != nil {
			return ContextResponse{}, err
		}
		ids := make([]int64, 0, len(nuggetHits))
		for _, hit := range nuggetHits {
			ids = append(ids, hit.NuggetID)
			ftsRanks[hit.NuggetID] = hit.Rank
		}
		matched, err := st.NuggetsByIDs(ids)
		if err != nil {
			return ContextResponse{}, err
		}
		add(matched)

		// Sessions whose transcript matches contribute their nuggets too.
		sessionHits, err := st.SearchSessions(q.Text, q.WorkspaceID, 20)
		if err != nil {
			return ContextResponse{}, err
		}
		if len(sessionHits) > 0 {
			candidates, err := st.FindNuggetsByScope(q.WorkspaceID, store.NuggetFilter{
				Types: q.Types,
				Since: q.Since,
				Limit: 20,
			})
			if err != nil {
				return ContextResponse{}, err
			}
			hitSessions := make(map[string]bool, len(sessionHits))
			for _, hit := range sessionHits {
				hitSessions[hit.SessionID] = true
			}
			for _, n := range candidates {
				if hitSessions[n.SessionID] && !seen[n.ID] {
					seen[n.ID] = true
					all = append(all, n)
				}
			}
		}
	}

	// FTS results bypass the scope filters, so re-apply them.
	if len(q.Types) > 0 {
		wanted := make(map[store.NuggetType]bool, len(q.Types))
		for _, t := range q.Types {
			wanted[t] = true
		}
		filtered := all[:0]
		for _, n := range all {
			if wanted[n.Type] {
				filtered = append(filtered, n)
			}
		}
		all = filtered
	}
	if !q.Since.IsZero() {
		filtered := all[:0]
		for _, n := range all {
			if !n.ExtractedAt.Before(q.Since) {
				filtered = append(filtered, n)
			}
		}
		all = filtered
	}

	stalenessMap := CheckBatchStaleness(st, all, workspacePath)
	ranked := RankNuggets(all, q, stalenessMap, ftsRanks)

	sessions := make(map[string]SessionInfo)
	for _, n := range ranked {
		if _, ok := sessions[n.SessionID]; ok {
			continue
		}
		session, err := st.GetSession(n.SessionID)
		if err != nil || session == nil {
			continue
		}
		sessions[n.SessionID] = SessionInfo{
			Agent: string(session.Agent),
			Date:  session.StartedAt.UTC().Format(time.RFC3339),
		}
	}

	response := AssembleResponse(ranked, q, sessions)
	if len(response.Nuggets) == 0 && response.MoreContextHint == "" {
		response.MoreContextHint = "No context recorded yet. Run 'openqed extract' to mine recent sessions."
	}

	queryType := "text"
	queryValue := q.Text
	if q.Path != "" {
		queryType = "path"
		queryValue = q.Path
		if q.Text != "" {
			queryType = "combined"
		}
	}
	_ = st.LogQuery(&store.QueryLog{
		QueriedAt:       time.Now().UTC(),
		QueryType:       queryType,
		QueryValue:      queryValue,
		WorkspaceID:     q.WorkspaceID,
		NuggetsReturned: len(response.Nuggets),
		TokenBudget:     q.TokenBudget,
		Agent:           q.Agent,
	})

	return response, nil
}
