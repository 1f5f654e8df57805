package query

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/openqed/openqed/internal/store"
)

// typePriority orders nugget kinds by how much they matter when reading code.
var typePriority = map[store.NuggetType]float64{
	store.NuggetConstraint: 1.0,
	store.NuggetCaveat:     0.9,
	store.NuggetTuning:     0.8,
	store.NuggetDecision:   0.7,
	store.NuggetRejection:  0.6,
	store.NuggetWorkaround: 0.5,
	store.NuggetIntent:     0.4,
	store.NuggetDependency: 0.3,
}

const (
	scopeWeight      = 0.30
	typeWeight       = 0.20
	recencyWeight    = 0.15
	confidenceWeight = 0.10
	ftsWeight        = 0.10

	// recency decays with a 30-day half-life
	recencyHalfLifeDays = 30
)

func scopeMatchScore(nugget *store.Nugget, q *ContextQuery) float64 {
	if q.Path == "" {
		return 0.5 // no path filter, neutral
	}
	if nugget.ScopePath == "" {
		return 0.2 // workspace-wide nugget vs a specific path
	}
	if nugget.ScopePath == q.Path {
		return 1.0
	}
	if strings.HasPrefix(q.Path, nugget.ScopePath+"/") ||
		strings.HasPrefix(nugget.ScopePath, q.Path+"/") {
		return 0.6
	}
	nuggetDir := parentDir(nugget.ScopePath)
	queryDir := parentDir(q.Path)
	if nuggetDir != "" && nuggetDir == queryDir {
		return 0.5
	}
	return 0.1
}

func parentDir(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

func recencyScore(nugget *store.Nugget) float64 {
	daysSince := time.Since(nugget.ExtractedAt).Hours() / 24
	return math.Exp(-0.693 * daysSince / recencyHalfLifeDays)
}

func priorityOf(t store.NuggetType) float64 {
	if p, ok := typePriority[t]; ok {
		return p
	}
	return 0.3
}

// ScoreNugget combines scope match, type priority, recency, confidence and
// full-text relevance into one [0,1] score, with boosts for must-know kinds
// and a penalty for staleness.
func ScoreNugget(nugget *store.Nugget, q *ContextQuery, staleness StalenessCheck, ftsRank *float64) ScoredNugget {
	score := scopeWeight*scopeMatchScore(nugget, q) +
		typeWeight*priorityOf(nugget.Type) +
		recencyWeight*recencyScore(nugget) +
		confidenceWeight*nugget.Confidence

	// bm25 ranks are negative; more negative means more relevant.
	if ftsRank != nil && *ftsRank < 0 {
		normalized := math.Min(1.0, math.Abs(*ftsRank)/10)
		score += ftsWeight * normalized
		score += 0.15 // flat boost for matching the question at all
	}

	switch nugget.Type {
	case store.NuggetConstraint, store.NuggetCaveat:
		score += 0.2
	case store.NuggetTuning:
		score += 0.15
	}

	if staleness.IsStale {
		score -= 0.3
	}

	return ScoredNugget{
		Nugget:       nugget,
		Score:        math.Max(0, math.Min(1, score)),
		IsStale:      staleness.IsStale,
		StaleReason:  staleness.StaleReason,
		SupersededBy: staleness.SupersededBy,
	}
}

// RankNuggets scores every nugget and sorts them best first. The sort is
// stable so equally scored nuggets keep retrieval order.
func RankNuggets(nuggets []*store.Nugget, q *ContextQuery, stalenessMap map[int64]StalenessCheck, ftsRanks map[int64]float64) []ScoredNugget {
	scored := make([]ScoredNugget, 0, len(nuggets))
	for _, n := range nuggets {
		staleness := stalenessMap[n.ID]
		if staleness.NuggetID == 0 {
			staleness = StalenessCheck{NuggetID: n.ID}
		}
		var rank *float64
		if r, ok := ftsRanks[n.ID]; ok {
			rank = &r
		}
		scored = append(scored, ScoreNugget(n, q, staleness, rank))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}
