package query

import (
	"path/filepath"
	"time"

	"github.com/openqed/openqed/internal/store"
	"github.com/openqed/openqed/internal/utils"
)

// CheckStaleness decides whether a nugget still describes reality. Checks in
// order: the scoped file drifted since the session, a newer nugget supersedes
// it, or its explicit expiry passed. Unreadable files are treated as
// unchanged; staleness flags, it never hides.
func CheckStaleness(st *store.Store, nugget *store.Nugget, workspacePath string) StalenessCheck {
	check := StalenessCheck{NuggetID: nugget.ID}

	if nugget.ScopePath != "" {
		absPath := filepath.Join(workspacePath, nugget.ScopePath)
		currentHash := utils.HashFile(absPath)
		if currentHash != "" {
			recorded, err := st.ArtifactContentHash(nugget.SessionID, nugget.ScopePath)
			if err == nil && recorded != "" && recorded != currentHash {
				check.IsStale = true
				check.StaleReason = "file_changed"
				return check
			}
		}
	}

	if nugget.ScopePath != "" {
		newer, err := st.SupersedingNugget(nugget)
		if err == nil && newer != 0 {
			check.IsStale = true
			check.StaleReason = "superseded"
			check.SupersededBy = newer
			return check
		}
	}

	if nugget.StaleAfter != nil && nugget.StaleAfter.Before(time.Now()) {
		check.IsStale = true
		check.StaleReason = "expired"
	}
	return check
}

// CheckBatchStaleness runs CheckStaleness over many nuggets.
func CheckBatchStaleness(st *store.Store, nuggets []*store.Nugget, workspacePath string) map[int64]StalenessCheck {
	results := make(map[int64]StalenessCheck, len(nuggets))
	for _, n := range nuggets {
		results[n.ID] = CheckStaleness(st, n, workspacePath)
	}
	return results
}
