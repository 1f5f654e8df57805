package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/openqed/openqed/internal/store"
	"github.com/openqed/openqed/internal/utils"
)

// ImportSummary counts per-kind import outcomes.
type ImportSummary struct {
	Sessions  store.ImportCounts
	Nuggets   store.ImportCounts
	Decisions store.ImportCounts
	Artifacts store.ImportCounts
}

// readJSONL loads every record from a JSONL file. A missing file means zero
// records, not an error: a teammate may sync only some kinds.
func readJSONL[T any](fs afero.Fs, filePath string) ([]T, error) {
	f, err := fs.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", filePath, err)
	}
	defer func() { _ = f.Close() }()

	var records []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filePath, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", filePath, err)
	}
	return records, nil
}

// Import merges a workspace's JSONL files into the store. Records are
// deduplicated by natural key, so re-importing (or importing your own
// export) is a no-op. Sessions go first to satisfy foreign keys.
func Import(fs afero.Fs, st *store.Store, workspacePath string, cfg KindConfig) (ImportSummary, error) {
	dataDir := filepath.Join(workspacePath, utils.DataSubdir)
	var summary ImportSummary

	if cfg.Sessions {
		records, err := readJSONL[store.SessionRow](fs, filepath.Join(dataDir, "sessions.jsonl"))
		if err != nil {
			return summary, err
		}
		summary.Sessions, err = st.ImportSessions(records)
		if err != nil {
			return summary, err
		}
	}

	if cfg.Nuggets {
		records, err := readJSONL[store.NuggetRow](fs, filepath.Join(dataDir, "nuggets.jsonl"))
		if err != nil {
			return summary, err
		}
		summary.Nuggets, err = st.ImportNuggets(records)
		if err != nil {
			return summary, err
		}
	}

	if cfg.Decisions {
		records, err := readJSONL[store.DecisionRow](fs, filepath.Join(dataDir, "decisions.jsonl"))
		if err != nil {
			return summary, err
		}
		summary.Decisions, err = st.ImportDecisions(records)
		if err != nil {
			return summary, err
		}
	}

	if cfg.Artifacts {
		records, err := readJSONL[store.ArtifactRow](fs, filepath.Join(dataDir, "artifacts.jsonl"))
		if err != nil {
			return summary, err
		}
		summary.Artifacts, err = st.ImportArtifacts(records)
		if err != nil {
			return summary, err
		}
	}

	return summary, nil
}
