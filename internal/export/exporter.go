package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/openqed/openqed/internal/store"
	"github.com/openqed/openqed/internal/utils"
)

// Summary counts exported records per kind.
type Summary struct {
	Sessions  int
	Nuggets   int
	Decisions int
	Artifacts int
	Events    int
}

func redactPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := utils.Redact(*p)
	return &v
}

// writeJSONLAtomic renders records one JSON object per line and moves the
// file into place with a rename, so readers never see a partial export. Zero
// records still produce the (empty) file.
func writeJSONLAtomic[T any](fs afero.Fs, filePath string, records []T) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}

	tmpPath := filePath + ".tmp"
	if err := afero.WriteFile(fs, tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := fs.Rename(tmpPath, filePath); err != nil {
		return fmt.Errorf("rename %s: %w", filePath, err)
	}
	return nil
}

// Export writes the workspace's records under <workspace>/.openqed/data/,
// one JSONL file per enabled kind, with secrets redacted from free text.
func Export(fs afero.Fs, st *store.Store, workspaceID, workspacePath string, cfg KindConfig) (Summary, error) {
	dataDir := filepath.Join(workspacePath, utils.DataSubdir)
	if err := fs.MkdirAll(dataDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create data dir: %w", err)
	}

	var summary Summary

	if cfg.Sessions {
		rows, err := st.SessionsForExport(workspaceID)
		if err != nil {
			return summary, err
		}
		if err := writeJSONLAtomic(fs, filepath.Join(dataDir, "sessions.jsonl"), rows); err != nil {
			return summary, err
		}
		summary.Sessions = len(rows)
	}

	if cfg.Nuggets {
		rows, err := st.NuggetsForExport(workspaceID)
		if err != nil {
			return summary, err
		}
		for i := range rows {
			rows[i].Summary = utils.Redact(rows[i].Summary)
			rows[i].Detail = redactPtr(rows[i].Detail)
		}
		if err := writeJSONLAtomic(fs, filepath.Join(dataDir, "nuggets.jsonl"), rows); err != nil {
			return summary, err
		}
		summary.Nuggets = len(rows)
	}

	if cfg.Decisions {
		rows, err := st.DecisionsForExport(workspaceID)
		if err != nil {
			return summary, err
		}
		for i := range rows {
			rows[i].Description = utils.Redact(rows[i].Description)
			rows[i].Reasoning = redactPtr(rows[i].Reasoning)
		}
		if err := writeJSONLAtomic(fs, filepath.Join(dataDir, "decisions.jsonl"), rows); err != nil {
			return summary, err
		}
		summary.Decisions = len(rows)
	}

	if cfg.Artifacts {
		rows, err := st.ArtifactsForExport(workspaceID)
		if err != nil {
			return summary, err
		}
		if err := writeJSONLAtomic(fs, filepath.Join(dataDir, "artifacts.jsonl"), rows); err != nil {
			return summary, err
		}
		summary.Artifacts = len(rows)
	}

	if cfg.Events {
		rows, err := st.EventsForExport(workspaceID)
		if err != nil {
			return summary, err
		}
		for i := range rows {
			rows[i].Content = redactPtr(rows[i].Content)
			rows[i].ToolInput = redactPtr(rows[i].ToolInput)
			rows[i].ToolOutput = redactPtr(rows[i].ToolOutput)
		}
		if err := writeJSONLAtomic(fs, filepath.Join(dataDir, "events.jsonl"), rows); err != nil {
			return summary, err
		}
		summary.Events = len(rows)
	}

	return summary, nil
}
