package cmd

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/openqed/openqed/internal/export"
	"github.com/openqed/openqed/internal/store"
	"github.com/openqed/openqed/internal/utils"
)

var (
	importTypes  string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import provenance data from .openqed/data/ JSONL files into the local store",
	Long: `Merges a workspace's synced JSONL files into the local store.
Records are deduplicated by natural key, so pulling a teammate's export and
importing is always safe to repeat.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport()
	},
}

func init() {
	importCmd.Flags().StringVar(&importTypes, "types", "", "comma-separated kinds to import (nuggets,sessions,decisions,artifacts)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "show what would be imported without inserting records")
	rootCmd.AddCommand(importCmd)
}

func runImport() error {
	ws, err := currentWorkspace()
	if err != nil {
		return err
	}

	fs := afero.NewOsFs()
	dataDir := filepath.Join(ws.Path, utils.DataSubdir)
	if exists, _ := afero.DirExists(fs, dataDir); !exists {
		return fmt.Errorf("no exported data found at %s: run 'openqed export' first, or check that .openqed/data/ exists", dataDir)
	}

	cfg, err := export.LoadConfig(fs, ws.Path)
	if err != nil {
		return err
	}
	kinds := cfg.Export
	if importTypes != "" {
		kinds = kindConfigFromList(importTypes)
	}
	// Events are never imported; they stay machine-local.
	kinds.Events = false

	if importDryRun {
		fmt.Println("Dry run — no records will be inserted.")
		for _, kind := range enabledKinds(kinds) {
			filePath := filepath.Join(dataDir, kind+".jsonl")
			raw, err := afero.ReadFile(fs, filePath)
			if err != nil {
				fmt.Printf("  %s: no file found\n", kind)
				continue
			}
			count := bytes.Count(bytes.TrimSpace(raw), []byte{'\n'})
			if len(bytes.TrimSpace(raw)) > 0 {
				count++
			}
			fmt.Printf("  %s: %d records\n", kind, count)
		}
		return nil
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.UpsertWorkspace(ws); err != nil {
		return err
	}

	summary, err := export.Import(fs, st, ws.Path, kinds)
	if err != nil {
		return err
	}

	fmt.Println("Import complete:")
	printImportCounts("sessions", summary.Sessions)
	printImportCounts("nuggets", summary.Nuggets)
	printImportCounts("decisions", summary.Decisions)
	printImportCounts("artifacts", summary.Artifacts)
	return nil
}

func printImportCounts(kind string, counts store.ImportCounts) {
	parts := fmt.Sprintf("%d inserted", counts.Inserted)
	if counts.Skipped > 0 {
		parts += fmt.Sprintf(", %d skipped", counts.Skipped)
	}
	if counts.Errored > 0 {
		parts += fmt.Sprintf(", %d errored", counts.Errored)
	}
	fmt.Printf("  %s: %s\n", kind, parts)
}
