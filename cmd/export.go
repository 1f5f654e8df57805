package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/openqed/openqed/internal/export"
)

var (
	exportTypes  string
	exportAll    bool
	exportDryRun bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export provenance data to .openqed/data/ as JSONL files",
	Long: `Writes the workspace's sessions, nuggets, decisions, and artifacts
as append-friendly JSONL under .openqed/data/, ready to commit. Secrets are
redacted from free-text fields before writing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport()
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportTypes, "types", "", "comma-separated kinds to export (nuggets,sessions,decisions,artifacts,events)")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "export all kinds including events")
	exportCmd.Flags().BoolVar(&exportDryRun, "dry-run", false, "show what would be exported without writing files")
	rootCmd.AddCommand(exportCmd)
}

// kindConfigFromList builds a kind selection from a comma-separated list.
func kindConfigFromList(list string) export.KindConfig {
	selected := map[string]bool{}
	for _, part := range strings.Split(list, ",") {
		selected[strings.TrimSpace(part)] = true
	}
	return export.KindConfig{
		Nuggets:   selected["nuggets"],
		Sessions:  selected["sessions"],
		Decisions: selected["decisions"],
		Artifacts: selected["artifacts"],
		Events:    selected["events"],
	}
}

func enabledKinds(cfg export.KindConfig) []string {
	var kinds []string
	for _, k := range []struct {
		name string
		on   bool
	}{
		{"sessions", cfg.Sessions},
		{"nuggets", cfg.Nuggets},
		{"decisions", cfg.Decisions},
		{"artifacts", cfg.Artifacts},
		{"events", cfg.Events},
	} {
		if k.on {
			kinds = append(kinds, k.name)
		}
	}
	return kinds
}

func runExport() error {
	ws, err := currentWorkspace()
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.UpsertWorkspace(ws); err != nil {
		return err
	}

	fs := afero.NewOsFs()
	cfg, err := export.LoadConfig(fs, ws.Path)
	if err != nil {
		return err
	}
	kinds := cfg.Export
	switch {
	case exportTypes != "":
		kinds = kindConfigFromList(exportTypes)
	case exportAll:
		kinds = export.KindConfig{Nuggets: true, Sessions: true, Decisions: true, Artifacts: true, Events: true}
	}

	if exportDryRun {
		fmt.Println("Dry run — no files will be written.")
		fmt.Println("Would export:", strings.Join(enabledKinds(kinds), ", "))
		return nil
	}

	summary, err := export.Export(fs, st, ws.ID, ws.Path, kinds)
	if err != nil {
		return err
	}

	fmt.Println("Export complete:")
	if kinds.Sessions {
		fmt.Printf("  sessions:  %d\n", summary.Sessions)
	}
	if kinds.Nuggets {
		fmt.Printf("  nuggets:   %d\n", summary.Nuggets)
	}
	if kinds.Decisions {
		fmt.Printf("  decisions: %d\n", summary.Decisions)
	}
	if kinds.Artifacts {
		fmt.Printf("  artifacts: %d\n", summary.Artifacts)
	}
	if kinds.Events {
		fmt.Printf("  events:    %d\n", summary.Events)
	}
	return nil
}
