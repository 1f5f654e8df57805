package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/openqed/openqed/internal/export"
	"github.com/openqed/openqed/internal/utils"
	"github.com/openqed/openqed/internal/workspace"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize openqed in the current git repository",
	Long: `Creates the per-workspace .openqed/ layout, writes a default
.openqed.yaml, registers the workspace in the local store, and gitignores
the machine-local scratch directory so only .openqed/data/ is shared.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit() error {
	ws, err := currentWorkspace()
	if err != nil {
		return err
	}
	if ws.Type != workspace.TypeGitRepo {
		return fmt.Errorf("openqed init must be run inside a git repository")
	}

	if err := os.MkdirAll(utils.GlobalDir(), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", utils.GlobalDir(), err)
	}
	fmt.Printf("✓ Created %s\n", utils.GlobalDir())

	dataDir := filepath.Join(ws.Path, utils.DataSubdir)
	localDir := filepath.Join(ws.Path, utils.LocalSubdir)
	for _, dir := range []string{dataDir, localDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		fmt.Printf("✓ Created %s\n", dir)
	}

	// Register the workspace; a broken store is not fatal for init.
	if st, err := openStore(); err == nil {
		if err := st.UpsertWorkspace(ws); err == nil {
			fmt.Println("✓ Registered workspace in store")
		}
		_ = st.Close()
	}

	fs := afero.NewOsFs()
	configPath := filepath.Join(ws.Path, utils.ConfigFile)
	if exists, _ := afero.Exists(fs, configPath); !exists {
		if err := export.WriteDefaultConfig(fs, ws.Path); err != nil {
			return err
		}
		fmt.Printf("✓ Created %s\n", configPath)
	}

	if err := ensureGitignore(ws.Path, ".openqed/local/"); err != nil {
		return err
	}
	fmt.Println("✓ Updated .gitignore")

	// A freshly cloned repo may already carry exported data.
	for _, name := range []string{"nuggets.jsonl", "sessions.jsonl", "decisions.jsonl", "artifacts.jsonl"} {
		if _, err := os.Stat(filepath.Join(dataDir, name)); err == nil {
			fmt.Println("\nFound exported data. Run 'openqed import' to load into local store.")
			break
		}
	}

	fmt.Println("\nopenqed initialized successfully!")
	return nil
}

// ensureGitignore appends entry to .gitignore when missing. An existing
// whole-directory `.openqed/` entry is migrated to the local-only entry so
// .openqed/data/ can be committed.
func ensureGitignore(repoPath, entry string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")
	raw, err := os.ReadFile(gitignorePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read .gitignore: %w", err)
	}
	content := string(raw)
	lines := strings.Split(content, "\n")

	for i, line := range lines {
		if strings.TrimSpace(line) == ".openqed/" {
			lines[i] = entry
			return os.WriteFile(gitignorePath, []byte(strings.Join(lines, "\n")), 0o644)
		}
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == entry {
			return nil
		}
	}
	sep := ""
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		sep = "\n"
	}
	return os.WriteFile(gitignorePath, []byte(content+sep+entry+"\n"), 0o644)
}
