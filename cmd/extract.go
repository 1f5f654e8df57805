package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openqed/openqed/internal/adapters"
	"github.com/openqed/openqed/internal/extraction"
	"github.com/openqed/openqed/internal/llm"
)

var (
	extractSession string
	extractForce   bool
	extractDryRun  bool
	extractLLM     bool
	extractModel   string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract context nuggets from sessions",
	Long: `Parses agent transcripts for the current workspace and mines each
session for context nuggets. Extraction is idempotent: sessions that already
have nuggets are skipped unless --force is given. With --llm, a configured
provider replaces the heuristic pass when it yields results.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtract(cmd)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractSession, "session", "", "extract from a specific session")
	extractCmd.Flags().BoolVar(&extractForce, "force", false, "force re-extraction even if already extracted")
	extractCmd.Flags().BoolVar(&extractDryRun, "dry-run", false, "show what would be extracted without doing it")
	extractCmd.Flags().BoolVar(&extractLLM, "llm", false, "use LLM for higher-quality extraction")
	extractCmd.Flags().StringVar(&extractModel, "model", "", "LLM model to use (defaults to the provider's default)")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command) error {
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

	adapter := adapters.Default()
	sessions, err := adapter.FindSessions(ws)
	if err != nil {
		return fmt.Errorf("find sessions: %w", err)
	}
	if extractSession != "" {
		var found *adapters.AgentSession
		for _, s := range sessions {
			if s.ID == extractSession || strings.HasPrefix(s.ID, extractSession) {
				found = s
				break
			}
		}
		if found == nil {
			return fmt.Errorf("session not found: %s", extractSession)
		}
		sessions = []*adapters.AgentSession{found}
	}

	fmt.Printf("Parsing %d session(s)...\n", len(sessions))
	var parsed []*adapters.ParsedSession
	for _, session := range sessions {
		if err := st.UpsertSession(session); err != nil {
			return err
		}
		p, err := adapter.ParseSession(session)
		if err != nil {
			return fmt.Errorf("parse session %s: %w", session.ID, err)
		}
		parsed = append(parsed, p)
	}

	var generator llm.TextGenerator
	if extractLLM {
		generator, err = newGenerator(cmd.Context(), extractModel)
		if err != nil {
			return err
		}
	}

	result, err := extraction.ExtractBatch(cmd.Context(), st, parsed, extraction.Options{
		Force:     extractForce,
		Generator: generator,
		DryRun:    extractDryRun,
	})
	if err != nil {
		return err
	}

	fmt.Println("\nExtraction Results:")
	fmt.Printf("  Extracted: %d\n", result.Extracted)
	fmt.Printf("  Skipped:   %d\n", result.Skipped)
	if result.Failed > 0 {
		fmt.Printf("  Failed:    %d\n", result.Failed)
	}
	if extractDryRun {
		fmt.Println("\n(dry run — no changes made)")
	}
	return nil
}
