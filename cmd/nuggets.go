package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openqed/openqed/internal/store"
)

var (
	nuggetsFile  string
	nuggetsTypes string
	nuggetsJSON  bool
	nuggetsLimit int
)

var nuggetsCmd = &cobra.Command{
	Use:   "nuggets",
	Short: "List and inspect extracted context nuggets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNuggetsList()
	},
}

var nuggetsInspectCmd = &cobra.Command{
	Use:   "inspect <id>",
	Short: "Inspect a specific nugget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNuggetsInspect(args[0])
	},
}

func init() {
	nuggetsCmd.Flags().StringVar(&nuggetsFile, "file", "", "filter by file path")
	nuggetsCmd.Flags().StringVar(&nuggetsTypes, "type", "", "filter by type (comma-separated)")
	nuggetsCmd.Flags().BoolVar(&nuggetsJSON, "json", false, "output as JSON")
	nuggetsCmd.Flags().IntVar(&nuggetsLimit, "limit", 50, "max nuggets to show")
	nuggetsCmd.AddCommand(nuggetsInspectCmd)
	rootCmd.AddCommand(nuggetsCmd)
}

func runNuggetsList() error {
	ws, err := currentWorkspace()
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	types, err := parseNuggetTypes(nuggetsTypes)
	if err != nil {
		return err
	}

	var nuggets []*store.Nugget
	if nuggetsFile != "" {
		nuggets, err = st.FindNuggetsByScope(ws.ID, store.NuggetFilter{
			ScopePath: nuggetsFile,
			Types:     types,
			Limit:     nuggetsLimit,
		})
	} else {
		nuggets, err = st.FindNuggetsByWorkspace(ws.ID, types, nuggetsLimit)
	}
	if err != nil {
		return err
	}

	if nuggetsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(nuggets)
	}

	if len(nuggets) == 0 {
		fmt.Println("No nuggets found. Run 'openqed extract' first.")
		return nil
	}

	fmt.Printf("%-6s %-12s %-30s %s\n", "ID", "Type", "Scope", "Summary")
	fmt.Println(strings.Repeat("─", 90))
	for _, nugget := range nuggets {
		scope := nugget.ScopePath
		if scope == "" {
			scope = nugget.ScopeSymbol
		}
		if scope == "" {
			scope = "(workspace)"
		}
		fmt.Printf("%-6d %-12s %-30s %s\n",
			nugget.ID, nugget.Type, truncate(scope, 28), truncate(nugget.Summary, 40))
	}
	fmt.Printf("\n%d nugget(s) found.\n", len(nuggets))
	return nil
}

func runNuggetsInspect(idArg string) error {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid nugget id %q", idArg)
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	nugget, err := st.NuggetByID(id)
	if err != nil {
		return err
	}
	if nugget == nil {
		return fmt.Errorf("nugget not found: %s", idArg)
	}

	fmt.Println("ID:        ", nugget.ID)
	fmt.Println("Type:      ", nugget.Type)
	fmt.Println("Summary:   ", nugget.Summary)
	if nugget.Detail != "" {
		fmt.Println("Detail:    ", nugget.Detail)
	}
	if nugget.ScopePath != "" {
		fmt.Println("Scope Path:", nugget.ScopePath)
	}
	if nugget.ScopeSymbol != "" {
		fmt.Println("Symbol:    ", nugget.ScopeSymbol)
	}
	fmt.Println("Confidence:", nugget.Confidence)
	fmt.Println("Session:   ", nugget.SessionID)
	fmt.Println("Extracted: ", nugget.ExtractedAt.UTC().Format(time.RFC3339))
	if meta := nugget.MetadataJSON(); meta != "" {
		fmt.Println("Metadata:  ", meta)
	}
	return nil
}
