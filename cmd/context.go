package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openqed/openqed/internal/query"
)

var (
	contextSymbol string
	contextQuery  string
	contextBudget int
	contextTypes  string
	contextDepth  string
	contextSince  string
	contextJSON   bool
)

var contextCmd = &cobra.Command{
	Use:   "context [path]",
	Short: "Query context for a file or topic",
	Long: `Returns the ranked context nuggets for a file path or free-text
question, fitted into a token budget. This is the same answer the MCP
server gives coding agents.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pathArg := ""
		if len(args) > 0 {
			pathArg = args[0]
		}
		return runContext(cmd, pathArg)
	},
}

func init() {
	contextCmd.Flags().StringVar(&contextSymbol, "symbol", "", "specific symbol (function, type) to query")
	contextCmd.Flags().StringVar(&contextQuery, "query", "", "natural language query")
	contextCmd.Flags().IntVar(&contextBudget, "budget", query.DefaultTokenBudget, "token budget")
	contextCmd.Flags().StringVar(&contextTypes, "type", "", "filter by nugget types (comma-separated)")
	contextCmd.Flags().StringVar(&contextDepth, "depth", "standard", "detail level: summary, standard, deep")
	contextCmd.Flags().StringVar(&contextSince, "since", "", "only include nuggets since date (RFC 3339 or YYYY-MM-DD)")
	contextCmd.Flags().BoolVar(&contextJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, pathArg string) error {
	if pathArg == "" && contextQuery == "" {
		return fmt.Errorf("provide a <path> or --query")
	}

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

	types, err := parseNuggetTypes(contextTypes)
	if err != nil {
		return err
	}

	q := &query.ContextQuery{
		WorkspaceID: ws.ID,
		Path:        pathArg,
		Symbol:      contextSymbol,
		Text:        contextQuery,
		Types:       types,
		TokenBudget: contextBudget,
		Depth:       query.Depth(contextDepth),
		Agent:       "cli",
	}
	if contextSince != "" {
		since, err := parseDate(contextSince)
		if err != nil {
			return err
		}
		q.Since = since
	}

	response, err := query.QueryContext(cmd.Context(), st, q, ws.Path)
	if err != nil {
		return err
	}

	if contextJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	}

	printContextResponse(pathArg, contextQuery, response)
	return nil
}

func printContextResponse(pathArg, textArg string, response query.ContextResponse) {
	if len(response.Nuggets) == 0 {
		fmt.Println("No context nuggets found.")
		if response.MoreContextHint != "" {
			fmt.Println(response.MoreContextHint)
		}
		return
	}

	subject := pathArg
	if subject == "" {
		subject = textArg
	}
	fmt.Printf("Context for %s (%d nuggets, %d tokens)\n\n",
		subject, len(response.Nuggets), response.Budget.Used)

	for _, nugget := range response.Nuggets {
		staleTag := ""
		if nugget.Stale {
			staleTag = " [stale]"
		}
		fmt.Printf("  [%s] %s%s\n", nugget.Type, nugget.Summary, staleTag)
		if nugget.Detail != "" {
			fmt.Printf("    %s\n", nugget.Detail)
		}
		date := nugget.SessionDate
		if len(date) > 10 {
			date = date[:10]
		}
		fmt.Printf("    %s | %s | %s\n\n", nugget.Scope, nugget.SessionAgent, date)
	}

	if response.Budget.Truncated {
		fmt.Printf("Budget: %d/%d tokens used\n", response.Budget.Used, response.Budget.Requested)
	}
	if response.MoreContextHint != "" {
		fmt.Println(response.MoreContextHint)
	}
}

// parseDate accepts RFC 3339 or a bare date.
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: use RFC 3339 or YYYY-MM-DD", s)
}
