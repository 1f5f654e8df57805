package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/openqed/openqed/internal/query"
	"github.com/openqed/openqed/internal/store"
	"github.com/openqed/openqed/internal/utils"
	"github.com/openqed/openqed/internal/workspace"
)

// mcpCmd starts the stdio MCP server for Claude Code / Cursor integration.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for coding-agent integration",
	Long: `Starts a Model Context Protocol server on stdio exposing the
context engine to coding agents:

  openqed_context       ranked provenance for a file or question
  openqed_file_history  which sessions touched a file and when
  openqed_decisions     decisions, rejections, and constraints

The server runs until the client disconnects.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// ContextToolParams are the arguments of the openqed_context tool.
type ContextToolParams struct {
	Path        string   `json:"path,omitempty"`         // file path to query context for
	Symbol      string   `json:"symbol,omitempty"`       // specific symbol (function, type)
	Query       string   `json:"query,omitempty"`        // natural language query
	TokenBudget int      `json:"token_budget,omitempty"` // max tokens in response
	Types       []string `json:"types,omitempty"`        // filter by nugget types
	Depth       string   `json:"depth,omitempty"`        // summary, standard, deep
}

// FileHistoryParams are the arguments of the openqed_file_history tool.
type FileHistoryParams struct {
	Path        string `json:"path"` // required relative file path
	TokenBudget int    `json:"token_budget,omitempty"`
}

// DecisionsParams are the arguments of the openqed_decisions tool.
type DecisionsParams struct {
	Path        string `json:"path,omitempty"` // optional file path to scope the query
	TokenBudget int    `json:"token_budget,omitempty"`
}

// mcpJSONResponse wraps a JSON-renderable payload in an MCP tool result.
func mcpJSONResponse(payload any) (*mcpsdk.CallToolResultFor[any], error) {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render tool result: %w", err)
	}
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(raw)}},
	}, nil
}

// mcpErrorResponse returns the error in the result with IsError set, so the
// calling model can see it and self-correct.
func mcpErrorResponse(err error) (*mcpsdk.CallToolResultFor[any], error) {
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}, nil
}

func runMCPServer(ctx context.Context) error {
	// Stdio transport: stdout must stay pure JSON-RPC, status goes to stderr.
	fmt.Fprintln(os.Stderr, "openqed MCP server starting...")

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

	impl := &mcpsdk.Implementation{
		Name:    "openqed",
		Version: version,
	}
	serverOpts := &mcpsdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.InitializedParams) {
			fmt.Fprintln(os.Stderr, "✓ MCP connection established")
		},
	}
	server := mcpsdk.NewServer(impl, serverOpts)

	registerContextTool(server, st, ws)
	registerFileHistoryTool(server, st, ws)
	registerDecisionsTool(server, st, ws)

	if err := server.Run(ctx, mcpsdk.NewStdioTransport()); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

func registerContextTool(server *mcpsdk.Server, st *store.Store, ws *workspace.Workspace) {
	tool := &mcpsdk.Tool{
		Name:        "openqed_context",
		Description: "Query context/provenance for a file or topic. Returns ranked nuggets explaining WHY code is the way it is.",
	}
	mcpsdk.AddTool(server, tool, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[ContextToolParams]) (*mcpsdk.CallToolResultFor[any], error) {
		args := params.Arguments

		types, err := parseNuggetTypeSlice(args.Types)
		if err != nil {
			return mcpErrorResponse(err)
		}
		depth := query.Depth(args.Depth)
		if depth == "" {
			depth = query.DepthStandard
		}
		q := &query.ContextQuery{
			WorkspaceID: ws.ID,
			Path:        args.Path,
			Symbol:      args.Symbol,
			Text:        args.Query,
			Types:       types,
			TokenBudget: args.TokenBudget,
			Depth:       depth,
			Agent:       "mcp",
		}

		response, err := query.QueryContext(ctx, st, q, ws.Path)
		if err != nil {
			return mcpErrorResponse(fmt.Errorf("query context: %w", err))
		}
		return mcpJSONResponse(response)
	})
}

func registerFileHistoryTool(server *mcpsdk.Server, st *store.Store, ws *workspace.Workspace) {
	tool := &mcpsdk.Tool{
		Name:        "openqed_file_history",
		Description: "Get the AI session history for a specific file — which sessions touched it and when.",
	}
	mcpsdk.AddTool(server, tool, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[FileHistoryParams]) (*mcpsdk.CallToolResultFor[any], error) {
		args := params.Arguments
		if args.Path == "" {
			return mcpErrorResponse(fmt.Errorf("path is required"))
		}

		sessions, err := st.SessionsByArtifactPath(ws.ID, args.Path)
		if err != nil {
			return mcpErrorResponse(fmt.Errorf("file history: %w", err))
		}
		if len(sessions) == 0 {
			return mcpJSONResponse(map[string]any{
				"path":     args.Path,
				"sessions": []any{},
				"message":  "No sessions found for this file.",
			})
		}

		budget := args.TokenBudget
		if budget <= 0 {
			budget = 1500
		}
		type historyEntry struct {
			SessionID string `json:"sessionId"`
			Agent     string `json:"agent"`
			StartedAt string `json:"startedAt"`
			EndedAt   string `json:"endedAt,omitempty"`
		}
		var entries []historyEntry
		used := 0
		for _, s := range sessions {
			entry := historyEntry{
				SessionID: s.ID,
				Agent:     string(s.Agent),
				StartedAt: s.StartedAt.UTC().Format(time.RFC3339),
			}
			if !s.EndedAt.IsZero() {
				entry.EndedAt = s.EndedAt.UTC().Format(time.RFC3339)
			}
			raw, _ := json.Marshal(entry)
			cost := utils.EstimateTokens(string(raw))
			if used+cost > budget {
				break
			}
			entries = append(entries, entry)
			used += cost
		}

		return mcpJSONResponse(map[string]any{
			"path":     args.Path,
			"sessions": entries,
			"total":    len(sessions),
			"shown":    len(entries),
		})
	})
}

// decisionTypes scope the decisions tool to the "why we chose this" kinds.
var decisionTypes = []store.NuggetType{
	store.NuggetDecision, store.NuggetRejection, store.NuggetConstraint,
}

func registerDecisionsTool(server *mcpsdk.Server, st *store.Store, ws *workspace.Workspace) {
	tool := &mcpsdk.Tool{
		Name:        "openqed_decisions",
		Description: "Get architectural decisions, rejections, and constraints from AI sessions.",
	}
	mcpsdk.AddTool(server, tool, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[DecisionsParams]) (*mcpsdk.CallToolResultFor[any], error) {
		args := params.Arguments

		var nuggets []*store.Nugget
		var err error
		if args.Path != "" {
			nuggets, err = st.FindNuggetsByScope(ws.ID, store.NuggetFilter{
				ScopePath: args.Path,
				Types:     decisionTypes,
				Limit:     50,
			})
		} else {
			nuggets, err = st.FindNuggetsByWorkspace(ws.ID, decisionTypes, 50)
		}
		if err != nil {
			return mcpErrorResponse(fmt.Errorf("find decisions: %w", err))
		}

		budget := args.TokenBudget
		if budget <= 0 {
			budget = query.DefaultTokenBudget
		}
		type decisionEntry struct {
			ID           int64            `json:"id"`
			Type         store.NuggetType `json:"type"`
			Summary      string           `json:"summary"`
			Detail       string           `json:"detail,omitempty"`
			Scope        string           `json:"scope"`
			Confidence   float64          `json:"confidence"`
			Alternatives []string         `json:"alternatives,omitempty"`
		}
		var entries []decisionEntry
		used := 0
		for _, nugget := range nuggets {
			scope := nugget.ScopePath
			if scope == "" {
				scope = nugget.ScopeSymbol
			}
			if scope == "" {
				scope = "workspace"
			}
			entry := decisionEntry{
				ID:           nugget.ID,
				Type:         nugget.Type,
				Summary:      nugget.Summary,
				Detail:       nugget.Detail,
				Scope:        scope,
				Confidence:   nugget.Confidence,
				Alternatives: nugget.Alternatives(),
			}
			raw, _ := json.Marshal(entry)
			cost := utils.EstimateTokens(string(raw))
			if used+cost > budget {
				break
			}
			entries = append(entries, entry)
			used += cost
		}

		scope := args.Path
		if scope == "" {
			scope = "workspace"
		}
		return mcpJSONResponse(map[string]any{
			"decisions": entries,
			"total":     len(nuggets),
			"shown":     len(entries),
			"scope":     scope,
		})
	})
}

// parseNuggetTypeSlice validates tool-supplied type names.
func parseNuggetTypeSlice(names []string) ([]store.NuggetType, error) {
	var types []store.NuggetType
	for _, name := range names {
		t := store.NuggetType(name)
		if !store.ValidNuggetType(t) {
			return nil, fmt.Errorf("unknown nugget type %q", name)
		}
		types = append(types, t)
	}
	return types, nil
}
