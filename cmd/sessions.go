package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openqed/openqed/internal/adapters"
)

var sessionsSince string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and inspect AI coding sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessionsList()
	},
}

var sessionsInspectCmd = &cobra.Command{
	Use:   "inspect <id>",
	Short: "Inspect a specific session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessionInspect(args[0])
	},
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsSince, "since", "", "show sessions from duration ago (e.g. 3d, 1w, 24h)")
	sessionsCmd.AddCommand(sessionsInspectCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList() error {
	ws, err := currentWorkspace()
	if err != nil {
		return err
	}
	adapter := adapters.Default()

	var sessions []*adapters.AgentSession
	if sessionsSince != "" {
		since, err := parseDuration(sessionsSince)
		if err != nil {
			return err
		}
		sessions, err = adapter.FindSessionsInRange(ws, since, time.Now())
		if err != nil {
			return err
		}
	} else {
		sessions, err = adapter.FindSessions(ws)
		if err != nil {
			return err
		}
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	fmt.Printf("%-20s %-22s %-14s %s\n", "ID", "Started", "Agent", "First Prompt")
	fmt.Println(strings.Repeat("─", 80))
	for _, session := range sessions {
		firstPrompt, _ := session.Metadata["firstPrompt"].(string)
		started := session.StartedAt.UTC().Format("2006-01-02 15:04:05")
		fmt.Printf("%-20s %-22s %-14s %s\n",
			truncate(session.ID, 18), started, session.Agent, truncate(firstPrompt, 40))
	}
	fmt.Printf("\n%d session(s) found.\n", len(sessions))
	return nil
}

func runSessionInspect(sessionID string) error {
	ws, err := currentWorkspace()
	if err != nil {
		return err
	}
	adapter := adapters.Default()

	sessions, err := adapter.FindSessions(ws)
	if err != nil {
		return err
	}

	var session *adapters.AgentSession
	for _, s := range sessions {
		if s.ID == sessionID || strings.HasPrefix(s.ID, sessionID) {
			session = s
			break
		}
	}
	if session == nil {
		return fmt.Errorf("session not found: %s", sessionID)
	}

	parsed, err := adapter.ParseSession(session)
	if err != nil {
		return err
	}

	fmt.Println("Session:", parsed.Session.ID)
	fmt.Println("Agent:  ", parsed.Session.Agent)
	fmt.Println("Started:", parsed.Session.StartedAt.UTC().Format(time.RFC3339))
	if !parsed.Session.EndedAt.IsZero() {
		fmt.Println("Ended:  ", parsed.Session.EndedAt.UTC().Format(time.RFC3339))
	}
	if parsed.Session.TotalTokens > 0 {
		fmt.Println("Tokens: ", parsed.Session.TotalTokens)
	}

	if len(parsed.UserPrompts) > 0 {
		fmt.Println("\nUser Prompts:")
		for _, prompt := range parsed.UserPrompts {
			fmt.Println("  > " + truncate(prompt, 100))
		}
	}

	if len(parsed.Artifacts) > 0 {
		fmt.Println("\nArtifacts:")
		for _, artifact := range parsed.Artifacts {
			icon := " "
			switch artifact.ChangeType {
			case adapters.ChangeCreate:
				icon = "+"
			case adapters.ChangeModify:
				icon = "~"
			case adapters.ChangeDelete:
				icon = "-"
			}
			path := artifact.Path
			if path == "" {
				path = artifact.URI
			}
			fmt.Printf("  %s %s\n", icon, path)
		}
	}

	eventCounts := map[adapters.EventType]int{}
	for _, event := range parsed.Events {
		eventCounts[event.Type]++
	}
	fmt.Println("\nEvent Summary:")
	for _, et := range []adapters.EventType{
		adapters.EventUserPrompt, adapters.EventAssistantText,
		adapters.EventToolCall, adapters.EventToolResult,
	} {
		if eventCounts[et] > 0 {
			fmt.Printf("  %s: %d\n", et, eventCounts[et])
		}
	}
	return nil
}
