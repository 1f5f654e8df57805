package cmd

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/openqed/openqed/internal/llm"
	"github.com/openqed/openqed/internal/store"
	"github.com/openqed/openqed/internal/utils"
	"github.com/openqed/openqed/internal/workspace"
)

// openStore opens the process-wide store at the configured path.
func openStore() (*store.Store, error) {
	st, err := store.Open(viper.GetString("store.path"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// currentWorkspace resolves the workspace for the directory the command runs
// in.
func currentWorkspace() (*workspace.Workspace, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return workspace.Detect(cwd)
}

func truncate(s string, max int) string {
	return utils.Truncate(s, max)
}

var durationRe = regexp.MustCompile(`^(\d+)([dhwm])$`)

// parseDuration turns shorthand like 3d, 1w, 24h, 2m into the time that far
// in the past (d=days, h=hours, w=weeks, m=months).
func parseDuration(s string) (time.Time, error) {
	match := durationRe.FindStringSubmatch(s)
	if match == nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: use format 3d, 1w, 24h, 2m (d=days, h=hours, w=weeks, m=months)", s)
	}
	num, err := strconv.Atoi(match[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	unit := map[string]time.Duration{
		"h": time.Hour,
		"d": 24 * time.Hour,
		"w": 7 * 24 * time.Hour,
		"m": 30 * 24 * time.Hour,
	}[match[2]]
	return time.Now().Add(-time.Duration(num) * unit), nil
}

// parseNuggetTypes splits a comma-separated type list, rejecting unknown
// types so typos fail loudly instead of silently filtering everything out.
func parseNuggetTypes(s string) ([]store.NuggetType, error) {
	if s == "" {
		return nil, nil
	}
	var types []store.NuggetType
	for _, part := range strings.Split(s, ",") {
		t := store.NuggetType(strings.TrimSpace(part))
		if t == "" {
			continue
		}
		if !store.ValidNuggetType(t) {
			return nil, fmt.Errorf("unknown nugget type %q", t)
		}
		types = append(types, t)
	}
	return types, nil
}

// newGenerator builds the configured LLM client, or nil when no provider is
// configured. modelOverride takes precedence over config.
func newGenerator(ctx context.Context, modelOverride string) (llm.TextGenerator, error) {
	raw := viper.GetString("llm.provider")
	if raw == "" {
		return nil, fmt.Errorf("no LLM provider configured: set llm.provider (or %s_LLM_PROVIDER) to one of openai, ollama, anthropic, gemini", envPrefix)
	}
	provider, err := llm.ValidateProvider(raw)
	if err != nil {
		return nil, err
	}
	cfg := llm.Config{
		Provider: provider,
		Model:    viper.GetString("llm.model"),
		APIKey:   viper.GetString("llm.apiKey"),
		BaseURL:  viper.GetString("llm.baseURL"),
	}
	if modelOverride != "" {
		cfg.Model = modelOverride
	}
	client, err := llm.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}
