package utils

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// DataSubdir is the per-workspace directory holding exported JSONL files.
	DataSubdir = ".openqed/data"
	// LocalSubdir is the per-workspace gitignored scratch directory.
	LocalSubdir = ".openqed/local"
	// ConfigFile is the per-workspace config file name.
	ConfigFile = ".openqed.yaml"
)

// HomeDir returns the user's home directory, or "." when it cannot be
// determined (CI containers without HOME).
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// GlobalDir is the per-user openqed directory.
func GlobalDir() string {
	return filepath.Join(HomeDir(), ".openqed")
}

// DefaultDBPath is where the process-wide store lives.
func DefaultDBPath() string {
	return filepath.Join(GlobalDir(), "store.db")
}

// ClaudeProjectsDir is the root under which Claude Code keeps per-project
// transcript directories.
func ClaudeProjectsDir() string {
	return filepath.Join(HomeDir(), ".claude", "projects")
}

// ProjectHash converts an absolute workspace path to Claude Code's directory
// naming scheme: every path separator becomes a dash.
// e.g. /Users/bill/code/myapp -> -Users-bill-code-myapp
func ProjectHash(absPath string) string {
	return strings.ReplaceAll(absPath, "/", "-")
}

// ProjectDir returns the Claude Code transcript directory for a workspace.
func ProjectDir(absPath string) string {
	return filepath.Join(ClaudeProjectsDir(), ProjectHash(absPath))
}
