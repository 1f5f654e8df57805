/*
Package workspace identifies the workspace a command runs in.

A workspace is either a git repository (identified by its toplevel directory)
or a plain folder. The derived id is stable across machines for the same path
and is the scoping key for everything in the store.
*/
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Type classifies how a workspace was identified.
type Type string

const (
	TypeGitRepo Type = "git_repo"
	TypeFolder  Type = "folder"
)

// Workspace is the opaque scoping key handed to the store and query layers.
type Workspace struct {
	ID   string
	Type Type
	Path string
	Name string
}

// Detect resolves dir to a workspace. Git repositories resolve to their
// toplevel so every subdirectory maps to the same workspace id.
func Detect(dir string) (*Workspace, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace dir: %w", err)
	}

	if root, ok := gitToplevel(absPath); ok {
		return &Workspace{
			ID:   HashID(TypeGitRepo, root),
			Type: TypeGitRepo,
			Path: root,
			Name: filepath.Base(root),
		}, nil
	}

	return &Workspace{
		ID:   HashID(TypeFolder, absPath),
		Type: TypeFolder,
		Path: absPath,
		Name: filepath.Base(absPath),
	}, nil
}

// HashID derives the stable workspace id from type and normalized path.
func HashID(t Type, absPath string) string {
	normalized := strings.TrimRight(absPath, "/")
	sum := sha256.Sum256([]byte(string(t) + ":" + normalized))
	return "ws_" + hex.EncodeToString(sum[:])[:12]
}

func gitToplevel(dir string) (string, bool) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}
	root := strings.TrimSpace(string(out))
	if root == "" {
		return "", false
	}
	return root, true
}
