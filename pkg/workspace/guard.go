// Package workspace enforces workspace boundaries on file system paths.
// All filesystem tool parameters are resolved and validated against the
// session's workspace root, preventing path traversal and access outside
// the designated directory.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Guard validates and resolves paths against a workspace root.
type Guard struct {
	workspaceDir string // absolute, symlink-evaluated workspace root
}

// NewGuard creates a guard for the given directory. The directory is
// converted to an absolute path, cleaned, and symlink-evaluated so later
// containment checks compare like with like.
func NewGuard(workspaceDir string) (*Guard, error) {
	if workspaceDir == "" {
		return nil, fmt.Errorf("workspace directory cannot be empty")
	}

	absPath, err := filepath.Abs(workspaceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace directory: %w", err)
	}

	evalPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate workspace directory symlinks: %w", err)
	}

	return &Guard{workspaceDir: evalPath}, nil
}

// ValidatePath checks that the given path resolves inside the workspace.
func (g *Guard) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	resolved, err := g.ResolvePath(path)
	if err != nil {
		return err
	}

	if !g.IsWithinWorkspace(resolved) {
		return fmt.Errorf("path '%s' is outside workspace boundaries", path)
	}
	return nil
}

// ResolvePath converts a relative or absolute path to an absolute path in
// the workspace context. Relative paths are joined to the workspace root;
// ~ and ~/ expand to the user's home directory. Symlinks are evaluated,
// falling back through parent directories for not-yet-existing paths.
func (g *Guard) ResolvePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	expanded := path
	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to expand ~: %w", err)
		}
		if path == "~" {
			expanded = homeDir
		} else {
			expanded = filepath.Join(homeDir, path[2:])
		}
	}

	cleaned := filepath.Clean(expanded)

	var absPath string
	if filepath.IsAbs(cleaned) {
		absPath = cleaned
	} else {
		absPath = filepath.Join(g.workspaceDir, cleaned)
	}
	absPath = filepath.Clean(absPath)

	return g.resolveSymlinks(absPath), nil
}

// IsWithinWorkspace checks whether an absolute path is the workspace root
// or one of its children.
func (g *Guard) IsWithinWorkspace(absPath string) bool {
	evalPath := g.resolveSymlinks(absPath)
	sep := string(filepath.Separator)
	return evalPath == g.workspaceDir ||
		strings.HasPrefix(evalPath+sep, g.workspaceDir+sep)
}

// resolveSymlinks resolves symlinks in a path, handling non-existent paths
// by walking up to the nearest existing ancestor and reattaching the
// remaining components.
func (g *Guard) resolveSymlinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}

	var components []string
	current := path
	for {
		if resolved, err := filepath.EvalSymlinks(current); err == nil {
			result := resolved
			for i := len(components) - 1; i >= 0; i-- {
				result = filepath.Join(result, components[i])
			}
			return result
		}

		dir := filepath.Dir(current)
		if dir == current || dir == "." || dir == "/" {
			return path
		}
		components = append(components, filepath.Base(current))
		current = dir
	}
}

// WorkspaceDir returns the absolute workspace root.
func (g *Guard) WorkspaceDir() string {
	return g.workspaceDir
}

// MakeRelative converts an absolute path to a workspace-relative path.
func (g *Guard) MakeRelative(absPath string) (string, error) {
	if !g.IsWithinWorkspace(absPath) {
		return "", fmt.Errorf("path '%s' is not within workspace", absPath)
	}

	relPath, err := filepath.Rel(g.workspaceDir, absPath)
	if err != nil {
		return "", fmt.Errorf("failed to make path relative: %w", err)
	}
	return relPath, nil
}
