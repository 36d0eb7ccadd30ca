package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	guard, err := NewGuard(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create guard: %v", err)
	}
	return guard
}

func TestNewGuardEmptyDir(t *testing.T) {
	if _, err := NewGuard(""); err == nil {
		t.Error("expected error for empty workspace directory")
	}
}

func TestResolvePathRelative(t *testing.T) {
	guard := newTestGuard(t)

	resolved, err := guard.ResolvePath("sub/file.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := filepath.Join(guard.WorkspaceDir(), "sub", "file.txt")
	if resolved != expected {
		t.Errorf("expected %s, got %s", expected, resolved)
	}
}

func TestValidatePath(t *testing.T) {
	guard := newTestGuard(t)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "relative inside", path: "notes.md", wantErr: false},
		{name: "nested inside", path: "a/b/c.txt", wantErr: false},
		{name: "dot", path: ".", wantErr: false},
		{name: "empty", path: "", wantErr: true},
		{name: "traversal escape", path: "../outside.txt", wantErr: true},
		{name: "deep traversal", path: "a/../../outside.txt", wantErr: true},
		{name: "absolute outside", path: "/etc/passwd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidatePath(tt.path)
			if tt.wantErr && err == nil {
				t.Errorf("expected error for path %q", tt.path)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for path %q: %v", tt.path, err)
			}
		})
	}
}

func TestValidatePathAbsoluteInside(t *testing.T) {
	guard := newTestGuard(t)

	inside := filepath.Join(guard.WorkspaceDir(), "file.txt")
	if err := guard.ValidatePath(inside); err != nil {
		t.Errorf("unexpected error for absolute path inside workspace: %v", err)
	}
}

func TestMakeRelative(t *testing.T) {
	guard := newTestGuard(t)

	abs := filepath.Join(guard.WorkspaceDir(), "dir", "file.txt")
	rel, err := guard.MakeRelative(abs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rel != filepath.Join("dir", "file.txt") {
		t.Errorf("unexpected relative path: %s", rel)
	}

	if _, err := guard.MakeRelative("/somewhere/else"); err == nil {
		t.Error("expected error for path outside workspace")
	}
}

func TestIsWithinWorkspaceSiblingPrefix(t *testing.T) {
	dir := t.TempDir()
	workspace := filepath.Join(dir, "work")
	sibling := filepath.Join(dir, "work-other")
	if err := os.MkdirAll(workspace, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(sibling, 0755); err != nil {
		t.Fatal(err)
	}

	guard, err := NewGuard(workspace)
	if err != nil {
		t.Fatalf("failed to create guard: %v", err)
	}

	// A sibling directory sharing the workspace name as a string prefix
	// must not pass the containment check.
	if guard.IsWithinWorkspace(sibling) {
		t.Error("sibling directory with shared prefix should be outside the workspace")
	}
}

func TestRewriteArgs(t *testing.T) {
	guard := newTestGuard(t)

	args := map[string]interface{}{
		"path":    "docs/readme.md",
		"content": "hello",
	}

	out, err := guard.RewriteArgs([]string{"path"}, args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rewritten, _ := out["path"].(string)
	if !filepath.IsAbs(rewritten) {
		t.Errorf("expected absolute path, got %s", rewritten)
	}
	if !strings.HasPrefix(rewritten, guard.WorkspaceDir()) {
		t.Errorf("rewritten path %s not under workspace %s", rewritten, guard.WorkspaceDir())
	}
	if out["content"] != "hello" {
		t.Errorf("non-path parameter should pass through unchanged")
	}
	if args["path"] != "docs/readme.md" {
		t.Error("input map must not be mutated")
	}
}

func TestRewriteArgsIdempotent(t *testing.T) {
	guard := newTestGuard(t)

	first, err := guard.RewriteArgs([]string{"path"}, map[string]interface{}{"path": "file.txt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := guard.RewriteArgs([]string{"path"}, first)
	if err != nil {
		t.Fatalf("unexpected error on second rewrite: %v", err)
	}
	if first["path"] != second["path"] {
		t.Errorf("rewrite not idempotent: %v vs %v", first["path"], second["path"])
	}
}

func TestRewriteArgsEscapeFails(t *testing.T) {
	guard := newTestGuard(t)

	if _, err := guard.RewriteArgs([]string{"path"}, map[string]interface{}{"path": "../escape.txt"}); err == nil {
		t.Error("expected error for escaping path")
	}
}

func TestRewriteArgsPassThrough(t *testing.T) {
	guard := newTestGuard(t)

	args := map[string]interface{}{"count": 3}
	out, err := guard.RewriteArgs([]string{"path"}, args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["count"] != 3 {
		t.Error("absent path parameter should leave args unchanged")
	}
}
