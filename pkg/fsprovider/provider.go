// Package fsprovider is the filesystem capability provider. Its tools
// operate on absolute paths — the environment rewrites workspace-relative
// parameters before dispatch — and every path is re-validated against the
// workspace guard at this boundary as well.
package fsprovider

import (
	"context"
	"fmt"

	"github.com/oriel-ai/harbor/pkg/mcp"
	"github.com/oriel-ai/harbor/pkg/tools"
	"github.com/oriel-ai/harbor/pkg/workspace"
)

// ProviderName identifies the filesystem capability provider.
const ProviderName = "filesystem"

// Provider bundles the filesystem tools over one workspace guard.
type Provider struct {
	guard *workspace.Guard
}

// NewProvider creates a filesystem provider confined to the guard's
// workspace.
func NewProvider(guard *workspace.Guard) *Provider {
	return &Provider{guard: guard}
}

// RegisterTools registers the filesystem tool catalogue on a provider
// server.
func (p *Provider) RegisterTools(srv *mcp.Server) error {
	register := []struct {
		def mcp.Tool
		fn  mcp.ToolFunc
	}{
		{
			def: mcp.Tool{
				Name:        "fs_read_file",
				Description: "Read the contents of a file with optional line range support. Returns line-numbered content.",
				InputSchema: tools.ObjectSchema(map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Path to the file to read (relative to workspace)",
					},
					"start_line": map[string]interface{}{
						"type":        "integer",
						"description": "Optional starting line number (1-based, inclusive)",
					},
					"end_line": map[string]interface{}{
						"type":        "integer",
						"description": "Optional ending line number (1-based, inclusive)",
					},
				}, []string{"path"}),
			},
			fn: func(ctx context.Context, args map[string]interface{}) ([]mcp.ContentBlock, error) {
				return p.readFile(args)
			},
		},
		{
			def: mcp.Tool{
				Name:        "fs_write_file",
				Description: "Write content to a file, creating parent directories as needed. Overwrites existing content.",
				InputSchema: tools.ObjectSchema(map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Path to the file to write (relative to workspace)",
					},
					"content": map[string]interface{}{
						"type":        "string",
						"description": "Content to write",
					},
				}, []string{"path", "content"}),
			},
			fn: func(ctx context.Context, args map[string]interface{}) ([]mcp.ContentBlock, error) {
				return p.writeFile(args)
			},
		},
		{
			def: mcp.Tool{
				Name:        "fs_list_files",
				Description: "List files and directories, optionally recursive and filtered by a glob pattern.",
				InputSchema: tools.ObjectSchema(map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Directory to list (default: workspace root)",
					},
					"recursive": map[string]interface{}{
						"type":        "boolean",
						"description": "Recurse into subdirectories (default false)",
					},
					"pattern": map[string]interface{}{
						"type":        "string",
						"description": "Optional glob pattern filter (e.g. '*.go')",
					},
				}, nil),
			},
			fn: func(ctx context.Context, args map[string]interface{}) ([]mcp.ContentBlock, error) {
				return p.listFiles(args)
			},
		},
		{
			def: mcp.Tool{
				Name:        "fs_search_files",
				Description: "Search file contents for a substring, returning matching lines with file and line number.",
				InputSchema: tools.ObjectSchema(map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Substring to search for",
					},
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Directory to search (default: workspace root)",
					},
					"glob": map[string]interface{}{
						"type":        "string",
						"description": "Optional glob pattern restricting searched files (e.g. '*.md')",
					},
					"max_results": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of matching lines to return (default 100)",
					},
				}, []string{"query"}),
			},
			fn: func(ctx context.Context, args map[string]interface{}) ([]mcp.ContentBlock, error) {
				return p.searchFiles(args)
			},
		},
	}

	for _, t := range register {
		if err := srv.RegisterTool(t.def, t.fn); err != nil {
			return err
		}
	}
	return nil
}

// PathParams maps each filesystem tool to the argument names holding
// workspace paths. The environment's interception layer uses this to
// rewrite relative paths before dispatch.
func PathParams() map[string][]string {
	return map[string][]string{
		"fs_read_file":    {"path"},
		"fs_write_file":   {"path"},
		"fs_list_files":   {"path"},
		"fs_search_files": {"path"},
	}
}

// resolve validates a path argument against the workspace and returns its
// absolute form. Falls back to the workspace root when the argument is
// empty and allowEmpty is set.
func (p *Provider) resolve(args map[string]interface{}, key string, allowEmpty bool) (string, error) {
	raw, _ := args[key].(string)
	if raw == "" {
		if allowEmpty {
			return p.guard.WorkspaceDir(), nil
		}
		return "", fmt.Errorf("missing required parameter: %s", key)
	}

	abs, err := p.guard.ResolvePath(raw)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !p.guard.IsWithinWorkspace(abs) {
		return "", fmt.Errorf("path '%s' is outside workspace boundaries", raw)
	}
	return abs, nil
}
