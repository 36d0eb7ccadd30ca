package env

import (
	"context"
	"fmt"

	"github.com/oriel-ai/harbor/pkg/bridge"
	"github.com/oriel-ai/harbor/pkg/fsprovider"
	"github.com/oriel-ai/harbor/pkg/logging"
	"github.com/oriel-ai/harbor/pkg/mcp"
	"github.com/oriel-ai/harbor/pkg/tools"
	"github.com/oriel-ai/harbor/pkg/workspace"
)

// FilesystemToolsManager bridges the filesystem provider's catalogue and
// declares which parameters of each tool carry workspace paths, so the
// before-call hook can rewrite them to absolute form.
type FilesystemToolsManager struct {
	guard      *workspace.Guard
	pathParams map[string][]string
	registered []string
}

// NewFilesystemToolsManager creates a manager over the workspace guard.
func NewFilesystemToolsManager(guard *workspace.Guard) *FilesystemToolsManager {
	return &FilesystemToolsManager{
		guard:      guard,
		pathParams: fsprovider.PathParams(),
	}
}

// PathParams returns the path-shaped parameter names of a tool, or nil for
// tools this manager does not own.
func (m *FilesystemToolsManager) PathParams(toolName string) []string {
	return m.pathParams[toolName]
}

// RegisteredTools returns the names this manager placed in the registry.
func (m *FilesystemToolsManager) RegisteredTools() []string {
	return append([]string(nil), m.registered...)
}

// RegisterTools bridges the filesystem tools, restricted to the declared
// catalogue so an unexpected provider tool cannot bypass path rewriting.
func (m *FilesystemToolsManager) RegisterTools(ctx context.Context, client *mcp.Client, reg *tools.Registry, log *logging.Logger) error {
	listed, err := client.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("failed to list filesystem tools: %w", err)
	}

	for _, tool := range listed.Tools {
		if _, known := m.pathParams[tool.Name]; !known {
			log.Warnf("filesystem provider exposes undeclared tool %s, skipping", tool.Name)
			continue
		}
		def := bridge.Definition(fsprovider.ProviderName, client, tool, log)
		if err := reg.Register(def); err != nil {
			return err
		}
		m.registered = append(m.registered, tool.Name)
	}
	return nil
}
