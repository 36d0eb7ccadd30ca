package env

import (
	"context"
	"fmt"
	"strings"

	"github.com/oriel-ai/harbor/pkg/bridge"
	"github.com/oriel-ai/harbor/pkg/browser"
	"github.com/oriel-ai/harbor/pkg/config"
	"github.com/oriel-ai/harbor/pkg/logging"
	"github.com/oriel-ai/harbor/pkg/mcp"
	"github.com/oriel-ai/harbor/pkg/tools"
)

// BrowserToolsManager curates which browser tool families reach the
// registry, by control mode:
//
//	dom              — the structural DOM family from the browser provider
//	visual-grounding — the coordinate-grounded GUI family, plus navigation
//	                   and screenshot capture, which every mode needs
//	hybrid           — both families
type BrowserToolsManager struct {
	mode       string
	registered []string
}

// Tools every control mode keeps: without navigation the agent cannot reach
// a page, and without capture the GUI family has nothing to ground on.
var alwaysBridged = map[string]bool{
	browser.NavigateToolName: true,
	"browser_screenshot":     true,
}

// NewBrowserToolsManager creates a manager for a control mode.
func NewBrowserToolsManager(mode string) *BrowserToolsManager {
	return &BrowserToolsManager{mode: mode}
}

// Mode returns the control mode the manager curates for.
func (m *BrowserToolsManager) Mode() string { return m.mode }

// RegisteredTools returns the names this manager placed in the registry.
func (m *BrowserToolsManager) RegisteredTools() []string {
	return append([]string(nil), m.registered...)
}

// RegisterTools bridges the selected DOM tools from the browser provider
// and registers the GUI family from the controller, per the control mode.
func (m *BrowserToolsManager) RegisterTools(ctx context.Context, client *mcp.Client, controller *browser.Controller, reg *tools.Registry, log *logging.Logger) error {
	listed, err := client.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("failed to list browser tools: %w", err)
	}

	for _, tool := range listed.Tools {
		if !m.includeDOMTool(tool.Name) {
			continue
		}
		def := bridge.Definition(browser.ProviderName, client, tool, log)
		if err := reg.Register(def); err != nil {
			return err
		}
		m.registered = append(m.registered, tool.Name)
	}

	if m.includeGUITools() {
		if controller == nil {
			return fmt.Errorf("control mode %s requires a GUI controller", m.mode)
		}
		for _, def := range controller.Tools() {
			if err := reg.Register(def); err != nil {
				return err
			}
			m.registered = append(m.registered, def.Name)
		}
	}

	log.Infof("browser tools registered (mode=%s): %s", m.mode, strings.Join(m.registered, ", "))
	return nil
}

func (m *BrowserToolsManager) includeDOMTool(name string) bool {
	switch m.mode {
	case config.ControlDOM, config.ControlHybrid:
		return true
	case config.ControlVisualGrounding:
		return alwaysBridged[name]
	default:
		return false
	}
}

func (m *BrowserToolsManager) includeGUITools() bool {
	return m.mode == config.ControlVisualGrounding || m.mode == config.ControlHybrid
}
