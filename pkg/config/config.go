// Package config defines the fully-specified configuration for a Harbor
// session. There is no hidden global state: configuration is an explicit
// struct built by merging layers with documented precedence
// (session options > config file > defaults).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Browser control modes.
const (
	ControlDOM             = "dom"              // structural DOM tools only
	ControlVisualGrounding = "visual-grounding" // coordinate-grounded GUI tools only
	ControlHybrid          = "hybrid"           // both tool families
)

// Provider transport strategies.
const (
	TransportMemory = "memory" // in-process linked channel pair
	TransportStdio  = "stdio"  // external subprocess over stdin/stdout
)

// Config is the complete configuration for one session.
type Config struct {
	// WorkspaceDir is the root directory filesystem tools are confined to.
	WorkspaceDir string `yaml:"workspace_dir"`

	Browser BrowserConfig `yaml:"browser"`
	Skills  SkillsConfig  `yaml:"skills"`
	MCP     MCPConfig     `yaml:"mcp"`
}

// BrowserConfig configures the browser supervisor and tool policy.
type BrowserConfig struct {
	// Headless controls whether the browser launches without a window.
	// Pointer so an overlay can distinguish "unset" from "false".
	Headless *bool `yaml:"headless"`

	// Control selects the browser tool strategy: dom, visual-grounding, or hybrid.
	Control string `yaml:"control"`

	// CDPEndpoint, when set, connects to an existing browser over the
	// Chrome DevTools Protocol instead of launching one.
	CDPEndpoint string `yaml:"cdp_endpoint"`
}

// SkillsConfig configures skill discovery.
type SkillsConfig struct {
	// Enabled turns the skill index on or off. Pointer so an overlay can
	// distinguish "unset" from "false".
	Enabled *bool `yaml:"enabled"`

	// Directories are workspace-relative directories scanned for skills,
	// in lookup-precedence order.
	Directories []string `yaml:"directories"`

	// IncludeGlobal additionally scans ~/.harbor/skills.
	IncludeGlobal *bool `yaml:"include_global"`
}

// MCPConfig configures how capability providers are reached.
type MCPConfig struct {
	// Transport is either "memory" (in-process linked channels) or
	// "stdio" (spawned subprocess per provider).
	Transport string `yaml:"transport"`

	// Servers maps provider name to a launch command, used only with the
	// stdio transport.
	Servers map[string]StdioServerConfig `yaml:"servers"`
}

// StdioServerConfig describes how to spawn one external provider process.
type StdioServerConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// ConfigurationError indicates invalid or missing configuration.
// It is fatal to initialization.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// DefaultConfig returns the base configuration layer.
func DefaultConfig() Config {
	return Config{
		Browser: BrowserConfig{
			Headless: boolPtr(true),
			Control:  ControlHybrid,
		},
		Skills: SkillsConfig{
			Enabled:       boolPtr(true),
			Directories:   []string{".harbor/skills", "skills"},
			IncludeGlobal: boolPtr(true),
		},
		MCP: MCPConfig{
			Transport: TransportMemory,
		},
	}
}

// Merge returns base overlaid with overlay. Precedence: any field set in
// overlay (non-zero string, non-nil pointer, non-empty slice or map) wins;
// everything else is taken from base. Merge does not mutate its inputs.
func Merge(base, overlay Config) Config {
	out := base

	if overlay.WorkspaceDir != "" {
		out.WorkspaceDir = overlay.WorkspaceDir
	}

	if overlay.Browser.Headless != nil {
		out.Browser.Headless = overlay.Browser.Headless
	}
	if overlay.Browser.Control != "" {
		out.Browser.Control = overlay.Browser.Control
	}
	if overlay.Browser.CDPEndpoint != "" {
		out.Browser.CDPEndpoint = overlay.Browser.CDPEndpoint
	}

	if overlay.Skills.Enabled != nil {
		out.Skills.Enabled = overlay.Skills.Enabled
	}
	if len(overlay.Skills.Directories) > 0 {
		out.Skills.Directories = append([]string(nil), overlay.Skills.Directories...)
	}
	if overlay.Skills.IncludeGlobal != nil {
		out.Skills.IncludeGlobal = overlay.Skills.IncludeGlobal
	}

	if overlay.MCP.Transport != "" {
		out.MCP.Transport = overlay.MCP.Transport
	}
	if len(overlay.MCP.Servers) > 0 {
		servers := make(map[string]StdioServerConfig, len(overlay.MCP.Servers))
		for name, srv := range overlay.MCP.Servers {
			servers[name] = srv
		}
		out.MCP.Servers = servers
	}

	return out
}

// LoadFile reads a YAML configuration file as one overlay layer.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the merged configuration for use by a session.
func (c Config) Validate() error {
	if c.WorkspaceDir == "" {
		return &ConfigurationError{Field: "workspace_dir", Reason: "workspace directory is required"}
	}

	switch c.Browser.Control {
	case ControlDOM, ControlVisualGrounding, ControlHybrid:
	default:
		return &ConfigurationError{
			Field:  "browser.control",
			Reason: fmt.Sprintf("unknown control mode %q (must be dom, visual-grounding, or hybrid)", c.Browser.Control),
		}
	}

	switch c.MCP.Transport {
	case TransportMemory, TransportStdio:
	default:
		return &ConfigurationError{
			Field:  "mcp.transport",
			Reason: fmt.Sprintf("unknown transport %q (must be memory or stdio)", c.MCP.Transport),
		}
	}

	return nil
}

// Headless reports the effective headless flag.
func (c Config) Headless() bool {
	return c.Browser.Headless == nil || *c.Browser.Headless
}

// SkillsEnabled reports whether the skill index is enabled.
func (c Config) SkillsEnabled() bool {
	return c.Skills.Enabled == nil || *c.Skills.Enabled
}

// IncludeGlobalSkills reports whether ~/.harbor/skills is scanned.
func (c Config) IncludeGlobalSkills() bool {
	return c.Skills.IncludeGlobal == nil || *c.Skills.IncludeGlobal
}

func boolPtr(b bool) *bool { return &b }

// BoolPtr returns a pointer to b, for building config overlays.
func BoolPtr(b bool) *bool { return boolPtr(b) }
