package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Headless())
	assert.Equal(t, ControlHybrid, cfg.Browser.Control)
	assert.True(t, cfg.SkillsEnabled())
	assert.True(t, cfg.IncludeGlobalSkills())
	assert.Equal(t, []string{".harbor/skills", "skills"}, cfg.Skills.Directories)
	assert.Equal(t, TransportMemory, cfg.MCP.Transport)
}

func TestMergePrecedence(t *testing.T) {
	base := DefaultConfig()
	base.WorkspaceDir = "/base"

	overlay := Config{
		WorkspaceDir: "/overlay",
		Browser: BrowserConfig{
			Headless: BoolPtr(false),
			Control:  ControlDOM,
		},
	}

	merged := Merge(base, overlay)
	assert.Equal(t, "/overlay", merged.WorkspaceDir)
	assert.False(t, merged.Headless())
	assert.Equal(t, ControlDOM, merged.Browser.Control)
	// Fields unset in the overlay keep the base values.
	assert.True(t, merged.SkillsEnabled())
	assert.Equal(t, TransportMemory, merged.MCP.Transport)
}

func TestMergeDistinguishesUnsetFromFalse(t *testing.T) {
	base := DefaultConfig()

	// An overlay with a nil pointer leaves the base value alone.
	merged := Merge(base, Config{})
	assert.True(t, merged.Headless())

	// An explicit false wins.
	merged = Merge(base, Config{Browser: BrowserConfig{Headless: BoolPtr(false)}})
	assert.False(t, merged.Headless())
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := DefaultConfig()
	overlay := Config{Skills: SkillsConfig{Directories: []string{"custom"}}}

	merged := Merge(base, overlay)
	merged.Skills.Directories[0] = "changed"

	assert.Equal(t, "custom", overlay.Skills.Directories[0])
	assert.Equal(t, ".harbor/skills", base.Skills.Directories[0])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errField string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:     "missing workspace",
			mutate:   func(c *Config) { c.WorkspaceDir = "" },
			errField: "workspace_dir",
		},
		{
			name:     "bad control mode",
			mutate:   func(c *Config) { c.Browser.Control = "telepathy" },
			errField: "browser.control",
		},
		{
			name:     "bad transport",
			mutate:   func(c *Config) { c.MCP.Transport = "carrier-pigeon" },
			errField: "mcp.transport",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.WorkspaceDir = "/tmp/work"
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.errField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.errField, cfgErr.Field)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harbor.yaml")
	content := `
workspace_dir: /projects/demo
browser:
  headless: false
  control: dom
skills:
  enabled: false
mcp:
  transport: stdio
  servers:
    weather:
      command: weather-server
      args: ["--fast"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/projects/demo", cfg.WorkspaceDir)
	assert.False(t, cfg.Headless())
	assert.Equal(t, ControlDOM, cfg.Browser.Control)
	assert.False(t, cfg.SkillsEnabled())
	assert.Equal(t, TransportStdio, cfg.MCP.Transport)
	require.Contains(t, cfg.MCP.Servers, "weather")
	assert.Equal(t, "weather-server", cfg.MCP.Servers["weather"].Command)
	assert.Equal(t, []string{"--fast"}, cfg.MCP.Servers["weather"].Args)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	badPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("{not yaml:::"), 0644))
	_, err = LoadFile(badPath)
	assert.Error(t, err)
}
