// Command harbor starts a capability environment session: it connects the
// capability providers, prints the resulting tool catalogue and discovered
// skills, and keeps the environment alive until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/oriel-ai/harbor/pkg/config"
	"github.com/oriel-ai/harbor/pkg/env"
	"github.com/oriel-ai/harbor/pkg/logging"
	"github.com/oriel-ai/harbor/pkg/skills"
)

const version = "0.1.0"

func main() {
	workspaceFlag := flag.String("workspace", "", "workspace directory (default: current directory)")
	headlessFlag := flag.Bool("headless", true, "run the browser without a window")
	controlFlag := flag.String("control", "", "browser control mode: dom, visual-grounding, or hybrid")
	transportFlag := flag.String("transport", "", "provider transport: memory or stdio")
	configFlag := flag.String("config", "", "path to a YAML config file")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("harbor %s\n", version)
		return
	}

	cfg, err := buildConfig(*configFlag, *workspaceFlag, *headlessFlag, *controlFlag, *transportFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, logErr := logging.NewLogger("main")
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging unavailable: %v\n", logErr)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	environment, err := env.New(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := environment.Initialize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize environment: %v\n", err)
		os.Exit(1)
	}
	defer environment.Dispose(ctx)

	fmt.Printf("harbor %s — session %s\n", version, log.SessionID())
	fmt.Printf("workspace: %s\n\n", cfg.WorkspaceDir)

	names := environment.Registry().Names()
	fmt.Printf("%d tool(s) registered:\n", len(names))
	for _, name := range names {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Println()
	fmt.Println(skills.Summary(environment.Skills()))
	if path := log.LogPath(); path != "" {
		fmt.Printf("\nlog: %s\n", path)
	}
	fmt.Println("\nPress Ctrl+C to exit.")

	<-ctx.Done()
	fmt.Println("\nShutting down...")
}

// buildConfig layers configuration: defaults, then the config file, then
// command-line flags.
func buildConfig(configPath, workspaceDir string, headless bool, control, transport string) (config.Config, error) {
	cfg := config.DefaultConfig()

	if configPath != "" {
		fileCfg, err := config.LoadFile(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = config.Merge(cfg, fileCfg)
	}

	overlay := config.Config{
		WorkspaceDir: workspaceDir,
		Browser: config.BrowserConfig{
			Control: control,
		},
		MCP: config.MCPConfig{
			Transport: transport,
		},
	}
	// The headless flag always applies: flags are the outermost layer.
	overlay.Browser.Headless = config.BoolPtr(headless)
	cfg = config.Merge(cfg, overlay)

	if cfg.WorkspaceDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to determine working directory: %w", err)
		}
		cfg.WorkspaceDir = cwd
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
