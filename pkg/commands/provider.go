// Package commands is the shell command capability provider. Commands run
// through the system shell with the workspace as working directory, with a
// per-call timeout and full stdout/stderr capture.
package commands

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oriel-ai/harbor/pkg/logging"
	"github.com/oriel-ai/harbor/pkg/mcp"
	"github.com/oriel-ai/harbor/pkg/tools"
)

// ProviderName identifies the command execution capability provider.
const ProviderName = "commands"

const (
	defaultTimeout = 2 * time.Minute
	maxTimeout     = 10 * time.Minute
	maxOutputBytes = 100000
)

// Provider runs shell commands inside the workspace directory.
type Provider struct {
	workspaceDir string
	log          *logging.Logger
}

// NewProvider creates a command provider rooted at workspaceDir.
func NewProvider(workspaceDir string, log *logging.Logger) *Provider {
	return &Provider{workspaceDir: workspaceDir, log: log}
}

// RegisterTools registers the command tool catalogue on a provider server.
func (p *Provider) RegisterTools(srv *mcp.Server) error {
	return srv.RegisterTool(mcp.Tool{
		Name:        "run_command",
		Description: "Run a shell command in the workspace directory and return its output and exit code.",
		InputSchema: tools.ObjectSchema(map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "Shell command to execute",
			},
			"timeout_seconds": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum seconds to let the command run (default 120, max 600)",
			},
		}, []string{"command"}),
	}, func(ctx context.Context, args map[string]interface{}) ([]mcp.ContentBlock, error) {
		return p.run(ctx, args)
	})
}

func (p *Provider) run(ctx context.Context, args map[string]interface{}) ([]mcp.ContentBlock, error) {
	command, _ := args["command"].(string)
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("missing required parameter: command")
	}

	timeout := defaultTimeout
	if secs := intArg(args, "timeout_seconds"); secs > 0 {
		timeout = time.Duration(secs) * time.Second
		if timeout > maxTimeout {
			timeout = maxTimeout
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	executionID := uuid.New().String()[:8]
	p.log.Infof("command %s: %s", executionID, command)

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = p.workspaceDir
	// Don't let Wait hang on pipes held open by surviving descendants after
	// the process itself has been killed.
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if runErr != nil {
		// A deadline kill also surfaces as an ExitError, so the context is
		// checked first: a killed process is a timeout, not an exit code.
		switch {
		case runCtx.Err() == context.DeadlineExceeded:
			p.log.Warnf("command %s timed out after %s", executionID, timeout)
			return nil, fmt.Errorf("command timed out after %s", timeout)
		case runCtx.Err() != nil:
			return nil, fmt.Errorf("command canceled: %w", runCtx.Err())
		default:
			if exitErr, ok := runErr.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
			} else {
				return nil, fmt.Errorf("command failed to start: %w", runErr)
			}
		}
	}

	p.log.Infof("command %s finished: exit=%d elapsed=%s", executionID, exitCode, elapsed.Round(time.Millisecond))

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Exit code: %d\n", exitCode))
	if out := truncateOutput(stdout.String()); out != "" {
		builder.WriteString(fmt.Sprintf("\nstdout:\n%s", out))
	}
	if errOut := truncateOutput(stderr.String()); errOut != "" {
		builder.WriteString(fmt.Sprintf("\nstderr:\n%s", errOut))
	}

	// A non-zero exit is a normal tool result: the caller needs the
	// captured output to decide what to do next.
	return mcp.TextContent(builder.String()), nil
}

func truncateOutput(out string) string {
	out = strings.TrimRight(out, "\n")
	if len(out) > maxOutputBytes {
		return out[:maxOutputBytes] + fmt.Sprintf("\n[Output truncated: %d of %d bytes shown]", maxOutputBytes, len(out))
	}
	return out
}

func intArg(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
