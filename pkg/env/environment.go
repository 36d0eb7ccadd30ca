// Package env assembles the capability environment for one agent session:
// it starts the capability providers, bridges their tool catalogues into the
// flat registry, supervises the shared browser, indexes skills, and
// intercepts tool calls for lazy launch, path rewriting, and visual state
// capture.
package env

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/oriel-ai/harbor/pkg/bridge"
	"github.com/oriel-ai/harbor/pkg/browser"
	"github.com/oriel-ai/harbor/pkg/commands"
	"github.com/oriel-ai/harbor/pkg/config"
	"github.com/oriel-ai/harbor/pkg/fsprovider"
	"github.com/oriel-ai/harbor/pkg/logging"
	"github.com/oriel-ai/harbor/pkg/mcp"
	"github.com/oriel-ai/harbor/pkg/skills"
	"github.com/oriel-ai/harbor/pkg/tools"
	"github.com/oriel-ai/harbor/pkg/types"
	"github.com/oriel-ai/harbor/pkg/workspace"
)

// State is the environment lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateDisposed
)

// SharedStateKeyScreenshot is where the after-call hook stores the visual
// state captured after a navigation, for the caller to attach to the next
// reasoning turn.
const SharedStateKeyScreenshot = "browserScreenshot"

// ProviderConnectionError indicates a capability provider failed to start
// or complete its handshake. Fatal to initialization.
type ProviderConnectionError struct {
	Provider string
	Err      error
}

func (e *ProviderConnectionError) Error() string {
	return fmt.Sprintf("provider %s failed to connect: %v", e.Provider, e.Err)
}

func (e *ProviderConnectionError) Unwrap() error { return e.Err }

// providerHandle is one connected capability provider: its client plus the
// teardown for its transport (the in-process serve goroutine for linked
// providers, the subprocess for stdio ones).
type providerHandle struct {
	name   string
	client *mcp.Client
	cancel context.CancelFunc
}

// Environment is the capability environment for one session.
type Environment struct {
	cfg config.Config
	log *logging.Logger

	mu    sync.Mutex
	state State

	guard      *workspace.Guard
	registry   *tools.Registry
	stream     *types.EventStream
	supervisor *browser.Supervisor
	controller *browser.Controller
	browserMgr *BrowserToolsManager
	fsMgr      *FilesystemToolsManager
	providers  map[string]*providerHandle
	skillIndex *skills.Index
	skillCount int
}

// New creates an environment from a validated configuration. Nothing is
// started until Initialize.
func New(cfg config.Config, log *logging.Logger) (*Environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Environment{
		cfg:       cfg,
		log:       log,
		registry:  tools.NewRegistry(),
		stream:    types.NewEventStream(),
		providers: make(map[string]*providerHandle),
	}, nil
}

// Initialize brings the environment to the Ready state: workspace guard,
// capability providers (set up concurrently), tool bridging, and the skill
// index. The browser is NOT launched here — launch is lazy, deferred to the
// first browser tool call.
//
// Initialization is fail-fast and not re-entrant: a second call in any
// state other than Uninitialized fails.
func (e *Environment) Initialize(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateUninitialized {
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("environment cannot be initialized from state %d", state)
	}
	e.state = StateInitializing
	e.mu.Unlock()

	if err := e.initialize(ctx); err != nil {
		e.stream.Emit(types.NewEnvironmentErrorEvent(err))
		e.mu.Lock()
		e.state = StateDisposed
		e.mu.Unlock()
		e.teardownProviders(ctx)
		return err
	}

	e.mu.Lock()
	e.state = StateReady
	e.mu.Unlock()
	e.stream.Emit(types.NewEnvironmentReadyEvent(e.registry.Names()))
	e.log.Infof("environment ready: %d tools, %d skills", e.registry.Len(), e.skillCount)
	return nil
}

func (e *Environment) initialize(ctx context.Context) error {
	guard, err := workspace.NewGuard(e.cfg.WorkspaceDir)
	if err != nil {
		return fmt.Errorf("failed to set up workspace: %w", err)
	}
	e.guard = guard

	e.supervisor = browser.NewSupervisor(browser.Options{
		Headless:    e.cfg.Headless(),
		CDPEndpoint: e.cfg.Browser.CDPEndpoint,
	}, e.log)
	if e.cfg.Browser.Control != config.ControlDOM {
		e.controller = browser.NewController(e.supervisor, e.log)
	}

	if err := e.startProviders(ctx); err != nil {
		return err
	}
	if err := e.registerTools(ctx); err != nil {
		return err
	}

	if e.cfg.SkillsEnabled() {
		e.skillIndex = skills.NewIndex(guard.WorkspaceDir(), e.cfg.Skills.Directories, e.cfg.IncludeGlobalSkills(), e.log)
		count, err := skills.RegisterTool(e.skillIndex, e.registry)
		if err != nil {
			return err
		}
		e.skillCount = count
	}

	return nil
}

// startProviders connects every capability provider concurrently. The
// built-in providers (browser, filesystem, commands) run in-process over
// linked transports; configured external servers are spawned over stdio.
func (e *Environment) startProviders(ctx context.Context) error {
	type setup struct {
		name string
		fn   func(ctx context.Context) (*providerHandle, error)
	}

	setups := []setup{
		{browser.ProviderName, func(ctx context.Context) (*providerHandle, error) {
			srv := mcp.NewServer(browser.ProviderName, "1.0.0")
			if err := browser.RegisterProviderTools(srv, e.supervisor); err != nil {
				return nil, err
			}
			return e.connectLinked(ctx, browser.ProviderName, srv)
		}},
		{fsprovider.ProviderName, func(ctx context.Context) (*providerHandle, error) {
			srv := mcp.NewServer(fsprovider.ProviderName, "1.0.0")
			if err := fsprovider.NewProvider(e.guard).RegisterTools(srv); err != nil {
				return nil, err
			}
			return e.connectLinked(ctx, fsprovider.ProviderName, srv)
		}},
		{commands.ProviderName, func(ctx context.Context) (*providerHandle, error) {
			srv := mcp.NewServer(commands.ProviderName, "1.0.0")
			if err := commands.NewProvider(e.guard.WorkspaceDir(), e.log).RegisterTools(srv); err != nil {
				return nil, err
			}
			return e.connectLinked(ctx, commands.ProviderName, srv)
		}},
	}

	if e.cfg.MCP.Transport == config.TransportStdio {
		for name, serverCfg := range e.cfg.MCP.Servers {
			name, serverCfg := name, serverCfg
			setups = append(setups, setup{name, func(ctx context.Context) (*providerHandle, error) {
				return e.connectStdio(ctx, name, serverCfg)
			}})
		}
	} else if len(e.cfg.MCP.Servers) > 0 {
		e.log.Warnf("ignoring %d configured stdio servers: transport is %s", len(e.cfg.MCP.Servers), e.cfg.MCP.Transport)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(setups))
	handleCh := make(chan *providerHandle, len(setups))

	for _, s := range setups {
		wg.Add(1)
		go func(s setup) {
			defer wg.Done()
			handle, err := s.fn(ctx)
			if err != nil {
				errCh <- &ProviderConnectionError{Provider: s.name, Err: err}
				return
			}
			handleCh <- handle
		}(s)
	}
	wg.Wait()
	close(errCh)
	close(handleCh)

	for handle := range handleCh {
		e.providers[handle.name] = handle
	}
	// Fail on the first provider error; already-connected providers are
	// torn down by the caller's error path.
	if err := <-errCh; err != nil {
		return err
	}
	return nil
}

// connectLinked runs a provider server on a goroutine over a linked
// transport pair and returns an initialized client for it.
func (e *Environment) connectLinked(ctx context.Context, name string, srv *mcp.Server) (*providerHandle, error) {
	serverSide, clientSide := mcp.NewLinkedTransports()

	serveCtx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := srv.Serve(serveCtx, serverSide); err != nil && serveCtx.Err() == nil {
			e.log.Errorf("provider %s server stopped: %v", name, err)
		}
	}()

	client := mcp.NewClient(clientSide, mcp.ClientOptions{})
	if _, err := client.Initialize(ctx); err != nil {
		cancel()
		_ = clientSide.Close(ctx)
		return nil, err
	}
	return &providerHandle{name: name, client: client, cancel: cancel}, nil
}

// connectStdio spawns an external provider process and returns an
// initialized client for it.
func (e *Environment) connectStdio(ctx context.Context, name string, serverCfg config.StdioServerConfig) (*providerHandle, error) {
	transport, err := mcp.NewStdioTransport(ctx, mcp.StdioTransportConfig{
		Command: serverCfg.Command,
		Args:    serverCfg.Args,
		Env:     serverCfg.Env,
	})
	if err != nil {
		return nil, err
	}

	client := mcp.NewClient(transport, mcp.ClientOptions{})
	if _, err := client.Initialize(ctx); err != nil {
		_ = transport.Close(ctx)
		return nil, err
	}
	return &providerHandle{name: name, client: client, cancel: func() {}}, nil
}

// registerTools fills the registry: dedicated managers first (their curated
// tools take precedence), then generic bridging for every remaining
// provider.
func (e *Environment) registerTools(ctx context.Context) error {
	e.browserMgr = NewBrowserToolsManager(e.cfg.Browser.Control)
	if handle, ok := e.providers[browser.ProviderName]; ok {
		if err := e.browserMgr.RegisterTools(ctx, handle.client, e.controller, e.registry, e.log); err != nil {
			return fmt.Errorf("failed to register browser tools: %w", err)
		}
	}

	e.fsMgr = NewFilesystemToolsManager(e.guard)
	if handle, ok := e.providers[fsprovider.ProviderName]; ok {
		if err := e.fsMgr.RegisterTools(ctx, handle.client, e.registry, e.log); err != nil {
			return fmt.Errorf("failed to register filesystem tools: %w", err)
		}
	}

	for name, handle := range e.providers {
		if name == browser.ProviderName || name == fsprovider.ProviderName {
			continue
		}
		if _, err := bridge.Bridge(ctx, name, handle.client, e.registry, e.log); err != nil {
			return err
		}
	}
	return nil
}

// State returns the lifecycle state.
func (e *Environment) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Registry returns the flat tool registry.
func (e *Environment) Registry() *tools.Registry { return e.registry }

// Stream returns the session event stream.
func (e *Environment) Stream() *types.EventStream { return e.stream }

// Browser returns the browser supervisor.
func (e *Environment) Browser() *browser.Supervisor { return e.supervisor }

// Skills returns the discovered skill entries, or nil when the skill index
// is disabled.
func (e *Environment) Skills() []skills.Entry {
	if e.skillIndex == nil {
		return nil
	}
	return e.skillIndex.List()
}

// OnBeforeToolCall intercepts a call before dispatch. Browser-family tools
// trigger lazy launch (suppressed during replay); filesystem tools get
// their path parameters rewritten to absolute form. Returns the arguments
// to dispatch with.
func (e *Environment) OnBeforeToolCall(ctx context.Context, toolName string, args map[string]interface{}, isReplay bool) (map[string]interface{}, error) {
	e.mu.Lock()
	ready := e.state == StateReady
	e.mu.Unlock()
	// The hook is exported independently of InvokeTool, so guard against a
	// loop that fires it before Initialize has wired the managers.
	if !ready {
		return nil, fmt.Errorf("environment is not ready")
	}

	if isBrowserTool(toolName) {
		if err := e.supervisor.EnsureReady(ctx, !isReplay); err != nil {
			return nil, err
		}
	}

	if params := e.fsMgr.PathParams(toolName); len(params) > 0 {
		rewritten, err := e.guard.RewriteArgs(params, args)
		if err != nil {
			return nil, err
		}
		return rewritten, nil
	}
	return args, nil
}

// OnAfterToolCall intercepts a completed call. After a navigation the
// current visual state is captured into shared state for the next
// reasoning turn; capture failures are logged and swallowed, and shared
// state is left untouched.
func (e *Environment) OnAfterToolCall(ctx context.Context, toolName string, shared map[string]interface{}) {
	if toolName != browser.NavigateToolName || e.supervisor == nil {
		return
	}
	if !e.supervisor.IsAlive(ctx, true) {
		return
	}

	shot, err := e.supervisor.Screenshot(ctx)
	if err != nil {
		e.log.Warnf("post-navigation screenshot failed: %v", err)
		return
	}
	shared[SharedStateKeyScreenshot] = shot
}

// OnEachLoopStart runs at the top of each reasoning turn. In the
// visual-grounding and hybrid control modes a browser observation is
// emitted so the turn starts from the current visual state.
func (e *Environment) OnEachLoopStart(ctx context.Context) {
	if e.controller == nil || e.supervisor == nil || !e.supervisor.IsReady() {
		return
	}
	e.controller.Prime(ctx, e.log.SessionID(), e.stream)
}

// InvokeTool runs one tool through the full interception pipeline: the
// before hook, registry dispatch, the after hook, with call and result
// events emitted to the stream.
func (e *Environment) InvokeTool(ctx context.Context, toolName string, args map[string]interface{}, shared map[string]interface{}) (interface{}, error) {
	e.mu.Lock()
	ready := e.state == StateReady
	e.mu.Unlock()
	if !ready {
		return nil, fmt.Errorf("environment is not ready")
	}

	e.stream.Emit(types.NewToolCallEvent(toolName, args))

	dispatchArgs, err := e.OnBeforeToolCall(ctx, toolName, args, false)
	if err != nil {
		e.stream.Emit(types.NewToolResultErrorEvent(toolName, err))
		return nil, err
	}

	result, err := e.registry.Invoke(ctx, toolName, dispatchArgs)
	if err != nil {
		e.stream.Emit(types.NewToolResultErrorEvent(toolName, err))
		return nil, err
	}

	if shared != nil {
		e.OnAfterToolCall(ctx, toolName, shared)
	}
	e.stream.Emit(types.NewToolResultEvent(toolName, result))
	return result, nil
}

// Dispose tears the environment down: browser first, then providers, then
// the event stream. Idempotent, and tolerates a partially-initialized
// environment.
func (e *Environment) Dispose(ctx context.Context) {
	e.mu.Lock()
	if e.state == StateDisposed {
		e.mu.Unlock()
		return
	}
	e.state = StateDisposed
	e.mu.Unlock()

	if e.supervisor != nil {
		e.supervisor.Dispose()
	}
	e.teardownProviders(ctx)
	e.stream.Close()
	e.log.Infof("environment disposed")
}

func (e *Environment) teardownProviders(ctx context.Context) {
	for name, handle := range e.providers {
		if err := handle.client.Close(ctx); err != nil {
			e.log.Warnf("provider %s close failed: %v", name, err)
		}
		handle.cancel()
	}
	e.providers = make(map[string]*providerHandle)
}

func isBrowserTool(toolName string) bool {
	return strings.HasPrefix(toolName, "browser_") || strings.HasPrefix(toolName, "gui_")
}
