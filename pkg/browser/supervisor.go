// Package browser owns the session's single shared browser instance.
// The Supervisor is the only component that starts, probes, recovers, or
// stops the browser; everything else issues commands through the capability
// surface it exposes (Page, Screenshot) and never touches the lifecycle.
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/oriel-ai/harbor/pkg/logging"
)

// State is the browser process lifecycle state.
type State int

const (
	StateNotLaunched State = iota
	StateLaunching
	StateReady
	StateUnresponsive
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotLaunched:
		return "not_launched"
	case StateLaunching:
		return "launching"
	case StateReady:
		return "ready"
	case StateUnresponsive:
		return "unresponsive"
	default:
		return "unknown"
	}
}

// Options configures how the browser is started.
type Options struct {
	// Headless launches the browser without a window.
	Headless bool

	// CDPEndpoint, when set, connects to an already-running browser over
	// the Chrome DevTools Protocol instead of launching one.
	CDPEndpoint string
}

// LaunchError indicates the browser failed to start. Non-fatal to the
// session: the next browser tool call retries readiness.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("browser launch failed: %v", e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// RecoveryError indicates teardown-and-relaunch of an unresponsive browser
// failed. Non-fatal to the session.
type RecoveryError struct {
	Err error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("browser recovery failed: %v", e.Err)
}

func (e *RecoveryError) Unwrap() error { return e.Err }

// launchAttempt is one in-flight launch. Concurrent callers observing
// StateLaunching wait on done and read the shared outcome, so exactly one
// underlying launch happens no matter how many callers need it.
type launchAttempt struct {
	done chan struct{}
	err  error
}

// runtime abstracts browser startup so the state machine is testable
// without a real browser process.
type runtime interface {
	start(ctx context.Context, opts Options) (session, error)
}

// session is one live browser: a connected process with an open page.
type session interface {
	alive() bool
	probe(ctx context.Context) error
	page() playwright.Page
	screenshot(ctx context.Context) ([]byte, error)
	close() error
}

// Supervisor serializes all lifecycle transitions of the shared browser.
// At most one launch or recovery attempt is in flight at any time.
type Supervisor struct {
	mu      sync.Mutex
	state   State
	attempt *launchAttempt
	sess    session

	opts Options
	rt   runtime
	log  *logging.Logger
}

// NewSupervisor creates a supervisor in the NotLaunched state. Nothing is
// started until the first EnsureReady with allowLaunch — launch is lazy.
func NewSupervisor(opts Options, log *logging.Logger) *Supervisor {
	return &Supervisor{
		opts: opts,
		rt:   &playwrightRuntime{log: log},
		log:  log,
	}
}

func newSupervisorWithRuntime(opts Options, rt runtime, log *logging.Logger) *Supervisor {
	return &Supervisor{opts: opts, rt: rt, log: log}
}

// EnsureReady brings the browser to the Ready state if allowed.
//
// NotLaunched + allowLaunch: starts the browser; concurrent callers wait on
// the same attempt and observe the same outcome. Ready: performs a liveness
// probe and attempts one recovery on failure before surfacing it. When
// allowLaunch is false (replaying a recorded session) and the browser is
// not ready, the call is a no-op.
func (s *Supervisor) EnsureReady(ctx context.Context, allowLaunch bool) error {
	for {
		s.mu.Lock()
		switch s.state {
		case StateReady:
			sess := s.sess
			s.mu.Unlock()

			if err := sess.probe(ctx); err == nil {
				return nil
			}
			s.log.Warnf("browser liveness probe failed, attempting recovery")
			s.markUnresponsive(sess)
			if s.Recover(ctx) {
				return nil
			}
			return &RecoveryError{Err: fmt.Errorf("browser unresponsive and relaunch failed")}

		case StateLaunching:
			attempt := s.attempt
			s.mu.Unlock()

			select {
			case <-attempt.done:
				return attempt.err
			case <-ctx.Done():
				return ctx.Err()
			}

		default: // NotLaunched, Unresponsive
			if !allowLaunch {
				s.mu.Unlock()
				return nil
			}
			attempt := &launchAttempt{done: make(chan struct{})}
			s.state = StateLaunching
			s.attempt = attempt
			s.mu.Unlock()

			return s.launch(ctx, attempt)
		}
	}
}

// launch runs the single in-flight attempt and publishes its outcome.
func (s *Supervisor) launch(ctx context.Context, attempt *launchAttempt) error {
	sess, err := s.rt.start(ctx, s.opts)

	s.mu.Lock()
	if err != nil {
		s.state = StateNotLaunched
		s.attempt = nil
		attempt.err = &LaunchError{Err: err}
	} else {
		s.sess = sess
		s.state = StateReady
		s.attempt = nil
	}
	s.mu.Unlock()
	close(attempt.done)

	if attempt.err != nil {
		s.log.Errorf("browser launch failed: %v", err)
	} else {
		s.log.Infof("browser ready (headless=%v, cdp=%q)", s.opts.Headless, s.opts.CDPEndpoint)
	}
	return attempt.err
}

// markUnresponsive transitions Ready -> Unresponsive, but only if the
// session we probed is still the current one.
func (s *Supervisor) markUnresponsive(sess session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateReady && s.sess == sess {
		s.state = StateUnresponsive
	}
}

// IsReady reports whether the browser is in the Ready state.
func (s *Supervisor) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateReady
}

// IsAlive reports whether the browser is ready and its process is
// connected. With probe=true a trivial command is additionally issued to
// confirm the page still answers.
func (s *Supervisor) IsAlive(ctx context.Context, probe bool) bool {
	s.mu.Lock()
	sess := s.sess
	ready := s.state == StateReady
	s.mu.Unlock()

	if !ready || sess == nil || !sess.alive() {
		return false
	}
	if !probe {
		return true
	}
	return sess.probe(ctx) == nil
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Recover tears the browser down and relaunches it. Returns whether the
// browser is ready afterwards. Failure is logged and non-fatal: the next
// tool call attempting browser use retries EnsureReady.
func (s *Supervisor) Recover(ctx context.Context) bool {
	s.mu.Lock()
	if s.state == StateLaunching {
		// A launch or recovery is already in flight; share its outcome.
		attempt := s.attempt
		s.mu.Unlock()
		select {
		case <-attempt.done:
			return attempt.err == nil
		case <-ctx.Done():
			return false
		}
	}

	old := s.sess
	s.sess = nil
	attempt := &launchAttempt{done: make(chan struct{})}
	s.state = StateLaunching
	s.attempt = attempt
	s.mu.Unlock()

	if old != nil {
		_ = old.close()
	}

	if err := s.launch(ctx, attempt); err != nil {
		s.log.Errorf("browser recovery failed: %v", err)
		return false
	}
	s.log.Infof("browser recovered")
	return true
}

// Page returns the command surface of the live browser, or nil when the
// browser is not ready. Callers issue page commands through it; lifecycle
// stays with the supervisor.
func (s *Supervisor) Page() playwright.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady || s.sess == nil {
		return nil
	}
	return s.sess.page()
}

// Screenshot captures a compressed JPEG of the current viewport.
func (s *Supervisor) Screenshot(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	sess := s.sess
	ready := s.state == StateReady
	s.mu.Unlock()

	if !ready || sess == nil {
		return nil, fmt.Errorf("browser is not ready")
	}
	return sess.screenshot(ctx)
}

// Dispose tears the browser down. Idempotent: disposing an already-closed
// browser is a no-op. An in-flight launch is awaited first so its session
// does not leak.
func (s *Supervisor) Dispose() {
	s.mu.Lock()
	attempt := s.attempt
	s.mu.Unlock()
	if attempt != nil {
		<-attempt.done
	}

	s.mu.Lock()
	sess := s.sess
	s.sess = nil
	s.state = StateNotLaunched
	s.attempt = nil
	s.mu.Unlock()

	if sess != nil {
		_ = sess.close()
		s.log.Infof("browser disposed")
	}
}
