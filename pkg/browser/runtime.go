package browser

import (
	"context"
	"fmt"
	"io"

	"github.com/playwright-community/playwright-go"

	"github.com/oriel-ai/harbor/pkg/logging"
)

const (
	defaultViewportWidth  = 1280
	defaultViewportHeight = 800
	screenshotJPEGQuality = 80
)

// playwrightRuntime starts real browsers through Playwright.
type playwrightRuntime struct {
	log *logging.Logger
}

func (r *playwrightRuntime) start(ctx context.Context, opts Options) (session, error) {
	// Discard driver output so it cannot interleave with caller output.
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(runOpts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	var browser playwright.Browser
	if opts.CDPEndpoint != "" {
		browser, err = pw.Chromium.ConnectOverCDP(opts.CDPEndpoint)
		if err != nil {
			_ = pw.Stop()
			return nil, fmt.Errorf("failed to connect over CDP to %s: %w", opts.CDPEndpoint, err)
		}
	} else {
		browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(opts.Headless),
		})
		if err != nil {
			_ = pw.Stop()
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
	}

	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  defaultViewportWidth,
			Height: defaultViewportHeight,
		},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		_ = browserCtx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	return &playwrightSession{
		pw:         pw,
		browser:    browser,
		browserCtx: browserCtx,
		pg:         page,
	}, nil
}

// playwrightSession is one live Playwright-backed browser.
type playwrightSession struct {
	pw         *playwright.Playwright
	browser    playwright.Browser
	browserCtx playwright.BrowserContext
	pg         playwright.Page
}

func (s *playwrightSession) alive() bool {
	return s.browser.IsConnected() && !s.pg.IsClosed()
}

func (s *playwrightSession) probe(ctx context.Context) error {
	if !s.alive() {
		return fmt.Errorf("browser is disconnected")
	}
	if _, err := s.pg.Evaluate("1 + 1"); err != nil {
		return fmt.Errorf("browser probe failed: %w", err)
	}
	return nil
}

func (s *playwrightSession) page() playwright.Page {
	return s.pg
}

func (s *playwrightSession) screenshot(ctx context.Context) ([]byte, error) {
	data, err := s.pg.Screenshot(playwright.PageScreenshotOptions{
		Type:    playwright.ScreenshotTypeJpeg,
		Quality: playwright.Int(screenshotJPEGQuality),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}

func (s *playwrightSession) close() error {
	// Ignore individual errors: closing an already-closed browser must not
	// raise, and teardown continues through every layer.
	_ = s.pg.Close()
	_ = s.browserCtx.Close()
	_ = s.browser.Close()
	_ = s.pw.Stop()
	return nil
}
