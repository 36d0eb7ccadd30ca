package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/oriel-ai/harbor/pkg/mcp"
	"github.com/oriel-ai/harbor/pkg/tools"
)

// ProviderName identifies the browser capability provider.
const ProviderName = "browser"

// NavigateToolName is the tool whose completion triggers a visual state
// capture in the environment's after-hook.
const NavigateToolName = "browser_navigate"

const defaultExtractMaxLength = 20000

// RegisterProviderTools registers the structural DOM tool family on a
// provider server. Handlers issue commands through the supervisor's
// capability surface and never mutate the browser lifecycle.
func RegisterProviderTools(srv *mcp.Server, sup *Supervisor) error {
	register := []struct {
		def mcp.Tool
		fn  mcp.ToolFunc
	}{
		{
			def: mcp.Tool{
				Name:        NavigateToolName,
				Description: "Navigate the browser to a URL and wait for the page to load.",
				InputSchema: tools.ObjectSchema(map[string]interface{}{
					"url": map[string]interface{}{
						"type":        "string",
						"description": "URL to navigate to (must include protocol, e.g., https://example.com)",
					},
					"wait_until": map[string]interface{}{
						"type":        "string",
						"description": "When navigation is complete: 'load' (default), 'domcontentloaded', or 'networkidle'",
					},
				}, []string{"url"}),
			},
			fn: func(ctx context.Context, args map[string]interface{}) ([]mcp.ContentBlock, error) {
				return navigate(sup, args)
			},
		},
		{
			def: mcp.Tool{
				Name:        "browser_click",
				Description: "Click an element matching a CSS selector.",
				InputSchema: tools.ObjectSchema(map[string]interface{}{
					"selector": map[string]interface{}{
						"type":        "string",
						"description": "CSS selector of the element to click",
					},
					"button": map[string]interface{}{
						"type":        "string",
						"description": "Mouse button: 'left' (default), 'right', or 'middle'",
					},
				}, []string{"selector"}),
			},
			fn: func(ctx context.Context, args map[string]interface{}) ([]mcp.ContentBlock, error) {
				return click(sup, args)
			},
		},
		{
			def: mcp.Tool{
				Name:        "browser_fill",
				Description: "Fill an input element matching a CSS selector with a value.",
				InputSchema: tools.ObjectSchema(map[string]interface{}{
					"selector": map[string]interface{}{
						"type":        "string",
						"description": "CSS selector of the input element",
					},
					"value": map[string]interface{}{
						"type":        "string",
						"description": "Value to fill in",
					},
				}, []string{"selector", "value"}),
			},
			fn: func(ctx context.Context, args map[string]interface{}) ([]mcp.ContentBlock, error) {
				return fill(sup, args)
			},
		},
		{
			def: mcp.Tool{
				Name:        "browser_extract",
				Description: "Extract readable content from the current page, optionally scoped to a selector.",
				InputSchema: tools.ObjectSchema(map[string]interface{}{
					"selector": map[string]interface{}{
						"type":        "string",
						"description": "Optional CSS selector to scope extraction to",
					},
					"max_length": map[string]interface{}{
						"type":        "integer",
						"description": fmt.Sprintf("Maximum characters to return (default %d)", defaultExtractMaxLength),
					},
				}, nil),
			},
			fn: func(ctx context.Context, args map[string]interface{}) ([]mcp.ContentBlock, error) {
				return extract(sup, args)
			},
		},
		{
			def: mcp.Tool{
				Name:        "browser_evaluate",
				Description: "Evaluate a JavaScript expression in the page and return its result as JSON.",
				InputSchema: tools.ObjectSchema(map[string]interface{}{
					"expression": map[string]interface{}{
						"type":        "string",
						"description": "JavaScript expression to evaluate",
					},
				}, []string{"expression"}),
			},
			fn: func(ctx context.Context, args map[string]interface{}) ([]mcp.ContentBlock, error) {
				return evaluate(sup, args)
			},
		},
		{
			def: mcp.Tool{
				Name:        "browser_wait",
				Description: "Wait for an element matching a CSS selector to reach a state.",
				InputSchema: tools.ObjectSchema(map[string]interface{}{
					"selector": map[string]interface{}{
						"type":        "string",
						"description": "CSS selector to wait for",
					},
					"state": map[string]interface{}{
						"type":        "string",
						"description": "State to wait for: 'visible' (default), 'attached', 'detached', or 'hidden'",
					},
					"timeout_ms": map[string]interface{}{
						"type":        "number",
						"description": "Timeout in milliseconds (default 30000)",
					},
				}, []string{"selector"}),
			},
			fn: func(ctx context.Context, args map[string]interface{}) ([]mcp.ContentBlock, error) {
				return waitFor(sup, args)
			},
		},
		{
			def: mcp.Tool{
				Name:        "browser_screenshot",
				Description: "Capture a compressed screenshot of the current viewport.",
				InputSchema: tools.EmptySchema(),
			},
			fn: func(ctx context.Context, args map[string]interface{}) ([]mcp.ContentBlock, error) {
				return screenshot(ctx, sup)
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

func livePage(sup *Supervisor) (playwright.Page, error) {
	page := sup.Page()
	if page == nil {
		return nil, fmt.Errorf("browser is not ready")
	}
	return page, nil
}

func navigate(sup *Supervisor, args map[string]interface{}) ([]mcp.ContentBlock, error) {
	url := stringArg(args, "url")
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}

	waitUntil := stringArg(args, "wait_until")
	if waitUntil == "" {
		waitUntil = "load"
	}
	switch waitUntil {
	case "load", "domcontentloaded", "networkidle":
	default:
		return nil, fmt.Errorf("invalid wait_until value: %s", waitUntil)
	}

	page, err := livePage(sup)
	if err != nil {
		return nil, err
	}

	state := playwright.WaitUntilState(waitUntil)
	if _, err := page.Goto(url, playwright.PageGotoOptions{WaitUntil: &state}); err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	title, err := page.Title()
	if err != nil {
		title = ""
	}
	return mcp.TextContent(fmt.Sprintf("Navigated to %s\nTitle: %s", page.URL(), title)), nil
}

func click(sup *Supervisor, args map[string]interface{}) ([]mcp.ContentBlock, error) {
	selector := stringArg(args, "selector")
	if selector == "" {
		return nil, fmt.Errorf("selector is required")
	}

	page, err := livePage(sup)
	if err != nil {
		return nil, err
	}

	opts := playwright.PageClickOptions{}
	if button := stringArg(args, "button"); button != "" {
		b := playwright.MouseButton(button)
		opts.Button = &b
	}

	if err := page.Click(selector, opts); err != nil {
		return nil, fmt.Errorf("click failed: %w", err)
	}
	return mcp.TextContent(fmt.Sprintf("Clicked %s (now at %s)", selector, page.URL())), nil
}

func fill(sup *Supervisor, args map[string]interface{}) ([]mcp.ContentBlock, error) {
	selector := stringArg(args, "selector")
	value := stringArg(args, "value")
	if selector == "" {
		return nil, fmt.Errorf("selector is required")
	}

	page, err := livePage(sup)
	if err != nil {
		return nil, err
	}

	if err := page.Fill(selector, value); err != nil {
		return nil, fmt.Errorf("fill failed: %w", err)
	}
	return mcp.TextContent(fmt.Sprintf("Filled %s", selector)), nil
}

func extract(sup *Supervisor, args map[string]interface{}) ([]mcp.ContentBlock, error) {
	page, err := livePage(sup)
	if err != nil {
		return nil, err
	}

	maxLength := intArg(args, "max_length")
	if maxLength <= 0 {
		maxLength = defaultExtractMaxLength
	}

	var rawHTML string
	if selector := stringArg(args, "selector"); selector != "" {
		element, qErr := page.QuerySelector(selector)
		if qErr != nil {
			return nil, fmt.Errorf("selector query failed: %w", qErr)
		}
		if element == nil {
			return nil, fmt.Errorf("no element found matching selector: %s", selector)
		}
		rawHTML, err = element.InnerHTML()
		if err != nil {
			return nil, fmt.Errorf("failed to read element content: %w", err)
		}
	} else {
		rawHTML, err = page.Content()
		if err != nil {
			return nil, fmt.Errorf("failed to read page content: %w", err)
		}
	}

	text, err := ExtractReadableText(rawHTML, maxLength)
	if err != nil {
		return nil, err
	}

	title, err := page.Title()
	if err == nil && title != "" {
		text = fmt.Sprintf("# %s\n\n%s", title, text)
	}
	return mcp.TextContent(text), nil
}

func evaluate(sup *Supervisor, args map[string]interface{}) ([]mcp.ContentBlock, error) {
	expression := stringArg(args, "expression")
	if expression == "" {
		return nil, fmt.Errorf("expression is required")
	}

	page, err := livePage(sup)
	if err != nil {
		return nil, err
	}

	value, err := page.Evaluate(expression)
	if err != nil {
		return nil, fmt.Errorf("evaluate failed: %w", err)
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return mcp.TextContent(fmt.Sprintf("%v", value)), nil
	}
	return mcp.TextContent(string(encoded)), nil
}

func waitFor(sup *Supervisor, args map[string]interface{}) ([]mcp.ContentBlock, error) {
	selector := stringArg(args, "selector")
	if selector == "" {
		return nil, fmt.Errorf("selector is required")
	}

	page, err := livePage(sup)
	if err != nil {
		return nil, err
	}

	opts := playwright.PageWaitForSelectorOptions{}
	if state := stringArg(args, "state"); state != "" {
		s := playwright.WaitForSelectorState(state)
		opts.State = &s
	}
	if timeout := floatArg(args, "timeout_ms"); timeout > 0 {
		opts.Timeout = &timeout
	}

	if _, err := page.WaitForSelector(selector, opts); err != nil {
		return nil, fmt.Errorf("wait failed: %w", err)
	}
	return mcp.TextContent(fmt.Sprintf("Element %s reached the expected state", selector)), nil
}

func screenshot(ctx context.Context, sup *Supervisor) ([]mcp.ContentBlock, error) {
	data, err := sup.Screenshot(ctx)
	if err != nil {
		return nil, err
	}
	return []mcp.ContentBlock{{
		Type:     "image",
		Data:     base64.StdEncoding.EncodeToString(data),
		MimeType: "image/jpeg",
	}}, nil
}

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
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

func floatArg(args map[string]interface{}, key string) float64 {
	switch v := args[key].(type) {
	case int:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}
