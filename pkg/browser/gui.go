package browser

import (
	"context"
	"fmt"

	"github.com/oriel-ai/harbor/pkg/logging"
	"github.com/oriel-ai/harbor/pkg/tools"
	"github.com/oriel-ai/harbor/pkg/types"
)

// Controller is the screenshot-grounded GUI agent: it acts on pixel
// coordinates through the browser's pointer and keyboard rather than on DOM
// selectors. Only instantiated in visual-grounding and hybrid control modes.
type Controller struct {
	sup *Supervisor
	log *logging.Logger
}

// NewController creates a GUI controller over the supervised browser.
func NewController(sup *Supervisor, log *logging.Logger) *Controller {
	return &Controller{sup: sup, log: log}
}

// Prime emits a browser observation (URL, title, screenshot) to the event
// stream so the next reasoning turn starts from the current visual state.
// Capture failures are logged and swallowed.
func (c *Controller) Prime(ctx context.Context, sessionID string, stream *types.EventStream) {
	if stream == nil || !c.sup.IsAlive(ctx, false) {
		return
	}

	page := c.sup.Page()
	if page == nil {
		return
	}

	obs := &types.BrowserObservation{URL: page.URL()}
	if title, err := page.Title(); err == nil {
		obs.Title = title
	}
	if shot, err := c.sup.Screenshot(ctx); err == nil {
		obs.Screenshot = shot
	} else {
		c.log.Warnf("observation screenshot failed: %v", err)
	}

	stream.Emit(types.NewBrowserObservationEvent(obs).WithMetadata("session_id", sessionID))
}

// Tools returns the coordinate-grounded tool family.
func (c *Controller) Tools() []tools.Definition {
	return []tools.Definition{
		{
			Name:        "gui_click",
			Description: "[browser] Click at pixel coordinates in the browser viewport.",
			Schema: tools.ObjectSchema(map[string]interface{}{
				"x": map[string]interface{}{"type": "number", "description": "X coordinate in viewport pixels"},
				"y": map[string]interface{}{"type": "number", "description": "Y coordinate in viewport pixels"},
			}, []string{"x", "y"}),
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return c.click(args)
			},
		},
		{
			Name:        "gui_move",
			Description: "[browser] Move the pointer to pixel coordinates in the browser viewport.",
			Schema: tools.ObjectSchema(map[string]interface{}{
				"x": map[string]interface{}{"type": "number", "description": "X coordinate in viewport pixels"},
				"y": map[string]interface{}{"type": "number", "description": "Y coordinate in viewport pixels"},
			}, []string{"x", "y"}),
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return c.move(args)
			},
		},
		{
			Name:        "gui_type",
			Description: "[browser] Type text with the keyboard into the focused element.",
			Schema: tools.ObjectSchema(map[string]interface{}{
				"text": map[string]interface{}{"type": "string", "description": "Text to type"},
			}, []string{"text"}),
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return c.typeText(args)
			},
		},
		{
			Name:        "gui_press",
			Description: "[browser] Press a single key or key combination (e.g. 'Enter', 'Control+A').",
			Schema: tools.ObjectSchema(map[string]interface{}{
				"key": map[string]interface{}{"type": "string", "description": "Key or combination to press"},
			}, []string{"key"}),
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return c.press(args)
			},
		},
		{
			Name:        "gui_scroll",
			Description: "[browser] Scroll the page by pixel deltas.",
			Schema: tools.ObjectSchema(map[string]interface{}{
				"delta_x": map[string]interface{}{"type": "number", "description": "Horizontal scroll delta in pixels"},
				"delta_y": map[string]interface{}{"type": "number", "description": "Vertical scroll delta in pixels"},
			}, []string{"delta_y"}),
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return c.scroll(args)
			},
		},
	}
}

func (c *Controller) click(args map[string]interface{}) (interface{}, error) {
	page, err := livePage(c.sup)
	if err != nil {
		return nil, err
	}
	x, y := floatArg(args, "x"), floatArg(args, "y")
	if err := page.Mouse().Click(x, y); err != nil {
		return nil, fmt.Errorf("pointer click failed: %w", err)
	}
	return fmt.Sprintf("Clicked at (%.0f, %.0f)", x, y), nil
}

func (c *Controller) move(args map[string]interface{}) (interface{}, error) {
	page, err := livePage(c.sup)
	if err != nil {
		return nil, err
	}
	x, y := floatArg(args, "x"), floatArg(args, "y")
	if err := page.Mouse().Move(x, y); err != nil {
		return nil, fmt.Errorf("pointer move failed: %w", err)
	}
	return fmt.Sprintf("Moved pointer to (%.0f, %.0f)", x, y), nil
}

func (c *Controller) typeText(args map[string]interface{}) (interface{}, error) {
	page, err := livePage(c.sup)
	if err != nil {
		return nil, err
	}
	text := stringArg(args, "text")
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	if err := page.Keyboard().Type(text); err != nil {
		return nil, fmt.Errorf("typing failed: %w", err)
	}
	return fmt.Sprintf("Typed %d characters", len(text)), nil
}

func (c *Controller) press(args map[string]interface{}) (interface{}, error) {
	page, err := livePage(c.sup)
	if err != nil {
		return nil, err
	}
	key := stringArg(args, "key")
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}
	if err := page.Keyboard().Press(key); err != nil {
		return nil, fmt.Errorf("key press failed: %w", err)
	}
	return fmt.Sprintf("Pressed %s", key), nil
}

func (c *Controller) scroll(args map[string]interface{}) (interface{}, error) {
	page, err := livePage(c.sup)
	if err != nil {
		return nil, err
	}
	dx, dy := floatArg(args, "delta_x"), floatArg(args, "delta_y")
	if err := page.Mouse().Wheel(dx, dy); err != nil {
		return nil, fmt.Errorf("scroll failed: %w", err)
	}
	return fmt.Sprintf("Scrolled by (%.0f, %.0f)", dx, dy), nil
}
