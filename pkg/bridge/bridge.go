// Package bridge projects a capability provider's tool catalogue into the
// flat tool registry the agent dispatches against. Each bridged tool keeps
// the provider's name and schema; its handler forwards calls over the
// provider client and flattens the result content.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oriel-ai/harbor/pkg/logging"
	"github.com/oriel-ai/harbor/pkg/mcp"
	"github.com/oriel-ai/harbor/pkg/tools"
)

// ToolDispatchError reports a tool call the provider executed but which
// failed inside the tool itself.
type ToolDispatchError struct {
	Provider string
	Tool     string
	Detail   string
}

func (e *ToolDispatchError) Error() string {
	return fmt.Sprintf("tool %s (provider %s) failed: %s", e.Tool, e.Provider, e.Detail)
}

// Bridge lists the provider's tools and registers each in the registry,
// returning how many were registered. An empty catalogue is not an error:
// it is logged and reported as zero. Names already present in the registry
// are skipped — dedicated managers register their curated tools first and
// the first registration wins.
func Bridge(ctx context.Context, providerName string, client *mcp.Client, reg *tools.Registry, log *logging.Logger) (int, error) {
	listed, err := client.ListTools(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list tools from provider %s: %w", providerName, err)
	}

	if len(listed.Tools) == 0 {
		log.Warnf("provider %s exposes no tools", providerName)
		return 0, nil
	}

	registered := 0
	for _, tool := range listed.Tools {
		def := Definition(providerName, client, tool, log)
		if err := reg.Register(def); err != nil {
			if errors.Is(err, tools.ErrDuplicateTool) {
				log.Warnf("provider %s tool %s already registered, skipping", providerName, tool.Name)
				continue
			}
			return registered, fmt.Errorf("failed to register tool %s from provider %s: %w", tool.Name, providerName, err)
		}
		registered++
	}

	log.Infof("bridged %d tools from provider %s", registered, providerName)
	return registered, nil
}

// Definition builds the registry entry for one provider tool.
func Definition(providerName string, client *mcp.Client, tool mcp.Tool, log *logging.Logger) tools.Definition {
	schema := tool.InputSchema
	if schema == nil {
		schema = tools.EmptySchema()
	}

	return tools.Definition{
		Name:        tool.Name,
		Description: fmt.Sprintf("[%s] %s", providerName, tool.Description),
		Schema:      schema,
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return dispatch(ctx, providerName, client, tool.Name, args, log)
		},
	}
}

// dispatch forwards one call over the provider client. Failures are logged
// with the tool and provider names before being returned to the caller.
func dispatch(ctx context.Context, providerName string, client *mcp.Client, toolName string, args map[string]interface{}, log *logging.Logger) (interface{}, error) {
	result, err := client.CallTool(ctx, mcp.ToolsCallParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		log.Errorf("tool %s: provider %s call failed: %v", toolName, providerName, err)
		return nil, fmt.Errorf("provider %s call failed: %w", providerName, err)
	}

	if result.IsError {
		dispatchErr := &ToolDispatchError{
			Provider: providerName,
			Tool:     toolName,
			Detail:   flattenContent(result.Content),
		}
		log.Errorf("tool %s: provider %s reported failure: %s", toolName, providerName, dispatchErr.Detail)
		return nil, dispatchErr
	}
	return flattenContent(result.Content), nil
}

// flattenContent joins text blocks into one string; non-text blocks keep a
// compact placeholder carrying their type and mime type.
func flattenContent(blocks []mcp.ContentBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		switch block.Type {
		case "text":
			parts = append(parts, block.Text)
		case "image":
			parts = append(parts, fmt.Sprintf("[image %s, %d bytes base64]", block.MimeType, len(block.Data)))
		default:
			parts = append(parts, fmt.Sprintf("[%s content]", block.Type))
		}
	}
	return strings.Join(parts, "\n")
}
