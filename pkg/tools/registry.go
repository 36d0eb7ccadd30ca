// Package tools defines the flat tool registry the agent loop dispatches
// against. Every capability — bridged from a provider or registered by a
// dedicated manager — ends up as one Definition keyed by a unique name.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler executes a tool with structured arguments and returns its result.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Definition is one invocable tool entry. Definitions are immutable after
// registration: a name resolves to exactly one handler for the session.
type Definition struct {
	// Name is the unique identifier the agent invokes the tool by.
	Name string

	// Description explains what the tool does; bridged tools carry a
	// provider-name prefix so provenance stays visible.
	Description string

	// Schema is the JSON schema for the tool's input parameters.
	Schema map[string]interface{}

	// Handler executes the tool.
	Handler Handler
}

// ErrDuplicateTool is returned when a name is registered twice.
// Policy: the first registration wins. Dedicated managers register before
// generic bridging, so manager-owned tools take precedence over a colliding
// bridged tool of the same name.
var ErrDuplicateTool = fmt.Errorf("tool already registered")

// Registry maps tool names to definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]Definition),
	}
}

// Register adds a definition. Registering an existing name fails with
// ErrDuplicateTool; the original definition stays in place.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %q has no handler", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Get returns the definition for a name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Invoke dispatches a call to the named tool.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	def, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	return def.Handler(ctx, args)
}

// ObjectSchema builds a JSON schema object with the given properties and
// required fields.
func ObjectSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// EmptySchema is the fallback schema for tools that declare none.
func EmptySchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
