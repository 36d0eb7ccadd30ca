package workspace

import "fmt"

// RewriteArgs rewrites the named path-shaped parameters in a tool's
// arguments from workspace-relative to absolute form. Parameters that are
// absent or not strings pass through unchanged. Already-absolute paths
// inside the workspace are left as-is (rewriting is idempotent); paths that
// escape the workspace fail the call.
//
// The input map is not mutated; a rewritten copy is returned.
func (g *Guard) RewriteArgs(pathParams []string, args map[string]interface{}) (map[string]interface{}, error) {
	if len(pathParams) == 0 || len(args) == 0 {
		return args, nil
	}

	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = v
	}

	for _, param := range pathParams {
		raw, ok := out[param]
		if !ok {
			continue
		}
		value, ok := raw.(string)
		if !ok || value == "" {
			continue
		}

		resolved, err := g.ResolvePath(value)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path parameter %q: %w", param, err)
		}
		if !g.IsWithinWorkspace(resolved) {
			return nil, fmt.Errorf("path parameter %q (%s) escapes the workspace", param, value)
		}
		out[param] = resolved
	}

	return out, nil
}
