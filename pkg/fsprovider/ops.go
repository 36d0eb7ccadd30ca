package fsprovider

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/oriel-ai/harbor/pkg/mcp"
)

const (
	defaultSearchMaxResults = 100
	maxSearchFileSize       = 1 << 20 // skip files larger than 1MB
)

func (p *Provider) readFile(args map[string]interface{}) ([]mcp.ContentBlock, error) {
	path, err := p.resolve(args, "path", false)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	startLine := intArg(args, "start_line")
	endLine := intArg(args, "end_line")

	if startLine <= 0 {
		startLine = 1
	}
	if endLine <= 0 || endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > len(lines) {
		return nil, fmt.Errorf("start_line %d is beyond end of file (%d lines)", startLine, len(lines))
	}
	if startLine > endLine {
		return nil, fmt.Errorf("start_line %d is after end_line %d", startLine, endLine)
	}

	var builder strings.Builder
	width := len(fmt.Sprintf("%d", endLine))
	for i := startLine; i <= endLine; i++ {
		builder.WriteString(fmt.Sprintf("%*d | %s\n", width, i, lines[i-1]))
	}
	return mcp.TextContent(builder.String()), nil
}

func (p *Provider) writeFile(args map[string]interface{}) ([]mcp.ContentBlock, error) {
	path, err := p.resolve(args, "path", false)
	if err != nil {
		return nil, err
	}

	content, ok := args["content"].(string)
	if !ok {
		return nil, fmt.Errorf("missing required parameter: content")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	rel, relErr := p.guard.MakeRelative(path)
	if relErr != nil {
		rel = path
	}
	return mcp.TextContent(fmt.Sprintf("Wrote %d bytes to %s", len(content), rel)), nil
}

func (p *Provider) listFiles(args map[string]interface{}) ([]mcp.ContentBlock, error) {
	root, err := p.resolve(args, "path", true)
	if err != nil {
		return nil, err
	}

	recursive, _ := args["recursive"].(bool)

	var matcher glob.Glob
	if pattern, _ := args["pattern"].(string); pattern != "" {
		matcher, err = glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern '%s': %w", pattern, err)
		}
	}

	var entries []string
	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if path == root {
			return nil
		}
		name := info.Name()
		if strings.HasPrefix(name, ".") && name != "." {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}

		if info.IsDir() {
			if matcher == nil {
				entries = append(entries, rel+string(filepath.Separator))
			}
			if !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher == nil || matcher.Match(name) {
			entries = append(entries, rel)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to list files: %w", walkErr)
	}

	sort.Strings(entries)
	if len(entries) == 0 {
		return mcp.TextContent("No entries found."), nil
	}
	return mcp.TextContent(strings.Join(entries, "\n")), nil
}

func (p *Provider) searchFiles(args map[string]interface{}) ([]mcp.ContentBlock, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("missing required parameter: query")
	}

	root, err := p.resolve(args, "path", true)
	if err != nil {
		return nil, err
	}

	maxResults := intArg(args, "max_results")
	if maxResults <= 0 {
		maxResults = defaultSearchMaxResults
	}

	var matcher glob.Glob
	if pattern, _ := args["glob"].(string); pattern != "" {
		matcher, err = glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern '%s': %w", pattern, err)
		}
	}

	var matches []string
	truncated := false
	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || truncated {
			if truncated {
				return filepath.SkipAll
			}
			return nil
		}
		name := info.Name()
		if strings.HasPrefix(name, ".") {
			if info.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if info.Size() > maxSearchFileSize {
			return nil
		}
		if matcher != nil && !matcher.Match(name) {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil || !utf8Text(data) {
			return nil
		}

		rel, relErr := p.guard.MakeRelative(path)
		if relErr != nil {
			rel = path
		}
		for i, line := range strings.Split(string(data), "\n") {
			if strings.Contains(line, query) {
				matches = append(matches, fmt.Sprintf("%s:%d: %s", rel, i+1, strings.TrimSpace(line)))
				if len(matches) >= maxResults {
					truncated = true
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("search failed: %w", walkErr)
	}

	if len(matches) == 0 {
		return mcp.TextContent(fmt.Sprintf("No matches for '%s'.", query)), nil
	}

	result := strings.Join(matches, "\n")
	if truncated {
		result += fmt.Sprintf("\n\n[Results truncated at %d matches]", maxResults)
	}
	return mcp.TextContent(result), nil
}

// utf8Text reports whether data looks like text rather than a binary blob.
func utf8Text(data []byte) bool {
	checkLen := len(data)
	if checkLen > 8000 {
		checkLen = 8000
	}
	for _, b := range data[:checkLen] {
		if b == 0 {
			return false
		}
	}
	return true
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
