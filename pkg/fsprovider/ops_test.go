package fsprovider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriel-ai/harbor/pkg/mcp"
	"github.com/oriel-ai/harbor/pkg/workspace"
)

func newTestProvider(t *testing.T) (*Provider, string) {
	t.Helper()
	dir := t.TempDir()
	guard, err := workspace.NewGuard(dir)
	require.NoError(t, err)
	return NewProvider(guard), guard.WorkspaceDir()
}

func textOf(t *testing.T, blocks []mcp.ContentBlock) string {
	t.Helper()
	require.NotEmpty(t, blocks)
	return blocks[0].Text
}

func TestReadFile(t *testing.T) {
	p, dir := newTestProvider(t)
	path := filepath.Join(dir, "sample.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha\nbeta\ngamma\n"), 0644))

	out, err := p.readFile(map[string]interface{}{"path": "sample.txt"})
	require.NoError(t, err)
	text := textOf(t, out)
	assert.Contains(t, text, "1 | alpha")
	assert.Contains(t, text, "2 | beta")
	assert.Contains(t, text, "3 | gamma")
}

func TestReadFileLineRange(t *testing.T) {
	p, dir := newTestProvider(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lines.txt"), []byte("one\ntwo\nthree\nfour\nfive"), 0644))

	out, err := p.readFile(map[string]interface{}{
		"path":       "lines.txt",
		"start_line": float64(2),
		"end_line":   float64(3),
	})
	require.NoError(t, err)
	text := textOf(t, out)
	assert.Contains(t, text, "2 | two")
	assert.Contains(t, text, "3 | three")
	assert.NotContains(t, text, "one")
	assert.NotContains(t, text, "four")
}

func TestReadFileInvalidRanges(t *testing.T) {
	p, dir := newTestProvider(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "short.txt"), []byte("only\ntwo"), 0644))

	_, err := p.readFile(map[string]interface{}{"path": "short.txt", "start_line": float64(10)})
	assert.Error(t, err, "start beyond end of file")

	_, err = p.readFile(map[string]interface{}{"path": "short.txt", "start_line": float64(2), "end_line": float64(1)})
	assert.Error(t, err, "start after end")

	_, err = p.readFile(map[string]interface{}{"path": "missing.txt"})
	assert.Error(t, err)

	_, err = p.readFile(map[string]interface{}{})
	assert.Error(t, err, "path is required")
}

func TestWriteFileCreatesParents(t *testing.T) {
	p, dir := newTestProvider(t)

	out, err := p.writeFile(map[string]interface{}{
		"path":    "deep/nested/file.txt",
		"content": "payload",
	})
	require.NoError(t, err)
	assert.Contains(t, textOf(t, out), "7 bytes")

	data, err := os.ReadFile(filepath.Join(dir, "deep", "nested", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestWriteFileRejectsEscape(t *testing.T) {
	p, _ := newTestProvider(t)

	_, err := p.writeFile(map[string]interface{}{
		"path":    "../outside.txt",
		"content": "nope",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside workspace")
}

func TestListFiles(t *testing.T) {
	p, dir := newTestProvider(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("# b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c.go"), []byte("package c"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0644))

	t.Run("non-recursive", func(t *testing.T) {
		out, err := p.listFiles(map[string]interface{}{})
		require.NoError(t, err)
		text := textOf(t, out)
		assert.Contains(t, text, "a.go")
		assert.Contains(t, text, "b.md")
		assert.NotContains(t, text, "c.go")
		assert.NotContains(t, text, ".hidden")
	})

	t.Run("recursive", func(t *testing.T) {
		out, err := p.listFiles(map[string]interface{}{"recursive": true})
		require.NoError(t, err)
		assert.Contains(t, textOf(t, out), filepath.Join("sub", "c.go"))
	})

	t.Run("glob filter", func(t *testing.T) {
		out, err := p.listFiles(map[string]interface{}{"recursive": true, "pattern": "*.go"})
		require.NoError(t, err)
		text := textOf(t, out)
		assert.Contains(t, text, "a.go")
		assert.NotContains(t, text, "b.md")
	})

	t.Run("bad pattern", func(t *testing.T) {
		_, err := p.listFiles(map[string]interface{}{"pattern": "[unclosed"})
		assert.Error(t, err)
	})
}

func TestSearchFiles(t *testing.T) {
	p, dir := newTestProvider(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("todo: ship it\ndone: nothing"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("todo: more work"), 0644))

	out, err := p.searchFiles(map[string]interface{}{"query": "todo:"})
	require.NoError(t, err)
	text := textOf(t, out)
	assert.Contains(t, text, "notes.md:1: todo: ship it")
	assert.Contains(t, text, "other.txt:1: todo: more work")
	assert.NotContains(t, text, "done: nothing")
}

func TestSearchFilesGlobAndLimit(t *testing.T) {
	p, dir := newTestProvider(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("match\nmatch\nmatch"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("match"), 0644))

	out, err := p.searchFiles(map[string]interface{}{
		"query": "match",
		"glob":  "*.md",
	})
	require.NoError(t, err)
	assert.NotContains(t, textOf(t, out), "b.txt")

	out, err = p.searchFiles(map[string]interface{}{
		"query":       "match",
		"glob":        "*.md",
		"max_results": float64(2),
	})
	require.NoError(t, err)
	assert.Contains(t, textOf(t, out), "[Results truncated at 2 matches]")
}

func TestSearchFilesNoMatches(t *testing.T) {
	p, _ := newTestProvider(t)

	out, err := p.searchFiles(map[string]interface{}{"query": "absent"})
	require.NoError(t, err)
	assert.Contains(t, textOf(t, out), "No matches")
}

func TestRegisterToolsCatalogue(t *testing.T) {
	p, _ := newTestProvider(t)
	srv := mcp.NewServer(ProviderName, "test")
	require.NoError(t, p.RegisterTools(srv))

	params := PathParams()
	for _, name := range []string{"fs_read_file", "fs_write_file", "fs_list_files", "fs_search_files"} {
		assert.Contains(t, params, name)
	}
}

func TestResolveRejectsAbsoluteOutside(t *testing.T) {
	p, _ := newTestProvider(t)

	_, err := p.resolve(map[string]interface{}{"path": "/etc/passwd"}, "path", false)
	require.Error(t, err)
}

func TestUTF8Text(t *testing.T) {
	assert.True(t, utf8Text([]byte("plain text")))
	assert.False(t, utf8Text([]byte{0x00, 0x01, 0x02}))
}
