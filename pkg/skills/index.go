// Package skills discovers SKILL.md bundles and exposes them to the agent
// through a single read_skill tool. A skill is a directory containing a
// SKILL.md file with optional YAML frontmatter carrying its name and
// description; the summary line for each skill is injected into the tool
// description so the agent knows what is available without reading anything.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/oriel-ai/harbor/pkg/logging"
)

// Location tells which tier a skill was discovered in. Project skills
// shadow global skills of the same name.
type Location string

const (
	LocationProject Location = "project"
	LocationGlobal  Location = "global"
)

const (
	skillFileName      = "SKILL.md"
	maxDescriptionLen  = 240
	globalSkillsSubdir = ".harbor/skills"
)

// Entry is one discovered skill.
type Entry struct {
	Name          string
	Description   string
	Location      Location
	ContentPath   string // absolute path to the SKILL.md file
	BaseDirectory string // absolute path to the skill's directory
}

// frontmatter is the YAML header a SKILL.md may start with.
type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Index scans configured directories for skills.
type Index struct {
	projectDirs []string
	globalDir   string
	log         *logging.Logger
}

// NewIndex creates an index over the given project-relative skill
// directories. When includeGlobal is set, the per-user skills directory
// under the home directory is scanned as well.
func NewIndex(workspaceDir string, directories []string, includeGlobal bool, log *logging.Logger) *Index {
	idx := &Index{log: log}
	for _, dir := range directories {
		if filepath.IsAbs(dir) {
			idx.projectDirs = append(idx.projectDirs, dir)
		} else {
			idx.projectDirs = append(idx.projectDirs, filepath.Join(workspaceDir, dir))
		}
	}
	if includeGlobal {
		if home, err := os.UserHomeDir(); err == nil {
			idx.globalDir = filepath.Join(home, globalSkillsSubdir)
		}
	}
	return idx
}

// List discovers every skill, project tier first. Duplicate names are kept:
// two directories may each carry a skill called "deploy", and both are
// listed. Name resolution happens in FindByName, where the earlier entry
// wins. Unreadable directories are skipped, never fatal.
func (idx *Index) List() []Entry {
	var entries []Entry
	for _, dir := range idx.projectDirs {
		entries = append(entries, idx.scanDir(dir, LocationProject)...)
	}
	if idx.globalDir != "" {
		entries = append(entries, idx.scanDir(idx.globalDir, LocationGlobal)...)
	}
	return entries
}

// FindByName resolves a skill by its declared name, falling back to the
// directory basename. Matching is case-insensitive; project skills win.
func (idx *Index) FindByName(name string) (Entry, bool) {
	target := strings.ToLower(strings.TrimSpace(name))
	if target == "" {
		return Entry{}, false
	}

	entries := idx.List()
	for _, entry := range entries {
		if strings.ToLower(entry.Name) == target {
			return entry, true
		}
	}
	for _, entry := range entries {
		if strings.ToLower(filepath.Base(entry.BaseDirectory)) == target {
			return entry, true
		}
	}
	return Entry{}, false
}

// ReadContent re-reads a skill's SKILL.md at call time so edits made after
// indexing are visible.
func (idx *Index) ReadContent(entry Entry) (string, error) {
	data, err := os.ReadFile(entry.ContentPath)
	if err != nil {
		return "", fmt.Errorf("failed to read skill %s: %w", entry.Name, err)
	}
	return string(data), nil
}

func (idx *Index) scanDir(dir string, loc Location) []Entry {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil // absent directory is not an error
	}

	var entries []Entry
	for _, item := range items {
		if !item.IsDir() {
			continue
		}
		base := filepath.Join(dir, item.Name())
		contentPath := filepath.Join(base, skillFileName)
		data, readErr := os.ReadFile(contentPath)
		if readErr != nil {
			if !os.IsNotExist(readErr) {
				idx.log.Warnf("skipping skill %s: %v", contentPath, readErr)
			}
			continue
		}

		entry := parseSkill(item.Name(), string(data))
		entry.Location = loc
		entry.ContentPath = contentPath
		entry.BaseDirectory = base
		entries = append(entries, entry)
	}
	// os.ReadDir already yields directory entries in filename order, which
	// is the listing order callers see.
	return entries
}

// parseSkill extracts name and description from a SKILL.md body. The
// frontmatter is optional: without it the directory name and first
// non-empty body line serve as fallbacks.
func parseSkill(dirName, content string) Entry {
	entry := Entry{Name: dirName}

	body := content
	if fm, rest, ok := splitFrontmatter(content); ok {
		var parsed frontmatter
		if err := yaml.Unmarshal([]byte(fm), &parsed); err == nil {
			if parsed.Name != "" {
				entry.Name = parsed.Name
			}
			entry.Description = parsed.Description
		}
		body = rest
	}

	if entry.Description == "" {
		for _, line := range strings.Split(body, "\n") {
			trimmed := strings.TrimSpace(strings.TrimLeft(line, "# "))
			if trimmed != "" {
				entry.Description = trimmed
				break
			}
		}
	}

	entry.Description = NormalizeDescription(entry.Description)
	return entry
}

// splitFrontmatter separates a leading YAML frontmatter block delimited by
// `---` lines from the markdown body.
func splitFrontmatter(content string) (fm, body string, ok bool) {
	trimmed := strings.TrimLeft(content, "\uFEFF")
	if !strings.HasPrefix(trimmed, "---") {
		return "", content, false
	}

	lines := strings.Split(trimmed, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), true
		}
	}
	return "", content, false
}

// NormalizeDescription collapses whitespace and caps the result at a fixed
// rune budget: anything within the budget passes through unchanged, anything
// longer is cut to one rune under it with an ellipsis filling the last slot.
// Idempotent: normalizing an already-normalized description returns it
// unchanged.
func NormalizeDescription(desc string) string {
	collapsed := strings.Join(strings.Fields(desc), " ")
	if utf8.RuneCountInString(collapsed) <= maxDescriptionLen {
		return collapsed
	}

	runes := []rune(collapsed)
	return string(runes[:maxDescriptionLen-1]) + "…"
}
