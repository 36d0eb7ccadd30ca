package skills

import (
	"context"
	"fmt"
	"strings"

	"github.com/oriel-ai/harbor/pkg/tools"
)

// ToolName is the single tool the skill index exposes.
const ToolName = "read_skill"

// RegisterTool adds the read_skill tool to the registry when at least one
// skill is discovered. Returns how many skills back the tool; zero means
// nothing was registered.
func RegisterTool(idx *Index, reg *tools.Registry) (int, error) {
	entries := idx.List()
	if len(entries) == 0 {
		return 0, nil
	}

	err := reg.Register(tools.Definition{
		Name:        ToolName,
		Description: toolDescription(entries),
		Schema: tools.ObjectSchema(map[string]interface{}{
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Name of the skill to read",
			},
		}, []string{"name"}),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			name, _ := args["name"].(string)
			return readSkill(idx, name)
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to register %s: %w", ToolName, err)
	}
	return len(entries), nil
}

// readSkill returns a skill's full SKILL.md content. An unknown name is a
// normal result listing what is available, so the agent can self-correct
// without treating it as a failure.
func readSkill(idx *Index, name string) (interface{}, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("name is required")
	}

	entry, found := idx.FindByName(name)
	if !found {
		names := make([]string, 0)
		for _, e := range idx.List() {
			names = append(names, e.Name)
		}
		return fmt.Sprintf("No skill named '%s'. Available skills: %s", name, strings.Join(names, ", ")), nil
	}

	content, err := idx.ReadContent(entry)
	if err != nil {
		return nil, err
	}
	// The base directory lets the agent resolve resources bundled next to
	// the instruction file.
	return fmt.Sprintf("# Skill: %s (%s)\nBase directory: %s\n\n%s",
		entry.Name, entry.Location, entry.BaseDirectory, content), nil
}

// Summary renders one line per discovered skill for startup display.
func Summary(entries []Entry) string {
	if len(entries) == 0 {
		return "No skills discovered."
	}
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%d skill(s) available:\n", len(entries)))
	for _, entry := range entries {
		builder.WriteString(fmt.Sprintf("  - %s (%s): %s\n", entry.Name, entry.Location, entry.Description))
	}
	return strings.TrimRight(builder.String(), "\n")
}

func toolDescription(entries []Entry) string {
	var builder strings.Builder
	builder.WriteString("Read the full instructions of a skill by name. Available skills:\n")
	for _, entry := range entries {
		builder.WriteString(fmt.Sprintf("- %s: %s\n", entry.Name, entry.Description))
	}
	return strings.TrimRight(builder.String(), "\n")
}
