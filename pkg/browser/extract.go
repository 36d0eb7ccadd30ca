package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Tags whose subtrees carry no readable content.
var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"svg":      true,
	"head":     true,
	"iframe":   true,
}

// Block-level tags that force a line break around their text.
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "tr": true, "br": true, "blockquote": true, "pre": true,
}

// ExtractReadableText parses raw HTML and returns its readable text with
// block structure collapsed to line breaks. Content beyond maxLength is
// truncated with an explicit marker so the caller knows it was cut.
func ExtractReadableText(rawHTML string, maxLength int) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var builder strings.Builder
	collectText(doc, &builder)

	text := collapseBlankLines(builder.String())
	if maxLength > 0 && len(text) > maxLength {
		truncated := text[:maxLength]
		return truncated + fmt.Sprintf("\n\n[Content truncated: %d of %d characters shown]", maxLength, len(text)), nil
	}
	return text, nil
}

func collectText(node *html.Node, builder *strings.Builder) {
	if node.Type == html.ElementNode && skippedTags[node.Data] {
		return
	}

	if node.Type == html.TextNode {
		trimmed := strings.TrimSpace(node.Data)
		if trimmed != "" {
			if builder.Len() > 0 && !strings.HasSuffix(builder.String(), "\n") {
				builder.WriteString(" ")
			}
			builder.WriteString(strings.Join(strings.Fields(trimmed), " "))
		}
		return
	}

	isBlock := node.Type == html.ElementNode && blockTags[node.Data]
	if isBlock && builder.Len() > 0 {
		builder.WriteString("\n")
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, builder)
	}

	if isBlock {
		builder.WriteString("\n")
	}
}

func collapseBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, trimmed)
	}
	// Drop a trailing blank line left by the last block element.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
