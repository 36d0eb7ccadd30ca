package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractReadableText(t *testing.T) {
	rawHTML := `<html>
<head><title>Ignored</title><style>body { color: red; }</style></head>
<body>
  <script>console.log("noise")</script>
  <h1>Welcome</h1>
  <p>First   paragraph with
  wrapped text.</p>
  <div>Second block</div>
  <noscript>fallback</noscript>
</body>
</html>`

	text, err := ExtractReadableText(rawHTML, 0)
	require.NoError(t, err)

	assert.Contains(t, text, "Welcome")
	assert.Contains(t, text, "First paragraph with wrapped text.")
	assert.Contains(t, text, "Second block")
	assert.NotContains(t, text, "console.log")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "fallback")
	assert.NotContains(t, text, "Ignored", "head content is skipped")
}

func TestExtractReadableTextBlockBreaks(t *testing.T) {
	text, err := ExtractReadableText("<p>one</p><p>two</p><span>three</span>", 0)
	require.NoError(t, err)

	lines := strings.Split(text, "\n")
	assert.Contains(t, lines, "one")
	assert.Contains(t, lines, "two")
}

func TestExtractReadableTextTruncation(t *testing.T) {
	long := "<p>" + strings.Repeat("abcdefghij", 100) + "</p>"

	text, err := ExtractReadableText(long, 50)
	require.NoError(t, err)
	assert.Contains(t, text, "[Content truncated: 50 of 1000 characters shown]")
	assert.True(t, strings.HasPrefix(text, strings.Repeat("abcdefghij", 5)))
}

func TestExtractReadableTextCollapsesBlankRuns(t *testing.T) {
	text, err := ExtractReadableText("<div><div><div>deep</div></div></div><p>after</p>", 0)
	require.NoError(t, err)
	assert.NotContains(t, text, "\n\n\n")
	assert.False(t, strings.HasSuffix(text, "\n"), "no trailing blank lines")
}

func TestArgHelpers(t *testing.T) {
	args := map[string]interface{}{
		"s": "hello",
		"i": float64(7), // JSON numbers decode as float64
		"f": 2.5,
		"n": nil,
	}

	assert.Equal(t, "hello", stringArg(args, "s"))
	assert.Equal(t, "", stringArg(args, "missing"))
	assert.Equal(t, 7, intArg(args, "i"))
	assert.Equal(t, 0, intArg(args, "n"))
	assert.Equal(t, 2.5, floatArg(args, "f"))
	assert.Equal(t, float64(7), floatArg(args, "i"))
	assert.Equal(t, float64(0), floatArg(args, "missing"))
}
