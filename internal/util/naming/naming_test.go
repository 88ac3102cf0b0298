package naming

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "already valid", input: "web", expected: "web"},
		{name: "upper case", input: "WebServer", expected: "webserver"},
		{name: "spaces become hyphens", input: "my app", expected: "my-app"},
		{name: "leading digits dropped", input: "42nd street", expected: "nd-street"},
		{name: "leading punctuation dropped", input: "--_web", expected: "web"},
		{name: "invalid characters dropped", input: "a_b.c!d", expected: "abcd"},
		{name: "digits kept after first letter", input: "node01", expected: "node01"},
		{name: "truncated to thirteen", input: "abcdefghijklmnopqrstuvwxyz", expected: "abcdefghijklm"},
		{name: "truncation after translation", input: "production database server", expected: "production-da"},
		{name: "empty input", input: "", expected: Placeholder},
		{name: "only invalid", input: "1234 !!", expected: Placeholder},
		{name: "unicode letters kept", input: "Über Node", expected: "über-node"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_Properties(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"", " ", "a", "Z9", "9Z", "hello world", "Hello   World", "---",
		"ALLCAPS-WITH-HYPHENS-AND-MORE", "tab\tseparated", "émile zola",
		"x" + string(make([]byte, 40)), "日本語 サーバー", "a b c d e f g h i j",
	}

	for _, in := range inputs {
		out := Normalize(in)
		n := utf8.RuneCountInString(out)
		assert.GreaterOrEqual(t, n, 1, "input %q", in)
		assert.LessOrEqual(t, n, MaxLength, "input %q", in)
		assert.Equal(t, out, Normalize(out), "normalize must be idempotent for %q", in)
	}
}

func TestHostname(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "web", Hostname("Web", 1, 1))
	assert.Equal(t, "web", Hostname("Web", 1, 0))
	assert.Equal(t, "web-1", Hostname("Web", 1, 3))
	assert.Equal(t, "web-3", Hostname("Web", 3, 3))
	assert.Equal(t, "abcdefghijklm-2", Hostname("abcdefghijklmnop", 2, 2))
}
