package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeBodyDropsScripts(t *testing.T) {
	out := SanitizeBody(`<p>hello</p><script>alert(1)</script>`)
	assert.Contains(t, out, "<p>hello</p>")
	assert.NotContains(t, out, "script")
}

func TestSanitizeBodyKeepsFormatting(t *testing.T) {
	in := `<b>bold</b> and <a href="https://example.com" rel="nofollow">a link</a>`
	out := SanitizeBody(in)
	assert.Contains(t, out, "<b>bold</b>")
	assert.Contains(t, out, "example.com")
}

func TestSanitizeTitle(t *testing.T) {
	assert.Equal(t, "plain title", SanitizeTitle("  <b>plain</b> title  "))
	assert.Equal(t, "a & b", SanitizeTitle("a &amp; b"))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "just text", PlainText("<p>just <em>text</em></p>"))
}
