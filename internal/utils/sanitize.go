package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	bodyPolicy  = bluemonday.UGCPolicy()
	plainPolicy = bluemonday.StrictPolicy()
)

// SanitizeBody strips unsafe markup from user-submitted post bodies while
// keeping the formatting tags a forum post legitimately uses.
func SanitizeBody(body string) string {
	return bodyPolicy.Sanitize(body)
}

// SanitizeTitle strips all markup from thread titles.
func SanitizeTitle(title string) string {
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(title)))
}

// PlainText reduces a body to bare text for search indexing.
func PlainText(body string) string {
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(body)))
}
