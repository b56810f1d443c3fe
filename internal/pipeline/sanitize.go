package pipeline

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// stripPolicy removes every tag and attribute, leaving text content only.
var stripPolicy = bluemonday.StrictPolicy()

// StripMarkup reduces a free-text field to plain text: tags and attributes
// removed, HTML entities decoded.
func StripMarkup(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
}
