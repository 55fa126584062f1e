package utils

import "strings"

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// SanitizeContent escapes the HTML-significant characters of paste content so
// it can be embedded in a page. Nothing else is altered.
func SanitizeContent(s string) string {
	return htmlReplacer.Replace(s)
}
