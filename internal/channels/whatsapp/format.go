package whatsapp

import (
	"regexp"
	"strings"
)

// renderRule is one markdown-to-WhatsApp rewrite, applied in order.
type renderRule struct {
	pattern *regexp.Regexp
	repl    string
}

// WhatsApp understands *bold*, _italic_, ~strike~ and backtick code,
// but none of markdown's heavier syntax. Rule order matters: images
// before links (both use bracket syntax), everything before the HTML
// strip so tag-like replacements are not eaten.
var renderRules = []renderRule{
	{regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`), "$2"},     // image -> bare URL
	{regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`), "$1 ($2)"}, // link -> text (url)
	{regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`), "*$1*"},        // header -> bold line
	{regexp.MustCompile(`\*\*(.+?)\*\*`), "*$1*"},              // markdown bold -> WhatsApp bold
	{regexp.MustCompile(`~~(.+?)~~`), "~$1~"},                  // strikethrough
	{regexp.MustCompile(`<[^>]+>`), ""},                        // strip HTML tags
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// FormatMessage rewrites markdown into WhatsApp's formatting dialect.
// Inline code, code fences and _italic_ mean the same thing on both
// sides and pass through untouched.
func FormatMessage(markdown string) string {
	if markdown == "" {
		return ""
	}

	text := markdown
	for _, r := range renderRules {
		text = r.pattern.ReplaceAllString(text, r.repl)
	}
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
