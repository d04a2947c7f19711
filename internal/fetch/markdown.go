package fetch

import (
	"regexp"
	"strings"
)

var (
	residualTags  = regexp.MustCompile(`<[^>]+>`)
	spaceRuns     = regexp.MustCompile(`[ \t]+`)
	blankLineRuns = regexp.MustCompile(`\n{3,}`)
)

// ToMarkdown turns extracted article text into markdown-ish plain text: a
// title heading followed by normalized paragraphs, with residual markup
// stripped and length capped. maxChars <= 0 means no cap.
func ToMarkdown(title, text string, maxChars int) string {
	text = residualTags.ReplaceAllString(text, "")

	var b strings.Builder
	if t := strings.TrimSpace(title); t != "" {
		b.WriteString("# ")
		b.WriteString(t)
		b.WriteString("\n\n")
	}
	for _, line := range strings.Split(text, "\n") {
		line = spaceRuns.ReplaceAllString(strings.TrimSpace(line), " ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	out := blankLineRuns.ReplaceAllString(b.String(), "\n\n")
	out = strings.TrimSpace(out)
	if maxChars > 0 && len(out) > maxChars {
		out = strings.TrimSpace(out[:maxChars])
	}
	return out
}
