package testutil

import (
	"regexp"
	"strings"
)

var (
	blankLine   = regexp.MustCompile("(?m)^[ \t]+$")
	lineIndents = regexp.MustCompile("(?m)(^[ \t]*)(?:[^ \t\n])")
)

// Dedent strips the longest common indentation from every line of text, so
// that multiline raw strings can be indented along with the code that uses
// them. A leading newline is dropped, letting the first line start right
// after the opening backtick; lines containing only spaces and tabs count as
// empty. The algorithm follows github.com/lithammer/dedent.
func Dedent(text string) string {
	if text[0] == '\n' {
		text = text[1:]
	}
	text = blankLine.ReplaceAllString(text, "")

	margin := ""
	for i, m := range lineIndents.FindAllStringSubmatch(text, -1) {
		indent := m[1]
		switch {
		case i == 0:
			margin = indent
		case strings.HasPrefix(indent, margin):
			// Line is indented deeper than the margin; keep the margin.
		case strings.HasPrefix(margin, indent):
			margin = indent
		default:
			// No common indentation at all.
			return text
		}
	}
	if margin == "" {
		return text
	}
	return regexp.MustCompile("(?m)^"+margin).ReplaceAllString(text, "")
}
