// Package highlight renders markdown source as styled terminal text, using
// the spans recorded during a tagged parse.
package highlight

import (
	"parsek.dev/pkg/md"
	"parsek.dev/pkg/span"
	"parsek.dev/pkg/ui"
)

// Highlight parses src as CommonMark and styles every recognized construct
// according to the theme. The returned text contains all of src; stretches
// with no styled construct stay plain, so concatenating the segments
// reproduces the source.
func Highlight(src string, theme Theme) ui.Text {
	var sink span.Sink
	md.ParseTagged(src, &sink)
	regions := make([]ui.StylingRegion, 0, sink.Len())
	for _, s := range sink.Spans() {
		styling, ok := theme[s.Type]
		if !ok {
			continue
		}
		regions = append(regions, ui.StylingRegion{
			Ranging:  s.Ranging,
			Styling:  styling,
			Priority: priority(s.Type),
		})
	}
	return ui.StyleRegions(src, regions)
}

// priority ranks spans that start at the same position. Content tokens can
// cover an inline construct that starts at the same offset; the more
// specific construct wins.
func priority(t span.TokenType) int {
	switch t {
	case span.HeadingText, span.CodeContent, span.HTMLBlock:
		return 0
	}
	return 1
}
