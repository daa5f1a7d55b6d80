package highlight_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	. "parsek.dev/pkg/highlight"
	"parsek.dev/pkg/span"
	"parsek.dev/pkg/testutil"
	"parsek.dev/pkg/ui"
)

var dedent = testutil.Dedent

func TestHighlight(t *testing.T) {
	theme := Theme{
		span.HeadingMarker: ui.FgRed,
		span.HeadingText:   ui.Bold,
	}
	got := Highlight("# Hi\n", theme)
	want := ui.Concat(
		ui.T("#", ui.FgRed),
		ui.T(" "),
		ui.T("Hi", ui.Bold),
		ui.T("\n"))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diff (-want +got):\n%s", diff)
	}
}

// A construct inside heading text starts at the same offset as the text
// span; the more specific construct wins and the text span is dropped.
func TestHighlight_InnerConstructWinsAtSameStart(t *testing.T) {
	theme := Theme{
		span.HeadingMarker:  ui.FgRed,
		span.HeadingText:    ui.Bold,
		span.EscapeSequence: ui.FgMagenta,
	}
	got := Highlight("# \\*x\n", theme)
	want := ui.Concat(
		ui.T("#", ui.FgRed),
		ui.T(" "),
		ui.T(`\*`, ui.FgMagenta),
		ui.T("x\n"))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diff (-want +got):\n%s", diff)
	}
}

func TestHighlight_EmptyThemeKeepsSourcePlain(t *testing.T) {
	got := Highlight("- a\n", Theme{})
	want := ui.T("- a\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diff (-want +got):\n%s", diff)
	}
}

// Concatenating the segments reproduces the source byte for byte.
func TestHighlight_CoversWholeSource(t *testing.T) {
	src := "# h\n\n> *a* [b](/u \"t\")\n\n- `c`\n- <http://x.y>\n\n```go\nf()\n```\n"
	var sb strings.Builder
	for _, seg := range Highlight(src, DefaultTheme()) {
		sb.WriteString(seg.Text)
	}
	if sb.String() != src {
		t.Errorf("segments = %q, want %q", sb.String(), src)
	}
}

func TestLoadTheme(t *testing.T) {
	theme, err := LoadTheme(strings.NewReader("HeadingMarker: fg-red\nCodeContent: \"\"\n"))
	if err != nil {
		t.Fatalf("LoadTheme -> error %v", err)
	}
	if got := ui.ApplyStyling(ui.Style{}, theme[span.HeadingMarker]); got != (ui.Style{Fg: ui.Red}) {
		t.Errorf("overridden styling = %v, want fg-red", got)
	}
	if _, ok := theme[span.CodeContent]; ok {
		t.Errorf("empty styling did not remove the default")
	}
	if got := ui.ApplyStyling(ui.Style{}, theme[span.ListMarker]); got != (ui.Style{Fg: ui.Cyan}) {
		t.Errorf("untouched default = %v, want fg-cyan", got)
	}
}

// A styling may also be written as a map of style options.
func TestLoadTheme_OptionMap(t *testing.T) {
	src := dedent(`
		HeadingText:
		  fg-color: red
		  bg-color: '#008000'
		  bold: true
		  inverse: false
		`)
	theme, err := LoadTheme(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadTheme -> error %v", err)
	}
	got := ui.ApplyStyling(ui.Style{}, theme[span.HeadingText])
	want := ui.Style{Fg: ui.Red, Bg: ui.TrueColor(0, 0x80, 0), Bold: true}
	if got != want {
		t.Errorf("styling = %v, want %v", got, want)
	}
}

func TestLoadTheme_EmptyFileGivesDefault(t *testing.T) {
	theme, err := LoadTheme(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadTheme -> error %v", err)
	}
	if len(theme) != len(DefaultTheme()) {
		t.Errorf("got %d entries, want %d", len(theme), len(DefaultTheme()))
	}
}

func TestLoadTheme_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown token type", "NoSuchToken: bold\n"},
		{"invalid styling", "HeadingMarker: blah\n"},
		{"unknown style option", "HeadingMarker: {frobnicate: true}\n"},
		{"bad option value", "HeadingMarker: {bold: 3}\n"},
		{"not a map", "[1, 2, 3]\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := LoadTheme(strings.NewReader(test.src)); err == nil {
				t.Errorf("LoadTheme(%q) -> no error", test.src)
			}
		})
	}
}
