// Package render implements the default subprogram, which reads markdown
// from a file argument or stdin and writes it in one of several formats.
package render

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"parsek.dev/pkg/highlight"
	"parsek.dev/pkg/md"
	"parsek.dev/pkg/prog"
	"parsek.dev/pkg/span"
	"parsek.dev/pkg/sys"
	"parsek.dev/pkg/ui"
)

// Program renders markdown. The output format defaults to HTML, or to
// highlighted source when stdout is a terminal.
type Program struct {
	html  bool
	ansi  bool
	dump  bool
	spans bool

	themeFile string
}

func (p *Program) RegisterFlags(fs *prog.FlagSet) {
	fs.BoolVar(&p.html, "html", false,
		"Render HTML (default when stdout is not a terminal)")
	fs.BoolVar(&p.ansi, "ansi", false,
		"Highlight the source for the terminal (default on a terminal)")
	fs.BoolVar(&p.dump, "dump", false,
		"Print the parse tree")
	fs.BoolVar(&p.spans, "spans", false,
		"Print one line per span: type, range and excerpt")
	fs.StringVar(&p.themeFile, "theme", "",
		"Load the highlight theme from this YAML file")
}

func (p *Program) Run(fds [3]*os.File, args []string) error {
	modes := 0
	for _, mode := range []bool{p.html, p.ansi, p.dump, p.spans} {
		if mode {
			modes++
		}
	}
	if modes > 1 {
		return prog.BadUsage("only one of -html, -ansi, -dump and -spans may be given")
	}
	if len(args) > 1 {
		return prog.BadUsage("at most one file argument is allowed")
	}
	if modes == 0 {
		if sys.IsATTY(fds[1].Fd()) {
			p.ansi = true
		} else {
			p.html = true
		}
	}
	if p.themeFile != "" && !p.ansi {
		return prog.BadUsage("-theme requires -ansi output")
	}

	var src string
	if len(args) == 1 {
		bs, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("cannot read %s: %v", args[0], err)
		}
		src = string(bs)
	} else {
		bs, err := io.ReadAll(fds[0])
		if err != nil {
			return fmt.Errorf("cannot read stdin: %v", err)
		}
		src = string(bs)
	}

	out := fds[1]
	switch {
	case p.html:
		_, err := out.WriteString(md.RenderHTML(md.Parse(src)))
		return err
	case p.dump:
		_, err := out.WriteString(md.Dump(md.Parse(src)))
		return err
	case p.spans:
		return writeSpans(out, src)
	default:
		theme := highlight.DefaultTheme()
		if p.themeFile != "" {
			f, err := os.Open(p.themeFile)
			if err != nil {
				return fmt.Errorf("cannot read theme: %v", err)
			}
			theme, err = highlight.LoadTheme(f)
			f.Close()
			if err != nil {
				return err
			}
		}
		ui.NoColor = os.Getenv("NO_COLOR") != ""
		if _, col := sys.WinSize(out); col >= 3 {
			src = widenBreaks(src, col)
		}
		_, err := out.WriteString(highlight.Highlight(src, theme).String())
		return err
	}
}

// writeSpans prints one line per tagged span, in source order.
func writeSpans(out io.Writer, src string) error {
	var sink span.Sink
	md.ParseTagged(src, &sink)
	spans := sink.Spans()
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].From != spans[j].From {
			return spans[i].From < spans[j].From
		}
		if spans[i].To != spans[j].To {
			return spans[i].To < spans[j].To
		}
		return spans[i].Type < spans[j].Type
	})
	for _, s := range spans {
		_, err := fmt.Fprintf(out, "%v\t%d..%d\t%q\n",
			s.Type, s.From, s.To, src[s.From:s.To])
		if err != nil {
			return err
		}
	}
	return nil
}

// widenBreaks stretches every thematic break to span the full terminal
// width. The break keeps its marker character and its indentation, so the
// widened source still parses the same way.
func widenBreaks(src string, width int) string {
	var sink span.Sink
	md.ParseTagged(src, &sink)
	var sb strings.Builder
	last := 0
	for _, s := range sink.Spans() {
		if s.Type != span.ThematicBreak {
			continue
		}
		lineStart := strings.LastIndexByte(src[:s.From], '\n') + 1
		n := width - (s.From - lineStart)
		if n < 3 {
			n = 3
		}
		sb.WriteString(src[last:s.From])
		sb.WriteString(strings.Repeat(string(src[s.From]), n))
		last = s.To
	}
	sb.WriteString(src[last:])
	return sb.String()
}
