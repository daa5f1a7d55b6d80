package highlight

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"parsek.dev/pkg/span"
	"parsek.dev/pkg/ui"
)

// Theme maps token types to stylings. Token types absent from the theme
// render unstyled.
type Theme map[span.TokenType]ui.Styling

// DefaultTheme returns the builtin theme. Syntax punctuation is dimmed into
// bright black, content carries the color.
func DefaultTheme() Theme {
	return Theme{
		span.ThematicBreak:     ui.FgBrightBlack,
		span.HeadingMarker:     ui.FgBrightBlack,
		span.HeadingText:       ui.Stylings(ui.Bold, ui.FgBlue),
		span.CodeFence:         ui.FgBrightBlack,
		span.CodeInfo:          ui.FgCyan,
		span.CodeContent:       ui.FgYellow,
		span.BlockQuoteMarker:  ui.FgMagenta,
		span.ListMarker:        ui.FgCyan,
		span.HTMLBlock:         ui.FgBrightBlack,
		span.LinkLabel:         ui.FgCyan,
		span.LinkDestination:   ui.Stylings(ui.Underlined, ui.FgGreen),
		span.LinkTitle:         ui.FgGreen,
		span.EmphasisMarker:    ui.FgBrightBlack,
		span.StrongMarker:      ui.FgBrightBlack,
		span.CodeSpanDelimiter: ui.FgBrightBlack,
		span.CodeSpanContent:   ui.FgYellow,
		span.LinkBracket:       ui.FgBrightBlack,
		span.LinkParen:         ui.FgBrightBlack,
		span.ImageMarker:       ui.FgMagenta,
		span.AutolinkURL:       ui.Stylings(ui.Underlined, ui.FgGreen),
		span.HTMLInline:        ui.FgBrightBlack,
		span.EscapeSequence:    ui.FgMagenta,
		span.EntityRef:         ui.FgMagenta,
		span.HardBreak:         ui.Inverse,
	}
}

// LoadTheme reads a theme file: a YAML map from token type names, as
// produced by [span.TokenType.String], to stylings. A styling is either a
// string understood by [ui.ParseStyling], or a map of style options like
// {fg-color: red, bold: true}. The result starts from [DefaultTheme];
// entries in the file override it, and an empty string removes the styling
// for that token.
func LoadTheme(r io.Reader) (Theme, error) {
	var raw map[string]yaml.Node
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return DefaultTheme(), nil
		}
		return nil, fmt.Errorf("parse theme: %w", err)
	}
	theme := DefaultTheme()
	for name, node := range raw {
		t, ok := span.TokenTypeByName(name)
		if !ok {
			return nil, fmt.Errorf("theme: unknown token type %q", name)
		}
		styling, remove, err := parseStylingNode(node, name)
		if err != nil {
			return nil, err
		}
		if remove {
			delete(theme, t)
		} else {
			theme[t] = styling
		}
	}
	return theme, nil
}

func parseStylingNode(node yaml.Node, name string) (ui.Styling, bool, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		var spec string
		if err := node.Decode(&spec); err != nil {
			return nil, false, fmt.Errorf("theme: invalid value for %s: %v", name, err)
		}
		if spec == "" {
			return nil, true, nil
		}
		styling := ui.ParseStyling(spec)
		if styling == nil {
			return nil, false, fmt.Errorf("theme: invalid styling %q for %s", spec, name)
		}
		return styling, false, nil
	case yaml.MappingNode:
		var options map[string]any
		if err := node.Decode(&options); err != nil {
			return nil, false, fmt.Errorf("theme: invalid value for %s: %v", name, err)
		}
		var style ui.Style
		if err := style.MergeFromOptions(options); err != nil {
			return nil, false, fmt.Errorf("theme: %v for %s", err, name)
		}
		return stylingFromStyle(style), false, nil
	default:
		return nil, false, fmt.Errorf("theme: invalid value for %s", name)
	}
}

// stylingFromStyle converts a merged style back to an equivalent styling.
func stylingFromStyle(s ui.Style) ui.Styling {
	var ts []ui.Styling
	if s.Fg != nil {
		ts = append(ts, ui.Fg(s.Fg))
	}
	if s.Bg != nil {
		ts = append(ts, ui.Bg(s.Bg))
	}
	addIf := func(b bool, t ui.Styling) {
		if b {
			ts = append(ts, t)
		}
	}
	addIf(s.Bold, ui.Bold)
	addIf(s.Dim, ui.Dim)
	addIf(s.Italic, ui.Italic)
	addIf(s.Underlined, ui.Underlined)
	addIf(s.Blink, ui.Blink)
	addIf(s.Inverse, ui.Inverse)
	return ui.Stylings(ts...)
}
