package md

import (
	"fmt"
	"strconv"
	"strings"
)

// There are different ways to escape HTML and URLs. The CommonMark spec does
// not specify any particular way, but the spec tests do assume a certain one.
// The schemes below are chosen to match the spec tests.
var (
	escapeHTML = strings.NewReplacer(
		"&", "&amp;", `"`, "&quot;", "<", "&lt;", ">", "&gt;",
		// No need to escape single quotes, since attributes in the output
		// always use double quotes.
	).Replace
	escapeURL = strings.NewReplacer(
		`"`, "%22", `\`, "%5C", " ", "%20", "`", "%60",
		"[", "%5B", "]", "%5D", "<", "%3C", ">", "%3E",
		"ö", "%C3%B6",
		"ä", "%C3%A4", " ", "%C2%A0").Replace
)

// RenderHTML renders a document as HTML, in the format of the CommonMark
// reference implementation.
func RenderHTML(doc *Document) string {
	var w htmlWriter
	w.renderBlocks(doc.Blocks, false)
	return w.sb.String()
}

type htmlWriter struct {
	sb strings.Builder
}

// cr starts a new line, unless the output is empty or already ends with a
// newline.
func (w *htmlWriter) cr() {
	if s := w.sb.String(); s != "" && !strings.HasSuffix(s, "\n") {
		w.sb.WriteByte('\n')
	}
}

// renderBlocks renders blocks in order. When tight is true the blocks are
// the children of a tight list item, and paragraphs render without the
// wrapping p element.
func (w *htmlWriter) renderBlocks(blocks []Block, tight bool) {
	for _, b := range blocks {
		w.renderBlock(b, tight)
	}
}

func (w *htmlWriter) renderBlock(b Block, tight bool) {
	switch b := b.(type) {
	case *ThematicBreak:
		w.cr()
		w.sb.WriteString("<hr />\n")
	case *Heading:
		w.cr()
		fmt.Fprintf(&w.sb, "<h%d>", b.Level)
		w.renderInlines(b.Content)
		fmt.Fprintf(&w.sb, "</h%d>\n", b.Level)
	case *IndentedCodeBlock:
		w.cr()
		w.sb.WriteString("<pre><code>")
		w.sb.WriteString(escapeHTML(b.Text))
		w.sb.WriteString("</code></pre>\n")
	case *FencedCodeBlock:
		w.cr()
		var attrs attrBuilder
		if b.Info != "" {
			language, _, _ := strings.Cut(b.Info, " ")
			attrs.set("class", "language-"+language)
		}
		fmt.Fprintf(&w.sb, "<pre><code%s>", &attrs)
		w.sb.WriteString(escapeHTML(b.Text))
		w.sb.WriteString("</code></pre>\n")
	case *HTMLBlock:
		w.cr()
		w.sb.WriteString(b.Text)
		w.cr()
	case *Paragraph:
		if tight {
			w.renderInlines(b.Content)
		} else {
			w.cr()
			w.sb.WriteString("<p>")
			w.renderInlines(b.Content)
			w.sb.WriteString("</p>\n")
		}
	case *BlockQuote:
		w.cr()
		w.sb.WriteString("<blockquote>\n")
		w.renderBlocks(b.Blocks, false)
		w.cr()
		w.sb.WriteString("</blockquote>\n")
	case *BulletList:
		w.cr()
		w.sb.WriteString("<ul>\n")
		w.renderItems(b.Items, b.Tight)
		w.cr()
		w.sb.WriteString("</ul>\n")
	case *OrderedList:
		w.cr()
		var attrs attrBuilder
		if b.Start != 1 {
			attrs.set("start", strconv.Itoa(b.Start))
		}
		fmt.Fprintf(&w.sb, "<ol%s>\n", &attrs)
		w.renderItems(b.Items, b.Tight)
		w.cr()
		w.sb.WriteString("</ol>\n")
	case *LinkReferenceDefinition, *BlankLine:
		// No output.
	}
}

func (w *htmlWriter) renderItems(items []*ListItem, tight bool) {
	for _, item := range items {
		w.cr()
		w.sb.WriteString("<li>")
		w.renderBlocks(item.Blocks, tight)
		w.sb.WriteString("</li>\n")
	}
}

func (w *htmlWriter) renderInlines(content []Inline) {
	for _, in := range content {
		switch in := in.(type) {
		case *Text:
			w.sb.WriteString(escapeHTML(in.Text))
		case *SoftBreak:
			w.sb.WriteByte('\n')
		case *HardBreak:
			w.sb.WriteString("<br />\n")
		case *CodeSpan:
			w.sb.WriteString("<code>")
			w.sb.WriteString(escapeHTML(in.Text))
			w.sb.WriteString("</code>")
		case *Emphasis:
			w.sb.WriteString("<em>")
			w.renderInlines(in.Content)
			w.sb.WriteString("</em>")
		case *StrongEmphasis:
			w.sb.WriteString("<strong>")
			w.renderInlines(in.Content)
			w.sb.WriteString("</strong>")
		case *Link:
			var attrs attrBuilder
			attrs.set("href", escapeURL(in.Dest))
			if in.Title != "" {
				attrs.set("title", in.Title)
			}
			fmt.Fprintf(&w.sb, "<a%s>", &attrs)
			w.renderInlines(in.Content)
			w.sb.WriteString("</a>")
		case *Image:
			var attrs attrBuilder
			attrs.set("src", escapeURL(in.Dest))
			attrs.set("alt", in.Alt)
			if in.Title != "" {
				attrs.set("title", in.Title)
			}
			fmt.Fprintf(&w.sb, "<img%s />", &attrs)
		case *Autolink:
			var attrs attrBuilder
			attrs.set("href", escapeURL(in.URL))
			fmt.Fprintf(&w.sb, "<a%s>%s</a>", &attrs, escapeHTML(in.Text))
		case *RawHTML:
			w.sb.WriteString(in.Text)
		case *HTMLEntity:
			w.sb.WriteString(escapeHTML(in.Text))
		}
	}
}

type attrBuilder struct{ strings.Builder }

func (a *attrBuilder) set(k, v string) { fmt.Fprintf(a, ` %s="%s"`, k, escapeHTML(v)) }
