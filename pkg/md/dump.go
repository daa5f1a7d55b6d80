package md

import (
	"fmt"
	"strings"
)

// Dump renders the tree of a document in an indented one-node-per-line
// format, for debugging and for tests. Source ranges are omitted so that the
// output is stable under whitespace-only edits.
func Dump(doc *Document) string {
	var sb strings.Builder
	sb.WriteString("document\n")
	dumpBlocks(&sb, doc.Blocks, 1)
	return sb.String()
}

func dumpBlocks(sb *strings.Builder, blocks []Block, indent int) {
	for _, b := range blocks {
		dumpBlock(sb, b, indent)
	}
}

func dumpBlock(sb *strings.Builder, b Block, indent int) {
	writeIndent(sb, indent)
	switch b := b.(type) {
	case *ThematicBreak:
		sb.WriteString("thematic-break\n")
	case *Heading:
		fmt.Fprintf(sb, "heading level=%d\n", b.Level)
		dumpInlines(sb, b.Content, indent+1)
	case *IndentedCodeBlock:
		fmt.Fprintf(sb, "indented-code %q\n", b.Text)
	case *FencedCodeBlock:
		fmt.Fprintf(sb, "fenced-code info=%q %q\n", b.Info, b.Text)
	case *HTMLBlock:
		fmt.Fprintf(sb, "html-block %q\n", b.Text)
	case *LinkReferenceDefinition:
		fmt.Fprintf(sb, "link-reference-definition label=%q dest=%q", b.Label, b.Dest)
		if b.Title != "" {
			fmt.Fprintf(sb, " title=%q", b.Title)
		}
		sb.WriteByte('\n')
	case *Paragraph:
		sb.WriteString("paragraph\n")
		dumpInlines(sb, b.Content, indent+1)
	case *BlankLine:
		sb.WriteString("blank-line\n")
	case *BlockQuote:
		sb.WriteString("block-quote\n")
		dumpBlocks(sb, b.Blocks, indent+1)
	case *ListItem:
		sb.WriteString("item\n")
		dumpBlocks(sb, b.Blocks, indent+1)
	case *BulletList:
		fmt.Fprintf(sb, "bullet-list marker=%q %s\n", b.Marker, tightness(b.Tight))
		for _, item := range b.Items {
			dumpBlock(sb, item, indent+1)
		}
	case *OrderedList:
		fmt.Fprintf(sb, "ordered-list start=%d delim=%q %s\n", b.Start, b.Delim, tightness(b.Tight))
		for _, item := range b.Items {
			dumpBlock(sb, item, indent+1)
		}
	}
}

func dumpInlines(sb *strings.Builder, content []Inline, indent int) {
	for _, in := range content {
		writeIndent(sb, indent)
		switch in := in.(type) {
		case *Text:
			fmt.Fprintf(sb, "text %q\n", in.Text)
		case *SoftBreak:
			sb.WriteString("soft-break\n")
		case *HardBreak:
			sb.WriteString("hard-break\n")
		case *CodeSpan:
			fmt.Fprintf(sb, "code-span %q\n", in.Text)
		case *Emphasis:
			sb.WriteString("emphasis\n")
			dumpInlines(sb, in.Content, indent+1)
		case *StrongEmphasis:
			sb.WriteString("strong-emphasis\n")
			dumpInlines(sb, in.Content, indent+1)
		case *Link:
			fmt.Fprintf(sb, "link dest=%q", in.Dest)
			if in.Title != "" {
				fmt.Fprintf(sb, " title=%q", in.Title)
			}
			sb.WriteByte('\n')
			dumpInlines(sb, in.Content, indent+1)
		case *Image:
			fmt.Fprintf(sb, "image dest=%q alt=%q", in.Dest, in.Alt)
			if in.Title != "" {
				fmt.Fprintf(sb, " title=%q", in.Title)
			}
			sb.WriteByte('\n')
		case *Autolink:
			fmt.Fprintf(sb, "autolink text=%q url=%q\n", in.Text, in.URL)
		case *RawHTML:
			fmt.Fprintf(sb, "raw-html %q\n", in.Text)
		case *HTMLEntity:
			fmt.Fprintf(sb, "html-entity %q\n", in.Text)
		}
	}
}

func tightness(tight bool) string {
	if tight {
		return "tight"
	}
	return "loose"
}

func writeIndent(sb *strings.Builder, indent int) {
	for i := 0; i < indent; i++ {
		sb.WriteString("  ")
	}
}
