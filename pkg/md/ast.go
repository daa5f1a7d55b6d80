package md

import "parsek.dev/pkg/diag"

// Document is the result of a parse: the top-level blocks in order, plus the
// link-reference table collected along the way. Any input produces a valid
// Document; parsing never fails.
type Document struct {
	Blocks []Block
	Refs   RefMap
}

// RefMap maps normalized link labels to their definitions. When a label is
// defined more than once, the map holds the first definition.
type RefMap map[string]*LinkReferenceDefinition

// Block is a structural node: either a leaf carrying literal or inline
// content, or a container of other blocks. It is one of *ThematicBreak,
// *Heading, *IndentedCodeBlock, *FencedCodeBlock, *HTMLBlock,
// *LinkReferenceDefinition, *Paragraph, *BlankLine, *BlockQuote, *ListItem,
// *BulletList or *OrderedList. Every block carries the source range it was
// parsed from.
type Block interface {
	diag.Ranger
	block()
}

// ThematicBreak is a horizontal rule.
type ThematicBreak struct {
	diag.Ranging
}

// Heading is an ATX or setext heading. Level ranges from 1 to 6.
type Heading struct {
	diag.Ranging
	Level   int
	Content []Inline
}

// IndentedCodeBlock is a code block formed by 4-space indentation. Text
// keeps interior newlines and ends with one.
type IndentedCodeBlock struct {
	diag.Ranging
	Text string
}

// FencedCodeBlock is a code block delimited by backtick or tilde fences.
// Info is the trimmed info string, empty if absent.
type FencedCodeBlock struct {
	diag.Ranging
	Info string
	Text string
}

// HTMLBlock is a raw HTML block, kept verbatim line by line.
type HTMLBlock struct {
	diag.Ranging
	Text string
}

// LinkReferenceDefinition maps a label to a destination and optional title.
// Label is stored normalized (case-folded, whitespace collapsed); Dest and
// Title have backslash escapes and entities resolved.
type LinkReferenceDefinition struct {
	diag.Ranging
	Label string
	Dest  string
	Title string
}

// Paragraph is a leaf block of inline content.
type Paragraph struct {
	diag.Ranging
	Content []Inline
}

// BlankLine marks a blank line between blocks. It carries no content but
// determines list tightness, so the tree keeps it.
type BlankLine struct {
	diag.Ranging
}

// BlockQuote is a container introduced by > markers.
type BlockQuote struct {
	diag.Ranging
	Blocks []Block
}

// ListItem is one item of a bullet or ordered list.
type ListItem struct {
	diag.Ranging
	Blocks []Block
}

// BulletList is a list with -, + or * markers. Tight reports that no blank
// line separates any two items or any two blocks within an item.
type BulletList struct {
	diag.Ranging
	Tight  bool
	Marker byte
	Items  []*ListItem
}

// OrderedList is a list with numbered markers. Start is the number of the
// first item; Delim is '.' or ')'.
type OrderedList struct {
	diag.Ranging
	Tight bool
	Start int
	Delim byte
	Items []*ListItem
}

func (*ThematicBreak) block()           {}
func (*Heading) block()                 {}
func (*IndentedCodeBlock) block()       {}
func (*FencedCodeBlock) block()         {}
func (*HTMLBlock) block()               {}
func (*LinkReferenceDefinition) block() {}
func (*Paragraph) block()               {}
func (*BlankLine) block()               {}
func (*BlockQuote) block()              {}
func (*ListItem) block()                {}
func (*BulletList) block()              {}
func (*OrderedList) block()             {}

// Inline is a node of paragraph or heading content. It is one of *Text,
// *SoftBreak, *HardBreak, *CodeSpan, *Emphasis, *StrongEmphasis, *Link,
// *Image, *Autolink, *RawHTML or *HTMLEntity.
type Inline interface {
	inline()
}

// Text is a run of literal text with backslash escapes resolved.
type Text struct {
	Text string
}

// SoftBreak is a line break rendered as whitespace.
type SoftBreak struct{}

// HardBreak is a forced line break, written as two trailing spaces or a
// backslash before the newline.
type HardBreak struct{}

// CodeSpan is inline code. Text is the normalized content: newlines become
// spaces, and one leading and trailing space is dropped when both are
// present.
type CodeSpan struct {
	Text string
}

// Emphasis wraps inline content in single emphasis.
type Emphasis struct {
	Content []Inline
}

// StrongEmphasis wraps inline content in strong emphasis.
type StrongEmphasis struct {
	Content []Inline
}

// Link is a hyperlink around inline content. Title is empty if absent.
type Link struct {
	Dest    string
	Title   string
	Content []Inline
}

// Image is an image reference. Alt is the bracketed content flattened to
// plain text, since alt text carries no structure.
type Image struct {
	Dest  string
	Title string
	Alt   string
}

// Autolink is a URL or email address in angle brackets. Text is the address
// as written; URL is the link destination, which for email autolinks has a
// mailto: prefix.
type Autolink struct {
	Text string
	URL  string
}

// RawHTML is an inline HTML construct kept verbatim.
type RawHTML struct {
	Text string
}

// HTMLEntity is a character or numeric entity reference. Text holds the
// decoded character(s).
type HTMLEntity struct {
	Text string
}

func (*Text) inline()           {}
func (*SoftBreak) inline()      {}
func (*HardBreak) inline()      {}
func (*CodeSpan) inline()       {}
func (*Emphasis) inline()       {}
func (*StrongEmphasis) inline() {}
func (*Link) inline()           {}
func (*Image) inline()          {}
func (*Autolink) inline()       {}
func (*RawHTML) inline()        {}
func (*HTMLEntity) inline()     {}
