package span

import "fmt"

// TokenType identifies the semantic construct a span covers. The set is
// closed: every span carries exactly one of the values below, and consumers
// like the highlighter can treat a switch over them as exhaustive.
type TokenType uint8

const (
	ThematicBreak TokenType = iota
	HeadingMarker
	HeadingText
	CodeFence
	CodeInfo
	CodeContent
	BlockQuoteMarker
	ListMarker
	HTMLBlock
	LinkLabel
	LinkDestination
	LinkTitle
	EmphasisMarker
	StrongMarker
	CodeSpanDelimiter
	CodeSpanContent
	LinkBracket
	LinkParen
	ImageMarker
	AutolinkURL
	HTMLInline
	EscapeSequence
	EntityRef
	HardBreak
	SoftBreak
	Text
)

// NumTokenTypes is the number of distinct TokenType values.
const NumTokenTypes = int(Text) + 1

var tokenNames = [NumTokenTypes]string{
	ThematicBreak:     "ThematicBreak",
	HeadingMarker:     "HeadingMarker",
	HeadingText:       "HeadingText",
	CodeFence:         "CodeFence",
	CodeInfo:          "CodeInfo",
	CodeContent:       "CodeContent",
	BlockQuoteMarker:  "BlockQuoteMarker",
	ListMarker:        "ListMarker",
	HTMLBlock:         "HTMLBlock",
	LinkLabel:         "LinkLabel",
	LinkDestination:   "LinkDestination",
	LinkTitle:         "LinkTitle",
	EmphasisMarker:    "EmphasisMarker",
	StrongMarker:      "StrongMarker",
	CodeSpanDelimiter: "CodeSpanDelimiter",
	CodeSpanContent:   "CodeSpanContent",
	LinkBracket:       "LinkBracket",
	LinkParen:         "LinkParen",
	ImageMarker:       "ImageMarker",
	AutolinkURL:       "AutolinkURL",
	HTMLInline:        "HTMLInline",
	EscapeSequence:    "EscapeSequence",
	EntityRef:         "EntityRef",
	HardBreak:         "HardBreak",
	SoftBreak:         "SoftBreak",
	Text:              "Text",
}

// String returns the name of the token type.
func (t TokenType) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// TokenTypeByName resolves a name produced by [TokenType.String] back to its
// value. Theme files refer to token types by these names.
func TokenTypeByName(name string) (TokenType, bool) {
	for t, n := range tokenNames {
		if n == name {
			return TokenType(t), true
		}
	}
	return 0, false
}
