package md

import (
	"html"
	"strings"

	"golang.org/x/text/cases"

	"parsek.dev/pkg/comb"
	"parsek.dev/pkg/diag"
	"parsek.dev/pkg/span"
)

// NormalizeLabel normalizes a link label for matching: leading and trailing
// whitespace is dropped, runs of internal whitespace collapse to a single
// space, and letters are Unicode case folded.
func NormalizeLabel(label string) string {
	return cases.Fold().String(strings.Join(strings.Fields(label), " "))
}

// linkTail is the "(dest "title")" part of an inline link or image.
type linkTail struct {
	dest  string
	title string
}

var (
	linkParenOpen  = span.Tag(span.LinkParen, comb.Char('('))
	linkParenClose = span.Tag(span.LinkParen, comb.Char(')'))

	linkDestParser  = span.Tag(span.LinkDestination, comb.Parser[string](parseLinkDest))
	linkTitleParser = span.Tag(span.LinkTitle, comb.Parser[string](parseLinkTitle))

	linkWS = comb.TakeWhile(func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\r' || r == '\n'
	})

	// linkTailParser parses the destination and optional title of an inline
	// link, including the enclosing parens. Both parts are optional; "()" is
	// a valid tail with an empty destination.
	linkTailParser = comb.Label(comb.Seq3(
		spaced(linkParenOpen),
		comb.Opt(spaced(linkDestParser)),
		comb.Seq2(comb.Opt(spaced(linkTitleParser)), linkParenClose,
			func(title string, _ rune) string { return title }),
		func(_ rune, dest, title string) linkTail { return linkTail{dest, title} },
	), "expected link tail")
)

// spaced consumes the whitespace allowed after each part of a link tail.
func spaced[T any](p comb.Parser[T]) comb.Parser[T] {
	return comb.Seq2(p, linkWS, func(v T, _ string) T { return v })
}

// linkLabelParser parses "[label]". The label may span lines, contains at
// most 999 bytes at least one of which is non-whitespace, and may use
// backslash escapes; an unescaped [ fails it. The value is the raw text
// between the brackets.
func linkLabelParser(c comb.Cursor) comb.Result[string] {
	s := c.Rest()
	if !strings.HasPrefix(s, "[") {
		return comb.Fail[string](c, "expected link label")
	}
	i := 1
	hasContent := false
	for {
		if i >= len(s) || i > 1000 {
			return comb.Fail[string](c, "unterminated link label")
		}
		if s[i] == ']' {
			break
		}
		switch s[i] {
		case '[':
			return comb.Fail[string](c, "unexpected [ in link label")
		case '\\':
			var lit byte
			lit, i = parseBackslash(s, i)
			if !isWhitespace(lit) {
				hasContent = true
			}
		default:
			if !isWhitespace(s[i]) {
				hasContent = true
			}
			i++
		}
	}
	if !hasContent {
		return comb.Fail[string](c, "empty link label")
	}
	if sink := span.FromContext(c); sink != nil {
		from := c.Pos()
		sink.Add(span.Span{Type: span.LinkBracket, Ranging: diag.Ranging{From: from, To: from + 1}})
		sink.Add(span.Span{Type: span.LinkLabel, Ranging: diag.Ranging{From: from + 1, To: from + i}})
		sink.Add(span.Span{Type: span.LinkBracket, Ranging: diag.Ranging{From: from + i, To: from + i + 1}})
	}
	return comb.Ok(s[1:i], c.At(c.Pos()+i+1))
}

// parseLinkDest parses a link destination: either <...> with no newlines or
// unescaped angle brackets inside, or a bare destination that is nonempty,
// has balanced parens and stops before whitespace or control characters.
// Backslash escapes and entities are resolved in the returned value.
func parseLinkDest(c comb.Cursor) comb.Result[string] {
	s := c.Rest()
	var b strings.Builder
	if strings.HasPrefix(s, "<") {
		i := 1
		for i < len(s) {
			switch s[i] {
			case '>':
				return comb.Ok(html.UnescapeString(b.String()), c.At(c.Pos()+i+1))
			case '\n', '<':
				return comb.Fail[string](c, "expected link destination")
			case '\\':
				var lit byte
				lit, i = parseBackslash(s, i)
				b.WriteByte(lit)
			default:
				b.WriteByte(s[i])
				i++
			}
		}
		return comb.Fail[string](c, "expected link destination")
	}
	parenBalance := 0
	i := 0
bare:
	for i < len(s) {
		if isASCIIControl(s[i]) || s[i] == ' ' {
			break
		}
		switch s[i] {
		case '(':
			parenBalance++
			b.WriteByte('(')
			i++
		case ')':
			if parenBalance == 0 {
				break bare
			}
			parenBalance--
			b.WriteByte(')')
			i++
		case '\\':
			var lit byte
			lit, i = parseBackslash(s, i)
			b.WriteByte(lit)
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	if parenBalance != 0 || i == 0 {
		return comb.Fail[string](c, "expected link destination")
	}
	return comb.Ok(html.UnescapeString(b.String()), c.At(c.Pos()+i))
}

// parseLinkTitle parses a link title delimited by double quotes, single
// quotes or parens. A paren title cannot contain an unescaped opening paren.
// Backslash escapes and entities are resolved in the returned value.
func parseLinkTitle(c comb.Cursor) comb.Result[string] {
	s := c.Rest()
	if s == "" || !strings.ContainsRune(`'"(`, rune(s[0])) {
		return comb.Fail[string](c, "expected link title")
	}
	opener := s[0]
	closer := opener
	if closer == '(' {
		closer = ')'
	}
	var b strings.Builder
	i := 1
	for i < len(s) {
		switch s[i] {
		case closer:
			return comb.Ok(html.UnescapeString(b.String()), c.At(c.Pos()+i+1))
		case opener:
			return comb.Fail[string](c, "unexpected nested title")
		case '\\':
			var lit byte
			lit, i = parseBackslash(s, i)
			b.WriteByte(lit)
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return comb.Fail[string](c, "unterminated link title")
}

// refDef is a parsed link reference definition. The label is raw, not yet
// normalized; end is the position just past the last non-whitespace byte of
// the definition.
type refDef struct {
	label string
	dest  string
	title string
	end   int
}

// refDefParser parses one link reference definition starting at a line
// boundary, stopping just before the terminating newline. A definition with
// a title must have nothing else on the title's last line; when that fails,
// the caller retries without the title, which then must end the
// destination's line instead.
func refDefParser(withTitle bool) comb.Parser[refDef] {
	return func(c comb.Cursor) comb.Result[refDef] {
		cur := c
		rest := cur.Rest()
		lead := 0
		for lead < len(rest) && lead < 3 && rest[lead] == ' ' {
			lead++
		}
		cur = cur.At(cur.Pos() + lead)
		lr := linkLabelParser(cur)
		if !lr.OK() {
			return comb.Fail[refDef](c, "expected link label")
		}
		cur = lr.Next
		if !strings.HasPrefix(cur.Rest(), ":") {
			return comb.Fail[refDef](c, "expected :")
		}
		cur = skipRefWS(cur.At(cur.Pos() + 1))
		dr := linkDestParser(cur)
		if !dr.OK() {
			return comb.Fail[refDef](c, "expected link destination")
		}
		cur = dr.Next
		def := refDef{label: lr.Value, dest: dr.Value, end: cur.Pos()}
		if withTitle {
			tr := linkTitleParser(skipRefWS(cur))
			if !tr.OK() {
				return comb.Fail[refDef](c, "expected link title")
			}
			def.title = tr.Value
			cur = tr.Next
			def.end = cur.Pos()
		}
		cur = skipLineWS(cur)
		if !cur.EOF() && !strings.HasPrefix(cur.Rest(), "\n") {
			return comb.Fail[refDef](c, "expected line end")
		}
		return comb.Ok(def, cur)
	}
}

// parseRefDefAt parses a link reference definition at pos in text, trying
// the form with a title first. It returns the definition, the position after
// its terminating newline, and the source spans recorded during the parse
// (empty unless tagged). Each attempt uses its own sink, so spans from a
// failed attempt are never seen.
func parseRefDefAt(text string, pos int, tagged bool) (refDef, int, []span.Span, bool) {
	if def, next, spans, ok := tryRefDef(text, pos, tagged, true); ok {
		return def, next, spans, ok
	}
	return tryRefDef(text, pos, tagged, false)
}

func tryRefDef(text string, pos int, tagged, withTitle bool) (refDef, int, []span.Span, bool) {
	var sink *span.Sink
	var c comb.Cursor
	if tagged {
		sink = &span.Sink{}
		c = comb.NewWithContext(text, sink)
	} else {
		c = comb.New(text)
	}
	r := refDefParser(withTitle)(c.At(pos))
	if !r.OK() {
		return refDef{}, 0, nil, false
	}
	next := r.Next.Pos()
	if next < len(text) && text[next] == '\n' {
		next++
	}
	var spans []span.Span
	if sink != nil {
		spans = sink.Spans()
	}
	return r.Value, next, spans, true
}

func skipLineWS(c comb.Cursor) comb.Cursor {
	rest := c.Rest()
	i := 0
	for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t') {
		i++
	}
	return c.At(c.Pos() + i)
}

// Skips spaces and tabs around at most one newline, the whitespace allowed
// between the parts of a reference definition.
func skipRefWS(c comb.Cursor) comb.Cursor {
	c = skipLineWS(c)
	if strings.HasPrefix(c.Rest(), "\n") {
		c = skipLineWS(c.At(c.Pos() + 1))
	}
	return c
}

// Resolves a backslash escape at s[i], returning the literal byte and the
// index after the escape. A backslash not followed by ASCII punctuation is
// itself literal.
func parseBackslash(s string, i int) (byte, int) {
	if i+1 < len(s) && isASCIIPunct[s[i+1]] {
		return s[i+1], i + 2
	}
	return '\\', i + 1
}
