// Package md implements a CommonMark parser.
//
// Parsing is total: every input, including the empty string, yields a
// document tree, and malformed constructs degrade to literal text instead of
// failing. The parser runs in two passes. The block pass splits the source
// into lines and maintains a stack of open containers, matching each line
// against the continuation markers of the open blocks before dispatching on
// what remains. The inline pass then resolves emphasis, links, code spans and
// the other inline constructs inside each paragraph and heading, with access
// to the complete link reference table collected by the block pass.
//
// The grammar fragments with recursive structure (link destinations, titles,
// labels and reference definitions) are expressed as [comb.Parser] values, so
// [Parser] composes with other parsers over the same input. When the cursor
// carries a [span.Sink], every recognized construct also records the source
// range of its syntactic markers, which is what the highlighter consumes.
//
// The implementation targets the HEAD of the CommonMark spec in
// https://github.com/commonmark/commonmark-spec, which may differ slightly
// from the latest released version of the spec.
package md

import (
	"regexp"
	"strings"

	"parsek.dev/pkg/comb"
	"parsek.dev/pkg/diag"
	"parsek.dev/pkg/span"
)

// Parse parses src as CommonMark and returns the document tree.
func Parse(src string) *Document { return ParseTagged(src, nil) }

// ParseTagged is like [Parse], but also records the source range of each
// recognized construct into sink. Spans are appended as constructs are
// recognized, which is not source order: inline content is resolved only
// once the whole document has been read, so its spans come last. Consumers
// that need positional order sort the sink.
func ParseTagged(src string, sink *span.Sink) *Document {
	return Parser()(comb.NewWithContext(src, sink)).Value
}

// Parser returns the document parser as an ordinary combinator parser. It
// consumes the rest of the input and always succeeds. The span sink, if any,
// is taken from the cursor context.
func Parser() comb.Parser[*Document] {
	return func(c comb.Cursor) comb.Result[*Document] {
		p := blockParser{
			lines: lineSplitter{text: c.Src(), pos: c.Pos()},
			sink:  span.FromContext(c),
			doc:   &Document{Refs: RefMap{}},
		}
		p.parse()
		return comb.Ok(p.doc, c.At(len(c.Src())))
	}
}

// inlineJob is a deferred inline parse. Inline content is resolved after the
// block pass finishes so that link reference definitions later in the
// document are already known.
type inlineJob struct {
	text string
	sm   srcMap
	dst  *[]Inline
}

type blockParser struct {
	lines      lineSplitter
	sink       *span.Sink
	doc        *Document
	containers []*container
	paragraph  []string
	paraRanges []diag.Ranging
	jobs       []inlineJob
}

var (
	thematicBreakRegexp = regexp.MustCompile(
		`^ {0,3}((?:-[ \t]*){3,}|(?:_[ \t]*){3,}|(?:\*[ \t]*){3,})$`)

	// Capture group 1: heading opener
	atxHeadingRegexp = regexp.MustCompile(`^ {0,3}(#{1,6})(?:[ \t]|$)`)
	// Capture group 1: heading closer
	atxHeadingCloserRegexp = regexp.MustCompile(`[ \t](#+)[ \t]*$`)

	// Capture group 1: underline punctuations
	setextUnderlineRegexp = regexp.MustCompile(`^ {0,3}(=+|-+)[ \t]*$`)

	indentedCodeRegexp = regexp.MustCompile(`^(?: {4}|\t)`)

	// Capture groups:
	// 1. Indent
	// 2. Fence punctuations (backquote fence)
	// 3. Untrimmed info string (backquote fence)
	// 4. Fence punctuations (tilde fence)
	// 5. Untrimmed info string (tilde fence)
	codeFenceRegexp = regexp.MustCompile("(^ {0,3})(?:(`{3,})([^`]*)|(~{3,})(.*))$")
	// Capture group 1: fence punctuations
	codeFenceCloserRegexp = regexp.MustCompile("(?:^ {0,3})(`{3,}|~{3,})[ \t]*$")

	html1Regexp       = regexp.MustCompile(`^ {0,3}<(?i:pre|script|style|textarea)`)
	html1CloserRegexp = regexp.MustCompile(`</(?i:pre|script|style|textarea)`)
	html2Regexp       = regexp.MustCompile(`^ {0,3}<!--`)
	html2CloserRegexp = regexp.MustCompile(`-->`)
	html3Regexp       = regexp.MustCompile(`^ {0,3}<\?`)
	html3CloserRegexp = regexp.MustCompile(`\?>`)
	html4Regexp       = regexp.MustCompile(`^ {0,3}<![a-zA-Z]`)
	html4CloserRegexp = regexp.MustCompile(`>`)
	html5Regexp       = regexp.MustCompile(`^ {0,3}<!\[CDATA\[`)
	html5CloserRegexp = regexp.MustCompile(`\]\]>`)

	html6Regexp = regexp.MustCompile(`^ {0,3}</?(?i:address|article|aside|base|basefont|blockquote|body|caption|center|col|colgroup|dd|details|dialog|dir|div|dl|dt|fieldset|figcaption|figure|footer|form|frame|frameset|h1|h2|h3|h4|h5|h6|head|header|hr|html|iframe|legend|li|link|main|menu|menuitem|nav|noframes|ol|optgroup|option|p|param|section|source|summary|table|tbody|td|tfoot|th|thead|title|tr|track|ul)(?:[ \t>]|$|/>)`)
	html7Regexp = regexp.MustCompile(`^ {0,3}(?:` + openTag + `|` + closingTag + `)[ \t]*$`)
)

const (
	openTag = `<` +
		`[a-zA-Z][a-zA-Z0-9-]*` + // tag name
		(`(?:` +
			`[ \t\n]+` + // whitespace
			`[a-zA-Z_:][a-zA-Z0-9_\.:-]*` + // attribute name
			`(?:[ \t\n]*=[ \t\n]*(?:[^ \t\n"'=<>` + "`" + `]+|'[^']*'|"[^"]*"))?` + // attribute value specification
			`)*`) + // zero or more attributes
		`[ \t\n]*` + // whitespace
		`/?>`
	closingTag = `</[a-zA-Z][a-zA-Z0-9-]*[ \t\n]*>`
)

func (p *blockParser) parse() {
	for p.lines.more() {
		line, lineStart := p.lines.next()
		lineEnd := lineStart + len(line)
		line, matchedContainers, marks := matchContinuationMarkers(line, lineStart, p.containers)
		newParagraph := matchedContainers != len(p.containers) || len(p.paragraph) == 0
		line, newContainers := parseStartingMarkers(line, lineEnd-len(line), newParagraph)
		contentStart := lineEnd - len(line)
		p.tagMarks(marks)
		if len(newContainers) > 0 {
			p.popParagraph(matchedContainers)
			for _, c := range newContainers {
				p.appendContainer(c)
			}
			matchedContainers = len(p.containers)
		}

		if isBlankLine(line) {
			for i := matchedContainers; i < len(p.containers); i++ {
				if p.containers[i].typ == blockquote {
					p.popParagraph(i)
					p.popList()
					continue
				}
			}
			if len(newContainers) == 0 && len(p.paragraph) == 0 &&
				(p.lastContainerIs(bulletItem) || p.lastContainerIs(orderedItem)) {
				if p.containers[len(p.containers)-1].blankFirst {
					p.popLastContainer()
				}
			}
			p.popParagraph(len(p.containers))
			if len(newContainers) == 0 {
				p.appendBlock(&BlankLine{diag.Ranging{From: lineStart, To: lineEnd}})
			}
		} else if p.parseSetextHeading(line, matchedContainers, len(newContainers), contentStart) {
			// Line consumed as a setext heading underline.
		} else if m := thematicBreakRegexp.FindStringSubmatchIndex(line); m != nil {
			p.popParagraph(matchedContainers)
			p.popList()
			from := contentStart + m[2]
			to := contentStart + m[2] + len(strings.TrimRight(line[m[2]:m[3]], " \t"))
			p.tag(span.ThematicBreak, from, to)
			p.appendBlock(&ThematicBreak{diag.Ranging{From: from, To: to}})
		} else if m := atxHeadingRegexp.FindStringSubmatchIndex(line); m != nil {
			p.popParagraph(matchedContainers)
			p.popList()
			p.parseATXHeading(line, m, contentStart)
		} else if m := codeFenceRegexp.FindStringSubmatchIndex(line); m != nil {
			p.popParagraph(matchedContainers)
			p.popList()
			p.parseFencedCodeBlock(line, m, contentStart, lineEnd)
		} else if html1Regexp.MatchString(line) {
			p.popParagraph(matchedContainers)
			p.popList()
			p.parseHTMLBlock(line, contentStart, lineEnd, html1CloserRegexp.MatchString)
		} else if html2Regexp.MatchString(line) {
			p.popParagraph(matchedContainers)
			p.popList()
			p.parseHTMLBlock(line, contentStart, lineEnd, html2CloserRegexp.MatchString)
		} else if html3Regexp.MatchString(line) {
			p.popParagraph(matchedContainers)
			p.popList()
			p.parseHTMLBlock(line, contentStart, lineEnd, html3CloserRegexp.MatchString)
		} else if html4Regexp.MatchString(line) {
			p.popParagraph(matchedContainers)
			p.popList()
			p.parseHTMLBlock(line, contentStart, lineEnd, html4CloserRegexp.MatchString)
		} else if html5Regexp.MatchString(line) {
			p.popParagraph(matchedContainers)
			p.popList()
			p.parseHTMLBlock(line, contentStart, lineEnd, html5CloserRegexp.MatchString)
		} else if html6Regexp.MatchString(line) || (newParagraph && html7Regexp.MatchString(line)) {
			p.popParagraph(matchedContainers)
			p.popList()
			p.parseBlankLineTerminatedHTMLBlock(line, contentStart, lineEnd)
		} else if len(p.paragraph) == 0 && indentedCodeRegexp.MatchString(line) {
			p.popParagraph(matchedContainers)
			p.popList()
			p.parseIndentedCodeBlock(line, contentStart, lineEnd)
		} else {
			if len(p.paragraph) == 0 {
				p.popParagraph(matchedContainers)
				p.popList()
			}
			p.addParagraphLine(line, contentStart)
		}
	}
	p.popParagraph(0)
	for _, job := range p.jobs {
		*job.dst = parseInlines(job.text, job.sm, p.sink, p.doc.Refs)
	}
}

// Matches the continuation markers of existing container nodes. Returns the
// line after removing all matched continuation markers, the number of
// containers matched, and the source ranges of the matched blockquote
// markers.
func matchContinuationMarkers(line string, lineStart int, containers []*container) (string, int, []diag.Ranging) {
	var marks []diag.Ranging
	removed := 0
	for i, container := range containers {
		markerLen, matched := container.findContinuationMarker(line)
		if !matched {
			return line, i, marks
		}
		if container.typ == blockquote {
			gt := lineStart + removed + strings.IndexByte(line[:markerLen], '>')
			marks = append(marks, diag.Ranging{From: gt, To: gt + 1})
		}
		line = line[markerLen:]
		removed += markerLen
	}
	return line, len(containers), marks
}

var (
	containerStartingMarkerRegexp = regexp.MustCompile(
		// Capture groups:
		// 1. blockquote marker
		// 2. bullet item punctuation
		// 3. ordered item start index
		// 4. ordered item punctuation
		`^ {0,3}(?:(> ?)|([-+*]) {1,4}|([0-9]{1,9})([.)]) {1,4})`)
	itemStartingMarkerBlankLineRegexp = regexp.MustCompile(
		// Capture groups are the same, with group 1 always empty.
		`^ {0,3}(?:()([-+*])|([0-9]{1,9})([.)]))[ \t]*$`)

	// The start number of an ordered list marker. The classifier regexps
	// above cap the number at nine digits, so it always fits in an int.
	orderedMarkerParser = comb.Seq2(comb.Int(), comb.AnyOf(".)"),
		func(n int, _ rune) int { return n })
)

// Parses starting markers of container blocks. Returns the line after
// removing all starting markers and new containers to create. Each new
// container records the source range of its marker punctuation.
func parseStartingMarkers(line string, lineStart int, newParagraph bool) (string, []*container) {
	var containers []*container
	// Don't parse thematic breaks like "- - - " as three bullets.
	for !thematicBreakRegexp.MatchString(line) {
		m := containerStartingMarkerRegexp.FindStringSubmatchIndex(line)
		blankFirst := false
		if m == nil && newParagraph {
			m = itemStartingMarkerBlankLineRegexp.FindStringSubmatchIndex(line)
			blankFirst = true
		}
		if m == nil {
			break
		}
		markerEnd := m[1]
		c := &container{from: lineStart, to: lineStart + markerEnd}
		if m[4] >= 0 {
			c.typ = bulletItem
			c.punct = line[m[4]]
			c.marker = diag.Ranging{From: lineStart + m[4], To: lineStart + m[5]}
		} else if m[6] >= 0 {
			c.typ = orderedItem
			c.punct = line[m[8]]
			c.start = orderedMarkerParser(comb.New(line).At(m[6])).Value
			if c.start != 1 && !newParagraph {
				break
			}
			c.marker = diag.Ranging{From: lineStart + m[6], To: lineStart + m[9]}
		} else {
			c.typ = blockquote
			gt := lineStart + strings.IndexByte(line[:markerEnd], '>')
			c.marker = diag.Ranging{From: gt, To: gt + 1}
		}
		if c.typ != blockquote {
			indent := markerEnd
			if strings.Trim(line[markerEnd:], " \t") == "" {
				indent = len(strings.TrimRight(line[:markerEnd], " \t")) + 1
			}
			c.indent = strings.Repeat(" ", indent)
			c.blankFirst = blankFirst
		}
		line = line[markerEnd:]
		lineStart += markerEnd
		containers = append(containers, c)
	}
	return line, containers
}

func isBlankLine(line string) bool {
	return strings.Trim(line, " \t") == ""
}

// Parses the rest of a setext heading, where line is a candidate underline.
// The underline only counts when it directly continues an open paragraph in
// the innermost container; returns false to let the line match the other
// leaf blocks instead. Reference definitions at the start of the paragraph
// are extracted first; if they leave no residual text the underline is not a
// heading either, and the line falls through with the paragraph cleared.
func (p *blockParser) parseSetextHeading(line string, matchedContainers, newContainers, contentStart int) bool {
	if len(p.paragraph) == 0 || matchedContainers != len(p.containers) || newContainers != 0 {
		return false
	}
	m := setextUnderlineRegexp.FindStringSubmatchIndex(line)
	if m == nil {
		return false
	}
	lines := append([]string(nil), p.paragraph...)
	ranges := append([]diag.Ranging(nil), p.paraRanges...)
	p.paragraph = p.paragraph[:0]
	p.paraRanges = p.paraRanges[:0]
	lines, ranges = p.extractRefDefs(lines, ranges)
	if len(lines) == 0 {
		return false
	}
	level := 1
	if line[m[2]] == '-' {
		level = 2
	}
	text, sm := joinLines(lines, ranges)
	bounds := sm.bounds()
	p.tag(span.HeadingText, bounds.From, bounds.To)
	p.tag(span.HeadingMarker, contentStart+m[2], contentStart+m[3])
	h := &Heading{
		Ranging: diag.Ranging{From: bounds.From, To: contentStart + m[3]},
		Level:   level,
	}
	p.appendBlock(h)
	p.jobs = append(p.jobs, inlineJob{text, sm, &h.Content})
	return true
}

func (p *blockParser) parseATXHeading(line string, m []int, contentStart int) {
	opener := line[m[2]:m[3]]
	p.tag(span.HeadingMarker, contentStart+m[2], contentStart+m[3])
	rest := strings.TrimRight(line[m[3]:], " \t")
	restStart := contentStart + m[3]
	closerFrom, closerTo := -1, -1
	if closer := atxHeadingCloserRegexp.FindStringSubmatchIndex(rest); closer != nil {
		closerFrom, closerTo = restStart+closer[2], restStart+closer[3]
		rest = rest[:closer[0]]
	}
	headingTo := restStart + len(rest)
	if closerFrom >= 0 {
		headingTo = closerTo
	}
	content := strings.TrimLeft(rest, " \t")
	contentFrom := restStart + len(rest) - len(content)
	content = strings.TrimRight(content, " \t")
	h := &Heading{
		Ranging: diag.Ranging{From: contentStart + m[2], To: headingTo},
		Level:   len(opener),
	}
	p.appendBlock(h)
	if content != "" {
		p.tag(span.HeadingText, contentFrom, contentFrom+len(content))
		sm := singleLineMap(content, contentFrom)
		p.jobs = append(p.jobs, inlineJob{content, sm, &h.Content})
	}
	if closerFrom >= 0 {
		p.tag(span.HeadingMarker, closerFrom, closerTo)
	}
}

func (p *blockParser) parseFencedCodeBlock(line string, m []int, contentStart, lineEnd int) {
	indent := m[3] - m[2]
	fenceFrom, fenceTo, infoFrom, infoTo := m[4], m[5], m[6], m[7]
	if fenceFrom < 0 {
		fenceFrom, fenceTo, infoFrom, infoTo = m[8], m[9], m[10], m[11]
	}
	opener := line[fenceFrom:fenceTo]
	p.tag(span.CodeFence, contentStart+fenceFrom, contentStart+fenceTo)
	info := strings.Trim(line[infoFrom:infoTo], " \t")
	if info != "" {
		from := contentStart + infoFrom + strings.Index(line[infoFrom:infoTo], info)
		p.tag(span.CodeInfo, from, from+len(info))
	}
	from, to := contentStart, lineEnd
	var sb strings.Builder
	for p.lines.more() {
		line, lineStart := p.lines.next()
		lineEnd := lineStart + len(line)
		line, matchedContainers, marks := matchContinuationMarkers(line, lineStart, p.containers)
		if isBlankLine(line) {
			if p.hasUnmatchedBlockquote(matchedContainers) {
				p.lines.backup()
				break
			}
		} else if matchedContainers < len(p.containers) {
			p.lines.backup()
			break
		}
		p.tagMarks(marks)
		if cm := codeFenceCloserRegexp.FindStringSubmatchIndex(line); cm != nil {
			closer := line[cm[2]:cm[3]]
			if closer[0] == opener[0] && len(closer) >= len(opener) {
				closerStart := lineEnd - len(line)
				p.tag(span.CodeFence, closerStart+cm[2], closerStart+cm[3])
				to = lineEnd
				break
			}
		}
		for i := indent; i > 0 && line != "" && line[0] == ' '; i-- {
			line = line[1:]
		}
		if line != "" {
			p.tag(span.CodeContent, lineEnd-len(line), lineEnd)
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
		to = lineEnd
	}
	p.appendBlock(&FencedCodeBlock{
		Ranging: diag.Ranging{From: from, To: to},
		Info:    info,
		Text:    sb.String(),
	})
}

func (p *blockParser) parseIndentedCodeBlock(line string, contentStart, lineEnd int) {
	var sb strings.Builder
	dedented := dedentCodeLine(line)
	p.tag(span.CodeContent, lineEnd-len(dedented), lineEnd)
	sb.WriteString(dedented)
	sb.WriteByte('\n')
	from, to := contentStart, lineEnd
	// Blank lines are part of the block only when more indented content
	// follows, so they are buffered until then.
	type pendingBlank struct {
		text string
		diag.Ranging
	}
	var pending []pendingBlank
	for p.lines.more() {
		line, lineStart := p.lines.next()
		lineEnd := lineStart + len(line)
		line, matchedContainers, marks := matchContinuationMarkers(line, lineStart, p.containers)
		if isBlankLine(line) {
			if p.hasUnmatchedBlockquote(matchedContainers) {
				p.lines.backup()
				break
			}
			p.tagMarks(marks)
			pending = append(pending, pendingBlank{
				dedentCodeLine(line), diag.Ranging{From: lineStart, To: lineEnd}})
			continue
		}
		if matchedContainers < len(p.containers) || !indentedCodeRegexp.MatchString(line) {
			p.lines.backup()
			break
		}
		p.tagMarks(marks)
		for _, b := range pending {
			sb.WriteString(b.text)
			sb.WriteByte('\n')
		}
		pending = pending[:0]
		dedented := dedentCodeLine(line)
		p.tag(span.CodeContent, lineEnd-len(dedented), lineEnd)
		sb.WriteString(dedented)
		sb.WriteByte('\n')
		to = lineEnd
	}
	p.appendBlock(&IndentedCodeBlock{
		Ranging: diag.Ranging{From: from, To: to},
		Text:    sb.String(),
	})
	for _, b := range pending {
		p.appendBlock(&BlankLine{b.Ranging})
	}
}

func dedentCodeLine(line string) string {
	if strings.HasPrefix(line, "\t") {
		return line[1:]
	}
	i := 0
	for i < len(line) && i < 4 && line[i] == ' ' {
		i++
	}
	return line[i:]
}

func (p *blockParser) parseHTMLBlock(line string, contentStart, lineEnd int, closer func(string) bool) {
	var sb strings.Builder
	sb.WriteString(line)
	sb.WriteByte('\n')
	p.tag(span.HTMLBlock, contentStart, lineEnd)
	from, to := contentStart, lineEnd
	if !closer(line) {
		for p.lines.more() {
			line, lineStart := p.lines.next()
			lineEnd := lineStart + len(line)
			line, matchedContainers, marks := matchContinuationMarkers(line, lineStart, p.containers)
			if isBlankLine(line) {
				if p.hasUnmatchedBlockquote(matchedContainers) {
					p.lines.backup()
					break
				}
			} else if matchedContainers < len(p.containers) {
				p.lines.backup()
				break
			}
			p.tagMarks(marks)
			sb.WriteString(line)
			sb.WriteByte('\n')
			if line != "" {
				p.tag(span.HTMLBlock, lineEnd-len(line), lineEnd)
			}
			to = lineEnd
			if closer(line) {
				break
			}
		}
	}
	p.appendBlock(&HTMLBlock{
		Ranging: diag.Ranging{From: from, To: to},
		Text:    sb.String(),
	})
}

func (p *blockParser) parseBlankLineTerminatedHTMLBlock(line string, contentStart, lineEnd int) {
	var sb strings.Builder
	sb.WriteString(line)
	sb.WriteByte('\n')
	p.tag(span.HTMLBlock, contentStart, lineEnd)
	from, to := contentStart, lineEnd
	for p.lines.more() {
		line, lineStart := p.lines.next()
		lineEnd := lineStart + len(line)
		line, matchedContainers, marks := matchContinuationMarkers(line, lineStart, p.containers)
		if isBlankLine(line) || matchedContainers < len(p.containers) {
			p.lines.backup()
			break
		}
		p.tagMarks(marks)
		sb.WriteString(line)
		sb.WriteByte('\n')
		p.tag(span.HTMLBlock, lineEnd-len(line), lineEnd)
		to = lineEnd
	}
	p.appendBlock(&HTMLBlock{
		Ranging: diag.Ranging{From: from, To: to},
		Text:    sb.String(),
	})
}

type containerType uint8

const (
	blockquote containerType = iota
	bulletList
	bulletItem
	orderedList
	orderedItem
)

type container struct {
	typ        containerType
	punct      byte
	start      int
	indent     string
	blankFirst bool

	marker diag.Ranging
	from   int
	to     int
	blocks []Block
}

var blockquoteMarkerRegexp = regexp.MustCompile(`^ {0,3}> ?`)

func (c *container) findContinuationMarker(line string) (int, bool) {
	switch c.typ {
	case blockquote:
		marker := blockquoteMarkerRegexp.FindString(line)
		if marker == "" {
			return 0, false
		}
		return len(marker), true
	case bulletList, orderedList:
		return 0, true
	case bulletItem, orderedItem:
		if strings.HasPrefix(line, c.indent) {
			return len(c.indent), true
		}
		return 0, false
	}
	panic("unreachable")
}

func (p *blockParser) lastContainerIs(t containerType) bool {
	return len(p.containers) > 0 && p.containers[len(p.containers)-1].typ == t
}

func (p *blockParser) hasUnmatchedBlockquote(matched int) bool {
	for _, c := range p.containers[matched:] {
		if c.typ == blockquote {
			return true
		}
	}
	return false
}

func (p *blockParser) appendContainer(c *container) {
	if p.lastContainerIs(bulletList) || p.lastContainerIs(orderedList) {
		if p.containers[len(p.containers)-1].punct != c.punct {
			p.popLastContainer()
		}
	}
	if c.typ == bulletItem && !p.lastContainerIs(bulletList) {
		p.containers = append(p.containers, &container{
			typ: bulletList, punct: c.punct, from: c.from, to: c.to})
	}
	if c.typ == orderedItem && !p.lastContainerIs(orderedList) {
		p.containers = append(p.containers, &container{
			typ: orderedList, punct: c.punct, start: c.start, from: c.from, to: c.to})
	}
	if c.typ == blockquote {
		p.tag(span.BlockQuoteMarker, c.marker.From, c.marker.To)
	} else {
		p.tag(span.ListMarker, c.marker.From, c.marker.To)
	}
	p.containers = append(p.containers, c)
}

// Closes the innermost container and appends its block node to the parent.
func (p *blockParser) popLastContainer() {
	c := p.containers[len(p.containers)-1]
	p.containers = p.containers[:len(p.containers)-1]
	p.appendBlock(c.block())
}

// Closes the innermost container if it is a list. Leaf blocks directly
// following a list cannot belong to it, so the list is popped before they
// are appended.
func (p *blockParser) popList() {
	if p.lastContainerIs(bulletList) || p.lastContainerIs(orderedList) {
		p.popLastContainer()
	}
}

func (c *container) block() Block {
	r := diag.Ranging{From: c.from, To: c.to}
	switch c.typ {
	case blockquote:
		return &BlockQuote{r, c.blocks}
	case bulletItem, orderedItem:
		return &ListItem{r, c.blocks}
	case bulletList:
		items, tight := finishList(c.blocks)
		r.To = items[len(items)-1].To
		return &BulletList{r, tight, c.punct, items}
	case orderedList:
		items, tight := finishList(c.blocks)
		r.To = items[len(items)-1].To
		return &OrderedList{r, tight, c.start, c.punct, items}
	}
	panic("unreachable")
}

// Appends a block to the innermost open container, or to the document when
// none is open. A blank line arriving at a list (rather than inside an open
// item) folds into the preceding item, where the tightness computation can
// see it.
func (p *blockParser) appendBlock(b Block) {
	if len(p.containers) == 0 {
		p.doc.Blocks = append(p.doc.Blocks, b)
		return
	}
	c := p.containers[len(p.containers)-1]
	if _, blank := b.(*BlankLine); blank && (c.typ == bulletList || c.typ == orderedList) && len(c.blocks) > 0 {
		if item, ok := c.blocks[len(c.blocks)-1].(*ListItem); ok {
			item.Blocks = append(item.Blocks, b)
			return
		}
	}
	c.blocks = append(c.blocks, b)
	if to := b.Range().To; to > c.to {
		c.to = to
	}
}

func finishList(blocks []Block) ([]*ListItem, bool) {
	items := make([]*ListItem, 0, len(blocks))
	for _, b := range blocks {
		if item, ok := b.(*ListItem); ok {
			items = append(items, item)
		}
	}
	tight := true
	for i, item := range items {
		if i < len(items)-1 && endsWithBlankLine(item.Blocks) {
			tight = false
		}
		if hasInternalBlankLine(item.Blocks) {
			tight = false
		}
	}
	return items, tight
}

// Reports whether the block sequence ends with a blank line, descending into
// the last item of a trailing list.
func endsWithBlankLine(blocks []Block) bool {
	for len(blocks) > 0 {
		switch last := blocks[len(blocks)-1].(type) {
		case *BlankLine:
			return true
		case *BulletList:
			blocks = last.Items[len(last.Items)-1].Blocks
		case *OrderedList:
			blocks = last.Items[len(last.Items)-1].Blocks
		case *ListItem:
			blocks = last.Blocks
		default:
			return false
		}
	}
	return false
}

// Reports whether a blank line sits strictly between two non-blank blocks.
func hasInternalBlankLine(blocks []Block) bool {
	first, last := -1, -1
	for i, b := range blocks {
		if _, ok := b.(*BlankLine); !ok {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	for i := first; i >= 0 && i < last; i++ {
		if _, ok := blocks[i].(*BlankLine); ok {
			return true
		}
	}
	return false
}

func (p *blockParser) addParagraphLine(line string, contentStart int) {
	p.paragraph = append(p.paragraph, line)
	p.paraRanges = append(p.paraRanges, diag.Ranging{From: contentStart, To: contentStart + len(line)})
}

// Closes the current paragraph, if any, and pops containers until only keep
// of them remain open.
func (p *blockParser) popParagraph(keep int) {
	if len(p.paragraph) > 0 {
		lines := append([]string(nil), p.paragraph...)
		ranges := append([]diag.Ranging(nil), p.paraRanges...)
		p.paragraph = p.paragraph[:0]
		p.paraRanges = p.paraRanges[:0]
		p.emitParagraph(lines, ranges)
	}
	for len(p.containers) > keep {
		p.popLastContainer()
	}
}

func (p *blockParser) emitParagraph(lines []string, ranges []diag.Ranging) {
	lines, ranges = p.extractRefDefs(lines, ranges)
	if len(lines) == 0 {
		return
	}
	text, sm := joinLines(lines, ranges)
	bounds := sm.bounds()
	node := &Paragraph{Ranging: bounds}
	p.appendBlock(node)
	p.jobs = append(p.jobs, inlineJob{text, sm, &node.Content})
}

// Extracts leading link reference definitions from paragraph lines,
// appending a node and registering a reference for each definition found.
// Returns the remaining lines. Definitions can span lines, so the check runs
// over the joined text.
func (p *blockParser) extractRefDefs(lines []string, ranges []diag.Ranging) ([]string, []diag.Ranging) {
	text, sm := joinLinesRaw(lines, ranges)
	pos := 0
	for pos < len(text) {
		def, next, spans, ok := parseRefDefAt(text, pos, p.sink != nil)
		if !ok {
			break
		}
		for _, s := range spans {
			p.tag(s.Type, sm.src(s.From), sm.srcEnd(s.To))
		}
		node := &LinkReferenceDefinition{
			Ranging: diag.Ranging{From: sm.src(pos), To: sm.srcEnd(def.end)},
			Label:   NormalizeLabel(def.label),
			Dest:    def.dest,
			Title:   def.title,
		}
		p.appendBlock(node)
		if _, defined := p.doc.Refs[node.Label]; !defined {
			p.doc.Refs[node.Label] = node
		}
		pos = next
	}
	if pos == 0 {
		return lines, ranges
	}
	var restLines []string
	var restRanges []diag.Ranging
	for i, seg := range sm.segs {
		if pos >= seg.bufStart+seg.length {
			continue
		}
		d := 0
		if pos > seg.bufStart {
			d = pos - seg.bufStart
		}
		restLines = append(restLines, lines[i][d:])
		restRanges = append(restRanges, diag.Ranging{From: ranges[i].From + d, To: ranges[i].To})
	}
	return restLines, restRanges
}

func (p *blockParser) tag(t span.TokenType, from, to int) {
	if p.sink != nil {
		p.sink.Add(span.Span{Type: t, Ranging: diag.Ranging{From: from, To: to}})
	}
}

func (p *blockParser) tagMarks(marks []diag.Ranging) {
	for _, m := range marks {
		p.tag(span.BlockQuoteMarker, m.From, m.To)
	}
}

// srcMap translates positions in a paragraph buffer, which joins the content
// of continuation lines with "\n", back to positions in the source.
type srcMap struct {
	segs []srcSeg
}

type srcSeg struct {
	bufStart int
	srcStart int
	length   int
}

// src maps a buffer position to the source, rounding positions on a line
// joiner forward to the start of the next line's content.
func (m srcMap) src(p int) int {
	for _, seg := range m.segs {
		if p <= seg.bufStart+seg.length {
			if p < seg.bufStart {
				return seg.srcStart
			}
			return seg.srcStart + (p - seg.bufStart)
		}
	}
	last := m.segs[len(m.segs)-1]
	return last.srcStart + last.length
}

// srcEnd is like src but rounds positions on a line joiner backward to the
// end of the previous line's content, which is what the exclusive end of a
// range needs.
func (m srcMap) srcEnd(p int) int {
	for i := len(m.segs) - 1; i >= 0; i-- {
		seg := m.segs[i]
		if p >= seg.bufStart {
			d := p - seg.bufStart
			if d > seg.length {
				d = seg.length
			}
			return seg.srcStart + d
		}
	}
	return m.segs[0].srcStart
}

func (m srcMap) bounds() diag.Ranging {
	first, last := m.segs[0], m.segs[len(m.segs)-1]
	return diag.Ranging{From: first.srcStart, To: last.srcStart + last.length}
}

func singleLineMap(line string, srcStart int) srcMap {
	return srcMap{[]srcSeg{{0, srcStart, len(line)}}}
}

// Joins paragraph lines, trimming the spaces around the paragraph as a whole
// and adjusting the line ranges to match.
func joinLines(lines []string, ranges []diag.Ranging) (string, srcMap) {
	first := strings.TrimLeft(lines[0], " \t")
	ranges[0].From += len(lines[0]) - len(first)
	lines[0] = first
	li := len(lines) - 1
	last := strings.TrimRight(lines[li], " \t")
	ranges[li].To -= len(lines[li]) - len(last)
	lines[li] = last
	return joinLinesRaw(lines, ranges)
}

func joinLinesRaw(lines []string, ranges []diag.Ranging) (string, srcMap) {
	var sb strings.Builder
	sm := srcMap{make([]srcSeg, 0, len(lines))}
	for i, l := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sm.segs = append(sm.segs, srcSeg{sb.Len(), ranges[i].From, len(l)})
		sb.WriteString(l)
	}
	return sb.String(), sm
}

// lineSplitter splits the source into lines, accepting "\n", "\r\n" and "\r"
// terminators. It supports backing up by exactly one line, which the
// sub-parsers that read ahead (code blocks and HTML blocks) use to hand a
// line they cannot consume back to the main loop.
type lineSplitter struct {
	text string
	pos  int
	prev int
}

func (s *lineSplitter) more() bool {
	return s.pos < len(s.text)
}

// Returns the next line without its terminator, plus the position of its
// first byte.
func (s *lineSplitter) next() (string, int) {
	begin := s.pos
	s.prev = begin
	i := strings.IndexAny(s.text[begin:], "\r\n")
	if i == -1 {
		s.pos = len(s.text)
		return s.text[begin:], begin
	}
	end := begin + i
	s.pos = end + 1
	if s.text[end] == '\r' && s.pos < len(s.text) && s.text[s.pos] == '\n' {
		s.pos++
	}
	return s.text[begin:end], begin
}

func (s *lineSplitter) backup() {
	s.pos = s.prev
}
