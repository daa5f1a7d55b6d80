package md

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"parsek.dev/pkg/comb"
	"parsek.dev/pkg/diag"
	"parsek.dev/pkg/span"
)

// parseInlines resolves the inline content of a paragraph or heading. The
// text is the joined content with container markers already stripped; sm
// translates positions in it back to positions in the original source, which
// the recorded spans use. A nil sink suppresses span recording.
func parseInlines(text string, sm srcMap, sink *span.Sink, refs RefMap) []Inline {
	p := inlineParser{
		text: text, sm: sm, sink: sink, refs: refs,
		delims: makeDelimStack(), list: makeInlineList(),
	}
	p.run()
	return collectInlines(p.list.front.next, p.list.back)
}

type inlineParser struct {
	text   string
	sm     srcMap
	sink   *span.Sink
	refs   RefMap
	pos    int
	delims delimStack
	list   inlineList
}

// inode is a node in the working list of the inline parser: either a literal
// text fragment that emphasis or link resolution may still consume from, or
// an already resolved inline node. The from and to fields are positions in
// p.text and shrink along with text as delimiter runs are consumed.
type inode struct {
	prev, next *inode
	text       string
	resolved   Inline
	from, to   int
}

// inlineList is a doubly linked list of inodes with sentinel nodes on both
// ends, so that resolution can splice nodes without boundary checks.
type inlineList struct {
	front, back *inode
}

func makeInlineList() inlineList {
	front := &inode{}
	back := &inode{prev: front}
	front.next = back
	return inlineList{front, back}
}

func (l *inlineList) push(n *inode) {
	n.prev = l.back.prev
	n.next = l.back
	n.prev.next = n
	l.back.prev = n
}

var isASCIIPunct = map[byte]bool{
	'!': true, '"': true, '#': true, '$': true, '%': true, '&': true,
	'\'': true, '(': true, ')': true, '*': true, '+': true, ',': true,
	'-': true, '.': true, '/': true, ':': true, ';': true, '<': true,
	'=': true, '>': true, '?': true, '@': true, '[': true, '\\': true,
	']': true, '^': true, '_': true, '`': true, '{': true, '|': true,
	'}': true, '~': true,
}

var (
	entityRegexp     = regexp.MustCompile(`^&(?:[a-zA-Z0-9]+|#[0-9]{1,7}|#[xX][0-9a-fA-F]{1,6});`)
	openTagRegexp    = regexp.MustCompile(`^` + openTag)
	closingTagRegexp = regexp.MustCompile(`^` + closingTag)
	autolinkRegexp   = regexp.MustCompile(`^<` +
		`[a-zA-Z][a-zA-Z0-9+.-]{1,31}` + // scheme
		`:[^\x00-\x19 <>]*` +
		`>`)
	emailAutolinkRegexp = regexp.MustCompile(fmt.Sprintf(`^<[a-zA-Z0-9.!#$%%&'*+/=?^_%s{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*>`, "`"))
)

func (p *inlineParser) run() {
	for p.pos < len(p.text) {
		b := p.text[p.pos]
		begin := p.pos
		p.pos++

		switch b {
		case '[':
			n := p.pushText("[", begin, p.pos)
			p.delims.push(&delim{typ: '[', node: n})
		case '!':
			if p.pos < len(p.text) && p.text[p.pos] == '[' {
				p.pos++
				n := p.pushText("![", begin, p.pos)
				p.delims.push(&delim{typ: '!', node: n})
			} else {
				p.parseText(begin)
			}
		case ']':
			p.parseCloseBracket(begin)
		case '*', '_':
			// Consume the entire run of * or _.
			for p.pos < len(p.text) && p.text[p.pos] == b {
				p.pos++
			}
			next, lNext := utf8.DecodeRuneInString(p.text[p.pos:])
			prev, lPrev := utf8.DecodeLastRuneInString(p.text[:begin])
			leftFlanking := lNext > 0 && !unicode.IsSpace(next) &&
				(!unicode.IsPunct(next) ||
					(lPrev == 0 || unicode.IsSpace(prev) || unicode.IsPunct(prev)))
			rightFlanking := lPrev > 0 && !unicode.IsSpace(prev) &&
				(!unicode.IsPunct(prev) ||
					(lNext == 0 || unicode.IsSpace(next) || unicode.IsPunct(next)))
			canOpen := leftFlanking
			canClose := rightFlanking
			if b == '_' {
				canOpen = leftFlanking && (!rightFlanking || (lPrev > 0 && unicode.IsPunct(prev)))
				canClose = rightFlanking && (!leftFlanking || (lNext > 0 && unicode.IsPunct(next)))
			}
			n := p.pushText(p.text[begin:p.pos], begin, p.pos)
			p.delims.push(
				&delim{typ: b, node: n,
					n: p.pos - begin, canOpen: canOpen, canClose: canClose})
		case '`':
			// Consume the entire run of `.
			for p.pos < len(p.text) && p.text[p.pos] == '`' {
				p.pos++
			}
			closer := findBacktickRun(p.text, p.text[begin:p.pos], p.pos)
			if closer == -1 {
				// No matching closer, don't parse as code span.
				p.parseText(begin)
				continue
			}
			run := p.pos - begin
			p.tag(span.CodeSpanDelimiter, begin, p.pos)
			if closer > p.pos {
				p.tag(span.CodeSpanContent, p.pos, closer)
			}
			p.tag(span.CodeSpanDelimiter, closer, closer+run)
			p.pushNode(
				&CodeSpan{normalizeCodeSpanContent(p.text[p.pos:closer])},
				begin, closer+run)
			p.pos = closer + run
		case '<':
			p.parseAngle(begin)
		case '&':
			entity := entityRegexp.FindString(p.text[begin:])
			if entity == "" {
				p.parseText(begin)
				continue
			}
			p.pos = begin + len(entity)
			// Go also decodes semicolon-less legacy names like &not, so an
			// unknown name with a legacy prefix (&notreal;) decodes
			// partially. Only accept when the whole reference decodes.
			decoded := html.UnescapeString(entity)
			if decoded != entity &&
				decoded != html.UnescapeString(entity[:len(entity)-1])+";" {
				p.tag(span.EntityRef, begin, p.pos)
				p.pushNode(&HTMLEntity{decoded}, begin, p.pos)
			} else {
				p.pushText(entity, begin, p.pos)
			}
		case '\\':
			if p.pos < len(p.text) && isASCIIPunct[p.text[p.pos]] {
				p.tag(span.EscapeSequence, begin, p.pos+1)
				begin++
				p.pos++
			}
			p.parseText(begin)
		case '\n':
			p.parseLineBreak(begin)
		default:
			p.parseText(begin)
		}
	}
	p.processEmphasis(p.delims.bottom)
}

func (p *inlineParser) parseText(begin int) {
	for p.pos < len(p.text) && !isMeta(p.text[p.pos]) {
		p.pos++
	}
	p.pushText(p.text[begin:p.pos], begin, p.pos)
}

func (p *inlineParser) pushText(s string, from, to int) *inode {
	n := &inode{text: s, from: from, to: to}
	p.list.push(n)
	return n
}

func (p *inlineParser) pushNode(in Inline, from, to int) *inode {
	n := &inode{resolved: in, from: from, to: to}
	p.list.push(n)
	return n
}

// tag records a span over [from, to), translating buffer positions to source
// positions.
func (p *inlineParser) tag(t span.TokenType, from, to int) {
	if p.sink == nil || from >= to {
		return
	}
	p.sink.Add(span.Span{
		Type:    t,
		Ranging: diag.Ranging{From: p.sm.src(from), To: p.sm.srcEnd(to)},
	})
}

// flushSpans re-records spans collected by a sub-parse over p.text, which
// carry buffer positions, into the parser's own sink with source positions.
func (p *inlineParser) flushSpans(sink *span.Sink) {
	if p.sink == nil || sink == nil {
		return
	}
	for _, s := range sink.Spans() {
		p.tag(s.Type, s.From, s.To)
	}
}

func (p *inlineParser) parseLineBreak(begin int) {
	hard := false
	if last := p.list.back.prev; last != p.list.front && last.resolved == nil {
		origTo := last.to
		if p.pos == len(p.text) {
			trimTrailingSpaces(last)
		} else if strings.HasSuffix(last.text, "\\") {
			hard = true
			last.text = last.text[:len(last.text)-1]
			last.to--
		} else {
			hard = strings.HasSuffix(last.text, "  ")
			trimTrailingSpaces(last)
		}
		if hard {
			// The span covers the visible marker: the backslash or the
			// trailing spaces.
			p.tag(span.HardBreak, last.to, origTo)
		}
	}
	if p.pos == len(p.text) {
		// A newline at the very end does not produce a break.
		return
	}
	if hard {
		p.pushNode(&HardBreak{}, begin, p.pos)
	} else {
		p.pushNode(&SoftBreak{}, begin, p.pos)
	}
	// Leading spaces of the next line do not count as content.
	for p.pos < len(p.text) && p.text[p.pos] == ' ' {
		p.pos++
	}
}

func trimTrailingSpaces(n *inode) {
	trimmed := strings.TrimRight(n.text, " ")
	n.to -= len(n.text) - len(trimmed)
	n.text = trimmed
}

func (p *inlineParser) parseAngle(begin int) {
	if p.pos == len(p.text) {
		p.parseText(begin)
		return
	}
	pushRaw := func(end int) {
		p.tag(span.HTMLInline, begin, end)
		p.pushNode(&RawHTML{p.text[begin:end]}, begin, end)
		p.pos = end
	}
	parseWithRegexp := func(pattern *regexp.Regexp) bool {
		html := pattern.FindString(p.text[begin:])
		if html == "" {
			return false
		}
		pushRaw(begin + len(html))
		return true
	}
	parseWithCloser := func(closer string) bool {
		i := strings.Index(p.text[p.pos:], closer)
		if i == -1 {
			return false
		}
		pushRaw(p.pos + i + len(closer))
		return true
	}
	switch p.text[p.pos] {
	case '!':
		switch {
		case strings.HasPrefix(p.text[p.pos:], "!--"):
			// Try parsing a comment.
			if parseWithCloser("-->") {
				return
			}
		case strings.HasPrefix(p.text[p.pos:], "![CDATA["):
			// Try parsing a CDATA section.
			if parseWithCloser("]]>") {
				return
			}
		case p.pos+1 < len(p.text) && isASCIILetter(p.text[p.pos+1]):
			// Try parsing a declaration.
			if parseWithCloser(">") {
				return
			}
		}
	case '?':
		// Try parsing a processing instruction.
		if parseWithCloser("?>") {
			return
		}
	case '/':
		// Try parsing a closing tag.
		if parseWithRegexp(closingTagRegexp) {
			return
		}
	default:
		// Try parsing an open tag.
		if parseWithRegexp(openTagRegexp) {
			return
		}
		if p.parseAutolink(begin) {
			return
		}
	}
	p.parseText(begin)
}

func (p *inlineParser) parseAutolink(begin int) bool {
	autolink := autolinkRegexp.FindString(p.text[begin:])
	email := false
	if autolink == "" {
		autolink = emailAutolinkRegexp.FindString(p.text[begin:])
		email = true
	}
	if autolink == "" {
		return false
	}
	end := begin + len(autolink)
	text := autolink[1 : len(autolink)-1]
	url := text
	if email {
		url = "mailto:" + url
	}
	p.tag(span.AutolinkURL, begin+1, end-1)
	p.pushNode(&Autolink{Text: text, URL: url}, begin, end)
	p.pos = end
	return true
}

func (p *inlineParser) parseCloseBracket(begin int) {
	var opener *delim
	for d := p.delims.top.prev; d != p.delims.bottom; d = d.prev {
		if d.typ == '[' || d.typ == '!' {
			opener = d
			break
		}
	}
	if opener == nil || opener.inactive {
		if opener != nil {
			unlink(opener)
		}
		p.pushText("]", begin, p.pos)
		return
	}
	dest, title, ok := p.resolveLinkTarget(opener, begin)
	if !ok {
		unlink(opener)
		p.pushText("]", begin, p.pos)
		return
	}
	p.processEmphasis(opener)
	if opener.typ == '[' {
		// Links cannot nest; deactivate the enclosing bracket openers.
		for d := opener.prev; d != p.delims.bottom; d = d.prev {
			if d.typ == '[' {
				d.inactive = true
			}
		}
	}
	content := collectInlines(opener.node.next, p.list.back)
	var resolved Inline
	if opener.typ == '[' {
		resolved = &Link{Dest: dest, Title: title, Content: content}
	} else {
		resolved = &Image{Dest: dest, Title: title, Alt: PlainText(content)}
	}
	// Reuse the opener node for the resolved link and drop the consumed
	// content nodes after it. Delimiters from the opener up can no longer
	// match anything, so cut them from the stack as well.
	n := opener.node
	n.text = ""
	n.resolved = resolved
	n.to = p.pos
	n.next = p.list.back
	p.list.back.prev = n
	opener.prev.next = p.delims.top
	p.delims.top.prev = opener.prev
}

// resolveLinkTarget resolves the target of the link or image whose closing
// bracket sits at begin, trying the four forms in order: inline "(dest
// title)", full reference "[label]", collapsed reference "[]", and shortcut
// reference. On success p.pos has advanced past the consumed form and the
// delimiter spans are recorded.
func (p *inlineParser) resolveLinkTarget(opener *delim, begin int) (dest, title string, ok bool) {
	if r := linkTailParser(p.cursorAt(p.pos)); r.OK() {
		p.tagBrackets(opener, begin)
		p.flushSpans(span.FromContext(r.Next))
		p.pos = r.Next.Pos()
		return r.Value.dest, r.Value.title, true
	}
	if r := linkLabelParser(p.cursorAt(p.pos)); r.OK() {
		// A well-formed label that matches no definition fails the whole
		// bracket; the shortcut form applies only when no label follows.
		def, found := p.refs[NormalizeLabel(r.Value)]
		if !found {
			return "", "", false
		}
		p.tagBrackets(opener, begin)
		p.flushSpans(span.FromContext(r.Next))
		p.pos = r.Next.Pos()
		return def.Dest, def.Title, true
	}
	label := p.text[opener.node.to:begin]
	if strings.HasPrefix(p.text[p.pos:], "[]") {
		// Collapsed reference.
		def, found := p.refs[NormalizeLabel(label)]
		if !found {
			return "", "", false
		}
		p.tagBrackets(opener, begin)
		p.tag(span.LinkLabel, opener.node.to, begin)
		p.tag(span.LinkBracket, p.pos, p.pos+1)
		p.tag(span.LinkBracket, p.pos+1, p.pos+2)
		p.pos += 2
		return def.Dest, def.Title, true
	}
	// Shortcut reference.
	def, found := p.refs[NormalizeLabel(label)]
	if !found {
		return "", "", false
	}
	p.tagBrackets(opener, begin)
	p.tag(span.LinkLabel, opener.node.to, begin)
	return def.Dest, def.Title, true
}

// cursorAt makes a cursor over p.text at pos, with a fresh sink attached when
// the parse is tagged. Sub-parses record spans with buffer positions, which
// flushSpans later translates.
func (p *inlineParser) cursorAt(pos int) comb.Cursor {
	if p.sink == nil {
		return comb.New(p.text).At(pos)
	}
	return comb.NewWithContext(p.text, &span.Sink{}).At(pos)
}

func (p *inlineParser) tagBrackets(opener *delim, begin int) {
	if opener.typ == '!' {
		p.tag(span.ImageMarker, opener.node.from, opener.node.to)
	} else {
		p.tag(span.LinkBracket, opener.node.from, opener.node.to)
	}
	p.tag(span.LinkBracket, begin, begin+1)
}

// delim is an element of the delimiter stack, which tracks potential openers
// and closers of emphasis, links and images.
type delim struct {
	typ  byte
	node *inode
	prev *delim
	next *delim
	// Only used when typ is '['.
	inactive bool
	// Only used when typ is '_' or '*'. n is the length of the original
	// delimiter run and stays fixed as the run is consumed; the rule-of-3
	// checks use the original lengths.
	n        int
	canOpen  bool
	canClose bool
}

func unlink(n *delim) {
	n.next.prev = n.prev
	n.prev.next = n.next
}

type delimStack struct {
	bottom, top *delim
}

func makeDelimStack() delimStack {
	bottom := &delim{}
	top := &delim{prev: bottom}
	bottom.next = top
	return delimStack{bottom, top}
}

func (s *delimStack) push(n *delim) {
	n.prev = s.top.prev
	n.next = s.top
	n.prev.next = n
	s.top.prev = n
}

func (p *inlineParser) processEmphasis(bottom *delim) {
	var openersBottom [2][3][2]*delim
	for closer := bottom.next; closer != nil; {
		if !closer.canClose {
			closer = closer.next
			continue
		}
		openerBottom := &openersBottom[b2i(closer.typ == '_')][closer.n%3][b2i(closer.canOpen)]
		if *openerBottom == nil {
			*openerBottom = bottom
		}
		var opener *delim
		for d := closer.prev; d != *openerBottom; d = d.prev {
			if d.canOpen && d.typ == closer.typ &&
				((!d.canClose && !closer.canOpen) ||
					(d.n+closer.n)%3 != 0 || (d.n%3 == 0 && closer.n%3 == 0)) {
				opener = d
				break
			}
		}
		if opener == nil {
			*openerBottom = closer.prev
			if !closer.canOpen {
				closer.prev.next = closer.next
				closer.next.prev = closer.prev
			}
			closer = closer.next
			continue
		}
		on, cn := opener.node, closer.node
		strong := len(on.text) >= 2 && len(cn.text) >= 2
		k, t := 1, span.EmphasisMarker
		if strong {
			k, t = 2, span.StrongMarker
		}
		// The innermost characters of each run form the markers.
		p.tag(t, on.to-k, on.to)
		p.tag(t, cn.from, cn.from+k)
		content := collectInlines(on.next, cn)
		var wrapped Inline
		if strong {
			wrapped = &StrongEmphasis{content}
		} else {
			wrapped = &Emphasis{content}
		}
		on.text = on.text[:len(on.text)-k]
		on.to -= k
		wn := &inode{resolved: wrapped, from: on.to, to: cn.from + k}
		cn.text = cn.text[k:]
		cn.from += k
		// Splice the wrapped node in place of the consumed content.
		on.next = wn
		wn.prev = on
		wn.next = cn
		cn.prev = wn
		// Delimiters between the opener and closer can no longer match.
		opener.next = closer
		closer.prev = opener
		if on.text == "" {
			unlink(opener)
		}
		if cn.text == "" {
			unlink(closer)
			closer = closer.next
		}
	}
}

func b2i(b bool) int {
	if b {
		return 1
	} else {
		return 0
	}
}

// collectInlines gathers the resolved inlines of the list nodes in [from,
// until), merging adjacent text fragments and skipping emptied ones.
func collectInlines(from, until *inode) []Inline {
	var out []Inline
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			out = append(out, &Text{text.String()})
			text.Reset()
		}
	}
	for n := from; n != until; n = n.next {
		if n.resolved == nil {
			text.WriteString(n.text)
			continue
		}
		if t, ok := n.resolved.(*Text); ok {
			text.WriteString(t.Text)
			continue
		}
		flush()
		out = append(out, n.resolved)
	}
	flush()
	return out
}

// PlainText flattens inline content to plain text, as used for image alt
// text. Breaks become spaces and raw HTML is dropped.
func PlainText(content []Inline) string {
	var sb strings.Builder
	for _, in := range content {
		switch in := in.(type) {
		case *Text:
			sb.WriteString(in.Text)
		case *SoftBreak, *HardBreak:
			sb.WriteByte(' ')
		case *CodeSpan:
			sb.WriteString(in.Text)
		case *Emphasis:
			sb.WriteString(PlainText(in.Content))
		case *StrongEmphasis:
			sb.WriteString(PlainText(in.Content))
		case *Link:
			sb.WriteString(PlainText(in.Content))
		case *Image:
			sb.WriteString(in.Alt)
		case *Autolink:
			sb.WriteString(in.Text)
		case *HTMLEntity:
			sb.WriteString(in.Text)
		}
	}
	return sb.String()
}

func isASCIILetter(b byte) bool {
	return ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func isASCIIControl(b byte) bool {
	return b < 0x20
}

func isWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n':
		return true
	default:
		return false
	}
}

func isMeta(b byte) bool {
	switch b {
	case '!', '[', ']', '*', '_', '`', '\\', '&', '<', '\n':
		return true
	default:
		return false
	}
}

// findBacktickRun finds the next occurrence of run in s at or after i that is
// not part of a longer backtick run.
func findBacktickRun(s, run string, i int) int {
	for i < len(s) {
		j := strings.Index(s[i:], run)
		if j == -1 {
			return -1
		}
		j += i
		if j+len(run) == len(s) || s[j+len(run)] != '`' {
			return j
		}
		for j < len(s) && s[j] == '`' {
			j++
		}
		i = j
	}
	return -1
}

var lineEndingToSpace = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func normalizeCodeSpanContent(s string) string {
	s = lineEndingToSpace.Replace(s)
	if len(s) > 1 && s[0] == ' ' && s[len(s)-1] == ' ' && strings.Trim(s, " ") != "" {
		return s[1 : len(s)-1]
	}
	return s
}
