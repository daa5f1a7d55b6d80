// Package span records the source ranges of semantic constructs during a
// parse, as a non-invasive overlay over parsers from pkg/comb.
//
// A [Sink] travels as the user context of a cursor; [Tag] wraps any parser so
// that its successful applications append spans to that sink. Parsing
// behavior is never affected: a tagged parser consumes the same input,
// produces the same value and fails in the same way as the parser it wraps.
package span

import (
	"parsek.dev/pkg/comb"
	"parsek.dev/pkg/diag"
)

// Span is a semantically typed half-open range [From, To) of the input.
type Span struct {
	Type TokenType
	diag.Ranging
}

// Sink accumulates spans in the order the parsers that produce them succeed,
// so inner constructs precede the constructs enclosing them. A sink belongs
// to a single parse and is not safe for concurrent use.
type Sink struct {
	spans []Span
}

// Add appends a span.
func (s *Sink) Add(sp Span) { s.spans = append(s.spans, sp) }

// Spans returns the accumulated spans in append order. The slice is shared
// with the sink; callers that need to keep it across parses should copy it.
func (s *Sink) Spans() []Span { return s.spans }

// Len returns the number of accumulated spans.
func (s *Sink) Len() int { return len(s.spans) }

// FromContext extracts the sink carried by a cursor, or nil if the cursor
// carries none. Untagged parses therefore cost one nil check per candidate
// span.
func FromContext(c comb.Cursor) *Sink {
	sink, _ := c.Context().(*Sink)
	return sink
}

// Tag instruments a parser to record the source range it consumes. On
// success the returned parser appends one span of the given type, covering
// exactly the consumed input, to the sink in the cursor's user context; on
// failure, or when the cursor carries no sink, it records nothing.
func Tag[T any](t TokenType, p comb.Parser[T]) comb.Parser[T] {
	return func(c comb.Cursor) comb.Result[T] {
		r := p(c)
		if r.Err == nil {
			if sink := FromContext(c); sink != nil {
				sink.Add(Span{t, diag.Ranging{From: c.Pos(), To: r.Next.Pos()}})
			}
		}
		return r
	}
}
