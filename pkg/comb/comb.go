// Package comb implements a small combinator runtime for parsers over
// strings.
//
// A parser is any function from a [Cursor] to a [Result]; hand-written
// scanning functions and parsers built with the combinators in this package
// are interchangeable. Cursors are values, so backtracking is just keeping an
// old cursor around: a failed parser has consumed nothing, and alternatives
// can be retried from the cursor that produced the failure.
//
// Parsers must not mutate anything reachable from the cursor, with one
// deliberate exception: the user context installed by [NewWithContext] is an
// opaque side channel that parsers may append to (the span tagger records
// token positions through it). Everything else about a parse is a pure
// function of the input.
package comb

import (
	"fmt"
	"unicode/utf8"
)

// Cursor is a position within an input string, plus an opaque user context
// that travels unchanged through every parser invocation.
type Cursor struct {
	src string
	pos int
	ctx any
}

// New returns a cursor at the start of src.
func New(src string) Cursor { return Cursor{src: src} }

// NewWithContext returns a cursor at the start of src carrying a user
// context, retrievable with [Cursor.Context] from any derived cursor.
func NewWithContext(src string, ctx any) Cursor { return Cursor{src: src, ctx: ctx} }

// Src returns the full input string.
func (c Cursor) Src() string { return c.src }

// Pos returns the byte offset of the cursor within the input.
func (c Cursor) Pos() int { return c.pos }

// Context returns the user context, or nil if there is none.
func (c Cursor) Context() any { return c.ctx }

// EOF reports whether the cursor is at the end of the input.
func (c Cursor) EOF() bool { return c.pos >= len(c.src) }

// Rest returns the unconsumed part of the input.
func (c Cursor) Rest() string { return c.src[c.pos:] }

// At returns a cursor at the given byte offset, keeping the input and the
// user context.
func (c Cursor) At(pos int) Cursor { return Cursor{c.src, pos, c.ctx} }

// Rune returns the rune at the cursor and its width in bytes. At the end of
// the input the width is 0.
func (c Cursor) Rune() (rune, int) {
	if c.EOF() {
		return utf8.RuneError, 0
	}
	return utf8.DecodeRuneInString(c.src[c.pos:])
}

// Result is the outcome of running a parser: a value plus the cursor after
// the consumed input, or a failure. On failure, Next is the cursor the
// parser was called with.
type Result[T any] struct {
	Value T
	Next  Cursor
	Err   *Error
}

// OK reports whether the result is a success.
func (r Result[T]) OK() bool { return r.Err == nil }

// Error describes where and why a parser failed. A failure is an ordinary
// value, not a control-flow event; callers inspect it to try alternatives or
// to fall back to treating input as literal text.
type Error struct {
	Pos int
	Msg string
	// Underlying classifies machine-detectable failures, like integer
	// range errors. It may be nil.
	Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string { return fmt.Sprintf("%d: %s", e.Pos, e.Msg) }

// Unwrap returns the underlying classification, if any.
func (e *Error) Unwrap() error { return e.Underlying }

// Ok returns a successful result.
func Ok[T any](v T, next Cursor) Result[T] { return Result[T]{Value: v, Next: next} }

// Fail returns a failed result at the cursor's position.
func Fail[T any](c Cursor, msg string) Result[T] {
	return Result[T]{Next: c, Err: &Error{Pos: c.pos, Msg: msg}}
}

func fail[T any](c Cursor, err *Error) Result[T] {
	return Result[T]{Next: c, Err: err}
}

// Parser consumes input at a cursor and produces a T.
type Parser[T any] func(Cursor) Result[T]

// Map transforms the value of a successful parse.
func Map[A, B any](p Parser[A], f func(A) B) Parser[B] {
	return func(c Cursor) Result[B] {
		r := p(c)
		if r.Err != nil {
			return fail[B](c, r.Err)
		}
		return Ok(f(r.Value), r.Next)
	}
}

// Or tries each parser in turn from the same position and returns the first
// success. When all fail, it reports the failure that got furthest into the
// input; distinct messages at the same furthest position are joined with
// "or".
func Or[T any](parsers ...Parser[T]) Parser[T] {
	return func(c Cursor) Result[T] {
		var best *Error
		for _, p := range parsers {
			r := p(c)
			if r.Err == nil {
				return r
			}
			best = furthest(best, r.Err)
		}
		if best == nil {
			best = &Error{Pos: c.pos, Msg: "no alternatives"}
		}
		return fail[T](c, best)
	}
}

func furthest(a, b *Error) *Error {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Pos > a.Pos:
		return b
	case b.Pos < a.Pos:
		return a
	case a.Msg == b.Msg:
		return a
	default:
		return &Error{Pos: a.Pos, Msg: a.Msg + " or " + b.Msg}
	}
}

// Opt makes a parser optional. Absence yields the zero value of T and
// consumes nothing; Opt never fails.
func Opt[T any](p Parser[T]) Parser[T] {
	return func(c Cursor) Result[T] {
		r := p(c)
		if r.Err != nil {
			var zero T
			return Ok(zero, c)
		}
		return r
	}
}

// Many applies p repeatedly until it fails, collecting the values. It never
// fails; zero matches yield a nil slice. A success that consumes no input
// ends the repetition, so Many cannot loop forever.
func Many[T any](p Parser[T]) Parser[[]T] {
	return func(c Cursor) Result[[]T] {
		var values []T
		for {
			r := p(c)
			if r.Err != nil || r.Next.pos == c.pos {
				return Ok(values, c)
			}
			values = append(values, r.Value)
			c = r.Next
		}
	}
}

// Many1 is like Many, but fails if there is not at least one match.
func Many1[T any](p Parser[T]) Parser[[]T] {
	return func(c Cursor) Result[[]T] {
		first := p(c)
		if first.Err != nil {
			return fail[[]T](c, first.Err)
		}
		rest := Many(p)(first.Next)
		return Ok(append([]T{first.Value}, rest.Value...), rest.Next)
	}
}

// Seq applies parsers of the same type in order, collecting their values.
// It fails at the first parser that fails, consuming nothing.
func Seq[T any](parsers ...Parser[T]) Parser[[]T] {
	return func(c Cursor) Result[[]T] {
		values := make([]T, 0, len(parsers))
		next := c
		for _, p := range parsers {
			r := p(next)
			if r.Err != nil {
				return fail[[]T](c, r.Err)
			}
			values = append(values, r.Value)
			next = r.Next
		}
		return Ok(values, next)
	}
}

// Seq2 applies two parsers of different types in order and combines their
// values with f.
func Seq2[A, B, R any](pa Parser[A], pb Parser[B], f func(A, B) R) Parser[R] {
	return func(c Cursor) Result[R] {
		ra := pa(c)
		if ra.Err != nil {
			return fail[R](c, ra.Err)
		}
		rb := pb(ra.Next)
		if rb.Err != nil {
			return fail[R](c, rb.Err)
		}
		return Ok(f(ra.Value, rb.Value), rb.Next)
	}
}

// Seq3 applies three parsers of different types in order and combines their
// values with f.
func Seq3[A, B, C, R any](pa Parser[A], pb Parser[B], pc Parser[C], f func(A, B, C) R) Parser[R] {
	return func(c Cursor) Result[R] {
		ra := pa(c)
		if ra.Err != nil {
			return fail[R](c, ra.Err)
		}
		rb := pb(ra.Next)
		if rb.Err != nil {
			return fail[R](c, rb.Err)
		}
		rc := pc(rb.Next)
		if rc.Err != nil {
			return fail[R](c, rc.Err)
		}
		return Ok(f(ra.Value, rb.Value, rc.Value), rc.Next)
	}
}

// Label replaces the message of a failure with name, keeping its position.
// Use it to surface "link destination" instead of a leaf-level message.
func Label[T any](p Parser[T], name string) Parser[T] {
	return func(c Cursor) Result[T] {
		r := p(c)
		if r.Err != nil {
			return fail[T](c, &Error{Pos: r.Err.Pos, Msg: name, Underlying: r.Err.Underlying})
		}
		return r
	}
}

// Satisfy consumes a single rune for which pred returns true.
func Satisfy(pred func(rune) bool) Parser[rune] {
	return func(c Cursor) Result[rune] {
		r, w := c.Rune()
		if w == 0 {
			return Fail[rune](c, "unexpected end of input")
		}
		if !pred(r) {
			return Fail[rune](c, fmt.Sprintf("unexpected %q", r))
		}
		return Ok(r, c.At(c.pos+w))
	}
}
