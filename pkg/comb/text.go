package comb

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Char consumes the given rune.
func Char(want rune) Parser[rune] {
	return func(c Cursor) Result[rune] {
		r, w := c.Rune()
		if w == 0 || r != want {
			return Fail[rune](c, fmt.Sprintf("expected %q", want))
		}
		return Ok(r, c.At(c.pos+w))
	}
}

// AnyOf consumes one rune that appears in set.
func AnyOf(set string) Parser[rune] {
	return func(c Cursor) Result[rune] {
		r, w := c.Rune()
		if w == 0 || !strings.ContainsRune(set, r) {
			return Fail[rune](c, fmt.Sprintf("expected one of %q", set))
		}
		return Ok(r, c.At(c.pos+w))
	}
}

// NoneOf consumes one rune that does not appear in set.
func NoneOf(set string) Parser[rune] {
	return func(c Cursor) Result[rune] {
		r, w := c.Rune()
		if w == 0 || strings.ContainsRune(set, r) {
			return Fail[rune](c, fmt.Sprintf("expected none of %q", set))
		}
		return Ok(r, c.At(c.pos+w))
	}
}

// String consumes the given literal string.
func String(lit string) Parser[string] {
	return func(c Cursor) Result[string] {
		if !strings.HasPrefix(c.Rest(), lit) {
			return Fail[string](c, fmt.Sprintf("expected %q", lit))
		}
		return Ok(lit, c.At(c.pos+len(lit)))
	}
}

// TakeWhile consumes the longest prefix of runes satisfying pred. The prefix
// may be empty; TakeWhile never fails.
func TakeWhile(pred func(rune) bool) Parser[string] {
	return func(c Cursor) Result[string] {
		end := c.pos
		for {
			cc := c.At(end)
			r, w := cc.Rune()
			if w == 0 || !pred(r) {
				break
			}
			end += w
		}
		return Ok(c.src[c.pos:end], c.At(end))
	}
}

// TakeWhile1 is like TakeWhile, but fails on an empty match.
func TakeWhile1(pred func(rune) bool) Parser[string] {
	take := TakeWhile(pred)
	return func(c Cursor) Result[string] {
		r := take(c)
		if r.Value == "" {
			return Fail[string](c, "unexpected character")
		}
		return r
	}
}

// RunOf consumes the longest nonempty run of the given rune.
func RunOf(want rune) Parser[string] {
	return TakeWhile1(func(r rune) bool { return r == want })
}

// Int consumes a nonempty decimal digit sequence as an int. A sequence that
// does not fit in an int fails without consuming input; the failure
// satisfies errors.Is with strconv.ErrRange.
func Int() Parser[int] {
	digits := TakeWhile1(func(r rune) bool { return '0' <= r && r <= '9' })
	return func(c Cursor) Result[int] {
		r := digits(c)
		if r.Err != nil {
			return fail[int](c, &Error{Pos: c.pos, Msg: "expected digits"})
		}
		n, err := strconv.Atoi(r.Value)
		if err != nil {
			return fail[int](c, &Error{
				Pos: c.pos, Msg: "integer out of range", Underlying: strconv.ErrRange,
			})
		}
		return Ok(n, r.Next)
	}
}

// Pattern consumes the match of re at the cursor. The match must begin
// exactly at the cursor; anchor the pattern with ^ to avoid scanning ahead.
func Pattern(re *regexp.Regexp) Parser[string] {
	return func(c Cursor) Result[string] {
		loc := re.FindStringIndex(c.Rest())
		if loc == nil || loc[0] != 0 {
			return Fail[string](c, fmt.Sprintf("expected pattern %v", re))
		}
		return Ok(c.Rest()[:loc[1]], c.At(c.pos+loc[1]))
	}
}

// EOF succeeds only at the end of the input, consuming nothing.
func EOF() Parser[struct{}] {
	return func(c Cursor) Result[struct{}] {
		if !c.EOF() {
			return Fail[struct{}](c, "expected end of input")
		}
		return Ok(struct{}{}, c)
	}
}
