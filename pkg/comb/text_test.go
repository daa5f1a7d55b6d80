package comb_test

import (
	"errors"
	"regexp"
	"strconv"
	"testing"

	. "parsek.dev/pkg/comb"
	"parsek.dev/pkg/tt"
)

func TestChar(t *testing.T) {
	parse := func(src string) (rune, int, bool) {
		r := Char('*')(New(src))
		return r.Value, r.Next.Pos(), r.OK()
	}
	tt.Test(t, tt.Fn("Char", parse), tt.Table{
		tt.Args("*x").Rets('*', 1, true),
		tt.Args("x*").Rets(tt.Any, 0, false),
		tt.Args("").Rets(tt.Any, 0, false),
	})
}

func TestAnyOfAndNoneOf(t *testing.T) {
	if r := AnyOf("-_*")(New("_a")); !r.OK() || r.Value != '_' {
		t.Errorf("AnyOf = (%q, ok=%v)", r.Value, r.OK())
	}
	if r := AnyOf("-_*")(New("a")); r.OK() {
		t.Errorf("AnyOf matched a rune outside the set")
	}
	if r := NoneOf("`")(New("a")); !r.OK() || r.Value != 'a' {
		t.Errorf("NoneOf = (%q, ok=%v)", r.Value, r.OK())
	}
	if r := NoneOf("`")(New("`")); r.OK() {
		t.Errorf("NoneOf matched a rune in the set")
	}
}

func TestString(t *testing.T) {
	parse := func(lit, src string) (string, int, bool) {
		r := String(lit)(New(src))
		return r.Value, r.Next.Pos(), r.OK()
	}
	tt.Test(t, tt.Fn("String", parse), tt.Table{
		tt.Args("<!--", "<!-- x").Rets("<!--", 4, true),
		tt.Args("<!--", "<!-x").Rets("", 0, false),
		tt.Args("", "x").Rets("", 0, true),
	})
}

func TestTakeWhile(t *testing.T) {
	isDash := func(r rune) bool { return r == '-' }
	if r := TakeWhile(isDash)(New("--x")); r.Value != "--" || r.Next.Pos() != 2 {
		t.Errorf("TakeWhile = (%q, %d)", r.Value, r.Next.Pos())
	}
	if r := TakeWhile(isDash)(New("x")); !r.OK() || r.Value != "" {
		t.Errorf("TakeWhile on empty prefix should succeed with %q", "")
	}
	if r := TakeWhile1(isDash)(New("x")); r.OK() {
		t.Errorf("TakeWhile1 succeeded on empty prefix")
	}
}

func TestRunOf(t *testing.T) {
	parse := func(src string) (string, bool) {
		r := RunOf('`')(New(src))
		return r.Value, r.OK()
	}
	tt.Test(t, tt.Fn("RunOf", parse), tt.Table{
		tt.Args("```x").Rets("```", true),
		tt.Args("`").Rets("`", true),
		tt.Args("x``").Rets("", false),
	})
}

func TestInt(t *testing.T) {
	parse := func(src string) (int, int, bool) {
		r := Int()(New(src))
		return r.Value, r.Next.Pos(), r.OK()
	}
	tt.Test(t, tt.Fn("Int", parse), tt.Table{
		tt.Args("0").Rets(0, 1, true),
		tt.Args("123abc").Rets(123, 3, true),
		tt.Args("007.").Rets(7, 3, true),
		tt.Args("abc").Rets(0, 0, false),
		tt.Args("").Rets(0, 0, false),
	})
}

func TestIntRange(t *testing.T) {
	r := Int()(New("12345678901234567890123"))
	if r.OK() {
		t.Fatal("want failure on out-of-range integer")
	}
	if !errors.Is(r.Err, strconv.ErrRange) {
		t.Errorf("failure not classified as a range error: %v", r.Err)
	}
	if r.Next.Pos() != 0 {
		t.Errorf("failed Int moved the cursor to %d", r.Next.Pos())
	}
}

func TestPattern(t *testing.T) {
	p := Pattern(regexp.MustCompile(`^#{1,6}`))
	if r := p(New("### x")); !r.OK() || r.Value != "###" || r.Next.Pos() != 3 {
		t.Errorf("Pattern = (%q, %d)", r.Value, r.Next.Pos())
	}
	// The match must begin exactly at the cursor.
	q := Pattern(regexp.MustCompile(`#{1,6}`))
	if r := q(New("x ###")); r.OK() {
		t.Errorf("Pattern matched away from the cursor")
	}
}

func TestEOF(t *testing.T) {
	if r := EOF()(New("")); !r.OK() {
		t.Errorf("EOF failed on empty input")
	}
	if r := EOF()(New("x")); r.OK() {
		t.Errorf("EOF succeeded with input remaining")
	}
	c := New("ab").At(2)
	if r := EOF()(c); !r.OK() || r.Next.Pos() != 2 {
		t.Errorf("EOF at end = (ok=%v, %d)", r.OK(), r.Next.Pos())
	}
}

func TestErrorString(t *testing.T) {
	r := Label(Char('x'), "marker")(New("y"))
	if r.OK() {
		t.Fatal("want failure")
	}
	if got, want := r.Err.Error(), "0: marker"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
