package ui

import (
	"testing"

	"parsek.dev/pkg/tt"
)

var Args = tt.Args

func TestT(t *testing.T) {
	tt.Test(t, tt.Fn("T", T), tt.Table{
		Args("test").Rets(Text{&Segment{Text: "test"}}),
		Args("test red", FgRed).Rets(Text{&Segment{
			Text: "test red", Style: Style{Fg: Red}}}),
		Args("test red", FgRed, Bold).Rets(Text{&Segment{
			Text: "test red", Style: Style{Fg: Red, Bold: true}}}),
	})
}

func TestConcat(t *testing.T) {
	tt.Test(t, tt.Fn("Concat", Concat), tt.Table{
		Args().Rets(Text(nil)),
		Args(T("red", FgRed)).Rets(T("red", FgRed)),
		Args(T("red", FgRed), T("blue", FgBlue)).Rets(
			Text{&Segment{Style{Fg: Red}, "red"}, &Segment{Style{Fg: Blue}, "blue"}}),
	})
}

type textVTStringTest struct {
	text         Text
	wantVTString string
}

func testTextVTString(t *testing.T, tests []textVTStringTest) {
	t.Helper()
	for _, test := range tests {
		vtString := test.text.VTString()
		if vtString != test.wantVTString {
			t.Errorf("got VTString %q, want %q", vtString, test.wantVTString)
		}
	}
}

func TestTextVTString(t *testing.T) {
	testTextVTString(t, []textVTStringTest{
		{T("foo"), "\033[mfoo"},
		{T("foo", FgRed), "\033[;31mfoo\033[m"},
		{Concat(T("foo", FgRed), T("bar")), "\033[;31mfoo\033[m\033[mbar"},
	})
}
