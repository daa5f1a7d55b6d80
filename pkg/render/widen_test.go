package render

import (
	"testing"

	"parsek.dev/pkg/tt"
)

func TestWidenBreaks(t *testing.T) {
	tt.Test(t, tt.Fn("widenBreaks", widenBreaks), tt.Table{
		tt.Args("a\n\n---\n\nb\n", 10).Rets("a\n\n----------\n\nb\n"),
		// Internal spaces are part of the break and get replaced too.
		tt.Args("- - -\n", 6).Rets("------\n"),
		// Breaks inside containers and indented breaks keep their offset,
		// so the line still ends at the terminal edge.
		tt.Args("> ***\n", 8).Rets("> ******\n"),
		tt.Args("   ___\n", 10).Rets("   _______\n"),
		tt.Args("no break\n", 10).Rets("no break\n"),
		// Never narrow a break below the minimum valid run.
		tt.Args("-----\n", 1).Rets("---\n"),
	})
}
