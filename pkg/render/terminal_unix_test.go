//go:build unix

package render_test

import (
	"os"
	"strings"
	"testing"

	"github.com/creack/pty"

	"parsek.dev/pkg/must"
	"parsek.dev/pkg/prog"
	"parsek.dev/pkg/render"
)

// On a terminal the default output format is the highlighted source, with
// thematic breaks stretched to the width of the terminal.
func TestDefaultOnTerminal(t *testing.T) {
	ptmx, tty := must.OK2(pty.Open())
	defer ptmx.Close()
	must.OK(pty.Setsize(ptmx, &pty.Winsize{Rows: 24, Cols: 20}))

	stdin, stdinW := must.Pipe()
	defer stdin.Close()
	go func() {
		stdinW.WriteString("# hi\n\n---\n")
		stdinW.Close()
	}()
	stderr := must.OK1(os.OpenFile(os.DevNull, os.O_WRONLY, 0))
	defer stderr.Close()

	exit := prog.Run([3]*os.File{stdin, tty, stderr}, []string{"parsek"}, &render.Program{})
	tty.Close()
	if exit != 0 {
		t.Fatalf("got exit code %d, want 0", exit)
	}

	buf := make([]byte, 4096)
	n, err := ptmx.Read(buf)
	if err != nil {
		t.Fatalf("read pty: %v", err)
	}
	got := string(buf[:n])
	if !strings.Contains(got, "\033[") {
		t.Errorf("output is not styled: %q", got)
	}
	if !strings.Contains(got, strings.Repeat("-", 20)) {
		t.Errorf("output does not contain a thematic break at terminal width: %q", got)
	}
}
