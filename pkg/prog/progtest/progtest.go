// Package progtest provides a framework for testing subprograms.
//
// The entry point of the framework is the Test function, which accepts a
// *testing.T, the Program implementation under test, and any number of test
// cases.
//
// Test cases are constructed using the ThatParsek function, followed by
// method calls that add arguments, stdin and expectations to it:
//
//	Test(t, someProgram,
//		ThatParsek("-version").WritesStdoutContaining("0."))
package progtest

import (
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"parsek.dev/pkg/must"
	"parsek.dev/pkg/prog"
)

// Case is a test case that can be used in Test.
type Case struct {
	args  []string
	stdin string
	want  result
}

type result struct {
	exit   int
	stdout output
	stderr output
}

type output struct {
	content string
	partial bool
}

func (o output) String() string {
	if o.partial {
		return fmt.Sprintf("text containing %q", o.content)
	}
	return fmt.Sprintf("%q", o.content)
}

// ThatParsek returns a new Case with the given CLI arguments.
func ThatParsek(args ...string) Case {
	return Case{args: append([]string{"parsek"}, args...)}
}

// WithStdin returns an altered Case that provides the given input to the
// stdin of the program.
func (c Case) WithStdin(s string) Case {
	c.stdin = s
	return c
}

// DoesNothing returns c itself. It is useful to mark tests that otherwise
// don't have any expectations, for example:
//
//	ThatParsek("-log", "/dev/null").DoesNothing()
func (c Case) DoesNothing() Case {
	return c
}

// ExitsWith returns an altered Case that requires the program run to return
// with the given exit code.
func (c Case) ExitsWith(code int) Case {
	c.want.exit = code
	return c
}

// WritesStdout returns an altered Case that requires the program run to write
// exactly the given text to stdout.
func (c Case) WritesStdout(s string) Case {
	c.want.stdout = output{content: s}
	return c
}

// WritesStdoutContaining returns an altered Case that requires the program
// run to write output to stdout that contains the given text as a substring.
func (c Case) WritesStdoutContaining(s string) Case {
	c.want.stdout = output{content: s, partial: true}
	return c
}

// WritesStderr returns an altered Case that requires the program run to write
// exactly the given text to stderr.
func (c Case) WritesStderr(s string) Case {
	c.want.stderr = output{content: s}
	return c
}

// WritesStderrContaining returns an altered Case that requires the program
// run to write output to stderr that contains the given text as a substring.
func (c Case) WritesStderrContaining(s string) Case {
	c.want.stderr = output{content: s, partial: true}
	return c
}

// Test runs test cases against a given program.
func Test(t *testing.T, p prog.Program, cases ...Case) {
	t.Helper()
	for _, c := range cases {
		t.Run(strings.Join(c.args[1:], " "), func(t *testing.T) {
			t.Helper()
			r := run(p, c.args, c.stdin)
			if r.exit != c.want.exit {
				t.Errorf("got exit code %v, want %v", r.exit, c.want.exit)
			}
			if !matchOutput(r.stdout, c.want.stdout) {
				t.Errorf("got stdout %v, want %v", r.stdout, c.want.stdout)
			}
			if !matchOutput(r.stderr, c.want.stderr) {
				t.Errorf("got stderr %v, want %v", r.stderr, c.want.stderr)
			}
		})
	}
}

// Run runs a Program with the given arguments and stdin content, and returns
// the exit code and the content of stdout and stderr.
func Run(p prog.Program, args []string, stdin string) (exit int, stdout, stderr string) {
	r := run(p, append([]string{"parsek"}, args...), stdin)
	return r.exit, r.stdout.content, r.stderr.content
}

func matchOutput(got, want output) bool {
	if want.partial {
		return strings.Contains(got.content, want.content)
	}
	return got.content == want.content
}

type capturedOutput struct {
	w *os.File
	// Populated after the channel is closed.
	content string
	done    chan struct{}
}

// Starts capturing of one output stream. Uses a pipe, with a goroutine
// draining the read end continuously so that the program under test never
// blocks on a full pipe buffer.
func captureOutput() *capturedOutput {
	r, w := must.OK2(os.Pipe())
	c := &capturedOutput{w: w, done: make(chan struct{})}
	go func() {
		c.content = string(must.OK1(io.ReadAll(r)))
		r.Close()
		close(c.done)
	}()
	return c
}

func (c *capturedOutput) get() string {
	c.w.Close()
	<-c.done
	return c.content
}

func run(p prog.Program, args []string, stdin string) result {
	r0, w0 := must.OK2(os.Pipe())
	// Write stdin in a goroutine so that big inputs don't block.
	go func() {
		w0.WriteString(stdin)
		w0.Close()
	}()
	defer r0.Close()

	stdout := captureOutput()
	stderr := captureOutput()

	exit := prog.Run([3]*os.File{r0, stdout.w, stderr.w}, args, p)
	return result{exit, output{content: stdout.get()}, output{content: stderr.get()}}
}
