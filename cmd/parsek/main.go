// Parsek is a CommonMark processor. By default it renders markdown to HTML,
// or to highlighted source when stdout is a terminal; it can also print the
// parse tree or the recognized spans, serve the language server protocol, and
// maintain an index of link reference definitions.
package main

import (
	"os"

	"parsek.dev/pkg/buildinfo"
	"parsek.dev/pkg/lsp"
	"parsek.dev/pkg/prog"
	"parsek.dev/pkg/refstore"
	"parsek.dev/pkg/render"
)

func main() {
	os.Exit(prog.Run(
		[3]*os.File{os.Stdin, os.Stdout, os.Stderr}, os.Args,
		prog.Composite(
			&buildinfo.Program{}, &lsp.Program{}, &refstore.Program{},
			&render.Program{})))
}
