// Package lsp implements a language server for Markdown documents.
package lsp

import (
	"context"
	"os"

	"github.com/sourcegraph/jsonrpc2"
	"parsek.dev/pkg/prog"
	"parsek.dev/pkg/refstore"
)

// Program is the LSP subprogram.
type Program struct {
	run    bool
	dbPath *string
}

func (p *Program) RegisterFlags(fs *prog.FlagSet) {
	fs.BoolVar(&p.run, "lsp", false, "Run a language server instead of rendering")
	p.dbPath = fs.StorePath()
}

func (p *Program) Run(fds [3]*os.File, args []string) error {
	if !p.run {
		return prog.ErrNextProgram
	}
	if len(args) > 0 {
		return prog.BadUsage("arguments are not allowed with -lsp")
	}

	// Labels from the reference database are offered in completion in
	// addition to those defined in the open document.
	var st refstore.Store
	if *p.dbPath != "" {
		var err error
		st, err = refstore.NewStore(*p.dbPath)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn := jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(transport{fds[0], fds[1]}, jsonrpc2.VSCodeObjectCodec{}),
		handler(newServer(st)))
	<-conn.DisconnectNotify()
	return nil
}

type transport struct{ in, out *os.File }

func (c transport) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c transport) Write(p []byte) (int, error) { return c.out.Write(p) }

func (c transport) Close() error {
	if err := c.in.Close(); err != nil {
		c.out.Close()
		return err
	}
	return c.out.Close()
}
