package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
	"parsek.dev/pkg/diag"
	"parsek.dev/pkg/logutil"
	"parsek.dev/pkg/md"
	"parsek.dev/pkg/refstore"
	"parsek.dev/pkg/span"
)

var logger = logutil.GetLogger("[lsp] ")

var (
	errMethodNotFound = &jsonrpc2.Error{
		Code: jsonrpc2.CodeMethodNotFound, Message: "method not found"}
	errInvalidParams = &jsonrpc2.Error{
		Code: jsonrpc2.CodeInvalidParams, Message: "invalid params"}
)

type server struct {
	// Nil when no reference database is attached.
	store   refstore.Store
	content map[lsp.DocumentURI]string
}

func newServer(st refstore.Store) *server {
	return &server{st, make(map[lsp.DocumentURI]string)}
}

func handler(s *server) jsonrpc2.Handler {
	return routingHandler(map[string]method{
		"initialize":                  s.initialize,
		"textDocument/didOpen":        s.didOpen,
		"textDocument/didChange":      s.didChange,
		"textDocument/didClose":       s.didClose,
		"textDocument/hover":          s.hover,
		"textDocument/completion":     s.completion,
		"textDocument/documentSymbol": s.documentSymbol,

		// Required by spec.
		"initialized": noop,
		// Called by clients even when server doesn't advertise support:
		// https://microsoft.github.io/language-server-protocol/specification#workspace_didChangeWatchedFiles
		"workspace/didChangeWatchedFiles": noop,
	})
}

type method func(context.Context, jsonrpc2.JSONRPC2, json.RawMessage) (any, error)

func noop(_ context.Context, _ jsonrpc2.JSONRPC2, _ json.RawMessage) (any, error) {
	return nil, nil
}

func routingHandler(methods map[string]method) jsonrpc2.Handler {
	return jsonrpc2.HandlerWithError(func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
		fn, ok := methods[req.Method]
		if !ok {
			return nil, errMethodNotFound
		}
		return fn(ctx, conn, *req.Params)
	})
}

// Handler implementations. These are all called synchronously.

func (s *server) initialize(_ context.Context, _ jsonrpc2.JSONRPC2, _ json.RawMessage) (any, error) {
	return &lsp.InitializeResult{
		Capabilities: lsp.ServerCapabilities{
			TextDocumentSync: &lsp.TextDocumentSyncOptionsOrKind{
				Options: &lsp.TextDocumentSyncOptions{
					OpenClose: true,
					Change:    lsp.TDSKFull,
				},
			},
			CompletionProvider: &lsp.CompletionOptions{
				TriggerCharacters: []string{"["},
			},
			HoverProvider:          true,
			DocumentSymbolProvider: true,
		},
	}, nil
}

func (s *server) didOpen(ctx context.Context, conn jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params lsp.DidOpenTextDocumentParams
	if json.Unmarshal(rawParams, &params) != nil {
		return nil, errInvalidParams
	}

	uri, content := params.TextDocument.URI, params.TextDocument.Text
	s.content[uri] = content
	go publishDiagnostics(ctx, conn, uri, content)
	return nil, nil
}

func (s *server) didChange(ctx context.Context, conn jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params lsp.DidChangeTextDocumentParams
	if json.Unmarshal(rawParams, &params) != nil {
		return nil, errInvalidParams
	}

	// ContentChanges includes full text since the server is only advertised to
	// support that; see the initialize method.
	if len(params.ContentChanges) == 0 {
		return nil, errInvalidParams
	}
	uri, content := params.TextDocument.URI, params.ContentChanges[0].Text
	s.content[uri] = content
	go publishDiagnostics(ctx, conn, uri, content)
	return nil, nil
}

func (s *server) didClose(_ context.Context, _ jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params lsp.DidCloseTextDocumentParams
	if json.Unmarshal(rawParams, &params) != nil {
		return nil, errInvalidParams
	}

	delete(s.content, params.TextDocument.URI)
	return nil, nil
}

func (s *server) documentSymbol(_ context.Context, _ jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params lsp.DocumentSymbolParams
	if json.Unmarshal(rawParams, &params) != nil {
		return nil, errInvalidParams
	}

	uri := params.TextDocument.URI
	content, ok := s.content[uri]
	if !ok {
		return []lsp.SymbolInformation{}, nil
	}

	// Headings form the outline; definitions are included so that clients
	// can jump to them by label.
	syms := []lsp.SymbolInformation{}
	eachBlock(md.Parse(content).Blocks, func(b md.Block) {
		switch b := b.(type) {
		case *md.Heading:
			syms = append(syms, lsp.SymbolInformation{
				Name:     strings.Repeat("#", b.Level) + " " + md.PlainText(b.Content),
				Kind:     lsp.SKString,
				Location: lsp.Location{URI: uri, Range: lspRangeFromRange(content, b)},
			})
		case *md.LinkReferenceDefinition:
			syms = append(syms, lsp.SymbolInformation{
				Name:     "[" + b.Label + "]",
				Kind:     lsp.SKConstant,
				Location: lsp.Location{URI: uri, Range: lspRangeFromRange(content, b)},
			})
		}
	})
	return syms, nil
}

func (s *server) hover(_ context.Context, _ jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params lsp.TextDocumentPositionParams
	if json.Unmarshal(rawParams, &params) != nil {
		return nil, errInvalidParams
	}

	content, ok := s.content[params.TextDocument.URI]
	if !ok {
		return lsp.Hover{}, nil
	}

	var sink span.Sink
	doc := md.ParseTagged(content, &sink)
	idx := lspPositionToIdx(content, params.Position)

	for _, sp := range sink.Spans() {
		if idx < sp.From || idx >= sp.To {
			continue
		}
		switch sp.Type {
		case span.LinkLabel:
			// A label only gets this span when it resolves in the document.
			label := md.NormalizeLabel(content[sp.From:sp.To])
			if ref, ok := doc.Refs[label]; ok {
				return hoverAt(content, sp.Ranging, formatDest(ref.Dest, ref.Title, "")), nil
			}
		case span.LinkDestination, span.LinkTitle, span.AutolinkURL:
			return hoverAt(content, sp.Ranging, content[sp.From:sp.To]), nil
		}
	}

	// An unresolved reference is literal text and gets no spans, but hovering
	// it can still answer from the reference database.
	if s.store != nil {
		if from, to := bracketedRunAround(content, idx); from >= 0 {
			if def, err := s.store.Lookup(md.NormalizeLabel(content[from:to])); err == nil {
				r := diag.Ranging{From: from, To: to}
				return hoverAt(content, r, formatDest(def.Dest, def.Title, def.File)), nil
			}
		}
	}
	return lsp.Hover{}, nil
}

// bracketedRunAround returns the range of the bracket-free run enclosed by [
// and ] around idx, or (-1, -1) if there is none on the line.
func bracketedRunAround(content string, idx int) (int, int) {
	start := labelQueryStart(content, idx)
	if start < 0 {
		return -1, -1
	}
	for i := idx; i < len(content); i++ {
		switch content[i] {
		case ']':
			return start, i
		case '[', '\n':
			return -1, -1
		}
	}
	return -1, -1
}

func formatDest(dest, title, file string) string {
	s := dest
	if title != "" {
		s += fmt.Sprintf(" %q", title)
	}
	if file != "" {
		s += "\ndefined in " + file
	}
	return s
}

func hoverAt(content string, r diag.Ranging, text string) lsp.Hover {
	rng := lspRangeFromRange(content, r)
	return lsp.Hover{
		Contents: []lsp.MarkedString{lsp.RawMarkedString(text)},
		Range:    &rng,
	}
}

func (s *server) completion(_ context.Context, _ jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params lsp.CompletionParams
	if json.Unmarshal(rawParams, &params) != nil {
		return nil, errInvalidParams
	}

	content, ok := s.content[params.TextDocument.URI]
	if !ok {
		return []lsp.CompletionItem{}, nil
	}

	idx := lspPositionToIdx(content, params.Position)
	start := labelQueryStart(content, idx)
	if start < 0 {
		return []lsp.CompletionItem{}, nil
	}
	lspRange := lsp.Range{
		Start: lspPositionFromIdx(content, start),
		End:   lspPositionFromIdx(content, idx),
	}

	// Labels defined in the open document shadow stored ones.
	defs := make(map[string]refstore.Def)
	if s.store != nil {
		labels, err := s.store.Labels()
		if err != nil {
			logger.Println("list labels:", err)
		}
		for _, label := range labels {
			if def, err := s.store.Lookup(label); err == nil {
				defs[label] = def
			}
		}
	}
	for label, ref := range md.Parse(content).Refs {
		defs[label] = refstore.Def{Dest: ref.Dest, Title: ref.Title}
	}

	lspItems := make([]lsp.CompletionItem, 0, len(defs))
	for label, def := range defs {
		lspItems = append(lspItems, lsp.CompletionItem{
			Label:         label,
			Kind:          lsp.CIKReference,
			Detail:        def.Dest,
			Documentation: def.Title,
			TextEdit: &lsp.TextEdit{
				Range:   lspRange,
				NewText: label,
			},
		})
	}
	sort.Slice(lspItems, func(i, j int) bool { return lspItems[i].Label < lspItems[j].Label })
	return lspItems, nil
}

// labelQueryStart returns the index right after the [ that opens the label
// being typed at idx, or -1 if idx is not inside one.
func labelQueryStart(content string, idx int) int {
	for i := idx - 1; i >= 0; i-- {
		switch content[i] {
		case '[':
			return i + 1
		case ']', '\n':
			return -1
		}
	}
	return -1
}

func publishDiagnostics(ctx context.Context, conn jsonrpc2.JSONRPC2, uri lsp.DocumentURI, content string) {
	conn.Notify(ctx, "textDocument/publishDiagnostics",
		lsp.PublishDiagnosticsParams{URI: uri, Diagnostics: diagnostics(content)})
}

// diagnostics reports duplicate link reference definitions. Parsing cannot
// fail, so these are the only diagnostics.
func diagnostics(content string) []lsp.Diagnostic {
	diags := []lsp.Diagnostic{}
	seen := make(map[string]bool)
	eachBlock(md.Parse(content).Blocks, func(b md.Block) {
		lrd, ok := b.(*md.LinkReferenceDefinition)
		if !ok {
			return
		}
		if seen[lrd.Label] {
			diags = append(diags, lsp.Diagnostic{
				Range:    lspRangeFromRange(content, lrd),
				Severity: lsp.Warning,
				Source:   "parsek",
				Message:  fmt.Sprintf("duplicate definition for label %q; the first definition wins", lrd.Label),
			})
		}
		seen[lrd.Label] = true
	})
	return diags
}

// eachBlock calls f on every block in blocks, recursing into containers.
func eachBlock(blocks []md.Block, f func(md.Block)) {
	for _, b := range blocks {
		f(b)
		switch b := b.(type) {
		case *md.BlockQuote:
			eachBlock(b.Blocks, f)
		case *md.BulletList:
			for _, item := range b.Items {
				eachBlock(item.Blocks, f)
			}
		case *md.OrderedList:
			for _, item := range b.Items {
				eachBlock(item.Blocks, f)
			}
		}
	}
}

func lspRangeFromRange(s string, r diag.Ranger) lsp.Range {
	rg := r.Range()
	return lsp.Range{
		Start: lspPositionFromIdx(s, rg.From),
		End:   lspPositionFromIdx(s, rg.To),
	}
}

func lspPositionToIdx(s string, pos lsp.Position) int {
	var idx int
	walkString(s, func(i int, p lsp.Position) bool {
		idx = i
		return p.Line < pos.Line || (p.Line == pos.Line && p.Character < pos.Character)
	})
	return idx
}

func lspPositionFromIdx(s string, idx int) lsp.Position {
	var pos lsp.Position
	walkString(s, func(i int, p lsp.Position) bool {
		pos = p
		return i < idx
	})
	return pos
}

// Generates (index, lspPosition) pairs in s, stopping if f returns false.
func walkString(s string, f func(i int, p lsp.Position) bool) {
	var p lsp.Position
	lastCR := false

	for i, r := range s {
		if !f(i, p) {
			return
		}
		switch {
		case r == '\r':
			p.Line++
			p.Character = 0
		case r == '\n':
			if lastCR {
				// Ignore \n if it's part of a \r\n sequence
			} else {
				p.Line++
				p.Character = 0
			}
		case r <= 0xFFFF:
			// Encoded in UTF-16 with one unit
			p.Character++
		default:
			// Encoded in UTF-16 with two units
			p.Character += 2
		}
		lastCR = r == '\r'
	}
	f(len(s), p)
}
