package lsp

import (
	"context"
	"encoding/json"
	"net"
	"reflect"
	"testing"

	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
	"parsek.dev/pkg/must"
	"parsek.dev/pkg/refstore"
)

// startServer wires a server to an in-memory connection and returns a client
// side speaking the same codec, plus a channel of published diagnostics.
func startServer(t *testing.T, st refstore.Store) (*jsonrpc2.Conn, <-chan lsp.PublishDiagnosticsParams) {
	t.Helper()
	diags := make(chan lsp.PublishDiagnosticsParams, 16)
	clientConn, serverConn := net.Pipe()
	ctx := context.Background()
	server := jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(serverConn, jsonrpc2.VSCodeObjectCodec{}),
		handler(newServer(st)))
	client := jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(clientConn, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(func(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
			if req.Method == "textDocument/publishDiagnostics" && req.Params != nil {
				var params lsp.PublishDiagnosticsParams
				if json.Unmarshal(*req.Params, &params) == nil {
					diags <- params
				}
			}
			return nil, nil
		}))
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, diags
}

func call(t *testing.T, client *jsonrpc2.Conn, method string, params, result any) {
	t.Helper()
	if err := client.Call(context.Background(), method, params, result); err != nil {
		t.Fatalf("%s: %v", method, err)
	}
}

func openDoc(t *testing.T, client *jsonrpc2.Conn, uri lsp.DocumentURI, content string) {
	t.Helper()
	err := client.Notify(context.Background(), "textDocument/didOpen",
		lsp.DidOpenTextDocumentParams{TextDocument: lsp.TextDocumentItem{
			URI: uri, LanguageID: "markdown", Version: 1, Text: content}})
	if err != nil {
		t.Fatalf("didOpen: %v", err)
	}
}

const testURI = lsp.DocumentURI("file:///test.md")

func TestInitialize(t *testing.T) {
	client, _ := startServer(t, nil)

	var got lsp.InitializeResult
	call(t, client, "initialize", lsp.InitializeParams{}, &got)

	caps := got.Capabilities
	sync := caps.TextDocumentSync
	if sync == nil || sync.Options == nil {
		t.Fatalf("got nil sync options")
	}
	if !sync.Options.OpenClose || sync.Options.Change != lsp.TDSKFull {
		t.Errorf("got sync options %+v, want open/close with full sync", *sync.Options)
	}
	if caps.CompletionProvider == nil ||
		!reflect.DeepEqual(caps.CompletionProvider.TriggerCharacters, []string{"["}) {
		t.Errorf("got completion provider %+v, want trigger on [", caps.CompletionProvider)
	}
	if !caps.HoverProvider {
		t.Errorf("hover not advertised")
	}
	if !caps.DocumentSymbolProvider {
		t.Errorf("document symbols not advertised")
	}
}

func TestUnknownMethod(t *testing.T) {
	client, _ := startServer(t, nil)

	var res any
	err := client.Call(context.Background(), "textDocument/definition", struct{}{}, &res)
	if err == nil {
		t.Errorf("unknown method -> no error, want method not found")
	}
}

func TestDidOpen_PublishesDiagnosticsForDuplicateDefs(t *testing.T) {
	client, diags := startServer(t, nil)

	openDoc(t, client, testURI, "[a]: /1\n[a]: /2\n")

	got := <-diags
	want := lsp.PublishDiagnosticsParams{
		URI: testURI,
		Diagnostics: []lsp.Diagnostic{{
			Range: lsp.Range{
				Start: lsp.Position{Line: 1, Character: 0},
				End:   lsp.Position{Line: 1, Character: 7},
			},
			Severity: lsp.Warning,
			Source:   "parsek",
			Message:  `duplicate definition for label "a"; the first definition wins`,
		}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got diagnostics %+v, want %+v", got, want)
	}
}

func TestDidChange_UpdatesContentAndDiagnostics(t *testing.T) {
	client, diags := startServer(t, nil)

	openDoc(t, client, testURI, "[a]: /1\n")
	if got := <-diags; len(got.Diagnostics) != 0 {
		t.Errorf("got %d diagnostics after open, want 0", len(got.Diagnostics))
	}

	err := client.Notify(context.Background(), "textDocument/didChange",
		lsp.DidChangeTextDocumentParams{
			TextDocument: lsp.VersionedTextDocumentIdentifier{
				TextDocumentIdentifier: lsp.TextDocumentIdentifier{URI: testURI},
				Version:                2,
			},
			ContentChanges: []lsp.TextDocumentContentChangeEvent{{Text: "[a]: /1\n[a]: /2\n"}},
		})
	if err != nil {
		t.Fatalf("didChange: %v", err)
	}
	if got := <-diags; len(got.Diagnostics) != 1 {
		t.Errorf("got %d diagnostics after change, want 1", len(got.Diagnostics))
	}
}

func TestDidChange_EmptyContentChanges(t *testing.T) {
	client, diags := startServer(t, nil)

	openDoc(t, client, testURI, "# T\n")
	<-diags

	err := client.Notify(context.Background(), "textDocument/didChange",
		lsp.DidChangeTextDocumentParams{
			TextDocument: lsp.VersionedTextDocumentIdentifier{
				TextDocumentIdentifier: lsp.TextDocumentIdentifier{URI: testURI},
				Version:                2,
			},
		})
	if err != nil {
		t.Fatalf("didChange: %v", err)
	}

	// The malformed notification is rejected; the document keeps its content
	// and the server keeps serving.
	var got []lsp.SymbolInformation
	call(t, client, "textDocument/documentSymbol",
		lsp.DocumentSymbolParams{TextDocument: lsp.TextDocumentIdentifier{URI: testURI}}, &got)
	if len(got) != 1 || got[0].Name != "# T" {
		t.Errorf("got symbols %+v, want the opened heading", got)
	}
}

func TestDocumentSymbol(t *testing.T) {
	client, _ := startServer(t, nil)
	openDoc(t, client, testURI, "# T\n\n## S\n\n[ref]: /url\n")

	var got []lsp.SymbolInformation
	call(t, client, "textDocument/documentSymbol",
		lsp.DocumentSymbolParams{TextDocument: lsp.TextDocumentIdentifier{URI: testURI}}, &got)

	want := []lsp.SymbolInformation{
		{
			Name: "# T",
			Kind: lsp.SKString,
			Location: lsp.Location{URI: testURI, Range: lsp.Range{
				Start: lsp.Position{Line: 0, Character: 0},
				End:   lsp.Position{Line: 0, Character: 3},
			}},
		},
		{
			Name: "## S",
			Kind: lsp.SKString,
			Location: lsp.Location{URI: testURI, Range: lsp.Range{
				Start: lsp.Position{Line: 2, Character: 0},
				End:   lsp.Position{Line: 2, Character: 4},
			}},
		},
		{
			Name: "[ref]",
			Kind: lsp.SKConstant,
			Location: lsp.Location{URI: testURI, Range: lsp.Range{
				Start: lsp.Position{Line: 4, Character: 0},
				End:   lsp.Position{Line: 4, Character: 11},
			}},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got symbols %+v, want %+v", got, want)
	}
}

func TestDocumentSymbol_UnopenedDoc(t *testing.T) {
	client, _ := startServer(t, nil)

	var got []lsp.SymbolInformation
	call(t, client, "textDocument/documentSymbol",
		lsp.DocumentSymbolParams{TextDocument: lsp.TextDocumentIdentifier{URI: testURI}}, &got)
	if len(got) != 0 {
		t.Errorf("got %d symbols for unopened document, want 0", len(got))
	}
}

func TestDidClose_DropsContent(t *testing.T) {
	client, _ := startServer(t, nil)
	openDoc(t, client, testURI, "# T\n")

	err := client.Notify(context.Background(), "textDocument/didClose",
		lsp.DidCloseTextDocumentParams{TextDocument: lsp.TextDocumentIdentifier{URI: testURI}})
	if err != nil {
		t.Fatalf("didClose: %v", err)
	}

	var got []lsp.SymbolInformation
	call(t, client, "textDocument/documentSymbol",
		lsp.DocumentSymbolParams{TextDocument: lsp.TextDocumentIdentifier{URI: testURI}}, &got)
	if len(got) != 0 {
		t.Errorf("got %d symbols after close, want 0", len(got))
	}
}

func completionParams(line, character int) lsp.CompletionParams {
	return lsp.CompletionParams{
		TextDocumentPositionParams: lsp.TextDocumentPositionParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: testURI},
			Position:     lsp.Position{Line: line, Character: character},
		},
	}
}

func TestCompletion(t *testing.T) {
	client, _ := startServer(t, nil)
	openDoc(t, client, testURI, "[a]: /1\n[b]: /2\n\nsee [\n")

	var got []lsp.CompletionItem
	call(t, client, "textDocument/completion", completionParams(3, 5), &got)

	cursor := lsp.Range{
		Start: lsp.Position{Line: 3, Character: 5},
		End:   lsp.Position{Line: 3, Character: 5},
	}
	want := []lsp.CompletionItem{
		{Label: "a", Kind: lsp.CIKReference, Detail: "/1",
			TextEdit: &lsp.TextEdit{Range: cursor, NewText: "a"}},
		{Label: "b", Kind: lsp.CIKReference, Detail: "/2",
			TextEdit: &lsp.TextEdit{Range: cursor, NewText: "b"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got items %+v, want %+v", got, want)
	}
}

func TestCompletion_WithStore(t *testing.T) {
	st, cleanup := refstore.MustGetTempStore()
	t.Cleanup(cleanup)
	must.OK(st.Add("a", refstore.Def{Dest: "/stored", File: "other.md"}))
	must.OK(st.Add("c", refstore.Def{Dest: "/3", Title: "C", File: "other.md"}))

	client, _ := startServer(t, st)
	openDoc(t, client, testURI, "[a]: /1\n[b]: /2\n\nsee [\n")

	var got []lsp.CompletionItem
	call(t, client, "textDocument/completion", completionParams(3, 5), &got)

	if len(got) != 3 {
		t.Fatalf("got %d items, want 3", len(got))
	}
	// The document's definition of a shadows the stored one.
	if got[0].Label != "a" || got[0].Detail != "/1" {
		t.Errorf("got first item %+v, want a -> /1", got[0])
	}
	if got[2].Label != "c" || got[2].Detail != "/3" || got[2].Documentation != "C" {
		t.Errorf("got third item %+v, want c -> /3 with title C", got[2])
	}
}

func TestCompletion_OutsideLabel(t *testing.T) {
	client, _ := startServer(t, nil)
	openDoc(t, client, testURI, "[a]: /1\n\nsee [\n")

	var got []lsp.CompletionItem
	call(t, client, "textDocument/completion", completionParams(2, 2), &got)
	if len(got) != 0 {
		t.Errorf("got %d items outside a label, want 0", len(got))
	}
}

func hoverParams(line, character int) lsp.TextDocumentPositionParams {
	return lsp.TextDocumentPositionParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: testURI},
		Position:     lsp.Position{Line: line, Character: character},
	}
}

func TestHover_ResolvedReference(t *testing.T) {
	client, _ := startServer(t, nil)
	openDoc(t, client, testURI, "see [a]\n\n[a]: /url \"T\"\n")

	var got lsp.Hover
	call(t, client, "textDocument/hover", hoverParams(0, 5), &got)

	rng := lsp.Range{
		Start: lsp.Position{Line: 0, Character: 5},
		End:   lsp.Position{Line: 0, Character: 6},
	}
	want := lsp.Hover{
		Contents: []lsp.MarkedString{lsp.RawMarkedString(`/url "T"`)},
		Range:    &rng,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got hover %+v, want %+v", got, want)
	}
}

func TestHover_StoredLabel(t *testing.T) {
	st, cleanup := refstore.MustGetTempStore()
	t.Cleanup(cleanup)
	must.OK(st.Add("c", refstore.Def{Dest: "/3", Title: "C", File: "other.md"}))

	client, _ := startServer(t, st)
	openDoc(t, client, testURI, "see [c]\n")

	var got lsp.Hover
	call(t, client, "textDocument/hover", hoverParams(0, 5), &got)

	rng := lsp.Range{
		Start: lsp.Position{Line: 0, Character: 5},
		End:   lsp.Position{Line: 0, Character: 6},
	}
	want := lsp.Hover{
		Contents: []lsp.MarkedString{lsp.RawMarkedString("/3 \"C\"\ndefined in other.md")},
		Range:    &rng,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got hover %+v, want %+v", got, want)
	}
}

func TestHover_NoLinkUnderCursor(t *testing.T) {
	client, _ := startServer(t, nil)
	openDoc(t, client, testURI, "see [a]\n\n[a]: /url\n")

	var got lsp.Hover
	call(t, client, "textDocument/hover", hoverParams(0, 1), &got)
	if len(got.Contents) != 0 || got.Range != nil {
		t.Errorf("got hover %+v, want empty", got)
	}
}

var positionTests = []struct {
	s   string
	idx int
	pos lsp.Position
}{
	{"ab", 0, lsp.Position{Line: 0, Character: 0}},
	{"ab", 2, lsp.Position{Line: 0, Character: 2}},
	{"ab\ncd", 4, lsp.Position{Line: 1, Character: 1}},
	// An astral character takes four UTF-8 bytes but two UTF-16 units.
	{"\U0001D49Cb", 4, lsp.Position{Line: 0, Character: 2}},
}

func TestPositionMapping(t *testing.T) {
	for _, test := range positionTests {
		if got := lspPositionFromIdx(test.s, test.idx); got != test.pos {
			t.Errorf("lspPositionFromIdx(%q, %d) = %v, want %v", test.s, test.idx, got, test.pos)
		}
		if got := lspPositionToIdx(test.s, test.pos); got != test.idx {
			t.Errorf("lspPositionToIdx(%q, %v) = %v, want %v", test.s, test.pos, got, test.idx)
		}
	}
}

func TestPositionMapping_CRLF(t *testing.T) {
	if got := lspPositionFromIdx("a\r\nb", 3); got != (lsp.Position{Line: 1, Character: 0}) {
		t.Errorf("lspPositionFromIdx = %v, want 1:0", got)
	}
	// The \n of a \r\n sequence maps to the same position as the character
	// after it; the smaller index wins in the reverse direction.
	if got := lspPositionToIdx("a\r\nb", lsp.Position{Line: 1, Character: 0}); got != 2 {
		t.Errorf("lspPositionToIdx = %v, want 2", got)
	}
}

func TestPositionMapping_PastEnd(t *testing.T) {
	if got := lspPositionToIdx("ab", lsp.Position{Line: 5, Character: 0}); got != 2 {
		t.Errorf("lspPositionToIdx = %v, want 2", got)
	}
}
