package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/sel/compiler"
	"github.com/chazu/sel/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "sel-lsp"

var lspLog = commonlog.GetLogger("sel.lsp")

// document is an open editor buffer and what its last parse produced.
// Every document is parsed with a fresh operator table.
type document struct {
	text   string
	units  []compiler.Unit
	errors []*compiler.SyntaxError
	ops    *compiler.OperatorTable
}

func analyze(text string) *document {
	ops := compiler.NewOperatorTable()
	units, errs := compiler.ParseProgram(text, ops)
	return &document{text: text, units: units, errors: errs, ops: ops}
}

// prototypes returns the document's functions and externs keyed by name.
func (d *document) prototypes() map[string]*compiler.Prototype {
	protos := make(map[string]*compiler.Prototype)
	for _, u := range d.units {
		switch u := u.(type) {
		case *compiler.FunctionDef:
			protos[u.Proto.Name] = u.Proto
		case *compiler.ExternDecl:
			if _, ok := protos[u.Proto.Name]; !ok {
				protos[u.Proto.Name] = u.Proto
			}
		}
	}
	return protos
}

// LspServer serves editor features for SEL documents.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]*document // URI → latest analysis

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]*document),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)
	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "SEL LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

// update re-analyzes a document and returns its diagnostics.
func (s *LspServer) update(uri protocol.DocumentUri, text string) []protocol.Diagnostic {
	doc := analyze(text)

	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()

	lspLog.Debugf("%s: %d units, %d errors", uri, len(doc.units), len(doc.errors))
	return toDiagnostics(doc.errors)
}

func (s *LspServer) document(uri protocol.DocumentUri) (*document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[string(uri)]
	return doc, ok
}

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	publish(ctx, uri, s.update(uri, params.TextDocument.Text))
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			publish(ctx, uri, s.update(uri, whole.Text))
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	publish(ctx, uri, []protocol.Diagnostic{})
	return nil
}

func publish(ctx *glsp.Context, uri protocol.DocumentUri, diagnostics []protocol.Diagnostic) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// toDiagnostics converts syntax errors to zero-based LSP ranges covering
// the offending character.
func toDiagnostics(errs []*compiler.SyntaxError) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	severity := protocol.DiagnosticSeverityError
	source := lspName
	for _, e := range errs {
		start := toPosition(e.Pos)
		end := start
		end.Character++
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    protocol.Range{Start: start, End: end},
			Severity: &severity,
			Source:   &source,
			Message:  e.Msg,
		})
	}
	return diagnostics
}

func toPosition(p compiler.Position) protocol.Position {
	line, col := p.Line-1, p.Column-1
	if line < 0 {
		line = 0
	}
	if col < 0 {
		col = 0
	}
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := extractPrefix(doc.text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return doc.complete(prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	return doc.hover(word), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	proto, ok := doc.prototypes()[word]
	if !ok {
		return nil, nil
	}
	pos := toPosition(proto.At)
	return []protocol.Location{{
		URI:   params.TextDocument.URI,
		Range: protocol.Range{Start: pos, End: pos},
	}}, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}

	var locations []protocol.Location
	for _, r := range doc.references(word) {
		locations = append(locations, protocol.Location{URI: params.TextDocument.URI, Range: r})
	}
	return locations, nil
}

// --- Document queries ---

func (d *document) complete(prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	add := func(label, detail string, kind protocol.CompletionItemKind) {
		if !strings.HasPrefix(label, prefix) {
			return
		}
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}

	for _, kw := range compiler.Keywords() {
		add(kw, "keyword", protocol.CompletionItemKindKeyword)
	}
	for _, name := range vm.BuiltinNames() {
		add(name, "builtin", protocol.CompletionItemKindFunction)
	}

	protos := d.prototypes()
	names := make([]string, 0, len(protos))
	for name := range protos {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		proto := protos[name]
		switch proto.Kind {
		case compiler.NotOperator:
			add(name, proto.String(), protocol.CompletionItemKindFunction)
		default:
			add(proto.Op, proto.String(), protocol.CompletionItemKindOperator)
		}
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

func (d *document) hover(word string) *protocol.Hover {
	var b strings.Builder
	if proto, ok := d.prototypes()[word]; ok {
		fmt.Fprintf(&b, "```sel\n%s\n```", proto.String())
		if proto.IsBinaryOp() {
			fmt.Fprintf(&b, "\n\nbinary operator, precedence %d", proto.Precedence)
		}
	} else if vm.IsBuiltin(word) {
		fmt.Fprintf(&b, "```sel\n%s(...)\n```\n\nbuiltin", word)
	} else {
		return nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// references returns the range of every identifier token spelled word.
func (d *document) references(word string) []protocol.Range {
	var ranges []protocol.Range
	for _, tok := range compiler.Tokenize(d.text) {
		if tok.Type != compiler.TokenIdentifier || tok.Literal != word {
			continue
		}
		start := toPosition(tok.Pos)
		end := start
		end.Character += protocol.UInteger(len([]rune(word)))
		ranges = append(ranges, protocol.Range{Start: start, End: end})
	}
	return ranges
}

// --- Text extraction helpers ---

func isWordChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := []rune(lines[pos.Line])
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isWordChar(line[start-1]) {
		start--
	}
	return string(line[start:col])
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := []rune(lines[pos.Line])
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isWordChar(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isWordChar(line[end]) {
		end++
	}
	return string(line[start:end])
}

func boolPtr(b bool) *bool {
	return &b
}
