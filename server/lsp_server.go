package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/lexcodex/xmodel/framework/model"
	"github.com/lexcodex/xmodel/framework/parser"
	"github.com/lexcodex/xmodel/framework/workspace"
)

// diagnosticSource tags every published diagnostic.
const diagnosticSource = "xmodel"

// LSPServer answers language server requests for model files.
type LSPServer struct {
	session *workspace.Session
	logger  *log.Logger

	mu       sync.Mutex
	conn     *jsonrpc2.Conn
	root     string
	shutdown bool
}

// contentChange mirrors TextDocumentContentChangeEvent with an optional
// range; a change without one replaces the whole document.
type contentChange struct {
	Range *protocol.Range `json:"range,omitempty"`
	Text  string          `json:"text"`
}

type didChangeParams struct {
	TextDocument   protocol.TextDocumentIdentifier `json:"textDocument"`
	ContentChanges []contentChange                 `json:"contentChanges"`
}

// NewLSPServer builds a server over session. A nil logger discards output.
func NewLSPServer(session *workspace.Session, logger *log.Logger) *LSPServer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &LSPServer{session: session, logger: logger}
}

// Serve handles one client connection until it disconnects or ctx is
// cancelled.
func (s *LSPServer) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	select {
	case <-ctx.Done():
		_ = conn.Close()
		return ctx.Err()
	case <-conn.DisconnectNotify():
		return nil
	}
}

func (s *LSPServer) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	s.mu.Lock()
	down := s.shutdown
	s.mu.Unlock()
	if down && req.Method != "exit" {
		if req.Notif {
			return nil, nil
		}
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: "server is shutting down"}
	}

	switch req.Method {
	case "initialize":
		var params protocol.InitializeParams
		if err := decode(req, &params); err != nil {
			return nil, err
		}
		return s.initialize(params), nil
	case "initialized":
		s.loadWorkspace(ctx, conn)
		return nil, nil
	case "shutdown":
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		return nil, nil
	case "exit":
		go conn.Close()
		return nil, nil
	case "textDocument/didOpen":
		var params protocol.DidOpenTextDocumentParams
		if err := decode(req, &params); err != nil {
			return nil, err
		}
		if err := s.session.Open(string(params.TextDocument.URI), params.TextDocument.Text); err != nil {
			s.logger.Printf("lsp: open %s: %v", params.TextDocument.URI, err)
		}
		s.publishAll(ctx, conn)
		return nil, nil
	case "textDocument/didChange":
		var params didChangeParams
		if err := decode(req, &params); err != nil {
			return nil, err
		}
		s.applyChanges(string(params.TextDocument.URI), params.ContentChanges)
		s.publishAll(ctx, conn)
		return nil, nil
	case "textDocument/didClose":
		var params protocol.DidCloseTextDocumentParams
		if err := decode(req, &params); err != nil {
			return nil, err
		}
		uri := string(params.TextDocument.URI)
		if err := s.session.Close(uri); err != nil {
			s.logger.Printf("lsp: close %s: %v", uri, err)
		}
		if _, known := s.session.Text(uri); !known {
			// Clear what the editor still shows for the closed file.
			s.publish(ctx, conn, uri)
		}
		s.publishAll(ctx, conn)
		return nil, nil
	case "textDocument/didSave":
		s.publishAll(ctx, conn)
		return nil, nil
	case "textDocument/definition":
		var params protocol.TextDocumentPositionParams
		if err := decode(req, &params); err != nil {
			return nil, err
		}
		return toLocations(s.session.Definition(string(params.TextDocument.URI), fromPosition(params.Position))), nil
	case "textDocument/references":
		var params protocol.ReferenceParams
		if err := decode(req, &params); err != nil {
			return nil, err
		}
		locs := s.session.References(string(params.TextDocument.URI), fromPosition(params.Position), params.Context.IncludeDeclaration)
		return toLocations(locs), nil
	case "textDocument/documentSymbol":
		var params protocol.DocumentSymbolParams
		if err := decode(req, &params); err != nil {
			return nil, err
		}
		return toDocumentSymbols(s.session.Outline(string(params.TextDocument.URI))), nil
	case "workspace/symbol":
		var params protocol.WorkspaceSymbolParams
		if err := decode(req, &params); err != nil {
			return nil, err
		}
		return toSymbolInformation(s.session.WorkspaceSymbols(params.Query)), nil
	case "textDocument/completion":
		var params protocol.TextDocumentPositionParams
		if err := decode(req, &params); err != nil {
			return nil, err
		}
		items := s.session.Completion(string(params.TextDocument.URI), fromPosition(params.Position))
		return toCompletionItems(items), nil
	default:
		if req.Notif {
			return nil, nil
		}
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not handled: " + req.Method}
	}
}

func decode(req *jsonrpc2.Request, v interface{}) error {
	if req.Params == nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

// initialize records the workspace root and advertises capabilities.
func (s *LSPServer) initialize(params protocol.InitializeParams) map[string]interface{} {
	client := "unknown client"
	if params.ClientInfo != nil && params.ClientInfo.Name != "" {
		client = params.ClientInfo.Name
	}
	s.logger.Printf("lsp: initialize from %s (root %q)", client, params.RootURI)
	s.mu.Lock()
	if params.RootURI != "" {
		s.root = model.URIToPath(string(params.RootURI))
	}
	s.mu.Unlock()
	return map[string]interface{}{
		"capabilities": map[string]interface{}{
			// Incremental sync.
			"textDocumentSync": map[string]interface{}{
				"openClose": true,
				"change":    2,
				"save":      true,
			},
			"definitionProvider":      true,
			"referencesProvider":      true,
			"documentSymbolProvider":  true,
			"workspaceSymbolProvider": true,
			"completionProvider": map[string]interface{}{
				"triggerCharacters": []string{"<", "\"", " "},
			},
		},
		"serverInfo": map[string]interface{}{"name": "xmodel"},
	}
}

func (s *LSPServer) loadWorkspace(ctx context.Context, conn *jsonrpc2.Conn) {
	s.mu.Lock()
	root := s.root
	s.mu.Unlock()
	if root == "" {
		return
	}
	n, err := s.session.Load(ctx, root)
	if err != nil {
		s.logger.Printf("lsp: load %s: %v", root, err)
	}
	s.logger.Printf("lsp: indexed %d files under %s", n, root)
	s.publishAll(ctx, conn)
}

func (s *LSPServer) applyChanges(uri string, changes []contentChange) {
	for _, ch := range changes {
		var err error
		if ch.Range == nil {
			err = s.session.Replace(uri, ch.Text)
		} else {
			err = s.session.Change(uri, []parser.Change{{Range: fromRange(*ch.Range), Text: ch.Text}})
		}
		if err != nil {
			s.logger.Printf("lsp: change %s: %v", uri, err)
			if errors.Is(err, workspace.ErrDocumentNotOpen) {
				return
			}
		}
	}
}

// publishAll republishes every known document; references cross files, so
// one edit may change the diagnostics of others.
func (s *LSPServer) publishAll(ctx context.Context, conn *jsonrpc2.Conn) {
	for _, uri := range s.session.Documents() {
		s.publish(ctx, conn, uri)
	}
}

func (s *LSPServer) publish(ctx context.Context, conn *jsonrpc2.Conn, uri string) {
	params := protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(uri),
		Diagnostics: toDiagnostics(s.session.Diagnostics(uri)),
	}
	if err := conn.Notify(ctx, "textDocument/publishDiagnostics", params); err != nil {
		s.logger.Printf("lsp: publish %s: %v", uri, err)
	}
}
