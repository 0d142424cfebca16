package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/mettalint/internal/coordinator"
	"github.com/scan-io-git/mettalint/internal/diagnostics"
	"github.com/scan-io-git/mettalint/internal/host"
	"github.com/scan-io-git/mettalint/internal/workspace"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// ServerOptions configures the language server.
type ServerOptions struct {
	Name          string
	Version       string
	Pipeline      coordinator.Options // Host fields are filled in by the server
	Include       []string            // Workspace scan include globs
	Exclude       []string            // Workspace scan exclude globs
	LintOnStartup bool
	Logger        hclog.Logger
}

// Server hosts the lint coordinator behind a stdio JSON-RPC language server.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex
	logger hclog.Logger

	name          string
	version       string
	include       []string
	exclude       []string
	lintOnStartup bool
	coord         *coordinator.Coordinator

	mu                sync.Mutex
	openDocs          map[string]string // uri -> languageId
	clientURIs        map[string]string // document key -> uri the client opened it with
	active            string
	finder            *workspace.Finder
	shutdownRequested bool

	tasks sync.WaitGroup
}

// NewServer constructs a language server reading from in and writing to out.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	name := opts.Name
	if name == "" {
		name = opts.Pipeline.Source
	}
	s := &Server{
		in:            bufio.NewReader(in),
		out:           bufio.NewWriter(out),
		logger:        logger,
		name:          name,
		version:       opts.Version,
		include:       opts.Include,
		exclude:       opts.Exclude,
		lintOnStartup: opts.LintOnStartup,
		openDocs:      make(map[string]string),
		clientURIs:    make(map[string]string),
	}

	pipeline := opts.Pipeline
	pipeline.Sink = s
	pipeline.Notifier = s
	pipeline.Finder = s
	pipeline.ActiveDocument = s.activeDocument
	if pipeline.Logger == nil {
		pipeline.Logger = logger.Named("coordinator")
	}
	s.coord = coordinator.New(pipeline)
	return s
}

// Coordinator returns the coordinator served by s.
func (s *Server) Coordinator() *coordinator.Coordinator {
	return s.coord
}

// Run serves requests until the client exits or the input is closed.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	coordDone := make(chan error, 1)
	go func() { coordDone <- s.coord.Run(ctx) }()
	defer func() {
		cancel()
		<-coordDone
		s.tasks.Wait()
	}()

	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Warn("failed to parse message", "error", err)
			continue
		}
		if msg.Method == "" {
			continue
		}
		if err := s.handleMessage(ctx, &msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, msg *rpcMessage) error {
	s.logger.Trace("message received", "method", msg.Method)
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return s.handleInitialized(ctx)
	case "shutdown":
		s.mu.Lock()
		s.shutdownRequested = true
		s.mu.Unlock()
		return s.sendResponse(msg.ID, nil)
	case "exit":
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.shutdownRequested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(ctx, msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeMethodNotFound, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "invalid params")
		}
	}

	var roots []string
	for _, folder := range params.WorkspaceFolders {
		if path := host.URIToPath(folder.URI); path != "" {
			roots = append(roots, path)
		}
	}
	if len(roots) == 0 && params.RootURI != "" {
		if path := host.URIToPath(params.RootURI); path != "" {
			roots = append(roots, path)
		}
	}
	if len(roots) == 0 && params.RootPath != "" {
		roots = append(roots, params.RootPath)
	}

	if len(roots) > 0 {
		finder, err := workspace.NewFinder(roots, s.include, s.exclude, s.logger.Named("workspace"))
		if err != nil {
			return s.sendError(msg.ID, codeInvalidParams, err.Error())
		}
		s.mu.Lock()
		s.finder = finder
		s.mu.Unlock()
	}
	s.logger.Info("initialized workspace", "roots", roots)

	return s.sendResponse(msg.ID, initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    1,
				Save:      saveOptions{IncludeText: false},
			},
			ExecuteCommandProvider: executeCommandOptions{
				Commands: []string{coordinator.CommandLint, coordinator.CommandLintAll},
			},
		},
		ServerInfo: serverInfo{Name: s.name, Version: s.version},
	})
}

func (s *Server) handleInitialized(ctx context.Context) error {
	if !s.lintOnStartup {
		return nil
	}
	s.mu.Lock()
	hasWorkspace := s.finder != nil
	s.mu.Unlock()
	if !hasWorkspace {
		return nil
	}
	s.spawn(func() {
		if _, err := s.coord.LintWorkspace(ctx); err != nil {
			s.logger.Warn("startup workspace lint failed", "error", err)
		}
	})
	return nil
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logger.Warn("ignoring notification with invalid params", "method", msg.Method, "error", err)
		return nil
	}
	uri := params.TextDocument.URI
	if uri == "" {
		return nil
	}
	doc := host.DocumentFromURI(uri, params.TextDocument.LanguageID)
	s.mu.Lock()
	s.openDocs[uri] = params.TextDocument.LanguageID
	s.clientURIs[doc.Key()] = uri
	s.active = uri
	s.mu.Unlock()
	s.coord.Open(doc)
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logger.Warn("ignoring notification with invalid params", "method", msg.Method, "error", err)
		return nil
	}
	if uri := params.TextDocument.URI; uri != "" {
		s.mu.Lock()
		s.active = uri
		s.mu.Unlock()
	}
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logger.Warn("ignoring notification with invalid params", "method", msg.Method, "error", err)
		return nil
	}
	uri := params.TextDocument.URI
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	languageID := s.openDocs[uri]
	s.active = uri
	s.mu.Unlock()
	s.coord.Save(host.DocumentFromURI(uri, languageID))
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logger.Warn("ignoring notification with invalid params", "method", msg.Method, "error", err)
		return nil
	}
	uri := params.TextDocument.URI
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	doc := host.DocumentFromURI(uri, s.openDocs[uri])
	delete(s.openDocs, uri)
	if s.active == uri {
		s.active = ""
	}
	s.mu.Unlock()
	s.coord.Close(doc)
	return nil
}

// handleExecuteCommand runs the command off the read loop and responds once it finishes.
// An optional first argument names the document the lint command targets.
func (s *Server) handleExecuteCommand(ctx context.Context, msg *rpcMessage) error {
	var params executeCommandParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	if params.Command != coordinator.CommandLint && params.Command != coordinator.CommandLintAll {
		return s.sendError(msg.ID, codeInvalidParams, fmt.Sprintf("unknown command %q", params.Command))
	}
	if params.Command == coordinator.CommandLint && len(params.Arguments) > 0 {
		var uri string
		if err := json.Unmarshal(params.Arguments[0], &uri); err == nil && uri != "" {
			s.mu.Lock()
			s.active = uri
			s.mu.Unlock()
		}
	}

	id := msg.ID
	s.spawn(func() {
		if err := s.coord.ExecuteCommand(ctx, params.Command); err != nil {
			s.logger.Debug("command finished with error", "command", params.Command, "error", err)
		}
		if err := s.sendResponse(id, nil); err != nil {
			s.logger.Warn("failed to respond to command", "command", params.Command, "error", err)
		}
	})
	return nil
}

func (s *Server) spawn(f func()) {
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		f()
	}()
}

func (s *Server) activeDocument() (host.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == "" {
		return host.Document{}, false
	}
	return host.DocumentFromURI(s.active, s.openDocs[s.active]), true
}

// Find enumerates the workspace files. It fails until a workspace root is known.
func (s *Server) Find(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	finder := s.finder
	s.mu.Unlock()
	if finder == nil {
		return nil, errors.New("no workspace folder is open")
	}
	return finder.Find(ctx)
}

// Set publishes the diagnostics of doc.
func (s *Server) Set(doc host.Document, diags []diagnostics.Diagnostic) {
	uri := s.publishURI(doc)
	if err := s.sendPublish(uri, diags); err != nil {
		s.logger.Warn("failed to publish diagnostics", "uri", uri, "error", err)
	}
}

// Delete clears the diagnostics of doc in the client.
func (s *Server) Delete(doc host.Document) {
	uri := s.publishURI(doc)
	s.mu.Lock()
	if _, open := s.openDocs[uri]; !open {
		delete(s.clientURIs, doc.Key())
	}
	s.mu.Unlock()
	if err := s.sendPublish(uri, nil); err != nil {
		s.logger.Warn("failed to clear diagnostics", "uri", uri, "error", err)
	}
}

// publishURI prefers the URI the client opened the document with.
func (s *Server) publishURI(doc host.Document) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uri, ok := s.clientURIs[doc.Key()]; ok {
		return uri
	}
	return doc.URI
}

func (s *Server) Info(msg string)  { s.showMessage(messageInfo, msg) }
func (s *Server) Warn(msg string)  { s.showMessage(messageWarning, msg) }
func (s *Server) Error(msg string) { s.showMessage(messageError, msg) }

func (s *Server) showMessage(kind int, text string) {
	s.logger.Debug("show message", "type", kind, "message", text)
	err := s.send(map[string]any{
		"jsonrpc": "2.0",
		"method":  "window/showMessage",
		"params":  showMessageParams{Type: kind, Message: text},
	})
	if err != nil {
		s.logger.Warn("failed to show message", "error", err)
	}
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   rpcError{Code: code, Message: message},
	})
}

func (s *Server) sendPublish(uri string, list []diagnostics.Diagnostic) error {
	if list == nil {
		list = []diagnostics.Diagnostic{}
	}
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"method":  "textDocument/publishDiagnostics",
		"params":  publishDiagnosticsParams{URI: uri, Diagnostics: list},
	})
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}
