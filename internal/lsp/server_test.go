package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/mettalint/internal/coordinator"
	"github.com/scan-io-git/mettalint/internal/host"
	"github.com/scan-io-git/mettalint/internal/invoker"
)

const waitFor = 5 * time.Second

type fakeInvoker struct {
	mu     sync.Mutex
	calls  []string
	stdout string
}

func (f *fakeInvoker) Invoke(_ context.Context, path string) (invoker.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	return invoker.Result{Stdout: f.stdout}, nil
}

func (f *fakeInvoker) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type testClient struct {
	t        *testing.T
	srv      *Server
	in       *io.PipeWriter
	messages chan rpcMessage
	finished chan struct{}
	runErr   error
	nextID   int
}

func startServer(t *testing.T, inv coordinator.Invoker, mutate func(*ServerOptions)) *testClient {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	opts := ServerOptions{
		Name:    "metta-linter",
		Version: "test",
		Pipeline: coordinator.Options{
			Language:     host.Language{ID: "metta", Name: "MeTTa", Extensions: []string{".metta"}},
			Source:       "metta-linter",
			Invoker:      inv,
			Jobs:         2,
			MaxProcesses: 2,
		},
		Include: []string{"**/*.metta"},
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv := NewServer(inR, outW, opts)

	c := &testClient{
		t:        t,
		srv:      srv,
		in:       inW,
		messages: make(chan rpcMessage, 256),
		finished: make(chan struct{}),
	}
	go func() {
		c.runErr = srv.Run(context.Background())
		_ = outW.Close()
		close(c.finished)
	}()
	go func() {
		r := bufio.NewReader(outR)
		for {
			payload, err := readMessage(r)
			if err != nil {
				close(c.messages)
				return
			}
			var msg rpcMessage
			if err := json.Unmarshal(payload, &msg); err == nil {
				c.messages <- msg
			}
		}
	}()
	t.Cleanup(func() {
		_ = inW.Close()
		<-c.finished
	})
	return c
}

func (c *testClient) write(msg map[string]any) {
	c.t.Helper()
	msg["jsonrpc"] = "2.0"
	payload, err := json.Marshal(msg)
	require.NoError(c.t, err)
	require.NoError(c.t, writeMessage(c.in, payload))
}

func (c *testClient) notify(method string, params any) {
	c.t.Helper()
	c.write(map[string]any{"method": method, "params": params})
}

func (c *testClient) request(method string, params any) string {
	c.t.Helper()
	c.nextID++
	id := strconv.Itoa(c.nextID)
	c.write(map[string]any{"id": c.nextID, "method": method, "params": params})
	return id
}

// until collects messages up to and including the first one matching stop.
func (c *testClient) until(stop func(rpcMessage) bool) []rpcMessage {
	c.t.Helper()
	var seen []rpcMessage
	timeout := time.After(waitFor)
	for {
		select {
		case msg, ok := <-c.messages:
			require.True(c.t, ok, "server output closed")
			seen = append(seen, msg)
			if stop(msg) {
				return seen
			}
		case <-timeout:
			c.t.Fatalf("timed out, received %d messages", len(seen))
		}
	}
}

func (c *testClient) response(id string) rpcMessage {
	c.t.Helper()
	seen := c.until(func(m rpcMessage) bool { return string(m.ID) == id && m.Method == "" })
	return seen[len(seen)-1]
}

func (c *testClient) initialize(root string) {
	c.t.Helper()
	id := c.request("initialize", initializeParams{RootURI: host.PathToURI(root)})
	c.response(id)
}

func isMethod(method string) func(rpcMessage) bool {
	return func(m rpcMessage) bool { return m.Method == method }
}

func decodePublish(t *testing.T, msg rpcMessage) publishDiagnosticsParams {
	t.Helper()
	var params publishDiagnosticsParams
	require.NoError(t, json.Unmarshal(msg.Params, &params))
	return params
}

func decodeShowMessage(t *testing.T, msg rpcMessage) showMessageParams {
	t.Helper()
	var params showMessageParams
	require.NoError(t, json.Unmarshal(msg.Params, &params))
	return params
}

func writeMetta(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("(= (a) b)\n"), 0o644))
	}
}

const oneFinding = `[{"line":2,"column":1,"endColumn":3,"message":"undefined symbol","severity":"warning","code":"W10"}]`

func TestInitializeAdvertisesCommands(t *testing.T) {
	c := startServer(t, &fakeInvoker{stdout: "[]"}, nil)

	id := c.request("initialize", initializeParams{RootURI: host.PathToURI(t.TempDir())})
	resp := c.response(id)
	require.Nil(t, resp.Error)

	var result initializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, []string{coordinator.CommandLint, coordinator.CommandLintAll}, result.Capabilities.ExecuteCommandProvider.Commands)
	assert.True(t, result.Capabilities.TextDocumentSync.OpenClose)
	assert.Equal(t, "metta-linter", result.ServerInfo.Name)
}

func TestOpenAndClosePublishDiagnostics(t *testing.T) {
	root := t.TempDir()
	writeMetta(t, root, "main.metta")
	inv := &fakeInvoker{stdout: oneFinding}
	c := startServer(t, inv, nil)
	c.initialize(root)

	uri := host.PathToURI(filepath.Join(root, "main.metta"))
	c.notify("textDocument/didOpen", didOpenTextDocumentParams{
		TextDocument: textDocumentItem{URI: uri, LanguageID: "metta", Version: 1},
	})

	seen := c.until(isMethod("textDocument/publishDiagnostics"))
	published := decodePublish(t, seen[len(seen)-1])
	assert.Equal(t, uri, published.URI)
	require.Len(t, published.Diagnostics, 1)
	d := published.Diagnostics[0]
	assert.Equal(t, "metta-linter", d.Source)
	assert.Equal(t, "W10", d.Code)
	assert.Equal(t, 1, d.Range.Start.Line)
	assert.Equal(t, 1, d.Range.Start.Character)
	assert.Equal(t, 3, d.Range.End.Character)

	c.notify("textDocument/didClose", didCloseTextDocumentParams{TextDocument: textDocumentIdentifier{URI: uri}})
	seen = c.until(isMethod("textDocument/publishDiagnostics"))
	cleared := decodePublish(t, seen[len(seen)-1])
	assert.Equal(t, uri, cleared.URI)
	assert.Empty(t, cleared.Diagnostics)
}

func TestMalformedNotificationKeepsServing(t *testing.T) {
	root := t.TempDir()
	writeMetta(t, root, "main.metta")
	c := startServer(t, &fakeInvoker{stdout: oneFinding}, nil)
	c.initialize(root)

	c.notify("textDocument/didOpen", map[string]any{"textDocument": "oops"})
	c.notify("textDocument/didSave", []int{1, 2})

	uri := host.PathToURI(filepath.Join(root, "main.metta"))
	c.notify("textDocument/didOpen", didOpenTextDocumentParams{
		TextDocument: textDocumentItem{URI: uri, LanguageID: "metta", Version: 1},
	})
	seen := c.until(isMethod("textDocument/publishDiagnostics"))
	published := decodePublish(t, seen[len(seen)-1])
	assert.Equal(t, uri, published.URI)
	assert.Len(t, published.Diagnostics, 1)
}

func TestLintAllReusesOpenDocument(t *testing.T) {
	root := t.TempDir()
	writeMetta(t, root, "a@b.metta")
	inv := &fakeInvoker{stdout: oneFinding}
	c := startServer(t, inv, nil)
	c.initialize(root)

	clientURI := strings.Replace(host.PathToURI(filepath.Join(root, "a@b.metta")), "@", "%40", 1)
	c.notify("textDocument/didOpen", didOpenTextDocumentParams{
		TextDocument: textDocumentItem{URI: clientURI, LanguageID: "metta", Version: 1},
	})
	c.until(isMethod("textDocument/publishDiagnostics"))

	id := c.request("workspace/executeCommand", executeCommandParams{Command: coordinator.CommandLintAll})
	seen := c.until(func(m rpcMessage) bool { return string(m.ID) == id })
	for _, m := range seen {
		if m.Method == "textDocument/publishDiagnostics" {
			assert.Equal(t, clientURI, decodePublish(t, m).URI)
		}
	}
	assert.Len(t, c.srv.Coordinator().Store().Keys(), 1)
}

func TestLintCommandRejectsOtherLanguages(t *testing.T) {
	root := t.TempDir()
	inv := &fakeInvoker{stdout: "[]"}
	c := startServer(t, inv, nil)
	c.initialize(root)

	c.notify("textDocument/didOpen", didOpenTextDocumentParams{
		TextDocument: textDocumentItem{URI: host.PathToURI(filepath.Join(root, "setup.py")), LanguageID: "python", Version: 1},
	})
	id := c.request("workspace/executeCommand", executeCommandParams{Command: coordinator.CommandLint})

	seen := c.until(func(m rpcMessage) bool { return string(m.ID) == id })
	require.Len(t, seen, 2)
	msg := decodeShowMessage(t, seen[0])
	assert.Equal(t, messageWarning, msg.Type)
	assert.Equal(t, "Current file is not a MeTTa file", msg.Message)
	assert.Empty(t, inv.Calls())
}

func TestLintCommandWithoutActiveDocument(t *testing.T) {
	c := startServer(t, &fakeInvoker{stdout: "[]"}, nil)
	c.initialize(t.TempDir())

	id := c.request("workspace/executeCommand", executeCommandParams{Command: coordinator.CommandLint})
	seen := c.until(func(m rpcMessage) bool { return string(m.ID) == id })
	require.Len(t, seen, 2)
	assert.Equal(t, "No active editor found", decodeShowMessage(t, seen[0]).Message)
}

func TestLintAllCommand(t *testing.T) {
	root := t.TempDir()
	writeMetta(t, root, "a.metta", "b.metta")
	writeMetta(t, root, "notes.txt")
	inv := &fakeInvoker{stdout: oneFinding}
	c := startServer(t, inv, nil)
	c.initialize(root)

	id := c.request("workspace/executeCommand", executeCommandParams{Command: coordinator.CommandLintAll})
	seen := c.until(func(m rpcMessage) bool { return string(m.ID) == id })

	var infos []string
	published := map[string]int{}
	for _, m := range seen {
		switch m.Method {
		case "window/showMessage":
			infos = append(infos, decodeShowMessage(t, m).Message)
		case "textDocument/publishDiagnostics":
			p := decodePublish(t, m)
			published[p.URI] = len(p.Diagnostics)
		}
	}
	assert.Equal(t, []string{"Linting all MeTTa files in workspace...", "Finished linting all MeTTa files"}, infos)
	assert.Equal(t, map[string]int{
		host.PathToURI(filepath.Join(root, "a.metta")): 1,
		host.PathToURI(filepath.Join(root, "b.metta")): 1,
	}, published)
	assert.Len(t, inv.Calls(), 2)
}

func TestLintOnStartup(t *testing.T) {
	root := t.TempDir()
	writeMetta(t, root, "a.metta", "b.metta", "c.metta")
	inv := &fakeInvoker{stdout: "[]"}
	c := startServer(t, inv, func(o *ServerOptions) { o.LintOnStartup = true })
	c.initialize(root)
	c.notify("initialized", map[string]any{})

	seen := c.until(func(m rpcMessage) bool {
		return m.Method == "window/showMessage" && decodeShowMessage(t, m).Message == "Finished linting all MeTTa files"
	})
	publishes := 0
	for _, m := range seen {
		if m.Method == "textDocument/publishDiagnostics" {
			publishes++
		}
	}
	assert.Equal(t, 3, publishes)
}

func TestUnknownCommandAndMethod(t *testing.T) {
	c := startServer(t, &fakeInvoker{stdout: "[]"}, nil)
	c.initialize(t.TempDir())

	id := c.request("workspace/executeCommand", executeCommandParams{Command: "mettalint.nope"})
	resp := c.response(id)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeInvalidParams, resp.Error.Code)

	id = c.request("textDocument/hover", map[string]any{})
	resp = c.response(id)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestShutdownAndExit(t *testing.T) {
	c := startServer(t, &fakeInvoker{stdout: "[]"}, nil)
	c.initialize(t.TempDir())

	c.response(c.request("shutdown", nil))
	c.notify("exit", nil)

	select {
	case <-c.finished:
		assert.ErrorIs(t, c.runErr, ErrExit)
	case <-time.After(waitFor):
		t.Fatal("server did not exit")
	}
}

func TestExitWithoutShutdown(t *testing.T) {
	c := startServer(t, &fakeInvoker{stdout: "[]"}, nil)
	c.notify("exit", nil)

	select {
	case <-c.finished:
		assert.ErrorIs(t, c.runErr, ErrExitWithoutShutdown)
	case <-time.After(waitFor):
		t.Fatal("server did not exit")
	}
}
