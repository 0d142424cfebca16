package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/scan-io-git/mettalint/internal/diagnostics"
	"github.com/scan-io-git/mettalint/internal/host"
	"github.com/scan-io-git/mettalint/pkg/shared/files"
)

// ConsoleSink prints diagnostics in the text format as they are published.
type ConsoleSink struct {
	mu      sync.Mutex
	w       io.Writer
	palette palette
	baseDir string
}

// NewConsoleSink creates a sink writing to w. Paths under baseDir are printed relative to it.
func NewConsoleSink(w io.Writer, baseDir string, enableColor bool) *ConsoleSink {
	return &ConsoleSink{w: w, palette: newPalette(enableColor), baseDir: baseDir}
}

// Set prints the diagnostics of doc, or a clean marker when there are none.
func (s *ConsoleSink) Set(doc host.Document, diags []diagnostics.Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := Entry{Path: s.path(doc), URI: doc.URI, Diagnostics: append([]diagnostics.Diagnostic(nil), diags...)}
	if len(entry.Diagnostics) == 0 {
		fmt.Fprintf(s.w, "%s: %s\n", s.palette.path.Sprint(entry.Path), s.palette.info.Sprint("no problems"))
		return
	}
	sortDiagnostics(entry.Diagnostics)
	_ = s.palette.writeEntry(s.w, entry)
}

// Delete prints that the diagnostics of doc were cleared.
func (s *ConsoleSink) Delete(doc host.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "%s: %s\n", s.palette.path.Sprint(s.path(doc)), s.palette.info.Sprint("diagnostics cleared"))
}

func (s *ConsoleSink) path(doc host.Document) string {
	if doc.Path == "" {
		return doc.URI
	}
	return files.RelativeTo(s.baseDir, doc.Path)
}
