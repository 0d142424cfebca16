package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/scan-io-git/mettalint/internal/host"
	"github.com/scan-io-git/mettalint/internal/invoker"
)

// Host command identifiers.
const (
	CommandLint    = "mettalint.lint"
	CommandLintAll = "mettalint.lintAll"
)

var (
	// ErrStopped is returned when the coordinator loop is no longer running.
	ErrStopped = errors.New("coordinator stopped")
	// ErrNoActiveDocument is returned by LintActive when the host has no active document.
	ErrNoActiveDocument = errors.New("no active document")
	// ErrNotRecognized is returned when a document does not belong to the linted language.
	ErrNotRecognized = errors.New("document is not handled by this linter")
	// ErrUnknownCommand is returned by ExecuteCommand for unregistered commands.
	ErrUnknownCommand = errors.New("unknown command")
)

// Invoker runs the analyzer against one file.
type Invoker interface {
	Invoke(ctx context.Context, filePath string) (invoker.Result, error)
}

// analyzerChecker is implemented by invokers able to verify their analyzer up front.
type analyzerChecker interface {
	CheckAnalyzer() error
}

// Notifier shows user-facing messages in the host.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// Finder enumerates the workspace files to lint.
type Finder interface {
	Find(ctx context.Context) ([]string, error)
}

// ActiveDocumentFunc returns the document currently focused in the host.
type ActiveDocumentFunc func() (host.Document, bool)

// State is the lifecycle state of a document.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateRemoved
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Request is one lint request issued for a document.
type Request struct {
	ID          string
	Document    host.Document
	Path        string
	RequestedAt time.Time
}

// Outcome is the result delivered to callers waiting on a request.
type Outcome struct {
	Request     Request
	Diagnostics int
	Err         error
	Discarded   bool
}

// ScanSummary aggregates the outcomes of a workspace scan.
type ScanSummary struct {
	Files       int
	Succeeded   int
	Failed      int
	Discarded   int
	Diagnostics int
}

func (s *ScanSummary) add(out Outcome) {
	switch {
	case out.Discarded:
		s.Discarded++
	case out.Err != nil:
		s.Failed++
	default:
		s.Succeeded++
		s.Diagnostics += out.Diagnostics
	}
}
