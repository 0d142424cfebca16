package errors

import (
	"errors"
	"fmt"
	"time"
)

// AnalyzerMissingError is returned when the analyzer artifact is absent at its expected location.
// No process is spawned in that case.
type AnalyzerMissingError struct {
	Path string
	Err  error
}

// Error implements the error interface for AnalyzerMissingError.
func (e *AnalyzerMissingError) Error() string {
	return fmt.Sprintf("analyzer not found at %q: %v", e.Path, e.Err)
}

func (e *AnalyzerMissingError) Unwrap() error { return e.Err }

// InvalidTargetError is returned when the file to lint is not an existing regular file.
type InvalidTargetError struct {
	Path string
	Err  error
}

// Error implements the error interface for InvalidTargetError.
func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid lint target %q: %v", e.Path, e.Err)
}

func (e *InvalidTargetError) Unwrap() error { return e.Err }

// SpawnError wraps a failure to start the analyzer process.
type SpawnError struct {
	Args []string
	Err  error
}

// Error implements the error interface for SpawnError.
func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start analyzer %v: %v", e.Args, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// TimeoutError is returned when the analyzer exceeds its wall-clock budget and is killed.
type TimeoutError struct {
	Path    string
	Timeout time.Duration
}

// Error implements the error interface for TimeoutError.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("analyzer timed out after %v on %q", e.Timeout, e.Path)
}

// AnalyzerExecutionError reports a failure signalled by the analyzer itself,
// either through its exit code or through a failure marker on stderr.
type AnalyzerExecutionError struct {
	ExitCode int
	Stderr   string
}

// Error implements the error interface for AnalyzerExecutionError.
func (e *AnalyzerExecutionError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("analyzer exited with code %d: %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("analyzer reported an error: %s", e.Stderr)
}

// MalformedOutputError is returned when the analyzer stdout is not a JSON array.
type MalformedOutputError struct {
	Reason string
	Output string
}

// Error implements the error interface for MalformedOutputError.
func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed analyzer output: %s", e.Reason)
}

// KeepsPriorDiagnostics reports whether a failed run must leave the document's
// previously published diagnostics in place instead of clearing them.
func KeepsPriorDiagnostics(err error) bool {
	var missing *AnalyzerMissingError
	var invalid *InvalidTargetError
	var malformed *MalformedOutputError
	return errors.As(err, &missing) || errors.As(err, &invalid) || errors.As(err, &malformed)
}

// CommandError represents a command failure that carries a process exit code.
type CommandError struct {
	ExitCode    int
	CommonError string
}

// Error implements the error interface, returning the message from the common error.
func (e *CommandError) Error() string {
	return e.CommonError
}

// NewCommandError creates a new CommandError from err with the given exit code.
func NewCommandError(err error, code int) *CommandError {
	return &CommandError{
		ExitCode:    code,
		CommonError: err.Error(),
	}
}
