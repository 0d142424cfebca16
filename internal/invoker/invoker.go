package invoker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/mettalint/internal/config"
	sharederrors "github.com/scan-io-git/mettalint/pkg/shared/errors"
	"github.com/scan-io-git/mettalint/pkg/shared/files"
)

// waitDelay bounds how long Wait keeps draining pipes after the process was killed,
// in case a grandchild still holds them open.
const waitDelay = 2 * time.Second

// Result is the captured outcome of one analyzer process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Options configures an Invoker.
type Options struct {
	AnalyzerPath string        // Absolute path to the analyzer artifact
	Interpreter  string        // Optional program the analyzer is run with, e.g. python3
	WorkDir      string        // Working directory of the process
	Timeout      time.Duration // Hard wall-clock limit per invocation
	Logger       hclog.Logger
}

// Invoker runs the external analyzer against a single file per call.
// It keeps no state between calls and is safe for concurrent use.
type Invoker struct {
	analyzerPath string
	interpreter  string
	workDir      string
	timeout      time.Duration
	logger       hclog.Logger
}

// New creates a new Invoker instance with the provided options.
func New(opts Options) *Invoker {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Invoker{
		analyzerPath: opts.AnalyzerPath,
		interpreter:  opts.Interpreter,
		workDir:      opts.WorkDir,
		timeout:      config.SetThen(opts.Timeout, config.DefaultAnalyzerTimeout),
		logger:       logger,
	}
}

// NewFromConfig creates an Invoker from the global configuration.
func NewFromConfig(cfg *config.Config, logger hclog.Logger) *Invoker {
	return New(Options{
		AnalyzerPath: config.GetAnalyzerPath(cfg),
		Interpreter:  cfg.Analyzer.Interpreter,
		WorkDir:      config.GetInstallRoot(cfg),
		Timeout:      cfg.Analyzer.Timeout,
		Logger:       logger,
	})
}

// AnalyzerPath returns the location the analyzer is expected at.
func (i *Invoker) AnalyzerPath() string {
	return i.analyzerPath
}

// CheckAnalyzer verifies that the analyzer artifact exists.
func (i *Invoker) CheckAnalyzer() error {
	if err := files.ValidatePath(i.analyzerPath); err != nil {
		return &sharederrors.AnalyzerMissingError{Path: i.analyzerPath, Err: err}
	}
	return nil
}

// BuildCommandArgs constructs the argv for linting target.
func (i *Invoker) BuildCommandArgs(target string) []string {
	var commandArgs []string

	appendArg := func(arg ...string) {
		commandArgs = append(commandArgs, arg...)
	}

	if i.interpreter != "" {
		appendArg(i.interpreter)
	}
	appendArg(i.analyzerPath, target)

	return commandArgs
}

// Invoke runs the analyzer on filePath and captures its output.
// A non-zero exit status is reported through Result.ExitCode, not as an error.
// Errors are AnalyzerMissingError, InvalidTargetError, SpawnError, TimeoutError,
// or the context error when ctx is cancelled by the caller.
func (i *Invoker) Invoke(ctx context.Context, filePath string) (Result, error) {
	var result Result

	if err := i.CheckAnalyzer(); err != nil {
		return result, err
	}

	target, err := files.AbsPath(filePath)
	if err != nil {
		return result, &sharederrors.InvalidTargetError{Path: filePath, Err: err}
	}
	if err := files.ValidatePath(target); err != nil {
		return result, &sharederrors.InvalidTargetError{Path: target, Err: err}
	}

	commandArgs := i.BuildCommandArgs(target)

	runCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, commandArgs[0], commandArgs[1:]...)
	cmd.Dir = i.workDir
	configureProcess(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(&stderr, i.logger.StandardWriter(&hclog.StandardLoggerOptions{
		ForceLevel: hclog.Trace,
	}))

	i.logger.Debug("running analyzer", "cmd", cmd.Args, "dir", cmd.Dir)
	start := time.Now()
	runErr := cmd.Run()

	result = Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case ctx.Err() != nil:
		i.logger.Debug("analyzer cancelled", "file", target, "duration", result.Duration)
		return result, ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		i.logger.Warn("analyzer timed out", "file", target, "timeout", i.timeout)
		return result, &sharederrors.TimeoutError{Path: target, Timeout: i.timeout}
	case runErr != nil:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			i.logger.Debug("analyzer exited with failure", "file", target, "exitCode", result.ExitCode)
			return result, nil
		}
		i.logger.Error("analyzer execution error", "error", runErr, "cmd", cmd.Args)
		return result, &sharederrors.SpawnError{Args: cmd.Args, Err: runErr}
	}

	i.logger.Debug("analyzer finished", "file", target, "duration", result.Duration, "stdoutBytes", stdout.Len())
	return result, nil
}
