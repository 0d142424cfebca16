package lint

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/scan-io-git/mettalint/cmd/version"
	"github.com/scan-io-git/mettalint/internal/config"
	"github.com/scan-io-git/mettalint/internal/coordinator"
	"github.com/scan-io-git/mettalint/internal/diagnostics"
	"github.com/scan-io-git/mettalint/internal/metrics"
	"github.com/scan-io-git/mettalint/internal/report"
	"github.com/scan-io-git/mettalint/internal/workspace"
	"github.com/scan-io-git/mettalint/pkg/shared/errors"
	"github.com/scan-io-git/mettalint/pkg/shared/logger"
)

// Exit codes of the lint command.
const (
	ExitFindings      = 1
	ExitOrchestration = 2
)

// RunOptionsLint holds the arguments for the lint command.
type RunOptionsLint struct {
	Format     string
	OutputPath string
	Jobs       int
	NoColor    bool
}

var (
	AppConfig        *config.Config
	lintOptions      RunOptionsLint
	exampleLintUsage = `  # Lint a single file
  mettalint lint ./main.metta

  # Lint every MeTTa file under a directory with 8 concurrent jobs
  mettalint lint -j 8 ./src

  # Write a SARIF report into a directory
  mettalint lint --format sarif --output ./reports ./src

  # Print a JSON report to stdout
  mettalint lint -f json ./src ./tests`
)

// LintCmd represents the lint command.
var LintCmd = &cobra.Command{
	Use:                   "lint [--format/-f text|json|sarif] [--output/-o PATH] [-j JOBS] PATH...",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleLintUsage,
	Short:                 "Lint files and directories once and report the diagnostics",
	Long: `Runs the configured analyzer over the given files and every matching file under the given directories.

Exit codes:
  0  no error-severity diagnostics
  1  at least one error-severity diagnostic
  2  the analyzer could not lint one or more files`,
	RunE: runLintCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// runLintCommand executes the lint command.
func runLintCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}

	lg := logger.NewLogger(AppConfig, "core-lint")

	format, err := validateLintArgs(&lintOptions, args)
	if err != nil {
		lg.Error("invalid lint arguments", "error", err)
		return errors.NewCommandError(fmt.Errorf("invalid lint arguments: %w", err), ExitOrchestration)
	}

	finder, err := workspace.NewFinderFromConfig(AppConfig, args, lg.Named("workspace"))
	if err != nil {
		lg.Error("failed to prepare lint targets", "error", err)
		return errors.NewCommandError(err, ExitOrchestration)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, summary, err := lintTargets(ctx, AppConfig, finder, lintOptions.Jobs, lg)
	if err != nil {
		lg.Error("lint command failed", "error", err)
		return errors.NewCommandError(err, ExitOrchestration)
	}

	cwd, _ := os.Getwd()
	rep := report.FromStore(store, AppConfig.Analyzer.Name, version.CoreVersion, cwd)
	if err := writeReport(rep, format, lintOptions.OutputPath, !lintOptions.NoColor && !color.NoColor); err != nil {
		lg.Error("failed to write report", "error", err)
		return errors.NewCommandError(err, ExitOrchestration)
	}

	lg.Info("lint command completed",
		"files", summary.Files, "failed", summary.Failed, "diagnostics", summary.Diagnostics)
	return exitStatus(summary, rep)
}

// lintTargets runs a coordinator for the duration of one workspace scan.
func lintTargets(ctx context.Context, cfg *config.Config, finder coordinator.Finder, jobs int, lg hclog.Logger) (*diagnostics.Store, coordinator.ScanSummary, error) {
	opts := coordinator.OptionsFromConfig(cfg, metrics.New(), lg.Named("coordinator"))
	opts.Finder = finder
	opts.Notifier = coordinator.LogNotifier{Logger: lg}
	if jobs > 0 {
		opts.Jobs = jobs
	}
	c := coordinator.New(opts)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- c.Run(runCtx) }()
	defer func() {
		cancel()
		<-done
	}()

	summary, err := c.LintWorkspace(ctx)
	return c.Store(), summary, err
}

func init() {
	LintCmd.Flags().StringVarP(&lintOptions.Format, "format", "f", string(report.FormatText), "Format of the report: text, json or sarif.")
	LintCmd.Flags().StringVarP(&lintOptions.OutputPath, "output", "o", "", "Path to the output file or directory for the report. Defaults to stdout.")
	LintCmd.Flags().IntVarP(&lintOptions.Jobs, "jobs", "j", 0, "Number of files linted concurrently. Defaults to workspace.jobs.")
	LintCmd.Flags().BoolVar(&lintOptions.NoColor, "no-color", false, "Disable coloured text output.")
	LintCmd.Flags().BoolP("help", "h", false, "Show help for the lint command.")
}
