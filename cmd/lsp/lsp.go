package lsp

import (
	"context"
	stderrors "errors"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/scan-io-git/mettalint/cmd/version"
	"github.com/scan-io-git/mettalint/internal/config"
	"github.com/scan-io-git/mettalint/internal/coordinator"
	"github.com/scan-io-git/mettalint/internal/lsp"
	"github.com/scan-io-git/mettalint/internal/metrics"
	"github.com/scan-io-git/mettalint/pkg/shared/errors"
	"github.com/scan-io-git/mettalint/pkg/shared/logger"
)

// RunOptionsLsp holds the arguments for the lsp command.
type RunOptionsLsp struct {
	MetricsAddr string
}

var (
	AppConfig  *config.Config
	lspOptions RunOptionsLsp
)

// LspCmd represents the lsp command.
var LspCmd = &cobra.Command{
	Use:                   "lsp [--metrics-address ADDR]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Args:                  cobra.NoArgs,
	Short:                 "Serve diagnostics to an editor over stdio using the Language Server Protocol",
	Long: `Starts a language server on stdin/stdout. Files are linted when opened or saved,
diagnostics are cleared when they are closed. The server provides the commands
"mettalint.lint" (lint the active file) and "mettalint.lintAll" (lint the workspace).
Logs are written to stderr.`,
	RunE: runLspCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

func runLspCommand(cmd *cobra.Command, args []string) error {
	lg := logger.NewLogger(AppConfig, "core-lsp")

	m := metrics.New()
	srv := lsp.NewServer(cmd.InOrStdin(), cmd.OutOrStdout(), lsp.ServerOptions{
		Name:          AppConfig.Analyzer.Name,
		Version:       version.CoreVersion,
		Pipeline:      coordinator.OptionsFromConfig(AppConfig, m, lg.Named("coordinator")),
		Include:       AppConfig.Workspace.Include,
		Exclude:       AppConfig.Workspace.Exclude,
		LintOnStartup: config.LintOnStartup(AppConfig),
		Logger:        lg,
	})

	ctx := cmd.Context()

	addr := lspOptions.MetricsAddr
	if addr == "" {
		addr = AppConfig.Metrics.ListenAddress
	}
	if addr != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := m.Serve(metricsCtx, addr, lg.Named("metrics")); err != nil {
				lg.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	return exitError(srv.Run(ctx), lg)
}

// exitError maps the server's termination to the command result.
func exitError(err error, lg hclog.Logger) error {
	switch {
	case err == nil, stderrors.Is(err, lsp.ErrExit):
		lg.Info("language server stopped")
		return nil
	case stderrors.Is(err, lsp.ErrExitWithoutShutdown):
		lg.Warn("client exited without shutdown")
		return &errors.CommandError{ExitCode: 1, CommonError: err.Error()}
	default:
		lg.Error("language server failed", "error", err)
		return errors.NewCommandError(err, 2)
	}
}

func init() {
	LspCmd.Flags().StringVar(&lspOptions.MetricsAddr, "metrics-address", "", "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9464.")
	LspCmd.Flags().BoolP("help", "h", false, "Show help for the lsp command.")
}
