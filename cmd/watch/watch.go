package watch

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/scan-io-git/mettalint/internal/config"
	"github.com/scan-io-git/mettalint/internal/coordinator"
	"github.com/scan-io-git/mettalint/internal/metrics"
	"github.com/scan-io-git/mettalint/internal/report"
	"github.com/scan-io-git/mettalint/internal/watcher"
	"github.com/scan-io-git/mettalint/internal/workspace"
	"github.com/scan-io-git/mettalint/pkg/shared/errors"
	"github.com/scan-io-git/mettalint/pkg/shared/logger"
)

// RunOptionsWatch holds the arguments for the watch command.
type RunOptionsWatch struct {
	Debounce    time.Duration
	SkipStartup bool
	NoColor     bool
	MetricsAddr string
}

var (
	AppConfig    *config.Config
	watchOptions RunOptionsWatch
)

// WatchCmd represents the watch command.
var WatchCmd = &cobra.Command{
	Use:                   "watch [--debounce DURATION] [--no-startup-lint] [DIR]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Args:                  cobra.MaximumNArgs(1),
	Short:                 "Watch a directory and lint MeTTa files as they change",
	Long: `Lints every matching file in DIR (default: the current directory), then watches it.
A written file is linted again, a removed file has its diagnostics cleared.`,
	RunE: runWatchCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

func runWatchCommand(cmd *cobra.Command, args []string) error {
	lg := logger.NewLogger(AppConfig, "core-watch")

	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		err = fmt.Errorf("the watch target must be an existing directory: %s", root)
		lg.Error("invalid watch arguments", "error", err)
		return errors.NewCommandError(err, 2)
	}

	finder, err := workspace.NewFinderFromConfig(AppConfig, []string{root}, lg.Named("workspace"))
	if err != nil {
		return errors.NewCommandError(err, 2)
	}

	m := metrics.New()
	opts := coordinator.OptionsFromConfig(AppConfig, m, lg.Named("coordinator"))
	opts.Finder = finder
	opts.Notifier = coordinator.LogNotifier{Logger: lg}
	opts.Sink = report.NewConsoleSink(cmd.OutOrStdout(), finder.Roots()[0], !watchOptions.NoColor && !color.NoColor)
	c := coordinator.New(opts)

	w, err := watcher.New(finder, c, watcher.Options{
		Roots:      finder.Roots(),
		LanguageID: AppConfig.Language.ID,
		Debounce:   watchOptions.Debounce,
		Logger:     lg.Named("watcher"),
	})
	if err != nil {
		lg.Error("failed to start file watcher", "error", err)
		return errors.NewCommandError(err, 2)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Run(ctx) })
	g.Go(func() error { return w.Run(ctx) })

	addr := watchOptions.MetricsAddr
	if addr == "" {
		addr = AppConfig.Metrics.ListenAddress
	}
	if addr != "" {
		g.Go(func() error { return m.Serve(ctx, addr, lg.Named("metrics")) })
	}

	if !watchOptions.SkipStartup && config.LintOnStartup(AppConfig) {
		g.Go(func() error {
			summary, err := c.LintWorkspace(ctx)
			if err != nil && ctx.Err() == nil {
				lg.Warn("initial workspace lint failed", "error", err)
				return nil
			}
			lg.Info("initial workspace lint finished", "files", summary.Files, "failed", summary.Failed)
			return nil
		})
	}

	lg.Info("watching for changes", "root", finder.Roots()[0])
	if err := g.Wait(); err != nil && err != context.Canceled {
		lg.Error("watch command failed", "error", err)
		return errors.NewCommandError(err, 2)
	}
	return nil
}

func init() {
	WatchCmd.Flags().DurationVar(&watchOptions.Debounce, "debounce", watcher.DefaultDebounce, "Quiet period before changed files are linted.")
	WatchCmd.Flags().BoolVar(&watchOptions.SkipStartup, "no-startup-lint", false, "Do not lint the whole directory before watching.")
	WatchCmd.Flags().BoolVar(&watchOptions.NoColor, "no-color", false, "Disable coloured output.")
	WatchCmd.Flags().StringVar(&watchOptions.MetricsAddr, "metrics-address", "", "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9464.")
	WatchCmd.Flags().BoolP("help", "h", false, "Show help for the watch command.")
}
