package version

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/mettalint/internal/config"
	"github.com/scan-io-git/mettalint/internal/invoker"
)

var (
	AppConfig     *config.Config
	CoreVersion   = "unknown"
	GolangVersion = "unknown"
	BuildTime     = "unknown"
)

// Versions holds version information for the core application and the analyzer it drives.
type Versions struct {
	Version       string `json:"version"`
	GolangVersion string `json:"golang_version"`
	BuildTime     string `json:"build_time"`
	Analyzer      AnalyzerMeta
}

// AnalyzerMeta describes the configured analyzer.
type AnalyzerMeta struct {
	Name        string
	Path        string
	Interpreter string
	Available   bool
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// NewVersionCmd creates a new cobra.Command for the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "version",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Print the version of the application and the configured analyzer",
		Run: func(cmd *cobra.Command, args []string) {
			printVersionInfo(cmd.OutOrStdout(), collectVersions(AppConfig))
		},
	}
}

func collectVersions(cfg *config.Config) Versions {
	v := Versions{
		Version:       CoreVersion,
		GolangVersion: GolangVersion,
		BuildTime:     BuildTime,
	}
	if cfg == nil {
		return v
	}
	inv := invoker.NewFromConfig(cfg, nil)
	v.Analyzer = AnalyzerMeta{
		Name:        cfg.Analyzer.Name,
		Path:        inv.AnalyzerPath(),
		Interpreter: cfg.Analyzer.Interpreter,
		Available:   inv.CheckAnalyzer() == nil,
	}
	return v
}

// printVersionInfo prints the version information for the core application and the analyzer.
func printVersionInfo(w io.Writer, v Versions) {
	fmt.Fprintf(w, "Core Version: v%s\n", v.Version)
	if v.Analyzer.Name != "" {
		state := "found"
		if !v.Analyzer.Available {
			state = "missing"
		}
		fmt.Fprintf(w, "Analyzer: %s (%s, %s)\n", v.Analyzer.Name, v.Analyzer.Path, state)
		if v.Analyzer.Interpreter != "" {
			fmt.Fprintf(w, "Interpreter: %s\n", v.Analyzer.Interpreter)
		}
	}
	fmt.Fprintf(w, "Go Version: %s\n", v.GolangVersion)
	fmt.Fprintf(w, "Build Time: %s\n", v.BuildTime)
}
