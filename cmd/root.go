package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/mettalint/cmd/lint"
	"github.com/scan-io-git/mettalint/cmd/lsp"
	"github.com/scan-io-git/mettalint/cmd/version"
	"github.com/scan-io-git/mettalint/cmd/watch"
	"github.com/scan-io-git/mettalint/internal/config"
	sharederrors "github.com/scan-io-git/mettalint/pkg/shared/errors"
)

var (
	cfgFile   string
	AppConfig *config.Config
	rootCmd   = &cobra.Command{
		Use:                   "mettalint [command]",
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		Short:                 "Mettalint runs an external analyzer over MeTTa files and reports its diagnostics.",
		Long: `Mettalint runs an external analyzer over MeTTa source files and turns its findings into diagnostics.
	It can lint files once, watch a directory, or serve editors as a stdio language server.
	`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yml when present)")
	rootCmd.AddCommand(lint.LintCmd)
	rootCmd.AddCommand(watch.WatchCmd)
	rootCmd.AddCommand(lsp.LspCmd)
	rootCmd.AddCommand(version.NewVersionCmd())
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		var cmdErr *sharederrors.CommandError
		if errors.As(err, &cmdErr) {
			if cmdErr.CommonError != "" {
				fmt.Fprintf(os.Stderr, "Error: %s\n", cmdErr.CommonError)
			}
			return cmdErr.ExitCode
		}
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		return 2
	}
	return 0
}

func initConfig() {
	var err error

	AppConfig, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config file: %v\n", err)
		os.Exit(2)
	}
	if err := config.ValidateConfig(AppConfig); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	lint.Init(AppConfig)
	watch.Init(AppConfig)
	lsp.Init(AppConfig)
	version.Init(AppConfig)
}
