package lint

import (
	"fmt"
	"os"

	"github.com/scan-io-git/mettalint/internal/report"
)

// validateLintArgs validates the arguments provided to the lint command.
func validateLintArgs(options *RunOptionsLint, args []string) (report.Format, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("at least one target path must be specified")
	}

	format, err := report.ParseFormat(options.Format)
	if err != nil {
		return "", err
	}

	if options.Jobs < 0 {
		return "", fmt.Errorf("the 'jobs' flag must not be negative")
	}

	for _, target := range args {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			return "", fmt.Errorf("the target path does not exist: %v", target)
		}
	}

	return format, nil
}
