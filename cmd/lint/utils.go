package lint

import (
	"fmt"
	"os"

	"github.com/scan-io-git/mettalint/internal/coordinator"
	"github.com/scan-io-git/mettalint/internal/diagnostics"
	"github.com/scan-io-git/mettalint/internal/report"
	"github.com/scan-io-git/mettalint/pkg/shared/errors"
)

// writeReport prints the report to stdout, or saves it when outputPath is set.
func writeReport(rep *report.Report, format report.Format, outputPath string, enableColor bool) error {
	if outputPath == "" {
		return rep.Write(os.Stdout, format, enableColor)
	}
	path, err := rep.Save(outputPath, format)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "report saved to %s\n", path)
	return nil
}

// exitStatus maps the scan outcome to the command result.
func exitStatus(summary coordinator.ScanSummary, rep *report.Report) error {
	if summary.Failed > 0 {
		return errors.NewCommandError(fmt.Errorf("%d of %d files could not be linted", summary.Failed, summary.Files), ExitOrchestration)
	}
	if rep.Count(diagnostics.SeverityError) > 0 {
		return &errors.CommandError{ExitCode: ExitFindings}
	}
	return nil
}
