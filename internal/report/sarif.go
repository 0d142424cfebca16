package report

import (
	"io"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/scan-io-git/mettalint/internal/diagnostics"
)

const informationURI = "https://github.com/scan-io-git/mettalint"

// WriteSARIF renders the report as a SARIF 2.1.0 log with a single run.
func WriteSARIF(w io.Writer, r *Report) error {
	sarifReport, err := NewSARIF(r)
	if err != nil {
		return err
	}
	return sarifReport.PrettyWrite(w)
}

// NewSARIF converts the report into a SARIF log. Diagnostics without a code are
// grouped under a rule named after the tool.
func NewSARIF(r *Report) (*sarif.Report, error) {
	sarifReport, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, err
	}

	run := sarif.NewRunWithInformationURI(r.Tool, informationURI)
	if r.Version != "" {
		version := r.Version
		run.Tool.Driver.SemanticVersion = &version
	}
	for _, e := range r.Entries {
		for _, d := range e.Diagnostics {
			ruleID := d.Code
			if ruleID == "" {
				ruleID = r.Tool
			}
			rule := run.AddRule(ruleID).WithDescription(ruleID)

			region := sarif.NewRegion().
				WithStartLine(d.Range.Start.Line + 1).
				WithStartColumn(d.Range.Start.Character + 1).
				WithEndLine(d.Range.End.Line + 1).
				WithEndColumn(d.Range.End.Character + 1)
			location := sarif.NewLocation().WithPhysicalLocation(
				sarif.NewPhysicalLocation().
					WithArtifactLocation(sarif.NewArtifactLocation().WithUri(e.Path)).
					WithRegion(region),
			)

			result := sarif.NewRuleResult(rule.ID).
				WithMessage(sarif.NewTextMessage(d.Message)).
				WithLevel(toSarifLevel(d.Severity)).
				WithLocations([]*sarif.Location{location})
			run.AddResult(result)
		}
	}
	sarifReport.AddRun(run)
	return sarifReport, nil
}

func toSarifLevel(s diagnostics.Severity) string {
	switch s {
	case diagnostics.SeverityError:
		return "error"
	case diagnostics.SeverityWarning:
		return "warning"
	case diagnostics.SeverityInformation, diagnostics.SeverityHint:
		return "note"
	default:
		return "none"
	}
}
