package diagnostics

import "github.com/scan-io-git/mettalint/internal/decoder"

// Severity follows the Language Server Protocol numbering.
type Severity int

const (
	SeverityError       Severity = 1
	SeverityWarning     Severity = 2
	SeverityInformation Severity = 3
	SeverityHint        Severity = 4
)

// String returns the lower-case name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "info"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// Position is a 0-based line/character offset.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a 0-based span within a document.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Diagnostic is the editor-facing form of a finding.
type Diagnostic struct {
	Range    Range    `json:"range"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Source   string   `json:"source"`
	Code     string   `json:"code,omitempty"`
}

// FromFinding converts a finding into a diagnostic tagged with source.
func FromFinding(f decoder.Finding, source string) Diagnostic {
	line := max(0, f.Line-1)
	start := max(0, f.Column)
	end := max(start, f.EndColumn)

	return Diagnostic{
		Range: Range{
			Start: Position{Line: line, Character: start},
			End:   Position{Line: line, Character: end},
		},
		Message:  f.Message,
		Severity: mapSeverity(f.Severity),
		Source:   source,
		Code:     f.Code,
	}
}

func mapSeverity(s decoder.Severity) Severity {
	switch s {
	case decoder.SeverityError:
		return SeverityError
	case decoder.SeverityInfo:
		return SeverityInformation
	default:
		return SeverityWarning
	}
}
