package decoder

// Severity is the analyzer-side severity of a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ParseSeverity maps an analyzer severity string to a Severity.
// Absent or unrecognized values are warnings.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityError, SeverityWarning, SeverityInfo:
		return Severity(s)
	}
	return SeverityWarning
}

// Finding is one validated issue reported by the analyzer.
// Line is 1-based as produced by the analyzer, columns are 0-based.
type Finding struct {
	Line      int      `json:"line"`
	Column    int      `json:"column"`
	EndColumn int      `json:"endColumn"`
	Length    int      `json:"length,omitempty"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
	Code      string   `json:"code,omitempty"`
}
