package decoder

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-hclog"
	"github.com/tidwall/gjson"

	"github.com/scan-io-git/mettalint/internal/invoker"
	sharederrors "github.com/scan-io-git/mettalint/pkg/shared/errors"
)

// maxReportedOutput caps how much raw output is kept in a MalformedOutputError.
const maxReportedOutput = 2048

// SkipFunc is notified of every array element dropped during validation.
type SkipFunc func(reason string)

// Decoder turns analyzer output into validated findings.
type Decoder struct {
	failureMarkers []string
	logger         hclog.Logger
	onSkip         SkipFunc
}

// New creates a Decoder. failureMarkers are case-sensitive substrings that mark
// stderr as an analyzer failure.
func New(failureMarkers []string, logger hclog.Logger) *Decoder {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Decoder{
		failureMarkers: failureMarkers,
		logger:         logger,
	}
}

// OnSkip registers a callback for skipped elements.
func (d *Decoder) OnSkip(f SkipFunc) *Decoder {
	d.onSkip = f
	return d
}

// DecodeResult decodes a captured invocation result.
func (d *Decoder) DecodeResult(res invoker.Result) ([]Finding, error) {
	return d.Decode(res.Stdout, res.Stderr, res.ExitCode)
}

// Decode classifies the analyzer outcome and parses stdout into findings.
// An analyzer failure and a set of findings are mutually exclusive: on failure stdout is ignored.
func (d *Decoder) Decode(stdout, stderr string, exitCode int) ([]Finding, error) {
	if exitCode != 0 {
		return nil, &sharederrors.AnalyzerExecutionError{ExitCode: exitCode, Stderr: strings.TrimSpace(stderr)}
	}
	if stderr != "" {
		if d.hasFailureMarker(stderr) {
			return nil, &sharederrors.AnalyzerExecutionError{Stderr: strings.TrimSpace(stderr)}
		}
		d.logger.Warn("analyzer stderr", "stderr", strings.TrimSpace(stderr))
	}

	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		d.logger.Debug("no linting issues found")
		return []Finding{}, nil
	}

	if !gjson.Valid(trimmed) {
		return nil, &sharederrors.MalformedOutputError{Reason: "output is not valid JSON", Output: truncate(trimmed)}
	}
	root := gjson.Parse(trimmed)
	if !root.IsArray() {
		return nil, &sharederrors.MalformedOutputError{Reason: "output is not an array", Output: truncate(trimmed)}
	}

	findings := []Finding{}
	index := 0
	root.ForEach(func(_, element gjson.Result) bool {
		finding, reason, ok := decodeElement(element)
		if ok {
			findings = append(findings, finding)
		} else {
			d.logger.Warn("invalid issue format", "index", index, "reason", reason, "issue", element.Raw)
			if d.onSkip != nil {
				d.onSkip(reason)
			}
		}
		index++
		return true
	})

	d.logger.Debug("decoded analyzer output", "findings", len(findings), "elements", index)
	return findings, nil
}

func (d *Decoder) hasFailureMarker(stderr string) bool {
	for _, marker := range d.failureMarkers {
		if marker != "" && strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}

// decodeElement validates and normalizes a single array element.
func decodeElement(element gjson.Result) (Finding, string, bool) {
	if !element.IsObject() {
		return Finding{}, "not an object", false
	}

	line, ok := positiveInt(element.Get("line"))
	if !ok {
		return Finding{}, "missing or invalid line", false
	}

	message := element.Get("message")
	if message.Type != gjson.String || message.Str == "" {
		return Finding{}, "missing or invalid message", false
	}

	column, ok := coerceInt(element.Get("column"))
	if !ok || column < 0 {
		column = 0
	}

	length, ok := coerceInt(element.Get("length"))
	if !ok || length < 0 {
		length = 0
	}

	endColumn, ok := coerceInt(element.Get("endColumn"))
	if !ok || endColumn <= 0 {
		endColumn = column + max(length, 1)
	}

	severity := element.Get("severity")
	sev := SeverityWarning
	if severity.Type == gjson.String {
		sev = ParseSeverity(strings.ToLower(severity.Str))
	}

	return Finding{
		Line:      line,
		Column:    column,
		EndColumn: endColumn,
		Length:    length,
		Message:   message.Str,
		Severity:  sev,
		Code:      codeText(element.Get("code")),
	}, "", true
}

// positiveInt accepts integral numbers and numeric strings greater than zero.
func positiveInt(r gjson.Result) (int, bool) {
	n, ok := coerceInt(r)
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}

// coerceInt reads an integral JSON number or a numeric string.
func coerceInt(r gjson.Result) (int, bool) {
	switch r.Type {
	case gjson.Number:
		if math.IsNaN(r.Num) || math.IsInf(r.Num, 0) || r.Num != math.Trunc(r.Num) {
			return 0, false
		}
		if r.Num > math.MaxInt32 || r.Num < math.MinInt32 {
			return 0, false
		}
		return int(r.Num), true
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(r.Str))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func codeText(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		if r.Num == 0 {
			return ""
		}
		return r.Raw
	}
	return ""
}

func truncate(s string) string {
	if len(s) <= maxReportedOutput {
		return s
	}
	cut := maxReportedOutput
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
