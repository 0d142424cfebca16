package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/scan-io-git/mettalint/internal/diagnostics"
)

type palette struct {
	path    *color.Color
	error   *color.Color
	warning *color.Color
	info    *color.Color
	summary *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		path:    color.New(color.Bold),
		error:   color.New(color.FgRed, color.Bold),
		warning: color.New(color.FgYellow),
		info:    color.New(color.FgCyan),
		summary: color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.path, p.error, p.warning, p.info, p.summary} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(s diagnostics.Severity) *color.Color {
	switch s {
	case diagnostics.SeverityError:
		return p.error
	case diagnostics.SeverityWarning:
		return p.warning
	default:
		return p.info
	}
}

// WriteText renders one line per diagnostic followed by a summary line.
// Lines and columns are printed 1-based.
func WriteText(w io.Writer, r *Report, enableColor bool) error {
	p := newPalette(enableColor)
	for _, e := range r.Entries {
		if err := p.writeEntry(w, e); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w, p.summary.Sprintf("%d problems (%d errors, %d warnings) in %d files",
		r.Total(),
		r.Count(diagnostics.SeverityError),
		r.Count(diagnostics.SeverityWarning),
		len(r.Entries),
	))
	return err
}

func (p palette) writeEntry(w io.Writer, e Entry) error {
	for _, d := range e.Diagnostics {
		line := fmt.Sprintf("%s:%d:%d: %s: %s",
			p.path.Sprint(e.Path),
			d.Range.Start.Line+1,
			d.Range.Start.Character+1,
			p.severity(d.Severity).Sprint(d.Severity.String()),
			d.Message,
		)
		if d.Code != "" {
			line += fmt.Sprintf(" [%s]", d.Code)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
