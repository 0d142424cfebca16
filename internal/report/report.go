package report

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/scan-io-git/mettalint/internal/diagnostics"
	"github.com/scan-io-git/mettalint/internal/host"
	"github.com/scan-io-git/mettalint/pkg/shared/files"
)

// Format is an output format of a report.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatSARIF Format = "sarif"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatJSON, FormatSARIF}

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported report format %q, expected one of: text, json, sarif", s)
}

// Extension returns the file extension used when a report is saved into a directory.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatSARIF:
		return "sarif"
	default:
		return "txt"
	}
}

// Entry holds the diagnostics of one file.
type Entry struct {
	Path        string                   `json:"path"`
	URI         string                   `json:"uri"`
	Diagnostics []diagnostics.Diagnostic `json:"diagnostics"`
}

// Report is a snapshot of published diagnostics ready to be rendered.
type Report struct {
	Tool    string  `json:"tool"`
	Version string  `json:"version,omitempty"`
	Entries []Entry `json:"files"`
}

// FromStore snapshots the store. Paths under baseDir are made relative to it.
func FromStore(store *diagnostics.Store, tool, version, baseDir string) *Report {
	snapshot := store.Snapshot()
	r := &Report{Tool: tool, Version: version, Entries: make([]Entry, 0, len(snapshot))}
	for uri, diags := range snapshot {
		path := host.URIToPath(uri)
		if path == "" {
			path = uri
		} else {
			path = files.RelativeTo(baseDir, path)
		}
		sortDiagnostics(diags)
		r.Entries = append(r.Entries, Entry{Path: path, URI: uri, Diagnostics: diags})
	}
	sort.Slice(r.Entries, func(i, j int) bool { return r.Entries[i].Path < r.Entries[j].Path })
	return r
}

func sortDiagnostics(diags []diagnostics.Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i].Range.Start, diags[j].Range.Start
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Character < b.Character
	})
}

// Count returns the number of diagnostics with the given severity.
func (r *Report) Count(severity diagnostics.Severity) int {
	n := 0
	for _, e := range r.Entries {
		for _, d := range e.Diagnostics {
			if d.Severity == severity {
				n++
			}
		}
	}
	return n
}

// Total returns the number of diagnostics in the report.
func (r *Report) Total() int {
	n := 0
	for _, e := range r.Entries {
		n += len(e.Diagnostics)
	}
	return n
}

// Write renders the report in the given format.
func (r *Report) Write(w io.Writer, format Format, color bool) error {
	switch format {
	case FormatText:
		return WriteText(w, r, color)
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatSARIF:
		return WriteSARIF(w, r)
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

// Save renders the report to a file. When path is a directory, or a missing path
// without an extension, a file named after the tool is created inside it.
func (r *Report) Save(path string, format Format) (string, error) {
	name := fmt.Sprintf("%s-report.%s", r.Tool, format.Extension())
	fullPath, folder, err := files.DetermineFileFullPath(path, name)
	if err != nil {
		return "", err
	}
	if err := files.CreateFolderIfNotExists(folder); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := r.Write(&buf, format, false); err != nil {
		return "", err
	}
	if err := files.WriteFile(fullPath, buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to write report to %q: %w", fullPath, err)
	}
	return fullPath, nil
}
