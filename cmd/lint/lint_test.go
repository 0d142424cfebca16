//go:build !windows

package lint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/mettalint/internal/config"
	"github.com/scan-io-git/mettalint/internal/coordinator"
	"github.com/scan-io-git/mettalint/internal/diagnostics"
	"github.com/scan-io-git/mettalint/internal/report"
	"github.com/scan-io-git/mettalint/internal/workspace"
	"github.com/scan-io-git/mettalint/pkg/shared/errors"
)

const analyzerScript = `#!/bin/sh
if grep -q bad "$1"; then
  echo '[{"line":1,"column":0,"endColumn":3,"message":"bad form","severity":"error"}]'
else
  echo '[]'
fi
`

func setup(t *testing.T) (*config.Config, string) {
	t.Helper()
	t.Setenv(config.EnvHome, "")
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "linter.sh"), []byte(analyzerScript), 0o755))

	cfg := config.Default()
	cfg.Analyzer.InstallRoot = home
	cfg.Analyzer.Path = "linter.sh"
	cfg.Analyzer.Interpreter = "sh"

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "good.metta"), []byte("(= (a) b)\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "bad.metta"), []byte("bad (\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "readme.md"), []byte("bad\n"), 0o644))
	return cfg, src
}

func TestValidateLintArgs(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		options RunOptionsLint
		args    []string
		want    report.Format
		wantErr bool
	}{
		{name: "defaults", options: RunOptionsLint{Format: "text"}, args: []string{dir}, want: report.FormatText},
		{name: "sarif", options: RunOptionsLint{Format: "SARIF"}, args: []string{dir}, want: report.FormatSARIF},
		{name: "no targets", options: RunOptionsLint{Format: "text"}, wantErr: true},
		{name: "bad format", options: RunOptionsLint{Format: "xml"}, args: []string{dir}, wantErr: true},
		{name: "negative jobs", options: RunOptionsLint{Format: "json", Jobs: -1}, args: []string{dir}, wantErr: true},
		{name: "missing target", options: RunOptionsLint{Format: "json"}, args: []string{filepath.Join(dir, "nope")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validateLintArgs(&tt.options, tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLintTargets(t *testing.T) {
	cfg, src := setup(t)
	finder, err := workspace.NewFinderFromConfig(cfg, []string{src}, nil)
	require.NoError(t, err)

	store, summary, err := lintTargets(context.Background(), cfg, finder, 2, hclog.NewNullLogger())
	require.NoError(t, err)
	assert.Equal(t, coordinator.ScanSummary{Files: 2, Succeeded: 2, Diagnostics: 1}, summary)

	rep := report.FromStore(store, "metta-linter", "test", src)
	require.Len(t, rep.Entries, 2)
	assert.Equal(t, "bad.metta", rep.Entries[0].Path)
	assert.Equal(t, 1, rep.Count(diagnostics.SeverityError))

	var cmdErr *errors.CommandError
	require.ErrorAs(t, exitStatus(summary, rep), &cmdErr)
	assert.Equal(t, ExitFindings, cmdErr.ExitCode)
}

func TestLintTargetsMissingAnalyzer(t *testing.T) {
	cfg, src := setup(t)
	cfg.Analyzer.Path = "missing.sh"
	finder, err := workspace.NewFinderFromConfig(cfg, []string{src}, nil)
	require.NoError(t, err)

	_, _, err = lintTargets(context.Background(), cfg, finder, 2, hclog.NewNullLogger())
	assert.Error(t, err)
}

func TestExitStatus(t *testing.T) {
	clean := &report.Report{}
	assert.NoError(t, exitStatus(coordinator.ScanSummary{Files: 3, Succeeded: 3}, clean))

	var cmdErr *errors.CommandError
	require.ErrorAs(t, exitStatus(coordinator.ScanSummary{Files: 3, Succeeded: 2, Failed: 1}, clean), &cmdErr)
	assert.Equal(t, ExitOrchestration, cmdErr.ExitCode)
}
