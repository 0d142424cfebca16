package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mettalint.yml")
	content := `
logger:
  level: debug
analyzer:
  install_root: /opt/mettalint
  timeout: 5s
  failure_markers: ["Traceback"]
workspace:
  jobs: 2
  lint_on_startup: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "/opt/mettalint", cfg.Analyzer.InstallRoot)
	assert.Equal(t, 5*time.Second, cfg.Analyzer.Timeout)
	assert.Equal(t, []string{"Traceback"}, cfg.Analyzer.FailureMarkers)
	assert.Equal(t, 2, GetJobs(cfg))
	assert.False(t, LintOnStartup(cfg))

	// untouched sections keep their defaults
	assert.Equal(t, "metta", cfg.Language.ID)
	assert.Equal(t, "linter.py", cfg.Analyzer.Path)
	assert.Equal(t, "python3", cfg.Analyzer.Interpreter)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadConfigRejectsDirectory(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestLoadConfigWithoutFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAnalyzerTimeout, cfg.Analyzer.Timeout)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(cfg *Config) {}},
		{name: "missing extensions", mutate: func(cfg *Config) { cfg.Language.Extensions = nil }, wantErr: true},
		{name: "extension without dot", mutate: func(cfg *Config) { cfg.Language.Extensions = []string{"metta"} }, wantErr: true},
		{name: "negative jobs", mutate: func(cfg *Config) { cfg.Workspace.Jobs = -1 }, wantErr: true},
		{name: "zero timeout", mutate: func(cfg *Config) { cfg.Analyzer.Timeout = 0 }, wantErr: true},
		{name: "timeout too long", mutate: func(cfg *Config) { cfg.Analyzer.Timeout = time.Hour }, wantErr: true},
		{name: "bad log level", mutate: func(cfg *Config) { cfg.Logger.Level = "loud" }, wantErr: true},
		{name: "metrics address", mutate: func(cfg *Config) { cfg.Metrics.ListenAddress = "localhost:9464" }},
		{name: "bad metrics address", mutate: func(cfg *Config) { cfg.Metrics.ListenAddress = "nope" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetAnalyzerPath(t *testing.T) {
	cfg := Default()
	cfg.Analyzer.InstallRoot = "/opt/mettalint"

	t.Setenv(EnvHome, "")
	assert.Equal(t, filepath.Join("/opt/mettalint", "linter.py"), GetAnalyzerPath(cfg))

	t.Setenv(EnvHome, "/srv/ext")
	assert.Equal(t, filepath.Join("/srv/ext", "linter.py"), GetAnalyzerPath(cfg))

	cfg.Analyzer.Path = "/usr/local/bin/metta-lint"
	assert.Equal(t, "/usr/local/bin/metta-lint", GetAnalyzerPath(cfg))
}
