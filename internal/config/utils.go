package config

import (
	"os"
	"path/filepath"
	"reflect"
	"runtime"
)

// GetBoolValue returns *value when it is set, defaultValue otherwise.
func GetBoolValue(value *bool, defaultValue bool) bool {
	if value == nil {
		return defaultValue
	}
	return *value
}

// SetThen provides a utility to select the first value if set, otherwise defaults.
func SetThen[T any](value T, defaultValue T) T {
	if reflect.ValueOf(value).IsZero() {
		return defaultValue
	}
	return value
}

// GetInstallRoot resolves the directory the analyzer lives in.
// The METTALINT_HOME environment variable has the first priority, then analyzer.install_root,
// then the directory of the running executable.
func GetInstallRoot(cfg *Config) string {
	if env := os.Getenv(EnvHome); env != "" {
		return env
	}
	if cfg != nil && cfg.Analyzer.InstallRoot != "" {
		return cfg.Analyzer.InstallRoot
	}
	exe, err := os.Executable()
	if err != nil {
		wd, _ := os.Getwd()
		return wd
	}
	return filepath.Dir(exe)
}

// GetAnalyzerPath returns the absolute location of the analyzer artifact.
func GetAnalyzerPath(cfg *Config) string {
	if filepath.IsAbs(cfg.Analyzer.Path) {
		return cfg.Analyzer.Path
	}
	return filepath.Join(GetInstallRoot(cfg), cfg.Analyzer.Path)
}

// GetJobs returns the workspace scan concurrency.
func GetJobs(cfg *Config) int {
	return SetThen(cfg.Workspace.Jobs, runtime.NumCPU())
}

// GetMaxProcesses returns the cap on simultaneously running analyzer processes.
func GetMaxProcesses(cfg *Config) int {
	return SetThen(cfg.Analyzer.MaxProcesses, runtime.NumCPU())
}

// LintOnStartup reports whether hosts scan the workspace when they start.
func LintOnStartup(cfg *Config) bool {
	return GetBoolValue(cfg.Workspace.LintOnStartup, true)
}
