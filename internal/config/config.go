package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

const (
	// DefaultConfigFile is looked up in the working directory when --config is not set.
	DefaultConfigFile = "config.yml"

	// EnvHome overrides analyzer.install_root.
	EnvHome = "METTALINT_HOME"
	// EnvLogLevel overrides logger.level.
	EnvLogLevel = "METTALINT_LOG_LEVEL"

	DefaultAnalyzerTimeout = 30 * time.Second
)

// Config is the global YAML configuration.
type Config struct {
	Logger    Logger    `yaml:"logger"`
	Language  Language  `yaml:"language"`
	Analyzer  Analyzer  `yaml:"analyzer"`
	Workspace Workspace `yaml:"workspace"`
	Metrics   Metrics   `yaml:"metrics"`
}

// Logger holds logging settings.
type Logger struct {
	Level           string `yaml:"level" validate:"omitempty,oneof=TRACE DEBUG INFO WARN ERROR trace debug info warn error"`
	DisableTime     *bool  `yaml:"disable_time"`
	JSONFormat      *bool  `yaml:"json_format"`
	IncludeLocation *bool  `yaml:"include_location"`
}

// Language describes the files handled by the linter.
type Language struct {
	ID         string   `yaml:"id" validate:"required"`
	Name       string   `yaml:"name" validate:"required"`
	Extensions []string `yaml:"extensions" validate:"required,min=1,dive,startswith=."`
}

// Analyzer describes the external analysis program.
type Analyzer struct {
	Name           string        `yaml:"name" validate:"required"`
	InstallRoot    string        `yaml:"install_root"`
	Path           string        `yaml:"path" validate:"required"`
	Interpreter    string        `yaml:"interpreter"`
	Timeout        time.Duration `yaml:"timeout"`
	FailureMarkers []string      `yaml:"failure_markers" validate:"dive,required"`
	MaxProcesses   int           `yaml:"max_processes" validate:"gte=0,lte=256"`
}

// Workspace configures file enumeration for workspace-wide scans.
type Workspace struct {
	Include       []string `yaml:"include" validate:"required,min=1,dive,required"`
	Exclude       []string `yaml:"exclude" validate:"dive,required"`
	Jobs          int      `yaml:"jobs" validate:"gte=0,lte=256"`
	LintOnStartup *bool    `yaml:"lint_on_startup"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	ListenAddress string `yaml:"listen_address" validate:"omitempty,hostname_port"`
}

// Default returns the built-in configuration for MeTTa files.
func Default() *Config {
	return &Config{
		Logger: Logger{
			Level: "INFO",
		},
		Language: Language{
			ID:         "metta",
			Name:       "MeTTa",
			Extensions: []string{".metta"},
		},
		Analyzer: Analyzer{
			Name:           "metta-linter",
			Path:           "linter.py",
			Interpreter:    "python3",
			Timeout:        DefaultAnalyzerTimeout,
			FailureMarkers: []string{"Error", "Exception"},
			MaxProcesses:   4,
		},
		Workspace: Workspace{
			Include: []string{"**/*.metta"},
			Exclude: []string{"**/node_modules/**", "**/vendor/**", "**/.git/**"},
			Jobs:    4,
		},
	}
}

// ValidateConfigPath checks that path points to a regular file.
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

// LoadYAML decodes the YAML file at configPath into data.
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		return err
	}

	return nil
}

// LoadConfig reads configPath over the defaults. An empty configPath falls back to
// DefaultConfigFile when that file exists, and to the defaults alone otherwise.
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		if _, err := os.Stat(DefaultConfigFile); err != nil {
			return cfg, nil
		}
		configPath = DefaultConfigFile
	}

	if err := LoadYAML(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config file %q: %w", configPath, err)
	}
	return cfg, nil
}
