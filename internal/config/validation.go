package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateConfig checks if the global configurations have valid values.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("YAML global config: configuration object is nil")
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("YAML global config: %w", err)
	}
	if err := ValidateAnalyzerConfig(&cfg.Analyzer); err != nil {
		return fmt.Errorf("YAML global config: analyzer directive is invalid: %w", err)
	}
	return nil
}

// ValidateAnalyzerConfig checks the analyzer settings that struct tags cannot express.
func ValidateAnalyzerConfig(analyzer *Analyzer) error {
	if analyzer == nil {
		return fmt.Errorf("analyzer configuration is nil")
	}
	if analyzer.Timeout == 0 {
		return fmt.Errorf("timeout must be set")
	}
	return validateDuration(analyzer.Timeout, "timeout", 10*time.Minute)
}

// validateDuration checks that a time.Duration is valid and within a specified maximum duration.
func validateDuration(d time.Duration, name string, max time.Duration) error {
	if d < 0 {
		return fmt.Errorf("invalid duration for %s: %v cannot be negative", name, d)
	}
	if d > max {
		return fmt.Errorf("%s duration is too long: %v exceeds maximum of %v", name, d, max)
	}
	return nil
}
