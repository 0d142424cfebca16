package logger

import (
	"bytes"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"

	"github.com/scan-io-git/mettalint/internal/config"
)

func TestDetermineLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		cfgLevel string
		want     hclog.Level
	}{
		{name: "config level", cfgLevel: "debug", want: hclog.Debug},
		{name: "env wins over config", env: "error", cfgLevel: "debug", want: hclog.Error},
		{name: "empty defaults to info", want: hclog.Info},
		{name: "unknown defaults to info", cfgLevel: "verbose", want: hclog.Info},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(config.EnvLogLevel, tt.env)
			cfg := config.Default()
			cfg.Logger.Level = tt.cfgLevel
			assert.Equal(t, tt.want, determineLogLevel(cfg))
		})
	}
}

func TestNewLoggerJSONFormat(t *testing.T) {
	t.Setenv(config.EnvLogLevel, "")
	cfg := config.Default()
	jsonFormat := true
	cfg.Logger.JSONFormat = &jsonFormat

	var buf bytes.Buffer
	l := newLogger(cfg, "core-test", &buf)
	l.Info("analyzer finished", "findings", 3)

	assert.Contains(t, buf.String(), `"@message":"analyzer finished"`)
	assert.Contains(t, buf.String(), `"@module":"core-test"`)
}
