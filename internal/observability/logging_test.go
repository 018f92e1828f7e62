package observability

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/repair-service/internal/config"
)

func TestLoggerConfig(t *testing.T) {
	cases := []struct {
		name        string
		cfg         config.LoggerConfig
		development bool
		level       zapcore.Level
		encoding    string
		levelOK     bool
		sampled     bool
	}{
		{name: "defaults", cfg: config.LoggerConfig{}, level: zapcore.InfoLevel, encoding: "json", levelOK: true, sampled: true},
		{name: "debug console", cfg: config.LoggerConfig{Level: " DEBUG ", Format: "console"}, development: true, level: zapcore.DebugLevel, encoding: "console", levelOK: true},
		{name: "unknown level", cfg: config.LoggerConfig{Level: "chatty"}, level: zapcore.InfoLevel, encoding: "json", sampled: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := loggerConfig(tc.cfg, tc.development)
			if ok != tc.levelOK {
				t.Fatalf("levelOK = %v, want %v", ok, tc.levelOK)
			}
			if got.Level.Level() != tc.level || got.Encoding != tc.encoding {
				t.Fatalf("got level %v encoding %s", got.Level.Level(), got.Encoding)
			}
			if (got.Sampling != nil) != tc.sampled {
				t.Fatalf("sampling = %v, want sampled=%v", got.Sampling, tc.sampled)
			}
		})
	}
}

func TestNewLoggerTagsService(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "error"}, config.AppConfig{Name: "repair-service", Version: "test"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	if logger.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("error level should suppress warnings")
	}
}
