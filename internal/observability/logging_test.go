package observability

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/alpi-dev/alpi/internal/config"
)

func TestLoggerConfig(t *testing.T) {
	tests := []struct {
		name        string
		app         config.AppConfig
		logger      config.LoggerConfig
		development bool
		level       zapcore.Level
		encoding    string
	}{
		{"production", config.AppConfig{Name: "alpi", Env: "production", Version: "1.4.0"}, config.LoggerConfig{Level: "warn"}, false, zapcore.WarnLevel, "json"},
		{"development", config.AppConfig{Name: "alpi", Env: "development", Version: "dev"}, config.LoggerConfig{Level: "DEBUG", Encoding: "console"}, true, zapcore.DebugLevel, "console"},
		{"staging with bad level", config.AppConfig{Name: "alpi", Env: "staging"}, config.LoggerConfig{Level: "loud", Encoding: "xml"}, false, zapcore.InfoLevel, "json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loggerConfig(tt.app, tt.logger)
			if cfg.Development != tt.development {
				t.Fatalf("Development = %v, want %v", cfg.Development, tt.development)
			}
			if got := cfg.Level.Level(); got != tt.level {
				t.Fatalf("level = %v, want %v", got, tt.level)
			}
			if cfg.Encoding != tt.encoding {
				t.Fatalf("encoding = %s, want %s", cfg.Encoding, tt.encoding)
			}
			if (cfg.Sampling == nil) != tt.development {
				t.Fatalf("sampling = %+v for development=%v", cfg.Sampling, tt.development)
			}
			if cfg.InitialFields["service"] != tt.app.Name || cfg.InitialFields["version"] != tt.app.Version || cfg.InitialFields["env"] != tt.app.Env {
				t.Fatalf("initial fields = %v", cfg.InitialFields)
			}
		})
	}
}

func TestNewLoggerProductionDoesNotPanicOnDPanic(t *testing.T) {
	logger, err := NewLogger(config.AppConfig{Name: "alpi", Env: "production"}, config.LoggerConfig{Level: "fatal"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("DPanic panicked in production: %v", r)
		}
	}()
	logger.DPanic("unexpected state")
}
