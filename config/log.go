package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel is a textual log level accepted in configuration files.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

func (l LogLevel) String() string {
	return string(l)
}

// Parse maps the level, including common aliases, to a zap level.
func (l LogLevel) Parse() (zapcore.Level, error) {
	switch LogLevel(strings.ToLower(string(l))) {
	case LogLevelDebug, "trace":
		return zap.DebugLevel, nil
	case LogLevelInfo, "information", "notice", "":
		return zap.InfoLevel, nil
	case LogLevelWarn, "warning":
		return zap.WarnLevel, nil
	case LogLevelError:
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("unknown log level %q", string(l))
	}
}

// Zap returns an atomic level for l; unknown levels map to info.
func (l LogLevel) Zap() zap.AtomicLevel {
	lvl, _ := l.Parse()
	return zap.NewAtomicLevelAt(lvl)
}

// NewLogger builds a zap logger for the logging section. The returned
// AtomicLevel can change the level at runtime.
func (c LoggingConfig) NewLogger() (*zap.Logger, zap.AtomicLevel, error) {
	zc := zap.NewProductionConfig()
	if c.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = c.Level.Zap()
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, zc.Level, fmt.Errorf("build logger: %w", err)
	}
	return logger, zc.Level, nil
}
