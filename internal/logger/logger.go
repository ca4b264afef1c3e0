package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// FormatJSON emits one JSON object per line
	FormatJSON = "json"
	// FormatConsole emits human-readable lines for local runs
	FormatConsole = "console"
)

// New builds the logger selected by LOG_FORMAT
func New(format string, debugMode bool) (*zap.Logger, error) {
	switch format {
	case "", FormatJSON:
		return NewProductionLogger(debugMode)
	case FormatConsole:
		return NewDevelopmentLogger(debugMode)
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
}

// NewProductionLogger creates a production-ready logger with JSON encoding
func NewProductionLogger(debugMode bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = levelFor(debugMode)

	config.Encoding = FormatJSON
	config.EncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	// Sampling would drop repeated per-message decisions
	config.Sampling = nil

	return config.Build()
}

// NewDevelopmentLogger creates a development logger with console encoding
func NewDevelopmentLogger(debugMode bool) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = levelFor(debugMode)
	config.DisableStacktrace = true

	return config.Build()
}

// Sync flushes any buffered log entries. Safe to call with a nil logger.
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	return logger.Sync()
}

func levelFor(debugMode bool) zap.AtomicLevel {
	if debugMode {
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zap.NewAtomicLevelAt(zapcore.InfoLevel)
}
