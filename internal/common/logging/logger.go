// Package logging provides structured logging using zap
package logging

import (
	"context"
	"fmt"
	"os"
)

const defaultLogFile = "oauth-token-cache.log"

// NewDefaultLogger creates a logger with default configuration using zap
func NewDefaultLogger() Logger {
	logger, err := NewZapLogger(DefaultLogConfig())
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// InitGlobalLogger replaces the global logger using LOG_LEVEL and LOG_FILE.
// An unset LOG_FILE keeps output on stdout; LOG_FILE=default writes to
// oauth-token-cache.log in the working directory.
func InitGlobalLogger() {
	level := ParseLevel(os.Getenv("LOG_LEVEL"))
	config := LogConfig{Level: level}

	logFileName := os.Getenv("LOG_FILE")
	if logFileName == "default" {
		logFileName = defaultLogFile
	}
	if logFileName != "" {
		file, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			panic(fmt.Sprintf("Failed to open log file %s: %v", logFileName, err))
		}
		config.Output = file
	}

	logger, err := NewZapLogger(config)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	SetGlobalLogger(logger)

	logger.Debug("Logger initialized",
		Field{"level", level.String()},
		Field{"log_file", logFileName},
	)
}

// MustSync flushes any buffered log entries. Call before exit.
func MustSync() {
	if zapLogger, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = zapLogger.Sync()
	}
}

// WithContext is a convenience function to add context to the global logger
func WithContext(ctx context.Context) Logger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithFields is a convenience function to add fields to the global logger
func WithFields(fields ...Field) Logger {
	return GetGlobalLogger().WithFields(fields...)
}
