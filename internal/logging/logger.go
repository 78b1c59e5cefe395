// Package logging provides the structured debug logger for the wizard.
//
// The TUI owns the terminal, so the logger writes to a file and is a no-op
// unless a log path is configured.
package logging

import (
	"go.uber.org/zap"
)

// NewLogger builds a structured logger writing to the given file path.
// An empty path returns a no-op logger.
func NewLogger(path string) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	return cfg.Build()
}

// WithOperation enriches the logger with operation and session identifiers.
func WithOperation(logger *zap.Logger, operation, sessionID string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if sessionID != "" {
		fields = append(fields, zap.String("session_id", sessionID))
	}
	return logger.With(fields...)
}
