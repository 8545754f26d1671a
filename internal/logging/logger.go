// Package logging builds the zap logger shared by every component.
package logging

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production JSON logger writing to stderr. verbose lowers the
// level to debug.
func New(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// WithRun tags every line of one bot invocation with a fresh run id.
func WithRun(logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("run_id", uuid.NewString()))
}
