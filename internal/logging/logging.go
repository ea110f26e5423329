// Package logging builds the zap logger used by the ftpq CLI.
package logging

import (
	"go.uber.org/zap"
)

// New returns the CLI logger. Verbose runs get a console-encoded
// debug logger on stderr; normal runs get a no-op logger so command
// output stays clean.
func New(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}

	logger, err := zap.Config{
		Level:            zap.NewAtomicLevelAt(zap.DebugLevel),
		Development:      true,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
