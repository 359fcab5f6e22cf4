// Package obs wraps process-scoped *zap.Logger handles. cmd/indexchan
// constructs them (one per command, plus a second, NewRPC-built one for
// the rpc server) and passes them explicitly down the call chain; this
// package never holds a package-level singleton, per the
// "avoid singletons, pass a store handle explicitly" design note in
// spec.md §9, applied equally to the logger.
package obs

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger suitable for CLI use: human-readable console
// output on stderr, level controlled by verbose.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}

// NewRPC builds a logger for the RPC server, where stdout is reserved
// for JSON-RPC traffic and all logging must go to stderr.
func NewRPC(verbose bool) (*zap.Logger, error) {
	return New(verbose)
}

// Component returns a child logger tagged with the originating
// component. No package in this repository calls it; loggers are
// passed down untagged.
func Component(base *zap.Logger, name string) *zap.Logger {
	return base.With(zap.String("component", name))
}
