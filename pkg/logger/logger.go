// Package logger constructs the structured loggers used throughout ember.
// Every subsystem receives a *zap.SugaredLogger built here rather than
// reaching for a package-level global, so tests can inject their own.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style zap logger scoped to the given service name.
// The service name is attached to every log line under the "service" field,
// which lets a caller embedding multiple ember instances tell them apart.
func New(service string) *zap.SugaredLogger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.TimeKey = "ts"

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg),
		zapcore.Lock(os.Stdout),
		zap.NewAtomicLevelAt(zapcore.InfoLevel),
	)

	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return base.Sugar().With("service", service)
}

// NewNop returns a logger that discards everything, for use in tests and
// benchmarks where log output would only add noise.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
