// Package logging wraps zerolog the way the teacher's
// internal/service/logger package does: a package-level logger configured
// once at startup, threaded through context so call sites don't need a
// logger parameter.
package logging

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the process-wide base logger. Init must be called once before
// use; the zero value falls back to a disabled logger so tests that don't
// call Init don't panic, they just produce no output.
var Log = zerolog.Nop()

type ctxKey struct{}

// Init configures Log with an RFC3339Nano timestamp and a "service" field.
// debug enables debug-level output; otherwise info level.
func Init(service string, debug bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	Log = zerolog.New(os.Stderr).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

// WithContext attaches l to ctx so FromContext retrieves it downstream.
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached to ctx, or Log if none.
func FromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return Log
}
