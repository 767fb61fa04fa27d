package unxf

import (
	"context"
)

// Logger records security-significant events emitted by Filter.
//
// Implementations should be safe for concurrent use, as a single Filter
// instance is typically shared across many goroutines.
//
// The provided context is the one passed to Filter.Resolve; for the HTTP
// middleware this is the inbound request context and can carry tracing
// metadata.
//
// The interface mirrors slog's WarnContext signature, so *slog.Logger can be
// used directly without an adapter.
type Logger interface {
	WarnContext(ctx context.Context, msg string, args ...any)
}

// noopLogger is the default Logger implementation when logging is not
// explicitly configured.
type noopLogger struct{}

func (noopLogger) WarnContext(context.Context, string, ...any) {}
