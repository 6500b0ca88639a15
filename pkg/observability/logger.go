// Package observability holds the logging, metrics, health and request
// context plumbing shared by the Vyora binaries.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	Level     slog.Level
	JSON      bool
	Output    io.Writer
	AddSource bool
	Service   string
	Version   string
}

// NewLogger builds a logger that stamps every record with the service
// attributes and the correlation, request and tenant IDs found on the
// context passed to the *Context logging methods.
func NewLogger(opts LoggerOptions) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level, AddSource: opts.AddSource}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	var attrs []slog.Attr
	if opts.Service != "" {
		attrs = append(attrs, slog.String("service", opts.Service))
	}
	if opts.Version != "" {
		attrs = append(attrs, slog.String("version", opts.Version))
	}
	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}
	return slog.New(&contextHandler{Handler: handler})
}

// ServiceLogger builds the logger for one binary from the loaded config.
// Production logs JSON to stdout with source locations; everything else
// logs text to stderr. An empty level means info, or debug in
// development.
func ServiceLogger(service, appEnv, level string) *slog.Logger {
	opts := LoggerOptions{
		Level:   ParseLevel(level),
		Service: service,
		Version: os.Getenv("VYORA_VERSION"),
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	switch appEnv {
	case "production":
		opts.JSON = true
		opts.Output = os.Stdout
		opts.AddSource = true
	case "development":
		if level == "" {
			opts.Level = slog.LevelDebug
		}
	}
	return NewLogger(opts)
}

// ParseLevel maps debug, warn and error to their slog levels. Anything
// else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// contextHandler copies request-scoped IDs from the context onto records.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, f := range []struct {
		key   string
		value string
	}{
		{CorrelationIDKey, CorrelationIDFromContext(ctx)},
		{RequestIDKey, RequestIDFromContext(ctx)},
		{TenantIDKey, TenantIDFromContext(ctx)},
	} {
		if f.value != "" {
			r.AddAttrs(slog.String(f.key, f.value))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}
