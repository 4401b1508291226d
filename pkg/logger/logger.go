// Package logger configures log/slog for the services. Every record carries
// the service name, and request-scoped loggers add the request ID.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey struct{}

// Setup installs the default logger on stdout.
func Setup(service, level, format string) {
	SetupWriter(os.Stdout, service, level, format)
}

// SetupWriter installs the default logger writing to w. Format "json" gives
// one JSON object per line; anything else gives logfmt-style text. Debug
// level also records the call site.
func SetupWriter(w io.Writer, service, level, format string) {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				a.Value = slog.TimeValue(a.Value.Time().UTC())
			}
			return a
		},
	}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	l := slog.New(handler)
	if service != "" {
		l = l.With("service", service)
	}
	slog.SetDefault(l)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// RequestID returns the request ID stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// FromContext returns the default logger, tagged with the request ID when
// ctx has one.
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if id := RequestID(ctx); id != "" {
		l = l.With("request_id", id)
	}
	return l
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// ParseLevel maps a configured level name to a slog.Level. Unknown names
// fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
