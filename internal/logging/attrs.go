package logging

import (
	"log/slog"
	"time"
)

// Attribute helpers keep call sites short and consistent.

func String(key, value string) slog.Attr { return slog.String(key, value) }

func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

func Int64(key string, value int64) slog.Attr { return slog.Int64(key, value) }

func Float64(key string, value float64) slog.Attr { return slog.Float64(key, value) }

func Bool(key string, value bool) slog.Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) slog.Attr { return slog.Duration(key, value) }

func Error(err error) slog.Attr { return slog.Any("error", err) }

// Args converts attrs into the ...any form slog methods accept.
func Args(attrs ...slog.Attr) []any {
	out := make([]any, len(attrs))
	for i, attr := range attrs {
		out[i] = attr
	}
	return out
}

// WithComponent returns a child logger tagged for the console handler's
// component prefix.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		return slog.Default().With(String("component", component))
	}
	return logger.With(String("component", component))
}
