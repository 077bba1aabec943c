package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// OutputPaths mixes "stdout"/"stderr" with file paths. Terminal
	// writers get the handler named by Format (console by default), file
	// writers always get JSON so the per-run log stays machine-readable; a
	// fanout handler ties them together.
	OutputPaths []string
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(ParseLevel(opts.Level))

	terminal, files, err := openWriters(opts.OutputPaths)
	if err != nil {
		return nil, err
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var handlers []slog.Handler
	if terminal != nil {
		switch format {
		case "json":
			handlers = append(handlers, newJSONHandler(terminal, levelVar))
		case "console":
			handlers = append(handlers, NewConsoleHandler(terminal, levelVar))
		default:
			return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
		}
	}
	if files != nil {
		handlers = append(handlers, newJSONHandler(files, levelVar))
	}
	if len(handlers) == 0 {
		handlers = append(handlers, NewConsoleHandler(os.Stderr, levelVar))
	}

	return slog.New(newFanoutHandler(handlers...)), nil
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openWriters(paths []string) (terminal io.Writer, files io.Writer, err error) {
	if len(paths) == 0 {
		return os.Stderr, nil, nil
	}

	seen := map[string]struct{}{}
	var terminals, fileWriters []io.Writer
	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}

		switch trimmed {
		case "stdout":
			terminals = append(terminals, os.Stdout)
		case "stderr":
			terminals = append(terminals, os.Stderr)
		default:
			if dir := filepath.Dir(trimmed); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, nil, fmt.Errorf("ensure log directory: %w", err)
				}
			}
			file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, nil, fmt.Errorf("open log file %s: %w", trimmed, err)
			}
			fileWriters = append(fileWriters, file)
		}
	}

	return multi(terminals), multi(fileWriters), nil
}

func multi(writers []io.Writer) io.Writer {
	switch len(writers) {
	case 0:
		return nil
	case 1:
		return writers[0]
	default:
		return io.MultiWriter(writers...)
	}
}

func newJSONHandler(w io.Writer, lvl *slog.LevelVar) slog.Handler {
	opts := slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
				}
			case slog.LevelKey:
				attr.Key = "level"
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			case slog.MessageKey:
				attr.Key = "msg"
			}
			return attr
		},
	}
	return slog.NewJSONHandler(w, &opts)
}
