package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"
)

// Logger wraps slog.Logger with application-specific functionality
type Logger struct {
	*slog.Logger
}

// Options controls handler selection.
type Options struct {
	Level string
	// Format is "json" (default) or "console".
	Format string
	// Output defaults to stdout for json and stderr for console.
	Output io.Writer
	// Extra handlers receive every record in addition to the primary one.
	Extra []slog.Handler
}

// New creates a new logger with the specified level
func New(level string) *Logger {
	return NewWithOptions(Options{Level: level})
}

// NewWithOptions builds a logger from explicit options. When extra handlers are
// supplied the records fan out to all of them.
func NewWithOptions(opts Options) *Logger {
	logLevel := parseLevel(opts.Level)

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "console":
		out := opts.Output
		if out == nil {
			out = os.Stderr
		}
		handler = console.NewHandler(out, &console.HandlerOptions{Level: logLevel})
	default:
		out := opts.Output
		if out == nil {
			out = os.Stdout
		}
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: logLevel})
	}

	if len(opts.Extra) > 0 {
		handlers := append([]slog.Handler{handler}, opts.Extra...)
		handler = slogmulti.Fanout(handlers...)
	}

	return &Logger{Logger: slog.New(handler)}
}

// NewFileHandler returns a JSON handler appending to path.
func NewFileHandler(path, level string) (slog.Handler, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return slog.NewJSONHandler(f, &slog.HandlerOptions{Level: parseLevel(level)}), f, nil
}

// With returns a child logger carrying args on every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a logger with default settings
func Default() *Logger {
	return New("info")
}

func parseLevel(level string) slog.Level {
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
