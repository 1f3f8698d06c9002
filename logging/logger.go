package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/giygas/qualite-eau-api/config"
)

// Options configures New.
type Options struct {
	Dir            string
	Level          string
	Env            config.Environment
	RetentionWeeks int
	MaxFileSize    int64
	Console        io.Writer // defaults to os.Stdout
}

// ParseLevel maps a LOG_LEVEL value to a slog level, info when unknown.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// consoleLevel keeps test runs quiet and never lets production print debug
// output to the console. The JSON file always gets the configured level.
func consoleLevel(env config.Environment, level string) slog.Level {
	l := ParseLevel(level)
	switch env {
	case config.EnvTest:
		return max(l, slog.LevelWarn)
	case config.EnvProduction:
		return max(l, slog.LevelInfo)
	}
	return l
}

// New builds a logger writing text to the console and JSON to a weekly
// rotating file under opts.Dir. The returned closer releases the file. When
// the directory cannot be used the logger falls back to the console and the
// error is returned alongside it.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{Level: consoleLevel(opts.Env, opts.Level)})

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	retention := opts.RetentionWeeks
	if retention <= 0 {
		retention = 4
	}

	writer, err := NewRotatingWriter(opts.Dir, retention, maxSize)
	if err != nil {
		return slog.New(consoleHandler), nopCloser{}, err
	}

	fileHandler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: ParseLevel(opts.Level)})
	return slog.New(&multiHandler{handlers: []slog.Handler{consoleHandler, fileHandler}}), writer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// multiHandler fans records out to every handler enabled for their level.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
