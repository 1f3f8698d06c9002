package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

type LoggingService struct {
	Logger *slog.Logger
	closer io.Closer
}

var (
	mu                    sync.RWMutex
	DefaultLoggingService *LoggingService
)

// InitLogger initializes the global logger and makes it the slog default.
// A logger is installed even when the log directory is unusable, in which
// case it writes to the console only and the error is returned.
func InitLogger(opts Options) error {
	logger, closer, err := New(opts)

	mu.Lock()
	previous := DefaultLoggingService
	DefaultLoggingService = &LoggingService{Logger: logger, closer: closer}
	mu.Unlock()

	if previous != nil && previous.closer != nil {
		_ = previous.closer.Close()
	}
	slog.SetDefault(logger)
	return err
}

// InitConsoleLogger installs a logger writing text to w only, for
// short-lived commands that should not touch the log directory.
func InitConsoleLogger(w io.Writer, level string) {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))

	mu.Lock()
	previous := DefaultLoggingService
	DefaultLoggingService = &LoggingService{Logger: logger}
	mu.Unlock()

	if previous != nil && previous.closer != nil {
		_ = previous.closer.Close()
	}
	slog.SetDefault(logger)
}

// Close releases the log file of the global logger.
func Close() error {
	mu.Lock()
	service := DefaultLoggingService
	DefaultLoggingService = nil
	mu.Unlock()

	if service == nil || service.closer == nil {
		return nil
	}
	return service.closer.Close()
}

// Logger returns the global logger, or a stderr logger before InitLogger.
func Logger() *slog.Logger {
	mu.RLock()
	service := DefaultLoggingService
	mu.RUnlock()

	if service == nil || service.Logger == nil {
		return fallback
	}
	return service.Logger
}

var fallback = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

// Package-level functions for direct access

func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}
