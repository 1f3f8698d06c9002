package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/giygas/qualite-eau-api/app"
	"github.com/giygas/qualite-eau-api/config"
	"github.com/giygas/qualite-eau-api/logging"
	"github.com/joho/godotenv"
)

func main() {
	if err := loadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to locate .env:", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Invalid configuration:", err)
		os.Exit(1)
	}

	if err := logging.InitLogger(logging.Options{
		Dir:            cfg.LogDir,
		Level:          cfg.LogLevel,
		Env:            cfg.Env,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logging:", err)
		os.Exit(1)
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.New(cfg).Run(ctx); err != nil {
		logging.Error("Server stopped with an error", "error", err)
		logging.Close()
		os.Exit(1)
	}
}

// loadEnv reads .env from the working directory, or moves to the directory
// of the executable when there is none there.
func loadEnv() error {
	if err := godotenv.Load(); err == nil {
		return nil
	}

	ex, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	if err := os.Chdir(filepath.Dir(ex)); err != nil {
		return fmt.Errorf("failed to change directory: %w", err)
	}
	// Plain environment variables are enough without a .env file.
	_ = godotenv.Load()
	return nil
}
