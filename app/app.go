// Package app wires the API together: the postal mapping store and its
// scheduler, the cached Hub'Eau client, the handlers and the HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/giygas/qualite-eau-api/config"
	"github.com/giygas/qualite-eau-api/data"
	"github.com/giygas/qualite-eau-api/handlers"
	"github.com/giygas/qualite-eau-api/health"
	"github.com/giygas/qualite-eau-api/hubeau"
	"github.com/giygas/qualite-eau-api/logging"
	"github.com/giygas/qualite-eau-api/postal"
	"github.com/giygas/qualite-eau-api/scheduler"
	"github.com/giygas/qualite-eau-api/server"
	"github.com/giygas/qualite-eau-api/validation"
)

const shutdownTimeout = 30 * time.Second

// App is a configured, not yet started, API server.
type App struct {
	cfg       *config.Config
	store     *data.DataContainer
	fetcher   *hubeau.CachedFetcher
	scheduler *scheduler.Scheduler
	server    *server.Server
}

// NewFetcher returns the Hub'Eau client behind the disk cache.
func NewFetcher(cfg *config.Config) *hubeau.CachedFetcher {
	client := hubeau.NewClient(hubeau.Options{
		BaseURL:  cfg.HubeauBaseURL,
		Timeout:  cfg.HubeauTimeout,
		Rate:     cfg.HubeauRate,
		PageSize: cfg.HubeauPageSize,
	})
	return hubeau.NewCachedFetcher(client, cfg.CacheDir, cfg.CacheTTL, nil)
}

// New builds every component from cfg.
func New(cfg *config.Config) *App {
	store := data.NewDataContainer()
	validator := validation.NewDataValidator()
	fetcher := NewFetcher(cfg)

	sched := scheduler.NewScheduler(store, postal.NewFileLoader(cfg.PostalMappingFile), validator, fetcher,
		scheduler.Options{
			WatchPath:      cfg.PostalMappingFile,
			CacheRetention: cfg.CacheRetention,
		})

	handler := handlers.NewHTTPHandler(store, fetcher, validator, health.NewHealthChecker(store))

	return &App{
		cfg:       cfg,
		store:     store,
		fetcher:   fetcher,
		scheduler: sched,
		server:    server.NewServer(cfg, handler),
	}
}

// Handler returns the HTTP handler of the API.
func (a *App) Handler() http.Handler {
	return a.server.Router()
}

// Run loads the mapping, serves HTTP until ctx is cancelled, then shuts
// down gracefully.
func (a *App) Run(ctx context.Context) error {
	a.store.SetServerStartTime(time.Now())

	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer a.scheduler.Stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- a.server.Start()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info("Shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}
