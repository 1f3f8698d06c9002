// Package scheduler reloads the postal code mapping on a schedule and when
// its file changes, purges expired Hub'Eau cache entries and warns when the
// mapping gets stale.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/giygas/qualite-eau-api/interfaces"
	"github.com/giygas/qualite-eau-api/logging"
	"github.com/giygas/qualite-eau-api/postal"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// staleAfter is the mapping age that triggers the hourly warning.
const staleAfter = 25 * time.Hour

// Options configures the optional jobs of a Scheduler.
type Options struct {
	// WatchPath enables immediate reloads when the mapping file changes.
	WatchPath string
	// CacheRetention is the age after which cache entries are purged.
	CacheRetention time.Duration
}

// Scheduler handles mapping reloads and cache maintenance using dependency injection
type Scheduler struct {
	dataStore interfaces.DataStore
	loader    interfaces.MappingLoader
	validator interfaces.DataValidator
	purger    interfaces.CachePurger
	opts      Options
	scheduler *gocron.Scheduler

	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewScheduler creates a new scheduler instance with injected dependencies.
// purger may be nil.
func NewScheduler(dataStore interfaces.DataStore, loader interfaces.MappingLoader, validator interfaces.DataValidator,
	purger interfaces.CachePurger, opts Options) *Scheduler {
	return &Scheduler{
		dataStore: dataStore,
		loader:    loader,
		validator: validator,
		purger:    purger,
		opts:      opts,
		scheduler: gocron.NewScheduler(time.Local),
		cancel:    func() {},
	}
}

// Start loads the mapping, then schedules reloads at 06:00 and 18:00.
// A failing initial load aborts the start.
func (s *Scheduler) Start() error {
	if err := s.updateData(); err != nil {
		logging.Error("Failed to perform initial mapping load", "error", err)
		return fmt.Errorf("initial mapping load failed: %w", err)
	}

	_, err := s.scheduler.Every(1).Days().At("06:00;18:00").Do(func() {
		if err := s.updateData(); err != nil {
			logging.Error("Failed to reload mapping", "error", err)
		}
		s.purgeCache()
	})
	if err != nil {
		logging.Error("Failed to schedule updates", "error", err)
		return fmt.Errorf("failed to schedule updates: %w", err)
	}

	_, err = s.scheduler.Every(1).Hour().WaitForSchedule().Do(s.checkStaleness)
	if err != nil {
		return fmt.Errorf("failed to schedule health monitoring: %w", err)
	}

	s.scheduler.StartAsync()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if s.opts.WatchPath != "" {
		err := postal.Watch(ctx, s.opts.WatchPath, func() {
			if err := s.updateData(); err != nil {
				logging.Error("Failed to reload mapping after file change", "error", err)
			}
		})
		if err != nil {
			// Scheduled reloads still run.
			logging.Warn("Mapping file watcher disabled", "path", s.opts.WatchPath, "error", err)
		}
	}

	return nil
}

// Stop stops the scheduled jobs and the file watcher
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.scheduler.Stop()
		s.cancel()
	})
}

// updateData loads, validates and atomically swaps the mapping.
// A failed load or validation keeps the current mapping.
func (s *Scheduler) updateData() error {
	// Prevent concurrent updates
	if !s.dataStore.BeginUpdate() {
		logging.Info("Update already in progress, skipping...")
		return nil
	}
	defer s.dataStore.EndUpdate()

	start := time.Now()
	logging.Info("Starting mapping update")

	mapping, err := s.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load mapping: %w", err)
	}
	if err := s.validator.ValidateMapping(mapping); err != nil {
		return fmt.Errorf("mapping rejected: %w", err)
	}

	report := s.validator.ReportDataQuality(mapping)
	s.dataStore.UpdateData(mapping, report)

	logging.Info("Mapping update completed",
		"duration", time.Since(start).String(),
		"postal_codes", report.PostalCodes,
		"communes", report.Communes,
	)
	return nil
}

// purgeCache removes cache entries older than the retention period.
func (s *Scheduler) purgeCache() {
	if s.purger == nil || s.opts.CacheRetention <= 0 {
		return
	}
	removed, err := s.purger.Purge(s.opts.CacheRetention)
	if err != nil {
		logging.Error("Cache purge failed", "error", err, "removed", removed)
		return
	}
	logging.Info("Cache purge completed", "removed", removed, "retention", s.opts.CacheRetention.String())
}

// checkStaleness warns when the mapping has not been reloaded for a day.
func (s *Scheduler) checkStaleness() {
	if age := time.Since(s.dataStore.GetLastUpdated()); age > staleAfter {
		logging.Warn("Mapping hasn't been updated in over 25 hours", "age", age.Round(time.Minute).String())
	}
}
