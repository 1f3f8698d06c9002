package hubeau

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/giygas/qualite-eau-api/hubeau/entities"
	"github.com/giygas/qualite-eau-api/logging"
	"github.com/giygas/qualite-eau-api/metrics"
	"github.com/giygas/qualite-eau-api/validation"
	"github.com/jonboulle/clockwork"
)

// ResultatsFetcher is implemented by Client.
type ResultatsFetcher interface {
	FetchResultats(ctx context.Context, insee string) (entities.ResultatsResponse, error)
}

// CachedFetcher persists Hub'Eau responses under dir/{dept}/{insee}.json.
// Entries younger than the TTL are served without a request. When Hub'Eau
// fails, an expired entry is served instead of the error.
type CachedFetcher struct {
	inner ResultatsFetcher
	dir   string
	ttl   time.Duration
	clock clockwork.Clock

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCachedFetcher creates a disk cache decorator around a fetcher.
func NewCachedFetcher(inner ResultatsFetcher, dir string, ttl time.Duration, clock clockwork.Clock) *CachedFetcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedFetcher{
		inner: inner,
		dir:   dir,
		ttl:   ttl,
		clock: clock,
		locks: make(map[string]*sync.Mutex),
	}
}

// FetchSamples returns the samples of a commune, from the cache when fresh.
func (c *CachedFetcher) FetchSamples(ctx context.Context, insee string) ([]entities.Sample, error) {
	resp, err := c.FetchResultats(ctx, insee)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *CachedFetcher) FetchResultats(ctx context.Context, insee string) (entities.ResultatsResponse, error) {
	if err := validation.ValidateInsee(insee); err != nil {
		return entities.ResultatsResponse{}, err
	}

	// One request per commune at a time, concurrent callers reuse its result.
	lock := c.lockFor(insee)
	lock.Lock()
	defer lock.Unlock()

	path := c.path(insee)
	cached, fetchedAt, found := c.read(path)
	if found && c.clock.Since(fetchedAt) < c.ttl {
		metrics.SampleCacheLookups.WithLabelValues(metrics.CacheHit).Inc()
		return cached.Data, nil
	}

	resp, err := c.inner.FetchResultats(ctx, insee)
	if err != nil {
		if found {
			metrics.SampleCacheLookups.WithLabelValues(metrics.CacheStale).Inc()
			logging.Warn("Serving stale Hub'Eau response", "insee", insee, "fetched_at", fetchedAt, "error", err)
			return cached.Data, nil
		}
		return entities.ResultatsResponse{}, err
	}

	metrics.SampleCacheLookups.WithLabelValues(metrics.CacheMiss).Inc()
	if err := c.write(path, resp); err != nil {
		logging.Warn("Failed to cache Hub'Eau response", "insee", insee, "error", err)
	}
	return resp, nil
}

func (c *CachedFetcher) lockFor(insee string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[insee]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[insee] = lock
	}
	return lock
}

func (c *CachedFetcher) path(insee string) string {
	return filepath.Join(c.dir, insee[:2], insee+".json")
}

func (c *CachedFetcher) read(path string) (entities.CachedResultats, time.Time, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Warn("Failed to read cache entry", "path", path, "error", err)
		}
		return entities.CachedResultats{}, time.Time{}, false
	}

	var cached entities.CachedResultats
	if err := json.Unmarshal(content, &cached); err != nil {
		logging.Warn("Ignoring corrupt cache entry", "path", path, "error", err)
		return entities.CachedResultats{}, time.Time{}, false
	}

	if cached.FetchedAt != nil {
		return cached, *cached.FetchedAt, true
	}
	info, err := os.Stat(path)
	if err != nil {
		return cached, time.Time{}, true
	}
	return cached, info.ModTime(), true
}

// write replaces the entry atomically so readers never see a partial file.
func (c *CachedFetcher) write(path string, resp entities.ResultatsResponse) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	now := c.clock.Now()
	content, err := json.Marshal(entities.CachedResultats{FetchedAt: &now, Data: resp})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create cache entry: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move cache entry: %w", err)
	}
	return nil
}

// Purge removes entries fetched more than maxAge ago and returns their count.
// A missing cache directory is not an error.
func (c *CachedFetcher) Purge(maxAge time.Duration) (int, error) {
	removed := 0
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == c.dir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}

		insee := strings.TrimSuffix(d.Name(), ".json")
		if strings.HasPrefix(d.Name(), ".tmp-") || validation.ValidateInsee(insee) != nil {
			return nil
		}

		lock := c.lockFor(insee)
		lock.Lock()
		defer lock.Unlock()

		if _, fetchedAt, found := c.read(path); found && c.clock.Since(fetchedAt) <= maxAge {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove cache entry %s: %w", path, err)
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("cache purge failed: %w", err)
	}
	return removed, nil
}
