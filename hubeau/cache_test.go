package hubeau

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/giygas/qualite-eau-api/hubeau/entities"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	calls atomic.Int32
	mu    sync.Mutex
	err   error
	resp  entities.ResultatsResponse
}

func (f *fakeFetcher) FetchResultats(ctx context.Context, insee string) (entities.ResultatsResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return entities.ResultatsResponse{}, f.err
	}
	return f.resp, nil
}

func (f *fakeFetcher) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func newFakeFetcher(labels ...string) *fakeFetcher {
	f := &fakeFetcher{}
	for _, label := range labels {
		f.resp.Data = append(f.resp.Data, entities.Sample{LibelleParametre: label})
	}
	f.resp.Count = len(labels)
	return f
}

func TestCachedFetcherHitAndExpiry(t *testing.T) {
	dir := t.TempDir()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC))
	inner := newFakeFetcher("Nitrates", "pH")
	cache := NewCachedFetcher(inner, dir, 12*time.Hour, clock)

	samples, err := cache.FetchSamples(context.Background(), "33063")
	require.NoError(t, err)
	assert.Len(t, samples, 2)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.FileExists(t, filepath.Join(dir, "33", "33063.json"))

	clock.Advance(11 * time.Hour)
	_, err = cache.FetchSamples(context.Background(), "33063")
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.calls.Load(), "fresh entry should be served from disk")

	clock.Advance(2 * time.Hour)
	_, err = cache.FetchSamples(context.Background(), "33063")
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load(), "expired entry should be refetched")
}

func TestCachedFetcherServesStaleOnError(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inner := newFakeFetcher("Nitrates")
	cache := NewCachedFetcher(inner, t.TempDir(), time.Hour, clock)

	_, err := cache.FetchSamples(context.Background(), "2A004")
	require.NoError(t, err)

	clock.Advance(3 * time.Hour)
	inner.fail(ErrRateLimited)

	samples, err := cache.FetchSamples(context.Background(), "2A004")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "Nitrates", samples[0].LibelleParametre)
}

func TestCachedFetcherPropagatesErrorWithoutEntry(t *testing.T) {
	inner := newFakeFetcher()
	inner.fail(ErrUpstream)
	cache := NewCachedFetcher(inner, t.TempDir(), time.Hour, clockwork.NewFakeClock())

	_, err := cache.FetchSamples(context.Background(), "33063")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestCachedFetcherRejectsInvalidInsee(t *testing.T) {
	inner := newFakeFetcher("Nitrates")
	dir := t.TempDir()
	cache := NewCachedFetcher(inner, dir, time.Hour, clockwork.NewFakeClock())

	for _, insee := range []string{"", "3", "../../etc", "3306A"} {
		_, err := cache.FetchSamples(context.Background(), insee)
		assert.Error(t, err, insee)
	}
	assert.Equal(t, int32(0), inner.calls.Load())
}

func TestCachedFetcherReadsLegacyEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "33", "33063.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte(`{"data":{"count":1,"data":[{"libelle_parametre":"Plomb"}]}}`), 0640))

	// No fetched_at: the modification time decides freshness.
	clock := clockwork.NewFakeClockAt(time.Now())
	inner := newFakeFetcher("Nitrates")
	cache := NewCachedFetcher(inner, dir, time.Hour, clock)

	samples, err := cache.FetchSamples(context.Background(), "33063")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "Plomb", samples[0].LibelleParametre)
	assert.Equal(t, int32(0), inner.calls.Load())
}

func TestCachedFetcherIgnoresCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "33", "33063.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte(`{"data":`), 0640))

	inner := newFakeFetcher("Nitrates")
	cache := NewCachedFetcher(inner, dir, time.Hour, clockwork.NewFakeClockAt(time.Now()))

	samples, err := cache.FetchSamples(context.Background(), "33063")
	require.NoError(t, err)
	assert.Len(t, samples, 1)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedFetcherConcurrentCallersShareRequest(t *testing.T) {
	inner := newFakeFetcher("Nitrates")
	cache := NewCachedFetcher(inner, t.TempDir(), time.Hour, clockwork.NewFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.FetchSamples(context.Background(), "33063")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedFetcherPurge(t *testing.T) {
	dir := t.TempDir()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC))
	inner := newFakeFetcher("Nitrates")
	cache := NewCachedFetcher(inner, dir, time.Hour, clock)

	_, err := cache.FetchSamples(context.Background(), "33063")
	require.NoError(t, err)

	clock.Advance(40 * time.Hour)
	_, err = cache.FetchSamples(context.Background(), "75101")
	require.NoError(t, err)

	tmp := filepath.Join(dir, "33", ".tmp-123.json")
	require.NoError(t, os.WriteFile(tmp, []byte("{}"), 0640))

	removed, err := cache.Purge(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, filepath.Join(dir, "33", "33063.json"))
	assert.FileExists(t, filepath.Join(dir, "75", "75101.json"))
	assert.FileExists(t, tmp)
}

func TestCachedFetcherPurgeMissingDir(t *testing.T) {
	cache := NewCachedFetcher(newFakeFetcher(), filepath.Join(t.TempDir(), "missing"), time.Hour, nil)

	removed, err := cache.Purge(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestCachedFetcherWriteFailureStillReturnsData(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "33")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0640))

	inner := newFakeFetcher("Nitrates")
	cache := NewCachedFetcher(inner, dir, time.Hour, clockwork.NewFakeClock())

	samples, err := cache.FetchSamples(context.Background(), "33063")
	require.NoError(t, err)
	assert.Len(t, samples, 1)
	assert.False(t, errors.Is(err, ErrUpstream))
}
