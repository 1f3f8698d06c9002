package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultMaxFileSize is the size at which a weekly file rolls over.
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

var numberedFile = regexp.MustCompile(`^app-\d{4}-W\d{2}_(\d{2})\.log$`)

// RotatingWriter writes to one file per ISO week, app-YYYY-Www.log, rolling
// over to app-YYYY-Www_NN.log when a file reaches its size limit. Files older
// than the retention period are removed by a daily cleanup.
type RotatingWriter struct {
	dir         string
	retention   time.Duration
	maxFileSize int64
	now         func() time.Time

	mu   sync.Mutex
	file *os.File
	week string
	size int64

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewRotatingWriter creates dir if needed and opens the file of the current week.
func NewRotatingWriter(dir string, retentionWeeks int, maxFileSize int64) (*RotatingWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	w := &RotatingWriter{
		dir:         dir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
		now:         time.Now,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}

	w.mu.Lock()
	err := w.rotate(weekKey(w.now()), false)
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}

	go w.cleanupLoop(24 * time.Hour)
	return w, nil
}

// weekKey returns the ISO week in YYYY-Www format.
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// rotate opens the file to write to for week. Caller holds mu.
func (w *RotatingWriter) rotate(week string, full bool) error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}

	name := w.fileFor(week, full)
	path := filepath.Join(w.dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	w.file = file
	w.week = week
	w.size = 0
	if info, err := file.Stat(); err == nil {
		w.size = info.Size()
	}
	return nil
}

// fileFor picks the base weekly file while it has room, otherwise the last
// numbered file with room, otherwise the next numbered file. When the current
// file is full it always moves to the next numbered file.
func (w *RotatingWriter) fileFor(week string, full bool) string {
	base := fmt.Sprintf("app-%s.log", week)
	if !full {
		info, err := os.Stat(filepath.Join(w.dir, base))
		if err != nil || w.maxFileSize <= 0 || info.Size() < w.maxFileSize {
			return base
		}
	}

	matches, _ := filepath.Glob(filepath.Join(w.dir, fmt.Sprintf("app-%s_??.log", week)))
	highest := 0
	var lastSize int64
	for _, match := range matches {
		m := numberedFile.FindStringSubmatch(filepath.Base(match))
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		if n > highest {
			highest = n
			lastSize = 0
			if info, err := os.Stat(match); err == nil {
				lastSize = info.Size()
			}
		}
	}

	if !full && highest > 0 && lastSize < w.maxFileSize {
		return fmt.Sprintf("app-%s_%02d.log", week, highest)
	}
	return fmt.Sprintf("app-%s_%02d.log", week, highest+1)
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	week := weekKey(w.now())
	switch {
	case week != w.week:
		if err := w.rotate(week, false); err != nil {
			return 0, err
		}
	case w.maxFileSize > 0 && w.size+int64(len(p)) > w.maxFileSize:
		if err := w.rotate(week, true); err != nil {
			return 0, err
		}
	}

	if w.file == nil {
		return 0, fmt.Errorf("no log file available")
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Cleanup removes log files last modified before the retention period and
// returns how many were removed.
func (w *RotatingWriter) Cleanup() (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := w.now().Add(-w.retention)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "app-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(w.dir, name)); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (w *RotatingWriter) cleanupLoop(interval time.Duration) {
	defer close(w.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			if n, err := w.Cleanup(); err != nil {
				fmt.Fprintf(os.Stderr, "log cleanup failed: %v\n", err)
			} else if n > 0 {
				// Console only, writing through slog here would recurse.
				fmt.Printf("Cleaned up %d old log files\n", n)
			}
		}
	}
}

// Close stops the cleanup goroutine and closes the current file.
func (w *RotatingWriter) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stop)
		<-w.done

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.file != nil {
			err = w.file.Close()
			w.file = nil
		}
	})
	return err
}
