package postal

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/giygas/qualite-eau-api/logging"
)

// debounce groups the bursts of events editors and copy tools produce.
const debounce = 500 * time.Millisecond

// Watch calls onChange after the mapping file is written, created or renamed
// over. The parent directory is watched so atomic replacements are seen.
// It returns when ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		fire := make(chan struct{}, 1)
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isMappingChange(event, abs) {
					continue
				}
				logging.Debug("Mapping file event", "op", event.Op.String(), "path", event.Name)
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})

			case <-fire:
				logging.Info("Mapping file changed, reloading", "path", abs)
				onChange()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn("Mapping watcher error", "error", err)
			}
		}
	}()

	return nil
}

// isMappingChange reports events that may have changed the content of target.
func isMappingChange(event fsnotify.Event, target string) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != target {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
