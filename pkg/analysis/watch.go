package analysis

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchDebounce coalesces bursts of file events into one reload.
const WatchDebounce = 100 * time.Millisecond

// Watch calls fn with the reloaded document each time the file at path
// changes. Load errors are passed to fn rather than stopping the watch.
// The parent directory is watched so editors that replace the file by
// rename are handled. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, fn func(*Document, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("analysis: watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("analysis: watch %s: %w", filepath.Dir(abs), err)
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(WatchDebounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fn(nil, fmt.Errorf("analysis: watch: %w", err))
		case <-timer.C:
			fn(Load(ctx, abs))
		}
	}
}
