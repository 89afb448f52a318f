package schema

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long to wait for more changes before reloading.
const defaultDebounce = 500 * time.Millisecond

// Watcher reloads a FileSupplier when its backing document changes on disk.
// Editors commonly write via rename, so the parent directory is watched
// rather than the file itself.
type Watcher struct {
	supplier *FileSupplier
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a watcher for the supplier's document.
// A non-positive debounce uses the default.
func NewWatcher(supplier *FileSupplier, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fsw.Add(filepath.Dir(supplier.Path())); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		supplier: supplier,
		watcher:  fsw,
		debounce: debounce,
		logger:   logger,
	}, nil
}

// Run watches for document changes until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	target := filepath.Clean(w.supplier.Path())
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			// Debounce: collect changes before reloading.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Schema watch error", "error", err)

		case <-timerC:
			timer = nil
			timerC = nil
			if err := w.supplier.Reload(); err != nil {
				w.logger.Warn("Schema reload failed", "path", target, "error", err)
				continue
			}
			w.logger.Info("Schema document reloaded", "path", target)
		}
	}
}
