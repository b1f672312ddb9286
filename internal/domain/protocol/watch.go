package protocol

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// Watch reloads path into registry whenever the file changes, until ctx is done.
// The parent directory is watched so editors that replace the file are handled.
// A file that fails to parse leaves the previous catalog in place.
func Watch(ctx context.Context, path string, registry *Registry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve protocol path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch protocol dir: %w", err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(reloadDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("protocol watcher error", "error", err)
		case <-pending:
			pending = nil
			extra, err := LoadFile(abs)
			if err != nil {
				logger.Warn("protocol reload failed", "path", abs, "error", err)
				continue
			}
			registry.Replace(extra)
			logger.Info("protocols reloaded", "path", abs, "count", len(extra))
		}
	}
}
