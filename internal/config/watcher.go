package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/alexjbarnes/dexcom-sync/internal/dexcom"
)

// WatchTargets monitors the targets file for changes and invokes
// onChange with each successfully re-parsed set of target ranges. It
// blocks until the context is cancelled. Intended to run in a background
// goroutine alongside the MCP server so statistics tools pick up edits
// without a restart.
//
// The parent directory is watched rather than the file itself: editors
// typically replace files via rename, which drops a direct file watch.
func WatchTargets(ctx context.Context, path string, logger *slog.Logger, onChange func(dexcom.StatisticsTargets)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("adding targets directory to watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed")
			}

			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			targets, err := LoadTargets(path)
			if err != nil {
				// Keep the previous targets on a bad edit.
				logger.Warn("targets file changed but failed to load",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)

				continue
			}

			logger.Info("targets file reloaded",
				slog.String("path", path),
				slog.Int("target_ranges", len(targets.TargetRanges)),
			)

			onChange(targets)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed")
			}

			logger.Warn("targets watcher error", slog.String("error", err.Error()))
		}
	}
}
