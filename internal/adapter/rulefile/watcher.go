package rulefile

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/V4T54L/trailwatch/internal/domain"
)

const reloadDelay = 200 * time.Millisecond

// Watch reloads the rule file at path whenever it changes and hands every
// successfully parsed set to apply. Files that fail to parse are logged and
// skipped, so the last good set stays active. Watch blocks until ctx is done.
//
// The parent directory is watched rather than the file itself, since editors
// and config management usually replace files by rename.
func Watch(ctx context.Context, path string, logger *slog.Logger, apply func([]domain.Rule)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create rule file watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	logger = logger.With("component", "rule_watcher", "path", abs)
	logger.Info("Watching predefined rules for changes")

	// Writes usually arrive as a burst of events; reload once they settle.
	timer := time.NewTimer(reloadDelay)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping rule watcher")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(reloadDelay)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Rule watcher error", "error", err)
		case <-timer.C:
			rules, err := Load(abs)
			if err != nil {
				logger.Error("Failed to reload predefined rules, keeping previous set", "error", err)
				continue
			}
			logger.Info("Predefined rules reloaded", "count", len(rules))
			apply(rules)
		}
	}
}
