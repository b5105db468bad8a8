package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch blocks and keeps the cached table-name list in sync with the
// database file. Converters and the join tool rewrite tables in place,
// so the browsing server would otherwise serve a stale catalog until
// restart. Returns when the context is cancelled.
func (s *SQLiteStorage) Watch(ctx context.Context, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cannot create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.cfg.Path); err != nil {
		return fmt.Errorf("cannot add database file to watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				logger.Debug("fsnotify watcher channel is closed.")
				return nil
			}

			// An atomic replace (rename over the file) takes the watch
			// down with the old inode; re-add the path or the catalog
			// stays frozen until restart.
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if err := rewatch(ctx, watcher, s.cfg.Path); err != nil {
					return fmt.Errorf("lost watch on database file %s: %w", s.cfg.Path, err)
				}
			} else if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if err := s.reloadTableNames(ctx); err != nil {
				logger.Error("failed to reload table names", "path", s.cfg.Path, "error", err)
				continue
			}

			logger.Debug("reloaded table names", "path", s.cfg.Path, "count", len(s.Tables(ctx)))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// rewatch re-adds the path, retrying briefly since the replacement
// file may not exist yet mid-rename.
func rewatch(ctx context.Context, watcher *fsnotify.Watcher, path string) error {
	var err error
	for i := 0; i < 100; i++ {
		if err = watcher.Add(path); err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}

	return err
}
