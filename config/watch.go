package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange with the reloaded Config each time the file at path
// is written or replaced, until ctx is cancelled.
//
// The parent directory is watched rather than the file: editors that save by
// renaming a temp file over path replace the inode, and a watch on the file
// itself would be dropped with it.
//
// A reload that fails to load or validate is logged and skipped; the
// previous config stays active.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) error {
	if logger == nil {
		logger = slog.Default()
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	logger.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			reload(path, logger, onChange)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("config: watcher error", "err", err)
		}
	}
}

func reload(path string, logger *slog.Logger, onChange func(*Config)) {
	cfg, err := Load(path)
	if err != nil {
		logger.Error("config: reload failed, keeping previous config", "path", path, "err", err)
		return
	}
	logger.Info("config: reloaded", "path", path)
	onChange(cfg)
}
