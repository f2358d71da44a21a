package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads src whenever its file changes and calls fn with every
// valid configuration that differs from the previous one. Invalid files are
// logged and skipped. The parent directory is watched, so a file replaced
// on save keeps being followed.
//
// Watch blocks until ctx is done and then returns nil.
func Watch(ctx context.Context, src Source, logger *slog.Logger, fn func(Config)) error {
	if src.Path == "" {
		return errors.New("config: watch needs a file path")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "config", "path", src.Path)

	current, err := Load(src)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	defer w.Close()

	target := filepath.Clean(src.Path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			next, err := Load(src)
			if err != nil {
				logger.Warn("config reload failed", "error", err)
				continue
			}
			if next == current {
				continue
			}
			current = next
			logger.Info("config reloaded")
			fn(next)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
