package config

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"rockerboo/lspdock/internal/logger"
)

// Watch watches the resolved config file (if one exists) and invokes
// onChange with a freshly loaded, immutable snapshot whenever it is
// written. It never touches a config already handed to a running
// forwarding pipeline -- the pipeline always runs against the single
// snapshot it started with (spec.md §5); hot reload only affects
// future sessions the launch collaborator starts.
//
// Watch blocks until ctx is cancelled. If there is no resolvable
// config file, it returns immediately.
func Watch(ctx context.Context, args []string, onChange func(*Config)) error {
	path := ResolvePath()
	if path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, _, err := Load(args)
			if err != nil {
				logger.Warn("config: reload failed", "path", path, "error", err)
				continue
			}
			logger.Info("config: reloaded", "path", path)
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config: watcher error", "error", err)
		}
	}
}
