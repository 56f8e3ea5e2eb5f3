package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 200 * time.Millisecond

// Watch reloads baseDir/config.json whenever it changes and passes the new
// config to onChange. It blocks until ctx is cancelled.
// The directory is watched rather than the file so editor rename-on-save is seen.
func Watch(ctx context.Context, baseDir string, logger *zap.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(baseDir); err != nil {
		return fmt.Errorf("watch %s: %w", baseDir, err)
	}

	target := filepath.Join(baseDir, "config.json")
	var debounce <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", zap.Error(err))
		case <-debounce:
			debounce = nil
			cfg, err := LoadWithEnv(baseDir)
			if err != nil {
				logger.Warn("config reload failed, keeping previous config", zap.Error(err))
				continue
			}
			logger.Info("config reloaded", zap.String("path", target))
			onChange(cfg)
		}
	}
}
