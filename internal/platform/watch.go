package platform

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch re-runs Detect(projectRoot) whenever configPath changes on disk,
// calling onChange with the fresh AppBuildInfo. Parse errors are logged and
// otherwise swallowed: a build actively being edited can transiently fail to
// parse between writes, and that shouldn't kill the watch. Grounded on the
// same fsnotify.NewWatcher/watcher.Add/event-select-loop shape used for
// directory watching in the teacher's cmd/api/api/fs.go, narrowed to a
// single file and a single callback instead of a channel of FileSystemEvent.
func Watch(ctx context.Context, projectRoot, configPath string, logger *slog.Logger, onChange func(*AppBuildInfo)) error {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				info, err := Detect(projectRoot)
				if err != nil {
					logger.Warn("platform: re-detecting build config after change failed", "path", configPath, "err", err)
					continue
				}
				logger.Info("platform: build config changed, re-resolved", "path", configPath, "tool", info.Tool.String())
				onChange(info)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("platform: fsnotify error", "err", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}
