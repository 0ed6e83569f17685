package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchTemplates watches the loader's builtin/custom directories and calls
// Reload whenever a template file is created, written, or removed, so
// editing agent templates on disk takes effect without a restart. It blocks
// until ctx is cancelled; callers run it as a detached task.
func (r *Router) WatchTemplates(ctx context.Context, dirs ...string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := 0
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			slog.Warn("agent: failed to watch template directory", "dir", dir, "error", err)
			continue
		}
		watched++
	}
	if watched == 0 {
		return nil
	}

	// Coalesce bursts of events (editors often emit several writes per save)
	// into a single reload, at most once per debounce window.
	const debounce = 250 * time.Millisecond
	var pending *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if pending == nil {
				pending = time.AfterFunc(debounce, func() {
					if err := r.Reload(); err != nil {
						slog.Warn("agent: template hot-reload failed", "error", err)
					} else {
						slog.Info("agent: reloaded templates after on-disk change")
					}
				})
			} else {
				pending.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("agent: template watcher error", "error", err)
		}
	}
}
