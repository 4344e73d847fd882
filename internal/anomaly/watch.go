package anomaly

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// Watch reloads the classifiers whenever their cache files are rewritten on
// disk, e.g. after an offline retrain. It blocks until ctx is done.
func Watch(ctx context.Context, classifiers ...*Classifier) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	byFile := make(map[string]*Classifier)
	dirs := make(map[string]bool)
	for _, c := range classifiers {
		if c.Path() == "" {
			continue
		}
		byFile[filepath.Base(c.Path())] = c
		dirs[filepath.Dir(c.Path())] = true
	}
	if len(byFile) == 0 {
		return nil
	}
	for dir := range dirs {
		// a cold start has no cache directory until the first model is saved
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model dir %s: %w", dir, err)
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			c, tracked := byFile[name]
			if !tracked || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if t, pending := timers[name]; pending {
				t.Stop()
			}
			timers[name] = time.AfterFunc(reloadDebounce, func() {
				if err := c.Reload(); err != nil {
					slog.Error("anomaly model reload failed", "path", c.Path(), "error", err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("model watcher error", "error", err)
		}
	}
}
