package feed

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 250 * time.Millisecond

// Watcher reloads the ConfigCache when files in its directory change and
// reports the enabled configs to onChange. Bursts of events are coalesced.
type Watcher struct {
	cache    *ConfigCache
	debounce time.Duration
	onChange func(configs map[string]*Config)
}

func NewWatcher(cache *ConfigCache, onChange func(configs map[string]*Config)) *Watcher {
	return &Watcher{
		cache:    cache,
		debounce: defaultWatchDebounce,
		onChange: onChange,
	}
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.cache.FeedsDir()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.cache.FeedsDir(), err)
	}

	slog.Debug("Feed watcher started", "dir", w.cache.FeedsDir())

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".yml" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				timer.Reset(w.debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Feed watcher error", "error", err)
			// Events may have been dropped
			timer.Reset(w.debounce)
		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	if err := w.cache.Run(); err != nil {
		slog.Warn("Feed configuration reload failed", "error", err)
		return
	}

	slog.Info("Feed configuration reloaded", "feeds", w.cache.GetConfigCount())

	if w.onChange != nil {
		w.onChange(w.cache.GetEnabledConfigs())
	}
}
