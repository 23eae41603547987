package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docsync/internal/config"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
)

const reloadDebounce = 2 * time.Second

// ConfigWatcher watches the configuration file and applies changed settings
// through a reload callback. Editors replace files via rename, so the watch
// covers the containing directory and filters events by base name.
type ConfigWatcher struct {
	path    string
	apply   func(*config.Config) error
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending *time.Timer

	stopOnce sync.Once
	done     chan struct{}
}

// NewConfigWatcher creates a watcher for the given config file.
func NewConfigWatcher(path string, apply func(*config.Config) error) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.DaemonError("failed to create file watcher").WithCause(err).Build()
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, ferrors.DaemonError("failed to watch config directory").
			WithCause(err).
			WithContext("dir", dir).
			Build()
	}

	return &ConfigWatcher{
		path:    path,
		apply:   apply,
		watcher: watcher,
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching. The context bounds the watch loop's lifetime.
func (w *ConfigWatcher) Start(ctx context.Context) {
	go w.watchLoop(ctx)
	slog.Info("Watching config file for changes", slog.String("path", w.path))
}

// Stop ends the watch loop.
func (w *ConfigWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
		w.mu.Lock()
		if w.pending != nil {
			w.pending.Stop()
		}
		w.mu.Unlock()
	})
}

func (w *ConfigWatcher) watchLoop(ctx context.Context) {
	base := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", "error", err)
		}
	}
}

// scheduleReload debounces bursts of write events into one reload.
func (w *ConfigWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(reloadDebounce, w.reload)
}

func (w *ConfigWatcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	cfg, err := config.Load(w.path)
	if err != nil {
		slog.Error("Config reload skipped: file does not parse",
			slog.String("path", w.path),
			slog.Any("error", err))
		return
	}
	if err := w.apply(cfg); err != nil {
		slog.Error("Config reload rejected", "error", err)
		return
	}
}
