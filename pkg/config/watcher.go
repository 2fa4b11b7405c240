package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/bunko/bunko/pkg/logging"
)

// Watcher reloads the configuration when one of its files changes
type Watcher struct {
	paths     []string
	watcher   *fsnotify.Watcher
	logger    logging.Logger
	mu        sync.Mutex
	callbacks []func(*Config)
	done      chan struct{}
}

// NewWatcher watches the directories holding paths. Directories that do not
// exist are skipped.
func NewWatcher(logger logging.Logger, paths ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	seen := make(map[string]bool)
	for _, p := range paths {
		dir := filepath.Dir(p)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		if err := fw.Add(dir); err != nil {
			logger.Warn("failed to watch config directory", logging.String("dir", dir), logging.Err(err))
		}
	}

	return &Watcher{
		paths:   paths,
		watcher: fw,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// OnChange registers a callback invoked with the reloaded configuration
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Run handles file events until ctx is done or the watcher is closed
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				w.reload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", logging.Err(err))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
		return false
	}
	name := filepath.Clean(event.Name)
	for _, p := range w.paths {
		if filepath.Clean(p) == name {
			return true
		}
	}
	return false
}

func (w *Watcher) reload() {
	cfg, err := LoadFrom(w.paths...)
	if err != nil {
		w.logger.Warn("failed to reload config", logging.Err(err))
		return
	}

	w.mu.Lock()
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Debug("config reloaded")
	for _, fn := range callbacks {
		fn(cfg)
	}
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Done is closed when Run returns
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}
