package ndjson

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 250 * time.Millisecond

// ChangeFunc is called once per settled burst of writes to a snapshot file.
type ChangeFunc func(ctx context.Context, file string)

// Watcher reports changes to the snapshot files so cached views can be dropped.
type Watcher struct {
	dir      string
	onChange ChangeFunc
	logger   *zap.Logger
	debounce time.Duration
	watched  map[string]struct{}
}

// NewWatcher constructs a Watcher for the snapshot files in dir.
func NewWatcher(dir string, onChange ChangeFunc, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	watched := make(map[string]struct{}, len(Files))
	for _, name := range Files {
		watched[name] = struct{}{}
	}
	return &Watcher{dir: dir, onChange: onChange, logger: logger, debounce: defaultDebounce, watched: watched}
}

// Run watches until ctx is cancelled. Writers typically rewrite a file in several
// operations, so events for the same file are coalesced until it has been quiet for
// the debounce interval.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching snapshot directory", zap.String("dir", w.dir))

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()
	pending := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if _, tracked := w.watched[name]; !tracked {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[name] = time.Now()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("snapshot watcher error", zap.Error(err))
		case now := <-ticker.C:
			for name, last := range pending {
				if now.Sub(last) < w.debounce {
					continue
				}
				delete(pending, name)
				w.logger.Debug("snapshot changed", zap.String("file", name))
				w.onChange(ctx, name)
			}
		}
	}
}
