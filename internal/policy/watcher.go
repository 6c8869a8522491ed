// internal/policy/watcher.go
package policy

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"loan-underwriter/internal/common/logger"
)

// reloadDebounce is how long the watcher waits after the last file event
// before reloading. Editors and deploy scripts touch several files in a
// burst; one reload covers the whole burst.
const reloadDebounce = 500 * time.Millisecond

// Watcher reloads the store when policy documents change on disk.
type Watcher struct {
	store    *Store
	logger   logger.Logger
	debounce time.Duration
}

// NewWatcher creates a watcher for the store's directory.
func NewWatcher(store *Store, log logger.Logger) *Watcher {
	return &Watcher{
		store:    store,
		logger:   log.WithFields(map[string]interface{}{"component": "policy-watcher"}),
		debounce: reloadDebounce,
	}
}

// Run watches for policy file changes and blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.store.dir); err != nil {
		return err
	}
	w.logger.Info("Watching policy directory", map[string]interface{}{
		"directory": w.store.dir,
	})

	// Single debounce timer, reset on each event. Initialized as stopped;
	// the first event starts it.
	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()
	defer debounceTimer.Stop()

	dirty := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-debounceTimer.C:
			if !dirty {
				continue
			}
			dirty = false
			if err := w.store.Load(); err != nil {
				// Keep serving the previous snapshot.
				w.logger.Error("Policy reload failed", map[string]interface{}{
					"error": err.Error(),
				})
			}

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !isPolicyFile(event.Name) {
				continue
			}
			dirty = true
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Policy watcher error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}
