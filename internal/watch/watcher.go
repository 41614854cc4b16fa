// Package watch refreshes the note collection when files in the storage
// root are changed by other programs.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/inkwell/internal/checksum"
	"github.com/starford/inkwell/internal/storage"
)

// DefaultDebounce is how long the watcher waits for a burst of events to
// settle before refreshing.
const DefaultDebounce = 200 * time.Millisecond

// Store is the part of the note store the watcher reads.
type Store interface {
	StorageRoot() string
	LastWritten(id string) (string, bool)
}

// Refresher reloads the collection.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// Watcher watches the storage root (not its subdirectories).
type Watcher struct {
	store    Store
	target   Refresher
	logger   *slog.Logger
	debounce time.Duration
	retarget chan struct{}
}

// New creates a watcher. Run starts it.
func New(store Store, target Refresher, opts ...Option) *Watcher {
	w := &Watcher{
		store:    store,
		target:   target,
		logger:   slog.Default(),
		debounce: DefaultDebounce,
		retarget: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Retarget tells a running watcher that the storage root changed.
func (w *Watcher) Retarget() {
	select {
	case w.retarget <- struct{}{}:
	default:
	}
}

// Run processes file events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	root := w.attach(fw, "")

	var timer *time.Timer
	var fire <-chan time.Time
	pending := make(map[string]struct{})

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			fire = timer.C
		} else {
			timer.Reset(w.debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("watch: stopped")
			return nil

		case <-w.retarget:
			root = w.attach(fw, root)
			clear(pending)

		case <-fire:
			if w.external(root, pending) {
				if err := w.target.Refresh(ctx); err != nil {
					w.logger.Warn("watch: refresh failed", slog.String("error", err.Error()))
				}
			}
			clear(pending)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			id, ok := noteID(root, ev.Name)
			if !ok {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[id] = struct{}{}
			schedule()

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}

// attach swaps the watched directory from old to the store's current root.
func (w *Watcher) attach(fw *fsnotify.Watcher, old string) string {
	root := w.store.StorageRoot()
	if root == old {
		return root
	}
	if old != "" {
		if err := fw.Remove(old); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
			w.logger.Debug("watch: remove old root", slog.String("root", old), slog.String("error", err.Error()))
		}
	}
	if err := fw.Add(root); err != nil {
		w.logger.Warn("watch: cannot watch root", slog.String("root", root), slog.String("error", err.Error()))
		return root
	}
	w.logger.Info("watch: started", slog.String("root", root))
	return root
}

// external reports whether any pending change was made by someone else.
// Files whose content matches our last write are ours; a missing file always
// counts.
func (w *Watcher) external(root string, pending map[string]struct{}) bool {
	for id := range pending {
		data, err := os.ReadFile(filepath.Join(root, id+storage.Ext))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return true
			}
			w.logger.Warn("watch: read failed", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		if last, ok := w.store.LastWritten(id); ok && last == checksum.Sum(data) {
			continue
		}
		w.logger.Debug("watch: external change", slog.String("id", id))
		return true
	}
	return false
}

// noteID maps a path directly inside root to a note id.
func noteID(root, path string) (string, bool) {
	if filepath.Dir(path) != filepath.Clean(root) {
		return "", false
	}
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, storage.Ext) {
		return "", false
	}
	return strings.TrimSuffix(base, storage.Ext), true
}
