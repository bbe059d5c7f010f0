package infrastructure

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Francouer/proto-watch/internal/domain"
	"github.com/fsnotify/fsnotify"
)

var _ domain.ChangeWatcher = (*SchemaWatcher)(nil)

// SchemaWatcher watches a source tree and reports schema file changes in
// debounced batches. Rapid saves of the same file collapse into one event.
type SchemaWatcher struct {
	logger    domain.Logger
	root      string
	extension string
	ignore    []string
	debounce  time.Duration

	pending map[string]domain.ChangeKind
}

// NewSchemaWatcher creates a watcher for root. Paths under any of the
// ignore directories are never reported.
func NewSchemaWatcher(logger domain.Logger, root, extension string, ignore []string, debounce time.Duration) *SchemaWatcher {
	if debounce <= 0 {
		debounce = domain.DefaultWatchDebounce
	}
	return &SchemaWatcher{
		logger:    logger,
		root:      root,
		extension: extension,
		ignore:    ignore,
		debounce:  debounce,
		pending:   make(map[string]domain.ChangeKind),
	}
}

// Run blocks until ctx is cancelled. Handler calls happen on the Run
// goroutine, one batch at a time.
func (w *SchemaWatcher) Run(ctx context.Context, handler domain.ChangeHandler) error {
	if info, err := os.Stat(w.root); err != nil || !info.IsDir() {
		return fmt.Errorf("source root %s is not a directory", w.root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.root); err != nil {
		return err
	}

	w.logger.Info("Watching %s for %s changes...", w.root, w.extension)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(fsw, event) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warning("File watcher error: %v", err)

		case <-timerC:
			timer, timerC = nil, nil
			if events := w.flush(); len(events) > 0 {
				handler(ctx, events)
			}
		}
	}
}

// handleEvent records event and reports whether it was queued
func (w *SchemaWatcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	if w.isIgnored(event.Name) {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(fsw, event.Name); err != nil {
				w.logger.Warning("Failed to watch %s: %v", event.Name, err)
			}
			// Files may land in a new directory before it is watched
			return w.queueTree(event.Name)
		}
	}

	kind, ok := classifyOp(event.Op)
	if !ok || filepath.Ext(event.Name) != w.extension {
		return false
	}

	w.queue(event.Name, kind)
	return true
}

func (w *SchemaWatcher) queue(path string, kind domain.ChangeKind) {
	w.logger.Debug("Queued %s change: %s", kind, path)
	w.pending[path] = kind
}

func (w *SchemaWatcher) queueTree(dir string) bool {
	queued := false
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && filepath.Ext(path) == w.extension && !w.isIgnored(path) {
			w.queue(path, domain.ChangeImported)
			queued = true
		}
		return nil
	})
	return queued
}

// flush drains pending changes sorted by path
func (w *SchemaWatcher) flush() []domain.ChangeEvent {
	events := make([]domain.ChangeEvent, 0, len(w.pending))
	for path, kind := range w.pending {
		events = append(events, domain.ChangeEvent{Path: path, Kind: kind})
	}
	w.pending = make(map[string]domain.ChangeKind)

	sort.Slice(events, func(i, j int) bool {
		return events[i].Path < events[j].Path
	})
	return events
}

func (w *SchemaWatcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.isIgnored(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *SchemaWatcher) isIgnored(path string) bool {
	for _, dir := range w.ignore {
		if dir == "" {
			continue
		}
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func classifyOp(op fsnotify.Op) (domain.ChangeKind, bool) {
	switch {
	case op.Has(fsnotify.Create), op.Has(fsnotify.Write):
		return domain.ChangeImported, true
	case op.Has(fsnotify.Remove):
		return domain.ChangeDeleted, true
	case op.Has(fsnotify.Rename):
		return domain.ChangeMoved, true
	default:
		return 0, false
	}
}
