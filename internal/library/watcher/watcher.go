// Package watcher starts quick scans when files appear in or disappear from
// a library's directories.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/questhold/questhold/internal/library/domain"
	"github.com/questhold/questhold/internal/settings"
	"github.com/questhold/questhold/pkg/interfaces"
)

// DefaultDebounce is the quiet period after the last change before a scan
// is triggered.
const DefaultDebounce = 5 * time.Second

// LibrarySource lists the libraries whose roots are watched.
type LibrarySource interface {
	ListLibraries(ctx context.Context) ([]*domain.Library, error)
}

// ScanTrigger starts background scans.
type ScanTrigger interface {
	TriggerScan(ctx context.Context, scanType domain.ScanType, libraryIDs []uuid.UUID) error
}

// Settings reports whether watching is switched on.
type Settings interface {
	WatcherEnabled(ctx context.Context) bool
}

// LibraryWatcher watches every directory mapping root with fsnotify. Only
// the top level of a root is watched since each game is a direct child.
type LibraryWatcher struct {
	libraries LibrarySource
	scans     ScanTrigger
	settings  Settings
	debounce  time.Duration
	logger    interfaces.Logger

	fs     *fsnotify.Watcher
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	roots   map[string]uuid.UUID
	pending map[uuid.UUID]*time.Timer
}

// NewLibraryWatcher creates a new library watcher
func NewLibraryWatcher(
	libraries LibrarySource,
	scans ScanTrigger,
	settings Settings,
	debounce time.Duration,
	logger interfaces.Logger,
) *LibraryWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &LibraryWatcher{
		libraries: libraries,
		scans:     scans,
		settings:  settings,
		debounce:  debounce,
		logger:    logger,
		roots:     make(map[string]uuid.UUID),
		pending:   make(map[uuid.UUID]*time.Timer),
	}
}

// Start opens the fsnotify watcher and loads the watch set.
func (w *LibraryWatcher) Start(ctx context.Context) error {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	w.fs = fs
	w.ctx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))

	w.wg.Add(1)
	go w.watchEvents()

	w.logger.Info("Library watcher started", interfaces.Duration("debounce", w.debounce))
	return w.Reload(ctx)
}

// Stop closes the watcher and drops pending scans.
func (w *LibraryWatcher) Stop() error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	err := w.fs.Close()
	w.wg.Wait()

	w.mu.Lock()
	for id, timer := range w.pending {
		timer.Stop()
		delete(w.pending, id)
	}
	w.mu.Unlock()

	w.logger.Info("Library watcher stopped")
	return err
}

// Reload brings the watch set in line with the libraries and the
// enable-filesystem-watcher setting.
func (w *LibraryWatcher) Reload(ctx context.Context) error {
	if w.fs == nil {
		return nil
	}

	desired := make(map[string]uuid.UUID)
	if w.settings.WatcherEnabled(ctx) {
		libraries, err := w.libraries.ListLibraries(ctx)
		if err != nil {
			return err
		}
		for _, library := range libraries {
			for _, dir := range library.Directories {
				desired[filepath.Clean(dir.InternalPath)] = library.ID
			}
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for root := range w.roots {
		if _, keep := desired[root]; keep {
			continue
		}
		if err := w.fs.Remove(root); err != nil {
			w.logger.Debug("Failed to unwatch directory", interfaces.String("path", root), interfaces.Error(err))
		}
		delete(w.roots, root)
	}

	for root, libraryID := range desired {
		if _, watched := w.roots[root]; watched {
			w.roots[root] = libraryID
			continue
		}
		if err := w.fs.Add(root); err != nil {
			w.logger.Warn("Failed to watch directory",
				interfaces.String("library_id", libraryID.String()),
				interfaces.String("path", root),
				interfaces.Error(err))
			continue
		}
		w.roots[root] = libraryID
	}

	w.logger.Debug("Watch set reloaded", interfaces.Int("roots", len(w.roots)))
	return nil
}

// Watched returns the roots currently being watched.
func (w *LibraryWatcher) Watched() map[string]uuid.UUID {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]uuid.UUID, len(w.roots))
	for root, id := range w.roots {
		out[root] = id
	}
	return out
}

func (w *LibraryWatcher) watchEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", interfaces.Error(err))
		}
	}
}

func (w *LibraryWatcher) handleFSEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	w.mu.Lock()
	libraryID, ok := w.roots[filepath.Dir(filepath.Clean(event.Name))]
	w.mu.Unlock()
	if !ok {
		return
	}

	w.logger.Debug("Library directory changed",
		interfaces.String("library_id", libraryID.String()),
		interfaces.String("path", event.Name),
		interfaces.String("op", event.Op.String()))
	w.schedule(libraryID)
}

// schedule (re)starts the debounce timer of a library.
func (w *LibraryWatcher) schedule(libraryID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[libraryID]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.pending[libraryID] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, libraryID)
		w.mu.Unlock()

		if w.ctx.Err() != nil {
			return
		}
		if err := w.scans.TriggerScan(w.ctx, domain.ScanTypeQuick, []uuid.UUID{libraryID}); err != nil {
			w.logger.Error("Failed to trigger scan",
				interfaces.String("library_id", libraryID.String()),
				interfaces.Error(err))
		}
	})
}

// Handle implements interfaces.EventHandler
func (w *LibraryWatcher) Handle(ctx context.Context, event interfaces.Event) error {
	switch event.EventType() {
	case domain.EventLibraryCreated, domain.EventLibraryUpdated, domain.EventLibraryDeleted:
	case settings.EventConfigUpdated:
		updated, ok := event.(*settings.ConfigUpdatedEvent)
		if !ok || updated.Key != settings.ScanEnableFilesystemWatcher.Name {
			return nil
		}
	default:
		return nil
	}
	return w.Reload(ctx)
}

// Name implements interfaces.EventHandler
func (w *LibraryWatcher) Name() string {
	return "library.watcher"
}
