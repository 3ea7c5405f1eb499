// Package watch adapts the teacher's fsnotify-based filesystem watcher
// (internal/watcher/watcher.go) into the orchestrator's WatcherService:
// instead of calling back directly into a scan, it appends FileChangeEvents
// to the FileChangeEventBus (SPEC_FULL.md §4.8). Nothing in this module
// subscribes to that bus, so the appended events are not forwarded to a
// LibraryActor or the Scheduler.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
)

// EventBus is the narrow append surface WatcherService needs from the
// FileChangeEventBus.
type EventBus interface {
	Append(ctx context.Context, e domain.FileChangeEvent) error
}

const debounceWindow = 1 * time.Second

// WatcherService watches every root of every registered library and debounces
// bursts of filesystem activity into single FileChangeEvents.
type WatcherService struct {
	bus EventBus
	log zerolog.Logger

	fsw *fsnotify.Watcher

	mu       sync.Mutex
	watched  map[string]uuid.UUID
	debounce map[string]*time.Timer
}

func New(bus EventBus, log zerolog.Logger) (*WatcherService, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &WatcherService{
		bus:      bus,
		log:      log.With().Str("component", "watcher").Logger(),
		fsw:      fsw,
		watched:  make(map[string]uuid.UUID),
		debounce: make(map[string]*time.Timer),
	}, nil
}

// Watch begins recursively watching root on behalf of libraryID. Safe to
// call multiple times for the same root.
func (w *WatcherService) Watch(root string, libraryID uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.addRecursiveLocked(root, libraryID)
}

func (w *WatcherService) addRecursiveLocked(root string, libraryID uuid.UUID) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				return nil
			}
			w.watched[path] = libraryID
		}
		return nil
	})
}

// Run drains fsnotify events until ctx is canceled.
func (w *WatcherService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.fsw.Close()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("fsnotify error")
		}
	}
}

func (w *WatcherService) handle(ctx context.Context, ev fsnotify.Event) {
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") || strings.HasSuffix(base, ".part") {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.mu.Lock()
			libID := w.resolveLibraryLocked(ev.Name)
			if libID != uuid.Nil {
				w.fsw.Add(ev.Name)
				w.watched[ev.Name] = libID
			}
			w.mu.Unlock()
			return
		}
	}

	kind, ok := classify(ev)
	if !ok {
		return
	}

	w.mu.Lock()
	libID := w.resolveLibraryLocked(ev.Name)
	w.mu.Unlock()
	if libID == uuid.Nil {
		return
	}

	w.debounceAppend(ctx, libID, ev.Name, kind)
}

func classify(ev fsnotify.Event) (domain.FileChangeKind, bool) {
	switch {
	case ev.Has(fsnotify.Create):
		return domain.FileCreated, true
	case ev.Has(fsnotify.Write):
		return domain.FileModified, true
	case ev.Has(fsnotify.Remove):
		return domain.FileDeleted, true
	case ev.Has(fsnotify.Rename):
		return domain.FileMoved, true
	default:
		return "", false
	}
}

func (w *WatcherService) debounceAppend(ctx context.Context, libID uuid.UUID, path string, kind domain.FileChangeKind) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounce[path]; ok {
		t.Stop()
	}
	w.debounce[path] = time.AfterFunc(debounceWindow, func() {
		w.mu.Lock()
		delete(w.debounce, path)
		w.mu.Unlock()

		if err := w.bus.Append(ctx, domain.FileChangeEvent{
			LibraryID:  libID,
			Kind:       kind,
			Path:       path,
			DetectedAt: time.Now().UTC(),
		}); err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("append file change event failed")
		}
	})
}

func (w *WatcherService) resolveLibraryLocked(path string) uuid.UUID {
	dir := filepath.Dir(path)
	for dir != "/" && dir != "." {
		if libID, ok := w.watched[dir]; ok {
			return libID
		}
		dir = filepath.Dir(dir)
	}
	return uuid.Nil
}
