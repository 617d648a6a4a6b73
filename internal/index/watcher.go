package index

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/imgbed/internal/gallery"
	"github.com/starford/imgbed/internal/storage"
)

// DefaultDebounce delays a category resync until its burst of events settles.
const DefaultDebounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the gallery root and its category
// directories and resyncs touched categories until ctx is cancelled. cb
// (if non-nil) receives every resulting catalog change.
//
// A missing root is not an error: Watch waits for it to be created and then
// catalogs whatever it holds.
//
// Renumbering renames many files in quick succession, so events are
// coalesced per category and each category is reconciled once the burst
// has been quiet for debounce.
func Watch(ctx context.Context, db *DB, store storage.Provider, ext string, debounce time.Duration, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := store.Root()
	var anchor string
	attached, err := attachRoot(w, store, &anchor, logger)
	if err != nil {
		return err
	}
	if attached {
		logger.Info("watcher: started", slog.String("root", root))
	} else {
		logger.Info("watcher: waiting for root", slog.String("root", root), slog.String("anchor", anchor))
	}

	due := make(chan string)
	pending := make(map[string]*time.Timer)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	schedule := func(category string) {
		if t, ok := pending[category]; ok {
			t.Reset(debounce)
			return
		}
		pending[category] = time.AfterFunc(debounce, func() {
			select {
			case due <- category:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case category := <-due:
			delete(pending, category)
			if err := SyncCategory(db, store, ext, category, logger, cb); err != nil {
				logger.Warn("watcher: sync failed", slog.String("category", category), slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !attached {
				if attached, err = attachRoot(w, store, &anchor, logger); err != nil {
					return err
				}
				if attached {
					logger.Info("watcher: root appeared", slog.String("root", root))
					if err := Sync(db, store, ext, logger, cb); err != nil {
						logger.Warn("watcher: sync failed", slog.String("error", err.Error()))
					}
				}
				continue
			}
			rel, err := filepath.Rel(root, ev.Name)
			if err != nil {
				continue
			}
			category, ok := categoryOf(rel)
			if !ok || gallery.ValidateCategory(category) != nil {
				continue
			}

			// New category directory: start watching it.
			if ev.Op&fsnotify.Create != 0 && !strings.ContainsRune(filepath.ToSlash(rel), '/') {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					watchCategory(w, ev.Name, logger)
				}
			}

			// Temp files only matter once renamed into place.
			if base := filepath.Base(ev.Name); base != category && !strings.HasSuffix(base, ext) {
				continue
			}
			schedule(category)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// attachRoot watches the root and its categories. While the root is missing
// it watches the nearest existing ancestor instead, recorded in anchor, and
// reports false; any event there is a cue to try again.
func attachRoot(w *fsnotify.Watcher, store storage.Provider, anchor *string, logger *slog.Logger) (bool, error) {
	root := store.Root()
	for {
		err := w.Add(root)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return false, err
		}
		dir := existingAncestor(root)
		if dir != *anchor {
			if err := w.Add(dir); err != nil {
				return false, err
			}
			if *anchor != "" {
				_ = w.Remove(*anchor)
			}
			*anchor = dir
		}
		// The root may have appeared before the anchor was watched.
		if _, err := os.Stat(root); err != nil {
			return false, nil
		}
	}
	if *anchor != "" {
		_ = w.Remove(*anchor)
		*anchor = ""
	}

	entries, err := store.ReadDir("")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	for _, e := range entries {
		if e.IsDir() && gallery.ValidateCategory(e.Name()) == nil {
			watchCategory(w, filepath.Join(root, e.Name()), logger)
		}
	}
	return true, nil
}

func existingAncestor(path string) string {
	dir := filepath.Dir(path)
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

func watchCategory(w *fsnotify.Watcher, dir string, logger *slog.Logger) {
	if err := w.Add(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("watcher: add dir failed", slog.String("path", dir), slog.String("error", err.Error()))
		return
	}
	logger.Debug("watcher: watching", slog.String("path", dir))
}
