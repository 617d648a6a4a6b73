package index

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/imgbed/internal/codec"
	"github.com/starford/imgbed/internal/gallery"
	"github.com/starford/imgbed/internal/models"
	"github.com/starford/imgbed/internal/storage"
)

// Catalog change kinds passed to EventCallback.
const (
	AssetCreated    = "asset.created"
	AssetUpdated    = "asset.updated"
	AssetDeleted    = "asset.deleted"
	CategoryCreated = "category.created"
	CategoryDeleted = "category.deleted"
)

// EventCallback is called after each catalog change. name is empty for
// category events.
type EventCallback func(kind, category, name string)

// Sync brings the whole catalog up to date with the gallery on disk:
//   - categories that appeared or vanished are recorded
//   - each category is reconciled by SyncCategory
func Sync(db *DB, store storage.Provider, ext string, logger *slog.Logger, cb EventCallback) error {
	entries, err := store.ReadDir("")
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	disk := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.IsDir() && gallery.ValidateCategory(e.Name()) == nil {
			disk[e.Name()] = struct{}{}
		}
	}

	known, err := db.Categories()
	if err != nil {
		return err
	}
	for _, c := range known {
		if _, ok := disk[c]; !ok {
			if err := SyncCategory(db, store, ext, c, logger, cb); err != nil {
				logger.Warn("sync: category failed", slog.String("category", c), slog.String("error", err.Error()))
			}
		}
	}
	for c := range disk {
		if err := SyncCategory(db, store, ext, c, logger, cb); err != nil {
			logger.Warn("sync: category failed", slog.String("category", c), slog.String("error", err.Error()))
		}
	}
	return nil
}

// SyncCategory reconciles one category: changed files are re-read and
// upserted, rows without a file are dropped, and a vanished category is
// removed entirely.
func SyncCategory(db *DB, store storage.Provider, ext, category string, logger *slog.Logger, cb EventCallback) error {
	db.syncMu.Lock()
	defer db.syncMu.Unlock()

	emit := func(kind, name string) {
		if cb != nil {
			cb(kind, category, name)
		}
	}

	info, err := store.Stat(category)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return dropCategory(db, category, logger, emit)
	}
	if err != nil {
		return err
	}

	created, err := db.UpsertCategory(category)
	if err != nil {
		return err
	}
	if created {
		logger.Debug("sync: category added", slog.String("category", category))
		emit(CategoryCreated, "")
	}

	metas, err := store.List(category, ext)
	if err != nil {
		return err
	}
	checksums, err := db.CategoryChecksums(category)
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		name := filepath.Base(m.Path)
		disk[name] = struct{}{}

		prev, known := checksums[name]
		if known && prev == m.Checksum {
			continue
		}
		row := assetRow(store, category, name, ext, m, logger)
		if err := db.UpsertAsset(row); err != nil {
			logger.Warn("sync: upsert failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		kind := AssetUpdated
		if !known {
			kind = AssetCreated
		}
		logger.Debug("sync: indexed", slog.String("path", m.Path), slog.String("op", kind))
		emit(kind, name)
	}

	// Remove stale entries.
	for name := range checksums {
		if _, ok := disk[name]; ok {
			continue
		}
		if err := db.DeleteAsset(category, name); err != nil {
			logger.Warn("sync: delete failed", slog.String("category", category), slog.String("name", name), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: removed stale", slog.String("category", category), slog.String("name", name))
		emit(AssetDeleted, name)
	}
	return nil
}

func dropCategory(db *DB, category string, logger *slog.Logger, emit func(kind, name string)) error {
	checksums, err := db.CategoryChecksums(category)
	if err != nil {
		return err
	}
	known, err := db.Categories()
	if err != nil {
		return err
	}
	present := false
	for _, c := range known {
		if c == category {
			present = true
			break
		}
	}
	if !present && len(checksums) == 0 {
		return nil
	}
	if err := db.DeleteCategory(category); err != nil {
		return err
	}
	logger.Debug("sync: category removed", slog.String("category", category))
	for name := range checksums {
		emit(AssetDeleted, name)
	}
	emit(CategoryDeleted, "")
	return nil
}

// assetRow builds a catalog row, reading image dimensions from the header.
// Files that do not decode are still cataloged, with zero dimensions.
func assetRow(store storage.Provider, category, name, ext string, m models.FileMetadata, logger *slog.Logger) AssetRow {
	row := AssetRow{
		Category:  category,
		Name:      name,
		Seq:       gallery.ParseIndex(name, ext),
		Checksum:  m.Checksum,
		Size:      m.Size,
		UpdatedAt: m.UpdatedAt,
	}
	r, err := store.Open(m.Path)
	if err != nil {
		logger.Debug("sync: open failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		return row
	}
	defer r.Close()
	cfg, _, err := codec.DecodeConfig(r)
	if err != nil {
		logger.Debug("sync: no dimensions", slog.String("path", m.Path), slog.String("error", err.Error()))
		return row
	}
	row.Width, row.Height = cfg.Width, cfg.Height
	return row
}

// categoryOf returns the category a path relative to the root belongs to.
func categoryOf(rel string) (string, bool) {
	if rel == "." || rel == "" || strings.HasPrefix(rel, "..") {
		return "", false
	}
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return first, true
}
