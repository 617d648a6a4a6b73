// Package galleryservice coordinates the gallery store, the catalog and the
// change notifications the shells subscribe to.
package galleryservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/starford/imgbed/internal/apperr"
	"github.com/starford/imgbed/internal/checksum"
	"github.com/starford/imgbed/internal/codec"
	"github.com/starford/imgbed/internal/gallery"
	"github.com/starford/imgbed/internal/index"
	"github.com/starford/imgbed/internal/storage"
)

// DefaultPreviewSize matches the longest side of the desktop preview pane.
const DefaultPreviewSize = 400

// MaxPreviewSize caps caller-requested preview sizes.
const MaxPreviewSize = 2048

// AssetItem is one entry of a category listing.
type AssetItem struct {
	Category string    `json:"category"`
	Name     string    `json:"name"`
	Index    int       `json:"index"`
	Size     int64     `json:"size"`
	Width    int       `json:"width,omitempty"`
	Height   int       `json:"height,omitempty"`
	Checksum string    `json:"checksum,omitempty"`
	ModTime  time.Time `json:"mod_time"`
}

// AssetFile is the raw content of one stored image.
type AssetFile struct {
	Name     string
	Content  []byte
	Checksum string
	ModTime  time.Time
}

// InsertResult is a batch result plus same-content matches already stored.
type InsertResult struct {
	gallery.BatchResult
	Duplicates map[string][]index.AssetRow `json:"duplicates,omitempty"`
}

// Service serialises mutations per category and keeps the catalog current.
type Service struct {
	fs          storage.Provider
	store       *gallery.Store
	db          *index.DB
	logger      *slog.Logger
	notify      index.EventCallback
	preview     codec.Codec
	previewSize int
	locks       *keyedMutex
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithNotifier receives catalog changes caused by service calls.
func WithNotifier(cb index.EventCallback) Option {
	return func(s *Service) { s.notify = cb }
}

// WithPreviewSize sets the default preview edge length.
func WithPreviewSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.previewSize = n
		}
	}
}

// New creates a Service. fs must be the provider store was built on.
func New(fs storage.Provider, store *gallery.Store, db *index.DB, opts ...Option) (*Service, error) {
	preview, err := codec.New(codec.FormatPNG, codec.Options{})
	if err != nil {
		return nil, err
	}
	s := &Service{
		fs:          fs,
		store:       store,
		db:          db,
		logger:      slog.Default(),
		preview:     preview,
		previewSize: DefaultPreviewSize,
		locks:       newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Refresh rebuilds the catalog from disk.
func (s *Service) Refresh(_ context.Context) error {
	return index.Sync(s.db, s.fs, s.store.Extension(), s.logger, s.notify)
}

func (s *Service) refresh(category string) {
	if err := index.SyncCategory(s.db, s.fs, s.store.Extension(), category, s.logger, s.notify); err != nil {
		s.logger.Warn("catalog refresh failed", slog.String("category", category), slog.String("error", err.Error()))
	}
}

// ListCategories returns every category name.
func (s *Service) ListCategories(_ context.Context) ([]string, error) {
	return s.store.ListCategories()
}

// CreateCategory creates a category; false means it already existed.
func (s *Service) CreateCategory(_ context.Context, name string) (bool, error) {
	if err := gallery.ValidateCategory(name); err != nil {
		return false, err
	}
	unlock := s.locks.Lock(name)
	defer unlock()

	created, err := s.store.CreateCategory(name)
	if err != nil {
		return false, err
	}
	if created {
		s.refresh(name)
	}
	return created, nil
}

// ListAssets lists a category enriched with catalog data.
func (s *Service) ListAssets(_ context.Context, category string) ([]AssetItem, error) {
	assets, err := s.store.ListAssets(category)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.ListCategoryAssets(category)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]index.AssetRow, len(rows))
	for _, r := range rows {
		byName[r.Name] = r
	}

	items := make([]AssetItem, len(assets))
	for i, a := range assets {
		items[i] = AssetItem{
			Category: a.Category,
			Name:     a.Name,
			Index:    a.Index,
			Size:     a.Size,
			ModTime:  a.ModTime,
		}
		// Rows lag behind disk until the next sync; only trust a matching size.
		if r, ok := byName[a.Name]; ok && r.Size == a.Size {
			items[i].Width, items[i].Height, items[i].Checksum = r.Width, r.Height, r.Checksum
		}
	}
	return items, nil
}

// Insert adds every source to category in order.
func (s *Service) Insert(ctx context.Context, category string, sources []gallery.Source) (*InsertResult, error) {
	ok, err := s.store.HasCategory(category)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("category %s: %w", category, apperr.ErrNotFound)
	}

	unlock := s.locks.Lock(category)
	res := s.store.InsertBatch(ctx, category, sources)
	if res.Succeeded > 0 {
		s.refresh(category)
	}
	unlock()

	out := &InsertResult{BatchResult: res}
	for _, name := range res.Inserted {
		dups, err := s.duplicatesOf(category, name)
		if err != nil {
			s.logger.Warn("duplicate lookup failed", slog.String("category", category), slog.String("name", name), slog.String("error", err.Error()))
			continue
		}
		if len(dups) == 0 {
			continue
		}
		if out.Duplicates == nil {
			out.Duplicates = make(map[string][]index.AssetRow)
		}
		out.Duplicates[name] = dups
	}
	return out, nil
}

// duplicatesOf lists other assets with the same content as category/name.
func (s *Service) duplicatesOf(category, name string) ([]index.AssetRow, error) {
	row, err := s.db.GetAsset(category, name)
	if err != nil {
		return nil, err
	}
	hits, err := s.db.FindByChecksum(row.Checksum)
	if err != nil {
		return nil, err
	}
	out := hits[:0]
	for _, h := range hits {
		if h.Category != category || h.Name != name {
			out = append(out, h)
		}
	}
	return out, nil
}

// Delete removes one asset and closes the gap it leaves.
func (s *Service) Delete(_ context.Context, category, name string) (bool, error) {
	if err := gallery.ValidateCategory(category); err != nil {
		return false, err
	}
	unlock := s.locks.Lock(category)
	defer unlock()

	deleted, err := s.store.Delete(category, name)
	if deleted {
		s.refresh(category)
	}
	return deleted, err
}

// Renumber repairs gaps in category and returns the rename count.
func (s *Service) Renumber(_ context.Context, category string) (int, error) {
	if err := gallery.ValidateCategory(category); err != nil {
		return 0, err
	}
	unlock := s.locks.Lock(category)
	defer unlock()

	renamed, err := s.store.Renumber(category)
	if renamed > 0 {
		s.refresh(category)
	}
	return renamed, err
}

// ReadAsset returns the stored bytes of one asset.
func (s *Service) ReadAsset(_ context.Context, category, name string) (*AssetFile, error) {
	if err := gallery.ValidateCategory(category); err != nil {
		return nil, err
	}
	if err := gallery.ValidateFilename(name); err != nil {
		return nil, err
	}
	if !gallery.IsAssetName(name, s.store.Extension()) {
		return nil, apperr.ErrNotFound
	}
	rel := filepath.Join(category, name)
	info, err := s.fs.Stat(rel)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	data, err := s.fs.Read(rel)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &AssetFile{Name: name, Content: data, Checksum: checksum.Sum(data), ModTime: info.ModTime()}, nil
}

// Preview renders a PNG thumbnail whose longest side is at most size pixels.
// size <= 0 selects the configured default.
func (s *Service) Preview(ctx context.Context, category, name string, size int) ([]byte, error) {
	if size <= 0 {
		size = s.previewSize
	}
	size = min(size, MaxPreviewSize)

	asset, err := s.ReadAsset(ctx, category, name)
	if err != nil {
		return nil, err
	}
	img, _, err := s.preview.Decode(bytes.NewReader(asset.Content))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := s.preview.Encode(&buf, codec.Thumbnail(img, size)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Duplicates lists groups of identical images across the gallery.
func (s *Service) Duplicates(_ context.Context) ([]index.DuplicateGroup, error) {
	return s.db.Duplicates()
}

// Stats returns per-category totals.
func (s *Service) Stats(_ context.Context) ([]index.CategoryStats, error) {
	return s.db.Stats()
}

// Extension returns the extension of stored images.
func (s *Service) Extension() string { return s.store.Extension() }
