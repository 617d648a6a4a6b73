// Package gallery maintains categories of densely numbered images under one
// root directory.
package gallery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/imgbed/internal/apperr"
	"github.com/starford/imgbed/internal/codec"
	"github.com/starford/imgbed/internal/metrics"
	"github.com/starford/imgbed/internal/models"
	"github.com/starford/imgbed/internal/storage"
)

// Store binds a gallery root to the codec that normalises every inserted image.
// It keeps no state between calls; callers serialise mutations per category.
type Store struct {
	fs       storage.Provider
	codec    codec.Codec
	logger   *slog.Logger
	maxBytes int64
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for mutation records.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithMaxSourceBytes caps how much of a source image Insert will read.
// Zero disables the cap.
func WithMaxSourceBytes(n int64) Option {
	return func(s *Store) {
		s.maxBytes = n
	}
}

// New creates a Store over fs writing images with c.
func New(fs storage.Provider, c codec.Codec, opts ...Option) *Store {
	s := &Store{fs: fs, codec: c, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the absolute gallery root.
func (s *Store) Root() string { return s.fs.Root() }

// Extension returns the file extension of stored assets, with the dot.
func (s *Store) Extension() string { return s.codec.Extension() }

// ListCategories returns the names of the root's immediate subdirectories in
// ascending order. Directories whose names are not valid categories (hidden
// ones such as .git) are skipped. A missing root yields an empty list.
func (s *Store) ListCategories() ([]string, error) {
	entries, err := s.fs.ReadDir("")
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gallery: list categories: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && ValidateCategory(e.Name()) == nil {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// CreateCategory creates the category directory, and the root if needed.
// It returns false without touching anything when the category exists.
func (s *Store) CreateCategory(name string) (bool, error) {
	if err := ValidateCategory(name); err != nil {
		return false, err
	}
	err := s.fs.Mkdir(name)
	if errors.Is(err, apperr.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("gallery: create category %s: %w", name, err)
	}
	s.logger.Info("category created", slog.String("category", name))
	return true, nil
}

// ListAssets returns the images of category ordered by index, foreign entries
// last. An absent category yields an empty list.
func (s *Store) ListAssets(category string) ([]models.Asset, error) {
	if err := ValidateCategory(category); err != nil {
		return nil, err
	}
	return s.listAssets(category)
}

func (s *Store) listAssets(category string) ([]models.Asset, error) {
	ok, err := s.categoryExists(category)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.Asset{}, nil
	}

	entries, err := s.fs.ReadDir(category)
	if err != nil {
		return nil, fmt.Errorf("gallery: list %s: %w", category, err)
	}
	ext := s.codec.Extension()
	assets := make([]models.Asset, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsAssetName(e.Name(), ext) {
			continue
		}
		info, err := e.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("gallery: list %s: %w", category, err)
		}
		assets = append(assets, models.Asset{
			Category: category,
			Name:     e.Name(),
			Index:    ParseIndex(e.Name(), ext),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	sortAssets(assets)
	return assets, nil
}

// HasCategory reports whether category exists as a directory under the root.
func (s *Store) HasCategory(category string) (bool, error) {
	if err := ValidateCategory(category); err != nil {
		return false, err
	}
	return s.categoryExists(category)
}

func (s *Store) categoryExists(category string) (bool, error) {
	info, err := s.fs.Stat(category)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("gallery: stat %s: %w", category, err)
	}
	return info.IsDir(), nil
}

// Insert decodes src, re-encodes it with the store's codec and writes it as
// the next numbered asset of category. It returns the new file name.
func (s *Store) Insert(ctx context.Context, category string, src io.Reader) (name string, err error) {
	defer func() {
		metrics.AssetsInsertedTotal.WithLabelValues(insertOutcome(err)).Inc()
	}()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := ValidateCategory(category); err != nil {
		return "", err
	}
	ok, err := s.categoryExists(category)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("gallery: category %s: %w", category, apperr.ErrNotFound)
	}

	data, err := s.readSource(src)
	if err != nil {
		return "", err
	}

	start := time.Now()
	img, format, err := s.codec.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("gallery: insert into %s: %w", category, err)
	}
	var buf bytes.Buffer
	if err := s.codec.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("gallery: insert into %s: %w", category, err)
	}
	metrics.TranscodeDuration.WithLabelValues(format).Observe(time.Since(start).Seconds())

	assets, err := s.listAssets(category)
	if err != nil {
		return "", err
	}
	next, err := nextIndex(assets)
	if err != nil {
		return "", fmt.Errorf("gallery: insert into %s: %w", category, err)
	}
	name = assetName(next, s.codec.Extension())
	if err := s.fs.WriteNew(filepath.Join(category, name), buf.Bytes()); err != nil {
		return "", fmt.Errorf("gallery: insert into %s: %w", category, err)
	}

	s.logger.Info("image inserted",
		slog.String("category", category),
		slog.String("name", name),
		slog.String("source_format", format),
		slog.Int("bytes", buf.Len()))
	return name, nil
}

// InsertFile inserts the image stored at path on the local disk.
func (s *Store) InsertFile(ctx context.Context, category, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("gallery: open source: %w", err)
	}
	defer f.Close()
	return s.Insert(ctx, category, f)
}

func (s *Store) readSource(src io.Reader) ([]byte, error) {
	if s.maxBytes <= 0 {
		data, err := io.ReadAll(src)
		if err != nil {
			return nil, fmt.Errorf("gallery: read source: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(src, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("gallery: read source: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("gallery: source exceeds %d bytes: %w", s.maxBytes, apperr.ErrTooLarge)
	}
	return data, nil
}

// Delete removes filename from category and renumbers the remaining assets.
// It returns false without touching anything when the file does not exist
// or is not an asset the store manages.
// A failed renumbering pass is reported alongside true: the file is gone but
// the category may hold a gap until Renumber succeeds.
func (s *Store) Delete(category, filename string) (bool, error) {
	if err := ValidateCategory(category); err != nil {
		return false, err
	}
	if err := ValidateFilename(filename); err != nil {
		return false, err
	}
	if !IsAssetName(filename, s.codec.Extension()) {
		return false, nil
	}

	rel := filepath.Join(category, filename)
	info, err := s.fs.Stat(rel)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("gallery: delete %s: %w", rel, err)
	}
	if info.IsDir() {
		return false, nil
	}
	if err := s.fs.Delete(rel); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("gallery: delete %s: %w", rel, err)
	}
	metrics.AssetsDeletedTotal.Inc()
	s.logger.Info("image deleted", slog.String("category", category), slog.String("name", filename))

	if _, err := s.Renumber(category); err != nil {
		return true, fmt.Errorf("gallery: delete %s: %w", rel, err)
	}
	return true, nil
}

func insertOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, apperr.ErrTooLarge):
		return metrics.OutcomeTooLarge
	case errors.Is(err, apperr.ErrUnsupportedImage):
		return metrics.OutcomeCodec
	case errors.Is(err, apperr.ErrNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeIO
	}
}
