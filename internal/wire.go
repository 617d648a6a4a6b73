package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/imgbed/internal/codec"
	"github.com/starford/imgbed/internal/gallery"
	"github.com/starford/imgbed/internal/galleryservice"
	"github.com/starford/imgbed/internal/index"
	"github.com/starford/imgbed/internal/storage"
)

// Gallery bundles the components every entry point needs.
type Gallery struct {
	FS      *storage.FS
	Store   *gallery.Store
	DB      *index.DB
	Service *galleryservice.Service
}

// OpenGallery opens the catalog and reconciles it with disk. A missing root
// is left alone; the first CreateCategory creates it. notify may be nil.
func OpenGallery(ctx context.Context, cfg *Config, logger *slog.Logger, notify index.EventCallback) (*Gallery, error) {
	fs, err := storage.NewFS(cfg.Gallery.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	c, err := codec.New(cfg.Gallery.Format, cfg.Gallery.CodecOptions())
	if err != nil {
		return nil, fmt.Errorf("init codec: %w", err)
	}

	storeOpts := []gallery.Option{gallery.WithLogger(logger)}
	if cfg.Gallery.MaxUploadBytes > 0 {
		storeOpts = append(storeOpts, gallery.WithMaxSourceBytes(cfg.Gallery.MaxUploadBytes))
	}
	store := gallery.New(fs, c, storeOpts...)

	db, err := index.Open(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	svc, err := galleryservice.New(fs, store, db,
		galleryservice.WithLogger(logger),
		galleryservice.WithNotifier(notify),
		galleryservice.WithPreviewSize(cfg.Gallery.PreviewSize),
	)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init service: %w", err), db.Close())
	}

	g := &Gallery{FS: fs, Store: store, DB: db, Service: svc}
	if err := svc.Refresh(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return g, nil
}

// Close releases the catalog.
func (g *Gallery) Close() error {
	return g.DB.Close()
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
