// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/imgbed/internal/api"
	"github.com/starford/imgbed/internal/index"
	"github.com/starford/imgbed/internal/mcpserver"
	"github.com/starford/imgbed/internal/sse"
)

// Version is reported by the MCP server.
var Version = "dev"

func (a *application) setup(opts []Option) (*Config, *slog.Logger, error) {
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	logger := newLogger(a.logOutput, a.config.App.LogLevel)
	slog.SetDefault(logger)
	return a.config, logger, nil
}

// Run starts the HTTP server, the gallery watcher and the event broker.
func Run(ctx context.Context, opts ...Option) error {
	cfg, logger, err := (&application{}).setup(opts)
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("gallery_root", cfg.Gallery.Root),
		slog.String("format", cfg.Gallery.Format),
		slog.String("catalog_path", cfg.Catalog.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(cfg.SSE.CatalogThrottle, cfg.SSE.Heartbeat)
	defer broker.Close()

	g, err := OpenGallery(ctx, cfg, logger, broker.PublishGalleryEvent)
	if err != nil {
		return err
	}
	defer g.Close()

	apiRouter := api.NewRouter(g.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, cfg.Gallery.MaxUploadBytes)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health and metrics endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		if err := g.DB.Ping(req.Context()); err != nil {
			writeHealth(w, http.StatusServiceUnavailable, "catalog unavailable")
			return
		}
		// A root that does not exist yet is an empty gallery.
		if _, err := os.Stat(cfg.Gallery.Root); err != nil && !errors.Is(err, fs.ErrNotExist) {
			writeHealth(w, http.StatusServiceUnavailable, "gallery root unavailable")
			return
		}
		writeHealth(w, http.StatusOK, "ok")
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	eg, gCtx := errgroup.WithContext(ctx)

	// The watcher picks up edits made by other programs.
	eg.Go(func() error {
		err := index.Watch(gCtx, g.DB, g.FS, g.Store.Extension(), cfg.SSE.WatchDebounce, logger, broker.PublishGalleryEvent)
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	eg.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the gallery tools over stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	cfg, logger, err := (&application{logOutput: os.Stderr}).setup(opts)
	if err != nil {
		return err
	}

	g, err := OpenGallery(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer g.Close()

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := index.Watch(watchCtx, g.DB, g.FS, g.Store.Extension(), cfg.SSE.WatchDebounce, logger, nil); err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		cancel()
		<-done
	}()

	logger.Info("MCP server starting", slog.String("gallery_root", cfg.Gallery.Root))
	return mcpserver.New(g.Service, Version, cfg.MCP.MaxFetchBytes).ServeStdio()
}

func writeHealth(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, msg)
}
