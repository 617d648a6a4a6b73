package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/imgbed/internal/galleryservice"
	"github.com/starford/imgbed/internal/sse"
)

// EventStream serves GET /events and receives upload summaries.
type EventStream interface {
	http.Handler
	Publish(event sse.Event)
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// events, if non-nil, is mounted at GET /events inside the auth group and
// told about every finished upload.
// maxUploadBytes bounds one multipart upload request.
func NewRouter(svc *galleryservice.Service, authEnabled bool, token string, events EventStream, maxUploadBytes int64) chi.Router {
	h := NewHandler(svc)
	uh := NewUploadHandler(svc, maxUploadBytes, events)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/categories", h.ListCategories)
	r.Post("/categories", h.CreateCategory)

	r.Route("/categories/{category}", func(r chi.Router) {
		r.Get("/assets", h.ListAssets)
		r.Post("/assets", uh.Upload)
		r.Get("/assets/{name}", h.GetAsset)
		r.Get("/assets/{name}/preview", h.Preview)
		r.Delete("/assets/{name}", h.DeleteAsset)
		r.Post("/renumber", h.Renumber)
	})

	r.Get("/duplicates", h.Duplicates)
	r.Get("/stats", h.Stats)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}
