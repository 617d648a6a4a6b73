package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/starford/imgbed/internal/gallery"
	"github.com/starford/imgbed/internal/galleryservice"
	"github.com/starford/imgbed/internal/sse"
)

const (
	uploadField           = "file"
	defaultMaxUploadBytes = 50 << 20 // 50 MB
	multipartMemory       = 8 << 20
)

// UploadHandler accepts multipart image uploads into a category.
type UploadHandler struct {
	svc      *galleryservice.Service
	maxBytes int64
	events   EventStream
}

// NewUploadHandler creates a handler bounding each request to maxBytes.
// events may be nil.
func NewUploadHandler(svc *galleryservice.Service, maxBytes int64, events EventStream) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &UploadHandler{svc: svc, maxBytes: maxBytes, events: events}
}

// Upload handles POST /api/categories/{category}/assets (multipart/form-data,
// one or more "file" fields). Files are inserted in form order.
//
// Responds 201 when at least one image was stored, even if others failed,
// and 422 when none could be stored. The body always carries the per-file
// outcome.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("upload too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp files only

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}

	sources := make([]gallery.Source, len(headers))
	for i, fh := range headers {
		sources[i] = partSource(fh)
	}

	res, err := h.svc.Insert(r.Context(), chi.URLParam(r, "category"), sources)
	if err != nil {
		writeError(w, "upload", err)
		return
	}
	if h.events != nil {
		h.events.Publish(sse.Event{Type: sse.BatchFinished, Data: sse.BatchSummary{
			BatchID:   res.ID,
			Category:  chi.URLParam(r, "category"),
			Succeeded: res.Succeeded,
			Failed:    len(res.Failed),
		}})
	}
	status := http.StatusCreated
	if res.Succeeded == 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

// partSource labels the part by its client-side base name; the name never
// reaches the file system.
func partSource(fh *multipart.FileHeader) gallery.Source {
	return gallery.Source{
		Name: filepath.Base(fh.Filename),
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}
