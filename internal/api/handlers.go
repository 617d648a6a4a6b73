package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/imgbed/internal/galleryservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *galleryservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *galleryservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListCategories handles GET /api/categories.
//
//	@Summary		List categories
//	@Tags			categories
//	@Produce		json
//	@Success		200	{object}	CategoryListResponse
//	@Security		BearerAuth
//	@Router			/categories [get]
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.ListCategories(r.Context())
	if err != nil {
		writeError(w, "list categories", err)
		return
	}
	writeJSON(w, http.StatusOK, CategoryListResponse{Categories: cats})
}

// CreateCategory handles POST /api/categories.
// Responds 201 when created and 200 when the category already existed.
//
//	@Summary		Create a category
//	@Tags			categories
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateCategoryRequest	true	"Category"
//	@Success		201		{object}	CreateCategoryResponse
//	@Success		200		{object}	CreateCategoryResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories [post]
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	created, err := h.svc.CreateCategory(r.Context(), req.Name)
	if err != nil {
		writeError(w, "create category", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, CreateCategoryResponse{Name: req.Name, Created: created})
}

// ListAssets handles GET /api/categories/{category}/assets.
//
//	@Summary		List the images of a category in sequence order
//	@Tags			assets
//	@Produce		json
//	@Param			category	path		string	true	"Category"
//	@Success		200			{object}	AssetListResponse
//	@Security		BearerAuth
//	@Router			/categories/{category}/assets [get]
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	items, err := h.svc.ListAssets(r.Context(), category)
	if err != nil {
		writeError(w, "list assets", err)
		return
	}
	writeJSON(w, http.StatusOK, AssetListResponse{Category: category, Assets: items})
}

// GetAsset handles GET /api/categories/{category}/assets/{name}.
// Serves the stored bytes with an ETag so browsers can revalidate after renumbering.
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.svc.ReadAsset(r.Context(), chi.URLParam(r, "category"), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, "read asset", err)
		return
	}
	w.Header().Set("ETag", strconv.Quote(asset.Checksum))
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, asset.Name, asset.ModTime, bytes.NewReader(asset.Content))
}

// Preview handles GET /api/categories/{category}/assets/{name}/preview?size=N.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	size := 0
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("size must be a positive integer"))
			return
		}
		size = n
	}
	data, err := h.svc.Preview(r.Context(), chi.URLParam(r, "category"), chi.URLParam(r, "name"), size)
	if err != nil {
		writeError(w, "preview", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DeleteAsset handles DELETE /api/categories/{category}/assets/{name}.
//
//	@Summary		Delete an image and renumber the rest
//	@Tags			assets
//	@Param			category	path	string	true	"Category"
//	@Param			name		path	string	true	"File name"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories/{category}/assets/{name} [delete]
func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	category, name := chi.URLParam(r, "category"), chi.URLParam(r, "name")
	deleted, err := h.svc.Delete(r.Context(), category, name)
	if err != nil && deleted {
		// The file is gone but the category may now have a gap.
		slog.Error("renumber after delete failed",
			slog.String("category", category),
			slog.String("name", name),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("deleted, but renumbering failed; POST /renumber to repair"))
		return
	}
	if err != nil {
		writeError(w, "delete asset", err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Renumber handles POST /api/categories/{category}/renumber.
func (h *Handler) Renumber(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	renamed, err := h.svc.Renumber(r.Context(), category)
	if err != nil {
		writeError(w, "renumber", err)
		return
	}
	writeJSON(w, http.StatusOK, RenumberResponse{Category: category, Renamed: renamed})
}

// Duplicates handles GET /api/duplicates.
func (h *Handler) Duplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.Duplicates(r.Context())
	if err != nil {
		writeError(w, "duplicates", err)
		return
	}
	writeJSON(w, http.StatusOK, DuplicatesResponse{Groups: groups})
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Categories: stats})
}
