package api

import (
	"github.com/starford/imgbed/internal/galleryservice"
	"github.com/starford/imgbed/internal/index"
)

// CreateCategoryRequest is the request body for creating a category.
type CreateCategoryRequest struct {
	Name string `json:"name" example:"holidays" validate:"required"`
}

// CreateCategoryResponse reports whether the category was newly created.
type CreateCategoryResponse struct {
	Name    string `json:"name" example:"holidays" validate:"required"`
	Created bool   `json:"created" validate:"required"`
}

// CategoryListResponse wraps category names.
type CategoryListResponse struct {
	Categories []string `json:"categories" validate:"required"`
}

// AssetItem is one listed image (aliased from the domain layer).
type AssetItem = galleryservice.AssetItem

// AssetListResponse wraps a category listing.
type AssetListResponse struct {
	Category string      `json:"category" example:"holidays" validate:"required"`
	Assets   []AssetItem `json:"assets" validate:"required"`
}

// UploadResponse is returned after a multipart upload.
type UploadResponse = galleryservice.InsertResult

// RenumberResponse reports how many files a repair pass renamed.
type RenumberResponse struct {
	Category string `json:"category" example:"holidays" validate:"required"`
	Renamed  int    `json:"renamed" example:"2" validate:"required"`
}

// DuplicatesResponse wraps groups of identical images.
type DuplicatesResponse struct {
	Groups []index.DuplicateGroup `json:"groups" validate:"required"`
}

// StatsResponse wraps per-category totals.
type StatsResponse struct {
	Categories []index.CategoryStats `json:"categories" validate:"required"`
}
