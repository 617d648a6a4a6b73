// Package models defines the domain types for imgbed.
package models

import "time"

// Asset is one image file inside a category.
type Asset struct {
	Category string    `json:"category"`
	Name     string    `json:"name"`
	Index    int       `json:"index"` // 0 for foreign entries whose stem is not a canonical integer
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}

// Foreign reports whether the asset's name falls outside the numbered sequence.
func (a Asset) Foreign() bool { return a.Index == 0 }

// FileMetadata is a lightweight representation returned by storage listings.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
