// Package storage defines the gallery file-system abstraction.
package storage

import (
	"io"
	"io/fs"

	"github.com/starford/imgbed/internal/models"
)

// Provider is the interface for gallery file operations. Every path is
// relative to the gallery root.
type Provider interface {
	// Root returns the absolute path of the gallery root.
	Root() string
	// Stat describes the entry at path.
	Stat(path string) (fs.FileInfo, error)
	// ReadDir returns the entries of dir sorted by filename.
	ReadDir(dir string) ([]fs.DirEntry, error)
	// Mkdir creates dir (and the root, if missing). It fails with
	// apperr.ErrAlreadyExists when dir is already present.
	Mkdir(dir string) error
	// Open returns a reader for the file at path.
	Open(path string) (io.ReadCloser, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// List returns metadata for every regular file in dir whose name ends in ext.
	List(dir, ext string) ([]models.FileMetadata, error)
	// WriteNew atomically creates path with content. It never replaces an
	// existing file and leaves nothing behind on failure.
	WriteNew(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath, refusing to replace an existing file.
	Move(oldPath, newPath string) error
}
