// Package apperr holds the sentinel errors shared by the store and its shells.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidName   = errors.New("invalid name")

	// ErrUnsupportedImage wraps any decode or encode failure of a source image.
	ErrUnsupportedImage = errors.New("unsupported image")
	ErrTooLarge         = errors.New("too large")
)
