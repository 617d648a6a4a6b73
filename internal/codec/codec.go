// Package codec decodes arbitrary raster input and re-encodes it into the
// single lossless format a gallery stores.
package codec

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/starford/imgbed/internal/apperr"
)

// Target formats.
const (
	FormatWebP = "webp"
	FormatPNG  = "png"
)

// Codec converts source images into the gallery's target format.
type Codec interface {
	// Extension is the target file extension including the dot, e.g. ".webp".
	Extension() string
	// Decode reads any supported input format and reports its name.
	Decode(r io.Reader) (image.Image, string, error)
	// Encode writes img losslessly in the target format.
	Encode(w io.Writer, img image.Image) error
}

// Options tune decoding.
type Options struct {
	// MaxPixels rejects sources whose width*height exceeds it. Zero disables the check.
	MaxPixels int64
	// AutoOrient applies the JPEG EXIF orientation to the pixels.
	AutoOrient bool
}

// New returns the codec for the named target format.
func New(format string, opts Options) (Codec, error) {
	switch strings.ToLower(format) {
	case FormatWebP, "":
		return &WebP{decoder{opts: opts}}, nil
	case FormatPNG:
		return &PNG{decoder{opts: opts}}, nil
	default:
		return nil, fmt.Errorf("codec: unknown target format %q", format)
	}
}

// decoder is shared by every target format.
type decoder struct {
	opts Options
}

// Decode sniffs dimensions before decoding so oversized sources are
// rejected without allocating their pixels.
func (d decoder) Decode(r io.Reader) (image.Image, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("codec: read source: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("codec: decode: %w: %w", apperr.ErrUnsupportedImage, err)
	}
	if limit := d.opts.MaxPixels; limit > 0 && int64(cfg.Width)*int64(cfg.Height) > limit {
		return nil, "", fmt.Errorf("codec: %dx%d exceeds %d pixels: %w", cfg.Width, cfg.Height, limit, apperr.ErrTooLarge)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("codec: decode %s: %w: %w", format, apperr.ErrUnsupportedImage, err)
	}
	if d.opts.AutoOrient && format == "jpeg" {
		img = Orient(img, readOrientation(data))
	}
	return img, format, nil
}

// DecodeConfig returns the dimensions and format name of an encoded image.
func DecodeConfig(r io.Reader) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return image.Config{}, "", fmt.Errorf("codec: decode config: %w: %w", apperr.ErrUnsupportedImage, err)
	}
	return cfg, format, nil
}
