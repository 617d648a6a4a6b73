package codec

import (
	"fmt"
	"image"
	"io"

	"github.com/HugoSmits86/nativewebp"

	"github.com/starford/imgbed/internal/apperr"
)

// WebP stores images as lossless (VP8L) WebP.
type WebP struct {
	decoder
}

// Extension returns ".webp".
func (*WebP) Extension() string { return ".webp" }

// Encode writes img as lossless WebP.
func (*WebP) Encode(w io.Writer, img image.Image) error {
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("codec: encode webp: %w: %w", apperr.ErrUnsupportedImage, err)
	}
	return nil
}
