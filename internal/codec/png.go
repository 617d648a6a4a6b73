package codec

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/starford/imgbed/internal/apperr"
)

// PNG stores images as maximally compressed PNG.
type PNG struct {
	decoder
}

// Extension returns ".png".
func (*PNG) Extension() string { return ".png" }

// Encode writes img as PNG.
func (*PNG) Encode(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("codec: encode png: %w: %w", apperr.ErrUnsupportedImage, err)
	}
	return nil
}
