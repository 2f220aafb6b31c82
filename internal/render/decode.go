package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrInvalidImage is wrapped by every error caused by the input picture
// rather than the printer.
var ErrInvalidImage = errors.New("invalid image")

// Pictures with more pixels than this are refused before decoding.
const MaxPixels = 32 << 20

// Decode reads a JPEG, PNG, GIF, WEBP, TIFF or BMP image. The header is
// checked first, so a small file declaring huge dimensions doesn't get to
// allocate them.
func Decode(r io.Reader) (image.Image, string, error) {
	var header bytes.Buffer
	cfg, format, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return nil, "", fmt.Errorf("%w: couldn't decode image: %w", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: %s image is %dx%d", ErrInvalidImage, format, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, "", fmt.Errorf("%w: %s image is %dx%d, over %d pixels",
			ErrInvalidImage, format, cfg.Width, cfg.Height, MaxPixels)
	}

	img, format, err := image.Decode(io.MultiReader(&header, r))
	if err != nil {
		return nil, "", fmt.Errorf("%w: couldn't decode image: %w", ErrInvalidImage, err)
	}
	return img, format, nil
}

func DecodeFile(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("Couldn't open image:\n%w", err)
	}
	defer f.Close()
	return Decode(f)
}
