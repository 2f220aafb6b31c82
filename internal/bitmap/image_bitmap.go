package bitmap

import (
	"fmt"
	"image"
	"image/color"
)

type ImageBitmap struct {
	image *image.Paletted
	// colorMap[i] represents the bit value of the palette colour at index i.
	// If the first colour in the image is black, and a high bit sent to the
	// device is printed as black, then colorMap[0] == 1.
	colorMap [2]byte
}

func (b *ImageBitmap) Width() int {
	return b.image.Rect.Dx()
}

func (b *ImageBitmap) Height() int {
	return b.image.Rect.Dy()
}

func (b *ImageBitmap) GetBit(x int, y int) byte {
	min := b.image.Rect.Min
	return b.colorMap[b.image.ColorIndexAt(min.X+x, min.Y+y)]
}

func (b *ImageBitmap) String() string {
	return fmt.Sprintf("ImageBitmap(%d,%d)", b.Width(), b.Height())
}

func FromPaletted(i *image.Paletted) (*ImageBitmap, error) {
	if len(i.Palette) != 2 {
		return nil, fmt.Errorf("Image passed to FromPaletted must have only 2 colours in palette, got %d", len(i.Palette))
	}

	var colorMap [2]byte

	// Whichever of the two palette colours is closest to white is blank paper.
	if i.Palette.Index(color.White) == 0 {
		colorMap = [2]byte{0, 1}
	} else {
		colorMap = [2]byte{1, 0}
	}

	return &ImageBitmap{
		image:    i,
		colorMap: colorMap,
	}, nil
}
