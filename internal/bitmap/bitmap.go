// This package defines an interface for a simple bitmap structure that has a
// width, height, and can get bits from the bitmap by (x,y) coordinate.
// PixelBitmap stores each pixel in a byte in a 2D array and ImageBitmap reads
// bits straight out of a two colour paletted image. Lastly it defines the
// RasterLine structure, which is the format the Brother QL print head
// consumes over the wire.
package bitmap

import (
	"fmt"
)

// A bit value of 1 is printed (black), 0 is left blank.
type Bitmap interface {
	Width() int
	Height() int
	GetBit(x int, y int) byte
}

type PixelBitmap struct {
	pixels        [][]byte
	width, height int
}

// NewPixelBitmap builds a bitmap from rows of 0/1 pixel values. All rows must
// be the same length.
func NewPixelBitmap(pixels [][]byte) (*PixelBitmap, error) {
	width := 0
	if len(pixels) > 0 {
		width = len(pixels[0])
	}
	for y, row := range pixels {
		if len(row) != width {
			return nil, fmt.Errorf("Row %d has %d pixels, expecting %d", y, len(row), width)
		}
	}
	return &PixelBitmap{pixels, width, len(pixels)}, nil
}

func (b *PixelBitmap) Width() int {
	return b.width
}

func (b *PixelBitmap) Height() int {
	return b.height
}

func (b *PixelBitmap) GetBit(x int, y int) byte {
	return b.pixels[y][x]
}

func (b *PixelBitmap) String() string {
	return fmt.Sprintf("PixelBitmap(%d,%d)", b.width, b.height)
}
