// This file implements packing bitmap pixel data into the raster line format
// accepted by Brother QL printers.

package bitmap

import (
	"errors"
	"fmt"
)

const (
	// LineBytes is the size of one raster line for 720 dot (90 byte) print heads.
	LineBytes = 90
	// LineDots is the number of dots across the print head.
	LineDots = LineBytes * bitsPerWord
)

const bitsPerWord = 8

var (
	ErrLineLength = errors.New("raster line must be exactly 90 bytes")
	ErrTooWide    = errors.New("bitmap doesn't fit on the print head")
)

// One row of print head dots. Dot x lives in byte 89 - x/8 at bit x%8, so the
// buffer is filled from its high end and least significant bit first.
type RasterLine [LineBytes]byte

// Document is an ordered sequence of raster lines, top row first.
type Document []RasterLine

// LineFromBytes copies b into a raster line, rejecting any other length.
func LineFromBytes(b []byte) (RasterLine, error) {
	var l RasterLine
	if len(b) != LineBytes {
		return l, fmt.Errorf("%w (got %d)", ErrLineLength, len(b))
	}
	copy(l[:], b)
	return l, nil
}

// Reports whether dot x is set.
func (l *RasterLine) Dot(x int) bool {
	return l[LineBytes-1-x/bitsPerWord]&(1<<(x%bitsPerWord)) != 0
}

func (l *RasterLine) setDot(x int) {
	l[LineBytes-1-x/bitsPerWord] |= 1 << (x % bitsPerWord)
}

// PadFor returns the number of blank dots placed before an image of the given
// width, which right-aligns the image against the end of the print head.
func PadFor(width int) int {
	return LineDots - width
}

// Packs every row of the bitmap into a raster line, offsetting each pixel by
// padding dots.
func PackLines(b Bitmap, padding int) (Document, error) {
	width, height := b.Width(), b.Height()
	if padding < 0 || padding+width > LineDots {
		return nil, fmt.Errorf("%w: %d pixels plus %d padding dots exceeds %d", ErrTooWide, width, padding, LineDots)
	}

	lines := make(Document, height)
	for y := range height {
		for x := range width {
			if b.GetBit(x, y)&1 == 1 {
				lines[y].setDot(x + padding)
			}
		}
	}
	return lines, nil
}
