package render

import (
	"image"
	"image/color"
	"math"

	"github.com/makeworld-the-better-one/dither/v2"
)

// Grey levels at or below this are printed black.
const thresholdLevel = 128

var palette = color.Palette{color.Black, color.White}

// Threshold cuts a greyscale image straight to black and white.
func Threshold(g *image.Gray) *image.Paletted {
	out := image.NewPaletted(g.Bounds(), palette)
	b := g.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if g.GrayAt(x, y).Y <= thresholdLevel {
				out.SetColorIndex(x, y, 0)
			} else {
				out.SetColorIndex(x, y, 1)
			}
		}
	}
	return out
}

// GammaCorrect brightens g by raising each level to 1/gamma. This matches the
// density of the printed dots to what the picture looks like on screen.
func GammaCorrect(g *image.Gray, gamma float64) *image.Gray {
	var table [256]uint8
	for i := range table {
		table[i] = uint8(255 * math.Pow(float64(i)/255, 1/gamma))
	}

	b := g.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetGray(x, y, color.Gray{Y: table[g.GrayAt(x, y).Y]})
		}
	}
	return out
}

// Dither gamma corrects g and then Floyd-Steinberg dithers it to black and
// white.
func Dither(g *image.Gray, gamma float64) *image.Paletted {
	corrected := GammaCorrect(g, gamma)

	ditherer := dither.NewDitherer([]color.Color{color.Black, color.White})
	ditherer.Matrix = dither.FloydSteinberg
	return ditherer.DitherPaletted(corrected)
}
