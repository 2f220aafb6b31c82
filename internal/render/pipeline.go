// Package render turns arbitrary pictures into raster lines for the print
// head: flatten onto white paper, greyscale, scale to the printable width,
// reduce to black and white, then bit-pack.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"

	"tomgalvin.uk/qlprint/internal/bitmap"
)

const (
	// Width used when the loaded media isn't in the catalogue
	FallbackWidth = bitmap.LineDots

	DefaultGamma     = 3.14
	DefaultMaxAspect = 3.5
)

type Filter int

const (
	Lanczos3 Filter = iota
	CatmullRom
)

func (f Filter) String() string {
	switch f {
	case Lanczos3:
		return "lanczos3"
	case CatmullRom:
		return "catmullrom"
	default:
		return fmt.Sprintf("Filter(%d)", int(f))
	}
}

func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lanczos", "lanczos3":
		return Lanczos3, nil
	case "catmullrom", "catmull-rom":
		return CatmullRom, nil
	default:
		return 0, fmt.Errorf("Unknown resampling filter %q", s)
	}
}

type Options struct {
	// Doubles the number of lines for 600 dpi in the feed direction
	HighResolution bool
	// Floyd-Steinberg dithering when set, a flat threshold otherwise
	Dithering bool
	Gamma     float64
	// Tallest height/width ratio accepted, so nobody prints a metre of label
	MaxAspect float64
	Filter    Filter
	// When set, the black and white image is saved here as a PNG
	DebugOutput string
}

func DefaultOptions() Options {
	return Options{
		Dithering: true,
		Gamma:     DefaultGamma,
		MaxAspect: DefaultMaxAspect,
		Filter:    Lanczos3,
	}
}

// TargetWidth picks the width to render at from the media's printable width.
// Unknown media falls back to the full head, and media wider than the head
// is clamped to it.
func TargetWidth(dots uint16, known bool) int {
	if !known || dots == 0 {
		return FallbackWidth
	}
	if int(dots) > bitmap.LineDots {
		return bitmap.LineDots
	}
	return int(dots)
}

// TargetHeight keeps the aspect ratio of a srcWidth x srcHeight picture
// scaled to width.
func TargetHeight(width, srcWidth, srcHeight int, highResolution bool) int {
	h := int(math.Round(float64(width) * float64(srcHeight) / float64(srcWidth)))
	if h < 1 {
		h = 1
	}
	if highResolution {
		h *= 2
	}
	return h
}

// CheckAspect rejects pictures taller than maxAspect times their width.
func CheckAspect(img image.Image, maxAspect float64) error {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: image is empty", ErrInvalidImage)
	}
	ratio := float64(b.Dy()) / float64(b.Dx())
	if ratio > maxAspect {
		return fmt.Errorf("%w: height/width ratio %.2f is above %.2f", ErrInvalidImage, ratio, maxAspect)
	}
	return nil
}

// Flatten composites img over white so transparent areas stay blank.
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}

func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func Resize(g *image.Gray, width, height int, f Filter) *image.Gray {
	if f == CatmullRom {
		out := image.NewGray(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(out, out.Bounds(), g, g.Bounds(), draw.Src, nil)
		return out
	}

	scaled := resize.Resize(uint(width), uint(height), g, resize.Lanczos3)
	if out, ok := scaled.(*image.Gray); ok {
		return out
	}
	return Grayscale(scaled)
}

// Monochrome runs every stage up to the black and white image.
func Monochrome(img image.Image, width int, opts Options) (*image.Paletted, error) {
	if width <= 0 || width > bitmap.LineDots {
		return nil, fmt.Errorf("%w: %d dots", bitmap.ErrTooWide, width)
	}
	if err := CheckAspect(img, opts.MaxAspect); err != nil {
		return nil, err
	}

	gray := Grayscale(Flatten(img))
	b := gray.Bounds()
	height := TargetHeight(width, b.Dx(), b.Dy(), opts.HighResolution)
	scaled := Resize(gray, width, height, opts.Filter)

	var mono *image.Paletted
	if opts.Dithering {
		mono = Dither(scaled, opts.Gamma)
	} else {
		mono = Threshold(scaled)
	}

	if opts.DebugOutput != "" {
		if err := savePNG(opts.DebugOutput, mono); err != nil {
			slog.Warn("Couldn't save processed image", "path", opts.DebugOutput, "error", err)
		}
	}
	return mono, nil
}

// Render converts img into one raster line per output row, right aligned
// on the print head.
func Render(img image.Image, width int, opts Options) (bitmap.Document, error) {
	mono, err := Monochrome(img, width, opts)
	if err != nil {
		return nil, err
	}

	b, err := bitmap.FromPaletted(mono)
	if err != nil {
		return nil, err
	}
	doc, err := bitmap.PackLines(b, bitmap.PadFor(b.Width()))
	if err != nil {
		return nil, err
	}

	slog.Debug("Rendered image", "width", b.Width(), "lines", len(doc), "dithering", opts.Dithering)
	return doc, nil
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
