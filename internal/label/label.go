// Package label draws plain text onto a white canvas as wide as the loaded
// media, ready for the raster pipeline.
package label

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const DefaultFontSize = 48

var ErrEmptyText = errors.New("label text is empty")

type Options struct {
	// Size in points at 72 dpi, so one point is one dot
	FontSize int
	// "goregular" or "gomono"
	Font string
	// Blank dots kept around the text on every side
	Margin int
}

func DefaultOptions() Options {
	return Options{
		FontSize: DefaultFontSize,
		Font:     "goregular",
		Margin:   8,
	}
}

func fontData(name string) ([]byte, error) {
	switch name {
	case "", "goregular":
		return goregular.TTF, nil
	case "gomono":
		return gomono.TTF, nil
	default:
		return nil, fmt.Errorf(`Unrecognised builtin font "%s"`, name)
	}
}

func loadFace(name string, size int) (font.Face, error) {
	if size <= 0 {
		return nil, fmt.Errorf("Font size must be positive, got %d", size)
	}
	data, err := fontData(name)
	if err != nil {
		return nil, err
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("Couldn't parse font %s:\n%w", name, err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("Couldn't create font face:\n%w", err)
	}
	return face, nil
}

// wrapText breaks text into lines no wider than maxWidth. A single word
// wider than maxWidth is kept on its own line.
func wrapText(text string, maxWidth int, face font.Face) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		var line string
		for _, word := range words {
			testLine := line
			if len(line) > 0 {
				testLine += " "
			}
			testLine += word

			width := font.MeasureString(face, testLine).Ceil()
			if width > maxWidth && len(line) > 0 {
				lines = append(lines, line)
				line = word
			} else {
				line = testLine
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// Validate reports whether text can be rendered with opts at some width.
func Validate(text string, opts Options) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if opts.FontSize <= 0 {
		return fmt.Errorf("Font size must be positive, got %d", opts.FontSize)
	}
	_, err := fontData(opts.Font)
	return err
}

// Render lays out text in black on a white image exactly width dots wide.
// The height grows with the number of wrapped lines.
func Render(text string, width int, opts Options) (*image.RGBA, error) {
	if err := Validate(text, opts); err != nil {
		return nil, err
	}
	if width <= 2*opts.Margin {
		return nil, fmt.Errorf("Label width %d leaves no room inside a %d dot margin", width, opts.Margin)
	}

	face, err := loadFace(opts.Font, opts.FontSize)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	lines := wrapText(text, width-2*opts.Margin, face)
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	height := lineHeight*len(lines) + 2*opts.Margin

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	y := fixed.I(opts.Margin)
	for _, line := range lines {
		d.Dot = fixed.Point26_6{X: fixed.I(opts.Margin), Y: y + metrics.Ascent}
		d.DrawString(line)
		y += fixed.I(lineHeight)
	}
	return img, nil
}
