package printer

type mediaSize struct {
	width, length uint8
}

// Printable dots for each media size in mm, from the QL series catalogue:
// total dots across the media minus the right hand offset.
var pixelWidths = map[mediaSize]uint16{
	// Continuous tape (length 0)
	{12, 0}:  142 - 29,
	{18, 0}:  256 - 171,
	{29, 0}:  342 - 6,
	{38, 0}:  449 - 12,
	{50, 0}:  590 - 12,
	{54, 0}:  636 - 0,
	{62, 0}:  732 - 12,
	{102, 0}: 1200 - 12,
	{104, 0}: 1224 - 12,

	// Die-cut labels
	{17, 54}:   201 - 0,
	{17, 87}:   201 - 0,
	{23, 23}:   272 - 42,
	{29, 42}:   342 - 6,
	{29, 90}:   342 - 6,
	{38, 90}:   449 - 12,
	{39, 48}:   461 - 6,
	{52, 29}:   614 - 0,
	{54, 29}:   630 - 60,
	{60, 87}:   708 - 18,
	{62, 29}:   732 - 12,
	{62, 100}:  732 - 12,
	{102, 51}:  1200 - 12,
	{102, 153}: 1200 - 12,
	{104, 164}: 1224 - 12,

	// Round die-cut labels. 12mm round (142 - 113) is left out, the
	// catalogue value doesn't add up.
	{24, 24}: 284 - 42,
	{58, 58}: 688 - 51,
}

// PixelWidth returns the printable width in dots for media of the given size.
// ok is false for media that isn't in the catalogue.
func PixelWidth(widthMM, lengthMM uint8) (dots uint16, ok bool) {
	dots, ok = pixelWidths[mediaSize{widthMM, lengthMM}]
	return dots, ok
}
