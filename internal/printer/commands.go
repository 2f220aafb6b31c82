// This file implements the Brother QL raster command byte sequences. Every
// command has a fixed or self-declared length, so a stream of them can be
// written back to back without further framing.
package printer

import (
	"encoding/binary"

	"tomgalvin.uk/qlprint/internal/bitmap"
)

// Control characters
const (
	Esc = 0x1B
	// Second byte of every "ESC i" extended command
	ExtendedCommand = 0x69
)

// Fixed print information flags: media kind, width and length are valid,
// quality priority and recover after an error.
const printInformationFlags = 0x02 | 0x04 | 0x08 | 0x40 | 0x80

const resetLength = 200

// Command is anything that can be written to the printer.
type Command interface {
	Bytes() []byte
}

// Encode returns the wire bytes for c.
func Encode(c Command) []byte {
	return c.Bytes()
}

type CommandMode byte

const (
	EscpNormal     CommandMode = 0x00
	Raster         CommandMode = 0x01
	EscpText       CommandMode = 0x02
	PtouchTemplate CommandMode = 0x03
)

// Clears any half received command by flooding the printer with zero bytes.
type Reset struct{}

func (Reset) Bytes() []byte {
	return make([]byte, resetLength)
}

type Invalid struct{}

func (Invalid) Bytes() []byte {
	return []byte{0x00}
}

// Initialises the printer & prepares it to accept commands
type Initialize struct{}

func (Initialize) Bytes() []byte {
	return []byte{Esc, 0x40}
}

// Asks the printer for a 32 byte status reply.
type StatusInfoRequest struct{}

func (StatusInfoRequest) Bytes() []byte {
	return []byte{Esc, ExtendedCommand, 0x53}
}

type SetCommandMode struct {
	Mode CommandMode
}

func (c SetCommandMode) Bytes() []byte {
	return []byte{Esc, ExtendedCommand, 0x61, byte(c.Mode)}
}

// Describes the media and the number of raster lines that follow. The media
// fields are echoed back from a status reply.
type SetPrintInformation struct {
	Status    Status
	LineCount int32
}

func (c SetPrintInformation) Bytes() []byte {
	b := []byte{
		Esc, ExtendedCommand, 0x7A,
		printInformationFlags,
		byte(c.Status.MediaType),
		c.Status.MediaWidth,
		c.Status.MediaLength,
		0, 0, 0, 0,
		0x01, 0x00,
	}
	binary.LittleEndian.PutUint32(b[7:11], uint32(c.LineCount))
	return b
}

type SetMode struct {
	AutoCut bool
}

func (c SetMode) Bytes() []byte {
	return []byte{Esc, ExtendedCommand, 0x4D, flag(c.AutoCut) << 6}
}

// Sets n in "cut every n labels"; 1 cuts after each label.
type SetPageNumber struct {
	N uint8
}

func (c SetPageNumber) Bytes() []byte {
	return []byte{Esc, ExtendedCommand, 0x41, c.N}
}

type SetExpandedMode struct {
	CutAtEnd       bool
	HighResolution bool
}

func (c SetExpandedMode) Bytes() []byte {
	return []byte{Esc, ExtendedCommand, 0x4B, flag(c.CutAtEnd)<<4 | flag(c.HighResolution)<<6}
}

// Sets the feed amount in dots.
type SetMarginAmount struct {
	Dots uint16
}

func (c SetMarginAmount) Bytes() []byte {
	b := []byte{Esc, ExtendedCommand, 0x64, 0, 0}
	binary.LittleEndian.PutUint16(b[3:], c.Dots)
	return b
}

// Selects uncompressed raster transfer; compression isn't supported.
type SetCompressionMode struct{}

func (SetCompressionMode) Bytes() []byte {
	return []byte{0x4D, 0x00}
}

type RasterGraphicsTransfer struct {
	Line bitmap.RasterLine
}

func (c RasterGraphicsTransfer) Bytes() []byte {
	b := make([]byte, 0, 3+bitmap.LineBytes)
	b = append(b, 0x67, 0x00, bitmap.LineBytes)
	return append(b, c.Line[:]...)
}

// A blank raster line.
type ZeroRasterGraphics struct{}

func (ZeroRasterGraphics) Bytes() []byte {
	return []byte{0x5A}
}

type Print struct{}

func (Print) Bytes() []byte {
	return []byte{0x0C}
}

// Prints and feeds the last page.
type PrintWithFeeding struct{}

func (PrintWithFeeding) Bytes() []byte {
	return []byte{0x1A}
}

// Sets the serial line speed. N is in units of 100 baud.
type SetBaudRate struct {
	N uint16
}

func (c SetBaudRate) Bytes() []byte {
	return []byte{Esc, ExtendedCommand, 0x42, byte(c.N), byte(c.N >> 8)}
}

func flag(b bool) byte {
	if b {
		return 1
	}
	return 0
}
