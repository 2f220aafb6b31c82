package printer

import (
	"fmt"
	"log/slog"
)

// StatusLength is the fixed size of a status reply.
const StatusLength = 32

// Reply header bytes
const (
	statusHeader0 = 0x80
	statusHeader1 = 0x20
)

// Byte offsets into a status reply
const (
	offsetErrorInfo1  = 8
	offsetErrorInfo2  = 9
	offsetMediaWidth  = 10
	offsetMediaType   = 11
	offsetMediaLength = 17
	offsetStatusType  = 18
	offsetPhaseState  = 19
)

// DecodeError describes a status reply that can't be trusted.
type DecodeError struct {
	Field  string
	Offset int
	Value  byte
	// Length is only set when the reply was the wrong size
	Length int
}

func (e *DecodeError) Error() string {
	if e.Field == "length" {
		return fmt.Sprintf("malformed status reply: got %d bytes, expecting %d", e.Length, StatusLength)
	}
	return fmt.Sprintf("malformed status reply: unexpected %s 0x%02x at offset %d", e.Field, e.Value, e.Offset)
}

type MediaType byte

const (
	NoMedia      MediaType = 0x00
	Continuous   MediaType = 0x0A
	DieCutLabels MediaType = 0x0B
)

func (m MediaType) String() string {
	switch m {
	case NoMedia:
		return "NoMedia"
	case Continuous:
		return "Continuous"
	case DieCutLabels:
		return "DieCutLabels"
	default:
		return fmt.Sprintf("MediaType(0x%02x)", byte(m))
	}
}

type StatusType byte

const (
	ReplyToStatusRequest StatusType = 0x00
	PrintingCompleted    StatusType = 0x01
	ErrorOccurred        StatusType = 0x02
	Notification         StatusType = 0x05
	PhaseChange          StatusType = 0x06
)

func (s StatusType) String() string {
	switch s {
	case ReplyToStatusRequest:
		return "ReplyToStatusRequest"
	case PrintingCompleted:
		return "PrintingCompleted"
	case ErrorOccurred:
		return "Error"
	case Notification:
		return "Notification"
	case PhaseChange:
		return "PhaseChange"
	default:
		return fmt.Sprintf("StatusType(0x%02x)", byte(s))
	}
}

type PhaseState byte

const (
	Waiting  PhaseState = 0x00
	Printing PhaseState = 0x01
)

func (p PhaseState) String() string {
	switch p {
	case Waiting:
		return "Waiting"
	case Printing:
		return "Printing"
	default:
		return fmt.Sprintf("PhaseState(0x%02x)", byte(p))
	}
}

// Error information 1 bits
const (
	noMediaWhenPrinting = 0x01
	endOfMedia          = 0x02
	tapeCutterJam       = 0x04
	mainUnitInUse       = 0x10
	fanDoesntWork       = 0x80
)

type ErrorInfo1 struct {
	NoMediaWhenPrinting bool
	EndOfMedia          bool
	TapeCutterJam       bool
	MainUnitInUse       bool
	FanDoesntWork       bool
}

func errorInfo1FromBits(b byte) ErrorInfo1 {
	return ErrorInfo1{
		NoMediaWhenPrinting: b&noMediaWhenPrinting != 0,
		EndOfMedia:          b&endOfMedia != 0,
		TapeCutterJam:       b&tapeCutterJam != 0,
		MainUnitInUse:       b&mainUnitInUse != 0,
		FanDoesntWork:       b&fanDoesntWork != 0,
	}
}

func (e ErrorInfo1) bits() byte {
	return flag(e.NoMediaWhenPrinting)*noMediaWhenPrinting |
		flag(e.EndOfMedia)*endOfMedia |
		flag(e.TapeCutterJam)*tapeCutterJam |
		flag(e.MainUnitInUse)*mainUnitInUse |
		flag(e.FanDoesntWork)*fanDoesntWork
}

func (e ErrorInfo1) Any() bool {
	return e.bits() != 0
}

// Names lists the flags that are set.
func (e ErrorInfo1) Names() []string {
	var names []string
	if e.NoMediaWhenPrinting {
		names = append(names, "no media when printing")
	}
	if e.EndOfMedia {
		names = append(names, "end of media")
	}
	if e.TapeCutterJam {
		names = append(names, "tape cutter jam")
	}
	if e.MainUnitInUse {
		names = append(names, "main unit in use")
	}
	if e.FanDoesntWork {
		names = append(names, "fan doesn't work")
	}
	return names
}

// Error information 2 bits
const (
	transmissionError        = 0x04
	coverOpenedWhilePrinting = 0x10
	cannotFeed               = 0x40
	systemError              = 0x80
)

type ErrorInfo2 struct {
	TransmissionError        bool
	CoverOpenedWhilePrinting bool
	CannotFeed               bool
	SystemError              bool
}

func errorInfo2FromBits(b byte) ErrorInfo2 {
	return ErrorInfo2{
		TransmissionError:        b&transmissionError != 0,
		CoverOpenedWhilePrinting: b&coverOpenedWhilePrinting != 0,
		CannotFeed:               b&cannotFeed != 0,
		SystemError:              b&systemError != 0,
	}
}

func (e ErrorInfo2) bits() byte {
	return flag(e.TransmissionError)*transmissionError |
		flag(e.CoverOpenedWhilePrinting)*coverOpenedWhilePrinting |
		flag(e.CannotFeed)*cannotFeed |
		flag(e.SystemError)*systemError
}

func (e ErrorInfo2) Any() bool {
	return e.bits() != 0
}

func (e ErrorInfo2) Names() []string {
	var names []string
	if e.TransmissionError {
		names = append(names, "transmission error")
	}
	if e.CoverOpenedWhilePrinting {
		names = append(names, "cover opened while printing")
	}
	if e.CannotFeed {
		names = append(names, "cannot feed")
	}
	if e.SystemError {
		names = append(names, "system error")
	}
	return names
}

// Status is a snapshot decoded from one status reply.
type Status struct {
	// Media width in mm
	MediaWidth uint8
	// Media length in mm, 0 for continuous tape
	MediaLength uint8
	MediaType   MediaType
	Errors1     ErrorInfo1
	Errors2     ErrorInfo2
	StatusType  StatusType
	PhaseState  PhaseState
}

// DecodeStatus parses a 32 byte status reply. Reserved offsets are ignored.
func DecodeStatus(b []byte) (Status, error) {
	var s Status
	if len(b) != StatusLength {
		return s, &DecodeError{Field: "length", Length: len(b)}
	}
	if b[0] != statusHeader0 {
		return s, &DecodeError{Field: "header", Offset: 0, Value: b[0]}
	}
	if b[1] != statusHeader1 {
		return s, &DecodeError{Field: "header", Offset: 1, Value: b[1]}
	}

	switch t := MediaType(b[offsetMediaType]); t {
	case NoMedia, Continuous, DieCutLabels:
		s.MediaType = t
	default:
		return s, &DecodeError{Field: "media type", Offset: offsetMediaType, Value: b[offsetMediaType]}
	}

	switch t := StatusType(b[offsetStatusType]); t {
	case ReplyToStatusRequest, PrintingCompleted, ErrorOccurred, Notification, PhaseChange:
		s.StatusType = t
	default:
		return s, &DecodeError{Field: "status type", Offset: offsetStatusType, Value: b[offsetStatusType]}
	}

	switch p := PhaseState(b[offsetPhaseState]); p {
	case Waiting, Printing:
		s.PhaseState = p
	default:
		return s, &DecodeError{Field: "phase state", Offset: offsetPhaseState, Value: b[offsetPhaseState]}
	}

	s.MediaWidth = b[offsetMediaWidth]
	s.MediaLength = b[offsetMediaLength]
	s.Errors1 = errorInfo1FromBits(b[offsetErrorInfo1])
	s.Errors2 = errorInfo2FromBits(b[offsetErrorInfo2])
	return s, nil
}

// Bytes encodes the status as the printer would send it, with reserved
// offsets zeroed.
func (s Status) Bytes() []byte {
	b := make([]byte, StatusLength)
	b[0], b[1] = statusHeader0, statusHeader1
	b[offsetErrorInfo1] = s.Errors1.bits()
	b[offsetErrorInfo2] = s.Errors2.bits()
	b[offsetMediaWidth] = s.MediaWidth
	b[offsetMediaType] = byte(s.MediaType)
	b[offsetMediaLength] = s.MediaLength
	b[offsetStatusType] = byte(s.StatusType)
	b[offsetPhaseState] = byte(s.PhaseState)
	return b
}

func (s Status) HasError() bool {
	return s.Errors1.Any() || s.Errors2.Any()
}

// ErrorNames lists every error flag set in either error byte.
func (s Status) ErrorNames() []string {
	return append(s.Errors1.Names(), s.Errors2.Names()...)
}

// PixelWidth looks up the printable width of the loaded media.
func (s Status) PixelWidth() (uint16, bool) {
	return PixelWidth(s.MediaWidth, s.MediaLength)
}

func (s Status) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("mediaWidth", int(s.MediaWidth)),
		slog.Int("mediaLength", int(s.MediaLength)),
		slog.String("mediaType", s.MediaType.String()),
		slog.String("statusType", s.StatusType.String()),
		slog.String("phase", s.PhaseState.String()),
	}
	if s.HasError() {
		attrs = append(attrs, slog.Any("errors", s.ErrorNames()))
	}
	return slog.GroupValue(attrs...)
}
