package printer

import (
	"errors"
	"fmt"

	"tomgalvin.uk/qlprint/internal/bitmap"
)

// The printer sends this many status notifications once a page is printed.
const postPrintStatusCount = 3

var ErrEmptyDocument = errors.New("Document has no raster lines")

type PrintOptions struct {
	// Cut after each label
	AutoCut bool
	// 600 dpi in the feed direction; the document must have twice the lines
	HighResolution bool
}

// Print runs the full raster job: reset, initialise, query the media, set up
// raster mode and stream every line, then print and drain the printer's
// notifications. Any failure stops the sequence where it is, after which the
// printer needs a fresh reset before the next job. The status that the job
// was set up with is returned.
func (s *Session) Print(doc bitmap.Document, opts PrintOptions) (Status, error) {
	if len(doc) == 0 {
		return Status{}, ErrEmptyDocument
	}

	status, err := s.Handshake()
	if err != nil {
		return Status{}, err
	}
	s.logStatus("Printer status before printing", status)

	if err := s.Send(
		SetCommandMode{Mode: Raster},
		SetPrintInformation{Status: status, LineCount: int32(len(doc))},
		SetExpandedMode{CutAtEnd: opts.AutoCut, HighResolution: opts.HighResolution},
		SetMode{AutoCut: opts.AutoCut},
		// needed for the auto cut
		SetPageNumber{N: 1},
		SetMarginAmount{Dots: 0},
	); err != nil {
		return status, err
	}

	s.logger.Debug("Printing lines", "count", len(doc))
	for i, line := range doc {
		if err := s.Send(RasterGraphicsTransfer{Line: line}); err != nil {
			return status, fmt.Errorf("Failed at raster line %d of %d:\n%w", i+1, len(doc), err)
		}
	}

	if err := s.Send(PrintWithFeeding{}); err != nil {
		return status, err
	}

	for range postPrintStatusCount {
		st, err := s.ReadStatus()
		if err != nil {
			return status, err
		}
		s.logStatus("Printer status after printing", st)
	}

	return status, nil
}

func (s *Session) logStatus(msg string, st Status) {
	if st.HasError() {
		s.logger.Warn(msg, "status", st)
	} else {
		s.logger.Debug(msg, "status", st)
	}
}
