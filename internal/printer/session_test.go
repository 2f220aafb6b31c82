package printer_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tomgalvin.uk/qlprint/internal/bitmap"
	"tomgalvin.uk/qlprint/internal/printer"
	"tomgalvin.uk/qlprint/internal/printer/printertest"
)

func TestRequestStatus(t *testing.T) {
	ch := printertest.New(printertest.DieCut29x90())
	s := printer.NewSession(ch, nil)

	status, err := s.RequestStatus()
	require.NoError(t, err)
	assert.Equal(t, printertest.DieCut29x90(), status)
	assert.Equal(t, [][]byte{{0x1B, 0x69, 0x53}}, ch.Written())
}

func TestReadStatusMalformed(t *testing.T) {
	ch := printertest.New(printertest.Continuous62())
	bad := printertest.Continuous62().Bytes()
	bad[0] = 0x81
	ch.Replies = [][]byte{bad}

	_, err := printer.NewSession(ch, nil).ReadStatus()
	var decodeErr *printer.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestReadStatusIOError(t *testing.T) {
	ch := printertest.New(printertest.Continuous62())
	ch.ReadErr = errors.New("timed out")

	_, err := printer.NewSession(ch, nil).ReadStatus()
	assert.ErrorIs(t, err, ch.ReadErr)
}

func TestHandshake(t *testing.T) {
	ch := printertest.New(printertest.Continuous62())
	status, err := printer.NewSession(ch, nil).Handshake()
	require.NoError(t, err)
	assert.Equal(t, uint8(62), status.MediaWidth)

	w := ch.Written()
	require.Len(t, w, 3)
	assert.Equal(t, make([]byte, 200), w[0])
	assert.Equal(t, []byte{0x1B, 0x40}, w[1])
	assert.Equal(t, []byte{0x1B, 0x69, 0x53}, w[2])
}

func solidDocument(lines int, value byte) bitmap.Document {
	doc := make(bitmap.Document, lines)
	for i := range doc {
		for j := range doc[i] {
			doc[i][j] = value
		}
	}
	return doc
}

func TestPrintSequence(t *testing.T) {
	ch := printertest.New(printertest.Continuous62())
	doc := solidDocument(3, 0xFF)

	status, err := printer.NewSession(ch, nil).Print(doc, printer.PrintOptions{AutoCut: true})
	require.NoError(t, err)
	assert.Equal(t, printertest.Continuous62(), status)

	line := append([]byte{0x67, 0x00, 0x5A}, bytes.Repeat([]byte{0xFF}, 90)...)
	want := [][]byte{
		make([]byte, 200),
		{0x1B, 0x40},
		{0x1B, 0x69, 0x53},
		{0x1B, 0x69, 0x61, 0x01},
		{0x1B, 0x69, 0x7A, 0xCE, 0x0A, 62, 0, 3, 0, 0, 0, 0x01, 0x00},
		{0x1B, 0x69, 0x4B, 0x10},
		{0x1B, 0x69, 0x4D, 0x40},
		{0x1B, 0x69, 0x41, 0x01},
		{0x1B, 0x69, 0x64, 0x00, 0x00},
		line, line, line,
		{0x1A},
	}
	assert.Equal(t, want, ch.Written())
	// one status after the request, three after printing
	assert.Equal(t, 4, ch.Reads())
}

func TestPrintHighResolution(t *testing.T) {
	ch := printertest.New(printertest.Continuous62())

	_, err := printer.NewSession(ch, nil).Print(solidDocument(2, 0), printer.PrintOptions{HighResolution: true})
	require.NoError(t, err)

	w := ch.Written()
	assert.Equal(t, []byte{0x1B, 0x69, 0x4B, 0x40}, w[5])
	assert.Equal(t, []byte{0x1B, 0x69, 0x4D, 0x00}, w[6])
}

func TestPrintEmptyDocument(t *testing.T) {
	ch := printertest.New(printertest.Continuous62())

	_, err := printer.NewSession(ch, nil).Print(nil, printer.PrintOptions{})
	assert.ErrorIs(t, err, printer.ErrEmptyDocument)
	assert.Empty(t, ch.Written())
}

func TestPrintAbortsOnWriteFailure(t *testing.T) {
	ch := printertest.New(printertest.Continuous62())
	// fail on the second raster line
	ch.FailWrite = 11
	ch.WriteErr = errors.New("device unplugged")

	_, err := printer.NewSession(ch, nil).Print(solidDocument(5, 0x0F), printer.PrintOptions{})
	require.ErrorIs(t, err, ch.WriteErr)

	// nothing after the failed write is sent
	assert.Len(t, ch.RasterLines(), 1)
	assert.Len(t, ch.Written(), 10)
	assert.Equal(t, 1, ch.Reads())
}

func TestPrintAbortsOnMalformedStatus(t *testing.T) {
	ch := printertest.New(printertest.Continuous62())
	bad := printertest.Continuous62().Bytes()
	bad[11] = 0x42
	ch.Replies = [][]byte{bad}

	_, err := printer.NewSession(ch, nil).Print(solidDocument(1, 0), printer.PrintOptions{})
	var decodeErr *printer.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "media type", decodeErr.Field)
	assert.Len(t, ch.Written(), 3)
}

func TestPrintFailsWhenNotificationsMissing(t *testing.T) {
	// the printer answers the status request and one notification, then
	// goes quiet
	ch := &failingAfter{Channel: printertest.New(printertest.Continuous62()), okReads: 2}

	_, err := printer.NewSession(ch, nil).Print(solidDocument(1, 0), printer.PrintOptions{})
	assert.ErrorIs(t, err, errQuiet)
}

var errQuiet = errors.New("no reply")

type failingAfter struct {
	*printertest.Channel
	okReads int
}

func (f *failingAfter) Read(n int) ([]byte, error) {
	if f.okReads == 0 {
		return nil, errQuiet
	}
	f.okReads--
	return f.Channel.Read(n)
}

func TestSetBaudRate(t *testing.T) {
	ch := printertest.New(printertest.Continuous62())
	s := printer.NewSession(ch, nil)

	require.NoError(t, s.SetBaudRate(115200))
	assert.Equal(t, [][]byte{{0x1B, 0x69, 0x42, 0x80, 0x04}}, ch.Written())
	assert.Equal(t, 115200, ch.Baud)

	assert.Error(t, s.SetBaudRate(50))
}

func TestCloseClosesChannel(t *testing.T) {
	ch := printertest.New(printertest.Continuous62())
	require.NoError(t, printer.NewSession(ch, nil).Close())
	assert.True(t, ch.Closed)
}
