package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tomgalvin.uk/qlprint/internal/job"
	"tomgalvin.uk/qlprint/internal/journal"
	"tomgalvin.uk/qlprint/internal/label"
	"tomgalvin.uk/qlprint/internal/printer"
	"tomgalvin.uk/qlprint/internal/printer/printertest"
	"tomgalvin.uk/qlprint/internal/render"
)

type testPrinter struct {
	status   printer.Status
	openErr  error
	// scripted replies for every channel opened
	replies  [][]byte
	channels []*printertest.Channel
}

func (p *testPrinter) open() (printer.Channel, error) {
	if p.openErr != nil {
		return nil, p.openErr
	}
	ch := printertest.New(p.status)
	ch.Replies = append([][]byte(nil), p.replies...)
	p.channels = append(p.channels, ch)
	return ch, nil
}

func newTestServer(t *testing.T, p *testPrinter) *httptest.Server {
	t.Helper()
	repo, err := journal.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ro := render.DefaultOptions()
	ro.Dithering = false
	runner := job.NewRunner(p.open, job.Config{
		Render:  ro,
		Label:   label.DefaultOptions(),
		Journal: repo,
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(NewServer(logger, runner).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func pngBody(t *testing.T, width, height int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, width, height))))
	return &buf
}

func decodeBody(t *testing.T, res *http.Response, v any) {
	t.Helper()
	defer res.Body.Close()
	require.NoError(t, json.NewDecoder(res.Body).Decode(v))
}

func TestPrintImage(t *testing.T) {
	p := &testPrinter{status: printertest.Continuous62()}
	ts := newTestServer(t, p)

	res, err := http.Post(ts.URL+"/api/print?name=badge.png", "image/png", pngBody(t, 720, 40))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

	var body job.Result
	decodeBody(t, res, &body)
	assert.Equal(t, 720, body.Width)
	assert.Equal(t, 40, body.Job.Lines)
	assert.Equal(t, "badge.png", body.Job.Source)
	assert.Equal(t, journal.Printed, body.Job.Outcome)

	require.Len(t, p.channels, 1)
	assert.Len(t, p.channels[0].RasterLines(), 40)
}

func TestPrintRejectsGarbage(t *testing.T) {
	ts := newTestServer(t, &testPrinter{status: printertest.Continuous62()})

	res, err := http.Post(ts.URL+"/api/print", "application/octet-stream", strings.NewReader("not a picture"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	var body errorResponse
	decodeBody(t, res, &body)
	assert.Contains(t, body.Error, "invalid image")
}

func TestPrintRejectsTallImage(t *testing.T) {
	p := &testPrinter{status: printertest.Continuous62()}
	ts := newTestServer(t, p)

	res, err := http.Post(ts.URL+"/api/print", "image/png", pngBody(t, 10, 40))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Empty(t, p.channels)
}

func TestPrintRejectsTallImageWhileOffline(t *testing.T) {
	ts := newTestServer(t, &testPrinter{openErr: io.ErrUnexpectedEOF})

	res, err := http.Post(ts.URL+"/api/print", "image/png", pngBody(t, 10, 40))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, err = http.Post(ts.URL+"/api/print/text", "application/json", strings.NewReader(`{"text": " "}`))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestPrintPrinterUnavailable(t *testing.T) {
	p := &testPrinter{openErr: io.ErrUnexpectedEOF}
	ts := newTestServer(t, p)

	res, err := http.Post(ts.URL+"/api/print", "image/png", pngBody(t, 10, 10))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestPrintMalformedStatus(t *testing.T) {
	bad := printertest.Continuous62().Bytes()
	bad[1] = 0x00
	p := &testPrinter{status: printertest.Continuous62(), replies: [][]byte{bad}}
	ts := newTestServer(t, p)

	res, err := http.Post(ts.URL+"/api/print", "image/png", pngBody(t, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)

	var body errorResponse
	decodeBody(t, res, &body)
	assert.Contains(t, body.Error, "malformed status")
}

func TestPrintText(t *testing.T) {
	p := &testPrinter{status: printertest.DieCut29x90()}
	ts := newTestServer(t, p)

	res, err := http.Post(ts.URL+"/api/print/text", "application/json",
		strings.NewReader(`{"text": "Hello", "fontSize": 24}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var body job.Result
	decodeBody(t, res, &body)
	assert.Equal(t, 336, body.Width)
	assert.Equal(t, "text", body.Job.Source)
	assert.NotEmpty(t, p.channels[0].RasterLines())
}

func TestPrintTextBadRequests(t *testing.T) {
	ts := newTestServer(t, &testPrinter{status: printertest.Continuous62()})

	for _, payload := range []string{`{"text": ""}`, `{"text": "x", "fontSize": -1}`, `not json`} {
		res, err := http.Post(ts.URL+"/api/print/text", "application/json", strings.NewReader(payload))
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusBadRequest, res.StatusCode, payload)
	}
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t, &testPrinter{status: printertest.DieCut29x90()})

	res, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var body statusResponse
	decodeBody(t, res, &body)
	assert.Equal(t, uint8(29), body.MediaWidth)
	assert.Equal(t, uint8(90), body.MediaLength)
	assert.Equal(t, "DieCutLabels", body.MediaType)
	require.NotNil(t, body.PrintableDots)
	assert.Equal(t, uint16(336), *body.PrintableDots)
	assert.Empty(t, body.Errors)
}

func TestStatusReportsErrors(t *testing.T) {
	st := printertest.Continuous62()
	st.Errors1.EndOfMedia = true
	st.MediaWidth = 99
	ts := newTestServer(t, &testPrinter{status: st})

	res, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)

	var body statusResponse
	decodeBody(t, res, &body)
	assert.Nil(t, body.PrintableDots)
	assert.NotEmpty(t, body.Errors)
}

func TestJobs(t *testing.T) {
	ts := newTestServer(t, &testPrinter{status: printertest.Continuous62()})

	for range 3 {
		res, err := http.Post(ts.URL+"/api/print", "image/png", pngBody(t, 72, 1))
		require.NoError(t, err)
		res.Body.Close()
	}

	res, err := http.Get(ts.URL + "/api/jobs?limit=2")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var jobs []journal.Job
	decodeBody(t, res, &jobs)
	assert.Len(t, jobs, 2)

	res, err = http.Get(ts.URL + "/api/jobs?limit=abc")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &testPrinter{status: printertest.Continuous62()})

	res, err := http.Get(ts.URL + "/api/print")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}
