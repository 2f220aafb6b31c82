// Package job runs print jobs one at a time against a single printer.
package job

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tomgalvin.uk/qlprint/internal/journal"
	"tomgalvin.uk/qlprint/internal/label"
	"tomgalvin.uk/qlprint/internal/printer"
	"tomgalvin.uk/qlprint/internal/render"
)

// Opener opens a fresh channel to the printer for each job.
type Opener func() (printer.Channel, error)

type Config struct {
	Render render.Options
	Print  printer.PrintOptions
	Label  label.Options
	// Optional; jobs aren't recorded when nil
	Journal *journal.Repository
	// Jobs kept in the journal, zero keeps all of them
	Keep   int
	Logger *slog.Logger
}

type Runner struct {
	mu     sync.Mutex
	open   Opener
	cfg    Config
	logger *slog.Logger
}

type Result struct {
	Job    journal.Job    `json:"job"`
	Status printer.Status `json:"-"`
	Width  int            `json:"width"`
}

func NewRunner(open Opener, cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{open: open, cfg: cfg, logger: logger}
}

// Status opens the printer, resets it and reports what is loaded.
func (r *Runner) Status() (printer.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.session()
	if err != nil {
		return printer.Status{}, err
	}
	defer s.Close()
	return s.Handshake()
}

// PrintReader decodes an image from rd and prints it.
func (r *Runner) PrintReader(rd io.Reader, source string) (*Result, error) {
	img, format, err := render.Decode(rd)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Decoded image", "source", source, "format", format, "bounds", img.Bounds())
	return r.PrintImage(img, source)
}

// PrintImage scales img to the loaded media and prints it.
func (r *Runner) PrintImage(img image.Image, source string) (*Result, error) {
	check := func() error {
		return render.CheckAspect(img, r.cfg.Render.MaxAspect)
	}
	return r.run(source, check, func(int) (image.Image, error) {
		return img, nil
	})
}

// PrintText lays text out across the loaded media and prints it. A fontSize
// of zero uses the configured size.
func (r *Runner) PrintText(text string, fontSize int) (*Result, error) {
	opts := r.cfg.Label
	if fontSize > 0 {
		opts.FontSize = fontSize
	}
	check := func() error {
		return label.Validate(text, opts)
	}
	return r.run("text", check, func(width int) (image.Image, error) {
		return label.Render(text, width, opts)
	})
}

// Jobs lists the newest jobs in the journal.
func (r *Runner) Jobs(limit int) ([]journal.Job, error) {
	if r.cfg.Journal == nil {
		return []journal.Job{}, nil
	}
	return r.cfg.Journal.List(limit)
}

func (r *Runner) session() (*printer.Session, error) {
	ch, err := r.open()
	if err != nil {
		return nil, fmt.Errorf("Couldn't open printer:\n%w", err)
	}
	return printer.NewSession(ch, r.logger), nil
}

// run records and prints one job. check rejects bad input before the printer
// is opened, draw produces the picture once the media width is known.
func (r *Runner) run(source string, check func() error, draw func(width int) (image.Image, error)) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j := r.begin(source)
	res := &Result{}
	err := check()
	if err == nil {
		err = r.print(res, j, draw)
	}
	if err != nil {
		j.Outcome = journal.Failed
		j.Error = err.Error()
		r.logger.Error("Print job failed", "job", j.Uuid, "source", source, "error", err)
	} else {
		j.Outcome = journal.Printed
		r.logger.Info("Printed job", "job", j.Uuid, "source", source, "lines", j.Lines, "width", res.Width)
	}
	r.finish(j)

	res.Job = *j
	return res, err
}

func (r *Runner) print(res *Result, j *journal.Job, draw func(width int) (image.Image, error)) error {
	s, err := r.session()
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			r.logger.Warn("Couldn't close printer", "error", err)
		}
	}()

	status, err := s.Handshake()
	if err != nil {
		return err
	}
	res.Status = status
	j.MediaWidth = int(status.MediaWidth)
	j.MediaLength = int(status.MediaLength)
	j.MediaType = status.MediaType.String()

	dots, known := status.PixelWidth()
	if !known {
		r.logger.Warn("Unknown media, using the full print head",
			"width", status.MediaWidth, "length", status.MediaLength)
	}
	res.Width = render.TargetWidth(dots, known)

	img, err := draw(res.Width)
	if err != nil {
		return err
	}
	doc, err := render.Render(img, res.Width, r.cfg.Render)
	if err != nil {
		return err
	}
	j.Lines = len(doc)

	if _, err := s.Print(doc, r.cfg.Print); err != nil {
		return err
	}
	return nil
}

func (r *Runner) begin(source string) *journal.Job {
	if r.cfg.Journal != nil {
		j, err := r.cfg.Journal.Create(source)
		if err == nil {
			return j
		}
		r.logger.Warn("Couldn't record print job", "error", err)
	}
	return &journal.Job{
		Uuid:      uuid.New(),
		CreatedAt: time.Now().UTC(),
		Source:    source,
		Outcome:   journal.Pending,
	}
}

func (r *Runner) finish(j *journal.Job) {
	if r.cfg.Journal == nil {
		return
	}
	if err := r.cfg.Journal.Finish(j); err != nil {
		r.logger.Warn("Couldn't record print job", "job", j.Uuid, "error", err)
		return
	}
	if r.cfg.Keep > 0 {
		if _, err := r.cfg.Journal.Prune(r.cfg.Keep); err != nil {
			r.logger.Warn("Couldn't prune journal", "error", err)
		}
	}
}
