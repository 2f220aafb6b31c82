package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"tomgalvin.uk/qlprint/internal/config"
	"tomgalvin.uk/qlprint/internal/job"
	"tomgalvin.uk/qlprint/internal/journal"
	"tomgalvin.uk/qlprint/internal/label"
	"tomgalvin.uk/qlprint/internal/server"
)

const usage = `Usage: qlprint [flags] COMMAND

Commands:
  print FILE   print an image file ("-" reads standard input)
  text TEXT    print a text label
  status       show the loaded media and any printer errors
  serve        run the HTTP server

Flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.Error("qlprint failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("qlprint", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("No command given")
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	switch cmd {
	case "print", "text", "status", "serve":
	default:
		fs.Usage()
		return fmt.Errorf("Unknown command %q", cmd)
	}

	runner, closeJournal, err := newRunner(cfg, logger)
	if err != nil {
		return err
	}
	defer closeJournal()

	switch cmd {
	case "print":
		if len(rest) != 1 {
			return errors.New("print takes exactly one FILE")
		}
		return printFile(runner, rest[0], stdout)
	case "text":
		if len(rest) == 0 {
			return errors.New("text needs the label text")
		}
		res, err := runner.PrintText(strings.Join(rest, " "), 0)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Printed job %s: %d lines at %d dots\n", res.Job.Uuid, res.Job.Lines, res.Width)
		return nil
	case "status":
		return printStatus(runner, stdout)
	default:
		return serve(cfg, runner, logger)
	}
}

func newRunner(cfg *config.Config, logger *slog.Logger) (*job.Runner, func(), error) {
	lo := label.DefaultOptions()
	lo.FontSize = cfg.Print.FontSize
	jc := job.Config{
		Render: cfg.RenderOptions(),
		Print:  cfg.PrintOptions(),
		Label:  lo,
		Keep:   cfg.JournalKeep,
		Logger: logger,
	}

	closer := func() {}
	if cfg.JournalPath != "" {
		repo, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, nil, err
		}
		jc.Journal = repo
		closer = func() {
			if err := repo.Close(); err != nil {
				logger.Warn("Couldn't close journal", "error", err)
			}
		}
	}
	return job.NewRunner(cfg.Opener(logger), jc), closer, nil
}

func printFile(runner *job.Runner, path string, stdout io.Writer) error {
	var in io.Reader = os.Stdin
	source := "stdin"
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("Couldn't open image:\n%w", err)
		}
		defer f.Close()
		in = f
		source = path
	}

	res, err := runner.PrintReader(in, source)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Printed job %s: %d lines at %d dots\n", res.Job.Uuid, res.Job.Lines, res.Width)
	return nil
}

func printStatus(runner *job.Runner, stdout io.Writer) error {
	st, err := runner.Status()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Media: %dmm x %dmm %s\n", st.MediaWidth, st.MediaLength, st.MediaType)
	if dots, ok := st.PixelWidth(); ok {
		fmt.Fprintf(stdout, "Printable width: %d dots\n", dots)
	} else {
		fmt.Fprintln(stdout, "Printable width: unknown media")
	}
	fmt.Fprintf(stdout, "Phase: %s\n", st.PhaseState)
	if st.HasError() {
		fmt.Fprintf(stdout, "Errors: %s\n", strings.Join(st.ErrorNames(), ", "))
	}
	return nil
}

func serve(cfg *config.Config, runner *job.Runner, logger *slog.Logger) error {
	si := server.NewServer(logger.With("src", "server"), runner)
	mux := http.NewServeMux()
	mux.Handle("/api/", si.Handler())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := http.Server{Addr: cfg.ServerAddress, Handler: mux}
	errs := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", cfg.ServerAddress)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("Error starting server:\n%w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
