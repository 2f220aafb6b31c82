// Package server exposes the job runner over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"tomgalvin.uk/qlprint/internal/bitmap"
	"tomgalvin.uk/qlprint/internal/job"
	"tomgalvin.uk/qlprint/internal/label"
	"tomgalvin.uk/qlprint/internal/printer"
	"tomgalvin.uk/qlprint/internal/render"
)

// Uploads larger than this are refused.
const MaxUploadSize = 32 << 20

const defaultJobLimit = 50

type Server struct {
	logger *slog.Logger
	runner *job.Runner
}

func NewServer(logger *slog.Logger, runner *job.Runner) *Server {
	return &Server{logger: logger, runner: runner}
}

// Handler routes every endpoint under /api.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/print", s.handlePrint)
	mux.HandleFunc("POST /api/print/text", s.handlePrintText)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/jobs", s.handleJobs)
	return mux
}

type textRequest struct {
	Text     string `json:"text"`
	FontSize int    `json:"fontSize"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, MaxUploadSize)
	defer body.Close()

	source := r.URL.Query().Get("name")
	if source == "" {
		source = "upload"
	}
	s.logger.Info("Received print request", "source", source, "length", r.ContentLength)

	res, err := s.runner.PrintReader(body, source)
	s.writeResult(w, res, err)
}

func (s *Server) handlePrintText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxUploadSize))
	if err := dec.Decode(&req); err != nil {
		code := http.StatusBadRequest
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			code = http.StatusRequestEntityTooLarge
		}
		s.writeError(w, code, fmt.Errorf("Couldn't parse request: %w", err))
		return
	}
	if req.FontSize < 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("Font size must not be negative"))
		return
	}

	res, err := s.runner.PrintText(req.Text, req.FontSize)
	s.writeResult(w, res, err)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.runner.Status()
	if err != nil {
		s.writeError(w, statusCodeFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, mapStatus(st))
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultJobLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("Invalid limit %q", v))
			return
		}
		limit = n
	}

	jobs, err := s.runner.Jobs(limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) writeResult(w http.ResponseWriter, res *job.Result, err error) {
	if err != nil {
		s.writeError(w, statusCodeFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// statusCodeFor tells bad input apart from a printer that can't be reached
// or misbehaved.
func statusCodeFor(err error) int {
	var maxBytes *http.MaxBytesError
	var decodeErr *printer.DecodeError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, render.ErrInvalidImage),
		errors.Is(err, label.ErrEmptyText),
		errors.Is(err, bitmap.ErrTooWide):
		return http.StatusBadRequest
	case errors.As(err, &decodeErr):
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	if code >= 500 {
		s.logger.Error("Request failed", "status", code, "error", err)
	} else {
		s.logger.Info("Rejected request", "status", code, "error", err)
	}
	s.writeJSON(w, code, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Couldn't write response", "error", err)
	}
}
