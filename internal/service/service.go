// Package service wraps a detection Run behind a small HTTP API: POST
// /runs starts a run, GET /runs/{id}/progress streams Server-Sent
// Events, GET /runs/{id}/groups returns the resulting group tree as
// gzip-compressed JSON. This is pure JSON/SSE transport with no
// rendering, so a caller can drive a run remotely instead of embedding
// this module directly.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/mzmodel"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/params"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/peakgroup"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/progress"
)

// Runner executes one detection run to completion, reporting progress
// on prog and returning the final group container. The service package
// depends only on this function type so it has no import-cycle onto
// detector/slicegen/identifier/metagroup - the caller wires those up.
type Runner func(ctx context.Context, p *params.Parameters, compounds []*mzmodel.Compound, prog progress.Sink) ([]*peakgroup.Group, error)

// Run is the service's bookkeeping for one in-flight or completed
// detection run.
type Run struct {
	ID     string
	Status string // "running", "done", "error"
	Err    error
	Groups []*peakgroup.Group

	progress *progress.Chan
	cancel   context.CancelFunc
}

// Server holds the run registry and the Runner used to execute new runs.
type Server struct {
	runner Runner

	mu   sync.Mutex
	runs map[string]*Run
}

// New builds a Server around runner.
func New(runner Runner) *Server {
	return &Server{runner: runner, runs: map[string]*Run{}}
}

// Routes returns the configured chi.Router for this service.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	r.Post("/runs", s.startRun)
	r.Get("/runs/{id}/progress", s.streamProgress)
	r.Get("/runs/{id}/groups", s.getGroups)
	return r
}

type startRunRequest struct {
	Parameters *params.Parameters  `json:"parameters"`
	Compounds  []*mzmodel.Compound `json:"compounds"`
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	req := startRunRequest{Parameters: params.Default()}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p := req.Parameters
	if p == nil {
		p = params.Default()
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	run := &Run{ID: id, Status: "running", progress: progress.NewChan(64), cancel: cancel}

	s.mu.Lock()
	s.runs[id] = run
	s.mu.Unlock()

	go func() {
		groups, err := s.runner(ctx, p, req.Compounds, run.progress)
		s.mu.Lock()
		defer s.mu.Unlock()
		run.Groups = groups
		if err != nil {
			run.Status = "error"
			run.Err = err
		} else {
			run.Status = "done"
		}
		close(run.progress.C)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (s *Server) lookup(r *http.Request) (*Run, bool) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	return run, ok
}

func (s *Server) streamProgress(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		select {
		case ev, open := <-run.progress.C:
			if !open {
				fmt.Fprintf(w, "event: done\ndata: %s\n\n", run.Status)
				flusher.Flush()
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", ev.String())
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) getGroups(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if run.Status == "running" {
		http.Error(w, "run still in progress", http.StatusConflict)
		return
	}
	if run.Status == "error" {
		http.Error(w, run.Err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Encoding", "gzip")
	gz := gzip.NewWriter(w)
	defer gz.Close()

	enc := json.NewEncoder(gz)
	enc.SetIndent("", "  ")
	_ = enc.Encode(run.Groups)
}
