// Package server exposes the enhancement pipeline over HTTP: job
// submission, status, cancellation and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"docenhance/internal/document"
	"docenhance/internal/job"
	"docenhance/internal/logger"
)

// Server is the HTTP front of the orchestrator.
type Server struct {
	orch *job.Orchestrator
	log  zerolog.Logger
	http *http.Server
}

// New builds the server listening on addr.
func New(addr string, orch *job.Orchestrator) *Server {
	s := &Server{
		orch: orch,
		log:  logger.WithComponent("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", s.handleSubmit)
	mux.HandleFunc("GET /jobs", s.handleList)
	mux.HandleFunc("GET /jobs/{key...}", s.handleGet)
	mux.HandleFunc("DELETE /jobs/{key...}", s.handleCancel)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("HTTP server listening")
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

type submitRequest struct {
	// Location identifies the document; it is the job key.
	Location string `json:"location"`

	// ContentID, when set, allows a cached completed result to be served
	// without reprocessing.
	ContentID string `json:"content_id,omitempty"`

	// Wait makes the request block until the job reaches a terminal state.
	Wait bool `json:"wait,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Location == "" {
		s.writeError(w, http.StatusBadRequest, "location is required")
		return
	}

	ref := document.Reference{Location: req.Location, ContentID: req.ContentID}
	var (
		rec *job.Record
		err error
	)
	if req.Wait {
		rec, err = s.orch.Start(r.Context(), ref)
	} else {
		rec, err = s.orch.Enqueue(r.Context(), ref)
	}
	if err != nil && rec == nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusAccepted
	if rec.State.Terminal() {
		status = http.StatusOK
	}
	s.writeJSON(w, status, rec)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	rec, err := s.orch.Get(r.Context(), document.Reference{Location: key})
	if errors.Is(err, job.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "no job for document")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.orch.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []*job.Record{}
	}
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	rec, err := s.orch.Cancel(r.Context(), document.Reference{Location: key})
	if errors.Is(err, job.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "no job for document")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
