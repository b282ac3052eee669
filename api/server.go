// Package api exposes persisted analysis runs over HTTP as JSON.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/basin-data/erosion.report/internal/httputil"
	"github.com/basin-data/erosion.report/internal/store"
	"github.com/basin-data/erosion.report/internal/version"
)

type Server struct {
	runs   *store.RunStore
	server *http.Server
}

// NewServer builds the HTTP server serving the run archive on addr.
func NewServer(addr string, db *store.DB) *Server {
	s := &Server{runs: store.NewRunStore(db)}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.ServeMux(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// ServeMux returns the route table; exported so tests can drive handlers
// without a listener.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRun)
	return mux
}

// Start runs the server until ctx is cancelled, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		log.Printf("starting HTTP server on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{"status": "ok", "version": version.Version})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	runs, err := s.runs.ListRuns()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

// handleRun serves /api/runs/<id> and its /stats, /findings and
// /summaries subresources.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	runID, sub, _ := strings.Cut(rest, "/")
	if runID == "" {
		httputil.BadRequest(w, "missing run id")
		return
	}

	switch r.Method {
	case http.MethodGet:
	case http.MethodDelete:
		if sub != "" {
			httputil.MethodNotAllowed(w)
			return
		}
		if err := s.runs.DeleteRun(runID); err != nil {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, map[string]string{"deleted": runID})
		return
	default:
		httputil.MethodNotAllowed(w)
		return
	}

	switch sub {
	case "":
		run, err := s.runs.GetRun(runID)
		if err != nil {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, run)
	case "stats":
		stats, err := s.runs.YearStatsForRun(runID)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		if stats == nil {
			stats = []*store.YearStats{}
		}
		httputil.WriteJSONOK(w, stats)
	case "findings":
		findings, err := s.runs.FindingsForRun(runID)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, findings)
	case "summaries":
		sum, err := s.runs.SummariesForRun(runID)
		if err != nil {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, sum)
	default:
		httputil.NotFound(w, fmt.Sprintf("unknown subresource %q", sub))
	}
}
