// Package server exposes the operator status surface over HTTP: the
// Application list, detail, and history endpoints, the manual sync
// trigger, a liveness probe, and the Prometheus scrape endpoint.
//
// The server is read-only except for the trigger endpoint, and it holds
// no state of its own: every request resolves the engine through the
// api handler registry.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"capstan/internal/api"
	"capstan/internal/config"
	"capstan/pkg/logging"
)

// readHeaderTimeout bounds header reads so idle connections cannot pin
// a handler goroutine.
const readHeaderTimeout = 10 * time.Second

// Server is the status API endpoint.
type Server struct {
	cfg      config.ServerConfig
	gatherer prometheus.Gatherer

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// New builds the status server. gatherer feeds /metrics; nil leaves the
// endpoint unregistered.
func New(cfg config.ServerConfig, gatherer prometheus.Gatherer) *Server {
	return &Server{cfg: cfg, gatherer: gatherer}
}

// Start binds the listen address and begins serving in the background.
// Binding happens synchronously so a port collision fails the startup
// instead of a goroutine.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("failed to bind status API on %s: %w", s.cfg.Address(), err)
	}

	httpServer := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = httpServer
	s.mu.Unlock()

	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server", err, "Status API stopped unexpectedly")
		}
	}()

	logging.Info("Server", "Status API listening on %s", listener.Addr())
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// up to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()

	if httpServer == nil {
		return nil
	}
	return httpServer.Shutdown(ctx)
}

// Addr returns the bound address. Before Start it is the configured
// one, afterwards the actual one (which differs when port 0 was asked).
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.cfg.Address()
	}
	return s.listener.Addr().String()
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/v1/applications", s.handleList)
	mux.HandleFunc("GET /api/v1/applications/{name}", s.handleGet)
	mux.HandleFunc("GET /api/v1/applications/{name}/history", s.handleHistory)
	mux.HandleFunc("POST /api/v1/applications/{name}/sync", s.handleSync)

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	h, err := api.GetStatusHandler()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ListApplications())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	h, err := api.GetStatusHandler()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	detail, err := h.GetApplication(r.PathValue("name"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	h, err := api.GetStatusHandler()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	history, err := h.GetHistory(r.PathValue("name"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// handleSync accepts a manual trigger. The body is an optional
// api.SyncRequest; an empty body means "sync the configured target".
// 202 is the only success answer: the trigger is queued, never awaited.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	h, err := api.GetTriggerHandler()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	var req api.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid sync request: %w", err))
		return
	}

	name := r.PathValue("name")
	if err := h.TriggerSync(name, req); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":      "queued",
		"application": name,
	})
}

// statusFor maps handler errors onto HTTP codes.
func statusFor(err error) int {
	if api.IsNotFound(err) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Server", err, "Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
