package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aerolink-io/aerolink/internal/agent/command"
	"github.com/aerolink-io/aerolink/internal/agent/telemetry"
	"github.com/aerolink-io/aerolink/internal/pkg/metrics"
	"github.com/aerolink-io/aerolink/pkg/log"
	"github.com/aerolink-io/aerolink/pkg/options"
)

// SequenceExecutor is the slice of the executor the server needs.
type SequenceExecutor interface {
	ExecuteSequence(ctx context.Context, commands []command.Command) command.SequenceResult
}

// StateProvider is the slice of the connection manager the server needs.
type StateProvider interface {
	Telemetry() telemetry.State
	Connected() bool
}

// batchRequest mirrors the MQTT command envelope for local submissions.
type batchRequest struct {
	Commands  []command.Command `json:"commands"`
	QueueMode string            `json:"queue_mode,omitempty"`
}

type healthResponse struct {
	Status    string `json:"status"`
	DroneID   string `json:"drone_id"`
	Connected bool   `json:"connected"`
	Timestamp int64  `json:"timestamp"`
}

// Server exposes the local HTTP surface: command submission, telemetry
// snapshots, health, and Prometheus metrics.
type Server struct {
	droneID  string
	executor SequenceExecutor
	conn     StateProvider

	network string
	srv     *http.Server
}

// New builds the server and its routes.
func New(opts *options.HttpOptions, droneID string, executor SequenceExecutor, conn StateProvider) *Server {
	s := &Server{
		droneID:  droneID,
		executor: executor,
		conn:     conn,
		network:  opts.Network,
	}

	r := mux.NewRouter()
	r.HandleFunc("/v1/commands", s.handleCommands).Methods(http.MethodPost)
	r.HandleFunc("/v1/telemetry", s.handleTelemetry).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       opts.Timeout,
		WriteTimeout:      opts.Timeout,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen(s.network, s.srv.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "network", s.network, "addr", s.srv.Addr)
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if len(req.Commands) == 0 {
		writeError(w, http.StatusBadRequest, "empty command batch")
		return
	}

	log.Info("Command batch received", "source", "http", "commands", len(req.Commands), "queueMode", req.QueueMode)

	// A sequence in flight is not preemptible. Detach execution from the
	// request context so a client hangup cannot abort a critical command
	// mid-attempt and trip the failsafe.
	result := s.executor.ExecuteSequence(context.WithoutCancel(r.Context()), req.Commands)

	status := http.StatusOK
	if result.Error == command.CodeExecutorBusy {
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.conn.Telemetry())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		DroneID:   s.droneID,
		Connected: s.conn.Connected(),
		Timestamp: time.Now().Unix(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
