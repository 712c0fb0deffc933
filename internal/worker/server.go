package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"earshot/internal/dispatch"
	"earshot/internal/dispatch/signature"
	"earshot/internal/logging"
	"earshot/internal/services"
)

const maxRequestBytes = 1 << 20

// Server exposes the signed extraction API.
type Server struct {
	bind      string
	secret    string
	extractor *Extractor
	metrics   *Metrics
	logger    *slog.Logger

	listener net.Listener
	server   *http.Server
}

// NewServer builds the worker HTTP server. The shared secret must be
// non-empty; every extract request is authenticated against it.
func NewServer(bind, secret string, extractor *Extractor, metrics *Metrics, logger *slog.Logger) (*Server, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, services.Wrap(services.ErrConfiguration, "worker", "server", "bind address required", nil)
	}
	if secret == "" {
		return nil, services.Wrap(services.ErrConfiguration, "worker", "server", "shared secret required", nil)
	}
	if extractor == nil {
		return nil, services.Wrap(services.ErrConfiguration, "worker", "server", "extractor required", nil)
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	srv := &Server{
		bind:      bind,
		secret:    secret,
		extractor: extractor,
		metrics:   metrics,
		logger:    logger.With(logging.String(logging.FieldComponent, "worker-server")),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealthz)
	mux.HandleFunc("/v1/extract", srv.handleExtract)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{}))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving and shuts down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("worker listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("worker server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("worker listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr reports the bound address once the server is started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read request body", "")
		return
	}

	// Authenticate before any parsing or tool invocation.
	if !signature.Verify(s.secret, body, r.Header.Get(signature.Header)) {
		s.metrics.AuthRejections.Inc()
		s.logger.Warn("rejected unsigned or tampered request",
			logging.String("remote", r.RemoteAddr),
			logging.String(logging.FieldRequestID, r.Header.Get("X-Request-ID")))
		s.writeError(w, http.StatusUnauthorized, "invalid signature", "")
		return
	}

	var req dispatch.ExtractRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body", "")
		return
	}
	if strings.TrimSpace(req.ResourceURL) == "" {
		s.writeError(w, http.StatusBadRequest, "resource_url required", "")
		return
	}
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode != "" && mode != dispatch.ModePrerecorded && mode != dispatch.ModeStreaming {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown mode %q", req.Mode), "")
		return
	}

	started := time.Now()
	resp, err := s.extractor.Extract(r.Context(), req)
	elapsed := time.Since(started).Seconds()
	if err != nil {
		stage := FailedStage(err)
		s.metrics.RecordFailure(stage, elapsed)
		s.logger.Error("extraction failed",
			logging.String(logging.FieldStage, stage),
			logging.String("resource_url", req.ResourceURL),
			logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "extraction failed", stage)
		return
	}
	s.metrics.RecordSuccess(elapsed)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response failed", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, stage string) {
	body := map[string]string{"error": message}
	if stage != "" {
		body["stage"] = stage
	}
	s.writeJSON(w, status, body)
}
