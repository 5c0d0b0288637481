package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"recipebot/internal/config"
	"recipebot/internal/logging"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

type dependencyResponse struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Optional  bool   `json:"optional"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

type workflowResponse struct {
	Running       bool   `json:"running"`
	Workers       int    `json:"workers"`
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	Processed     int64  `json:"processed"`
	Failed        int64  `json:"failed"`
	LastKind      string `json:"last_kind,omitempty"`
	LastError     string `json:"last_error,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type scratchResponse struct {
	Directories int   `json:"directories"`
	Bytes       int64 `json:"bytes"`
}

type statusResponse struct {
	Running      bool                 `json:"running"`
	PID          int                  `json:"pid"`
	StartedAt    *time.Time           `json:"started_at,omitempty"`
	QuotaBackend string               `json:"quota_backend"`
	QuotaDBPath  string               `json:"quota_db_path,omitempty"`
	LockFilePath string               `json:"lock_file_path"`
	ScratchDir   string               `json:"scratch_dir"`
	Scratch      scratchResponse      `json:"scratch"`
	Workflow     workflowResponse     `json:"workflow"`
	Dependencies []dependencyResponse `json:"dependencies"`
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Server.Bind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Server.Token),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", authMiddleware(token, s.handleStatus))
	if s.daemon.metrics != nil {
		mux.Handle("/metrics", s.daemon.metrics.Handler())
	}
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status()
	deps := make([]dependencyResponse, len(status.Dependencies))
	for i, dep := range status.Dependencies {
		deps[i] = dependencyResponse{
			Name:      dep.Name,
			Command:   dep.Command,
			Optional:  dep.Optional,
			Available: dep.Available,
			Detail:    dep.Detail,
		}
	}
	payload := statusResponse{
		Running:      status.Running,
		PID:          status.PID,
		QuotaBackend: status.QuotaBackend,
		LockFilePath: status.LockFilePath,
		ScratchDir:   status.ScratchDir,
		Scratch: scratchResponse{
			Directories: status.Scratch.Directories,
			Bytes:       status.Scratch.Bytes,
		},
		Workflow: workflowResponse{
			Running:       status.Workflow.Running,
			Workers:       status.Workflow.Workers,
			QueueDepth:    status.Workflow.QueueDepth,
			QueueCapacity: status.Workflow.QueueCapacity,
			Processed:     status.Workflow.Processed,
			Failed:        status.Workflow.Failed,
			LastKind:      string(status.Workflow.LastKind),
			LastError:     status.Workflow.LastError,
			UptimeSeconds: int64(status.Workflow.Uptime / time.Second),
		},
		Dependencies: deps,
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = &status.StartedAt
	}
	if status.QuotaBackend == config.QuotaBackendSQLite {
		payload.QuotaDBPath = status.QuotaDBPath
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
