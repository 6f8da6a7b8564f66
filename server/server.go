// Package server exposes the HTTP surface: health, status and metrics.
// It injects correlation IDs into request contexts for consistent logging.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/chatscope/chat"
	"github.com/onnwee/chatscope/telemetry"
)

// Server serves operational endpoints alongside a running ingest pipeline.
type Server struct {
	Pipeline *chat.Pipeline
	Backend  string
	started  time.Time
}

func New(pipeline *chat.Pipeline, backend string) *Server {
	return &Server{Pipeline: pipeline, Backend: backend, started: time.Now()}
}

// NewMux returns the HTTP handler with all routes.
func (s *Server) NewMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/status", s.handleStatus)

	// Correlation ID injector: reuse the caller's header when present.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)
		telemetry.LoggerWithCorr(ctx).Debug("request start",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("component", "http"))
		mux.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		slog.Warn("healthz write failed", slog.Any("err", err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := struct {
		Backend string     `json:"backend"`
		Uptime  string     `json:"uptime"`
		Ingest  chat.Stats `json:"ingest"`
	}{
		Backend: s.Backend,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}
	if s.Pipeline != nil {
		resp.Ingest = s.Pipeline.Snapshot()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Warn("status encode failed", slog.Any("err", err))
	}
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.NewMux(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
