package daemon

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"go.uber.org/zap"

	"github.com/Personaz1/openclaw-council/internal/config"
	"github.com/Personaz1/openclaw-council/internal/llm/configbuilder"
	"github.com/Personaz1/openclaw-council/internal/observability"
	councilrpc "github.com/Personaz1/openclaw-council/internal/rpc/council"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunPath is the plain NDJSON endpoint for council runs.
const RunPath = "/council/run"

// Server hosts health/metrics endpoints and the council run RPC.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	runner  councilrpc.Runner
	metrics *observability.Metrics
}

// NewServer constructs a daemon instance.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	factory, err := configbuilder.NewFactory(cfg.Runtime.CAFile)
	if err != nil {
		return nil, fmt.Errorf("build provider factory: %w", err)
	}
	metrics := observability.NewMetrics()
	runner := &councilrpc.CouncilRunner{Config: cfg, Factory: factory, Metrics: metrics, Logger: logger}
	return newServer(cfg, logger, runner, metrics), nil
}

func newServer(cfg *config.Config, logger *zap.Logger, runner councilrpc.Runner, metrics *observability.Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, logger: logger, runner: runner, metrics: metrics}
}

// Handler returns the routed HTTP handler, wrapped in h2c unless the
// transport is plain NDJSON.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.Handle(RunPath, councilrpc.NewHandler(s.runner, s.metrics))

	if s.ndjsonOnly() {
		return mux
	}
	path, handler := councilrpc.NewConnectHandler(s.runner, s.metrics)
	mux.Handle(path, handler)
	return h2c.NewHandler(mux, &http2.Server{})
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting council daemon", zap.String("addr", s.cfg.Server.Addr), zap.String("transport", s.cfg.Server.Transport))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down council daemon")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) ndjsonOnly() bool {
	return strings.ToLower(strings.TrimSpace(s.cfg.Server.Transport)) == "ndjson"
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"status":"ok","roles":%d}`, len(s.cfg.Roles))
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Server.MetricsEnabled || s.metrics == nil {
		http.NotFound(w, r)
		return
	}

	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
