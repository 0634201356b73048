package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// HTTP timeouts of the observability endpoints. Scrapes and probes are
// small, so anything slower is a stuck client.
const (
	serverReadHeaderTimeout = 5 * time.Second
	serverReadTimeout       = 10 * time.Second
	serverWriteTimeout      = 10 * time.Second
	serverIdleTimeout       = 2 * time.Minute
)

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: serverReadHeaderTimeout,
		ReadTimeout:       serverReadTimeout,
		WriteTimeout:      serverWriteTimeout,
		IdleTimeout:       serverIdleTimeout,
	}
}

// ServerConfig configures the observability server.
type ServerConfig struct {
	Collector        *Collector // nil uses Global()
	Version          string
	Namespace        string // Prometheus namespace, default "qmsg"
	EnablePrometheus bool
	EnableHealth     bool
}

// Server serves /metrics, /health, /healthz and /readyz for a client or
// relay process.
type Server struct {
	mux    *http.ServeMux
	health *HealthCheck

	mu   sync.Mutex
	http *http.Server
}

// NewServer creates an observability server. Endpoints not enabled in cfg
// answer 404.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Collector == nil {
		cfg.Collector = Global()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "qmsg"
	}

	s := &Server{mux: http.NewServeMux()}

	if cfg.EnablePrometheus {
		s.mux.Handle("/metrics", NewPrometheusExporter(cfg.Collector, cfg.Namespace).Handler())
	}
	if cfg.EnableHealth {
		s.health = NewHealthCheck(cfg.Collector, cfg.Version)
		s.mux.Handle("/health", s.health.Handler())
		s.mux.Handle("/healthz", s.health.LivenessHandler())
		s.mux.Handle("/readyz", s.health.ReadinessHandler())
	}

	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// AddHealthCheck registers a critical check. It is a no-op when health
// endpoints are disabled.
func (s *Server) AddHealthCheck(name string, check CheckFunc) {
	if s.health != nil {
		s.health.AddCheck(name, check)
	}
}

// AddAdvisoryCheck registers a check that can only degrade health.
func (s *Server) AddAdvisoryCheck(name string, check CheckFunc) {
	if s.health != nil {
		s.health.AddAdvisoryCheck(name, check)
	}
}

// ListenAndServe serves on addr until Shutdown. It returns
// http.ErrServerClosed after a clean shutdown.
func (s *Server) ListenAndServe(addr string) error {
	srv := newHTTPServer(addr, s.mux)
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()
	return srv.ListenAndServe()
}

// Shutdown stops a server started with ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
