// Package server exposes the workflow engine over HTTP: graph registration,
// run execution, run inspection, and per-run progress streaming via SSE.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvoss/stepflow/internal/store"
	"github.com/nvoss/stepflow/internal/tool"
	"github.com/nvoss/stepflow/internal/workflow"
)

// Config holds server configuration.
type Config struct {
	Addr string `yaml:"addr"` // listen address, e.g. ":8080"

	// MaxIterations overrides the engine's global dispatch cap for every run
	// started through this server. Zero keeps the engine default.
	MaxIterations int `yaml:"max_iterations"`
}

// Server is the HTTP front end. Graphs and runs live in process-lifetime
// registries; one Broadcaster per run carries progress events to SSE clients.
type Server struct {
	config  Config
	graphs  *store.GraphStore
	runs    *store.RunRegistry
	tools   *tool.Registry
	streams *streamRegistry
	baseCtx context.Context
	cancel  context.CancelFunc
	httpSrv *http.Server
	logger  *slog.Logger
}

// New creates a Server over the given tool registry.
func New(cfg Config, tools *tool.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:  cfg,
		graphs:  store.NewGraphStore(),
		runs:    store.NewRunRegistry(),
		tools:   tools,
		streams: newStreamRegistry(),
		baseCtx: ctx,
		cancel:  cancel,
		logger:  logger.With("component", "server"),
	}

	mux := http.NewServeMux()

	// Go 1.22+ method+pattern routing.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /graphs", s.handleCreateGraph)
	mux.HandleFunc("GET /graphs", s.handleListGraphs)
	mux.HandleFunc("GET /graphs/{id}", s.handleGetGraph)
	mux.HandleFunc("POST /graphs/{id}/runs", s.handleStartRun)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /runs/{id}/events", s.handleRunEvents)
	mux.HandleFunc("GET /tools", s.handleListTools)
	mux.HandleFunc("GET /example", s.handleExample)

	s.httpSrv = &http.Server{
		Handler:      csrfProtect(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE requires no write timeout
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	return s
}

// Handler returns the fully routed handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// RegisterGraph preloads a compiled graph and returns its ID. Used by the
// CLI to make workflow files available before the first request.
func (s *Server) RegisterGraph(g *workflow.Graph) string {
	id := s.graphs.Put(g)
	s.logger.Info("graph registered", "graph_id", id, "name", g.Name)
	return id
}

// ListenAndServe starts the server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		s.logger.Info("shutting down", "signal", sig.String())
		s.Shutdown()
	}()

	s.logger.Info("listening", "addr", s.config.Addr)
	s.httpSrv.Addr = s.config.Addr
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// csrfProtect rejects cross-origin POST requests. Browsers automatically set
// the Origin header on cross-origin requests, so checking it blocks CSRF from
// malicious web pages while allowing CLI/programmatic callers (which either
// omit Origin or set it to match the server).
func csrfProtect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			origin := r.Header.Get("Origin")
			if origin != "" {
				u, err := url.Parse(origin)
				if err != nil {
					http.Error(w, `{"error":"invalid Origin header"}`, http.StatusForbidden)
					return
				}
				host := u.Hostname()
				if host != "localhost" && host != "127.0.0.1" && host != "::1" {
					http.Error(w, `{"error":"cross-origin request blocked"}`, http.StatusForbidden)
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully stops the server. In-flight runs finish on their own;
// the engine bounds every run by the global dispatch cap.
func (s *Server) Shutdown() {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = s.httpSrv.Shutdown(shutdownCtx)
	s.cancel()
}
