package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cuemby/pixelforge/pkg/config"
	"github.com/cuemby/pixelforge/pkg/log"
	"github.com/cuemby/pixelforge/pkg/manager"
	"github.com/cuemby/pixelforge/pkg/metrics"
	"github.com/cuemby/pixelforge/pkg/storage"
	"github.com/cuemby/pixelforge/pkg/templates"
)

// Server is PixelForge's HTTP transport: REST endpoints plus a
// server-sent-events stream, backed by the Task Manager and the
// template catalog. The Provider Registry is reached only through the
// Manager, keeping it the single entry point the transport depends on.
type Server struct {
	cfg             config.Config
	mgr             *manager.Manager
	blobs           *storage.BlobStore
	catalog         *templates.Catalog
	mux             *http.ServeMux
	allowedRefRoots []string

	httpServer *http.Server
}

// New builds a Server and registers its routes: the REST API under
// cfg.Server.APIBase, and /health, /readyz, /livez and /metrics at the
// root.
func New(cfg config.Config, mgr *manager.Manager, blobs *storage.BlobStore, catalog *templates.Catalog) *Server {
	s := &Server{
		cfg:             cfg,
		mgr:             mgr,
		blobs:           blobs,
		catalog:         catalog,
		mux:             http.NewServeMux(),
		allowedRefRoots: cfg.Storage.AllowedRefRoots,
	}
	s.routes()
	return s
}

func (s *Server) base(pattern string) string {
	return s.cfg.Server.APIBase + pattern
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /readyz", metrics.ReadyHandler())
	s.mux.Handle("GET /livez", metrics.LivenessHandler())

	s.mux.HandleFunc("GET "+s.base("/providers"), s.handleListProviders)
	s.mux.HandleFunc("GET "+s.base("/providers/config"), s.handleGetProviderConfig)
	s.mux.HandleFunc("POST "+s.base("/providers/config"), s.handlePostProviderConfig)

	s.mux.HandleFunc("POST "+s.base("/tasks/generate"), s.handleGenerate)
	s.mux.HandleFunc("POST "+s.base("/tasks/generate-with-images"), s.handleGenerateWithImages)
	s.mux.HandleFunc("GET "+s.base("/tasks/{id}"), s.handleGetTask)
	s.mux.HandleFunc("DELETE "+s.base("/tasks/{id}"), s.handleDeleteTask)
	s.mux.HandleFunc("GET "+s.base("/tasks/{id}/stream"), s.handleStream)

	s.mux.HandleFunc("GET "+s.base("/images"), s.handleListImages)
	s.mux.HandleFunc("DELETE "+s.base("/images/{id}"), s.handleDeleteImage)
	s.mux.HandleFunc("GET "+s.base("/images/{id}/download"), s.handleDownloadImage)
	s.mux.HandleFunc("POST "+s.base("/images/export"), s.handleExportImages)

	s.mux.HandleFunc("POST "+s.base("/prompts/optimize"), s.handleOptimizePrompt)
	s.mux.HandleFunc("GET "+s.base("/templates"), s.handleListTemplates)

	s.mux.Handle(s.base("/storage/"), http.StripPrefix(s.base("/storage/"), s.staticHandler()))
	s.mux.Handle("GET /metrics", metrics.Handler())
}

// Handler returns the instrumented, logged request handler, for tests
// and for the CLI's http.Server wiring.
func (s *Server) Handler() http.Handler {
	return s.withMetrics(s.withLogging(s.mux))
}

// Serve runs the HTTP server on ln until ctx is canceled, then shuts
// down gracefully. The caller owns ln's lifecycle (bounded port-range
// scanning happens in cmd/pixelforge before this is called).
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming endpoints (SSE, ZIP export) write past this
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// ListenAndServe binds addr directly (no port-range scanning) and
// serves until ctx is canceled. Convenience wrapper for tests and
// single-fixed-port deployments.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.WithComponent("api").Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.URL.Path
		metrics.APIRequestsTotal.WithLabelValues(route, http.StatusText(rec.status)).Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, route)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush delegates to the wrapped ResponseWriter when it supports
// streaming, so handlers behind withLogging/withMetrics (handleStream,
// in particular) can still flush SSE events to the client.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the wrapped ResponseWriter to http.ResponseController,
// so callers can reach capabilities this recorder doesn't forward
// itself (SetReadDeadline, SetWriteDeadline, Hijack).
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
