// Package api exposes the chat backend over HTTP.
//
// Endpoints:
//
//	GET  /health                    liveness probe
//	GET  /ready                     readiness probe (pings the database)
//	POST /api/tenants               register a tenant
//	GET  /api/tenants/{id}          fetch a tenant
//	DELETE /api/tenants/{id}        deactivate a tenant
//	POST /api/query                 answer a visitor question
//	POST /api/sessions/end          end a chat session
//	POST /api/crawl                 dispatch a crawl job
//	GET  /api/crawl/jobs/{id}       poll a crawl job
//	GET  /api/crawl/status/{tenant} tenant-level crawl status
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// DefaultAddr is where the server listens when no address is configured.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against slow-header clients.
	ReadHeaderTimeout = 10 * time.Second

	ReadTimeout  = 30 * time.Second
	WriteTimeout = 120 * time.Second
	IdleTimeout  = 120 * time.Second
)

// Server is the HTTP server for the chat backend API.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
}

// Deps are the collaborators the handlers need.
type Deps struct {
	Pool     *pgxpool.Pool
	Tenants  TenantDirectory
	Sessions SessionStore
	Answerer Answerer
	Jobs     JobRunner
	Chunks   ChunkCounter
	Logger   *slog.Logger

	// HistoryWindow bounds how many recent turns the query handler loads;
	// <= 0 uses rag.HistoryWindow.
	HistoryWindow int

	// CrawlDefaults fill crawl request fields the client leaves unset.
	CrawlDefaults CrawlDefaults
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	NewHealthHandler(deps.Pool, logger).RegisterRoutes(mux)
	NewTenantHandler(deps.Tenants, logger).RegisterRoutes(mux)
	NewQueryHandler(deps.Tenants, deps.Sessions, deps.Answerer, deps.HistoryWindow, logger).RegisterRoutes(mux)
	NewSessionHandler(deps.Tenants, deps.Sessions, logger).RegisterRoutes(mux)
	NewCrawlHandler(deps.Tenants, deps.Jobs, deps.Chunks, deps.CrawlDefaults, logger).RegisterRoutes(mux)

	return &Server{mux: mux, logger: logger}
}

// Handler returns the mux with middleware applied.
// Middleware order: recovery → logging → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), loggingMiddleware(s.logger))
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
