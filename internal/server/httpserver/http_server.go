// Package httpserver assembles the docsync HTTP surface: webhook ingress,
// management API, search, health, and Prometheus metrics on one listener.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docsync/internal/config"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/metrics"
	"git.home.luguber.info/inful/docsync/internal/server/handlers"
	smw "git.home.luguber.info/inful/docsync/internal/server/middleware"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 2 * time.Minute
)

// Options carries the handler collaborators the server routes to.
type Options struct {
	API      handlers.APIDeps
	Recorder metrics.Recorder
	Registry *prometheus.Registry // nil disables /metrics

	// WebhookSecret overrides the static config secret, letting config
	// reloads rotate it live. nil falls back to the configured value.
	WebhookSecret func() string
}

// Server serves the HTTP endpoints on the configured listen address.
type Server struct {
	cfg          *config.Config
	opts         Options
	srv          *http.Server
	errorAdapter *ferrors.HTTPErrorAdapter

	webhookHandlers *handlers.WebhookHandlers
	apiHandlers     *handlers.APIHandlers

	mchain func(http.Handler) http.Handler
}

// New constructs the HTTP server wiring.
func New(cfg *config.Config, opts Options) *Server {
	s := &Server{
		cfg:          cfg,
		opts:         opts,
		errorAdapter: ferrors.NewHTTPErrorAdapter(slog.Default()),
	}

	secret := opts.WebhookSecret
	if secret == nil {
		static := cfg.Server.Webhook.Secret
		secret = func() string { return static }
	}
	s.webhookHandlers = handlers.NewWebhookHandlers(
		opts.API.Store,
		opts.API.Syncer,
		secret,
		cfg.Sync.DocsDir,
		opts.Recorder,
		s.errorAdapter,
	)
	s.apiHandlers = handlers.NewAPIHandlers(opts.API, opts.Recorder, s.errorAdapter)
	s.mchain = smw.Chain(slog.Default(), s.errorAdapter)

	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	webhookPath := s.cfg.Server.Webhook.Path
	if webhookPath == "" {
		webhookPath = "/webhooks/github"
	}
	mux.HandleFunc("POST "+webhookPath, s.webhookHandlers.HandlePush)

	mux.HandleFunc("POST /api/repos", s.apiHandlers.HandleEnroll)
	mux.HandleFunc("GET /api/repos", s.apiHandlers.HandleList)
	mux.HandleFunc("GET /api/repos/{owner}/{name}", s.apiHandlers.HandleGet)
	mux.HandleFunc("DELETE /api/repos/{owner}/{name}", s.apiHandlers.HandleUnenroll)
	mux.HandleFunc("POST /api/repos/{owner}/{name}/sync", s.apiHandlers.HandleSyncTrigger)
	mux.HandleFunc("GET /api/repos/{owner}/{name}/status", s.apiHandlers.HandleStatus)
	mux.HandleFunc("POST /api/repos/{owner}/{name}/purge", s.apiHandlers.HandlePurge)
	mux.HandleFunc("GET /api/jobs", s.apiHandlers.HandleJobs)
	mux.HandleFunc("GET /api/search", s.apiHandlers.HandleSearch)
	mux.HandleFunc("GET /healthz", s.apiHandlers.HandleHealth)

	if s.opts.Registry != nil {
		mux.Handle("GET /metrics", metrics.HTTPHandler(s.opts.Registry))
	}

	return s.mchain(mux)
}

// Start binds the listener and begins serving. Binding happens up front so
// an occupied port fails startup instead of surfacing later in logs.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.Server.Listen
	if addr == "" {
		addr = ":8080"
	}

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("http startup failed: %w", err)
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("HTTP server started", slog.String("addr", addr))
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	slog.Info("HTTP server stopped")
	return nil
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.routes()
}
