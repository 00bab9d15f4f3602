package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/federalgaz/campaignmail/internal/config"
	"github.com/federalgaz/campaignmail/internal/dispatch"
	"github.com/federalgaz/campaignmail/internal/dkim"
	"github.com/federalgaz/campaignmail/internal/ipfilter"
	"github.com/federalgaz/campaignmail/internal/metrics"
	"github.com/federalgaz/campaignmail/internal/ratelimit"
	"github.com/federalgaz/campaignmail/internal/sandbox"
	"github.com/federalgaz/campaignmail/internal/template"
)

// Options holds the collaborators served by the API
type Options struct {
	Version    string
	Hostname   string // used in Message-ID of raw sandbox output
	MailMode   string
	Templates  *template.Storage
	Dispatcher *dispatch.Dispatcher
	Sandbox    *sandbox.Storage   // nil in production mode
	Limiter    *ratelimit.Limiter // nil when rate limiting is disabled
	DKIM       *dkim.KeyPair      // nil when signing is disabled
}

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	config     *config.APIConfig
	opts       Options
	engine     *template.Engine
	filter     *ipfilter.Filter
	logger     *slog.Logger
	startTime  time.Time
}

// NewServer creates a new API server
func NewServer(cfg *config.APIConfig, opts Options, logger *slog.Logger) *Server {
	var filterOpts []ipfilter.Option
	if cfg.TrustProxy {
		filterOpts = append(filterOpts, ipfilter.TrustForwarded())
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		opts:      opts,
		engine:    template.NewEngine(),
		filter:    ipfilter.New(cfg.AllowedIPs, logger, filterOpts...),
		logger:    logger,
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	if s.config.TrustProxy {
		s.router.Use(middleware.RealIP)
	}
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.HTTPMiddleware)

	// Health check (no auth required)
	s.router.Get("/health", s.handleHealth)

	// API v1 routes (auth required)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.filter.HTTPMiddleware)
		r.Use(s.authMiddleware)
		r.Use(s.bodyLimitMiddleware)

		r.Get("/slugs", s.handleSlugs)
		r.Post("/render", s.handleRender)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleTemplateList)
			r.Post("/", s.handleTemplateCreate)
			r.Get("/{id}", s.handleTemplateGet)
			r.Put("/{id}", s.handleTemplateUpdate)
			r.Delete("/{id}", s.handleTemplateDelete)
			r.Post("/{id}/preview", s.handleTemplatePreview)
			r.Post("/{id}/send", s.handleTemplateSend)
		})

		r.Post("/send", s.handleSend)
		r.Get("/sends", s.handleSendList)
		r.Get("/sends/{id}", s.handleSendGet)
		r.Delete("/sends/{id}", s.handleSendDelete)

		r.Route("/sandbox", func(r chi.Router) {
			r.Use(s.sandboxEnabled)
			r.Get("/messages", s.handleSandboxList)
			r.Get("/messages/{id}", s.handleSandboxGet)
			r.Get("/messages/{id}/html", s.handleSandboxHTML)
			r.Delete("/messages", s.handleSandboxClear)
			r.Delete("/messages/{id}", s.handleSandboxDelete)
			r.Get("/stats", s.handleSandboxStats)
		})

		r.Get("/ratelimits", s.handleRateLimits)
		r.Get("/ratelimits/{level}/{key}", s.handleRateLimitStats)
		r.Get("/dkim", s.handleDKIM)
	})
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Addr:           s.config.ListenAddr,
		Handler:        s.router,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = s.newHTTPServer()

	s.logger.Info("starting HTTP API server", "addr", s.config.ListenAddr, "ip_filter", s.filter.Enabled())
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve accepts connections on l
func (s *Server) Serve(l net.Listener) error {
	s.httpServer = s.newHTTPServer()

	s.logger.Info("starting HTTP API server", "addr", l.Addr().String(), "ip_filter", s.filter.Enabled())
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
