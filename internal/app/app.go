package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/federalgaz/campaignmail/internal/api"
	"github.com/federalgaz/campaignmail/internal/config"
	"github.com/federalgaz/campaignmail/internal/delivery"
	"github.com/federalgaz/campaignmail/internal/dispatch"
	"github.com/federalgaz/campaignmail/internal/dkim"
	"github.com/federalgaz/campaignmail/internal/metrics"
	"github.com/federalgaz/campaignmail/internal/ratelimit"
	"github.com/federalgaz/campaignmail/internal/sandbox"
	"github.com/federalgaz/campaignmail/internal/storage"
	"github.com/federalgaz/campaignmail/internal/template"
)

// Version is set at build time
var Version = "dev"

// App is the main application
type App struct {
	config        *config.Config
	db            *storage.DB
	apiServer     *api.Server
	dispatcher    *dispatch.Dispatcher
	cleaner       *dispatch.Cleaner
	sender        *sandbox.Sender
	rateLimiter   *ratelimit.Limiter
	collector     *metrics.Collector
	metricsServer *metrics.Server
	logger        *slog.Logger
}

// New creates a new application
func New(cfg *config.Config) (*App, error) {
	logger := SetupLogger(cfg.Logging)

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	a := &App{
		config: cfg,
		db:     db,
		logger: logger,
	}
	if err := a.build(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	cfg := a.config
	logger := a.logger
	bdb := a.db.DB()

	templates, err := template.NewStorage(bdb)
	if err != nil {
		return fmt.Errorf("failed to create template storage: %w", err)
	}

	reports, err := dispatch.NewStorage(bdb)
	if err != nil {
		return fmt.Errorf("failed to create report storage: %w", err)
	}

	sandboxStorage, err := sandbox.NewStorage(bdb)
	if err != nil {
		return fmt.Errorf("failed to create sandbox storage: %w", err)
	}

	realSender, err := delivery.New(cfg.Mail, cfg.Server.Hostname, logger.With("component", "delivery"))
	if err != nil {
		return fmt.Errorf("failed to create mail sender: %w", err)
	}
	sender := sandbox.NewSender(
		realSender,
		cfg.Mail.Mode,
		cfg.Mail.RedirectTo,
		sandboxStorage,
		logger.With("component", "sandbox_sender"),
	)
	if sim := cfg.Mail.Sandbox; sim.SimulateErrors {
		sender.SetErrorSimulation(true, sim.ErrorProbability)
		_, p := sender.ErrorSimulation()
		logger.Warn("simulating delivery errors", "probability", p)
	}
	a.sender = sender
	logger.Info("mail sender ready", "provider", realSender.Name(), "mode", sender.Mode())

	// Limiter stays a nil interface when disabled
	var limiter dispatch.Limiter
	if cfg.RateLimit.Enabled {
		a.rateLimiter, err = ratelimit.NewLimiter(bdb, cfg.RateLimit, cfg.Metrics.FlushInterval)
		if err != nil {
			return fmt.Errorf("failed to create rate limiter: %w", err)
		}
		limiter = a.rateLimiter
		logger.Info("rate limiting enabled")
	}

	a.dispatcher = dispatch.New(sender, reports, limiter, dispatch.Config{
		From:          cfg.Mail.From(),
		ReplyTo:       cfg.Mail.ReplyTo,
		Concurrency:   cfg.Mail.Concurrency,
		MaxRetries:    cfg.Mail.MaxRetries,
		RetryInterval: cfg.Mail.RetryInterval,
		MaxRecipients: cfg.Mail.MaxRecipients,
	}, logger.With("component", "dispatcher"))

	retention := cfg.Storage.Retention
	a.cleaner = dispatch.NewCleaner(retention.CleanupInterval, logger.With("component", "cleaner"),
		dispatch.CleanupTask{Name: "reports", MaxAge: retention.ReportMaxAge, Run: reports.Cleanup},
		dispatch.CleanupTask{Name: "sandbox", MaxAge: retention.SandboxMaxAge, Run: sandboxStorage.Clear},
	)

	if cfg.Metrics.Enabled {
		m := metrics.New()
		metrics.SetGlobal(m)

		content := &contentStats{templates: templates, reports: reports, sandbox: sandboxStorage}
		a.collector, err = metrics.NewCollector(bdb, m, content, a.db.Path(), cfg.Metrics.FlushInterval)
		if err != nil {
			return fmt.Errorf("failed to create metrics collector: %w", err)
		}
		a.metricsServer = metrics.NewServer(m, cfg.Metrics.ListenAddr, cfg.Metrics.Path,
			cfg.Metrics.AllowedIPs, logger.With("component", "metrics"))
		logger.Info("metrics enabled", "addr", cfg.Metrics.ListenAddr)
	}

	var keyPair *dkim.KeyPair
	if cfg.Mail.DKIM.Enabled {
		keyPair, err = dkim.LoadKeyPair(cfg.Mail.DKIM.KeyFile, cfg.Mail.DKIM.Domain, cfg.Mail.DKIM.Selector)
		if err != nil {
			return fmt.Errorf("failed to load DKIM key: %w", err)
		}
	}

	opts := api.Options{
		Version:    Version,
		Hostname:   cfg.Server.Hostname,
		MailMode:   cfg.Mail.Mode,
		Templates:  templates,
		Dispatcher: a.dispatcher,
		Limiter:    a.rateLimiter,
		DKIM:       keyPair,
	}
	if cfg.Mail.Mode != config.ModeProduction {
		opts.Sandbox = sandboxStorage
	}
	a.apiServer = api.NewServer(&cfg.API, opts, logger.With("component", "api"))

	return nil
}

// Run starts all components and waits for shutdown
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting fgmail",
		"version", Version,
		"hostname", a.config.Server.Hostname,
		"api_addr", a.config.API.ListenAddr,
		"mail_mode", a.config.Mail.Mode,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a.cleaner.Start(ctx)
	if a.collector != nil {
		a.collector.Start(ctx)
	}

	errCh := make(chan error, 2)

	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		cancel()
	}

	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop accepting requests before draining running dispatches
	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown error", "error", err)
	}

	a.dispatcher.Stop()
	a.cleaner.Stop()

	if a.collector != nil {
		if err := a.collector.Stop(); err != nil {
			a.logger.Error("metrics collector stop error", "error", err)
		}
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown error", "error", err)
		}
	}

	// Persists counters
	if a.rateLimiter != nil {
		if err := a.rateLimiter.Stop(); err != nil {
			a.logger.Error("rate limiter stop error", "error", err)
		}
	}

	if err := a.db.Close(); err != nil {
		a.logger.Error("storage close error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

// contentStats feeds stored object counts to the metrics collector
type contentStats struct {
	templates *template.Storage
	reports   *dispatch.Storage
	sandbox   *sandbox.Storage
}

func (c *contentStats) ContentStats(ctx context.Context) (*metrics.ContentStats, error) {
	tpl, err := c.templates.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("template stats: %w", err)
	}
	reports, err := c.reports.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("report count: %w", err)
	}
	sb, err := c.sandbox.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("sandbox stats: %w", err)
	}

	return &metrics.ContentStats{
		Templates:       tpl.Total,
		Reports:         reports,
		SandboxMessages: sb.Total,
	}, nil
}

// SetupLogger creates a logger based on configuration
func SetupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
