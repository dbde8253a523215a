// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pagebot/pagebot-go/internal/bot"
	"github.com/pagebot/pagebot-go/internal/buildinfo"
	"github.com/pagebot/pagebot-go/internal/catalog"
	"github.com/pagebot/pagebot-go/internal/config"
	"github.com/pagebot/pagebot-go/internal/logger"
	"github.com/pagebot/pagebot-go/internal/messenger"
	"github.com/pagebot/pagebot-go/internal/metrics"
	"github.com/pagebot/pagebot-go/internal/ratelimit"
	"github.com/pagebot/pagebot-go/internal/sentry"
	"github.com/pagebot/pagebot-go/internal/telegram"
	"github.com/pagebot/pagebot-go/internal/webhook"
)

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg            *config.Config
	logger         *logger.Logger
	metrics        *metrics.Metrics
	registry       *prometheus.Registry
	graphClient    *messenger.Client
	dispatcher     *bot.Dispatcher
	webhookHandler *webhook.Handler
	telegramBot    *telegram.Bot // nil when no Telegram token is configured
	senderLimiter  *ratelimit.KeyedLimiter
	chatLimiter    *ratelimit.KeyedLimiter
	router         *gin.Engine
	server         *http.Server
	shuttingDown   atomic.Bool
	wg             sync.WaitGroup // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken: cfg.BetterStackToken,
	})

	log = log.WithField("service", "pagebot-go")
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}
	if buildinfo.Version != "" {
		log = log.WithField("version", buildinfo.Version)
	}

	// Set as default logger so package-level slog.*Context() calls get context enrichment
	slog.SetDefault(log.Logger)

	log.Info("Initializing application...")
	if cfg.BetterStackToken != "" {
		log.Info("Better Stack logging enabled")
	}

	if err := sentry.Initialize(sentry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Release(),
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		// Error reporting is optional; keep serving without it
		log.WithError(err).Warn("Sentry initialization failed")
	} else if cfg.SentryEnabled() {
		log.WithField("environment", cfg.SentryEnvironment).Info("Sentry error reporting enabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	graphClient := messenger.NewClient(messenger.ClientConfig{
		BaseURL:     cfg.GraphAPIBaseURL,
		Version:     cfg.GraphAPIVersion,
		AccessToken: cfg.PageAccessToken,
		Timeout:     cfg.GraphTimeout,
		Limiter:     ratelimit.New(cfg.SendRateRPS, cfg.SendRateRPS),
		Metrics:     m,
	})

	// Off by default: every event is owed a reply
	var senderLimiter *ratelimit.KeyedLimiter
	if cfg.Bot.SenderRateLimitEnabled() {
		senderLimiter = ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
			Name:          "sender",
			Burst:         cfg.Bot.SenderRateBurst,
			RefillRate:    cfg.Bot.SenderRateRefill,
			CleanupPeriod: config.RateLimiterCleanupInterval,
			Metrics:       m,
		})
		log.WithField("burst", cfg.Bot.SenderRateBurst).
			WithField("refill_per_sec", cfg.Bot.SenderRateRefill).
			Info("Per-sender rate limit enabled")
	}

	dispatcher := bot.NewDispatcher(bot.DispatcherConfig{
		Transport:     graphClient,
		Lookup:        graphClient,
		Catalog:       catalog.Static{},
		SenderLimiter: senderLimiter,
		Logger:        log,
		Metrics:       m,
		BotConfig:     &cfg.Bot,
	})

	webhookHandler := webhook.NewHandler(webhook.HandlerConfig{
		VerifyToken: cfg.VerifyToken,
		Dispatcher:  dispatcher,
		Metrics:     m,
		Logger:      log,
	}, webhook.WithBotConfig(&cfg.Bot))

	app := &Application{
		cfg:            cfg,
		logger:         log,
		metrics:        m,
		registry:       registry,
		graphClient:    graphClient,
		dispatcher:     dispatcher,
		webhookHandler: webhookHandler,
		senderLimiter:  senderLimiter,
	}

	if cfg.TelegramEnabled() {
		app.chatLimiter = ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
			Name:          "chat",
			Burst:         config.TelegramChatBurst,
			RefillRate:    config.TelegramChatRefill,
			CleanupPeriod: config.RateLimiterCleanupInterval,
			Metrics:       m,
		})
		tgBot, err := telegram.Connect(cfg.TelegramToken, telegram.Config{
			Catalog:     catalog.Static{},
			ChatLimiter: app.chatLimiter,
			Logger:      log,
			Metrics:     m,
		})
		if err != nil {
			log.WithError(err).Warn("Telegram command bot disabled")
		} else {
			app.telegramBot = tgBot
			log.Info("Telegram command bot enabled")
		}
	}

	gin.SetMode(gin.ReleaseMode)
	app.router = app.newRouter()

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router,
		ReadHeaderTimeout: config.WebhookHTTPRead,
		ReadTimeout:       config.WebhookHTTPRead,
		WriteTimeout:      config.WebhookHTTPWrite,
		IdleTimeout:       config.WebhookHTTPIdle,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	log.Info("Initialization complete")
	return app, nil
}

// newRouter builds the gin engine with middleware and routes.
func (a *Application) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	router.Use(recoveryMiddleware(a.logger, a.metrics))
	router.Use(securityHeadersMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(a.logger))

	router.GET("/", a.index)
	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)
	router.GET("/webhook", a.webhookHandler.Verify)
	router.POST("/webhook", a.webhookHandler.Handle)
	router.GET("/metrics",
		metricsAuthMiddleware(a.cfg, a.metrics),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	return router
}

func (a *Application) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "pagebot-go",
		"version": buildinfo.Release(),
	})
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) getFeatures() map[string]bool {
	return map[string]bool{
		"telegram":    a.telegramBot != nil,
		"sentry":      sentry.IsEnabled(),
		"betterstack": a.cfg.BetterStackToken != "",
	}
}

func (a *Application) readinessCheck(c *gin.Context) {
	if a.shuttingDown.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "shutting down",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "ready",
		"graph_api_version": a.cfg.GraphAPIVersion,
		"features":          a.getFeatures(),
	})
}

// Run starts the HTTP server and background jobs and blocks until
// SIGINT/SIGTERM.
//
// Shutdown order:
//  1. Mark not ready and cancel the background context (stops Telegram polling)
//  2. Wait for background jobs
//  3. Stop the HTTP server, then drain webhook batches and profile lookups
//  4. Stop limiters, flush Sentry and the logger
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErr := a.startHTTPServer()
	a.startBackgroundJobs(ctx)

	select {
	case sig := <-a.waitForShutdownSignal():
		a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErr:
		a.logger.WithError(err).Error("HTTP server stopped unexpectedly")
	}

	a.shuttingDown.Store(true)
	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	if a.telegramBot != nil {
		a.wg.Go(func() {
			if err := a.telegramBot.Run(ctx); err != nil {
				a.logger.WithError(err).Error("Telegram polling failed")
			}
		})
	}
}

// startHTTPServer starts the HTTP server in a goroutine. The returned channel
// receives an error if the server stops for any reason other than Shutdown.
func (a *Application) startHTTPServer() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()
	return errCh
}

// waitForShutdownSignal returns a channel that receives SIGINT/SIGTERM.
func (a *Application) waitForShutdownSignal() <-chan os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return quit
}

// shutdown stops the HTTP server and releases resources.
// It must run after background jobs have stopped.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}

	a.logger.Info("Waiting for webhook batches to complete...")
	if err := a.webhookHandler.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Webhook handler shutdown timeout")
		errs = append(errs, fmt.Errorf("webhook handler: %w", err))
	}
	if err := a.dispatcher.Wait(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Profile lookups did not finish before shutdown")
	}

	a.logger.Info("Closing resources...")
	if a.senderLimiter != nil {
		a.senderLimiter.Stop()
	}
	if a.chatLimiter != nil {
		a.chatLimiter.Stop()
	}

	if sentry.IsEnabled() && !sentry.Flush(2*time.Second) {
		a.logger.Warn("Sentry flush timed out")
	}

	a.logger.Info("Shutdown complete")
	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("logger: %w", err))
	}
	return errors.Join(errs...)
}
