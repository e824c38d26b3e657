package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"

	"github.com/nexustechhub/mdts/internal"
	"github.com/nexustechhub/mdts/internal/billing"
	"github.com/nexustechhub/mdts/internal/email"
	"github.com/nexustechhub/mdts/internal/events"
	"github.com/nexustechhub/mdts/internal/handler"
	"github.com/nexustechhub/mdts/internal/handler/api"
	"github.com/nexustechhub/mdts/internal/handler/webhook"
	"github.com/nexustechhub/mdts/internal/middleware"
	"github.com/nexustechhub/mdts/internal/pdf"
	"github.com/nexustechhub/mdts/internal/postgres"
	"github.com/nexustechhub/mdts/internal/router"
	"github.com/nexustechhub/mdts/internal/routes"
	"github.com/nexustechhub/mdts/internal/service"
	"github.com/nexustechhub/mdts/internal/tax"
	"github.com/nexustechhub/mdts/internal/telemetry"
	"github.com/nexustechhub/mdts/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Amounts are JSON numbers on the wire
	decimal.MarshalJSONWithoutQuotes = true

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Initialize Sentry
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return err
	}
	defer flushSentry()

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := postgres.NewPool(ctx, cfg.DatabaseUrl)
	if err != nil {
		return err
	}
	defer pool.Close()

	receipts := postgres.NewReceiptRepository(pool)

	// ==========================================================================
	// Metrics
	// ==========================================================================

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics("mdts", registry)
	telemetry.InitVATMetrics("mdts", registry)

	// ==========================================================================
	// Optional integrations
	// ==========================================================================

	health := map[string]api.Pinger{"database": pool}

	var provider billing.Provider
	if cfg.Stripe.Enabled() {
		sp, err := billing.NewStripeProvider(billing.StripeConfig{
			APIKey:         cfg.Stripe.SecretKey,
			WebhookSecret:  cfg.Stripe.WebhookSecret,
			TimeoutSeconds: 30,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize stripe: %w", err)
		}
		provider = sp
		logger.Info("Stripe checkout enabled", "test_mode", strings.HasPrefix(cfg.Stripe.SecretKey, "sk_test_"))
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, checkout sessions disabled")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		np, err := events.NewNATSPublisher(cfg.NATS.URL, "mdts", logger)
		if err != nil {
			return err
		}
		defer np.Close()
		publisher = np
		health["nats"] = np
		logger.Info("Publishing domain events to NATS")
	}

	var mailer service.ReceiptMailer
	if cfg.Email.Enabled() {
		sender := email.NewSMTPSender(&email.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     int(cfg.Email.Port),
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		}, logger)
		svc, err := email.NewService(sender, cfg.Email.From, cfg.Email.FromName)
		if err != nil {
			return err
		}

		mailWorker := worker.NewWorker(svc, worker.Config{WorkerID: "mail"}, logger)
		workerDone := make(chan struct{})
		go func() {
			defer close(workerDone)
			_ = mailWorker.Start(ctx)
		}()
		defer func() {
			stop()
			<-workerDone
		}()

		mailer = mailWorker
		logger.Info("Receipt emails enabled", "host", cfg.Email.Host)
	}

	// ==========================================================================
	// Services
	// ==========================================================================

	taxConfig := tax.UAE().
		WithBusiness(tax.Business{
			Name:          cfg.Business.Name,
			Location:      cfg.Business.Location,
			Phone:         cfg.Business.Phone,
			VATRegistered: true,
		}).
		WithVATNumber(cfg.Business.TRN)
	if taxConfig.VATNumber == tax.PlaceholderTRN {
		logger.Warn("VAT_TRN not set, receipts will print a placeholder TRN")
	}

	calc := tax.NewCalculator(taxConfig)
	checkoutService := service.NewCheckoutService(calc, provider, logger)
	invoiceService := service.NewInvoiceService(calc, receipts, pdf.NewReceiptRenderer(), mailer, publisher, logger)

	// ==========================================================================
	// Router
	// ==========================================================================

	defaultRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer defaultRateLimiter.Stop()

	writeLimitConfig := middleware.StrictRateLimiterConfig()
	writeLimitConfig.RequestsPerSecond = cfg.HTTP.WriteRequestsPerSecond
	writeLimitConfig.BurstSize = cfg.HTTP.WriteBurst
	writeRateLimiter := middleware.NewRateLimiter(writeLimitConfig)
	defer writeRateLimiter.Stop()

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		middleware.WithClientIP(),
		middleware.WithRequestLogger(logger),
		middleware.AccessLog,
		telemetry.SentryMiddleware(),
		metrics.Middleware,
		middleware.SecurityHeaders(middleware.APISecurityHeadersConfig()),
	)

	apiRouter := r.Group(
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		defaultRateLimiter.Middleware,
	)
	routes.RegisterAPIRoutes(apiRouter, routes.APIDeps{
		VATHandler:      api.NewVATHandler(checkoutService, taxConfig, receipts),
		CheckoutHandler: api.NewCheckoutHandler(checkoutService),
		ReceiptHandler:  api.NewReceiptHandler(invoiceService),
		WriteLimit:      writeRateLimiter.Middleware,
		AdminAuth:       middleware.RequireAdminToken(cfg.Admin.Token),
	})
	if cfg.Admin.Token == "" {
		logger.Warn("ADMIN_API_TOKEN not set, receipt and VAT summary endpoints disabled")
	}

	if provider != nil {
		stripeHandler := webhook.NewStripeHandler(provider, publisher, webhook.StripeWebhookConfig{
			WebhookSecret: cfg.Stripe.WebhookSecret,
		}, logger)
		routes.RegisterWebhookRoutes(r, routes.WebhookDeps{
			StripeHandler: stripeHandler.HandleWebhook,
		})
	}

	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		HealthHandler:  api.NewHealthHandler(health),
		MetricsHandler: metrics.Handler(),
	})

	r.NotFound(handler.NotFoundResponse)

	// ==========================================================================
	// Start server
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router.CORS(cfg.HTTP.AllowedOrigins)(r),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
