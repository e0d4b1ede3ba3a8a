package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/shajaurahman10/remindly-pay-flow/internal/api/router"
	"github.com/shajaurahman10/remindly-pay-flow/internal/clients"
	appconfig "github.com/shajaurahman10/remindly-pay-flow/internal/config"
	"github.com/shajaurahman10/remindly-pay-flow/internal/gateway"
	"github.com/shajaurahman10/remindly-pay-flow/internal/livefeed"
	"github.com/shajaurahman10/remindly-pay-flow/internal/notify"
	"github.com/shajaurahman10/remindly-pay-flow/internal/observability/metrics"
	"github.com/shajaurahman10/remindly-pay-flow/internal/reconcile"
	"github.com/shajaurahman10/remindly-pay-flow/internal/reminders"
	"github.com/shajaurahman10/remindly-pay-flow/internal/webhook"
	"github.com/shajaurahman10/remindly-pay-flow/internal/whatsapp"
	"github.com/shajaurahman10/remindly-pay-flow/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting remindly reconciliation engine",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage: Postgres when configured, in-memory otherwise.
	var (
		clientsRepo clients.Repository
		jobStore    reminders.JobStore
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("database unreachable", "error", err)
			os.Exit(1)
		}
		clientsRepo = clients.NewStore(pool)
		jobStore = reminders.NewStore(pool)
		logger.Info("using postgres storage")
	} else {
		clientsRepo = clients.NewInMemoryRepository()
		jobStore = reminders.NewMemoryJobStore()
		logger.Warn("DATABASE_URL not set, using in-memory storage")
	}

	// Dedup tracker: Redis when configured, in-memory otherwise.
	var tracker reconcile.ProcessedTracker = reconcile.NewMemoryTracker()
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, falling back to in-memory dedup", "error", err)
		} else {
			tracker = reconcile.NewRedisTracker(rdb)
			logger.Info("using redis dedup tracker", "addr", cfg.RedisAddr)
		}
	}

	m := metrics.NewEngineMetrics(prometheus.DefaultRegisterer)

	reconciler := reconcile.New(clientsRepo, jobStore, tracker, logger.WithComponent("reconcile")).
		WithMetrics(m).
		WithUnknownClientRetry(cfg.ReconcileRetryAttempts, cfg.ReconcileRetryDelay)

	// Payment links are optional; without gateway credentials, client records
	// are created without a hosted link.
	var links clients.LinkProvisioner
	gw := gateway.NewClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, logger.WithComponent("gateway")).
		WithBaseURL(cfg.RazorpayBaseURL)
	if gw.Configured() {
		links = gw
	} else {
		logger.Warn("razorpay credentials not set, payment link provisioning disabled")
	}

	var alerts notify.AlertSink = notify.NewLogAlerter(logger.WithComponent("notify"))
	if emailAlerter := notify.NewEmailAlerter(notify.EmailConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
		ToEmail:   cfg.OperatorAlertEmail,
	}, logger.WithComponent("notify")); emailAlerter != nil {
		alerts = emailAlerter
	}

	sender := whatsapp.NewSender(cfg.WhatsAppPhoneNumberID, cfg.WhatsAppAccessToken, cfg.DefaultCountryCode, logger.WithComponent("whatsapp")).
		WithBaseURL(cfg.WhatsAppAPIBase).
		WithTemplate(cfg.ReminderTemplate).
		WithRetry(cfg.DispatchMaxAttempts, cfg.DispatchRetryDelay).
		WithAlerts(alerts)

	scheduler := reminders.NewScheduler(clientsRepo, jobStore, sender, reconciler, logger.WithComponent("reminders")).
		WithOffsets(cfg.ReminderOffsetsDays).
		WithInterval(cfg.ReminderTickInterval).
		WithMetrics(m)

	var ingestor *livefeed.Ingestor
	if cfg.LiveFeedURL != "" {
		ingestor = livefeed.New(cfg.LiveFeedURL, reconciler, logger.WithComponent("livefeed")).
			WithReconnectDelay(cfg.LiveFeedReconnectDelay).
			WithBufferSize(cfg.LiveFeedBuffer).
			WithMetrics(m)
	} else {
		logger.Warn("LIVEFEED_URL not set, running on webhook intake only")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reconciler.Run(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()
	if ingestor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ingestor.Run(ctx)
		}()
	}

	routerCfg := &router.Config{
		Logger:          logger,
		ClientsHandler:  clients.NewHandler(clientsRepo, links, logger.WithComponent("clients")),
		RazorpayWebhook: webhook.NewHandler(cfg.RazorpayWebhookSecret, reconciler, logger.WithComponent("webhook")),
		MetricsHandler:  promhttp.Handler(),
	}
	if ingestor != nil {
		routerCfg.FeedState = ingestor.State
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Workers observe the same signal context; wait for them to drain.
	wg.Wait()
	logger.Info("server stopped")
}
