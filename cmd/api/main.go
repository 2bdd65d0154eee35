package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signup_funnel_backend/internal/adapters"
	"signup_funnel_backend/internal/adapters/storage"
	"signup_funnel_backend/internal/catalog"
	"signup_funnel_backend/internal/email"
	"signup_funnel_backend/internal/events"
	"signup_funnel_backend/internal/funnel"
	"signup_funnel_backend/internal/funnel/service"
	"signup_funnel_backend/internal/funnel/session"
	"signup_funnel_backend/internal/funnel/wifisecret"
	apphttp "signup_funnel_backend/internal/http"
	"signup_funnel_backend/internal/http/router"
	leadrepo "signup_funnel_backend/internal/leads/repository"
	"signup_funnel_backend/internal/maps"
	"signup_funnel_backend/internal/notification"
	"signup_funnel_backend/internal/payments"
	"signup_funnel_backend/internal/qualification"
	"signup_funnel_backend/internal/scheduler"
	"signup_funnel_backend/migrations"
	"signup_funnel_backend/platform/config"
	"signup_funnel_backend/platform/db"
	"signup_funnel_backend/platform/logger"
	"signup_funnel_backend/platform/startup"
	"signup_funnel_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := startup.Retry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if cfg.MigrationsEnabled {
		if err := startup.Retry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, pool, migrations.FS)
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
		log.Info("database migrations complete")
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	sessions, closeSessions := initSessionStore(ctx, cfg, log)
	if closeSessions != nil {
		defer closeSessions()
	}

	taskClient, closeTasks := initTaskClient(cfg, log)
	if closeTasks != nil {
		defer closeTasks()
	}

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	sealer, err := initSealer(cfg)
	if err != nil {
		log.Error("failed to initialize wifi password sealer", "error", err)
		panic("failed to initialize wifi password sealer: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module subscribes to domain events (not HTTP-facing)
	notificationModule := notification.New(sender, cfg, log)
	notificationModule.RegisterHandlers(eventBus)
	if taskClient != nil {
		notificationModule.SetEmailQueue(taskClient)
		notificationModule.SetReminderScheduler(taskClient)
	}
	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		if err := startup.Retry(ctx, log, "ensure receipts bucket", 5, 2*time.Second, func() error {
			return storageSvc.EnsureBucketExists(ctx, cfg.GetMinioBucketReceipts())
		}); err != nil {
			log.Error("failed to ensure storage bucket exists", "error", err, "bucket", cfg.GetMinioBucketReceipts())
			panic("failed to ensure storage bucket exists: " + err.Error())
		}
		notificationModule.SetReceiptArchive(storageSvc, cfg.GetMinioBucketReceipts())
		log.Info("storage service initialized", "receiptsBucket", cfg.GetMinioBucketReceipts())
	}

	catalogModule, err := catalog.NewModule(cfg, log)
	if err != nil {
		log.Error("failed to load plan catalog", "error", err)
		panic("failed to load plan catalog: " + err.Error())
	}
	mapsModule := maps.NewModule(cfg, log)

	// Anti-Corruption Layer: the funnel only sees its own ports
	leadStore := adapters.NewFunnelLeadStore(leadrepo.New(pool))
	funnelService := service.New(service.Options{
		Sessions:      sessions,
		Geocoder:      adapters.NewFunnelGeocoder(mapsModule.Service()),
		Qualifier:     adapters.NewFunnelQualifier(qualification.NewClient(cfg, log)),
		Leads:         leadStore,
		Payments:      adapters.NewFunnelPayments(payments.NewGateway(cfg, log)),
		Prices:        catalogModule.Catalog(),
		Sealer:        sealer,
		EventBus:      eventBus,
		SessionWindow: cfg.GetSessionWindow(),
		Log:           log,
	})
	tokens := session.NewTokens(cfg.GetSessionSecret(), cfg.GetSessionIdleTTL())
	funnelModule := funnel.NewModule(funnelService, tokens, val)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:        cfg,
		Logger:        log,
		Health:        pool,
		SessionTokens: tokens,
		Modules: []apphttp.Module{
			funnelModule,
			catalogModule,
			mapsModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}

	// Let in-flight notification handlers finish before the pool closes.
	eventBus.Wait()
	log.Info("server stopped")
}

// initSessionStore uses Redis when configured and an in-process store otherwise.
func initSessionStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (session.Store, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; funnel sessions kept in memory")
		return session.NewMemoryStore(cfg.GetSessionIdleTTL(), cfg.GetInFlightTTL()), nil
	}

	rdb, err := session.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	if err := startup.Retry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
		return rdb.Ping(ctx).Err()
	}); err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}

	return session.NewRedisStore(rdb, cfg), func() {
		_ = rdb.Close()
	}
}

func initTaskClient(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; emails sent inline and checkout reminders disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func initSealer(cfg *config.Config) (*wifisecret.Sealer, error) {
	key := cfg.GetWiFiSecretKey()
	if len(key) == 0 {
		derived, err := wifisecret.DeriveKey(cfg.GetSessionSecret())
		if err != nil {
			return nil, fmt.Errorf("derive wifi key: %w", err)
		}
		key = derived
	}
	return wifisecret.New(key)
}
