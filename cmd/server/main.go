package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appfee "github.com/academy/backend/internal/application/fee"
	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/infrastructure/cache"
	"github.com/academy/backend/internal/infrastructure/config"
	"github.com/academy/backend/internal/infrastructure/event"
	"github.com/academy/backend/internal/infrastructure/logger"
	"github.com/academy/backend/internal/infrastructure/migration"
	"github.com/academy/backend/internal/infrastructure/notification"
	"github.com/academy/backend/internal/infrastructure/persistence"
	"github.com/academy/backend/internal/infrastructure/scheduler"
	"github.com/academy/backend/internal/infrastructure/storage"
	"github.com/academy/backend/internal/infrastructure/telemetry"
	"github.com/academy/backend/internal/interfaces/http/handler"
	"github.com/academy/backend/internal/interfaces/http/middleware"
	"github.com/academy/backend/internal/interfaces/http/router"
	"github.com/academy/backend/migrations"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	// Telemetry first so the database plugin and services pick up the
	// global providers.
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown(log, "tracer provider", tracerProvider.Shutdown)

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer shutdown(log, "meter provider", meterProvider.Shutdown)

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	defer shutdown(log, "logger provider", loggerProvider.Shutdown)
	log = loggerProvider.Bridge(log, logger.ParseLevel(cfg.Log.Level))

	log.Info("Starting academy payments backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(log); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	if cfg.Telemetry.DBTraceEnabled {
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        "postgresql",
		}, log)
		if err := plugin.RegisterOtelGorm(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	if cfg.Database.MigrateOnStart {
		if err := migrate(db, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// Repositories
	accountRepo := persistence.NewGormFeeAccountRepository(db.DB)
	entryRepo := persistence.NewGormLedgerEntryRepository(db.DB)
	catalog := persistence.NewGormFeeCatalog(db.DB)
	contacts := persistence.NewGormStudentContactDirectory(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	stores := cache.NewStoreFactory(cfg.Redis, cache.WithLogger(log))
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing Redis client", zap.Error(err))
		}
	}()

	var counter fee.SequenceCounter = persistence.NewGormSequenceCounter(db.DB)
	if cfg.Counter.Backend == config.CounterBackendRedis {
		counter, err = stores.SequenceCounter(cfg.Counter.KeyTTL)
		if err != nil {
			log.Fatal("Failed to initialize sequence counter", zap.Error(err))
		}
	}

	paymentMetrics, err := telemetry.NewPaymentMetrics(meterProvider.Meter("academy-backend/fee"))
	if err != nil {
		log.Fatal("Failed to register payment metrics", zap.Error(err))
	}

	notifier, err := notification.New(cfg.Reminder, contacts, log)
	if err != nil {
		log.Fatal("Failed to initialize notifier", zap.Error(err))
	}

	// Event bus: every fee event is audited, settlement notices are sent at
	// most once per event even across instances.
	idempotency, err := stores.IdempotencyStore()
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(appfee.NewAuditLogHandler(log))
	eventBus.Subscribe(event.NewIdempotentHandler(appfee.NewAccountSettledHandler(notifier, log), idempotency, log))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer shutdown(log, "event bus", eventBus.Stop)

	// Application services
	numbers := appfee.NewNumberGenerator(counter, cfg.Fee.ReceiptPrefix, cfg.Fee.InvoicePrefix, cfg.Fee.Location())
	numbers.SetMetrics(paymentMetrics)

	ledgerOpts := []appfee.LedgerServiceOption{
		appfee.WithPolicy(fee.Policy{
			EMIReminderLeadDays:     cfg.Fee.EMIReminderLeadDays,
			MonthlyReminderLeadDays: cfg.Fee.MonthlyReminderLeadDays,
			PartialPaymentCadence:   fee.ReminderFrequency(cfg.Fee.PartialPaymentCadence),
		}),
		appfee.WithFeeLookups(catalog, catalog),
		appfee.WithEventPublisher(eventBus),
		appfee.WithMetrics(paymentMetrics),
		appfee.WithLogger(log),
	}

	var archive *storage.S3InvoiceArchive
	if cfg.Storage.Enabled {
		archive, err = storage.NewS3InvoiceArchive(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize invoice archive", zap.Error(err))
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare invoice bucket", zap.Error(err))
		}
		ledgerOpts = append(ledgerOpts, appfee.WithInvoiceArchive(archive))
		log.Info("Invoice archive enabled", zap.String("bucket", archive.Bucket()))
	}

	ledger := appfee.NewLedgerService(txScope, accountRepo, entryRepo, numbers, ledgerOpts...)

	reminders := appfee.NewReminderService(accountRepo, notifier, log, cfg.Reminder.BatchSize)
	reminders.SetEventPublisher(eventBus)
	reminders.SetMetrics(paymentMetrics)

	var reminderHandler *handler.ReminderHandler
	if cfg.Reminder.Enabled {
		schedulerConfig := scheduler.DefaultReminderSchedulerConfig()
		schedulerConfig.Interval = cfg.Reminder.Interval
		reminderScheduler, err := scheduler.NewReminderScheduler(reminders, log, schedulerConfig)
		if err != nil {
			log.Fatal("Failed to create reminder scheduler", zap.Error(err))
		}
		if err := reminderScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start reminder scheduler", zap.Error(err))
		}
		defer shutdown(log, "reminder scheduler", reminderScheduler.Stop)
		reminderHandler = handler.NewReminderHandler(reminderScheduler)
		log.Info("Reminder scheduler started",
			zap.Duration("interval", schedulerConfig.Interval),
			zap.String("dispatcher", cfg.Reminder.Dispatcher),
		)
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	tenantConfig := middleware.DefaultTenantConfig()
	tenantConfig.Logger = log

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins

	// Order matters: request ID and logger come before everything that
	// logs, tracing wraps the tenant check so rejections are traced too.
	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.Tracing(cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled),
		middleware.CORSWithConfig(corsConfig),
		middleware.Tenant(tenantConfig),
		middleware.SpanEnricher(),
		middleware.HTTPMetrics(meterProvider.Meter("academy-backend/http")),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	var writeGuard []gin.HandlerFunc
	if cfg.HTTP.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateWindow)
		defer limiter.Stop()
		writeGuard = append(writeGuard, middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimit),
			zap.Duration("window", cfg.HTTP.RateWindow),
		)
	}

	checks := map[string]handler.HealthCheck{
		"database": db.Ping,
	}
	if cfg.Counter.Backend == config.CounterBackendRedis {
		checks["redis"] = func(ctx context.Context) error {
			client, err := stores.Client()
			if err != nil {
				return err
			}
			return client.Ping(ctx).Err()
		}
	}
	if archive != nil {
		checks["storage"] = archive.Ping
	}
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, checks)
	engine.GET("/healthz", systemHandler.Live)
	engine.GET("/health", systemHandler.Ready)
	engine.GET("/ready", systemHandler.Ready)

	r := router.NewRouter(engine)
	for _, g := range router.FeeRoutes(router.FeeHandlers{
		Accounts:  handler.NewFeeAccountHandler(ledger, cfg.Fee.Location()),
		Payments:  handler.NewPaymentHandler(ledger, cfg.Fee.Location()),
		Reminders: reminderHandler,
	}, writeGuard...) {
		r.Register(g)
		log.Debug("Routes registered", zap.String("group", g.Name()), zap.Int("routes", len(g.Routes())))
	}
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.Info)
	r.Register(systemRoutes)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

// migrate applies the migrations built into the binary
func migrate(db *persistence.Database, log *zap.Logger) error {
	sqlDB, err := db.SQLDB()
	if err != nil {
		return err
	}
	m, err := migration.NewFromFS(sqlDB, migrations.FS, log)
	if err != nil {
		return err
	}
	// Closing the migrator would close sqlDB, which the server still uses.
	return m.Up()
}

// shutdown runs a component's Shutdown/Stop with a bounded timeout
func shutdown(log *zap.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error("Error stopping "+name, zap.Error(err))
	}
}
