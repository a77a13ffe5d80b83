package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	docapp "github.com/quotedesk/renderd/internal/application/document"
	"github.com/quotedesk/renderd/internal/domain/document"
	"github.com/quotedesk/renderd/internal/infrastructure/config"
	"github.com/quotedesk/renderd/internal/infrastructure/logger"
	"github.com/quotedesk/renderd/internal/infrastructure/markup"
	"github.com/quotedesk/renderd/internal/infrastructure/persistence"
	"github.com/quotedesk/renderd/internal/infrastructure/render"
	"github.com/quotedesk/renderd/internal/infrastructure/storage"
	"github.com/quotedesk/renderd/internal/infrastructure/telemetry"
	"github.com/quotedesk/renderd/internal/interfaces/http/handler"
	"github.com/quotedesk/renderd/internal/interfaces/http/middleware"
	"github.com/quotedesk/renderd/internal/interfaces/http/router"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	// Respect container CPU quotas when sizing GOMAXPROCS
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Sugar().Infof(format, args...)
	})); err != nil {
		log.Warn("Failed to set GOMAXPROCS", zap.Error(err))
	}

	log.Info("Starting renderd",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Initialize OpenTelemetry providers. Each returns a working no-op
	// when telemetry is disabled, so the rest of the wiring is unconditional.
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()

	// Continuous profiling via Pyroscope (optional)
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.ProfilerEnabled,
		ServerAddress:     cfg.Telemetry.ProfilerEndpoint,
		ApplicationName:   cfg.Telemetry.ServiceName,
		ProfileCPU:        true,
		ProfileInuseSpace: true,
		ProfileGoroutines: true,
	}, log)
	if err != nil {
		log.Warn("Failed to start profiler, continuing without it", zap.Error(err))
	} else {
		defer func() {
			if err := profiler.Stop(); err != nil {
				log.Error("Error stopping profiler", zap.Error(err))
			}
		}()
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Attach query tracing and pool metrics to GORM
	tracingPlugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:  cfg.Telemetry.Enabled,
		DBSystem: "postgresql",
	}, log)
	if err := tracingPlugin.RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Failed to register DB tracing plugin", zap.Error(err))
	}
	dbMetrics, err := telemetry.NewDBMetrics(meterProvider.Meter("renderd/db"), telemetry.DBMetricsConfig{
		Enabled: cfg.Telemetry.Enabled,
	}, log)
	if err != nil {
		log.Warn("Failed to initialize DB metrics", zap.Error(err))
	} else if err := db.DB.Use(telemetry.NewDBMetricsPlugin(dbMetrics, log)); err != nil {
		log.Warn("Failed to register DB metrics plugin", zap.Error(err))
	}

	// Initialize repositories
	quoteRepo := persistence.NewGormQuoteRepository(db.DB)
	renderJobRepo := persistence.NewGormRenderJobRepository(db.DB)

	// Markup producer (templates are parsed once at startup)
	producer, err := markup.NewProducer()
	if err != nil {
		log.Fatal("Failed to initialize markup producer", zap.Error(err))
	}

	// Render engine session factory. One engine process per request; the
	// factory only holds launch options.
	sessionFactory := render.NewChromeSessionFactory(&render.Config{
		StartupTimeout:  cfg.Render.StartupTimeout,
		RemoteURL:       cfg.Render.RemoteURL,
		Headless:        true,
		DisableGPU:      true,
		NoSandbox:       cfg.Render.NoSandbox,
		Scale:           cfg.Render.Scale,
		PrintBackground: cfg.Render.PrintBackground,
		AssetWait:       cfg.Render.AssetWait,
		Logger:          log,
	})

	// Artifact sink selection
	var sink storage.ArtifactSink
	switch cfg.Storage.Backend {
	case "s3":
		s3Sink, err := storage.NewS3ArtifactSink(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize S3 artifact sink", zap.Error(err))
		}
		sink = s3Sink
	default:
		fsSink, err := storage.NewFilesystemArtifactSink(&cfg.Storage, log)
		if err != nil {
			log.Fatal("Failed to initialize filesystem artifact sink", zap.Error(err))
		}
		sink = fsSink
	}
	log.Info("Artifact sink ready", zap.String("backend", cfg.Storage.Backend))

	// Pipeline metrics
	pipelineMetrics, err := telemetry.NewPipelineMetrics(telemetry.PipelineMetricsConfig{
		Meter:  meterProvider.Meter("renderd/pipeline"),
		Logger: log,
	})
	if err != nil {
		log.Warn("Failed to initialize pipeline metrics, continuing without them", zap.Error(err))
		pipelineMetrics = nil
	}

	// Initialize rendering service
	normalizer := docapp.NewNormalizer(quoteRepo, log)
	documentService, err := docapp.NewService(
		normalizer,
		renderJobRepo,
		producer,
		sessionFactory,
		sink,
		docapp.PipelineConfig{
			Budget: document.TimeoutBudget{
				EngineStartup: cfg.Render.StartupTimeout,
				Fetch:         cfg.Render.FetchTimeout,
				Settle:        cfg.Render.SettleTimeout,
				Paginate:      cfg.Render.PaginateTimeout,
				Upload:        cfg.Render.UploadTimeout,
				AssetWait:     cfg.Render.AssetWait,
				Slack:         cfg.Render.Slack,
			},
			MaxRetries: cfg.Render.MaxRetries,
			Page: render.PageOptions{
				MarginMM:        cfg.Render.MarginMM,
				Scale:           cfg.Render.Scale,
				PrintBackground: cfg.Render.PrintBackground,
			},
		},
		pipelineMetrics,
		log,
	)
	if err != nil {
		log.Fatal("Failed to initialize document service", zap.Error(err))
	}

	// Initialize handlers
	documentHandler := handler.NewDocumentHandler(documentService)
	systemHandler := handler.NewSystemHandler()
	healthHandler := handler.NewHealthHandler(db, sink)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. Tracing/Metrics/Profiling - Observability
	// 8. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig()))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       cfg.Telemetry.Enabled,
	}))
	if cfg.Telemetry.ProfilerEnabled {
		engine.Use(middleware.Profiling())
	}

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Setup API routes using router. Probes mount at the engine root,
	// outside the versioned prefix.
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.RegisterRoot(healthHandler)
	r.Register(documentHandler)
	r.Register(systemHandler)
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
