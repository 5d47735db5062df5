package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/schedule-builder/internal/cache"
	"github.com/benvon/schedule-builder/internal/config"
	"github.com/benvon/schedule-builder/internal/database"
	"github.com/benvon/schedule-builder/internal/handlers"
	"github.com/benvon/schedule-builder/internal/logger"
	"github.com/benvon/schedule-builder/internal/middleware"
	"github.com/benvon/schedule-builder/internal/migrate"
	"github.com/benvon/schedule-builder/internal/models"
	"github.com/benvon/schedule-builder/internal/queue"
	"github.com/benvon/schedule-builder/internal/services/oidc"
	"github.com/benvon/schedule-builder/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	migrateFlag := flag.Bool("migrate", false, "Apply the database schema before serving")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("oidc_provider", cfg.OIDCProvider),
		zap.Bool("redis_enabled", cfg.RedisURL != ""),
		zap.Bool("rabbitmq_enabled", cfg.RabbitMQURL != ""),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	tracingEnabled := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else if tp, err := telemetry.InitTracer(context.Background(), telemetry.ServerServiceName, cfg.OTELEndpoint); err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			tracingEnabled = true
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	if *migrateFlag {
		if err := db.Migrate(context.Background()); err != nil {
			zapLogger.Fatal("failed_to_apply_schema", zap.Error(err))
		}
		zapLogger.Info("schema_applied")
	}

	// Redis backs the schedule cache and the rate limiter; without it both stay in process
	var redisClient *redis.Client
	var redisPinger handlers.Pinger
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		redisPinger = handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
		zapLogger.Info("connected_to_redis")
	}

	var jobQueue queue.JobQueue
	var queuePinger handlers.Pinger
	if cfg.RabbitMQURL != "" {
		q, err := connectQueue(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Warn("revision_archive_disabled", zap.Error(err))
		} else {
			jobQueue = q
			queuePinger = handlers.PingFunc(q.HealthCheck)
			defer func() {
				if err := q.Close(); err != nil {
					zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
				}
			}()
		}
	}

	// Repositories
	var schedules database.ScheduleRepositoryInterface = database.NewScheduleRepository(db)
	if redisClient != nil {
		schedules = cache.NewScheduleCache(schedules, redisClient, cfg.ScheduleCacheTTL, zapLogger)
	}
	revisions := database.NewRevisionRepository(db)
	users := database.NewUserRepository(db)
	oidcConfigRepo := database.NewOIDCConfigRepository(db)
	settings := database.NewSettingsRepository(db)

	// Services
	oidcProvider := oidc.NewProvider(oidcConfigRepo, zapLogger)
	jwksManager := oidc.NewJWKSManager(time.Hour)
	authenticator := oidc.NewAuthenticator(oidcProvider, jwksManager, cfg.OIDCProvider, cfg.OIDCAudience, zapLogger)
	migrator := migrate.New(migrate.WithLogger(zapLogger))

	// Handlers
	authHandler := handlers.NewAuthHandler(oidcProvider, cfg.OIDCProvider, zapLogger)
	scheduleHandler := handlers.NewScheduleHandler(schedules, revisions, jobQueue, migrator, zapLogger)
	healthChecker := handlers.NewHealthCheckerWithDeps(handlers.PingFunc(db.PingContext), redisPinger, queuePinger)
	openAPIHandler := handlers.NewOpenAPIHandler(cfg.OpenAPIPath)

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order: the first Use is outermost
	if tracingEnabled {
		r.Use(otelmux.Middleware(telemetry.ServerServiceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	corsReloader := middleware.NewCORSReloader(settings, cfg.FrontendURL, zapLogger, cfg.ReloadInterval)
	r.Use(corsReloader.Middleware())
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize, zapLogger))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.Recover(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	limiterStore, err := middleware.NewRateLimitStore(redisClient)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}
	authLimiter := middleware.NewRateLimitReloader(limiterStore, settings, models.RateScopeAuth, cfg.DefaultRateLimit, zapLogger, cfg.ReloadInterval)
	scheduleLimiter := middleware.NewRateLimitReloader(limiterStore, settings, models.RateScopeSchedule, cfg.DefaultRateLimit, zapLogger, cfg.ReloadInterval)
	authMW := middleware.Auth(authenticator, users, zapLogger)

	// Public routes
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", handlers.VersionInfo).Methods(http.MethodGet)
	openAPIHandler.RegisterRoutes(r)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	authRouter := apiRouter.PathPrefix("/auth").Subrouter()
	loginRouter := authRouter.PathPrefix("").Subrouter()
	loginRouter.Use(authLimiter.Middleware())
	authHandler.RegisterPublicRoutes(loginRouter)

	meRouter := authRouter.PathPrefix("").Subrouter()
	meRouter.Use(authMW)
	meRouter.Use(authLimiter.Middleware())
	authHandler.RegisterRoutes(meRouter)

	scheduleRouter := apiRouter.PathPrefix("/schedule").Subrouter()
	scheduleRouter.Use(authMW)
	scheduleRouter.Use(scheduleLimiter.Middleware())
	scheduleHandler.RegisterRoutes(scheduleRouter)

	// Preflight requests are answered by the CORS middleware; this route only makes them match
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   35 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	reloadCtx, reloadCancel := context.WithCancel(context.Background())
	defer reloadCancel()
	go corsReloader.Start(reloadCtx)
	go authLimiter.Start(reloadCtx)
	go scheduleLimiter.Start(reloadCtx)

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	reloadCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectQueue dials RabbitMQ with exponential backoff to ride out broker startup
func connectQueue(url string, zapLogger *zap.Logger) (*queue.RabbitMQQueue, error) {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, zapLogger)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q, nil
		}
		lastErr = err

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}
	return nil, lastErr
}
