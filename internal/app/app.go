package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/event"
	handler "github.com/vidtube/backend/internal/handler/http"
	"github.com/vidtube/backend/internal/media"
	mediamemory "github.com/vidtube/backend/internal/media/memory"
	s3media "github.com/vidtube/backend/internal/media/s3"
	"github.com/vidtube/backend/internal/repository"
	"github.com/vidtube/backend/internal/repository/memory"
	"github.com/vidtube/backend/internal/repository/mongodb"
	"github.com/vidtube/backend/internal/repository/postgres"
	"github.com/vidtube/backend/internal/service"
	"github.com/vidtube/backend/pkg/database"
	"github.com/vidtube/backend/pkg/health"
	pkgkafka "github.com/vidtube/backend/pkg/kafka"
	"github.com/vidtube/backend/pkg/middleware"
	"github.com/vidtube/backend/pkg/tracing"
)

// App wires together all dependencies and runs the vidtube API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	store          *repository.Store
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.closeInfra()
		}
	}()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	healthHandler := health.NewHandler()

	// Storage backend.
	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.store = store
	healthHandler.RegisterCritical(cfg.StorageDriver, store.Ping)

	// Rate limiter (optional).
	var limiter *middleware.RateLimiter
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		policy := middleware.FailOpen
		if cfg.RateLimitFailClosed {
			policy = middleware.FailClosed
		}
		limiter = middleware.NewRateLimiter(rdb, cfg.RateLimitRequests, cfg.RateLimitWindow, policy, logger)
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		logger.Info("rate limiting enabled",
			slog.Int("requests", cfg.RateLimitRequests),
			slog.Duration("window", cfg.RateLimitWindow),
		)
	}

	// Event publishing.
	var publisher event.Publisher = event.Noop{}
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = event.NewProducer(a.producer, logger)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Media host.
	host, mediaHandler, err := openMediaHost(ctx, cfg)
	if err != nil {
		return nil, err
	}
	uploader := media.NewUploader(host, cfg.UploadTempDir, logger)

	// Build the dependency graph.
	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		AccessSecret:  cfg.AccessTokenSecret,
		AccessExpiry:  cfg.AccessTokenExpiry,
		RefreshSecret: cfg.RefreshTokenSecret,
		RefreshExpiry: cfg.RefreshTokenExpiry,
		Issuer:        cfg.TokenIssuer,
	})
	tokens := service.NewTokenService(store.Users, jwtManager, logger)
	services := handler.Services{
		Users:    service.NewUserService(store.Users, tokens, auth.NewPasswordHasher(cfg.BcryptCost), uploader, publisher, logger),
		Tokens:   tokens,
		Channels: service.NewChannelService(store.Users, store.Subscriptions, store.Channels, publisher, logger),
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(services, healthHandler, handler.RouterConfig{
		ServiceName:       cfg.ServiceName,
		CORS:              corsCfg,
		CookieSecure:      cfg.CookieSecure,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		MediaHandler:      mediaHandler,
		RateLimiter:       limiter,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ok = true
	return a, nil
}

// OpenStore connects the configured storage backend.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*repository.Store, error) {
	switch cfg.StorageDriver {
	case config.StorageMongo:
		mcfg := cfg.Mongo()
		client, err := database.NewMongoClient(ctx, mcfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to mongodb: %w", err)
		}
		db := client.Database(mcfg.Database)
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("ensure mongodb indexes: %w", err)
		}
		logger.Info("connected to MongoDB", slog.String("database", mcfg.Database))
		return mongodb.NewStore(client, db), nil

	case config.StoragePostgres:
		pgCfg := cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", pgCfg.Host),
			slog.Int("port", pgCfg.Port),
			slog.String("database", pgCfg.DBName),
		)
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, cfg.ServiceName); err != nil {
			logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
		}
		if err := database.RunMigrations(ctx, pool, postgres.Migrations(), logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")
		return postgres.NewStore(pool), nil

	default:
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.New().Repositories(), nil
	}
}

// openMediaHost returns the configured media host and, for the memory host,
// the handler serving its objects.
func openMediaHost(ctx context.Context, cfg *config.Config) (media.Host, http.Handler, error) {
	if cfg.MediaDriver == config.MediaS3 {
		host, err := s3media.New(ctx, s3media.Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create s3 media host: %w", err)
		}
		return host, nil, nil
	}

	host := mediamemory.New(cfg.LocalMediaBaseURL())
	return host, host, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("storage", a.cfg.StorageDriver),
			slog.String("media", a.cfg.MediaDriver),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.closeInfra()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. Redis client
// 5. Storage backend
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	errs = append(errs, a.closeInfra()...)

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeInfra releases everything but the HTTP server. Components that were
// never opened are skipped.
func (a *App) closeInfra() []error {
	var errs []error

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.producer = nil
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.rdb = nil
	}

	if a.store != nil && a.store.Close != nil {
		storeCtx, storeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer storeCancel()
		if err := a.store.Close(storeCtx); err != nil {
			a.logger.Error("store close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.store = nil
	}

	return errs
}
