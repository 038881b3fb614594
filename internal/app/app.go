package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nainu25/ELEMENT-01/internal/cart"
	"github.com/nainu25/ELEMENT-01/internal/checkout"
	"github.com/nainu25/ELEMENT-01/internal/config"
	"github.com/nainu25/ELEMENT-01/internal/domain"
	"github.com/nainu25/ELEMENT-01/internal/event"
	handler "github.com/nainu25/ELEMENT-01/internal/handler/http"
	"github.com/nainu25/ELEMENT-01/internal/payment"
	"github.com/nainu25/ELEMENT-01/internal/repository"
	"github.com/nainu25/ELEMENT-01/internal/repository/postgres"
	redisrepo "github.com/nainu25/ELEMENT-01/internal/repository/redis"
	"github.com/nainu25/ELEMENT-01/internal/repository/rest"
	"github.com/nainu25/ELEMENT-01/internal/service"
	"github.com/nainu25/ELEMENT-01/pkg/database"
	"github.com/nainu25/ELEMENT-01/pkg/health"
	"github.com/nainu25/ELEMENT-01/pkg/httpclient"
	pkgkafka "github.com/nainu25/ELEMENT-01/pkg/kafka"
	"github.com/nainu25/ELEMENT-01/pkg/tracing"
)

const (
	serviceName = "storefront"

	// In-memory carts idle this long are dropped; they reload from Redis.
	sessionIdleTimeout   = 30 * time.Minute
	sessionEvictInterval = 5 * time.Minute

	paymentClaimTTL     = 5 * time.Minute
	paymentCommittedTTL = 30 * 24 * time.Hour
)

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	sessions       *cart.Sessions
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// backends holds the catalog and inventory stores selected by config.
type backends struct {
	products  repository.ProductRepository
	inventory repository.InventoryRepository
	pool      *pgxpool.Pool
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		Insecure:       true,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize Redis client.
	rdb, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// Catalog and inventory backend.
	be, err := newBackends(ctx, cfg, logger)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Initialize Kafka producer. Async so cart mutations never wait on a broker.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	kafkaCfg.Async = true
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	eventProducer := event.NewProducer(producer, logger)

	// Cart sessions persisted to Redis.
	promo := domain.NewPromotion(cfg.PromoThreshold)
	sessions := cart.NewSessions(promo, logger,
		cart.WithSink(redisrepo.NewCartStateRepository(rdb, cfg.CartTTLDuration())),
	)
	sessions.Subscribe(eventProducer.CartListener())

	// Checkout.
	reconciler, err := checkout.NewReconciler(be.inventory,
		checkout.WithMode(checkout.Mode(cfg.ReconcileMode)),
		checkout.WithLogger(logger),
	)
	if err != nil {
		be.close()
		_ = rdb.Close()
		return nil, fmt.Errorf("build reconciler: %w", err)
	}
	logger.Info("checkout reconciler configured",
		slog.String("mode", string(reconciler.Mode())),
		slog.String("inventory_backend", cfg.InventoryBackend),
	)

	payments, err := newPaymentProvider(cfg)
	if err != nil {
		be.close()
		_ = rdb.Close()
		return nil, err
	}
	logger.Info("payment provider configured", slog.String("provider", payments.Name()))

	cartService := service.NewCartService(be.products, logger)
	checkoutService := service.NewCheckoutService(
		reconciler,
		payments,
		redisrepo.NewPaymentLedger(rdb, paymentClaimTTL, paymentCommittedTTL),
		eventProducer,
		cfg.PaymentCurrency,
		logger,
	)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if be.pool != nil {
		healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
			return be.pool.Ping(ctx)
		})
	}
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	router := handler.NewRouter(sessions, cartService, checkoutService, healthHandler, logger, handler.CheckoutLimits{
		RPS:   cfg.CheckoutRateLimitRPS,
		Burst: cfg.CheckoutRateLimitBurst,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		rdb:            rdb,
		pool:           be.pool,
		producer:       producer,
		sessions:       sessions,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

func newBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backends, error) {
	if cfg.InventoryBackend == config.InventoryREST {
		baseClient := httpclient.New(httpclient.DefaultConfig())
		cbClient := httpclient.NewCircuitBreakerClient(baseClient, httpclient.DefaultCircuitBreakerConfig("inventory"), logger)
		client := rest.NewClient(cfg.InventoryRESTURL, cfg.InventoryRESTAPIKey, cbClient)
		logger.Info("using REST inventory backend", slog.String("url", cfg.InventoryRESTURL))
		return &backends{
			products:  rest.NewProductRepository(client),
			inventory: rest.NewInventoryRepository(client),
		}, nil
	}

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, serviceName)

	if cfg.RunMigrations {
		if err := database.RunMigrations(ctx, pool, postgres.Migrations(), logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")
	}

	return &backends{
		products:  postgres.NewProductRepository(pool),
		inventory: postgres.NewInventoryRepository(pool),
		pool:      pool,
	}, nil
}

func (b *backends) close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

func newPaymentProvider(cfg *config.Config) (payment.Provider, error) {
	if cfg.PaymentProvider == config.PaymentStripe {
		p, err := payment.NewStripeProvider(cfg.StripeSecretKey)
		if err != nil {
			return nil, fmt.Errorf("init stripe provider: %w", err)
		}
		return p, nil
	}
	return payment.NewMockProvider(), nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go a.sessions.RunEvictor(ctx, sessionEvictInterval, sessionIdleTimeout)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests and their cart flushes)
// 2. Tracer
// 3. Kafka producer
// 4. PostgreSQL pool
// 5. Redis client
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.pool != nil {
		a.pool.Close()
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
