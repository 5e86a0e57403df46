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

	"lexpay/internal/adapter/gateway"
	httpHandler "lexpay/internal/adapter/http/handler"
	"lexpay/internal/adapter/storage/memory"
	pgStorage "lexpay/internal/adapter/storage/postgres"
	redisStorage "lexpay/internal/adapter/storage/redis"
	"lexpay/internal/core/ports"
	"lexpay/internal/migrate"
	"lexpay/internal/scheduler"
	"lexpay/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// storage bundles the persistence ports for one driver.
type storage struct {
	txRepo     ports.TransactionRepository
	eventRepo  ports.TransactionEventRepository
	grantRepo  ports.GrantRepository
	idempRepo  ports.IdempotencyRepository
	transactor ports.DBTransactor
	idempCache ports.IdempotencyCache
	marker     ports.EventMarker
	limiter    ports.RateLimiter
	health     []ports.HealthChecker
	close      func()
}

func serveCommand(a *app) *cobra.Command {
	var (
		openAPIPath string
		autoMigrate bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the grant sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), openAPIPath, autoMigrate)
		},
	}
	cmd.Flags().StringVar(&openAPIPath, "openapi", "docs/api/openapi.yaml", "OpenAPI document served at /swagger")
	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "apply pending migrations before serving (postgres only)")
	return cmd
}

func (a *app) serve(ctx context.Context, openAPIPath string, autoMigrate bool) error {
	cfg, log := a.cfg, a.log

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting lexpay")

	if autoMigrate && cfg.Storage.Driver == "postgres" {
		if err := migrate.Up(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
		log.Info().Msg("migrations applied")
	}

	store, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	defer store.close()

	// Core services
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	gw := gateway.NewClient(cfg.Gateway, sigSvc, log)
	catalog := service.NewStaticCatalog(service.DefaultCatalogItems())

	// Business services
	accessSvc := service.NewAccessService(store.grantRepo, log)
	purchaseSvc := service.NewPurchaseService(
		catalog,
		gw,
		store.txRepo,
		store.eventRepo,
		store.idempRepo,
		store.idempCache,
		store.marker,
		accessSvc,
		store.transactor,
		log,
	)

	sweeper, err := scheduler.NewGrantSweeper(accessSvc, cfg.Scheduler.GrantSweepInterval, log)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer func() {
		if err := sweeper.Shutdown(); err != nil {
			log.Error().Err(err).Msg("grant sweeper shutdown failed")
		}
	}()

	// Swagger UI document
	if doc, err := os.ReadFile(openAPIPath); err == nil {
		httpHandler.SetSwaggerSpec(doc)
		log.Info().Msg("OpenAPI document loaded, Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI document not found, Swagger UI will be unavailable")
	}

	gin.SetMode(cfg.Server.Mode)
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		PurchaseSvc:    purchaseSvc,
		AccessSvc:      accessSvc,
		Catalog:        catalog,
		Gateway:        gw,
		TokenSvc:       tokenSvc,
		RateLimiter:    store.limiter,
		RateLimits:     cfg.RateLimit,
		HealthCheckers: append(store.health, gateway.NewHealthCheck(gw)),
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-sigCtx.Done():
	}

	// In-flight gateway calls are detached from request contexts; give them
	// room to finish every retry and record their outcome.
	grace := cfg.Gateway.ShutdownGrace()
	log.Info().Dur("grace", grace).Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
	return nil
}

// openStorage connects the configured driver. The memory driver keeps all
// state in process and is meant for local runs and demos.
func (a *app) openStorage(ctx context.Context) (*storage, error) {
	cfg, log := a.cfg, a.log

	if cfg.Storage.Driver == "memory" {
		log.Warn().Msg("using in-memory storage, state is lost on exit")
		mem := memory.NewStore()
		cache := memory.NewCache()
		return &storage{
			txRepo:     mem.Transactions(),
			eventRepo:  mem.Events(),
			grantRepo:  mem.Grants(),
			idempRepo:  mem.Idempotency(),
			transactor: mem,
			idempCache: cache,
			marker:     cache,
			limiter:    cache,
			health:     []ports.HealthChecker{mem},
			close:      func() {},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	log.Info().Msg("PostgreSQL connected")

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}
	log.Info().Msg("Redis connected")

	return &storage{
		txRepo:     pgStorage.NewTransactionRepo(pool),
		eventRepo:  pgStorage.NewEventRepo(pool),
		grantRepo:  pgStorage.NewGrantRepo(pool),
		idempRepo:  pgStorage.NewIdempotencyRepo(pool),
		transactor: pgStorage.NewTransactor(pool),
		idempCache: redisStorage.NewIdempotencyCache(rdb),
		marker:     redisStorage.NewEventMarker(rdb),
		limiter:    redisStorage.NewRateLimitStore(rdb),
		health:     []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		close: func() {
			_ = rdb.Close()
			pool.Close()
		},
	}, nil
}
