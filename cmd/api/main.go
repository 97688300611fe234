package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/remidosol/express-library-api/internal/cache"
	"github.com/remidosol/express-library-api/internal/config"
	"github.com/remidosol/express-library-api/internal/db"
	catalogdomain "github.com/remidosol/express-library-api/internal/domain/catalog"
	lendingdomain "github.com/remidosol/express-library-api/internal/domain/lending"
	"github.com/remidosol/express-library-api/internal/http/handlers"
	"github.com/remidosol/express-library-api/internal/observability"
	postgresrepo "github.com/remidosol/express-library-api/internal/repository/postgres"
	"github.com/remidosol/express-library-api/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	snapshots := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer snapshots.Close()
	if err := snapshots.Ping(ctx); err != nil {
		logger.Warn("redis unreachable, book reads degrade to cache misses", "err", err)
	}

	bookRepo := postgresrepo.NewBookRepository(pool)
	userRepo := postgresrepo.NewUserRepository(pool)
	ledgerRepo := postgresrepo.NewLedgerRepository(pool)

	catalogService := catalogdomain.NewService(
		bookRepo, userRepo, snapshots, logger,
		cfg.CacheTTL, cfg.CacheTimeout, cfg.StoreTimeout,
	)
	lendingService := lendingdomain.NewService(
		bookRepo, userRepo, ledgerRepo, snapshots, logger,
		cfg.StoreTimeout, cfg.CacheTimeout,
	)

	r := server.NewRouter(cfg, logger, server.Dependencies{
		DBPinger:    pool,
		CachePinger: snapshots,
		BookHandler: handlers.NewBookHandler(catalogService),
		UserHandler: handlers.NewUserHandler(catalogService, lendingService),
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api server starting", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info("api server stopped")
}
