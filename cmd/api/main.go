package main

import (
	"context"
	"errors"
	"fmt"
	"fortunex-api/internal/cache"
	"fortunex-api/internal/checkout"
	"fortunex-api/internal/client"
	"fortunex-api/internal/config"
	"fortunex-api/internal/logger"
	"fortunex-api/internal/repository"
	"fortunex-api/internal/server"
	"fortunex-api/internal/service"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Environment, cfg.Log)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	db, err := client.InitDB(cfg.Database)
	if err != nil {
		log.Fatal("Database init failed", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}

	if !cfg.Stripe.Configured() {
		log.Warn("STRIPE_SECRET_KEY or STRIPE_WEBHOOK_SECRET not set; webhook will answer 500")
	}
	stripeClient := client.NewStripeClient(&cfg.Stripe)
	dexClient := client.NewDexScreenerClient(&cfg.DexScreener)

	var snapshots cache.SnapshotCache = cache.Nop{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn("Redis unreachable, snapshot cache will miss", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancel()
		snapshots = cache.NewRedisSnapshotCache(rdb, cfg.Redis.SnapshotTTL)
	}

	catalog := checkout.NewCatalog(cfg.Checkout)

	webhookEventRepo := repository.NewWebhookEventRepository(db)
	entitlementRepo := repository.NewEntitlementRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	watchlistRepo := repository.NewWatchlistRepository(db)

	entitlementService := service.NewEntitlementService(entitlementRepo)
	services := server.Services{
		Webhook: service.NewWebhookService(
			db,
			stripeClient,
			cfg.Stripe.Configured(),
			catalog,
			webhookEventRepo,
			entitlementRepo,
			log,
		),
		Analyzer: service.NewAnalyzerService(
			dexClient,
			snapshots,
			usageRepo,
			sessionRepo,
			entitlementService,
			cfg.Usage,
			log,
		),
		Entitlement: entitlementService,
		Session:     service.NewSessionService(sessionRepo),
		Watchlist:   service.NewWatchlistService(watchlistRepo),
		Catalog:     catalog,
	}

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(cfg, log, services)

	log.Info("Starting HTTP server", zap.String("addr", serverAddr), zap.String("env", cfg.Environment.Name))
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info("Signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
}
