package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"warungpos/backend/internal/backup"
	"warungpos/backend/internal/cache"
	"warungpos/backend/internal/cart"
	"warungpos/backend/internal/config"
	"warungpos/backend/internal/events"
	"warungpos/backend/internal/httpapi"
	"warungpos/backend/internal/logging"
	"warungpos/backend/internal/lookup"
	"warungpos/backend/internal/notify"
	"warungpos/backend/internal/service"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/store/memory"
	pgstore "warungpos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logging.Init("warungpos", cfg.Development)

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info().Msg("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Info().Msg("repository: in-memory")
	}

	summaryCache := cache.SummaryCache(cache.NoopSummaryCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSummaryCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using noop cache")
		} else {
			summaryCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info().Msg("cache: redis")
		}
	} else {
		log.Info().Msg("cache: noop")
	}

	bus := events.New()

	catalog := service.NewCatalog(repo, bus)
	ledger := service.NewLedger(repo, bus)
	aggregator := service.NewAggregator(repo, summaryCache, cfg.SummaryTTL(), cfg.ReportLocation())

	// Every ledger commit invalidates cached summaries by bumping the
	// generation counter.
	if err := bus.SubscribeLedgerCommitted(func(events.LedgerCommitted) {
		if err := summaryCache.Bump(context.Background()); err != nil {
			log.Warn().Err(err).Msg("summary cache bump failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("cache invalidation subscription failed")
	}

	watcher := notify.NewWatcher(repo, notify.LogSink{})
	if err := watcher.Subscribe(bus); err != nil {
		log.Fatal().Err(err).Msg("stock watcher subscription failed")
	}
	if err := watcher.StartSchedule(cfg.LowStockCron); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.LowStockCron).Msg("stock check schedule failed")
	}
	defer watcher.Stop()

	lookupClient := lookup.NewClient(cfg.LookupBaseURL)
	backupManager := backup.NewManager(repo, cfg.BackupDir)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), repo)
	api := httpapi.New(catalog, ledger, aggregator, cart.NewSession(), lookupClient, backupManager, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Str("shop", cfg.ShopName).Msg("warungpos backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	bus.Wait()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
