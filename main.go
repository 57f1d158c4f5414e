package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"stock-pattern-engine/config"
	"stock-pattern-engine/internal/api"
	"stock-pattern-engine/internal/auth"
	"stock-pattern-engine/internal/backtest"
	"stock-pattern-engine/internal/cache"
	"stock-pattern-engine/internal/database"
	"stock-pattern-engine/internal/logging"
	"stock-pattern-engine/internal/patterns"
	"stock-pattern-engine/internal/screener"
)

func main() {
	// Optional .env for local development
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LoggingConfig)

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.RunMigrations(ctx); err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	repo := database.NewRepository(db)
	repo.ExcludeFlaggedNames = !cfg.SamplerConfig.IncludeFlaggedNames

	seedPatterns(ctx, cfg, repo, logger)
	cancel()

	var cacheSvc *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheSvc, err = cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			logger.Warn().Err(err).Msg("cache disabled")
			cacheSvc = nil
		}
	}

	var authSvc *auth.Service
	if cfg.AuthConfig.Enabled {
		authSvc = auth.NewService(cfg.AuthConfig)
	} else {
		logger.Warn().Msg("API authentication is disabled")
	}

	scr := screener.New(cfg.ScreenerConfig, logging.WithComponent(logger, "screener"))
	sampler := backtest.NewSampler(repo, cfg.SamplerConfig, logging.WithComponent(logger, "sampler"))

	server := api.NewServer(cfg, repo, scr, sampler, cacheSvc, authSvc, logging.WithComponent(logger, "api"))

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			logger.Fatal().Err(err).Msg("server failed")
		}
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	if cacheSvc != nil {
		if err := cacheSvc.Close(); err != nil {
			logger.Error().Err(err).Msg("cache close error")
		}
	}
	logger.Info().Msg("stopped")
}

// seedPatterns loads the bundled classic definitions into an empty database
// so a fresh install can match immediately.
func seedPatterns(ctx context.Context, cfg *config.Config, repo *database.Repository, logger zerolog.Logger) {
	defs, err := repo.LoadPatterns(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("could not check saved patterns")
		return
	}
	if len(defs) > 0 {
		return
	}

	report, err := patterns.LoadDefinitions(cfg.MatcherConfig.PatternFile)
	if err != nil {
		logger.Warn().Err(err).Str("file", cfg.MatcherConfig.PatternFile).Msg("no classic pattern file to seed from")
		return
	}
	for _, reason := range report.Rejected {
		logger.Warn().Str("reason", reason).Msg("pattern definition rejected")
	}
	if len(report.Patterns) == 0 {
		return
	}

	if err := repo.UpsertPatterns(ctx, report.Patterns); err != nil {
		logger.Warn().Err(err).Msg("failed to seed classic patterns")
		return
	}
	logger.Info().Int("patterns", len(report.Patterns)).Msg("seeded classic pattern definitions")
}
