// Command backtest runs one offline validation pass and writes the full
// report as JSON, without starting the API server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"stock-pattern-engine/config"
	"stock-pattern-engine/internal/backtest"
	"stock-pattern-engine/internal/database"
	"stock-pattern-engine/internal/logging"
	"stock-pattern-engine/internal/patterns"
)

func main() {
	var (
		outPath     = flag.String("out", "pattern_validation.json", "report output path, - for stdout")
		patternFile = flag.String("patterns", "", "pattern definition file (default: saved patterns, then the configured classic file)")
		seed        = flag.Int64("seed", 0, "sampling seed for a reproducible run (0 = time-seeded)")
	)
	flag.Parse()

	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *seed != 0 {
		cfg.SamplerConfig.Seed = *seed
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

	ctx := context.Background()
	repo := database.NewRepository(db)
	repo.ExcludeFlaggedNames = !cfg.SamplerConfig.IncludeFlaggedNames

	defs, err := loadDefinitions(ctx, repo, *patternFile, cfg.MatcherConfig.PatternFile, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load pattern definitions")
	}

	sampler := backtest.NewSampler(repo, cfg.SamplerConfig, logging.WithComponent(logger, "sampler"))
	validator := backtest.NewValidator(sampler, cfg.ValidatorConfig, logging.WithComponent(logger, "validator"))

	report, err := validator.Run(ctx, defs, func(p backtest.Progress) {
		logger.Info().Int("processed", p.Processed).Int("total", p.Total).Msg(p.Message)
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("validation run failed")
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to encode report")
	}

	if *outPath == "-" {
		fmt.Println(string(encoded))
		return
	}
	if err := os.WriteFile(*outPath, encoded, 0644); err != nil {
		logger.Fatal().Err(err).Msg("failed to write report")
	}
	logger.Info().Str("path", *outPath).Int("patterns", len(report.Summaries)).Msg("report written")
}

// loadDefinitions resolves the pattern set for this run: an explicit file
// wins, then saved database patterns, then the configured classic file.
func loadDefinitions(ctx context.Context, repo *database.Repository, override, fallback string, logger zerolog.Logger) ([]patterns.PatternDefinition, error) {
	if override != "" {
		report, err := patterns.LoadDefinitions(override)
		if err != nil {
			return nil, err
		}
		logRejected(report, logger)
		return report.Patterns, nil
	}

	defs, err := repo.LoadPatterns(ctx)
	if err != nil {
		return nil, err
	}
	if len(defs) > 0 {
		return defs, nil
	}

	report, err := patterns.LoadDefinitions(fallback)
	if err != nil {
		return nil, err
	}
	logRejected(report, logger)
	return report.Patterns, nil
}

func logRejected(report patterns.ParseReport, logger zerolog.Logger) {
	for _, reason := range report.Rejected {
		logger.Warn().Str("reason", reason).Msg("pattern definition rejected")
	}
}
