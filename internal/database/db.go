package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Printf("Successfully connected to PostgreSQL database: %s", cfg.Database)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Println("Running database migrations...")

	migrations := []string{
		// Daily OHLCV rows, one per instrument per trading day. Dates are
		// trading days only; gaps are meaningful and never filled.
		`CREATE TABLE IF NOT EXISTS daily_bars (
			code VARCHAR(20) NOT NULL,
			date DATE NOT NULL,
			name VARCHAR(100),
			open DECIMAL(20, 4) NOT NULL,
			high DECIMAL(20, 4) NOT NULL,
			low DECIMAL(20, 4) NOT NULL,
			close DECIMAL(20, 4) NOT NULL,
			volume DECIMAL(20, 2) NOT NULL,
			PRIMARY KEY (code, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_bars_date ON daily_bars(date)`,

		// Saved pattern definitions, classic plus proposer output
		`CREATE TABLE IF NOT EXISTS rising_patterns (
			pattern_id VARCHAR(50) PRIMARY KEY,
			pattern_name VARCHAR(200) NOT NULL,
			pattern_type VARCHAR(50) NOT NULL,
			description TEXT,
			parameters JSONB NOT NULL DEFAULT '{}',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			success_rate DECIMAL(10, 6),
			is_valid BOOLEAN,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rising_patterns_active ON rising_patterns(is_active)`,

		// One row per completed validation run; the full report is stored
		// whole so any run can be re-served without recomputation
		`CREATE TABLE IF NOT EXISTS pattern_validations (
			id SERIAL PRIMARY KEY,
			report JSONB NOT NULL,
			total_snapshots INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pattern_validations_created ON pattern_validations(created_at)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}
