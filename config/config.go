package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config is the explicit configuration object for a whole pipeline run.
// Every component receives its section through a constructor; nothing in
// the engine reads ambient state after startup.
type Config struct {
	ServerConfig    ServerConfig    `json:"server"`
	DatabaseConfig  DatabaseConfig  `json:"database"`
	RedisConfig     RedisConfig     `json:"redis"`
	AuthConfig      AuthConfig      `json:"auth"`
	LoggingConfig   LoggingConfig   `json:"logging"`
	MatcherConfig   MatcherConfig   `json:"matcher"`
	ScreenerConfig  ScreenerConfig  `json:"screener"`
	SamplerConfig   SamplerConfig   `json:"sampler"`
	ValidatorConfig ValidatorConfig `json:"validator"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ProductionMode  bool   `json:"production_mode"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for result caching
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	CacheTTL int    `json:"cache_ttl"` // Seconds
}

// AuthConfig holds API authentication configuration
type AuthConfig struct {
	Enabled     bool   `json:"enabled"`
	JWTSecret   string `json:"jwt_secret"`
	APIToken    string `json:"api_token"`    // Shared secret exchanged for a JWT
	TokenTTLMin int    `json:"token_ttl_min"` // Minutes
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Output     string `json:"output"`      // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"` // JSON or console writer
}

// MatcherConfig holds pattern matching configuration
type MatcherConfig struct {
	PatternFile string `json:"pattern_file"` // Fallback when the database has no patterns
}

// ScreenerConfig holds pre-screening configuration
type ScreenerConfig struct {
	WorkerCount   int `json:"worker_count"`
	MaxCandidates int `json:"max_candidates"` // 0 = no cap
	HistoryDays   int `json:"history_days"`   // Trailing bars fetched per instrument
}

// SamplerConfig holds historical snapshot sampling configuration
type SamplerConfig struct {
	RisingSampleCount   int     `json:"rising_sample_count"`
	RisingThreshold     float64 `json:"rising_threshold"`
	WindowSampleCount   int     `json:"window_sample_count"`
	WindowDaysBack      []int   `json:"window_days_back"` // Start offsets of the stratified windows
	WindowSpanDays      int     `json:"window_span_days"`
	TrailingBars        int     `json:"trailing_bars"`    // Bars handed to the matcher per snapshot
	MinTrailingBars     int     `json:"min_trailing_bars"`
	HorizonDays         int     `json:"horizon_days"` // Forward-return horizon in trading days
	IncludeFlaggedNames bool    `json:"include_flagged_names"` // Keep special-treatment names in samples
	Seed                int64   `json:"seed"`                  // 0 = time-seeded
}

// ValidatorConfig holds backtest validation configuration
type ValidatorConfig struct {
	SuccessThresholds    []float64 `json:"success_thresholds"`
	PrimaryThreshold     float64   `json:"primary_threshold"`
	MinSuccessRate       float64   `json:"min_success_rate"` // is_valid floor
	ProgressEverySamples int       `json:"progress_every_samples"`
}

// Load reads config.json if present and applies environment overrides.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides applies environment variable overrides; these take
// precedence over config.json values.
func applyEnvOverrides(cfg *Config) {
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("SERVER_PRODUCTION", "false") == "true"

	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", boolString(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)

	cfg.AuthConfig.Enabled = getEnvOrDefault("AUTH_ENABLED", boolString(cfg.AuthConfig.Enabled)) == "true"
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.APIToken = getEnvOrDefault("AUTH_API_TOKEN", cfg.AuthConfig.APIToken)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", boolString(cfg.LoggingConfig.JSONFormat)) == "true"

	cfg.MatcherConfig.PatternFile = getEnvOrDefault("PATTERN_FILE", cfg.MatcherConfig.PatternFile)
}

func applyDefaults(cfg *Config) {
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.AllowedOrigins == "" {
		cfg.ServerConfig.AllowedOrigins = "*"
	}
	if cfg.ServerConfig.ReadTimeout == 0 {
		cfg.ServerConfig.ReadTimeout = 30
	}
	if cfg.ServerConfig.WriteTimeout == 0 {
		cfg.ServerConfig.WriteTimeout = 30
	}
	if cfg.ServerConfig.ShutdownTimeout == 0 {
		cfg.ServerConfig.ShutdownTimeout = 10
	}

	if cfg.DatabaseConfig.Host == "" {
		cfg.DatabaseConfig.Host = "localhost"
	}
	if cfg.DatabaseConfig.Port == 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}

	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.RedisConfig.CacheTTL == 0 {
		cfg.RedisConfig.CacheTTL = 300
	}

	if cfg.AuthConfig.TokenTTLMin == 0 {
		cfg.AuthConfig.TokenTTLMin = 60
	}

	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
	if cfg.LoggingConfig.Output == "" {
		cfg.LoggingConfig.Output = "stdout"
	}

	if cfg.MatcherConfig.PatternFile == "" {
		cfg.MatcherConfig.PatternFile = "configs/classic_patterns.json"
	}

	if cfg.ScreenerConfig.WorkerCount == 0 {
		cfg.ScreenerConfig.WorkerCount = 10
	}
	if cfg.ScreenerConfig.MaxCandidates == 0 {
		cfg.ScreenerConfig.MaxCandidates = 50
	}
	if cfg.ScreenerConfig.HistoryDays == 0 {
		cfg.ScreenerConfig.HistoryDays = 30
	}

	if cfg.SamplerConfig.RisingSampleCount == 0 {
		cfg.SamplerConfig.RisingSampleCount = 1500
	}
	if cfg.SamplerConfig.RisingThreshold == 0 {
		cfg.SamplerConfig.RisingThreshold = 0.03
	}
	if cfg.SamplerConfig.WindowSampleCount == 0 {
		cfg.SamplerConfig.WindowSampleCount = 500
	}
	if len(cfg.SamplerConfig.WindowDaysBack) == 0 {
		cfg.SamplerConfig.WindowDaysBack = []int{180, 90, 60}
	}
	if cfg.SamplerConfig.WindowSpanDays == 0 {
		cfg.SamplerConfig.WindowSpanDays = 30
	}
	if cfg.SamplerConfig.TrailingBars == 0 {
		cfg.SamplerConfig.TrailingBars = 30
	}
	if cfg.SamplerConfig.MinTrailingBars == 0 {
		cfg.SamplerConfig.MinTrailingBars = 10
	}
	if cfg.SamplerConfig.HorizonDays == 0 {
		cfg.SamplerConfig.HorizonDays = 3
	}

	if len(cfg.ValidatorConfig.SuccessThresholds) == 0 {
		cfg.ValidatorConfig.SuccessThresholds = []float64{0.01, 0.03, 0.05}
	}
	if cfg.ValidatorConfig.PrimaryThreshold == 0 {
		cfg.ValidatorConfig.PrimaryThreshold = 0.03
	}
	if cfg.ValidatorConfig.MinSuccessRate == 0 {
		cfg.ValidatorConfig.MinSuccessRate = 0.30
	}
	if cfg.ValidatorConfig.ProgressEverySamples == 0 {
		cfg.ValidatorConfig.ProgressEverySamples = 200
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
