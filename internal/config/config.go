package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the insights engine
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Privacy   PrivacyConfig   `yaml:"privacy"`
	Benchmark BenchmarkConfig `yaml:"benchmark"`
	Forecast  ForecastConfig  `yaml:"forecast"`
	Churn     ChurnConfig     `yaml:"churn"`
	Extract   ExtractConfig   `yaml:"extract"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds Postgres connection settings for the consent log,
// audit trail, budget ledger and raw appointment/payment tables.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis settings for the benchmark result cache and the
// shared budget ledger.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// WarehouseConfig holds Snowflake settings for batch cohort extraction.
type WarehouseConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Account   string `yaml:"account"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Warehouse string `yaml:"warehouse"`
}

// PrivacyConfig holds the anonymization parameters. MinimumGroupSize is the
// k in k-anonymity; EpsilonPerQuery and EpsilonCap drive the Laplace
// mechanism and the per-(tenant, category) budget ledger.
type PrivacyConfig struct {
	MinimumGroupSize int     `yaml:"minimum_group_size"`
	EpsilonPerQuery  float64 `yaml:"epsilon_per_query"`
	EpsilonCap       float64 `yaml:"epsilon_cap"`
	Sensitivity      float64 `yaml:"sensitivity"`
}

// BenchmarkConfig holds benchmarking engine settings.
type BenchmarkConfig struct {
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// ForecastConfig holds forecasting settings.
type ForecastConfig struct {
	MinHistoryPeriods int     `yaml:"min_history_periods"`
	BaseInterval      float64 `yaml:"base_interval"`
}

// ChurnConfig holds RFM churn scoring settings.
type ChurnConfig struct {
	RecencyWeight   float64 `yaml:"recency_weight"`
	FrequencyWeight float64 `yaml:"frequency_weight"`
	MonetaryWeight  float64 `yaml:"monetary_weight"`
	RiskThreshold   float64 `yaml:"risk_threshold"`
}

// ExtractConfig holds metric extraction settings.
type ExtractConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	CohortWorkers  int `yaml:"cohort_workers"`
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Warehouse.Database == "" {
		cfg.Warehouse.Database = "BOOKWELL_DATA_LAKE"
	}
	if cfg.Warehouse.Schema == "" {
		cfg.Warehouse.Schema = "TENANT_METRICS"
	}
	if cfg.Privacy.MinimumGroupSize == 0 {
		cfg.Privacy.MinimumGroupSize = 10
	}
	if cfg.Privacy.EpsilonPerQuery == 0 {
		cfg.Privacy.EpsilonPerQuery = 0.1
	}
	if cfg.Privacy.EpsilonCap == 0 {
		cfg.Privacy.EpsilonCap = 1.0
	}
	if cfg.Privacy.Sensitivity == 0 {
		cfg.Privacy.Sensitivity = 1.0
	}
	if cfg.Benchmark.CacheTTLSeconds == 0 {
		cfg.Benchmark.CacheTTLSeconds = 3600
	}
	if cfg.Forecast.MinHistoryPeriods == 0 {
		cfg.Forecast.MinHistoryPeriods = 3
	}
	if cfg.Forecast.BaseInterval == 0 {
		cfg.Forecast.BaseInterval = 0.10
	}
	if cfg.Churn.RecencyWeight == 0 && cfg.Churn.FrequencyWeight == 0 && cfg.Churn.MonetaryWeight == 0 {
		cfg.Churn.RecencyWeight = 0.4
		cfg.Churn.FrequencyWeight = 0.3
		cfg.Churn.MonetaryWeight = 0.3
	}
	if cfg.Churn.RiskThreshold == 0 {
		cfg.Churn.RiskThreshold = 0.6
	}
	if cfg.Extract.TimeoutSeconds == 0 {
		cfg.Extract.TimeoutSeconds = 15
	}
	if cfg.Extract.CohortWorkers == 0 {
		cfg.Extract.CohortWorkers = 8
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file is honored when present (local development).
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (ignore errors - file is optional)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	// Database override (deployments keep local defaults in config.yaml)
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SNOWFLAKE_ACCOUNT"); v != "" {
		cfg.Warehouse.Account = v
	}
	if v := os.Getenv("SNOWFLAKE_USER"); v != "" {
		cfg.Warehouse.User = v
	}
	if v := os.Getenv("SNOWFLAKE_PASSWORD"); v != "" {
		cfg.Warehouse.Password = v
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Privacy.MinimumGroupSize < 2 {
		return fmt.Errorf("privacy.minimum_group_size must be >= 2, got %d", c.Privacy.MinimumGroupSize)
	}
	if c.Privacy.EpsilonPerQuery <= 0 {
		return fmt.Errorf("privacy.epsilon_per_query must be > 0, got %g", c.Privacy.EpsilonPerQuery)
	}
	if c.Privacy.EpsilonCap < c.Privacy.EpsilonPerQuery {
		return fmt.Errorf("privacy.epsilon_cap (%g) must be >= epsilon_per_query (%g)",
			c.Privacy.EpsilonCap, c.Privacy.EpsilonPerQuery)
	}
	if c.Churn.RiskThreshold < 0 || c.Churn.RiskThreshold > 1 {
		return fmt.Errorf("churn.risk_threshold must be in [0,1], got %g", c.Churn.RiskThreshold)
	}
	return nil
}
