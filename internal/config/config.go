// Package config provides unified configuration loading for the build engine.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the build engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	LLM           LLMConfig           `yaml:"llm"`
	Research      ResearchConfig      `yaml:"research"`
	Filter        FilterConfig        `yaml:"filter"`
	Validation    ValidationConfig    `yaml:"validation"`
	Usage         UsageConfig         `yaml:"usage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// DatabaseConfig holds catalog database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds external query cache settings.
type CacheConfig struct {
	Driver      string        `yaml:"driver"` // memory or redis
	SearchTTL   time.Duration `yaml:"search_ttl"`
	ResearchTTL time.Duration `yaml:"research_ttl"`
	MaxEntries  int           `yaml:"max_entries"`
	Redis       RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// LLMConfig holds settings for the generative recommendation service.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ResearchConfig holds settings for the external search/research service.
type ResearchConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	MaxResults int           `yaml:"max_results"`
	Timeout    time.Duration `yaml:"timeout"`
}

// FilterConfig holds catalog narrowing thresholds.
type FilterConfig struct {
	MinSwitches    int `yaml:"min_switches"`
	MinBoards      int `yaml:"min_boards"`
	MinKeycapSets  int `yaml:"min_keycap_sets"`
	MaxSwitches    int `yaml:"max_switches"`
	MaxBoards      int `yaml:"max_boards"`
	MaxKeycapSets  int `yaml:"max_keycap_sets"`
	SwitchesPerKit int `yaml:"switches_per_kit"`
}

// ValidationConfig holds fuzzy-match thresholds and price tolerances.
type ValidationConfig struct {
	AcceptThreshold     float64 `yaml:"accept_threshold"`
	CorrectionThreshold float64 `yaml:"correction_threshold"`
	WholeUnitTolerance  float64 `yaml:"whole_unit_tolerance"`
	PerUnitTolerance    float64 `yaml:"per_unit_tolerance"`
}

// UsageConfig holds usage recording settings.
type UsageConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		if cfg.Database.Driver == "sqlite" {
			cfg.Database.SQLite.Path = ResolveRelativePath(path, cfg.Database.SQLite.Path)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     90 * time.Second,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   75 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "buildkeeb.db",
				MaxOpenConns: 1,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Driver:      "memory",
			SearchTTL:   time.Hour,
			ResearchTTL: 7 * 24 * time.Hour,
			MaxEntries:  10000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
				Prefix:   "bk:",
			},
		},
		LLM: LLMConfig{
			BaseURL:     "https://openrouter.ai/api/v1",
			Model:       "anthropic/claude-sonnet-4.5",
			MaxTokens:   4096,
			Temperature: 0.7,
			Timeout:     60 * time.Second,
		},
		Research: ResearchConfig{
			BaseURL:    "https://api.tavily.com",
			MaxResults: 5,
			Timeout:    45 * time.Second,
		},
		Filter: FilterConfig{
			MinSwitches:    5,
			MinBoards:      3,
			MinKeycapSets:  3,
			MaxSwitches:    30,
			MaxBoards:      15,
			MaxKeycapSets:  15,
			SwitchesPerKit: 90,
		},
		Validation: ValidationConfig{
			AcceptThreshold:     0.4,
			CorrectionThreshold: 0.6,
			WholeUnitTolerance:  1.0,
			PerUnitTolerance:    0.1,
		},
		Usage: UsageConfig{
			Enabled:    true,
			BufferSize: 256,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "buildkeeb",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Database.Driver == "postgres" && c.Database.Postgres.DSN == "" {
		return fmt.Errorf("postgres driver requires a dsn")
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Cache.SearchTTL <= 0 || c.Cache.ResearchTTL <= 0 {
		return fmt.Errorf("cache ttls must be positive")
	}

	v := c.Validation
	if v.AcceptThreshold < 0 || v.AcceptThreshold > 1 || v.CorrectionThreshold < 0 || v.CorrectionThreshold > 1 {
		return fmt.Errorf("validation thresholds must be within [0,1]")
	}
	if v.CorrectionThreshold < v.AcceptThreshold {
		return fmt.Errorf("correction_threshold (%.2f) must not be below accept_threshold (%.2f)",
			v.CorrectionThreshold, v.AcceptThreshold)
	}

	f := c.Filter
	if f.MinSwitches < 0 || f.MinBoards < 0 || f.MinKeycapSets < 0 {
		return fmt.Errorf("filter minimums must not be negative")
	}
	if f.MaxSwitches < 1 || f.MaxBoards < 1 || f.MaxKeycapSets < 1 {
		return fmt.Errorf("filter caps must be at least 1")
	}

	return nil
}

// LLMEnabled reports whether a generative service is configured.
func (c *Config) LLMEnabled() bool {
	return c.LLM.APIKey != ""
}

// ResearchEnabled reports whether an external research service is configured.
func (c *Config) ResearchEnabled() bool {
	return c.Research.APIKey != ""
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	if v := os.Getenv("RESEARCH_API_KEY"); v != "" {
		cfg.Research.APIKey = v
	}

	if v := os.Getenv("RESEARCH_BASE_URL"); v != "" {
		cfg.Research.BaseURL = v
	}

	if v := os.Getenv("USAGE_ENABLED"); v == "false" {
		cfg.Usage.Enabled = false
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if targetPath == "" || targetPath == ":memory:" || filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
