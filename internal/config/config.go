// Package config loads navfolio settings from TOML files and the environment
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for navfolio
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Database    DatabaseConfig  `toml:"database"`
	Cache       CacheConfig     `toml:"cache"`
	Logging     LoggingConfig   `toml:"logging"`
	Portfolio   PortfolioConfig `toml:"portfolio"`
	Sync        SyncConfig      `toml:"sync"`
	Tax         TaxConfig       `toml:"tax"`
}

// ServerConfig holds gRPC server configuration
type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	APIToken string `toml:"api_token"`
}

// Address returns the listen address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds postgres connection settings.
// ConnString, when set, takes precedence over the individual fields.
type DatabaseConfig struct {
	ConnString string `toml:"conn_string"`
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	User       string `toml:"user"`
	Password   string `toml:"password"`
	Name       string `toml:"name"`
	SSLMode    string `toml:"ssl_mode"`
}

// DSN builds the lib/pq connection string
func (c *DatabaseConfig) DSN() string {
	if c.ConnString != "" {
		return c.ConnString
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// CacheConfig holds the SurrealDB returns cache settings.
// An empty Address disables the cache.
type CacheConfig struct {
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Timeout   string `toml:"timeout"`
}

// Enabled reports whether a cache address is configured
func (c *CacheConfig) Enabled() bool {
	return strings.TrimSpace(c.Address) != ""
}

// GetTimeout parses and returns the timeout duration
func (c *CacheConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// PortfolioConfig holds aggregation settings
type PortfolioConfig struct {
	MaxNAVAgeDays int `toml:"max_nav_age_days"`
}

// SyncConfig holds settings for the returns cache refresh job
type SyncConfig struct {
	Workers         int     `toml:"workers"`
	WritesPerSecond float64 `toml:"writes_per_second"`
}

// TaxConfig lists the fiscal years seeded with default equity tax rules
type TaxConfig struct {
	SeedYears []int `toml:"seed_years"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8080,
			APIToken: "dev-token",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			Name:     "navfolio",
			SSLMode:  "disable",
		},
		Cache: CacheConfig{
			Namespace: "navfolio",
			Database:  "navfolio",
			Username:  "root",
			Password:  "root",
			Timeout:   "5s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Portfolio: PortfolioConfig{
			MaxNAVAgeDays: 10,
		},
		Sync: SyncConfig{
			Workers:         4,
			WritesPerSecond: 20,
		},
		Tax: TaxConfig{
			SeedYears: []int{2025},
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Portfolio.MaxNAVAgeDays <= 0 {
		return fmt.Errorf("portfolio max_nav_age_days must be positive, got %d", c.Portfolio.MaxNAVAgeDays)
	}
	if c.Sync.Workers <= 0 {
		return fmt.Errorf("sync workers must be positive, got %d", c.Sync.Workers)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("NAVFOLIO_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("NAVFOLIO_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("NAVFOLIO_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if token := os.Getenv("NAVFOLIO_API_TOKEN"); token != "" {
		config.Server.APIToken = token
	}

	if level := os.Getenv("NAVFOLIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// Database overrides
	if v := os.Getenv("NAVFOLIO_DB_CONN_STR"); v != "" {
		config.Database.ConnString = v
	}
	if v := os.Getenv("NAVFOLIO_DB_HOST"); v != "" {
		config.Database.Host = v
	}
	if v := os.Getenv("NAVFOLIO_DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			config.Database.Port = p
		}
	}
	if v := os.Getenv("NAVFOLIO_DB_USER"); v != "" {
		config.Database.User = v
	}
	if v := os.Getenv("NAVFOLIO_DB_PASSWORD"); v != "" {
		config.Database.Password = v
	}
	if v := os.Getenv("NAVFOLIO_DB_NAME"); v != "" {
		config.Database.Name = v
	}

	// Cache overrides
	if v := os.Getenv("NAVFOLIO_CACHE_ADDRESS"); v != "" {
		config.Cache.Address = v
	}
	if v := os.Getenv("NAVFOLIO_CACHE_USERNAME"); v != "" {
		config.Cache.Username = v
	}
	if v := os.Getenv("NAVFOLIO_CACHE_PASSWORD"); v != "" {
		config.Cache.Password = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
