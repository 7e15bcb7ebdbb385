// Package config loads the jokepool runtime configuration from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/jokepool/pkg/batch"
	"github.com/Sternrassler/jokepool/pkg/logging"
	"github.com/Sternrassler/jokepool/pkg/provider"
	"github.com/Sternrassler/jokepool/pkg/store"
)

// DefaultPath is read when no path is given and JOKEPOOL_CONFIG is unset, if it exists.
const DefaultPath = "configs/jokepool.yaml"

// Config aggregates runtime configuration used across the service.
type Config struct {
	// APIURL is the provider endpoint returning one joke per GET.
	APIURL string `yaml:"apiUrl"`

	// BatchSize is the fetch chunk size and the number of concurrent fetches.
	BatchSize int `yaml:"batchSize"`

	Provider ProviderConfig `yaml:"provider"`
	Pool     PoolConfig     `yaml:"pool"`
	HTTP     HTTPConfig     `yaml:"http"`
	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log"`
}

// ProviderConfig tunes the acquisition client.
type ProviderConfig struct {
	UserAgent    string        `yaml:"userAgent"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxAttempts  int           `yaml:"maxAttempts"`
	BaseBackoff  time.Duration `yaml:"baseBackoff"`
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
}

// PoolConfig tunes the orchestrator. FetchBudget caps the fetch stage of one top-up
// and should leave room under http.requestTimeout for the store calls that follow.
type PoolConfig struct {
	FetchBudget time.Duration `yaml:"fetchBudget"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver   string         `yaml:"driver"`
	Redis    RedisConfig    `yaml:"redis"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// RedisConfig contains connection information for the Redis store.
type RedisConfig struct {
	URL       string `yaml:"url"`
	Namespace string `yaml:"namespace"`
}

// SQLiteConfig contains the database file location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig contains the connection DSN.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads configuration from path (or JOKEPOOL_CONFIG, or DefaultPath when present),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("JOKEPOOL_CONFIG")
	}
	if path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(DefaultPath); err == nil {
		if err := hydrateFromFile(cfg, DefaultPath); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JOKE_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("JOKE_BATCH_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.BatchSize = parsed
		}
	}
	if v := os.Getenv("USER_AGENT"); v != "" {
		cfg.Provider.UserAgent = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_REQUEST_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.RequestTimeout = parsed
		}
	}
	if v := os.Getenv("POOL_FETCH_BUDGET"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Pool.FetchBudget = parsed
		}
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Store.Redis.URL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Store.SQLite.Path = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Store.Postgres.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		cfg.Log.Pretty = v == "1" || strings.EqualFold(v, "true")
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	retry := provider.DefaultRetryConfig()
	return &Config{
		APIURL:    provider.DefaultAPIURL,
		BatchSize: batch.DefaultConfig().BatchSize,
		Provider: ProviderConfig{
			UserAgent:   "jokepool/0.1.0",
			Timeout:     10 * time.Second,
			MaxAttempts: retry.MaxAttempts,
			BaseBackoff: retry.BaseBackoff,
		},
		Pool: PoolConfig{
			FetchBudget: 100 * time.Second,
		},
		HTTP: HTTPConfig{
			Address:         ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    130 * time.Second,
			RequestTimeout:  2 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Driver: store.DriverMemory,
			SQLite: SQLiteConfig{Path: "data/jokepool.db"},
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return errors.New("apiUrl cannot be empty")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("apiUrl must be an absolute http(s) url (got %q)", c.APIURL)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batchSize must be positive (got %d)", c.BatchSize)
	}
	if c.Provider.MaxAttempts < 1 {
		return errors.New("provider.maxAttempts must be at least 1")
	}
	if c.Provider.BaseBackoff < 0 {
		return errors.New("provider.baseBackoff cannot be negative")
	}
	if c.Provider.Timeout < 0 || c.Provider.FetchTimeout < 0 {
		return errors.New("provider timeouts cannot be negative")
	}
	if c.Pool.FetchBudget < 0 {
		return errors.New("pool.fetchBudget cannot be negative")
	}
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RequestTimeout < 0 {
		return errors.New("http.requestTimeout cannot be negative")
	}
	if c.HTTP.WriteTimeout > 0 && c.HTTP.RequestTimeout > 0 && c.HTTP.WriteTimeout <= c.HTTP.RequestTimeout {
		return errors.New("http.writeTimeout must exceed http.requestTimeout")
	}
	if c.HTTP.RequestTimeout > 0 && c.Pool.FetchBudget >= c.HTTP.RequestTimeout {
		return errors.New("pool.fetchBudget must be shorter than http.requestTimeout")
	}

	switch strings.ToLower(c.Store.Driver) {
	case store.DriverMemory:
	case store.DriverRedis:
		if strings.TrimSpace(c.Store.Redis.URL) == "" {
			return errors.New("store.redis.url cannot be empty when driver is redis")
		}
	case store.DriverSQLite:
		if strings.TrimSpace(c.Store.SQLite.Path) == "" {
			return errors.New("store.sqlite.path cannot be empty when driver is sqlite")
		}
	case store.DriverPostgres:
		if strings.TrimSpace(c.Store.Postgres.DSN) == "" {
			return errors.New("store.postgres.dsn cannot be empty when driver is postgres")
		}
	default:
		return fmt.Errorf("store.driver %q is not one of memory, redis, sqlite, postgres", c.Store.Driver)
	}

	return nil
}

// ProviderClientConfig returns the acquisition client configuration.
func (c *Config) ProviderClientConfig() provider.Config {
	cfg := provider.DefaultConfig(c.APIURL)
	cfg.UserAgent = c.Provider.UserAgent
	if c.Provider.Timeout > 0 {
		cfg.Timeout = c.Provider.Timeout
	}
	cfg.Retry = provider.RetryConfig{
		MaxAttempts: c.Provider.MaxAttempts,
		BaseBackoff: c.Provider.BaseBackoff,
	}
	return cfg
}

// BatchConfig returns the batch fetcher configuration.
func (c *Config) BatchConfig() batch.Config {
	return batch.Config{
		BatchSize: c.BatchSize,
		Timeout:   c.Provider.FetchTimeout,
	}
}

// StoreOptions returns the options for store.Open.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Driver:         c.Store.Driver,
		RedisURL:       c.Store.Redis.URL,
		RedisNamespace: c.Store.Redis.Namespace,
		SQLitePath:     c.Store.SQLite.Path,
		PostgresDSN:    c.Store.Postgres.DSN,
	}
}

// LoggingConfig returns the logger setup for the configured level and format.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}
