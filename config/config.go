// Package config provides configuration management for the application.
//
// Values are resolved in three layers: code defaults, an optional YAML file
// (with ${VAR} and ${VAR:-default} expansion), then environment variables.
// A .env file is loaded first and never overrides the real environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Cache      CacheConfig      `yaml:"cache"`
	Storage    StorageConfig    `yaml:"storage"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	// MasterKey enables bearer authentication on the API when set
	MasterKey string `yaml:"master_key"`
	// BodySizeLimit caps request bodies, e.g. "1M" (default: 1M)
	BodySizeLimit string `yaml:"body_size_limit"`
}

// GeminiConfig holds upstream model configuration
type GeminiConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// ResilienceConfig holds the retry policy and quota cooldown
type ResilienceConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	QuotaCooldown time.Duration `yaml:"quota_cooldown"`
}

// CacheConfig selects the location cache backend
type CacheConfig struct {
	// Type is memory, local, redis or storage
	Type      string           `yaml:"type"`
	Namespace string           `yaml:"namespace"`
	Local     LocalCacheConfig `yaml:"local"`
	Redis     RedisConfig      `yaml:"redis"`
}

// LocalCacheConfig holds the file path of the local backend
type LocalCacheConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// StorageConfig holds the database used when cache.type is storage
type StorageConfig struct {
	// Type is sqlite, postgresql or mongodb
	Type       string           `yaml:"type"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
	MongoDB    MongoDBConfig    `yaml:"mongodb"`
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgreSQLConfig holds PostgreSQL settings
type PostgreSQLConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// MongoDBConfig holds MongoDB settings
type MongoDBConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LoggingConfig holds slog handler settings
type LoggingConfig struct {
	// Format is auto, json or pretty
	Format string `yaml:"format"`
	// Level is debug, info, warn or error
	Level string `yaml:"level"`
}

// Options controls where Load looks for files.
type Options struct {
	// EnvFile is loaded into the environment if it exists (default: .env)
	EnvFile string
	// ConfigFiles are tried in order; the first that exists is used.
	// Defaults to $AGROHUB_CONFIG, config/config.yaml, config.yaml.
	ConfigFiles []string
}

// Load reads configuration with the default Options.
func Load() (*Config, error) {
	return LoadWithOptions(Options{})
}

// LoadWithOptions reads .env, the first existing YAML file and the
// environment, then validates the result.
func LoadWithOptions(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := buildDefaultConfig()

	files := opts.ConfigFiles
	if len(files) == 0 {
		files = defaultConfigFiles()
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(expandString(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		break
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfigFiles() []string {
	files := []string{"config/config.yaml", "config.yaml"}
	if p := os.Getenv("AGROHUB_CONFIG"); p != "" {
		files = append([]string{p}, files...)
	}
	return files
}

// buildDefaultConfig returns the configuration used when nothing is set.
func buildDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          "8080",
			BodySizeLimit: "1M",
		},
		Gemini: GeminiConfig{
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Model:   "gemini-3-flash-preview",
			Timeout: 60 * time.Second,
		},
		Resilience: ResilienceConfig{
			MaxRetries:    1,
			InitialDelay:  2 * time.Second,
			QuotaCooldown: 5 * time.Minute,
		},
		Cache: CacheConfig{
			Type:      "memory",
			Namespace: "agrohub_loc_v2",
			Local:     LocalCacheConfig{Path: "data/location_cache.json"},
			Redis:     RedisConfig{Prefix: "agrohub:"},
		},
		Storage: StorageConfig{
			Type:       "sqlite",
			SQLite:     SQLiteConfig{Path: "data/agrohub.db"},
			PostgreSQL: PostgreSQLConfig{MaxConns: 10},
			MongoDB:    MongoDBConfig{Database: "agrohub"},
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
		Logging: LoggingConfig{
			Format: "auto",
			Level:  "info",
		},
	}
}

var envPlaceholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default}. A placeholder without a
// default whose variable is unset or empty is left untouched.
func expandString(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envPlaceholder.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPlaceholder.FindStringSubmatch(match)
		name, hasDefault, def := parts[1], parts[2] != "", parts[3]
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasDefault {
			return def
		}
		return match
	})
}

// applyEnvOverrides copies non-empty environment variables onto cfg.
func applyEnvOverrides(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	var errs []error
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, v))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid boolean %q", key, v))
				return
			}
			*dst = b
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	setString("PORT", &cfg.Server.Port)
	setString("AGROHUB_MASTER_KEY", &cfg.Server.MasterKey)
	setString("BODY_SIZE_LIMIT", &cfg.Server.BodySizeLimit)

	setString("API_KEY", &cfg.Gemini.APIKey)
	setString("GEMINI_API_KEY", &cfg.Gemini.APIKey)
	setString("GEMINI_BASE_URL", &cfg.Gemini.BaseURL)
	setString("GEMINI_MODEL", &cfg.Gemini.Model)
	setDuration("GEMINI_TIMEOUT", &cfg.Gemini.Timeout)

	setInt("RETRY_MAX_RETRIES", &cfg.Resilience.MaxRetries)
	setDuration("RETRY_INITIAL_DELAY", &cfg.Resilience.InitialDelay)
	setDuration("QUOTA_COOLDOWN", &cfg.Resilience.QuotaCooldown)

	setString("CACHE_TYPE", &cfg.Cache.Type)
	setString("CACHE_NAMESPACE", &cfg.Cache.Namespace)
	setString("CACHE_LOCAL_PATH", &cfg.Cache.Local.Path)
	setString("REDIS_URL", &cfg.Cache.Redis.URL)
	setString("REDIS_KEY_PREFIX", &cfg.Cache.Redis.Prefix)

	setString("STORAGE_TYPE", &cfg.Storage.Type)
	setString("SQLITE_PATH", &cfg.Storage.SQLite.Path)
	setString("POSTGRES_URL", &cfg.Storage.PostgreSQL.URL)
	setInt("POSTGRES_MAX_CONNS", &cfg.Storage.PostgreSQL.MaxConns)
	setString("MONGODB_URL", &cfg.Storage.MongoDB.URL)
	setString("MONGODB_DATABASE", &cfg.Storage.MongoDB.Database)

	setBool("METRICS_ENABLED", &cfg.Metrics.Enabled)
	setString("METRICS_ENDPOINT", &cfg.Metrics.Endpoint)

	setString("LOG_FORMAT", &cfg.Logging.Format)
	setString("LOG_LEVEL", &cfg.Logging.Level)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %w", errors.Join(errs...))
	}
	return nil
}

// parseDuration accepts plain integers (seconds) or Go duration strings ("2s", "5m").
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if err := ValidateBodySizeLimit(c.Server.BodySizeLimit); err != nil {
		errs = append(errs, err)
	}
	if c.Resilience.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("resilience.max_retries must be >= 0, got %d", c.Resilience.MaxRetries))
	}
	if c.Resilience.InitialDelay < 0 {
		errs = append(errs, fmt.Errorf("resilience.initial_delay must be >= 0, got %s", c.Resilience.InitialDelay))
	}
	if c.Resilience.QuotaCooldown <= 0 {
		errs = append(errs, fmt.Errorf("resilience.quota_cooldown must be > 0, got %s", c.Resilience.QuotaCooldown))
	}
	if c.Gemini.Timeout < 0 {
		errs = append(errs, fmt.Errorf("gemini.timeout must be >= 0, got %s", c.Gemini.Timeout))
	}

	switch c.Cache.Type {
	case "memory", "local", "storage":
	case "redis":
		if c.Cache.Redis.URL == "" {
			errs = append(errs, errors.New("cache.redis.url is required when cache.type is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache.type %q (valid: memory, local, redis, storage)", c.Cache.Type))
	}

	if c.Cache.Type == "storage" {
		switch c.Storage.Type {
		case "sqlite":
		case "postgresql":
			if c.Storage.PostgreSQL.URL == "" {
				errs = append(errs, errors.New("storage.postgresql.url is required when storage.type is postgresql"))
			}
		case "mongodb":
			if c.Storage.MongoDB.URL == "" {
				errs = append(errs, errors.New("storage.mongodb.url is required when storage.type is mongodb"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown storage.type %q (valid: sqlite, postgresql, mongodb)", c.Storage.Type))
		}
	}

	switch c.Logging.Format {
	case "auto", "json", "pretty":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.format %q (valid: auto, json, pretty)", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

const (
	minBodySizeLimit = 1 << 10
	maxBodySizeLimit = 100 << 20
)

var bodySizePattern = regexp.MustCompile(`^(\d+)([KkMm])?[Bb]?$`)

// ValidateBodySizeLimit checks an echo-style size such as "1M" or "512K".
// Empty means the default. Accepted range is 1KB to 100MB.
func ValidateBodySizeLimit(limit string) error {
	limit = strings.TrimSpace(limit)
	if limit == "" {
		return nil
	}
	m := bodySizePattern.FindStringSubmatch(limit)
	if m == nil || (m[2] == "" && strings.ContainsAny(limit, "Bb")) {
		return fmt.Errorf("invalid body size limit %q (use e.g. 512K, 1M, 1048576)", limit)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid body size limit %q: %w", limit, err)
	}
	switch strings.ToUpper(m[2]) {
	case "K":
		n <<= 10
	case "M":
		n <<= 20
	}
	if n < minBodySizeLimit || n > maxBodySizeLimit {
		return fmt.Errorf("body size limit %q out of range (1K to 100M)", limit)
	}
	return nil
}
