package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	envCatalogURL   = "SHELFREQ_CATALOG_URL"
	envCatalogToken = "SHELFREQ_CATALOG_TOKEN"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Sync     SyncConfig     `toml:"sync"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains operator HTTP server settings.
type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	LockFile string `toml:"lock_file"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CatalogConfig contains the Audiobookshelf connection settings.
type CatalogConfig struct {
	URL       string   `toml:"url"`
	APIToken  string   `toml:"api_token"`
	Timeout   Duration `toml:"timeout"`
	RateLimit float64  `toml:"rate_limit"` // page requests per second
	PageSize  int      `toml:"page_size"`
	CacheTTL  Duration `toml:"cache_ttl"`
}

// Configured reports whether both the catalog URL and token are set.
func (c CatalogConfig) Configured() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.APIToken) != ""
}

// SyncConfig contains reconciliation settings.
type SyncConfig struct {
	Threshold       float64  `toml:"threshold"`
	Interval        Duration `toml:"interval"`
	StalenessWindow Duration `toml:"staleness_window"`
	QueueSize       int      `toml:"queue_size"`
	Workers         int      `toml:"workers"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration wraps [time.Duration] so TOML values like "6h" decode directly.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file fall back to the embedded defaults, and the
// catalog credentials may be overridden from the environment.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks value ranges that would otherwise surface as confusing runtime behavior.
func (c *Config) Validate() error {
	if c.Sync.Threshold < 0 || c.Sync.Threshold > 1 {
		return fmt.Errorf("%w: sync.threshold must be within [0, 1], got %v", ErrInvalidConfig, c.Sync.Threshold)
	}
	if c.Sync.Interval.Duration <= 0 {
		return fmt.Errorf("%w: sync.interval must be positive", ErrInvalidConfig)
	}
	if c.Sync.StalenessWindow.Duration <= 0 {
		return fmt.Errorf("%w: sync.staleness_window must be positive", ErrInvalidConfig)
	}
	if c.Sync.QueueSize <= 0 || c.Sync.Workers <= 0 {
		return fmt.Errorf("%w: sync.queue_size and sync.workers must be positive", ErrInvalidConfig)
	}
	if c.Catalog.Timeout.Duration <= 0 {
		return fmt.Errorf("%w: catalog.timeout must be positive", ErrInvalidConfig)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", ErrMissingConfig)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(envCatalogURL)); v != "" {
		c.Catalog.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(envCatalogToken)); v != "" {
		c.Catalog.APIToken = v
	}
}
