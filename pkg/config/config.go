package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultUserAgent is sent with every remote asset request.
const DefaultUserAgent = "comicdl/1.0 (+https://github.com/kerbaras/comicdl)"

// Config holds all application configuration
type Config struct {
	DownloadDir string          `mapstructure:"download_dir"`
	Workers     int             `mapstructure:"workers"`
	LogLevel    string          `mapstructure:"log_level"`
	Store       StoreConfig     `mapstructure:"store"`
	Fetch       FetchConfig     `mapstructure:"fetch"`
	Normalize   NormalizeConfig `mapstructure:"normalize"`
	Server      ServerConfig    `mapstructure:"server"`
	Source      SourceConfig    `mapstructure:"source"`
}

// StoreConfig selects the download metadata backend
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // "duckdb", "bolt" or "memory"
	Path   string `mapstructure:"path"`
}

// FetchConfig configures the asset fetcher
type FetchConfig struct {
	Timeout   string `mapstructure:"timeout"` // Go duration string like "30s"
	CacheDir  string `mapstructure:"cache_dir"`
	CacheSize int    `mapstructure:"cache_size"`
	CacheTTL  string `mapstructure:"cache_ttl"`
	UserAgent string `mapstructure:"user_agent"`
}

// NormalizeConfig controls page re-encoding
type NormalizeConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	MaxWidth  int  `mapstructure:"max_width"`
	MaxHeight int  `mapstructure:"max_height"`
	Quality   int  `mapstructure:"quality"`
	Grayscale bool `mapstructure:"grayscale"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

// SourceConfig configures the catalog used by the CLI
type SourceConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Language string `mapstructure:"language"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	dataDir := defaultDataPath()
	v.SetDefault("download_dir", filepath.Join(dataDir, "comics"))
	v.SetDefault("workers", 1)
	v.SetDefault("log_level", "info")
	v.SetDefault("store.driver", "duckdb")
	v.SetDefault("store.path", filepath.Join(dataDir, "downloads.db"))
	v.SetDefault("fetch.timeout", "60s")
	v.SetDefault("fetch.cache_dir", filepath.Join(os.TempDir(), "comicdl-cache"))
	v.SetDefault("fetch.cache_size", 256)
	v.SetDefault("fetch.cache_ttl", "10m")
	v.SetDefault("fetch.user_agent", DefaultUserAgent)
	v.SetDefault("normalize.enabled", false)
	v.SetDefault("normalize.quality", 90)
	v.SetDefault("server.address", "127.0.0.1")
	v.SetDefault("server.port", 8088)
	v.SetDefault("source.base_url", "https://api.mangadex.org")
	v.SetDefault("source.language", "en")
}

// New returns a viper instance with defaults, config file search paths and
// COMICDL_ environment overrides.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigName("comicdl")
	v.SetConfigType("yaml")
	v.AddConfigPath(defaultConfigPath())
	v.AddConfigPath(".")

	v.SetEnvPrefix("COMICDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file if one exists and decodes v into a Config.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be fixed up silently.
func (c *Config) Validate() error {
	if c.DownloadDir == "" {
		return fmt.Errorf("download_dir must be set")
	}
	switch c.Store.Driver {
	case "duckdb", "bolt", "memory":
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if _, err := time.ParseDuration(c.Fetch.Timeout); err != nil {
		return fmt.Errorf("invalid fetch.timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Fetch.CacheTTL); err != nil {
		return fmt.Errorf("invalid fetch.cache_ttl: %w", err)
	}
	return nil
}

// FetchTimeout returns the parsed fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Fetch.Timeout)
	return d
}

// CacheTTL returns the parsed fetch cache TTL.
func (c *Config) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.Fetch.CacheTTL)
	return d
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "comicdl")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "comicdl")
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "comicdl")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "comicdl")
	}
}
