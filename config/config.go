package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Cache        CacheConfig        `mapstructure:"cache"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
	Aggregation  AggregationConfig  `mapstructure:"aggregation"`
	Resolver     ResolverConfig     `mapstructure:"resolver"`
	SerpAPI      SerpAPIConfig      `mapstructure:"serpapi"`
	Catalog      CatalogConfig      `mapstructure:"catalog"`
	Vision       VisionConfig       `mapstructure:"vision"`
	VTEX         VTEXConfig         `mapstructure:"vtex"`
	MercadoLibre MercadoLibreConfig `mapstructure:"mercadolibre"`
	Scraper      ScraperConfig      `mapstructure:"scraper"`
	History      HistoryConfig      `mapstructure:"history"`
	Log          LogConfig          `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Environment    string        `mapstructure:"environment"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP      float64 `mapstructure:"per_ip"`      // requests per second per client IP
	CatalogRPS float64 `mapstructure:"catalog_rps"` // requests per second per JSON source
}

// AggregationConfig controls the fan-out to price sources
type AggregationConfig struct {
	SourceTimeout     time.Duration `mapstructure:"source_timeout"`
	MaxInFlight       int           `mapstructure:"max_in_flight"`
	MaxBrowserSources int           `mapstructure:"max_browser_sources"`
	DefaultCurrency   string        `mapstructure:"default_currency"`
	Locale            string        `mapstructure:"locale"`
	HistoryTimeout    time.Duration `mapstructure:"history_timeout"`
}

// ResolverConfig holds the per-step budgets of the identification chain
type ResolverConfig struct {
	CatalogTimeout   time.Duration `mapstructure:"catalog_timeout"`
	VisionTimeout    time.Duration `mapstructure:"vision_timeout"`
	WebSearchTimeout time.Duration `mapstructure:"web_search_timeout"`
}

// SerpAPIConfig holds the shopping search API configuration
type SerpAPIConfig struct {
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	Location string `mapstructure:"location"`
	Country  string `mapstructure:"gl"`
	Language string `mapstructure:"hl"`
}

// CatalogConfig holds the barcode catalog configuration
type CatalogConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// VisionConfig holds the image identification configuration
type VisionConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// VTEXStore is one store backed by the VTEX catalog API
type VTEXStore struct {
	ID       string `mapstructure:"id"`
	Platform string `mapstructure:"platform"`
	BaseURL  string `mapstructure:"base_url"`
}

// VTEXConfig lists the VTEX stores to query
type VTEXConfig struct {
	Stores []VTEXStore `mapstructure:"stores"`
}

// MercadoLibreConfig holds the marketplace API configuration
type MercadoLibreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	SiteID  string `mapstructure:"site_id"`
}

// ScraperConfig holds browser scraping configuration
type ScraperConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Headless    bool          `mapstructure:"headless"`
	BrowserBin  string        `mapstructure:"browser_bin"`
	PageTimeout time.Duration `mapstructure:"page_timeout"`
	Sites       []string      `mapstructure:"sites"`
	// Politeness is the minimum delay between two requests to the same site, keyed by site id
	Politeness map[string]time.Duration `mapstructure:"politeness"`
}

// HistoryConfig holds the search history store configuration
type HistoryConfig struct {
	Driver string `mapstructure:"driver"` // "postgres", "sqlite" or "none"
	DSN    string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricelens/")

	// Environment variable settings: PRICELENS_SERPAPI_API_KEY -> serpapi.api_key
	v.SetEnvPrefix("PRICELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads a .env file from the working directory if there is one.
// Variables already present in the environment win.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(".env")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://10.0.2.2:3000"})
	v.SetDefault("server.request_timeout", "90s")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "30m")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 2)
	v.SetDefault("ratelimit.catalog_rps", 2)

	// Aggregation defaults
	v.SetDefault("aggregation.source_timeout", "45s")
	v.SetDefault("aggregation.max_in_flight", 8)
	v.SetDefault("aggregation.max_browser_sources", 2)
	v.SetDefault("aggregation.default_currency", "PEN")
	v.SetDefault("aggregation.locale", "es-PE")
	v.SetDefault("aggregation.history_timeout", "5s")

	// Resolver defaults
	v.SetDefault("resolver.catalog_timeout", "8s")
	v.SetDefault("resolver.vision_timeout", "20s")
	v.SetDefault("resolver.web_search_timeout", "45s")

	// Source defaults
	v.SetDefault("serpapi.api_key", "")
	v.SetDefault("serpapi.base_url", "https://serpapi.com")
	v.SetDefault("serpapi.location", "Lima, Peru")
	v.SetDefault("serpapi.gl", "pe")
	v.SetDefault("serpapi.hl", "es")
	v.SetDefault("catalog.base_url", "https://world.openfoodfacts.org/api/v2")
	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.model", "gemini-2.0-flash")
	v.SetDefault("vtex.stores", []map[string]string{
		{"id": "plazavea", "platform": "Plaza Vea", "base_url": "https://www.plazavea.com.pe"},
		{"id": "wong", "platform": "Wong", "base_url": "https://www.wong.pe"},
		{"id": "metro", "platform": "Metro", "base_url": "https://www.metro.pe"},
	})
	v.SetDefault("mercadolibre.enabled", true)
	v.SetDefault("mercadolibre.base_url", "https://api.mercadolibre.com")
	v.SetDefault("mercadolibre.site_id", "MPE")
	v.SetDefault("scraper.enabled", true)
	v.SetDefault("scraper.headless", true)
	v.SetDefault("scraper.browser_bin", "")
	v.SetDefault("scraper.page_timeout", "30s")
	v.SetDefault("scraper.sites", []string{"tottus"})
	v.SetDefault("scraper.politeness", map[string]string{
		"tottus":       "6s",
		"mercadolibre": "3s",
	})

	// History defaults
	v.SetDefault("history.driver", "none")
	v.SetDefault("history.dsn", "")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got: %s", config.Cache.TTL)
	}

	if config.Aggregation.SourceTimeout <= 0 {
		return fmt.Errorf("aggregation source timeout must be positive, got: %s", config.Aggregation.SourceTimeout)
	}

	if config.Aggregation.MaxInFlight < 1 {
		return fmt.Errorf("aggregation max_in_flight must be at least 1, got: %d", config.Aggregation.MaxInFlight)
	}

	if config.Aggregation.MaxBrowserSources < 1 {
		return fmt.Errorf("aggregation max_browser_sources must be at least 1, got: %d", config.Aggregation.MaxBrowserSources)
	}

	switch config.History.Driver {
	case "none", "":
	case "postgres", "sqlite":
		if config.History.DSN == "" {
			return fmt.Errorf("history DSN is required when driver is '%s'", config.History.Driver)
		}
	default:
		return fmt.Errorf("history driver must be 'postgres', 'sqlite' or 'none', got: %s", config.History.Driver)
	}

	return nil
}

// PolitenessFor returns the configured politeness window for a scraping site
func (c ScraperConfig) PolitenessFor(site string) time.Duration {
	if d, ok := c.Politeness[site]; ok && d > 0 {
		return d
	}
	return 3 * time.Second
}
