// Package config provides configuration management for crosstab: engine
// defaults, logging, remote delegation and the reference service.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the global configuration of crosstab components
type Config struct {
	// Engine defaults
	DefaultAggregator string `json:"default_aggregator" yaml:"default_aggregator"` // Aggregator used when a configuration names none
	DefaultRenderer   string `json:"default_renderer" yaml:"default_renderer"`     // Renderer used by the CLI when none is given

	// Logging Configuration
	LogLevel  string `json:"log_level" yaml:"log_level"`   // debug, info, warn or error
	LogFormat string `json:"log_format" yaml:"log_format"` // text or json

	// Remote Delegation Configuration
	RemoteURL             string `json:"remote_url" yaml:"remote_url"`                           // Base URL of the analytics API
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds"` // Per request timeout (0 = none)

	// Reference Service Configuration
	ListenAddr      string `json:"listen_addr" yaml:"listen_addr"`             // Address the service listens on
	ServiceName     string `json:"service_name" yaml:"service_name"`           // Name reported by the health endpoint
	CacheSize       int    `json:"cache_size" yaml:"cache_size"`               // Cached responses (negative = caching disabled)
	CacheTTLSeconds int    `json:"cache_ttl_seconds" yaml:"cache_ttl_seconds"` // Lifetime of a cached response

	// Monitoring Configuration
	MetricsCollection bool `json:"metrics_collection" yaml:"metrics_collection"` // Enable metrics collection
	MetricsHistory    int  `json:"metrics_history" yaml:"metrics_history"`       // Operations retained by the collector
}

// Global configuration instance
var (
	globalConfig Config
	configMutex  sync.RWMutex
)

// Default configuration values
const (
	DefaultAggregator            = "Count"
	DefaultRenderer              = "Table"
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "text"
	DefaultRemoteURL             = "http://localhost:8080/api/analytics"
	DefaultRequestTimeoutSeconds = 30
	DefaultListenAddr            = ":8080"
	DefaultServiceName           = "crosstab-analytics"
	DefaultCacheSize             = 100
	DefaultCacheTTLSeconds       = 300
	DefaultMetricsHistory        = 1000
)

// Initialize global configuration with defaults
func init() {
	globalConfig = NewConfig()
}

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		DefaultAggregator: DefaultAggregator,
		DefaultRenderer:   DefaultRenderer,

		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,

		RemoteURL:             DefaultRemoteURL,
		RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,

		ListenAddr:      DefaultListenAddr,
		ServiceName:     DefaultServiceName,
		CacheSize:       DefaultCacheSize,
		CacheTTLSeconds: DefaultCacheTTLSeconds,

		MetricsCollection: false,
		MetricsHistory:    DefaultMetricsHistory,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LogFormat must be text or json, got %q", c.LogFormat)
	}

	if c.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("RequestTimeoutSeconds must be non-negative, got %d", c.RequestTimeoutSeconds)
	}

	if c.CacheTTLSeconds < 0 {
		return fmt.Errorf("CacheTTLSeconds must be non-negative, got %d", c.CacheTTLSeconds)
	}

	if c.MetricsHistory <= 0 {
		return fmt.Errorf("MetricsHistory must be positive, got %d", c.MetricsHistory)
	}

	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	if c.DefaultAggregator == "" {
		c.DefaultAggregator = defaults.DefaultAggregator
	}
	if c.DefaultRenderer == "" {
		c.DefaultRenderer = defaults.DefaultRenderer
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = defaults.LogFormat
	}
	if c.RemoteURL == "" {
		c.RemoteURL = defaults.RemoteURL
	}
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = defaults.RequestTimeoutSeconds
	}
	if c.ListenAddr == "" {
		c.ListenAddr = defaults.ListenAddr
	}
	if c.ServiceName == "" {
		c.ServiceName = defaults.ServiceName
	}
	if c.CacheSize == 0 {
		c.CacheSize = defaults.CacheSize
	}
	if c.CacheTTLSeconds == 0 {
		c.CacheTTLSeconds = defaults.CacheTTLSeconds
	}
	if c.MetricsHistory == 0 {
		c.MetricsHistory = defaults.MetricsHistory
	}

	// Boolean fields keep their zero values so that an explicit false
	// survives; use NewConfig() for boolean defaults.

	return c
}

// RequestTimeout returns the remote request timeout, zero for none.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// CacheTTL returns the lifetime of a cached service response.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Level returns the slog level named by LogLevel, info when unknown.
func (c Config) Level() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger builds the logger described by LogLevel and LogFormat.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("LogLevel must be one of debug, info, warn, error, got %q", name)
	}
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = config
}

// GetGlobalConfig returns the current global configuration
func GetGlobalConfig() Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// LoadFromJSON loads configuration from JSON data
func LoadFromJSON(data []byte) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a JSON or YAML file
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	var config Config
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}

	return config.WithDefaults(), nil
}

// envPrefix prefixes every environment variable read by LoadFromEnv.
const envPrefix = "CROSSTAB_"

// LoadFromEnv loads configuration from CROSSTAB_* environment variables on
// top of the defaults. Unparseable values are ignored.
func LoadFromEnv() Config {
	config := NewConfig()

	envString("DEFAULT_AGGREGATOR", &config.DefaultAggregator)
	envString("DEFAULT_RENDERER", &config.DefaultRenderer)
	envString("LOG_LEVEL", &config.LogLevel)
	envString("LOG_FORMAT", &config.LogFormat)
	envString("REMOTE_URL", &config.RemoteURL)
	envInt("REQUEST_TIMEOUT_SECONDS", &config.RequestTimeoutSeconds)
	envString("LISTEN_ADDR", &config.ListenAddr)
	envString("SERVICE_NAME", &config.ServiceName)
	envInt("CACHE_SIZE", &config.CacheSize)
	envInt("CACHE_TTL_SECONDS", &config.CacheTTLSeconds)
	envBool("METRICS_COLLECTION", &config.MetricsCollection)
	envInt("METRICS_HISTORY", &config.MetricsHistory)

	return config
}

func envString(name string, dst *string) {
	if val := os.Getenv(envPrefix + name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(envPrefix + name); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			*dst = parsed
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(envPrefix + name); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			*dst = parsed
		}
	}
}
