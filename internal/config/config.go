package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/postline/internal/errors"
)

const (
	// ConfigFileName is the name of the default configuration file.
	ConfigFileName = "postline.json"

	// DefaultAddr is the default listen address.
	DefaultAddr = ":3000"

	// EnvDevelopment and EnvProduction are the recognised environments.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// StoreMemory and StoreRedis are the recognised store drivers.
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config represents the complete server configuration.
type Config struct {
	// Env selects production or development behaviour: asset resolution
	// through the manifest and error-detail visibility.
	Env string `json:"env,omitempty" yaml:"env,omitempty"`

	// Addr is the HTTP listen address.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`

	// LogFormat is "json" or "text". Defaults to json in production.
	LogFormat string `json:"logFormat,omitempty" yaml:"logFormat,omitempty"`

	Static  StaticConfig  `json:"static,omitempty" yaml:"static,omitempty"`
	Assets  AssetsConfig  `json:"assets,omitempty" yaml:"assets,omitempty"`
	Store   StoreConfig   `json:"store,omitempty" yaml:"store,omitempty"`
	Live    LiveConfig    `json:"live,omitempty" yaml:"live,omitempty"`
	Render  RenderConfig  `json:"render,omitempty" yaml:"render,omitempty"`
	Server  ServerConfig  `json:"server,omitempty" yaml:"server,omitempty"`
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// StaticConfig contains static file serving configuration.
type StaticConfig struct {
	// Dir is the directory containing built assets.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// Prefix is the URL prefix for static files (default: "/static/").
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// AssetsConfig locates the asset manifest used in production.
type AssetsConfig struct {
	// Manifest is a local path or an s3://bucket/key URI.
	Manifest string `json:"manifest,omitempty" yaml:"manifest,omitempty"`

	// S3Region and S3Endpoint configure the S3 client for s3:// manifests.
	S3Region   string `json:"s3Region,omitempty" yaml:"s3Region,omitempty"`
	S3Endpoint string `json:"s3Endpoint,omitempty" yaml:"s3Endpoint,omitempty"`
}

// StoreConfig selects and configures the data store.
type StoreConfig struct {
	// Driver is "memory" or "redis".
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`

	// Seed loads the demo posts and comments at startup.
	Seed *bool `json:"seed,omitempty" yaml:"seed,omitempty"`

	Redis RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// RedisConfig configures the redis store.
type RedisConfig struct {
	// Addr is a host:port, or a comma-separated list for cluster/sentinel.
	Addr       string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Username   string `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	DB         int    `json:"db,omitempty" yaml:"db,omitempty"`
	MasterName string `json:"masterName,omitempty" yaml:"masterName,omitempty"`
	Prefix     string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// LiveConfig configures the WebSocket relay.
type LiveConfig struct {
	// Path is the upgrade endpoint (default: "/ws").
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	ReadTimeout    Duration `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`
	WriteTimeout   Duration `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`
	Heartbeat      Duration `json:"heartbeat,omitempty" yaml:"heartbeat,omitempty"`
	MaxMessageSize int64    `json:"maxMessageSize,omitempty" yaml:"maxMessageSize,omitempty"`
	SendBuffer     int      `json:"sendBuffer,omitempty" yaml:"sendBuffer,omitempty"`
}

// RenderConfig tunes the render pipeline.
type RenderConfig struct {
	// PrefetchTimeout bounds each data fetch. Zero means no bound.
	PrefetchTimeout Duration `json:"prefetchTimeout,omitempty" yaml:"prefetchTimeout,omitempty"`

	// PrefetchConcurrency caps concurrent fetches per render.
	PrefetchConcurrency int `json:"prefetchConcurrency,omitempty" yaml:"prefetchConcurrency,omitempty"`
}

// ServerConfig contains HTTP server timeouts.
type ServerConfig struct {
	ReadTimeout     Duration `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`
	WriteTimeout    Duration `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`
	IdleTimeout     Duration `json:"idleTimeout,omitempty" yaml:"idleTimeout,omitempty"`
	ShutdownTimeout Duration `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Disabled turns off the /metrics endpoint and HTTP instrumentation.
	Disabled  bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// TracingConfig configures request tracing.
type TracingConfig struct {
	Enabled    bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	TracerName string `json:"tracerName,omitempty" yaml:"tracerName,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads the file at path (when non-empty), applies environment
// overrides from the process environment and fills defaults.
func Load(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if path == "" {
		cfg = &Config{}
	} else if cfg, err = readFile(path); err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	cfg.applyDefaults()
	return cfg, nil
}

// LoadFile reads configuration from a JSON or YAML file without applying
// environment overrides. The format is chosen by extension.
func LoadFile(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E201").
				WithDetail("No configuration file at " + path).
				Wrap(err)
		}
		return nil, errors.New("E201").Wrap(err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("E202").
			WithDetail("Failed to parse " + filepath.Base(path)).
			Wrap(err)
	}

	cfg.configPath = path
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("POSTLINE_ENV"); ok && v != "" {
		c.Env = v
	}
	if v, ok := lookup("POSTLINE_ADDR"); ok && v != "" {
		c.Addr = v
	}
	if v, ok := lookup("POSTLINE_REDIS_ADDR"); ok && v != "" {
		c.Store.Driver = StoreRedis
		c.Store.Redis.Addr = v
	}
	if v, ok := lookup("POSTLINE_ASSET_MANIFEST"); ok && v != "" {
		c.Assets.Manifest = v
	}
	if v, ok := lookup("POSTLINE_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = EnvDevelopment
	}
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		if c.IsProduction() {
			c.LogFormat = "json"
		} else {
			c.LogFormat = "text"
		}
	}

	if c.Static.Dir == "" {
		c.Static.Dir = "public"
	}
	if c.Static.Prefix == "" {
		c.Static.Prefix = "/static/"
	}

	if c.Store.Driver == "" {
		c.Store.Driver = StoreMemory
	}
	if c.Store.Seed == nil {
		seed := c.Store.Driver == StoreMemory
		c.Store.Seed = &seed
	}
	if c.Store.Redis.Prefix == "" {
		c.Store.Redis.Prefix = "postline:"
	}

	if c.Live.Path == "" {
		c.Live.Path = "/ws"
	}
	if c.Live.ReadTimeout == 0 {
		c.Live.ReadTimeout = Duration(60 * time.Second)
	}
	if c.Live.WriteTimeout == 0 {
		c.Live.WriteTimeout = Duration(10 * time.Second)
	}
	if c.Live.Heartbeat == 0 {
		c.Live.Heartbeat = Duration(30 * time.Second)
	}
	if c.Live.MaxMessageSize == 0 {
		c.Live.MaxMessageSize = 64 * 1024
	}
	if c.Live.SendBuffer == 0 {
		c.Live.SendBuffer = 64
	}

	if c.Render.PrefetchTimeout == 0 {
		c.Render.PrefetchTimeout = Duration(5 * time.Second)
	}
	if c.Render.PrefetchConcurrency == 0 {
		c.Render.PrefetchConcurrency = 64
	}

	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(15 * time.Second)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(60 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "postline"
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = "postline"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.New("E203").WithDetail(fmt.Sprintf(format, args...))
	}

	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		return invalid("env must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}
	if _, err := c.SlogLevel(); err != nil {
		return invalid("logLevel %q is not one of debug, info, warn, error", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return invalid("logFormat must be \"json\" or \"text\", got %q", c.LogFormat)
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			return invalid("store.redis.addr is required when store.driver is %q", StoreRedis)
		}
	default:
		return invalid("store.driver must be %q or %q, got %q", StoreMemory, StoreRedis, c.Store.Driver)
	}
	if !strings.HasPrefix(c.Live.Path, "/") {
		return invalid("live.path must start with /, got %q", c.Live.Path)
	}
	if !strings.HasPrefix(c.Static.Prefix, "/") || !strings.HasSuffix(c.Static.Prefix, "/") {
		return invalid("static.prefix must start and end with /, got %q", c.Static.Prefix)
	}
	if c.Live.SendBuffer < 1 || c.Live.MaxMessageSize < 1 {
		return invalid("live.sendBuffer and live.maxMessageSize must be positive")
	}
	if c.Render.PrefetchConcurrency < 1 {
		return invalid("render.prefetchConcurrency must be positive")
	}
	if c.Render.PrefetchTimeout < 0 {
		return invalid("render.prefetchTimeout must not be negative")
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.LogLevel))
	return level, err
}

// SeedEnabled reports whether demo data should be loaded at startup.
func (c *Config) SeedEnabled() bool {
	return c.Store.Seed != nil && *c.Store.Seed
}
