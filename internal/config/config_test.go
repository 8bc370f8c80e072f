package config

import (
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/postline/internal/errors"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Env != EnvDevelopment || cfg.IsProduction() {
		t.Errorf("Env = %q, want development", cfg.Env)
	}
	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Addr, DefaultAddr)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
	if cfg.Store.Driver != StoreMemory || !cfg.SeedEnabled() {
		t.Errorf("Store = %+v, want seeded memory store", cfg.Store)
	}
	if cfg.Live.Heartbeat.Std() != 30*time.Second {
		t.Errorf("Live.Heartbeat = %v", cfg.Live.Heartbeat)
	}
	if cfg.Static.Prefix != "/static/" || cfg.Live.Path != "/ws" || cfg.Metrics.Path != "/metrics" {
		t.Errorf("paths = %q %q %q", cfg.Static.Prefix, cfg.Live.Path, cfg.Metrics.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFileJSON(t *testing.T) {
	path := writeFile(t, ConfigFileName, `{
  "env": "production",
  "addr": ":8080",
  "store": {"driver": "redis", "redis": {"addr": "localhost:6379"}},
  "live": {"heartbeat": "5s", "sendBuffer": 8},
  "render": {"prefetchTimeout": "250ms"}
}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !cfg.IsProduction() || cfg.Addr != ":8080" {
		t.Errorf("Env/Addr = %q %q", cfg.Env, cfg.Addr)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json in production", cfg.LogFormat)
	}
	if cfg.Live.Heartbeat.Std() != 5*time.Second || cfg.Live.SendBuffer != 8 {
		t.Errorf("Live = %+v", cfg.Live)
	}
	if cfg.Render.PrefetchTimeout.Std() != 250*time.Millisecond {
		t.Errorf("PrefetchTimeout = %v", cfg.Render.PrefetchTimeout)
	}
	if cfg.SeedEnabled() {
		t.Error("redis store should not seed by default")
	}
	if cfg.Path() != path {
		t.Errorf("Path() = %q", cfg.Path())
	}
}

func TestLoadFileYAML(t *testing.T) {
	path := writeFile(t, "postline.yaml", `
env: development
logLevel: debug
assets:
  manifest: s3://bucket/manifest.json
  s3Region: eu-west-1
server:
  shutdownTimeout: 3s
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Assets.Manifest != "s3://bucket/manifest.json" || cfg.Assets.S3Region != "eu-west-1" {
		t.Errorf("Assets = %+v", cfg.Assets)
	}
	if cfg.Server.ShutdownTimeout.Std() != 3*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}
	level, err := cfg.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("SlogLevel = %v, %v", level, err)
	}
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	var pe *errors.PageError
	if !stderrors.As(err, &pe) || pe.Code != "E201" {
		t.Errorf("missing file err = %v, want E201", err)
	}
	if !stderrors.Is(err, os.ErrNotExist) {
		t.Error("missing file error should wrap os.ErrNotExist")
	}

	bad := writeFile(t, "bad.json", `{"live": {"heartbeat": 30}}`)
	_, err = LoadFile(bad)
	if !stderrors.As(err, &pe) || pe.Code != "E202" {
		t.Errorf("numeric duration err = %v, want E202", err)
	}

	badYAML := writeFile(t, "bad.yml", "server:\n  readTimeout: soon\n")
	_, err = LoadFile(badYAML)
	if !stderrors.As(err, &pe) || pe.Code != "E202" {
		t.Errorf("bad yaml duration err = %v, want E202", err)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := &Config{Addr: ":1"}
	cfg.ApplyEnv(envMap(map[string]string{
		"POSTLINE_ENV":            "production",
		"POSTLINE_ADDR":           ":9000",
		"POSTLINE_REDIS_ADDR":     "redis:6379",
		"POSTLINE_ASSET_MANIFEST": "dist/manifest.json",
		"POSTLINE_LOG_LEVEL":      "warn",
	}))
	cfg.applyDefaults()

	if cfg.Env != EnvProduction || cfg.Addr != ":9000" || cfg.LogLevel != "warn" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Store.Driver != StoreRedis || cfg.Store.Redis.Addr != "redis:6379" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Assets.Manifest != "dist/manifest.json" {
		t.Errorf("Manifest = %q", cfg.Assets.Manifest)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json once env is production", cfg.LogFormat)
	}

	unchanged := &Config{Addr: ":1"}
	unchanged.ApplyEnv(envMap(map[string]string{"POSTLINE_ADDR": ""}))
	if unchanged.Addr != ":1" {
		t.Errorf("empty env value should not override, Addr = %q", unchanged.Addr)
	}
}

func TestLoadAppliesProcessEnv(t *testing.T) {
	t.Setenv("POSTLINE_ADDR", ":4242")
	path := writeFile(t, ConfigFileName, `{"addr": ":8080"}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":4242" {
		t.Errorf("Addr = %q, want env override", cfg.Addr)
	}

	noFile, err := Load("")
	if err != nil || noFile.Addr != ":4242" {
		t.Errorf("Load(\"\") = %+v, %v", noFile, err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad env", func(c *Config) { c.Env = "staging" }, "env must be"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "logLevel"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "logFormat"},
		{"redis without addr", func(c *Config) { c.Store.Driver = StoreRedis }, "store.redis.addr"},
		{"bad driver", func(c *Config) { c.Store.Driver = "sqlite" }, "store.driver"},
		{"relative live path", func(c *Config) { c.Live.Path = "ws" }, "live.path"},
		{"static prefix", func(c *Config) { c.Static.Prefix = "/static" }, "static.prefix"},
		{"zero buffer", func(c *Config) { c.Live.SendBuffer = -1 }, "live.sendBuffer"},
		{"concurrency", func(c *Config) { c.Render.PrefetchConcurrency = -2 }, "prefetchConcurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			var pe *errors.PageError
			if !stderrors.As(err, &pe) || pe.Code != "E203" {
				t.Fatalf("Validate() = %v, want E203", err)
			}
			if !strings.Contains(pe.Detail, tt.want) {
				t.Errorf("Detail = %q, want to mention %q", pe.Detail, tt.want)
			}
		})
	}
}

func TestDurationRoundTrip(t *testing.T) {
	d := Duration(90 * time.Second)
	data, err := d.MarshalJSON()
	if err != nil || string(data) != `"1m30s"` {
		t.Fatalf("MarshalJSON = %s, %v", data, err)
	}
	var back Duration
	if err := back.UnmarshalJSON(data); err != nil || back != d {
		t.Errorf("UnmarshalJSON = %v, %v", back, err)
	}
}
