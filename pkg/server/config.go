package server

import "time"

// Config holds HTTP server configuration.
type Config struct {
	// Address is the listen address.
	// Default: ":3000".
	Address string

	// LivePath is the WebSocket relay endpoint.
	// Default: "/ws".
	LivePath string

	// MetricsPath is the Prometheus scrape endpoint. Only mounted when
	// metrics are configured.
	// Default: "/metrics".
	MetricsPath string

	// StaticPrefix is the URL prefix for built assets.
	// Default: "/static/".
	StaticPrefix string

	// StaticDir is the directory served under StaticPrefix. Empty disables
	// static serving.
	StaticDir string

	// Timeouts for the underlying http.Server.
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10 seconds.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":3000",
		LivePath:          "/ws",
		MetricsPath:       "/metrics",
		StaticPrefix:      "/static/",
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

// withDefaults returns a copy of c with zero fields filled in.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Address == "" {
		out.Address = d.Address
	}
	if out.LivePath == "" {
		out.LivePath = d.LivePath
	}
	if out.MetricsPath == "" {
		out.MetricsPath = d.MetricsPath
	}
	if out.StaticPrefix == "" {
		out.StaticPrefix = d.StaticPrefix
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = d.ReadHeaderTimeout
	}
	if out.ReadTimeout == 0 {
		out.ReadTimeout = d.ReadTimeout
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.IdleTimeout == 0 {
		out.IdleTimeout = d.IdleTimeout
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	return &out
}
