package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/postline/internal/blog"
	"github.com/vango-dev/postline/internal/config"
	"github.com/vango-dev/postline/internal/errors"
	"github.com/vango-dev/postline/pkg/assets"
	"github.com/vango-dev/postline/pkg/live"
	"github.com/vango-dev/postline/pkg/middleware"
	"github.com/vango-dev/postline/pkg/prefetch"
	"github.com/vango-dev/postline/pkg/render"
	"github.com/vango-dev/postline/pkg/server"
	"github.com/vango-dev/postline/pkg/store"
	"github.com/vango-dev/postline/pkg/view"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		envFile    string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		Long: `Start the HTTP server: server-rendered pages, the JSON API, the
live relay at /ws and Prometheus metrics.

Examples:
  postline serve
  postline serve --config postline.yaml
  POSTLINE_ENV=production postline serve --addr :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := newLogger(cmd.ErrOrStderr(), cfg)
			slog.SetDefault(logger)

			srv, cleanup, err := buildServer(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			info(cmd, "postline %s (%s) listening on %s", version, cfg.Env, cfg.Addr)
			if err := srv.Run(); err != nil {
				return errors.New("E301").WithDetail("Listening on " + cfg.Addr).Wrap(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file (.json, .yaml or .yml)")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides config)")
	return cmd
}

// loadEnvFile loads a dotenv file. A missing file is not an error.
// Variables already set in the environment win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.New("E201").WithDetail("Failed to load " + path).Wrap(err)
	}
	return nil
}

// newLogger builds the process logger: JSON in production, text otherwise.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("service", "postline", "env", cfg.Env)
}

// buildServer wires the store, asset manifest, metrics, live hub, render
// pipeline and HTTP server from cfg. cleanup releases the store.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server.Server, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.SeedEnabled() {
		if err := blog.Seed(ctx, st); err != nil {
			closeStore()
			return nil, nil, err
		}
		logger.Info("seeded demo data")
	}

	asmConfig := render.AssemblerConfig{
		Production:  cfg.IsProduction(),
		AssetPrefix: cfg.Static.Prefix,
	}
	if cfg.Assets.Manifest != "" {
		manifest, err := loadManifest(ctx, cfg)
		if err != nil {
			closeStore()
			return nil, nil, err
		}
		asmConfig.Assets = manifest
		logger.Info("asset manifest loaded", "source", cfg.Assets.Manifest, "entries", manifest.Len())
	} else if cfg.IsProduction() {
		logger.Warn("no asset manifest configured; serving unfingerprinted asset names")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewCollector(
		middleware.WithRegistry(registry),
		middleware.WithNamespace(cfg.Metrics.Namespace),
	)

	hub := live.NewHub(live.WithLogger(logger), live.WithObserver(metrics))

	handler := server.NewHandler(server.HandlerConfig{
		Routes: blog.Routes(""),
		Prefetch: prefetch.New(st,
			prefetch.WithTimeout(cfg.Render.PrefetchTimeout.Std()),
			prefetch.WithConcurrency(cfg.Render.PrefetchConcurrency),
			prefetch.WithLogger(logger),
		),
		Renderer:   view.NewTreeRenderer(),
		Assembler:  render.NewAssembler(asmConfig),
		Observer:   metrics,
		Logger:     logger,
		TracerName: cfg.Tracing.TracerName,
	})

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithLiveConfig(&live.Config{
			ReadTimeout:       cfg.Live.ReadTimeout.Std(),
			WriteTimeout:      cfg.Live.WriteTimeout.Std(),
			HeartbeatInterval: cfg.Live.Heartbeat.Std(),
			MaxMessageSize:    cfg.Live.MaxMessageSize,
			SendBuffer:        cfg.Live.SendBuffer,
		}),
		server.WithRoutes(blog.NewAPI(st, logger).Mount),
	}
	if !cfg.Metrics.Disabled {
		opts = append(opts, server.WithMetrics(metrics, registry))
	}
	if cfg.Tracing.Enabled {
		opts = append(opts, server.WithTracing(
			middleware.WithTracerName(cfg.Tracing.TracerName),
			middleware.WithRequestFilter(func(r *http.Request) bool {
				return r.URL.Path != cfg.Metrics.Path
			}),
		))
	}

	srv := server.New(&server.Config{
		Address:         cfg.Addr,
		LivePath:        cfg.Live.Path,
		MetricsPath:     cfg.Metrics.Path,
		StaticPrefix:    cfg.Static.Prefix,
		StaticDir:       cfg.Static.Dir,
		ReadTimeout:     cfg.Server.ReadTimeout.Std(),
		WriteTimeout:    cfg.Server.WriteTimeout.Std(),
		IdleTimeout:     cfg.Server.IdleTimeout.Std(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Std(),
	}, handler, hub, opts...)

	return srv, closeStore, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.Store.Driver != config.StoreRedis {
		s := store.NewMemoryStore()
		return s, func() { _ = s.Close() }, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := store.DialRedis(dialCtx, store.RedisOptions{
		Addr:       cfg.Store.Redis.Addr,
		Username:   cfg.Store.Redis.Username,
		Password:   cfg.Store.Redis.Password,
		DB:         cfg.Store.Redis.DB,
		MasterName: cfg.Store.Redis.MasterName,
	})
	if err != nil {
		return nil, nil, errors.New("E302").
			WithDetail("Redis at " + cfg.Store.Redis.Addr).
			WithSuggestion("Start Redis at that address or set store.driver to \"memory\".").
			Wrap(err)
	}
	s := store.NewRedisStore(client, store.WithRedisPrefix(cfg.Store.Redis.Prefix))
	return s, func() { _ = client.Close() }, nil
}

func loadManifest(ctx context.Context, cfg *config.Config) (*assets.Manifest, error) {
	var getter assets.ObjectGetter
	if strings.HasPrefix(cfg.Assets.Manifest, "s3://") {
		getter = assets.NewS3Client(cfg.Assets.S3Region, cfg.Assets.S3Endpoint)
	}
	m, err := assets.LoadURI(ctx, cfg.Assets.Manifest, getter)
	if err != nil {
		return nil, errors.New("E302").
			WithDetail("Asset manifest " + cfg.Assets.Manifest).
			WithSuggestion("Check POSTLINE_ASSET_MANIFEST; s3:// manifests also need AWS credentials and assets.s3Region.").
			Wrap(err)
	}
	return m, nil
}
