package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	apihttp "debridstream/resolverservice/internal/api/http"
	"debridstream/resolverservice/internal/app"
	"debridstream/resolverservice/internal/metrics"
	"debridstream/resolverservice/internal/providers/realdebrid"
	"debridstream/resolverservice/internal/providers/torrentio"
	"debridstream/resolverservice/internal/resolver"
	"debridstream/resolverservice/internal/telemetry"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("configuration error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "release-resolver")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	if cfg.DebridAPIToken == "" {
		logger.Error("DEBRID_API_TOKEN is required")
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("service", "release-resolver"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("requestTimeout", cfg.RequestTimeout),
		slog.String("torrentioEndpoint", cfg.TorrentioEndpoint),
		slog.String("catalogEndpoint", cfg.CatalogEndpoint),
		slog.String("debridEndpoint", cfg.DebridEndpoint),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Int("profiles", len(cfg.Profiles)),
		slog.Duration("ledgerTTL", cfg.LedgerTTL),
	)

	source := torrentio.NewProvider(torrentio.Config{
		StreamEndpoint:  cfg.TorrentioEndpoint,
		CatalogEndpoint: cfg.CatalogEndpoint,
		Options:         cfg.TorrentioOptions,
		Timeout:         cfg.RequestTimeout,
		MaxAttempts:     cfg.UpstreamMaxAttempts,
		RetryBackoff:    cfg.UpstreamBackoff,
	})
	debrid := realdebrid.NewClient(realdebrid.Config{
		Endpoint:     cfg.DebridEndpoint,
		APIToken:     cfg.DebridAPIToken,
		Timeout:      cfg.RequestTimeout,
		MaxAttempts:  cfg.UpstreamMaxAttempts,
		RetryBackoff: cfg.UpstreamBackoff,
	}, logger)

	matcher := resolver.NewMatcher(debrid, logger)
	ledger := resolver.NewLedger(cfg.LedgerTTL, cfg.LedgerMaxEntries, buildLedgerBackend(cfg, logger))

	service, err := resolver.NewService(source, matcher, ledger, resolver.ServiceConfig{
		Profiles:      cfg.Profiles,
		DebounceQuiet: cfg.DebounceQuiet,
	}, logger)
	if err != nil {
		logger.Error("service init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handler := apihttp.NewServer(service, apihttp.WithLogger(logger)).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// A resolution can legitimately spend the whole upstream budget;
		// rely on per-upstream timeouts instead of a server write deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("release resolver started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("timeout", cfg.RequestTimeout),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("release resolver stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLedgerBackend(cfg app.Config, logger *slog.Logger) *resolver.RedisLedgerBackend {
	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, ledger stays in-memory only", slog.String("error", err.Error()))
		return nil
	}
	client := redis.NewClient(redisOpts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable, ledger stays in-memory only", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	return resolver.NewRedisLedgerBackend(client)
}
