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
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "tierboard/searchservice/internal/api/http"
	"tierboard/searchservice/internal/app"
	"tierboard/searchservice/internal/itemcache"
	"tierboard/searchservice/internal/mediatype"
	"tierboard/searchservice/internal/metrics"
	"tierboard/searchservice/internal/providers/discogs"
	"tierboard/searchservice/internal/providers/igdb"
	"tierboard/searchservice/internal/providers/musicbrainz"
	"tierboard/searchservice/internal/providers/openlibrary"
	"tierboard/searchservice/internal/providers/tmdb"
	"tierboard/searchservice/internal/search"
	"tierboard/searchservice/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "tierboard-search")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "tierboard-search"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("requestTimeout", cfg.RequestTimeout),
		slog.String("musicBackend", cfg.MusicBackend),
		slog.Bool("hasDiscogsToken", cfg.DiscogsToken != ""),
		slog.Bool("hasTMDBKey", cfg.TMDBAPIKey != ""),
		slog.Bool("hasIGDBCredentials", cfg.IGDBClientID != "" && cfg.IGDBClientSecret != ""),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Duration("cacheTTL", cfg.CacheTTL),
	)

	registry, err := mediatype.BuildDefaultRegistry()
	if err != nil {
		logger.Error("registry build failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	redisClient := connectRedis(cfg, logger)

	adapters := buildAdapters(cfg)
	itemCache := buildItemCache(redisClient, logger)

	searchService := search.NewService(registry, adapters, cfg.RequestTimeout,
		buildServiceOptions(cfg, redisClient, itemCache, logger)...)

	handler := apihttp.NewServer(searchService, registry, apihttp.WithLogger(logger)).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	searchService.StartBackground(rootCtx)
	itemCache.StartBackground(rootCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("tierboard search service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("timeout", cfg.RequestTimeout),
		slog.Int("adapters", len(adapters)),
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
	if err := itemCache.Flush(shutdownCtx); err != nil {
		logger.Warn("item cache flush failed", slog.String("error", err.Error()))
	}
	logger.Info("tierboard search service stopped")
}

func buildAdapters(cfg app.Config) []search.Adapter {
	newClient := func() *http.Client {
		return &http.Client{Timeout: cfg.RequestTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	return []search.Adapter{
		musicbrainz.NewProvider(musicbrainz.Config{
			Endpoint:         cfg.MusicBrainzEndpoint,
			CoverArtEndpoint: cfg.CoverArtEndpoint,
			UserAgent:        cfg.UserAgent,
			Client:           newClient(),
			RequestsPerSec:   cfg.MusicBrainzRPS,
		}),
		discogs.NewProvider(discogs.Config{
			Token:     cfg.DiscogsToken,
			Endpoint:  cfg.DiscogsEndpoint,
			UserAgent: cfg.UserAgent,
			Client:    newClient(),
		}),
		tmdb.NewProvider(tmdb.Config{
			APIKey:   cfg.TMDBAPIKey,
			Endpoint: cfg.TMDBBaseURL,
			Client:   newClient(),
		}),
		igdb.NewProvider(igdb.Config{
			ClientID:      cfg.IGDBClientID,
			ClientSecret:  cfg.IGDBClientSecret,
			Endpoint:      cfg.IGDBEndpoint,
			TokenEndpoint: cfg.IGDBTokenEndpoint,
			Client:        newClient(),
		}),
		openlibrary.NewProvider(openlibrary.Config{
			Endpoint: cfg.OpenLibraryEndpoint,
			Client:   newClient(),
		}),
	}
}

func connectRedis(cfg app.Config, logger *slog.Logger) *redis.Client {
	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, persistence disabled", slog.String("error", err.Error()))
		return nil
	}
	client := redis.NewClient(redisOpts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable, persistence disabled", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	return client
}

func buildItemCache(redisClient *redis.Client, logger *slog.Logger) *itemcache.Cache {
	opts := []itemcache.Option{itemcache.WithLogger(logger)}
	if redisClient != nil {
		opts = append(opts, itemcache.WithStore(itemcache.NewRedisStore(redisClient, "")))
	}
	cache := itemcache.New(opts...)

	loadCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cache.Load(loadCtx); err != nil {
		logger.Warn("item cache load failed, starting empty", slog.String("error", err.Error()))
	} else if cache.Len() > 0 {
		logger.Info("item cache loaded", slog.Int("items", cache.Len()))
	}
	return cache
}

func buildServiceOptions(cfg app.Config, redisClient *redis.Client, itemCache *itemcache.Cache, logger *slog.Logger) []search.ServiceOption {
	opts := []search.ServiceOption{
		search.WithLogger(logger),
		search.WithItemCache(itemCache),
		search.WithPageSize(cfg.PageSize),
	}
	if cfg.MusicBackend != "" {
		opts = append(opts, search.WithActiveBackend("music", cfg.MusicBackend))
	}

	if cfg.CacheDisabled {
		opts = append(opts, search.WithCacheDisabled(true))
		return opts
	}
	if cfg.CacheTTL > 0 {
		opts = append(opts, search.WithCacheTTL(cfg.CacheTTL))
	}
	if redisClient != nil {
		opts = append(opts, search.WithRedisCache(search.NewRedisCacheBackend(redisClient)))
	}
	return opts
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
