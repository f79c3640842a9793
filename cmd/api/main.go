// Package main is the entry point for the scoring API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/tonequest/api/internal/api"
	"github.com/tonequest/api/internal/auth"
	"github.com/tonequest/api/internal/cache"
	"github.com/tonequest/api/internal/config"
	"github.com/tonequest/api/internal/db"
	"github.com/tonequest/api/internal/embedding"
	"github.com/tonequest/api/internal/health"
	"github.com/tonequest/api/internal/leaderboard"
	"github.com/tonequest/api/internal/middleware"
	"github.com/tonequest/api/internal/question"
	"github.com/tonequest/api/internal/scoring"
	"github.com/tonequest/api/internal/stream"
	"github.com/tonequest/api/internal/tracing"
)

// liveTopN is the size of the snapshot pushed to live stream subscribers.
const liveTopN = 10

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("ToneQuest API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	logger := middleware.NewLogger(envOrDefault(cfg))
	slog.SetDefault(logger)

	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("configuration error", "error", err)
		}
		os.Exit(1)
	}
	logConfigSummary(logger, cfg)

	// Tracing
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "tonequest-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure(),
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	lbMetrics := leaderboard.NewMetrics()
	if err := lbMetrics.Register(registry); err != nil {
		logger.Error("failed to register leaderboard metrics", "error", err)
		os.Exit(1)
	}

	// Leaderboard store: Redis when configured, in-memory otherwise.
	var store leaderboard.Store
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store = leaderboard.NewRedisStore(redisClient, cfg.RedisLeaderboardKey, leaderboard.WithRedisMetrics(lbMetrics))
		logger.Info("using redis leaderboard store", "addr", cfg.RedisAddr, "key", cfg.RedisLeaderboardKey)
	} else {
		store = leaderboard.NewMemoryStore(leaderboard.WithMetrics(lbMetrics))
		logger.Info("using in-memory leaderboard store")
	}

	// Question repository: Postgres when configured, in-memory otherwise.
	var questions question.Repository
	var dbPool *sql.DB
	if cfg.DatabaseURL != "" {
		dbPool, err = db.Open(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()
		questions = question.NewPostgresRepository(dbPool, logger)
		logger.Info("using postgres question repository")
	} else {
		questions = question.NewInMemoryRepository()
		logger.Warn("DATABASE_URL not set; using empty in-memory question repository")
	}

	// Embedding oracle and reference-record cache.
	oracle := embedding.NewClient(cfg.EmbeddingURL)
	recordCache := cache.New[int, *scoring.Record](
		cfg.CacheCapacity,
		time.Duration(cfg.CacheTTLSeconds)*time.Second,
		cache.WithSweepInterval(time.Minute),
	)
	defer recordCache.Close()

	// Live leaderboard stream.
	broadcaster := stream.NewBroadcaster(liveSnapshot(store), logger)
	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()
	go broadcaster.Run(streamCtx)

	// Scoring service.
	svcOpts := []scoring.ServiceOption{}
	if cfg.ReportScores {
		svcOpts = append(svcOpts,
			scoring.WithLeaderboard(store),
			scoring.WithDeltaCallback(broadcaster.Notify),
		)
	}
	svc := scoring.NewService(questions, oracle, recordCache, logger, svcOpts...)

	if cfg.WarmCache {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := svc.Warmup(ctx); err != nil {
				logger.Warn("cache warmup incomplete", "error", err)
			} else {
				logger.Info("cache warmup complete", "cached", recordCache.Stats().Count)
			}
		}()
	}

	// Health checkers for configured dependencies only.
	healthCfg := api.HealthHandlersConfig{
		OracleChecker: health.NewOracleChecker(cfg.EmbeddingURL),
	}
	if dbPool != nil {
		healthCfg.DBChecker = health.NewDBChecker(dbPool)
	}
	if redisClient != nil {
		healthCfg.RedisChecker = health.NewRedisChecker(redisClient)
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)

	mux := api.NewRouter(api.RouterConfig{
		Evaluate: api.NewEvaluateHandlers(svc),
		Leaderboard: api.NewLeaderboardHandlers(store, cfg.NeighborsAbove, cfg.NeighborsBelow,
			api.WithChangeListener(broadcaster.Notify)),
		Cache:          api.NewCacheHandlers(recordCache),
		Health:         api.NewHealthHandlers(healthCfg),
		Live:           api.NewLiveHandlers(broadcaster),
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Authenticate:   middleware.Authenticate(verifier),
	})

	// Middleware chain, outermost first: RequestID -> Tracing ->
	// HTTPMetrics -> Logging -> CORS -> RateLimiter.
	rateLimitStore := middleware.NewInMemoryRateLimitStore()
	var handler http.Handler = mux
	handler = middleware.RateLimiter(rateLimitStore, middleware.RateLimitConfig{
		RequestsPerWindow: 300,
		WindowDuration:    time.Minute,
	}, middleware.SubjectKeyFunc(), httpMetrics)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		MaxAge:         600,
	})(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing("tonequest-api")(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Periodic rate-limit bucket cleanup until shutdown.
	cleanupTicker := time.NewTicker(5 * time.Minute)
	defer cleanupTicker.Stop()
	go func() {
		for range cleanupTicker.C {
			rateLimitStore.Cleanup()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	stopStream()
	if err := tracerProvider.Shutdown(ctx); err != nil {
		logger.Error("tracer shutdown failed", "error", err)
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("redis close failed", "error", err)
		}
	}

	logger.Info("server stopped")
}

// envOrDefault returns the configured environment even when config
// loading failed, so startup errors still get a usable logger.
func envOrDefault(cfg *config.Config) string {
	if cfg == nil || cfg.Env == "" {
		return config.DefaultEnv
	}
	return cfg.Env
}

// logConfigSummary logs the masked configuration at startup.
func logConfigSummary(logger *slog.Logger, cfg *config.Config) {
	attrs := []any{}
	for key, value := range cfg.LogSummary() {
		attrs = append(attrs, slog.String(key, value))
	}
	logger.Info("configuration loaded", attrs...)
}

// liveSnapshot builds the payload pushed to live stream subscribers:
// the current top players with display ranks and 2-decimal scores.
func liveSnapshot(store leaderboard.Store) stream.SnapshotFunc {
	type row struct {
		Rank   int     `json:"rank"`
		UserID string  `json:"user_id"`
		Score  float64 `json:"score"`
	}
	return func(ctx context.Context) (any, error) {
		entries, err := store.TopN(ctx, liveTopN)
		if err != nil {
			return nil, err
		}
		rows := make([]row, len(entries))
		for i, e := range entries {
			rows[i] = row{
				Rank:   e.Rank + 1,
				UserID: e.MemberID,
				Score:  math.Round(e.Score*100) / 100,
			}
		}
		return map[string]any{"leaderboard": rows}, nil
	}
}
