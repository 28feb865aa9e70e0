package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/skyhive/marketdex/internal/config"
	dbRedis "github.com/skyhive/marketdex/internal/db/redis"
	logpkg "github.com/skyhive/marketdex/internal/logger"
	"github.com/skyhive/marketdex/internal/metrics"
	"github.com/skyhive/marketdex/internal/ranking"
	"github.com/skyhive/marketdex/internal/repository/embcache"
	"github.com/skyhive/marketdex/internal/repository/interactions"
	"github.com/skyhive/marketdex/internal/repository/resultcache"
	chiTransport "github.com/skyhive/marketdex/internal/transport/chi"
	"github.com/skyhive/marketdex/internal/transport/elastic"
	"github.com/skyhive/marketdex/internal/transport/natspub"
	openaiEmb "github.com/skyhive/marketdex/internal/transport/openai"
	cataloguc "github.com/skyhive/marketdex/internal/usecase/catalog"
	healthuc "github.com/skyhive/marketdex/internal/usecase/health"
	recommenduc "github.com/skyhive/marketdex/internal/usecase/recommend"
	searchuc "github.com/skyhive/marketdex/internal/usecase/search"
	"github.com/skyhive/marketdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting marketdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("index_addrs", cfg.Index.Addresses),
		zap.Strings("cache_addrs", cfg.Cache.Addrs),
	)

	// Result/embedding cache store
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Cache.Addrs,
		Password: cfg.Cache.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create cache store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Cache store not ready", zap.Error(err))
	}
	logger.Info("Connected to cache store")

	// Interaction ledger (postgres, read-only)
	sqlDB, err := sql.Open("postgres", cfg.Interactions.DSN())
	if err != nil {
		logger.Fatal("Failed to open interactions database", zap.Error(err))
	}
	defer func() { _ = sqlDB.Close() }()
	sqlDB.SetMaxOpenConns(cfg.Interactions.MaxOpenConns)
	if cfg.Interactions.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Interactions.MaxIdleConns)
	}
	if d, err := time.ParseDuration(cfg.Interactions.ConnMaxLifetime); err == nil && d > 0 {
		sqlDB.SetConnMaxLifetime(d)
	}
	ledger := interactions.New(sqlDB)

	// Index store
	index, err := elastic.NewClient(elastic.Config{
		Addresses:  cfg.Index.Addresses,
		Username:   cfg.Index.Username,
		Password:   cfg.Index.Password,
		IndexName:  cfg.Index.IndexName,
		MaxRetries: cfg.Index.MaxRetries,
	})
	if err != nil {
		logger.Fatal("Failed to create index client", zap.Error(err))
	}

	// Register metrics explicitly (no init())
	metrics.RegisterSearchMetrics()
	metrics.RegisterEmbeddingMetrics()

	// Embedding gateway. The raw client keeps EmbedBatch and HealthCheck;
	// the query path optionally goes through the KV cache decorator.
	var (
		base          *openaiEmb.Embedder
		queryEmbedder searchuc.Embedder
	)
	if cfg.Search.SemanticEnabled {
		if cfg.Embedding.APIKey == "" {
			logger.Fatal("embedding.api_key is required when search.semantic_enabled is set")
		}
		base = openaiEmb.NewEmbedder(openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
		queryEmbedder = base
		if cfg.Embedding.CacheQueries {
			queryEmbedder = embcache.New(base, store, cfg.Cache.KeyPrefix+"emb:", logger)
		}
		logger.Info("Embedding gateway ready",
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
			zap.Bool("query_cache", cfg.Embedding.CacheQueries),
		)
	} else {
		logger.Info("Semantic search disabled, lexical-only query planning")
	}

	// Ranking engine. Invalid weights refuse startup.
	ranker, err := ranking.NewEngine(cfg.Search.RankingWeights, cfg.Search.RankingNorms)
	if err != nil {
		logger.Fatal("Invalid ranking configuration", zap.Error(err))
	}

	// Analytics publisher (optional)
	var analytics searchuc.Analytics
	if cfg.Analytics.Enabled {
		pub, err := natspub.Connect(cfg.Analytics.URL, cfg.Analytics.Subject, logger)
		if err != nil {
			logger.Fatal("Failed to connect analytics publisher", zap.Error(err))
		}
		defer pub.Close()
		analytics = pub
		logger.Info("Analytics publisher connected", zap.String("subject", cfg.Analytics.Subject))
	}

	cache := resultcache.New(store, cfg.Cache.KeyPrefix, &cfg.Cache, logger)

	// Use case services
	planner := searchuc.NewPlanner(queryEmbedder, cfg.Search.SemanticEnabled, logger)
	searchSvc := searchuc.New(
		index, planner, ranker, cache, analytics, logger,
		cfg.Search.DefaultPageSize, cfg.Search.MaxResults,
	)
	recSvc := recommenduc.New(ledger, index, cache, recommenduc.Options{
		Enabled:                 cfg.Recommendations.Enabled,
		MaxRecommendations:      cfg.Recommendations.MaxRecommendations,
		CollaborativeWeight:     cfg.Recommendations.CollaborativeWeight,
		ContentWeight:           cfg.Recommendations.ContentWeight,
		PopularityWeight:        cfg.Recommendations.PopularityWeight,
		MinCommonUsers:          cfg.Recommendations.MinCommonUsers,
		MinUserHistory:          cfg.Recommendations.MinUserHistory,
		TrendingWindow:          cfg.Recommendations.TrendingWindowDuration(),
		TrendingMinInteractions: cfg.Recommendations.TrendingMinInteractions,
	}, logger)
	catalogSvc := cataloguc.New(index, cache, logger)

	var embChecker healthuc.EmbeddingChecker
	if base != nil {
		embChecker = base
	}
	healthSvc := healthuc.New(store, index, ledger, embChecker)

	// Chi server
	server := chiTransport.NewServer(searchSvc, recSvc, catalogSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.WithContext(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
