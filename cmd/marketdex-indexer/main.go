// Command marketdex-indexer bulk-loads marketplace listings from a JSON
// file into the index store, embedding any listing that arrives without
// a vector. It shares the server's configuration file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/skyhive/marketdex/internal/config"
	"github.com/skyhive/marketdex/internal/domain/listing"
	logpkg "github.com/skyhive/marketdex/internal/logger"
	"github.com/skyhive/marketdex/internal/metrics"
	"github.com/skyhive/marketdex/internal/transport/elastic"
	openaiEmb "github.com/skyhive/marketdex/internal/transport/openai"
	"github.com/skyhive/marketdex/internal/usecase/indexer"
)

func main() {
	file := flag.String("file", "", "path to a JSON array of listing documents")
	flag.Parse()

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

	if *file == "" {
		logger.Fatal("-file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		logger.Fatal("Failed to read listings file", zap.Error(err))
	}
	var docs []*listing.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		logger.Fatal("Failed to parse listings file", zap.Error(err))
	}

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

	metrics.RegisterEmbeddingMetrics()

	var embedder indexer.BatchEmbedder
	if cfg.Embedding.APIKey != "" {
		embedder = openaiEmb.NewEmbedder(openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	}

	svc := indexer.New(embedder, index, indexer.Options{
		BatchSize:  cfg.Embedding.BatchSize,
		BatchPause: time.Duration(cfg.Embedding.BatchPauseMS) * time.Millisecond,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	if err := svc.IndexListings(ctx, docs); err != nil {
		logger.Fatal("Indexing failed", zap.Error(err))
	}
	logger.Info("Indexing complete",
		zap.Int("listings", len(docs)),
		zap.Duration("took", time.Since(started)),
	)
}
