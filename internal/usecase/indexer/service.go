// Package indexer embeds listing documents and writes them to the
// index store in bulk. Embedding traffic is chunked with a fixed pause
// between batches to bound the outbound request rate.
package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/skyhive/marketdex/internal/domain/listing"
)

// Options control embedding batch shape and pacing.
type Options struct {
	BatchSize  int
	BatchPause time.Duration
}

const defaultBatchSize = 50

// Service indexes listing batches.
type Service struct {
	embed  BatchEmbedder
	index  Index
	opts   Options
	logger *zap.Logger
}

// New creates an indexer.
func New(embed BatchEmbedder, index Index, opts Options, logger *zap.Logger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &Service{embed: embed, index: index, opts: opts, logger: logger}
}

// IndexListings embeds the documents chunk by chunk, pausing between
// chunks, then bulk-writes the whole set. A ready embedding on a
// document is kept as is. Indexing is all-or-nothing per call: any
// embedding or bulk failure aborts without a partial write.
func (s *Service) IndexListings(ctx context.Context, docs []*listing.Document) error {
	if len(docs) == 0 {
		return nil
	}

	pending := make([]*listing.Document, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			pending = append(pending, doc)
		}
	}
	if len(pending) > 0 && s.embed == nil {
		return fmt.Errorf("%d listings need embedding but no embedding gateway is configured", len(pending))
	}

	for start := 0; start < len(pending); start += s.opts.BatchSize {
		end := start + s.opts.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]

		texts := make([]string, len(chunk))
		for i, doc := range chunk {
			texts[i] = doc.EmbeddingText()
		}

		vectors, err := s.embed.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		for i := range chunk {
			chunk[i].Embedding = vectors[i]
		}

		if end < len(pending) && s.opts.BatchPause > 0 {
			select {
			case <-time.After(s.opts.BatchPause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if err := s.index.BulkIndex(ctx, docs); err != nil {
		return fmt.Errorf("bulk index %d listings: %w", len(docs), err)
	}

	s.logger.Info("listings indexed",
		zap.Int("total", len(docs)),
		zap.Int("embedded", len(pending)))
	return nil
}
