package indexer

import (
	"context"

	"github.com/skyhive/marketdex/internal/domain/listing"
)

// BatchEmbedder vectorizes listing texts in batches.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Index receives embedded listing documents.
type Index interface {
	BulkIndex(ctx context.Context, docs []*listing.Document) error
}
