package catalog

import (
	"context"

	"github.com/skyhive/marketdex/internal/domain/listing"
	"github.com/skyhive/marketdex/internal/domain/search/index"
)

// Index reads listing documents and aggregations from the index store.
type Index interface {
	Get(ctx context.Context, id string) (*listing.Document, error)
	Search(ctx context.Context, body index.Query) (*index.Response, error)
}

// ResultCache stores whole responses keyed by data class. Implementations
// treat failures as misses; Get never errors.
type ResultCache interface {
	Get(ctx context.Context, class, key string, dst any) bool
	Put(ctx context.Context, class, key string, v any)
}
