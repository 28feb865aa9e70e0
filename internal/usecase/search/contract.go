package search

import (
	"context"

	"github.com/skyhive/marketdex/internal/domain/analytics"
	"github.com/skyhive/marketdex/internal/domain/search/index"
)

// Index executes planned query bodies against the listings index.
type Index interface {
	Search(ctx context.Context, body index.Query) (*index.Response, error)
}

// Embedder vectorizes query text for the semantic clause.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ResultCache stores whole responses keyed by data class. Implementations
// treat failures as misses; Get never errors.
type ResultCache interface {
	Get(ctx context.Context, class, key string, dst any) bool
	Put(ctx context.Context, class, key string, v any)
}

// Analytics receives search events. Delivery is fire-and-forget.
type Analytics interface {
	EmitSearch(ctx context.Context, event analytics.SearchEvent)
}
