// Package index defines the wire contract with the index store.
package index

import "github.com/skyhive/marketdex/internal/domain/listing"

// Query is the JSON query body sent to the index store.
type Query map[string]any

// Response is an executed index query: matched hits plus aggregations.
type Response struct {
	TookMS       int
	Total        int
	Hits         []Hit
	Aggregations map[string]any
}

// Hit is one index match with its raw relevance score.
type Hit struct {
	ID      string
	Score   float64
	Listing listing.Document
}
