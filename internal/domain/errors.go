package domain

import "errors"

var (
	// ErrSearchUnavailable signals that the index store is unreachable or
	// rejected the query. Callers may retry.
	ErrSearchUnavailable = errors.New("search unavailable")
	// ErrListingNotFound signals a missing listing document.
	ErrListingNotFound = errors.New("listing not found")
	// ErrInvalidRequest signals a malformed inbound request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEmbeddingProviderError signals an embedding gateway failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRecommendationsDisabled signals recommendations are turned off in config.
	ErrRecommendationsDisabled = errors.New("recommendations disabled")
)
