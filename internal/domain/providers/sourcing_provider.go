package providers

import (
	"context"
)

// RawResult is a single listing as returned by an upstream marketplace,
// before normalization. Price is nil when the source only quotes on
// request; a nil price is not the same as a zero price.
type RawResult struct {
	Title            string
	Price            *float64
	Currency         string
	Merchant         string
	URL              string
	MerchantDomain   string
	ImageURL         string
	Rating           *float64
	ReviewsCount     *int
	ShippingInfo     string
	Source           string
	VectorSimilarity *float64

	// Embedding carries the source-side vector for results that already
	// have one (vendor directory rows). Used by the reranker; nil for
	// marketplace results.
	Embedding []float32

	Raw map[string]any
}

// SearchOptions carries per-call tuning for a provider search.
type SearchOptions struct {
	// MaxResults caps how many results the provider should return.
	// Zero means provider default.
	MaxResults int

	// MinPrice and MaxPrice are passed through to sources that support
	// server-side price constraints. Enforcement still happens locally in
	// the filter stage regardless of upstream support.
	MinPrice *float64
	MaxPrice *float64

	// ContextQuery is the full raw user query, for providers that blend
	// intent and context signals (vendor directory search). Empty when it
	// would be identical to the search query.
	ContextQuery string
}

// SourcingProvider defines the interface for upstream listing sources.
// Implementations must be safe for concurrent use; the fan-out layer
// calls every registered provider in parallel.
type SourcingProvider interface {
	// Name returns the stable source identifier (e.g. "ebay", "kroger").
	Name() string

	// PricedAlways reports whether results from this source always carry
	// a concrete price. Sources that return quote-style results (price
	// negotiated later) return false and are exempt from hard price
	// filtering downstream.
	PricedAlways() bool

	// Search runs a keyword search against the upstream source. A failed
	// upstream call returns a typed error so the caller can distinguish
	// quota exhaustion, rate limiting, and timeouts from plain failures.
	Search(ctx context.Context, query string, opts SearchOptions) ([]RawResult, error)
}
