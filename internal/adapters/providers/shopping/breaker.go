package shopping

import (
	"context"
	"log"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dealscout/sourcing/internal/domain/providers"
)

// BreakerProvider wraps a SourcingProvider with a circuit breaker so one
// persistently failing upstream stops being called for a cool-down window
// instead of burning the fan-out deadline on every search.
type BreakerProvider struct {
	inner   providers.SourcingProvider
	breaker *gobreaker.CircuitBreaker
}

// WithBreaker wraps a provider in a circuit breaker
func WithBreaker(inner providers.SourcingProvider) *BreakerProvider {
	settings := gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[%s] circuit breaker %s -> %s", name, from.String(), to.String())
		},
	}

	return &BreakerProvider{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Name returns the wrapped provider's source identifier
func (p *BreakerProvider) Name() string {
	return p.inner.Name()
}

// PricedAlways returns the wrapped provider's pricing capability
func (p *BreakerProvider) PricedAlways() bool {
	return p.inner.PricedAlways()
}

// Search delegates through the circuit breaker
func (p *BreakerProvider) Search(ctx context.Context, query string, opts providers.SearchOptions) ([]providers.RawResult, error) {
	value, err := p.breaker.Execute(func() (interface{}, error) {
		return p.inner.Search(ctx, query, opts)
	})
	if err != nil {
		return nil, err
	}
	results, _ := value.([]providers.RawResult)
	return results, nil
}

var _ providers.SourcingProvider = (*BreakerProvider)(nil)
