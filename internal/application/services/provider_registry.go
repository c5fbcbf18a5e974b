package services

import (
	"sync"

	"github.com/dealscout/sourcing/internal/domain/providers"
)

// ProviderRegistry holds the active sourcing providers in registration order.
// It is an explicit dependency handed to the fan-out layer; there is no
// package-level default registry.
type ProviderRegistry struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]providers.SourcingProvider
}

// NewProviderRegistry builds a registry from the given providers.
func NewProviderRegistry(list ...providers.SourcingProvider) *ProviderRegistry {
	registry := &ProviderRegistry{byName: make(map[string]providers.SourcingProvider)}
	for _, provider := range list {
		registry.Register(provider)
	}
	return registry
}

// Register adds a provider, replacing any existing provider with the same
// name while keeping its original position.
func (r *ProviderRegistry) Register(provider providers.SourcingProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := provider.Name()
	if _, exists := r.byName[name]; !exists {
		r.order = append(r.order, name)
	}
	r.byName[name] = provider
}

// Get returns the provider registered under name.
func (r *ProviderRegistry) Get(name string) (providers.SourcingProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.byName[name]
	return provider, ok
}

// All returns every registered provider in registration order.
func (r *ProviderRegistry) All() []providers.SourcingProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]providers.SourcingProvider, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.byName[name])
	}
	return list
}

// Names returns the registered provider names in registration order.
func (r *ProviderRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Select returns the providers matching the requested names, keeping
// registration order and silently dropping unknown names. An empty request
// selects every provider.
func (r *ProviderRegistry) Select(names []string) []providers.SourcingProvider {
	if len(names) == 0 {
		return r.All()
	}
	requested := make(map[string]bool, len(names))
	for _, name := range names {
		requested[name] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []providers.SourcingProvider
	for _, name := range r.order {
		if requested[name] {
			list = append(list, r.byName[name])
		}
	}
	return list
}

// PricedAlways reports whether the named source always returns concrete
// prices. Unknown sources count as priced, so their results stay subject to
// hard price filtering.
func (r *ProviderRegistry) PricedAlways(name string) bool {
	provider, ok := r.Get(name)
	if !ok {
		return true
	}
	return provider.PricedAlways()
}

// Len returns the number of registered providers.
func (r *ProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
