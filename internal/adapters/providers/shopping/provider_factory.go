package shopping

import (
	"github.com/dealscout/sourcing/internal/domain/providers"
)

// SearchProviderConfig configures the marketplace search providers.
type SearchProviderConfig struct {
	EbayClientID      string
	EbayClientSecret  string
	KrogerClientID    string
	KrogerSecret      string
	KrogerLocationZip string
	TicketmasterKey   string
	RainforestKey     string
	UseMockSearch     bool
}

// NewSearchProviders builds every provider with usable credentials, each
// wrapped in its own circuit breaker. A missing credential means the
// provider is simply absent. With mock search forced, or nothing
// configured, the deterministic mock provider is the sole source so local
// development works without any keys.
func NewSearchProviders(cfg SearchProviderConfig) []providers.SourcingProvider {
	if cfg.UseMockSearch {
		return []providers.SourcingProvider{NewMockShopAdapter()}
	}

	var built []providers.SourcingProvider
	if cfg.EbayClientID != "" && cfg.EbayClientSecret != "" {
		built = append(built, WithBreaker(NewEbayAdapter(cfg.EbayClientID, cfg.EbayClientSecret)))
	}
	if cfg.KrogerClientID != "" && cfg.KrogerSecret != "" {
		built = append(built, WithBreaker(NewKrogerAdapter(cfg.KrogerClientID, cfg.KrogerSecret, cfg.KrogerLocationZip)))
	}
	if cfg.TicketmasterKey != "" {
		built = append(built, WithBreaker(NewTicketmasterAdapter(cfg.TicketmasterKey)))
	}
	if cfg.RainforestKey != "" {
		built = append(built, WithBreaker(NewRainforestAdapter(cfg.RainforestKey)))
	}

	if len(built) == 0 {
		built = append(built, NewMockShopAdapter())
	}

	return built
}
