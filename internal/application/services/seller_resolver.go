package services

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/repositories"
)

// SellerKey identifies one merchant during a persist pass. Domain is the
// batch key; Name rides along so a missing seller can be created with a
// display name.
type SellerKey struct {
	Domain string
	Name   string
}

// SellerResolver batches seller get-or-create lookups so one persist pass
// issues a single domain query no matter how many listings it writes.
type SellerResolver struct {
	repo repositories.SellerRepository
}

func NewSellerResolver(repo repositories.SellerRepository) *SellerResolver {
	return &SellerResolver{repo: repo}
}

// NewLoader builds a loader scoped to one persist pass. Loaders are not
// shared across passes: a cached loader would hide sellers created since.
func (r *SellerResolver) NewLoader() *dataloader.Loader[SellerKey, *entities.Seller] {
	return dataloader.NewBatchedLoader(r.batchGetOrCreate)
}

// batchGetOrCreate resolves every key in one pass: a single
// WHERE domain IN (...) read, then individual get-or-creates for the
// domains the read did not cover. A key with no domain resolves to a nil
// seller rather than an error, since listings without a merchant domain
// are legitimate.
func (r *SellerResolver) batchGetOrCreate(ctx context.Context, keys []SellerKey) []*dataloader.Result[*entities.Seller] {
	results := make([]*dataloader.Result[*entities.Seller], len(keys))

	seen := make(map[string]struct{}, len(keys))
	domains := make([]string, 0, len(keys))
	for _, key := range keys {
		domain := entities.NormalizeSellerDomain(key.Domain)
		if domain == "" {
			continue
		}
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		domains = append(domains, domain)
	}

	existing := make(map[string]*entities.Seller)
	if len(domains) > 0 {
		found, err := r.repo.GetByDomains(ctx, domains)
		if err != nil {
			for i := range keys {
				results[i] = &dataloader.Result[*entities.Seller]{Error: err}
			}
			return results
		}
		existing = found
	}

	for i, key := range keys {
		domain := entities.NormalizeSellerDomain(key.Domain)
		if domain == "" {
			results[i] = &dataloader.Result[*entities.Seller]{}
			continue
		}
		if seller, ok := existing[domain]; ok {
			results[i] = &dataloader.Result[*entities.Seller]{Data: seller}
			continue
		}
		seller, err := r.repo.GetOrCreate(ctx, key.Name, domain)
		if err != nil {
			results[i] = &dataloader.Result[*entities.Seller]{Error: err}
			continue
		}
		existing[domain] = seller
		results[i] = &dataloader.Result[*entities.Seller]{Data: seller}
	}
	return results
}
