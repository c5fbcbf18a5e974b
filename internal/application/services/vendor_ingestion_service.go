package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/providers"
	"github.com/dealscout/sourcing/internal/domain/repositories"
	apperrors "github.com/dealscout/sourcing/pkg/errors"
	"github.com/dealscout/sourcing/pkg/utils"
)

// VendorSeed is one vendor record as supplied by an import source (seed
// script, CSV import, partner feed). The website is the natural key: its
// domain decides whether the seed creates a vendor or refreshes one.
type VendorSeed struct {
	Name         string         `json:"name"`
	Website      string         `json:"website"`
	Description  string         `json:"description"`
	ServiceAreas []string       `json:"service_areas,omitempty"`
	Routes       []string       `json:"routes,omitempty"`
	Capacity     *int           `json:"capacity,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type VendorIngestionSummary struct {
	RecordsProcessed int `json:"records_processed"`
	VendorsCreated   int `json:"vendors_created"`
	VendorsUpdated   int `json:"vendors_updated"`
	VendorsEmbedded  int `json:"vendors_embedded"`
	VendorsIndexed   int `json:"vendors_indexed"`
	VendorsSkipped   int `json:"vendors_skipped"`
}

// VendorIngestionService hydrates vendor records into the directory: upsert
// by domain, embed the description, push into the search index. Embedding
// and indexing are best-effort; a vendor that misses either is picked up by
// cmd/backfill and cmd/indexer on their next runs.
type VendorIngestionService struct {
	vendors  repositories.VendorRepository
	embedder providers.EmbeddingProvider
	index    repositories.VendorSearchIndex
}

// NewVendorIngestionService creates an ingestion service. Both the embedder
// and the index may be nil; ingestion then only persists vendor rows.
func NewVendorIngestionService(
	vendors repositories.VendorRepository,
	embedder providers.EmbeddingProvider,
	index repositories.VendorSearchIndex,
) *VendorIngestionService {
	return &VendorIngestionService{
		vendors:  vendors,
		embedder: embedder,
		index:    index,
	}
}

// IngestBatch upserts every seed in order. A seed that fails is logged and
// counted as skipped rather than aborting the batch, so re-running an import
// after fixing one bad record does no harm.
func (s *VendorIngestionService) IngestBatch(ctx context.Context, seeds []VendorSeed) (*VendorIngestionSummary, error) {
	summary := &VendorIngestionSummary{}

	for _, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.RecordsProcessed++

		vendor, created, err := s.UpsertVendor(ctx, seed)
		if err != nil {
			summary.VendorsSkipped++
			log.Printf("Failed to ingest vendor %q: %v", seed.Name, err)
			continue
		}
		if created {
			summary.VendorsCreated++
		} else {
			summary.VendorsUpdated++
		}
		if vendor.HasEmbedding() {
			summary.VendorsEmbedded++
		}
		if vendor.HasEmbedding() && s.index != nil {
			summary.VendorsIndexed++
		}
	}

	return summary, nil
}

// UpsertVendor creates the vendor for the seed's website domain or refreshes
// the existing one. It returns the stored vendor and whether it was created.
func (s *VendorIngestionService) UpsertVendor(ctx context.Context, seed VendorSeed) (*entities.Vendor, bool, error) {
	name := strings.TrimSpace(seed.Name)
	if name == "" {
		return nil, false, apperrors.NewValidationError("vendor seed is missing a name")
	}
	domain := utils.MerchantDomain(seed.Website)
	if domain == "" {
		return nil, false, apperrors.NewValidationError(fmt.Sprintf("vendor %q has no usable website domain", name))
	}

	vendor, created, textChanged, err := s.ensureVendor(ctx, domain, name, seed)
	if err != nil {
		return nil, false, err
	}

	needsEmbedding := created || textChanged || !vendor.HasEmbedding()
	if s.embedder != nil && needsEmbedding {
		if err := s.embed(ctx, vendor); err != nil {
			// Row is persisted; cmd/backfill recomputes the embedding later.
			log.Printf("Warning: vendor %s stored without embedding: %v", vendor.ID, err)
		}
	}

	if s.index != nil && vendor.HasEmbedding() {
		if err := s.index.IndexVendor(ctx, vendor); err != nil {
			log.Printf("Warning: vendor %s not indexed: %v", vendor.ID, err)
		}
	}

	return vendor, created, nil
}

// ensureVendor loads the vendor for the domain and applies the seed to it,
// or creates the row when none exists. textChanged reports whether the
// fields the embedding is computed from differ from what was stored.
func (s *VendorIngestionService) ensureVendor(ctx context.Context, domain, name string, seed VendorSeed) (*entities.Vendor, bool, bool, error) {
	existing, err := s.vendors.GetByDomain(ctx, domain)
	if err == nil {
		before := vendorEmbeddingText(existing)

		existing.Name = name
		existing.Website = strings.TrimSpace(seed.Website)
		existing.Description = strings.TrimSpace(seed.Description)
		if len(seed.ServiceAreas) > 0 {
			existing.ServiceAreas = seed.ServiceAreas
		}
		if len(seed.Routes) > 0 {
			existing.Routes = seed.Routes
		}
		if seed.Capacity != nil {
			existing.Capacity = seed.Capacity
		}
		if len(seed.Metadata) > 0 {
			existing.Metadata = seed.Metadata
		}
		existing.UpdatedAt = time.Now().UTC()

		if err := s.vendors.Update(ctx, existing); err != nil {
			return nil, false, false, err
		}
		return existing, false, vendorEmbeddingText(existing) != before, nil
	}

	if !isNotFound(err) {
		return nil, false, false, err
	}

	vendor := entities.NewVendor(name, strings.TrimSpace(seed.Website), strings.TrimSpace(seed.Description))
	vendor.Domain = domain
	vendor.ServiceAreas = seed.ServiceAreas
	vendor.Routes = seed.Routes
	vendor.Capacity = seed.Capacity
	vendor.Metadata = seed.Metadata

	if err := s.vendors.Create(ctx, vendor); err != nil {
		return nil, false, false, err
	}
	return vendor, true, false, nil
}

func (s *VendorIngestionService) embed(ctx context.Context, vendor *entities.Vendor) error {
	text := vendorEmbeddingText(vendor)
	if text == "" {
		return fmt.Errorf("vendor %s has no text to embed", vendor.ID)
	}

	vec, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		return err
	}
	if len(vec) == 0 {
		return fmt.Errorf("embedding provider returned an empty vector")
	}

	if err := s.vendors.UpdateEmbedding(ctx, vendor.ID, vec); err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	vendor.Embedding = vec
	return nil
}

func isNotFound(err error) bool {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Type == apperrors.ErrorTypeNotFound
	}
	return false
}
