package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/providers"
	"github.com/dealscout/sourcing/internal/domain/repositories"
	"github.com/dealscout/sourcing/pkg/retry"
)

const backfillBatchSize = 100

// BackfillSummary reports the outcome of a backfill run
type BackfillSummary struct {
	TotalProcessed int
	SuccessCount   int
	FailureCount   int
}

// EmbeddingBackfillService computes description embeddings for vendors that
// do not have one yet, persists them, and pushes the refreshed vendor into
// the search index. Vendors without an embedding are invisible to directory
// search, so this runs after bulk imports and whenever the embedding model
// changes.
type EmbeddingBackfillService struct {
	vendors     repositories.VendorRepository
	embedder    providers.EmbeddingProvider
	index       repositories.VendorSearchIndex
	workerCount int
	maxRetries  int
}

// NewEmbeddingBackfillService creates a backfill service. The index is
// optional: with a nil index embeddings are persisted but indexing is left
// to the next indexer run.
func NewEmbeddingBackfillService(
	vendors repositories.VendorRepository,
	embedder providers.EmbeddingProvider,
	index repositories.VendorSearchIndex,
	workers int,
	maxRetries int,
) *EmbeddingBackfillService {
	if workers <= 0 {
		workers = 1
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &EmbeddingBackfillService{
		vendors:     vendors,
		embedder:    embedder,
		index:       index,
		workerCount: workers,
		maxRetries:  maxRetries,
	}
}

// BackfillAll embeds every vendor missing an embedding, batch by batch.
// Each batch runs through a worker pool and the next page is only listed
// once the batch has fully drained, so a vendor whose embedding call keeps
// failing is attempted once per run instead of looping forever.
func (s *EmbeddingBackfillService) BackfillAll(ctx context.Context) (*BackfillSummary, error) {
	var processed, succeeded, failed int64
	seen := make(map[string]bool)

	for {
		page, err := s.vendors.ListWithoutEmbedding(ctx, backfillBatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list vendors needing embeddings: %w", err)
		}

		batch := make([]*entities.Vendor, 0, len(page))
		for _, vendor := range page {
			if seen[vendor.ID] {
				continue
			}
			seen[vendor.ID] = true
			batch = append(batch, vendor)
		}
		if len(batch) == 0 {
			break
		}

		vendorChan := make(chan *entities.Vendor)
		var wg sync.WaitGroup
		for i := 0; i < s.workerCount; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for vendor := range vendorChan {
					atomic.AddInt64(&processed, 1)
					if err := s.backfill(ctx, vendor); err != nil {
						atomic.AddInt64(&failed, 1)
						log.Printf("Failed to backfill vendor %s: %v", vendor.ID, err)
					} else {
						atomic.AddInt64(&succeeded, 1)
					}
				}
			}()
		}

		for _, vendor := range batch {
			select {
			case vendorChan <- vendor:
			case <-ctx.Done():
				close(vendorChan)
				wg.Wait()
				return nil, ctx.Err()
			}
		}
		close(vendorChan)
		wg.Wait()

		if len(page) < backfillBatchSize {
			break
		}
	}

	return &BackfillSummary{
		TotalProcessed: int(processed),
		SuccessCount:   int(succeeded),
		FailureCount:   int(failed),
	}, nil
}

// BackfillVendor recomputes the embedding for a single vendor regardless of
// whether one already exists.
func (s *EmbeddingBackfillService) BackfillVendor(ctx context.Context, vendorID string) error {
	vendor, err := s.vendors.GetByID(ctx, vendorID)
	if err != nil {
		return fmt.Errorf("failed to get vendor %s: %w", vendorID, err)
	}
	return s.backfill(ctx, vendor)
}

func (s *EmbeddingBackfillService) backfill(ctx context.Context, vendor *entities.Vendor) error {
	text := vendorEmbeddingText(vendor)
	if text == "" {
		return fmt.Errorf("vendor %s has no text to embed", vendor.ID)
	}

	var embedding []float32
	err := retry.DoWithLog(ctx, s.retryConfig(), "embedding-backfill", func() error {
		vec, embedErr := s.embedder.EmbedText(ctx, text)
		if embedErr != nil {
			return embedErr
		}
		if len(vec) == 0 {
			return fmt.Errorf("embedding provider returned an empty vector")
		}
		embedding = vec
		return nil
	}, func(attempt int, attemptErr error, nextDelay time.Duration) {
		log.Printf("Embedding attempt %d for vendor %s failed: %v (retrying in %s)",
			attempt, vendor.ID, attemptErr, nextDelay)
	})
	if err != nil {
		return fmt.Errorf("failed to embed vendor %s: %w", vendor.ID, err)
	}

	if err := s.vendors.UpdateEmbedding(ctx, vendor.ID, embedding); err != nil {
		return fmt.Errorf("failed to store embedding for vendor %s: %w", vendor.ID, err)
	}
	vendor.Embedding = embedding

	if s.index != nil {
		if err := s.index.IndexVendor(ctx, vendor); err != nil {
			// Embedding is persisted; the next indexer run picks the vendor up.
			log.Printf("Warning: vendor %s embedded but not indexed: %v", vendor.ID, err)
		}
	}

	return nil
}

func (s *EmbeddingBackfillService) retryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:     s.maxRetries,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        8 * time.Second,
		BackoffFactor:   2.0,
		MaxTotalTimeout: 45 * time.Second,
	}
}

// vendorEmbeddingText composes the text a vendor is embedded from: the same
// fields directory search matches against.
func vendorEmbeddingText(v *entities.Vendor) string {
	parts := make([]string, 0, 4)
	if v.Name != "" {
		parts = append(parts, v.Name)
	}
	if v.Description != "" {
		parts = append(parts, v.Description)
	}
	if len(v.Routes) > 0 {
		parts = append(parts, "Routes: "+strings.Join(v.Routes, ", "))
	}
	if len(v.ServiceAreas) > 0 {
		parts = append(parts, "Service areas: "+strings.Join(v.ServiceAreas, ", "))
	}
	return strings.Join(parts, ". ")
}
