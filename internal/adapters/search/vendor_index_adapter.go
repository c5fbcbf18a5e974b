package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/repositories"
	tsclient "github.com/dealscout/sourcing/internal/infrastructure/clients/typesense"
)

// VendorIndexAdapter implements vendor similarity search using Typesense
// vector queries against the vendors collection.
type VendorIndexAdapter struct {
	client *tsclient.Client
}

// Ensure VendorIndexAdapter implements VendorSearchIndex
var _ repositories.VendorSearchIndex = (*VendorIndexAdapter)(nil)

// NewVendorIndexAdapter creates a new vendor index adapter
func NewVendorIndexAdapter(client *tsclient.Client) *VendorIndexAdapter {
	return &VendorIndexAdapter{client: client}
}

// InitSchema ensures the vendors collection exists
func (a *VendorIndexAdapter) InitSchema(ctx context.Context) error {
	return a.client.InitSchema(ctx)
}

// IndexVendor upserts one vendor document into the index. Vendors without an
// embedding are skipped: the collection schema requires the vector field.
func (a *VendorIndexAdapter) IndexVendor(ctx context.Context, vendor *entities.Vendor) error {
	if !vendor.HasEmbedding() {
		return fmt.Errorf("vendor %s has no embedding to index", vendor.ID)
	}

	embedding := make([]float64, len(vendor.Embedding))
	for i, v := range vendor.Embedding {
		embedding[i] = float64(v)
	}

	document := map[string]interface{}{
		"id":            vendor.ID,
		"name":          vendor.Name,
		"domain":        vendor.Domain,
		"website":       vendor.Website,
		"description":   vendor.Description,
		"service_areas": vendor.ServiceAreas,
		"routes":        vendor.Routes,
		"embedding":     embedding,
		"created_at":    vendor.CreatedAt.Unix(),
	}
	if vendor.Capacity != nil {
		document["capacity"] = *vendor.Capacity
	}

	if err := a.client.IndexVendor(ctx, document); err != nil {
		return fmt.Errorf("failed to index vendor: %w", err)
	}

	return nil
}

// SearchSimilar returns the closest vendors to the query embedding
func (a *VendorIndexAdapter) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]*repositories.VendorMatch, error) {
	if len(embedding) == 0 {
		return []*repositories.VendorMatch{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	searchParams := &api.SearchCollectionParams{
		Q:           pointer.String("*"),
		VectorQuery: pointer.String(vectorQuery(embedding, limit)),
		PerPage:     pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(tsclient.VendorsCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search vendors: %w", err)
	}

	matches := []*repositories.VendorMatch{}
	if result.Hits == nil {
		return matches, nil
	}

	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		vendor := vendorFromDocument(*hit.Document)
		if vendor == nil {
			continue
		}

		match := &repositories.VendorMatch{Vendor: vendor}
		if hit.VectorDistance != nil {
			match.Distance = float64(*hit.VectorDistance)
		}
		matches = append(matches, match)
	}

	return matches, nil
}

// DeleteVendor removes a vendor document from the index
func (a *VendorIndexAdapter) DeleteVendor(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.VendorsCollection).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete vendor from index: %w", err)
	}
	return nil
}

// vectorQuery renders the Typesense vector query expression, e.g.
// "embedding:([0.1,0.2], k:10)".
func vectorQuery(embedding []float32, k int) string {
	var sb strings.Builder
	sb.WriteString("embedding:([")
	for i, v := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteString("], k:")
	sb.WriteString(strconv.Itoa(k))
	sb.WriteString(")")
	return sb.String()
}

func vendorFromDocument(doc map[string]interface{}) *entities.Vendor {
	id, ok := doc["id"].(string)
	if !ok {
		return nil
	}

	vendor := &entities.Vendor{ID: id}
	if val, ok := doc["name"].(string); ok {
		vendor.Name = val
	}
	if val, ok := doc["domain"].(string); ok {
		vendor.Domain = val
	}
	if val, ok := doc["website"].(string); ok {
		vendor.Website = val
	}
	if val, ok := doc["description"].(string); ok {
		vendor.Description = val
	}
	if val, ok := doc["service_areas"].([]interface{}); ok {
		vendor.ServiceAreas = toStringSlice(val)
	}
	if val, ok := doc["routes"].([]interface{}); ok {
		vendor.Routes = toStringSlice(val)
	}
	if val, ok := doc["capacity"].(float64); ok {
		capacity := int(val)
		vendor.Capacity = &capacity
	}
	if val, ok := doc["created_at"].(float64); ok {
		vendor.CreatedAt = time.Unix(int64(val), 0).UTC()
	}

	return vendor
}

func toStringSlice(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
