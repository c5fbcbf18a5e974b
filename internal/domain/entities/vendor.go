package entities

import (
	"time"

	"github.com/google/uuid"
)

// Vendor is a directory entry for a quote-based supplier: the kind of seller
// that has no per-item price feed and is surfaced as a "contact for quote"
// result. Vendors carry a description embedding used for similarity search.
type Vendor struct {
	ID           string         `json:"id" db:"id"`
	Name         string         `json:"name" db:"name"`
	Domain       string         `json:"domain" db:"domain"`
	Website      string         `json:"website" db:"website"`
	Description  string         `json:"description" db:"description"`
	ServiceAreas []string       `json:"service_areas,omitempty" db:"-"`
	Routes       []string       `json:"routes,omitempty" db:"-"`
	Capacity     *int           `json:"capacity,omitempty" db:"capacity"`
	Metadata     map[string]any `json:"metadata,omitempty" db:"-"`
	Embedding    []float32      `json:"-" db:"-"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// NewVendor creates a vendor entry
func NewVendor(name, website, description string) *Vendor {
	now := time.Now().UTC()
	return &Vendor{
		ID:          uuid.NewString(),
		Name:        name,
		Website:     website,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// HasEmbedding reports whether the vendor is indexable for similarity search
func (v *Vendor) HasEmbedding() bool {
	return len(v.Embedding) > 0
}
