package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Seller is a merchant identified by its bare domain. Sellers are shared
// across listings and get-or-created during persistence.
type Seller struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Domain    string    `json:"domain" db:"domain"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewSeller creates a seller with a normalized domain key
func NewSeller(name, domain string) *Seller {
	return &Seller{
		ID:        uuid.NewString(),
		Name:      name,
		Domain:    NormalizeSellerDomain(domain),
		CreatedAt: time.Now().UTC(),
	}
}

// NormalizeSellerDomain lower-cases and strips a leading www. so one merchant
// maps to one seller row regardless of how providers spell the host.
func NormalizeSellerDomain(domain string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
}
