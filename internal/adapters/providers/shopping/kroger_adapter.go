package shopping

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dealscout/sourcing/internal/domain/providers"
	apperrors "github.com/dealscout/sourcing/pkg/errors"
)

const (
	krogerTokenURL    = "https://api.kroger.com/v1/connect/oauth2/token"
	krogerProductsURL = "https://api.kroger.com/v1/products"
	krogerLocationURL = "https://api.kroger.com/v1/locations"
)

// krogerGroceryKeywords signal a grocery / household query. Broad on purpose;
// most everyday-goods queries qualify. Queries matching none of these
// short-circuit to an empty batch without spending an API call.
var krogerGroceryKeywords = []string{
	"milk", "eggs", "bread", "butter", "cheese", "chicken", "beef", "pork",
	"rice", "pasta", "cereal", "yogurt", "juice", "water", "soda", "coffee",
	"tea", "sugar", "flour", "oil", "sauce", "ketchup", "mustard", "mayo",
	"salt", "pepper", "spice", "snack", "chips", "crackers", "cookies",
	"fruit", "apple", "banana", "orange", "grape", "berry", "strawberry",
	"vegetable", "tomato", "potato", "onion", "lettuce", "carrot", "broccoli",
	"frozen", "pizza", "ice cream", "soup", "canned", "beans", "corn",
	"paper towel", "toilet paper", "detergent", "soap", "shampoo", "toothpaste",
	"diaper", "wipes", "trash bag", "foil", "wrap", "bag", "napkin",
	"grocery", "food", "drink", "beverage", "organic", "gluten free",
}

// KrogerAdapter implements SourcingProvider for the Kroger Product API.
// OAuth tokens and zip-to-location lookups are cached between calls.
type KrogerAdapter struct {
	clientID     string
	clientSecret string
	defaultZip   string
	tokenURL     string
	productsURL  string
	locationsURL string
	client       *http.Client

	mu             sync.Mutex
	token          string
	tokenExpiresAt time.Time
	zipToLocation  map[string]string
}

// NewKrogerAdapter creates a new Kroger adapter
func NewKrogerAdapter(clientID, clientSecret, defaultZip string) *KrogerAdapter {
	return &KrogerAdapter{
		clientID:      clientID,
		clientSecret:  clientSecret,
		defaultZip:    defaultZip,
		tokenURL:      krogerTokenURL,
		productsURL:   krogerProductsURL,
		locationsURL:  krogerLocationURL,
		client:        &http.Client{Timeout: 12 * time.Second},
		zipToLocation: make(map[string]string),
	}
}

// Name returns the source identifier
func (a *KrogerAdapter) Name() string {
	return "kroger"
}

// PricedAlways reports that Kroger results always carry a concrete price
func (a *KrogerAdapter) PricedAlways() bool {
	return true
}

// isGroceryQuery checks whether the query is plausibly about groceries or
// household goods. Single-word keywords match whole words; multi-word
// keywords match as phrases.
func isGroceryQuery(query string) bool {
	lowered := strings.ToLower(query)
	words := make(map[string]bool)
	for _, w := range strings.Fields(lowered) {
		words[w] = true
	}
	for _, kw := range krogerGroceryKeywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(lowered, kw) {
				return true
			}
		} else if words[kw] {
			return true
		}
	}
	return false
}

func (a *KrogerAdapter) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && time.Now().Before(a.tokenExpiresAt.Add(-60*time.Second)) {
		return a.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", "product.compact")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(a.clientID + ":" + a.clientSecret))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", apperrors.NewExternalError("kroger token request failed", err)
	}
	defer resp.Body.Close()

	if err := checkResponseStatus("kroger", resp); err != nil {
		return "", err
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", apperrors.NewExternalError("kroger token response malformed", err)
	}
	if payload.AccessToken == "" {
		return "", apperrors.NewExternalError("kroger token response missing access_token", nil)
	}

	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 1800
	}

	a.token = payload.AccessToken
	a.tokenExpiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)
	return a.token, nil
}

// resolveLocationID maps the configured zip code to a Kroger store location,
// caching per zip. A failed lookup degrades to national pricing, not an error.
func (a *KrogerAdapter) resolveLocationID(ctx context.Context, token string) string {
	if a.defaultZip == "" {
		return ""
	}

	a.mu.Lock()
	if loc, ok := a.zipToLocation[a.defaultZip]; ok {
		a.mu.Unlock()
		return loc
	}
	a.mu.Unlock()

	params := url.Values{}
	params.Set("filter.zipCode.near", a.defaultZip)
	params.Set("filter.limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.locationsURL+"?"+params.Encode(), nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var payload struct {
		Data []struct {
			LocationID string `json:"locationId"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ""
	}
	if len(payload.Data) == 0 || payload.Data[0].LocationID == "" {
		return ""
	}

	a.mu.Lock()
	a.zipToLocation[a.defaultZip] = payload.Data[0].LocationID
	a.mu.Unlock()
	return payload.Data[0].LocationID
}

type krogerProduct struct {
	ProductID   string `json:"productId"`
	Description string `json:"description"`
	Brand       string `json:"brand"`
	Items       []struct {
		Size  string `json:"size"`
		Price struct {
			Regular float64 `json:"regular"`
			Promo   float64 `json:"promo"`
		} `json:"price"`
	} `json:"items"`
	Images []struct {
		Sizes []struct {
			Size string `json:"size"`
			URL  string `json:"url"`
		} `json:"sizes"`
	} `json:"images"`
}

// Search runs a product search against the Kroger API
func (a *KrogerAdapter) Search(ctx context.Context, query string, opts providers.SearchOptions) ([]providers.RawResult, error) {
	if !isGroceryQuery(query) {
		return nil, nil
	}

	token, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	locationID := a.resolveLocationID(ctx, token)

	limit := opts.MaxResults
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("filter.term", query)
	params.Set("filter.limit", strconv.Itoa(limit))
	if locationID != "" {
		params.Set("filter.locationId", locationID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.productsURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("kroger search request failed", err)
	}
	defer resp.Body.Close()

	if err := checkResponseStatus("kroger", resp); err != nil {
		return nil, err
	}

	var payload struct {
		Data []krogerProduct `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewExternalError("kroger search response malformed", err)
	}

	results := make([]providers.RawResult, 0, len(payload.Data))
	for _, item := range payload.Data {
		title := item.Description
		if title == "" {
			title = "Unknown"
		}
		if item.Brand != "" {
			title = strings.TrimSpace(item.Brand + " " + title)
		}

		var regular, promo float64
		var sizeText string
		if len(item.Items) > 0 {
			regular = item.Items[0].Price.Regular
			promo = item.Items[0].Price.Promo
			sizeText = item.Items[0].Size
		}

		// Promo price wins when present
		displayPrice := regular
		if promo > 0 {
			displayPrice = promo
		}
		if displayPrice <= 0 {
			continue
		}

		results = append(results, providers.RawResult{
			Title:          title,
			Price:          &displayPrice,
			Currency:       "USD",
			Merchant:       "Kroger",
			URL:            "https://www.kroger.com/p/" + item.ProductID,
			MerchantDomain: "kroger.com",
			ImageURL:       krogerImageURL(item),
			ShippingInfo:   krogerShippingInfo(sizeText, regular, promo),
			Source:         a.Name(),
		})
	}

	return results, nil
}

// krogerImageURL prefers the largest available rendition
func krogerImageURL(item krogerProduct) string {
	preferred := []string{"large", "medium", "small", "thumbnail"}
	for _, group := range item.Images {
		for _, want := range preferred {
			for _, s := range group.Sizes {
				if s.Size == want && s.URL != "" {
					return s.URL
				}
			}
		}
	}
	return ""
}

// krogerShippingInfo surfaces pack size and promo savings in the shipping slot
func krogerShippingInfo(sizeText string, regular, promo float64) string {
	parts := []string{}
	if sizeText != "" {
		parts = append(parts, sizeText)
	}
	if promo > 0 && promo < regular {
		parts = append(parts, fmt.Sprintf("Save $%.2f", regular-promo))
	}
	return strings.Join(parts, " · ")
}
