package shopping

import (
	"context"
	"encoding/base64"
	"encoding/json"
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
	ebayAuthURL   = "https://api.ebay.com/identity/v1/oauth2/token"
	ebaySearchURL = "https://api.ebay.com/buy/browse/v1/item_summary/search"
	ebayScope     = "https://api.ebay.com/oauth/api_scope"
)

// EbayAdapter implements SourcingProvider for the eBay Browse API.
// Application tokens are cached and refreshed 60 seconds before expiry.
type EbayAdapter struct {
	clientID      string
	clientSecret  string
	marketplaceID string
	authURL       string
	searchURL     string
	client        *http.Client

	mu             sync.Mutex
	token          string
	tokenExpiresAt time.Time
}

// NewEbayAdapter creates a new eBay Browse adapter
func NewEbayAdapter(clientID, clientSecret string) *EbayAdapter {
	return &EbayAdapter{
		clientID:      clientID,
		clientSecret:  clientSecret,
		marketplaceID: "EBAY-US",
		authURL:       ebayAuthURL,
		searchURL:     ebaySearchURL,
		client:        &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the source identifier
func (a *EbayAdapter) Name() string {
	return "ebay"
}

// PricedAlways reports that eBay results always carry a concrete price
func (a *EbayAdapter) PricedAlways() bool {
	return true
}

// accessToken returns a cached client-credentials token, refreshing when it
// is within the 60 second safety margin of expiry.
func (a *EbayAdapter) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && time.Now().Before(a.tokenExpiresAt.Add(-60*time.Second)) {
		return a.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", ebayScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(a.clientID + ":" + a.clientSecret))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", apperrors.NewExternalError("ebay token request failed", err)
	}
	defer resp.Body.Close()

	if err := checkResponseStatus("ebay", resp); err != nil {
		return "", err
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", apperrors.NewExternalError("ebay token response malformed", err)
	}
	if payload.AccessToken == "" {
		return "", apperrors.NewExternalError("ebay token response missing access_token", nil)
	}

	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 7200
	}

	a.token = payload.AccessToken
	a.tokenExpiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)
	return a.token, nil
}

type ebayItemSummary struct {
	ItemID string `json:"itemId"`
	Title  string `json:"title"`
	Price  struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"price"`
	ItemWebURL string `json:"itemWebUrl"`
	Condition  string `json:"condition"`
	Seller     struct {
		Username string `json:"username"`
	} `json:"seller"`
	Image struct {
		ImageURL string `json:"imageUrl"`
	} `json:"image"`
	ShippingOptions []struct {
		ShippingCostType string `json:"shippingCostType"`
		ShippingCost     struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"shippingCost"`
	} `json:"shippingOptions"`
}

// Search runs a keyword search against the Browse API
func (a *EbayAdapter) Search(ctx context.Context, query string, opts providers.SearchOptions) ([]providers.RawResult, error) {
	token, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	limit := opts.MaxResults
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", a.marketplaceID)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("ebay search request failed", err)
	}
	defer resp.Body.Close()

	if err := checkResponseStatus("ebay", resp); err != nil {
		return nil, err
	}

	var payload struct {
		ItemSummaries []ebayItemSummary `json:"itemSummaries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewExternalError("ebay search response malformed", err)
	}

	results := make([]providers.RawResult, 0, len(payload.ItemSummaries))
	for _, item := range payload.ItemSummaries {
		title := item.Title
		if title == "" {
			title = "Unknown"
		}

		price, _ := strconv.ParseFloat(item.Price.Value, 64)
		currency := item.Price.Currency
		if currency == "" {
			currency = "USD"
		}

		merchant := item.Seller.Username
		if merchant == "" {
			merchant = "eBay"
		}

		result := providers.RawResult{
			Title:    title,
			Price:    &price,
			Currency: currency,
			Merchant: merchant,
			URL:      item.ItemWebURL,
			ImageURL: item.Image.ImageURL,
			Source:   a.Name(),
		}
		result.ShippingInfo = ebayShippingInfo(item, currency)
		if item.ItemID != "" || item.Condition != "" {
			result.Raw = map[string]any{}
			if item.ItemID != "" {
				result.Raw["item_id"] = item.ItemID
			}
			if item.Condition != "" {
				result.Raw["condition"] = item.Condition
			}
		}
		results = append(results, result)
	}

	return results, nil
}

func ebayShippingInfo(item ebayItemSummary, currency string) string {
	if len(item.ShippingOptions) == 0 {
		return ""
	}
	first := item.ShippingOptions[0]
	if strings.EqualFold(first.ShippingCostType, "free") {
		return "Free shipping"
	}
	if first.ShippingCost.Value == "" {
		return ""
	}
	cost, err := strconv.ParseFloat(first.ShippingCost.Value, 64)
	if err != nil {
		return ""
	}
	shipCurrency := first.ShippingCost.Currency
	if shipCurrency == "" {
		shipCurrency = currency
	}
	return "Shipping " + shipCurrency + " " + strconv.FormatFloat(cost, 'f', 2, 64)
}
