package shopping

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dealscout/sourcing/internal/domain/providers"
	apperrors "github.com/dealscout/sourcing/pkg/errors"
)

const rainforestRequestURL = "https://api.rainforestapi.com/request"

// rainforestPricePattern extracts the first numeric component from price
// text like "$1,299.99", "1,299", "USD 1299", "$500 - $800".
var rainforestPricePattern = regexp.MustCompile(`(\d[\d,]*\.?\d*)`)

// RainforestAdapter implements SourcingProvider for Amazon product search
// via the Rainforest API. Rainforest sometimes answers the first call with a
// pending request id; the adapter re-polls it a few times before giving up.
type RainforestAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewRainforestAdapter creates a new Rainforest adapter
func NewRainforestAdapter(apiKey string) *RainforestAdapter {
	return &RainforestAdapter{
		apiKey:  apiKey,
		baseURL: rainforestRequestURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the source identifier
func (a *RainforestAdapter) Name() string {
	return "rainforest"
}

// PricedAlways reports that Amazon results always carry a concrete price
func (a *RainforestAdapter) PricedAlways() bool {
	return true
}

type rainforestItem struct {
	ASIN         string          `json:"asin"`
	Title        string          `json:"title"`
	Link         string          `json:"link"`
	Image        string          `json:"image"`
	Rating       *float64        `json:"rating"`
	RatingsTotal *int            `json:"ratings_total"`
	Price        json.RawMessage `json:"price"`
	Prices       json.RawMessage `json:"prices"`
	Delivery     struct {
		Tagline string `json:"tagline"`
	} `json:"delivery"`
}

type rainforestEnvelope struct {
	RequestInfo struct {
		RequestID string `json:"request_id"`
		ID        string `json:"id"`
		Success   *bool  `json:"success"`
	} `json:"request_info"`
	Error         string           `json:"error"`
	SearchResults []rainforestItem `json:"search_results"`
}

// Search runs an Amazon search, re-polling pending request ids and falling
// back to a simplified query when the full query matches nothing.
func (a *RainforestAdapter) Search(ctx context.Context, query string, opts providers.SearchOptions) ([]providers.RawResult, error) {
	params := a.searchParams(query, opts)

	var envelope *rainforestEnvelope
	for attempt := 0; attempt < 4; attempt++ {
		env, err := a.fetch(ctx, params)
		if err != nil {
			return nil, err
		}
		envelope = env

		if envelope.Error != "" {
			log.Printf("[rainforest] upstream error: %s", envelope.Error)
		}
		if len(envelope.SearchResults) > 0 {
			break
		}

		requestID := envelope.RequestInfo.RequestID
		if requestID == "" {
			requestID = envelope.RequestInfo.ID
		}
		if requestID == "" || attempt == 3 {
			break
		}

		// Pending request: poll the request id after a short pause
		params = url.Values{}
		params.Set("api_key", a.apiKey)
		params.Set("request_id", requestID)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}

	if envelope == nil {
		return nil, nil
	}

	// Empty results for a long query: retry once with the first few words
	if len(envelope.SearchResults) == 0 {
		words := strings.Fields(query)
		if len(words) > 4 {
			fallback := strings.Join(words[:4], " ")
			if !strings.EqualFold(fallback, query) {
				log.Printf("[rainforest] empty results, retrying with simplified query %q", fallback)
				env, err := a.fetch(ctx, a.searchParams(fallback, opts))
				if err != nil {
					return nil, err
				}
				envelope = env
			}
		}
	}

	results := make([]providers.RawResult, 0, len(envelope.SearchResults))
	for i, item := range envelope.SearchResults {
		if i >= 20 {
			break
		}

		price := parseRainforestPrice(item)
		// Unknown or zero prices produce $0.00 tiles and bypass minimum
		// price constraints, so they are dropped at the source
		if price <= 0 {
			continue
		}
		if opts.MinPrice != nil && price < *opts.MinPrice {
			continue
		}
		if opts.MaxPrice != nil && price > *opts.MaxPrice {
			continue
		}

		title := item.Title
		if title == "" {
			title = "Unknown"
		}

		p := price
		result := providers.RawResult{
			Title:        title,
			Price:        &p,
			Currency:     "USD",
			Merchant:     "Amazon",
			URL:          item.Link,
			ImageURL:     item.Image,
			Rating:       item.Rating,
			ReviewsCount: item.RatingsTotal,
			ShippingInfo: item.Delivery.Tagline,
			Source:       a.Name(),
		}
		if item.ASIN != "" {
			result.Raw = map[string]any{"asin": item.ASIN}
		}
		results = append(results, result)
	}

	return results, nil
}

func (a *RainforestAdapter) searchParams(query string, opts providers.SearchOptions) url.Values {
	params := url.Values{}
	params.Set("api_key", a.apiKey)
	params.Set("type", "search")
	params.Set("amazon_domain", "amazon.com")
	params.Set("search_term", query)
	if opts.MinPrice != nil {
		params.Set("min_price", strconv.FormatFloat(*opts.MinPrice, 'f', -1, 64))
	}
	if opts.MaxPrice != nil {
		params.Set("max_price", strconv.FormatFloat(*opts.MaxPrice, 'f', -1, 64))
	}
	return params
}

func (a *RainforestAdapter) fetch(ctx context.Context, params url.Values) (*rainforestEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("rainforest search request failed", err)
	}
	defer resp.Body.Close()

	if err := checkResponseStatus("rainforest", resp); err != nil {
		return nil, err
	}

	var envelope rainforestEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, apperrors.NewExternalError("rainforest search response malformed", err)
	}
	return &envelope, nil
}

// parseRainforestPrice digs a usable price out of the several shapes the API
// returns: a price object with value/raw, a bare number, or a prices map
// keyed by price kind.
func parseRainforestPrice(item rainforestItem) float64 {
	if price := parsePriceMessage(item.Price); price > 0 {
		return price
	}

	if len(item.Prices) > 0 {
		var prices map[string]json.RawMessage
		if err := json.Unmarshal(item.Prices, &prices); err == nil {
			for _, key := range []string{"current_price", "buybox_price", "price", "current", "main_price", "list_price"} {
				if raw, ok := prices[key]; ok {
					if price := parsePriceMessage(raw); price > 0 {
						return price
					}
				}
			}
		}
	}

	return 0
}

func parsePriceMessage(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return parsePriceText(text)
	}

	var obj struct {
		Value json.RawMessage `json:"value"`
		Raw   json.RawMessage `json:"raw"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if price := parsePriceMessage(obj.Value); price > 0 {
			return price
		}
		return parsePriceMessage(obj.Raw)
	}

	return 0
}

// parsePriceText extracts the first numeric component from price text
func parsePriceText(text string) float64 {
	match := rainforestPricePattern.FindString(strings.TrimSpace(text))
	if match == "" {
		return 0
	}
	price, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0
	}
	return price
}
