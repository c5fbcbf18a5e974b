package shopping

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dealscout/sourcing/internal/domain/providers"
	apperrors "github.com/dealscout/sourcing/pkg/errors"
)

const ticketmasterEventsURL = "https://app.ticketmaster.com/discovery/v2/events.json"

// eventKeywords suggest the user is looking for events or tickets. Anything
// else short-circuits to an empty batch without spending an API call.
var eventKeywords = map[string]bool{
	"ticket": true, "tickets": true, "concert": true, "concerts": true,
	"show": true, "shows": true, "game": true, "games": true, "match": true,
	"event": true, "events": true, "tour": true, "festival": true,
	"stadium": true, "arena": true, "theater": true, "theatre": true,
	"live": true, "performance": true, "nba": true, "nfl": true, "mlb": true,
	"nhl": true, "mls": true, "ncaa": true, "ufc": true, "wwe": true,
	"broadway": true,
}

// TicketmasterAdapter implements SourcingProvider for the Ticketmaster
// Discovery API.
type TicketmasterAdapter struct {
	apiKey      string
	countryCode string
	baseURL     string
	client      *http.Client
}

// NewTicketmasterAdapter creates a new Ticketmaster adapter
func NewTicketmasterAdapter(apiKey string) *TicketmasterAdapter {
	return &TicketmasterAdapter{
		apiKey:      apiKey,
		countryCode: "US",
		baseURL:     ticketmasterEventsURL,
		client:      &http.Client{Timeout: 8 * time.Second},
	}
}

// Name returns the source identifier
func (a *TicketmasterAdapter) Name() string {
	return "ticketmaster"
}

// PricedAlways reports that event results carry a concrete floor price
func (a *TicketmasterAdapter) PricedAlways() bool {
	return true
}

// isEventQuery checks if the query is likely about events or tickets
func isEventQuery(query string) bool {
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if eventKeywords[w] {
			return true
		}
	}
	return false
}

type ticketmasterImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type ticketmasterEvent struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	PriceRanges []struct {
		Min      float64 `json:"min"`
		Currency string  `json:"currency"`
	} `json:"priceRanges"`
	Dates struct {
		Start struct {
			LocalDate string `json:"localDate"`
			LocalTime string `json:"localTime"`
		} `json:"start"`
	} `json:"dates"`
	Images   []ticketmasterImage `json:"images"`
	Embedded struct {
		Venues []struct {
			Name string `json:"name"`
		} `json:"venues"`
	} `json:"_embedded"`
}

// Search runs an event search against the Discovery API
func (a *TicketmasterAdapter) Search(ctx context.Context, query string, opts providers.SearchOptions) ([]providers.RawResult, error) {
	if !isEventQuery(query) {
		return nil, nil
	}

	limit := opts.MaxResults
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("apikey", a.apiKey)
	params.Set("keyword", query)
	params.Set("size", strconv.Itoa(limit))
	params.Set("countryCode", a.countryCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("ticketmaster search request failed", err)
	}
	defer resp.Body.Close()

	if err := checkResponseStatus("ticketmaster", resp); err != nil {
		return nil, err
	}

	var payload struct {
		Embedded struct {
			Events []ticketmasterEvent `json:"events"`
		} `json:"_embedded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewExternalError("ticketmaster search response malformed", err)
	}

	results := make([]providers.RawResult, 0, len(payload.Embedded.Events))
	for _, event := range payload.Embedded.Events {
		if event.URL == "" {
			continue
		}

		title := event.Name
		if title == "" {
			title = "Unknown Event"
		}

		minPrice := 0.0
		currency := "USD"
		if len(event.PriceRanges) > 0 {
			minPrice = event.PriceRanges[0].Min
			if event.PriceRanges[0].Currency != "" {
				currency = event.PriceRanges[0].Currency
			}
		}

		venueName := "Venue TBA"
		if len(event.Embedded.Venues) > 0 && event.Embedded.Venues[0].Name != "" {
			venueName = event.Embedded.Venues[0].Name
		}

		dateStr := strings.TrimSpace(event.Dates.Start.LocalDate + " " + event.Dates.Start.LocalTime)
		if event.Dates.Start.LocalDate == "" {
			dateStr = "Date TBA"
		}

		fullTitle := title + " - " + venueName
		shippingInfo := ""
		if dateStr != "Date TBA" {
			fullTitle += " (" + dateStr + ")"
			shippingInfo = "Event: " + dateStr
		}

		price := minPrice
		results = append(results, providers.RawResult{
			Title:          fullTitle,
			Price:          &price,
			Currency:       currency,
			Merchant:       "Ticketmaster",
			URL:            event.URL,
			MerchantDomain: "ticketmaster.com",
			ImageURL:       largestEventImage(event),
			ShippingInfo:   shippingInfo,
			Source:         a.Name(),
		})
	}

	return results, nil
}

// largestEventImage picks the highest-resolution image by pixel area
func largestEventImage(event ticketmasterEvent) string {
	if len(event.Images) == 0 {
		return ""
	}
	images := make([]ticketmasterImage, len(event.Images))
	copy(images, event.Images)
	sort.SliceStable(images, func(i, j int) bool {
		return images[i].Width*images[i].Height > images[j].Width*images[j].Height
	})
	return images[0].URL
}
