package shopping

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealscout/sourcing/internal/domain/providers"
)

func TestParsePriceText(t *testing.T) {
	assert.InDelta(t, 1299.99, parsePriceText("$1,299.99"), 0.001)
	assert.InDelta(t, 1299.0, parsePriceText("1,299"), 0.001)
	assert.InDelta(t, 1299.0, parsePriceText("USD 1299"), 0.001)
	assert.InDelta(t, 500.0, parsePriceText("$500 - $800"), 0.001)
	assert.Zero(t, parsePriceText("contact us"))
	assert.Zero(t, parsePriceText(""))
}

func TestParseRainforestPrice_Shapes(t *testing.T) {
	mk := func(priceJSON, pricesJSON string) rainforestItem {
		item := rainforestItem{}
		if priceJSON != "" {
			item.Price = json.RawMessage(priceJSON)
		}
		if pricesJSON != "" {
			item.Prices = json.RawMessage(pricesJSON)
		}
		return item
	}

	assert.InDelta(t, 49.99, parseRainforestPrice(mk(`{"value":49.99,"raw":"$49.99"}`, "")), 0.001)
	assert.InDelta(t, 49.99, parseRainforestPrice(mk(`{"raw":"$49.99"}`, "")), 0.001)
	assert.InDelta(t, 25.0, parseRainforestPrice(mk(`25`, "")), 0.001)
	assert.InDelta(t, 12.5, parseRainforestPrice(mk(`"$12.50"`, "")), 0.001)
	// Falls through to the prices map when price itself is unusable
	assert.InDelta(t, 99.0, parseRainforestPrice(mk("", `{"current_price":{"value":99}}`)), 0.001)
	assert.InDelta(t, 88.0, parseRainforestPrice(mk("", `{"buybox_price":"$88.00"}`)), 0.001)
	assert.Zero(t, parseRainforestPrice(mk("", "")))
}

func TestRainforestAdapter_DropsUnpricedAndOutOfRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "search", r.URL.Query().Get("type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"request_info":{"success":true},"search_results":[
			{"title":"In Range","link":"https://www.amazon.com/dp/1","price":{"value":50}},
			{"title":"No Price","link":"https://www.amazon.com/dp/2"},
			{"title":"Too Expensive","link":"https://www.amazon.com/dp/3","price":{"value":500}}
		]}`))
	}))
	defer server.Close()

	adapter := NewRainforestAdapter("key")
	adapter.baseURL = server.URL

	max := 100.0
	results, err := adapter.Search(context.Background(), "usb hub", providers.SearchOptions{MaxPrice: &max})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "In Range", results[0].Title)
	assert.Equal(t, "Amazon", results[0].Merchant)
	assert.Equal(t, "rainforest", results[0].Source)
}

func TestRainforestAdapter_PollsPendingRequest(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("request_id") == "" {
			// First call: accepted but still processing
			w.Write([]byte(`{"request_info":{"request_id":"req-1","success":false}}`))
			return
		}
		assert.Equal(t, "req-1", r.URL.Query().Get("request_id"))
		w.Write([]byte(`{"request_info":{"success":true},"search_results":[
			{"title":"Late Arrival","link":"https://www.amazon.com/dp/9","price":{"value":19.99}}
		]}`))
	}))
	defer server.Close()

	adapter := NewRainforestAdapter("key")
	adapter.baseURL = server.URL

	results, err := adapter.Search(context.Background(), "laptop stand", providers.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Late Arrival", results[0].Title)
	assert.Equal(t, 2, calls)
}
